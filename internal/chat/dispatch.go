package chat

import (
	"context"
	"fmt"

	"github.com/tOgg1/discuss/internal/models"
)

// HandleNotifications applies one batch of push notifications in order.
//
// Traffic for a channel the batch also unsubscribes from is discarded, so
// that a late message cannot register the channel again.
func (m *Manager) HandleNotifications(ctx context.Context, batch []models.Notification) {
	for _, n := range batch {
		if n.Kind != models.NotificationUnsubscribe || n.Unsubscribe == nil {
			continue
		}
		left := n.Unsubscribe.ID
		kept := batch[:0:0]
		for _, other := range batch {
			if other.Origin.Model == models.OriginChannel && other.TargetChannel() == left {
				continue
			}
			kept = append(kept, other)
		}
		batch = kept
		break
	}

	for _, n := range batch {
		m.handleNotification(ctx, n)
	}
}

func (m *Manager) handleNotification(ctx context.Context, n models.Notification) {
	switch n.Kind {
	case models.NotificationNeedaction:
		if n.Message != nil {
			m.onNeedaction(n.Message)
		}
	case models.NotificationChannelMessage:
		if n.Message != nil {
			m.onChannelMessage(ctx, n.Message)
		}
	case models.NotificationUnsubscribe:
		if n.Unsubscribe != nil {
			m.onUnsubscribe(n.Unsubscribe)
		}
	case models.NotificationToggleStar:
		if n.ToggleStar != nil {
			m.onToggleStar(n.ToggleStar)
		}
	case models.NotificationMarkAsRead:
		if n.MarkAsRead != nil {
			m.onMarkAsRead(n.MarkAsRead)
		}
	case models.NotificationChannelSeen:
		if n.ChannelSeen != nil {
			m.onChannelSeen(n.ChannelSeen)
		}
	case models.NotificationTransientMessage:
		if n.Transient != nil {
			m.onTransientMessage(n.Transient)
		}
	case models.NotificationActivityUpdated:
		m.lock()
		m.emit(&models.Event{Type: models.EventTypeActivityUpdated, Payload: n.Activity})
		m.unlock()
	case models.NotificationChatSession:
		if n.ChatSession != nil {
			m.onChatSession(n.ChatSession)
		}
	case models.NotificationPresence:
		if n.Presence != nil {
			m.onPresence(n.Presence)
		}
	default:
		m.logger.Debug().Str("model", n.Origin.Model).Msg("ignoring notification")
	}
}

func (m *Manager) onNeedaction(data *models.MessageData) {
	m.lock()
	defer m.unlock()

	msg := m.addMessage(data, addOptions{
		channelID:        models.InboxChannelID,
		incrementUnread:  true,
		showNotification: true,
	})
	ids := msg.ChannelIDs()
	m.invalidateCaches(ids)
	if len(ids) > 0 {
		m.needactionCounter++
	}
	// Mailboxes are counted by the global counter only: mark-as-read
	// notices never list them, so a per-mailbox count could not drain.
	for _, id := range msg.RealChannelIDs() {
		if ch := m.byID[id]; ch != nil {
			ch.NeedactionCounter++
		}
	}
	m.emit(&models.Event{Type: models.EventTypeNeedactionUpdated, Counter: m.needactionCounter, Message: msg})
}

func (m *Manager) onChannelMessage(ctx context.Context, data *models.MessageData) {
	alreadyCached := true
	if len(data.ChannelIDs) == 1 {
		id := data.ChannelIDs[0]
		m.mu.Lock()
		alreadyCached = m.byID[id] != nil
		m.mu.Unlock()
		if _, err := m.joinChannel(ctx, id, channelOptions{noAutoswitch: true}); err != nil {
			m.logger.Warn().Err(err).Str("channel_id", string(id)).Msg("join for incoming message failed")
			return
		}
	}

	m.lock()
	defer m.unlock()
	msg := m.addMessage(data, addOptions{showNotification: true, incrementUnread: alreadyCached})
	m.invalidateCaches(msg.ChannelIDs())
}

func (m *Manager) onUnsubscribe(notice *models.UnsubscribeNotice) {
	m.lock()
	defer m.unlock()

	ch := m.byID[notice.ID]
	if ch == nil {
		return
	}
	var body string
	if ch.Type == models.ChannelTypePublic || ch.Type == models.ChannelTypePrivate {
		body = fmt.Sprintf("You unsubscribed from <b>%s</b>.", ch.Name)
	} else {
		body = fmt.Sprintf("You unpinned your conversation with <b>%s</b>.", ch.Name)
	}
	m.removeChannel(ch)
	m.emit(&models.Event{Type: models.EventTypeUnsubscribed, Channel: ch})
	m.emit(&models.Event{
		Type:      models.EventTypeNotice,
		ChannelID: ch.ID,
		Notice:    &models.Notice{Title: "Unsubscribed", Body: body},
	})
}

func (m *Manager) onToggleStar(notice *models.ToggleStarNotice) {
	m.lock()
	defer m.unlock()

	starred := m.byID[models.StarredChannelID]
	for _, id := range notice.MessageIDs {
		msg := m.findMessage(id)
		if msg == nil {
			continue
		}
		m.invalidateCaches(msg.ChannelIDs())
		was := msg.IsStarred()
		if notice.Starred {
			msg.SetVirtualMembership(models.StarredChannelID, true)
			m.addToCache(msg, nil)
			if starred != nil {
				starred.Cache = map[string]*models.ChannelCache{models.EmptyDomainKey: starred.DefaultCache()}
			}
			if !was {
				m.starredCounter++
			}
		} else {
			m.removeMessageFromChannel(models.StarredChannelID, msg)
			if was {
				m.starredCounter = max(0, m.starredCounter-1)
			}
		}
		m.emit(&models.Event{Type: models.EventTypeMessageUpdated, Message: msg, Reason: "toggle_star"})
	}
	m.emit(&models.Event{Type: models.EventTypeStarredUpdated, Counter: m.starredCounter})
}

func (m *Manager) onMarkAsRead(notice *models.MarkAsReadNotice) {
	m.lock()
	defer m.unlock()

	for _, id := range notice.MessageIDs {
		msg := m.findMessage(id)
		if msg == nil {
			continue
		}
		m.invalidateCaches(msg.ChannelIDs())
		m.removeMessageFromChannel(models.InboxChannelID, msg)
		m.emit(&models.Event{Type: models.EventTypeMessageUpdated, Message: msg, Reason: "mark_as_read"})
	}

	read := len(notice.MessageIDs)
	if len(notice.ChannelIDs) > 0 {
		for _, id := range notice.ChannelIDs {
			if ch := m.byID[id]; ch != nil {
				ch.NeedactionCounter = max(0, ch.NeedactionCounter-read)
			}
		}
	} else {
		for _, ch := range m.channels {
			ch.NeedactionCounter = 0
		}
	}
	m.needactionCounter = max(0, m.needactionCounter-read)
	m.emit(&models.Event{Type: models.EventTypeNeedactionUpdated, Counter: m.needactionCounter})
}

func (m *Manager) onChannelSeen(notice *models.ChannelSeenNotice) {
	m.lock()
	defer m.unlock()

	ch := m.byID[notice.ID]
	if ch == nil {
		return
	}
	ch.LastSeenMessageID = notice.LastMessageID
	if ch.UnreadCounter > 0 {
		m.updateChannelUnreadCounter(ch, 0)
	}
}

// onTransientMessage stores a server-side notice that is never persisted.
// It is placed right after the last known message.
func (m *Manager) onTransientMessage(data *models.MessageData) {
	m.lock()
	defer m.unlock()

	transient := *data
	var last models.MessageID
	if n := len(m.messages); n > 0 {
		last = m.messages[n-1].ID
	}
	transient.ID = last + models.TransientStep
	if transient.AuthorID.IsZero() {
		transient.AuthorID = models.Author{Bot: true}
	}
	transient.Info = "transient_message"
	m.addMessage(&transient, addOptions{})
}

func (m *Manager) onChatSession(info *models.ChannelInfo) {
	m.lock()
	defer m.unlock()

	if info.ChannelType == "channel" && info.State == "open" {
		m.addChannel(info, channelOptions{noAutoswitch: true})
		if !info.IsMinimized && info.Info != "creation" {
			m.emit(&models.Event{
				Type:      models.EventTypeNotice,
				ChannelID: info.ID,
				Notice:    &models.Notice{Title: "Invitation", Body: "You have been invited to: " + string(info.Name)},
			})
		}
	}

	ch := m.byID[info.ID]
	switch info.State {
	case "open", "folded":
		if info.IsMinimized && ch != nil {
			ch.IsDetached = true
			ch.IsFolded = info.State == "folded"
			m.emit(&models.Event{Type: models.EventTypeOpenChat, Channel: ch})
		}
	case "closed":
		if ch != nil {
			ch.IsDetached = false
			m.emit(&models.Event{Type: models.EventTypeCloseChat, Channel: ch, KeepOpenIfUnread: true})
		}
	}
}

func (m *Manager) onPresence(notice *models.PresenceNotice) {
	m.lock()
	defer m.unlock()

	ch := m.dmFromPartner(notice.ID)
	if ch == nil {
		return
	}
	ch.Status = string(notice.IMStatus)
	m.emit(&models.Event{Type: models.EventTypeDMPresenceUpdated, Channel: ch})
}
