package chat

import (
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/tOgg1/discuss/internal/htmltext"
	"github.com/tOgg1/discuss/internal/models"
)

const (
	botDisplayName   = "OdooBot"
	anonymousName    = "Anonymous"
	botAvatar        = "/mail/static/src/img/odoo_o.png"
	emailAvatar      = "/mail/static/src/img/email_icon.png"
	defaultAvatar    = "/mail/static/src/img/smiley/avatar.jpg"
	trackedDateTime  = "January 2, 2006 3:04 PM"
	trackedDate      = "January 2, 2006"
	serverDateLayout = "2006-01-02"
)

// addOptions qualifies how an incoming message is merged.
type addOptions struct {
	// channelID adds membership of the given channel.
	channelID models.ChannelID
	// domain also caches the message in the view filtered by it.
	domain           models.Domain
	silent           bool
	incrementUnread  bool
	showNotification bool
}

// findMessage looks id up in the store. Caller holds mu.
func (m *Manager) findMessage(id models.MessageID) *models.Message {
	idx, found := m.messageIndex(id)
	if !found {
		return nil
	}
	return m.messages[idx]
}

func (m *Manager) messageIndex(id models.MessageID) (int, bool) {
	idx := sort.Search(len(m.messages), func(i int) bool { return m.messages[i].ID >= id })
	return idx, idx < len(m.messages) && m.messages[idx].ID == id
}

// addMessage merges data into the store and routes it to every channel it
// belongs to. Merging a known id never creates a second entry. Caller
// holds mu.
func (m *Manager) addMessage(data *models.MessageData, opts addOptions) *models.Message {
	idx, found := m.messageIndex(data.ID)
	if found {
		msg := m.messages[idx]
		if opts.channelID != "" && !msg.HasChannel(opts.channelID) {
			msg.AddChannel(opts.channelID)
			m.addToCache(msg, nil)
		}
		if opts.domain != nil {
			m.addToCache(msg, opts.domain)
		}
		return msg
	}

	msg := m.makeMessage(data)
	msg.AddChannel(opts.channelID)
	m.messages = slices.Insert(m.messages, idx, msg)

	for _, id := range msg.ChannelIDs() {
		ch := m.byID[id]
		if ch == nil {
			continue
		}
		if ch.LastMessage == nil || msg.ID > ch.LastMessage.ID {
			ch.LastMessage = msg
		}
		m.addToChannelCache(ch, msg, nil)
		if opts.domain != nil {
			m.addToChannelCache(ch, msg, opts.domain)
		}
		if ch.Hidden {
			ch.Hidden = false
			m.emit(&models.Event{Type: models.EventTypeNewChannel, Channel: ch})
		}
		if ch.Type == models.ChannelTypeStatic || msg.IsAuthor || msg.IsSystemNotification {
			continue
		}
		if opts.incrementUnread {
			m.updateChannelUnreadCounter(ch, ch.UnreadCounter+1)
		}
		if ch.IsChat && opts.showNotification {
			if !m.clientActionOpen && !m.opts.Mobile {
				m.emit(&models.Event{Type: models.EventTypeOpenChat, Channel: ch, Passively: true})
			}
			m.notifyIncomingMessage(msg, ch)
		}
	}

	if !opts.silent {
		m.emit(&models.Event{Type: models.EventTypeNewMessage, Message: msg})
	}
	return msg
}

// addToCache inserts msg into the view filtered by domain of every
// registered channel it belongs to.
func (m *Manager) addToCache(msg *models.Message, domain models.Domain) {
	for _, id := range msg.ChannelIDs() {
		if ch := m.byID[id]; ch != nil {
			m.addToChannelCache(ch, msg, domain)
		}
	}
}

func (m *Manager) addToChannelCache(ch *models.Channel, msg *models.Message, domain models.Domain) {
	channelCache(ch, domain).Insert(msg)
}

// removeMessageFromChannel drops the membership of id and removes msg from
// every view of that channel.
func (m *Manager) removeMessageFromChannel(id models.ChannelID, msg *models.Message) {
	msg.RemoveChannel(id)
	ch := m.byID[id]
	if ch == nil {
		return
	}
	for _, cache := range ch.Cache {
		cache.Remove(msg)
	}
}

func (m *Manager) makeMessage(data *models.MessageData) *models.Message {
	msg := &models.Message{
		ID:                  data.ID,
		Author:              data.AuthorID,
		Body:                htmltext.AddLinks(m.emoji.substitute(string(data.Body))),
		Date:                data.Date.Time,
		MessageType:         string(data.MessageType),
		SubtypeDescription:  string(data.SubtypeDescription),
		IsNote:              data.IsNote,
		Subject:             string(data.Subject),
		EmailFrom:           string(data.EmailFrom),
		CustomerEmailStatus: string(data.CustomerEmailStatus),
		CustomerEmailData:   data.CustomerEmailData,
		RecordName:          string(data.RecordName),
		Model:               string(data.Model),
		ResID:               int64(data.ResID),
		ModuleIcon:          string(data.ModuleIcon),
		URL:                 "/mail/view?message_id=" + data.ID.String(),
	}
	msg.IsAuthor = !data.AuthorID.Bot && data.AuthorID.ID != 0 && data.AuthorID.ID == m.opts.PartnerID
	msg.IsSystemNotification = (msg.MessageType == "notification" && msg.Model == models.OriginChannel) ||
		data.Info == "transient_message"

	msg.SetChannels(data.ChannelIDs)
	msg.SetVirtualMembership(models.InboxChannelID, slices.Contains(data.NeedactionPartnerIDs, m.opts.PartnerID))
	msg.SetVirtualMembership(models.StarredChannelID, slices.Contains(data.StarredPartnerIDs, m.opts.PartnerID))

	if msg.Model == models.OriginChannel {
		if ids := msg.RealChannelIDs(); len(ids) == 1 {
			if origin := m.byID[ids[0]]; origin != nil {
				msg.OriginID = origin.ID
				msg.OriginName = origin.Name
			}
		}
	}

	author := data.AuthorID
	switch {
	case author.IsZero() && msg.EmailFrom != "":
		msg.Mailto = msg.EmailFrom
	case author.Bot:
		msg.DisplayedAuthor = botDisplayName
	case author.Name != "":
		msg.DisplayedAuthor = author.Name
	case msg.EmailFrom != "":
		msg.DisplayedAuthor = msg.EmailFrom
	default:
		msg.DisplayedAuthor = anonymousName
	}
	msg.AuthorRedirect = !msg.IsAuthor && !author.Bot

	switch {
	case author.Bot:
		msg.AvatarSrc = botAvatar
	case author.ID != 0:
		msg.AvatarSrc = "/web/image/res.partner/" + strconv.FormatInt(author.ID, 10) + "/image_small"
	case msg.MessageType == "email":
		msg.AvatarSrc = emailAvatar
	default:
		msg.AvatarSrc = defaultAvatar
	}

	for _, a := range data.AttachmentIDs {
		a.URL = "/web/content/" + strconv.FormatInt(a.ID, 10) + "?download=true"
		msg.Attachments = append(msg.Attachments, a)
	}
	for _, tv := range data.TrackingValueIDs {
		msg.TrackingValues = append(msg.TrackingValues, m.formatTracking(tv))
	}
	return msg
}

// formatTracking renders date values for display. Datetimes are shown in
// the session location; dates carry no zone.
func (m *Manager) formatTracking(tv models.TrackingValue) models.TrackingValue {
	format := func(v models.Text, layout, display string, loc *time.Location) models.Text {
		if v == "" {
			return v
		}
		t, err := time.ParseInLocation(layout, string(v), time.UTC)
		if err != nil {
			return v
		}
		return models.Text(t.In(loc).Format(display))
	}
	switch tv.FieldType {
	case "datetime":
		tv.OldValue = format(tv.OldValue, models.ServerDateLayout, trackedDateTime, m.opts.Location)
		tv.NewValue = format(tv.NewValue, models.ServerDateLayout, trackedDateTime, m.opts.Location)
	case "date":
		tv.OldValue = format(tv.OldValue, serverDateLayout, trackedDate, time.UTC)
		tv.NewValue = format(tv.NewValue, serverDateLayout, trackedDate, time.UTC)
	}
	return tv
}

// Message returns the stored message with id, or nil.
func (m *Manager) Message(id models.MessageID) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findMessage(id)
}

// Messages returns every stored message, ordered by id.
func (m *Manager) Messages() []*models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// RemoveChatterMessages drops the document messages of model that belong
// to no channel.
func (m *Manager) RemoveChatterMessages(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = slices.DeleteFunc(m.messages, func(msg *models.Message) bool {
		return len(msg.ChannelIDs()) == 0 && msg.Model == model
	})
}
