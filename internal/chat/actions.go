package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tOgg1/discuss/internal/htmltext"
	"github.com/tOgg1/discuss/internal/models"
)

// JoinChannel joins a channel and registers it. Joining a registered
// channel returns it without a server call; concurrent joins of the same
// channel share one request.
func (m *Manager) JoinChannel(ctx context.Context, id models.ChannelID) (*models.Channel, error) {
	return m.joinChannel(ctx, id, channelOptions{})
}

func (m *Manager) joinChannel(ctx context.Context, id models.ChannelID, opts channelOptions) (*models.Channel, error) {
	m.mu.Lock()
	ch := m.byID[id]
	m.mu.Unlock()
	if ch != nil {
		return ch, nil
	}

	ch, _, err := m.joins.Do(ctx, string(id), func(ctx context.Context) (*models.Channel, error) {
		// A join that completed since the check above needs no second call.
		m.mu.Lock()
		existing := m.byID[id]
		m.mu.Unlock()
		if existing != nil {
			return existing, nil
		}
		info, err := m.backend.JoinChannel(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("join channel %s: %w", id, err)
		}
		m.lock()
		defer m.unlock()
		return m.addChannel(&info, opts), nil
	})
	return ch, err
}

// CreateChannel creates a public or private channel and registers it.
func (m *Manager) CreateChannel(ctx context.Context, name string, privacy models.ChannelType) (*models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create channel: name is required")
	}
	if privacy != models.ChannelTypePublic && privacy != models.ChannelTypePrivate {
		return nil, fmt.Errorf("create channel: invalid privacy %q", privacy)
	}
	info, err := m.backend.CreateChannel(ctx, name, string(privacy))
	if err != nil {
		return nil, fmt.Errorf("create channel %q: %w", name, err)
	}
	return m.register(&info, channelOptions{}), nil
}

// CreateDM opens the direct conversation with a partner and registers it.
func (m *Manager) CreateDM(ctx context.Context, partnerID int64) (*models.Channel, error) {
	info, err := m.backend.GetDMChannel(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("open conversation with partner %d: %w", partnerID, err)
	}
	return m.register(&info, channelOptions{}), nil
}

// OpenAndDetachDM opens the direct conversation with a partner in a chat
// window.
func (m *Manager) OpenAndDetachDM(ctx context.Context, partnerID int64) (*models.Channel, error) {
	info, err := m.backend.GetAndMinimizeDM(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("open chat window with partner %d: %w", partnerID, err)
	}
	return m.register(&info, channelOptions{}), nil
}

func (m *Manager) register(info *models.ChannelInfo, opts channelOptions) *models.Channel {
	m.lock()
	defer m.unlock()
	return m.addChannel(info, opts)
}

// OpenChannel asks the UI to show a channel: in the discuss view when it
// is open, in a chat window otherwise.
func (m *Manager) OpenChannel(id models.ChannelID) error {
	m.lock()
	defer m.unlock()
	ch := m.byID[id]
	if ch == nil {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	kind := models.EventTypeDetachChannel
	if m.clientActionOpen {
		kind = models.EventTypeOpenChannel
	}
	m.emit(&models.Event{Type: kind, Channel: ch})
	return nil
}

// DetachChannel opens a channel in a chat window.
func (m *Manager) DetachChannel(ctx context.Context, id models.ChannelID) error {
	uuid, err := m.channelUUID(id)
	if err != nil {
		return err
	}
	return m.backend.ChannelMinimize(ctx, uuid, true)
}

// FoldChannel folds or unfolds the chat window of a channel.
func (m *Manager) FoldChannel(ctx context.Context, id models.ChannelID, folded bool) error {
	uuid, err := m.channelUUID(id)
	if err != nil {
		return err
	}
	state := "open"
	if folded {
		state = "folded"
	}
	return m.backend.ChannelFold(ctx, uuid, state)
}

// CloseChatSession closes the chat window of a channel.
func (m *Manager) CloseChatSession(ctx context.Context, id models.ChannelID) error {
	uuid, err := m.channelUUID(id)
	if err != nil {
		return err
	}
	return m.backend.ChannelFold(ctx, uuid, "closed")
}

// Unsubscribe leaves a public or private channel, or unpins a
// conversation. The registry changes when the server confirms.
func (m *Manager) Unsubscribe(ctx context.Context, id models.ChannelID) error {
	m.mu.Lock()
	ch := m.byID[id]
	if ch == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	kind, uuid := ch.Type, ch.UUID
	m.mu.Unlock()

	if kind == models.ChannelTypePublic || kind == models.ChannelTypePrivate {
		return m.backend.LeaveChannel(ctx, id)
	}
	return m.backend.ChannelPin(ctx, uuid, false)
}

func (m *Manager) channelUUID(id models.ChannelID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.byID[id]
	if ch == nil {
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	return ch.UUID, nil
}

// MarkAsRead marks needaction messages as done. Ids of known messages that
// are not needaction are skipped.
func (m *Manager) MarkAsRead(ctx context.Context, ids []models.MessageID) error {
	m.mu.Lock()
	pending := make([]models.MessageID, 0, len(ids))
	for _, id := range ids {
		if msg := m.findMessage(id); msg == nil || msg.IsNeedaction() {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return m.backend.MarkRead(ctx, pending)
}

// MarkAllAsRead marks every needaction message of a channel as done. The
// Inbox covers every channel.
func (m *Manager) MarkAllAsRead(ctx context.Context, id models.ChannelID, domain models.Domain) error {
	m.mu.Lock()
	ch := m.byID[id]
	if ch == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	pending := (id == models.InboxChannelID && m.needactionCounter > 0) || ch.NeedactionCounter > 0
	m.mu.Unlock()

	if !pending {
		return nil
	}
	channelIDs := []models.ChannelID{}
	if id != models.InboxChannelID {
		channelIDs = append(channelIDs, id)
	}
	return m.backend.MarkAllRead(ctx, channelIDs, domain)
}

// MarkChannelAsSeen clears the unread counter of a channel and reports the
// channel seen to the server, at most once per throttle interval.
func (m *Manager) MarkChannelAsSeen(id models.ChannelID) error {
	m.lock()
	ch := m.byID[id]
	if ch == nil {
		m.unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	seen := ch.UnreadCounter > 0 && ch.Type != models.ChannelTypeStatic
	if seen {
		m.updateChannelUnreadCounter(ch, 0)
	}
	m.unlock()

	if seen {
		m.seen.Trigger(id)
	}
	return nil
}

// ToggleStarStatus stars or unstars a message. The store changes when the
// server confirms.
func (m *Manager) ToggleStarStatus(ctx context.Context, id models.MessageID) error {
	return m.backend.ToggleStar(ctx, id)
}

// UnstarAll unstars every starred message.
func (m *Manager) UnstarAll(ctx context.Context) error {
	return m.backend.UnstarAll(ctx)
}

// PostTarget is where a message is posted: a channel, or a record thread.
type PostTarget struct {
	ChannelID models.ChannelID
	Model     string
	ResID     int64
}

// PostMessage posts content to a channel or a record thread. Channel
// messages come back through the notification feed; record messages are
// fetched and stored right away.
func (m *Manager) PostMessage(ctx context.Context, target PostTarget, payload models.PostPayload) (models.MessageID, error) {
	m.mu.Lock()
	emoji := m.emoji
	m.mu.Unlock()

	body := htmltext.AddLinks(strings.TrimSpace(payload.Body))
	if body == "" && len(payload.AttachmentIDs) == 0 {
		return 0, ErrEmptyMessage
	}
	payload.Body = emoji.toUnicode(body)

	if target.ChannelID != "" {
		id, err := m.backend.PostMessage(ctx, target.ChannelID, payload)
		if err != nil {
			return 0, fmt.Errorf("post to channel %s: %w", target.ChannelID, err)
		}
		return id, nil
	}
	if target.Model == "" || target.ResID == 0 {
		return 0, fmt.Errorf("post message: target needs a channel or a record")
	}

	id, err := m.backend.PostDocumentMessage(ctx, target.Model, target.ResID, payload)
	if err != nil {
		return 0, fmt.Errorf("post to %s,%d: %w", target.Model, target.ResID, err)
	}
	data, err := m.backend.MessageFormat(ctx, []models.MessageID{id})
	if err != nil {
		return id, fmt.Errorf("load posted message %s: %w", id, err)
	}
	m.lock()
	defer m.unlock()
	for i := range data {
		data[i].Model = models.Text(target.Model)
		data[i].ResID = models.RecordID(target.ResID)
		m.addMessage(&data[i], addOptions{})
	}
	return id, nil
}

// Commands returns the slash commands available in a channel.
func (m *Manager) Commands(id models.ChannelID) []models.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.byID[id]
	if ch == nil {
		return nil
	}
	var out []models.Command
	for _, cmd := range m.commands {
		if len(cmd.ChannelTypes) == 0 || slices.Contains(cmd.ChannelTypes, ch.ServerType) {
			out = append(out, cmd)
		}
	}
	return out
}

// CannedResponses returns the text shortcodes.
func (m *Manager) CannedResponses() []models.Shortcode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.cannedResponses)
}

// Emojis returns the emoji shortcodes.
func (m *Manager) Emojis() []models.Shortcode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.emojis)
}
