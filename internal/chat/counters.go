package chat

import (
	"github.com/tOgg1/discuss/internal/htmltext"
	"github.com/tOgg1/discuss/internal/models"
)

// updateChannelUnreadCounter sets the unread counter of ch, keeping the
// count of unread conversations in step.
func (m *Manager) updateChannelUnreadCounter(ch *models.Channel, counter int) {
	if ch.UnreadCounter > 0 && counter == 0 {
		m.unreadConversationCounter = max(0, m.unreadConversationCounter-1)
	} else if ch.UnreadCounter == 0 && counter > 0 {
		m.unreadConversationCounter++
	}
	ch.UnreadCounter = counter
	m.emit(&models.Event{Type: models.EventTypeUnreadCounterUpdated, Channel: ch, Counter: counter})
}

// notifyIncomingMessage raises a desktop notification unless the channel
// is on screen in a focused session.
func (m *Manager) notifyIncomingMessage(msg *models.Message, ch *models.Channel) {
	if m.focused && m.opts.IsDisplayed != nil && m.opts.IsDisplayed(ch.ID) {
		return
	}
	title := msg.Author.Name
	if title == "" {
		title = "New message"
	}
	content := htmltext.Truncate(htmltext.StripHTML(msg.Body), m.opts.PreviewMaxSize)
	if !m.focused {
		m.globalUnreadCounter++
	}
	if m.opts.Notifier != nil {
		notifier := m.opts.Notifier
		m.after(func() { notifier.Notify(title, content) })
	}
}

// Counters returns a snapshot of the aggregate counters.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counters{
		Needaction:          m.needactionCounter,
		Starred:             m.starredCounter,
		UnreadConversations: m.unreadConversationCounter,
		GlobalUnread:        m.globalUnreadCounter,
	}
}

// SetFocused records whether the session has the user's attention. Gaining
// focus clears the global unread counter.
func (m *Manager) SetFocused(focused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = focused
	if focused {
		m.globalUnreadCounter = 0
	}
}

// SetClientActionOpen records whether the full discuss view is open.
func (m *Manager) SetClientActionOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientActionOpen = open
}

// MenuID returns the id of the discuss menu.
func (m *Manager) MenuID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.menuID
}
