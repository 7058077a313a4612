package models

import (
	"encoding/json"
	"time"
)

// EventType names a topic on the chat event bus.
type EventType string

const (
	// Channel events
	EventTypeNewChannel           EventType = "new_channel"
	EventTypeChannelToggleFold    EventType = "channel_toggle_fold"
	EventTypeUnreadCounterUpdated EventType = "update_channel_unread_counter"
	EventTypeUnsubscribed         EventType = "unsubscribe_from_channel"
	EventTypeDMPresenceUpdated    EventType = "update_dm_presence"

	// Chat window events
	EventTypeOpenChat      EventType = "open_chat"
	EventTypeCloseChat     EventType = "close_chat"
	EventTypeOpenChannel   EventType = "open_channel"
	EventTypeDetachChannel EventType = "detach_channel"

	// Message events
	EventTypeNewMessage     EventType = "new_message"
	EventTypeMessageUpdated EventType = "update_message"

	// Counter events
	EventTypeNeedactionUpdated EventType = "update_needaction"
	EventTypeStarredUpdated    EventType = "update_starred"

	// Pass-through and UI notices
	EventTypeActivityUpdated EventType = "activity_updated"
	EventTypeNotice          EventType = "notice"
)

// Event is a state change published to UI collaborators.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the topic of the event.
	Type EventType `json:"type"`

	// ChannelID is the related channel, if any.
	ChannelID ChannelID `json:"channel_id,omitempty"`

	// MessageID is the related message, if any.
	MessageID MessageID `json:"message_id,omitempty"`

	// Counter carries the new value for counter events.
	Counter int `json:"counter,omitempty"`

	// Passively marks open_chat events raised by an incoming message.
	Passively bool `json:"passively,omitempty"`

	// KeepOpenIfUnread hints close_chat consumers to keep unread windows.
	KeepOpenIfUnread bool `json:"keep_open_if_unread,omitempty"`

	// Reason qualifies update_message events (e.g. mark_as_read).
	Reason string `json:"reason,omitempty"`

	// Notice is set on notice events.
	Notice *Notice `json:"notice,omitempty"`

	// Payload carries pass-through server data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Channel and Message reference live store entries.
	Channel *Channel `json:"-"`
	Message *Message `json:"-"`
}

// Notice is a transient, user-facing notification.
type Notice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
