package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Message is a chat or document message known to the client. A Message is
// owned by the message store; channels and caches only reference it.
type Message struct {
	ID                   MessageID
	Author               Author
	Body                 string
	Date                 time.Time
	MessageType          string
	SubtypeDescription   string
	IsAuthor             bool
	IsNote               bool
	IsSystemNotification bool
	Attachments          []Attachment
	Subject              string
	EmailFrom            string
	CustomerEmailStatus  string
	CustomerEmailData    json.RawMessage
	RecordName           string
	TrackingValues       []TrackingValue
	Model                string
	ResID                int64
	URL                  string
	ModuleIcon           string

	// OriginID and OriginName name the single real channel of a channel
	// message, when it is known locally.
	OriginID   ChannelID
	OriginName string

	DisplayedAuthor string
	Mailto          string
	AuthorRedirect  bool
	AvatarSrc       string

	channelIDs []ChannelID
}

// ChannelIDs returns a copy of the channel membership set, virtual ids
// included.
func (m *Message) ChannelIDs() []ChannelID {
	return slices.Clone(m.channelIDs)
}

// RealChannelIDs returns the membership set without the mailbox views.
func (m *Message) RealChannelIDs() []ChannelID {
	out := make([]ChannelID, 0, len(m.channelIDs))
	for _, id := range m.channelIDs {
		if !id.IsVirtual() {
			out = append(out, id)
		}
	}
	return out
}

// HasChannel reports membership of id.
func (m *Message) HasChannel(id ChannelID) bool {
	return slices.Contains(m.channelIDs, id)
}

// AddChannel adds id to the membership set, keeping it free of duplicates.
func (m *Message) AddChannel(id ChannelID) {
	if id == "" || m.HasChannel(id) {
		return
	}
	m.channelIDs = append(m.channelIDs, id)
}

// RemoveChannel drops id from the membership set.
func (m *Message) RemoveChannel(id ChannelID) {
	m.channelIDs = slices.DeleteFunc(m.channelIDs, func(c ChannelID) bool { return c == id })
}

// SetChannels replaces the membership set, dropping duplicates.
func (m *Message) SetChannels(ids []ChannelID) {
	m.channelIDs = m.channelIDs[:0]
	for _, id := range ids {
		m.AddChannel(id)
	}
}

// SetVirtualMembership toggles membership in one of the mailbox views.
func (m *Message) SetVirtualMembership(view ChannelID, member bool) {
	if member {
		m.AddChannel(view)
		return
	}
	m.RemoveChannel(view)
}

// IsNeedaction reports membership in the Inbox view.
func (m *Message) IsNeedaction() bool {
	return m.HasChannel(InboxChannelID)
}

// IsStarred reports membership in the Starred view.
func (m *Message) IsStarred() bool {
	return m.HasChannel(StarredChannelID)
}
