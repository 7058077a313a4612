package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ServerDateLayout is the UTC timestamp layout used by the server.
const ServerDateLayout = "2006-01-02 15:04:05"

// Text is a string field the server may send as false when unset.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("false")) || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// RecordID is an integer field the server may send as false when unset.
type RecordID int64

func (r *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("false")) || bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RecordID(n)
	return nil
}

// ServerTime decodes server timestamps.
type ServerTime struct {
	time.Time
}

func (t *ServerTime) UnmarshalJSON(data []byte) error {
	var s Text
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(ServerDateLayout, string(s), time.UTC)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, string(s))
		if err != nil {
			return fmt.Errorf("server time %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

func (t ServerTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("false"), nil
	}
	return json.Marshal(t.UTC().Format(ServerDateLayout))
}

// Author is the [partner id, display name] pair attached to a message, or
// the system bot marker.
type Author struct {
	ID   int64
	Name string
	Bot  bool
}

// IsZero reports whether no author is set.
func (a Author) IsZero() bool {
	return !a.Bot && a.ID == 0
}

func (a *Author) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*a = Author{}
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == BotAuthorID {
			a.Bot = true
		}
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("author: %w", err)
	}
	if len(pair) > 0 {
		var id RecordID
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return fmt.Errorf("author id: %w", err)
		}
		a.ID = int64(id)
	}
	if len(pair) > 1 {
		var name Text
		if err := json.Unmarshal(pair[1], &name); err != nil {
			return fmt.Errorf("author name: %w", err)
		}
		a.Name = string(name)
	}
	return nil
}

func (a Author) MarshalJSON() ([]byte, error) {
	if a.Bot {
		return json.Marshal(BotAuthorID)
	}
	if a.ID == 0 {
		return []byte("false"), nil
	}
	return json.Marshal([]any{a.ID, a.Name})
}

// Attachment is a file linked to a message.
type Attachment struct {
	ID       int64  `json:"id"`
	Filename Text   `json:"filename,omitempty"`
	Name     Text   `json:"name,omitempty"`
	Mimetype Text   `json:"mimetype,omitempty"`
	URL      string `json:"url,omitempty"`
}

// TrackingValue is a tracked field change carried by a message.
type TrackingValue struct {
	ChangedField Text   `json:"changed_field"`
	FieldType    string `json:"field_type"`
	OldValue     Text   `json:"old_value"`
	NewValue     Text   `json:"new_value"`
}

// MessageData is the server representation of a message, as returned by
// fetches and carried by push notifications.
type MessageData struct {
	ID                   MessageID       `json:"id"`
	AuthorID             Author          `json:"author_id"`
	Body                 Text            `json:"body"`
	Date                 ServerTime      `json:"date"`
	MessageType          Text            `json:"message_type"`
	SubtypeDescription   Text            `json:"subtype_description"`
	IsNote               bool            `json:"is_note"`
	AttachmentIDs        []Attachment    `json:"attachment_ids"`
	Subject              Text            `json:"subject"`
	EmailFrom            Text            `json:"email_from"`
	CustomerEmailStatus  Text            `json:"customer_email_status"`
	CustomerEmailData    json.RawMessage `json:"customer_email_data,omitempty"`
	RecordName           Text            `json:"record_name"`
	TrackingValueIDs     []TrackingValue `json:"tracking_value_ids"`
	ChannelIDs           []ChannelID     `json:"channel_ids"`
	Model                Text            `json:"model"`
	ResID                RecordID        `json:"res_id"`
	ModuleIcon           Text            `json:"module_icon"`
	NeedactionPartnerIDs []int64         `json:"needaction_partner_ids"`
	StarredPartnerIDs    []int64         `json:"starred_partner_ids"`
	Info                 Text            `json:"info"`
}

// Partner is a contact as seen by the chat client.
type Partner struct {
	ID       int64  `json:"id"`
	Name     Text   `json:"name"`
	IMStatus Text   `json:"im_status"`
	Email    Text   `json:"email,omitempty"`
}

// ChannelInfo is the server representation of a channel (join, create,
// init and chat-session payloads).
type ChannelInfo struct {
	ID                       ChannelID    `json:"id"`
	Name                     Text         `json:"name"`
	Type                     Text         `json:"type"`
	ChannelType              Text         `json:"channel_type"`
	Public                   Text         `json:"public"`
	UUID                     Text         `json:"uuid"`
	IsMinimized              bool         `json:"is_minimized"`
	State                    Text         `json:"state"`
	MassMailing              bool         `json:"mass_mailing"`
	GroupBasedSubscription   bool         `json:"group_based_subscription"`
	MessageNeedactionCounter int          `json:"message_needaction_counter"`
	MessageUnreadCounter     int          `json:"message_unread_counter"`
	SeenMessageID            MessageID    `json:"seen_message_id"`
	DirectPartner            []Partner    `json:"direct_partner"`
	AnonymousName            *Text        `json:"anonymous_name,omitempty"`
	LastMessageDate          ServerTime   `json:"last_message_date"`
	LastMessage              *MessageData `json:"last_message,omitempty"`
	Info                     Text         `json:"info,omitempty"`
}

// ChannelPreview is a server-side preview of a channel's last message.
type ChannelPreview struct {
	ID          ChannelID    `json:"id"`
	LastMessage *MessageData `json:"last_message"`
}

// Shortcode is a canned response or emoji definition.
type Shortcode struct {
	ID            int64  `json:"id"`
	ShortcodeType string `json:"shortcode_type"`
	Source        string `json:"source"`
	UnicodeSource Text   `json:"unicode_source"`
	Substitution  string `json:"substitution"`
	Description   Text   `json:"description"`
}

// Command is a slash command available in some channel types.
type Command struct {
	Name         string   `json:"name"`
	Help         Text     `json:"help"`
	ChannelTypes []string `json:"channel_types,omitempty"`
}

// InitResult is the session bootstrap payload.
type InitResult struct {
	ChannelSlots              map[string][]ChannelInfo `json:"channel_slots"`
	NeedactionInboxCounter    int                      `json:"needaction_inbox_counter"`
	StarredCounter            int                      `json:"starred_counter"`
	Commands                  []Command                `json:"commands"`
	MentionPartnerSuggestions [][]Partner              `json:"mention_partner_suggestions"`
	MenuID                    RecordID                 `json:"menu_id"`
	Shortcodes                []Shortcode              `json:"shortcodes"`
}

// PostPayload is the content of a message being posted.
type PostPayload struct {
	Body           string  `json:"body"`
	Subject        string  `json:"subject,omitempty"`
	PartnerIDs     []int64 `json:"partner_ids,omitempty"`
	AttachmentIDs  []int64 `json:"attachment_ids,omitempty"`
	MessageType    string  `json:"message_type,omitempty"`
	Subtype        string  `json:"subtype,omitempty"`
	ContentSubtype string  `json:"content_subtype,omitempty"`
	// Command runs a slash command instead of posting, on channel targets.
	Command string `json:"command,omitempty"`
}
