package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Reserved channel ids for the cross-cutting mailbox views.
const (
	InboxChannelID   ChannelID = "channel_inbox"
	StarredChannelID ChannelID = "channel_starred"
)

// BotAuthorID marks messages authored by the system bot.
const BotAuthorID = "ODOOBOT"

// ChannelID identifies a channel. Server channels carry numeric ids, the
// mailbox views carry reserved string ids.
type ChannelID string

// NumericChannelID builds a ChannelID from a server id.
func NumericChannelID(id int64) ChannelID {
	return ChannelID(strconv.FormatInt(id, 10))
}

// IsVirtual reports whether the id names one of the mailbox views.
func (id ChannelID) IsVirtual() bool {
	return id == InboxChannelID || id == StarredChannelID
}

// Int returns the numeric server id, if any.
func (id ChannelID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (id ChannelID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ChannelID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("false")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ChannelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("channel id: %w", err)
	}
	*id = ChannelID(n.String())
	return nil
}

// MessageID identifies a message. Persisted messages carry integral ids;
// transient messages carry a fractional id placed after the last known one.
type MessageID float64

// TransientStep is added to the last known id to place a transient message.
const TransientStep MessageID = 0.01

// IsTransient reports whether the id is synthetic (not an integer).
func (id MessageID) IsTransient() bool {
	return float64(id) != math.Trunc(float64(id))
}

func (id MessageID) String() string {
	if id.IsTransient() {
		return strconv.FormatFloat(float64(id), 'f', -1, 64)
	}
	return strconv.FormatInt(int64(id), 10)
}

// ParseMessageID parses the textual form produced by String.
func ParseMessageID(s string) (MessageID, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return MessageID(f), nil
}

func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("false")) || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(f)
	return nil
}
