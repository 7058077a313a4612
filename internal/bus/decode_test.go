package bus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/discuss/internal/models"
)

func TestDecodeClassifiesByOriginAndShape(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		message string
		want    models.NotificationKind
	}{
		{
			name:    "needaction",
			channel: `["db", "ir.needaction", 3]`,
			message: `{"id": 100, "channel_ids": [7], "body": "<p>hi</p>"}`,
			want:    models.NotificationNeedaction,
		},
		{
			name:    "channel message",
			channel: `["db", "mail.channel", 7]`,
			message: `{"id": 101, "channel_ids": [7], "author_id": [4, "Bob"]}`,
			want:    models.NotificationChannelMessage,
		},
		{
			name:    "unsubscribe",
			channel: `["db", "res.partner", 3]`,
			message: `{"info": "unsubscribe", "id": 7}`,
			want:    models.NotificationUnsubscribe,
		},
		{
			name:    "toggle star",
			channel: `["db", "res.partner", 3]`,
			message: `{"type": "toggle_star", "message_ids": [5, 6], "starred": true}`,
			want:    models.NotificationToggleStar,
		},
		{
			name:    "mark as read",
			channel: `["db", "res.partner", 3]`,
			message: `{"type": "mark_as_read", "message_ids": [5], "channel_ids": [7]}`,
			want:    models.NotificationMarkAsRead,
		},
		{
			name:    "channel seen",
			channel: `["db", "res.partner", 3]`,
			message: `{"info": "channel_seen", "id": 7, "last_message_id": 52}`,
			want:    models.NotificationChannelSeen,
		},
		{
			name:    "transient",
			channel: `["db", "res.partner", 3]`,
			message: `{"info": "transient_message", "body": "done", "channel_ids": [7]}`,
			want:    models.NotificationTransientMessage,
		},
		{
			name:    "activity",
			channel: `["db", "res.partner", 3]`,
			message: `{"type": "activity_updated", "activity_created": true}`,
			want:    models.NotificationActivityUpdated,
		},
		{
			name:    "untagged partner payload is a chat session",
			channel: `["db", "res.partner", 3]`,
			message: `{"id": 9, "channel_type": "chat", "state": "folded", "is_minimized": true}`,
			want:    models.NotificationChatSession,
		},
		{
			name:    "presence",
			channel: `["db", "bus.presence"]`,
			message: `{"id": 42, "im_status": "away"}`,
			want:    models.NotificationPresence,
		},
		{
			name:    "unknown model",
			channel: `["db", "res.users", 2]`,
			message: `{"anything": 1}`,
			want:    models.NotificationUnknown,
		},
		{
			name:    "bare model name",
			channel: `"bus.presence"`,
			message: `{"id": 42, "im_status": "online"}`,
			want:    models.NotificationPresence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Decode(json.RawMessage(tt.channel), json.RawMessage(tt.message))
			require.NoError(t, err)
			require.Equal(t, tt.want, n.Kind)
		})
	}
}

func TestDecodePayloadFields(t *testing.T) {
	n, err := Decode(json.RawMessage(`["db", "mail.channel", 7]`), json.RawMessage(`{"id": 101, "channel_ids": [7], "author_id": [4, "Bob"], "date": "2024-03-01 09:30:00"}`))
	require.NoError(t, err)
	require.Equal(t, models.ChannelID("7"), n.TargetChannel())
	require.Equal(t, "db", n.Origin.Database)
	require.NotNil(t, n.Message)
	require.Equal(t, models.MessageID(101), n.Message.ID)
	require.Equal(t, "Bob", n.Message.AuthorID.Name)
	require.Equal(t, 9, n.Message.Date.Hour())

	n, err = Decode(json.RawMessage(`["db", "res.partner", 3]`), json.RawMessage(`{"info": "unsubscribe", "id": 7}`))
	require.NoError(t, err)
	require.Equal(t, models.ChannelID("7"), n.Unsubscribe.ID)

	n, err = Decode(json.RawMessage(`["db", "res.partner", 3]`), json.RawMessage(`{"type": "toggle_star", "message_ids": [5, 6], "starred": false}`))
	require.NoError(t, err)
	require.Equal(t, []models.MessageID{5, 6}, n.ToggleStar.MessageIDs)
	require.False(t, n.ToggleStar.Starred)

	n, err = Decode(json.RawMessage(`["db", "res.partner", 3]`), json.RawMessage(`{"info": "channel_seen", "id": 7, "last_message_id": false}`))
	require.NoError(t, err)
	require.Equal(t, models.MessageID(0), n.ChannelSeen.LastMessageID)
}

func TestDecodeRejectsMalformedOrigin(t *testing.T) {
	_, err := Decode(json.RawMessage(`["db"]`), json.RawMessage(`{}`))
	require.Error(t, err)

	_, err = Decode(nil, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestDecodeBatchSkipsBadEntries(t *testing.T) {
	data := []byte(`[
		{"id": 11, "channel": ["db", "bus.presence"], "message": {"id": 42, "im_status": "online"}},
		{"id": 12, "channel": ["db", "mail.channel", 7], "message": "not an object"},
		{"id": 13, "channel": ["db", "res.partner", 3], "message": {"info": "unsubscribe", "id": 7}}
	]`)

	batch, lastID, err := DecodeBatch(data)
	require.Error(t, err)
	require.Equal(t, int64(13), lastID)
	require.Len(t, batch, 2)
	require.Equal(t, models.NotificationPresence, batch[0].Kind)
	require.Equal(t, models.NotificationUnsubscribe, batch[1].Kind)
}

func TestNewSubscribeNeverSendsNullPartners(t *testing.T) {
	payload, err := json.Marshal(newSubscribe(5, nil))
	require.NoError(t, err)
	require.JSONEq(t, `{"event_name":"subscribe","data":{"channels":[],"last":5,"options":{"bus_presence_partner_ids":[]}}}`, string(payload))
}
