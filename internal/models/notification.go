package models

import "encoding/json"

// Origin models carried by push notifications.
const (
	OriginNeedaction = "ir.needaction"
	OriginChannel    = "mail.channel"
	OriginPartner    = "res.partner"
	OriginPresence   = "bus.presence"
)

// NotificationKind tags a decoded push notification.
type NotificationKind int

const (
	NotificationUnknown NotificationKind = iota
	NotificationNeedaction
	NotificationChannelMessage
	NotificationUnsubscribe
	NotificationToggleStar
	NotificationMarkAsRead
	NotificationChannelSeen
	NotificationTransientMessage
	NotificationActivityUpdated
	// NotificationChatSession is the partner catch-all: session state
	// payloads are not reliably tagged, so anything unrecognized on the
	// partner origin lands here.
	NotificationChatSession
	NotificationPresence
)

var notificationKindNames = map[NotificationKind]string{
	NotificationUnknown:          "unknown",
	NotificationNeedaction:       "needaction",
	NotificationChannelMessage:   "channel_message",
	NotificationUnsubscribe:      "unsubscribe",
	NotificationToggleStar:       "toggle_star",
	NotificationMarkAsRead:       "mark_as_read",
	NotificationChannelSeen:      "channel_seen",
	NotificationTransientMessage: "transient_message",
	NotificationActivityUpdated:  "activity_updated",
	NotificationChatSession:      "chat_session",
	NotificationPresence:         "presence",
}

func (k NotificationKind) String() string {
	if name, ok := notificationKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Origin is the (database, model, id) tuple a notification was sent on.
type Origin struct {
	Database string
	Model    string
	ID       ChannelID
}

// Notification is one decoded push notification. Exactly one of the
// variant fields is set, as selected by Kind.
type Notification struct {
	Kind   NotificationKind
	Origin Origin

	Message     *MessageData
	Unsubscribe *UnsubscribeNotice
	ToggleStar  *ToggleStarNotice
	MarkAsRead  *MarkAsReadNotice
	ChannelSeen *ChannelSeenNotice
	Transient   *MessageData
	Activity    json.RawMessage
	ChatSession *ChannelInfo
	Presence    *PresenceNotice
}

// TargetChannel returns the channel id a notification concerns on its
// origin, used to discard traffic racing an unsubscribe.
func (n Notification) TargetChannel() ChannelID {
	return n.Origin.ID
}

// UnsubscribeNotice reports that the session left a channel.
type UnsubscribeNotice struct {
	ID ChannelID `json:"id"`
}

// ToggleStarNotice reports a star state change on messages.
type ToggleStarNotice struct {
	MessageIDs []MessageID `json:"message_ids"`
	Starred    bool        `json:"starred"`
}

// MarkAsReadNotice reports needaction messages marked as done. An empty
// ChannelIDs means every channel ("mark all read" in the inbox).
type MarkAsReadNotice struct {
	MessageIDs []MessageID `json:"message_ids"`
	ChannelIDs []ChannelID `json:"channel_ids"`
}

// ChannelSeenNotice reports the last message seen on a channel.
type ChannelSeenNotice struct {
	ID            ChannelID `json:"id"`
	LastMessageID MessageID `json:"last_message_id"`
}

// PresenceNotice reports a partner's presence status.
type PresenceNotice struct {
	ID       int64 `json:"id"`
	IMStatus Text  `json:"im_status"`
}
