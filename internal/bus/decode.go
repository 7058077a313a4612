package bus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tOgg1/discuss/internal/models"
)

// envelope is one notification as delivered on the wire.
type envelope struct {
	ID      int64           `json:"id"`
	Channel json.RawMessage `json:"channel"`
	Message json.RawMessage `json:"message"`
}

// partnerProbe holds the fields that discriminate partner payloads.
type partnerProbe struct {
	Info models.Text `json:"info"`
	Type models.Text `json:"type"`
}

// DecodeBatch decodes a wire batch. Notifications that fail to decode are
// skipped and reported in the joined error; lastID is the highest envelope
// id seen either way.
func DecodeBatch(data []byte) (batch []models.Notification, lastID int64, err error) {
	var envelopes []envelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, 0, fmt.Errorf("decode batch: %w", err)
	}

	var errs []error
	for _, env := range envelopes {
		if env.ID > lastID {
			lastID = env.ID
		}
		n, err := Decode(env.Channel, env.Message)
		if err != nil {
			errs = append(errs, fmt.Errorf("notification %d: %w", env.ID, err))
			continue
		}
		batch = append(batch, n)
	}
	return batch, lastID, errors.Join(errs...)
}

// Decode classifies one notification by its origin model and payload shape.
func Decode(channel, message json.RawMessage) (models.Notification, error) {
	origin, err := decodeOrigin(channel)
	if err != nil {
		return models.Notification{}, err
	}
	n := models.Notification{Origin: origin}

	switch origin.Model {
	case models.OriginNeedaction:
		n.Kind = models.NotificationNeedaction
		n.Message, err = decodeInto[models.MessageData](message)
	case models.OriginChannel:
		n.Kind = models.NotificationChannelMessage
		n.Message, err = decodeInto[models.MessageData](message)
	case models.OriginPartner:
		err = decodePartner(&n, message)
	case models.OriginPresence:
		n.Kind = models.NotificationPresence
		n.Presence, err = decodeInto[models.PresenceNotice](message)
	default:
		n.Kind = models.NotificationUnknown
	}
	if err != nil {
		return models.Notification{}, fmt.Errorf("%s payload: %w", origin.Model, err)
	}
	return n, nil
}

func decodePartner(n *models.Notification, message json.RawMessage) error {
	var probe partnerProbe
	if err := json.Unmarshal(message, &probe); err != nil {
		return err
	}

	var err error
	switch {
	case probe.Info == "unsubscribe":
		n.Kind = models.NotificationUnsubscribe
		n.Unsubscribe, err = decodeInto[models.UnsubscribeNotice](message)
	case probe.Type == "toggle_star":
		n.Kind = models.NotificationToggleStar
		n.ToggleStar, err = decodeInto[models.ToggleStarNotice](message)
	case probe.Type == "mark_as_read":
		n.Kind = models.NotificationMarkAsRead
		n.MarkAsRead, err = decodeInto[models.MarkAsReadNotice](message)
	case probe.Info == "channel_seen":
		n.Kind = models.NotificationChannelSeen
		n.ChannelSeen, err = decodeInto[models.ChannelSeenNotice](message)
	case probe.Info == "transient_message":
		n.Kind = models.NotificationTransientMessage
		n.Transient, err = decodeInto[models.MessageData](message)
	case probe.Type == "activity_updated":
		n.Kind = models.NotificationActivityUpdated
		n.Activity = append(json.RawMessage(nil), message...)
	default:
		n.Kind = models.NotificationChatSession
		n.ChatSession, err = decodeInto[models.ChannelInfo](message)
	}
	return err
}

func decodeInto[T any](data json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeOrigin accepts [db, model], [db, model, id] or a bare model name.
func decodeOrigin(raw json.RawMessage) (models.Origin, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return models.Origin{}, errors.New("missing channel")
	}
	if raw[0] == '"' {
		var model string
		if err := json.Unmarshal(raw, &model); err != nil {
			return models.Origin{}, fmt.Errorf("channel: %w", err)
		}
		return models.Origin{Model: model}, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return models.Origin{}, fmt.Errorf("channel: %w", err)
	}
	if len(parts) < 2 {
		return models.Origin{}, fmt.Errorf("channel: expected at least 2 elements, got %d", len(parts))
	}

	var origin models.Origin
	var db models.Text
	if err := json.Unmarshal(parts[0], &db); err != nil {
		return models.Origin{}, fmt.Errorf("channel database: %w", err)
	}
	origin.Database = string(db)
	if err := json.Unmarshal(parts[1], &origin.Model); err != nil {
		return models.Origin{}, fmt.Errorf("channel model: %w", err)
	}
	if len(parts) > 2 {
		if err := json.Unmarshal(parts[2], &origin.ID); err != nil {
			return models.Origin{}, fmt.Errorf("channel id: %w", err)
		}
	}
	return origin, nil
}

// subscribeMessage is sent after connecting and whenever the presence set
// changes.
type subscribeMessage struct {
	EventName string        `json:"event_name"`
	Data      subscribeData `json:"data"`
}

type subscribeData struct {
	Channels []string         `json:"channels"`
	Last     int64            `json:"last"`
	Options  subscribeOptions `json:"options"`
}

type subscribeOptions struct {
	PresencePartnerIDs []int64 `json:"bus_presence_partner_ids"`
}

func newSubscribe(last int64, partnerIDs []int64) subscribeMessage {
	if partnerIDs == nil {
		partnerIDs = []int64{}
	}
	return subscribeMessage{
		EventName: "subscribe",
		Data: subscribeData{
			Channels: []string{},
			Last:     last,
			Options:  subscribeOptions{PresencePartnerIDs: partnerIDs},
		},
	}
}
