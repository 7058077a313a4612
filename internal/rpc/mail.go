package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tOgg1/discuss/internal/models"
)

const (
	modelChannel = "mail.channel"
	modelMessage = "mail.message"
	modelPartner = "res.partner"
)

// InitMessaging fetches the session bootstrap payload.
func (c *Client) InitMessaging(ctx context.Context) (models.InitResult, error) {
	var result models.InitResult
	params := map[string]any{"context": c.Session().UserContext}
	if err := c.call(ctx, "/mail/init_messaging", params, &result); err != nil {
		return models.InitResult{}, fmt.Errorf("init messaging: %w", err)
	}
	return result, nil
}

// FetchMessages returns at most limit messages matching domain, newest first.
func (c *Client) FetchMessages(ctx context.Context, domain models.Domain, limit int) ([]models.MessageData, error) {
	if domain == nil {
		domain = models.Domain{}
	}
	var out []models.MessageData
	err := c.CallKW(ctx, modelMessage, "message_fetch", []any{domain}, map[string]any{"limit": limit}, &out)
	return out, err
}

// MessageFormat returns the full representation of the given messages.
func (c *Client) MessageFormat(ctx context.Context, ids []models.MessageID) ([]models.MessageData, error) {
	var out []models.MessageData
	err := c.CallKW(ctx, modelMessage, "message_format", []any{ids}, nil, &out)
	return out, err
}

// JoinChannel joins a channel and returns its description.
func (c *Client) JoinChannel(ctx context.Context, id models.ChannelID) (models.ChannelInfo, error) {
	var out models.ChannelInfo
	err := c.CallKW(ctx, modelChannel, "channel_join_and_get_info", []any{[]models.ChannelID{id}}, nil, &out)
	return out, err
}

// CreateChannel creates a public or private channel.
func (c *Client) CreateChannel(ctx context.Context, name, privacy string) (models.ChannelInfo, error) {
	var out models.ChannelInfo
	err := c.CallKW(ctx, modelChannel, "channel_create", []any{name, privacy}, nil, &out)
	return out, err
}

// GetDMChannel returns (creating if needed) the direct conversation with a
// partner.
func (c *Client) GetDMChannel(ctx context.Context, partnerID int64) (models.ChannelInfo, error) {
	var out models.ChannelInfo
	err := c.CallKW(ctx, modelChannel, "channel_get", []any{[]int64{partnerID}}, nil, &out)
	return out, err
}

// GetAndMinimizeDM is GetDMChannel that also marks the chat window open.
func (c *Client) GetAndMinimizeDM(ctx context.Context, partnerID int64) (models.ChannelInfo, error) {
	var out models.ChannelInfo
	err := c.CallKW(ctx, modelChannel, "channel_get_and_minimize", []any{[]int64{partnerID}}, nil, &out)
	return out, err
}

// PostMessage posts to a channel, or runs the payload's command. It returns
// the new message id, zero for commands.
func (c *Client) PostMessage(ctx context.Context, channelID models.ChannelID, payload models.PostPayload) (models.MessageID, error) {
	method := "message_post"
	if payload.Command != "" {
		method = "execute_command"
	}
	kwargs := postKwargs(payload)
	kwargs["message_type"] = "comment"
	kwargs["content_subtype"] = "html"
	kwargs["subtype"] = "mail.mt_comment"
	var raw json.RawMessage
	if err := c.CallKW(ctx, modelChannel, method, []any{channelID}, kwargs, &raw); err != nil {
		return 0, err
	}
	return decodeMessageID(raw), nil
}

// PostDocumentMessage posts on a document thread and returns the new id.
func (c *Client) PostDocumentMessage(ctx context.Context, model string, resID int64, payload models.PostPayload) (models.MessageID, error) {
	var raw json.RawMessage
	if err := c.CallKW(ctx, model, "message_post", []any{resID}, postKwargs(payload), &raw); err != nil {
		return 0, err
	}
	return decodeMessageID(raw), nil
}

// MarkRead marks needaction messages as done.
func (c *Client) MarkRead(ctx context.Context, ids []models.MessageID) error {
	return c.CallKW(ctx, modelMessage, "set_message_done", []any{ids}, nil, nil)
}

// MarkAllRead marks every needaction message in channelIDs (all channels
// when empty) matching domain as done.
func (c *Client) MarkAllRead(ctx context.Context, channelIDs []models.ChannelID, domain models.Domain) error {
	if channelIDs == nil {
		channelIDs = []models.ChannelID{}
	}
	if domain == nil {
		domain = models.Domain{}
	}
	kwargs := map[string]any{"channel_ids": channelIDs, "domain": domain}
	return c.CallKW(ctx, modelMessage, "mark_all_as_read", nil, kwargs, nil)
}

// ToggleStar flips the starred flag of a message.
func (c *Client) ToggleStar(ctx context.Context, id models.MessageID) error {
	return c.CallKW(ctx, modelMessage, "toggle_message_starred", []any{[]models.MessageID{id}}, nil, nil)
}

// UnstarAll clears every starred message of the session.
func (c *Client) UnstarAll(ctx context.Context) error {
	return c.CallKW(ctx, modelMessage, "unstar_all", []any{[]int64{}}, nil, nil)
}

// ChannelSeen records that the last message of a channel was seen.
func (c *Client) ChannelSeen(ctx context.Context, id models.ChannelID) error {
	return c.CallKW(ctx, modelChannel, "channel_seen", []any{[]models.ChannelID{id}}, nil, nil)
}

// ChannelFold sets the chat window state: "open", "folded" or "closed".
// An empty state toggles between open and folded.
func (c *Client) ChannelFold(ctx context.Context, uuid, state string) error {
	kwargs := map[string]any{"uuid": uuid}
	if state != "" {
		kwargs["state"] = state
	}
	return c.CallKW(ctx, modelChannel, "channel_fold", nil, kwargs, nil)
}

// ChannelMinimize opens or closes the chat window of a channel.
func (c *Client) ChannelMinimize(ctx context.Context, uuid string, minimized bool) error {
	return c.CallKW(ctx, modelChannel, "channel_minimize", []any{uuid, minimized}, nil, nil)
}

// ChannelPin pins or unpins a conversation.
func (c *Client) ChannelPin(ctx context.Context, uuid string, pinned bool) error {
	return c.CallKW(ctx, modelChannel, "channel_pin", []any{uuid, pinned}, nil, nil)
}

// LeaveChannel unfollows a public or private channel.
func (c *Client) LeaveChannel(ctx context.Context, id models.ChannelID) error {
	return c.CallKW(ctx, modelChannel, "action_unfollow", []any{[]models.ChannelID{id}}, nil, nil)
}

// FetchPreview returns the last message of each channel.
func (c *Client) FetchPreview(ctx context.Context, ids []models.ChannelID) ([]models.ChannelPreview, error) {
	var out []models.ChannelPreview
	err := c.CallKW(ctx, modelChannel, "channel_fetch_preview", []any{ids}, nil, &out)
	return out, err
}

// FetchListeners returns the members of a channel.
func (c *Client) FetchListeners(ctx context.Context, uuid string) ([]models.Partner, error) {
	var out []models.Partner
	err := c.CallKW(ctx, modelChannel, "channel_fetch_listeners", []any{uuid}, nil, &out)
	return out, err
}

// SearchPartner looks up partners whose name matches term.
func (c *Client) SearchPartner(ctx context.Context, term string, limit int) ([]models.Partner, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.Partner
	err := c.CallKW(ctx, modelPartner, "im_search", []any{term, limit}, nil, &out)
	return out, err
}

func postKwargs(payload models.PostPayload) map[string]any {
	kwargs := map[string]any{"body": payload.Body}
	if payload.Subject != "" {
		kwargs["subject"] = payload.Subject
	}
	if len(payload.PartnerIDs) > 0 {
		kwargs["partner_ids"] = payload.PartnerIDs
	}
	if len(payload.AttachmentIDs) > 0 {
		kwargs["attachment_ids"] = payload.AttachmentIDs
	}
	if payload.MessageType != "" {
		kwargs["message_type"] = payload.MessageType
	}
	if payload.Subtype != "" {
		kwargs["subtype"] = payload.Subtype
	}
	if payload.ContentSubtype != "" {
		kwargs["content_subtype"] = payload.ContentSubtype
	}
	if payload.Command != "" {
		kwargs["command"] = payload.Command
	}
	return kwargs
}

// decodeMessageID accepts an id or a one-element id list.
func decodeMessageID(raw json.RawMessage) models.MessageID {
	var id models.MessageID
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var ids []models.MessageID
	if err := json.Unmarshal(raw, &ids); err == nil && len(ids) > 0 {
		return ids[0]
	}
	return 0
}
