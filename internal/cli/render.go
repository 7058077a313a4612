package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tOgg1/discuss/internal/htmltext"
	"github.com/tOgg1/discuss/internal/models"
)

const (
	bodyPreviewWidth = 120
	messageTimeShort = "15:04"
	messageTimeLong  = "2006-01-02 15:04"
)

type channelView struct {
	ID         models.ChannelID   `json:"id"`
	Name       string             `json:"name"`
	Type       models.ChannelType `json:"type"`
	Unread     int                `json:"unread"`
	Needaction int                `json:"needaction"`
	Partner    int64              `json:"direct_partner_id,omitempty"`
	Status     string             `json:"status,omitempty"`
}

type messageView struct {
	ID         models.MessageID   `json:"id"`
	Author     string             `json:"author"`
	Date       time.Time          `json:"date"`
	Body       string             `json:"body"`
	Starred    bool               `json:"starred"`
	Needaction bool               `json:"needaction"`
	Channels   []models.ChannelID `json:"channel_ids"`
	Model      string             `json:"model,omitempty"`
	ResID      int64              `json:"res_id,omitempty"`
}

type eventView struct {
	Type      models.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	ChannelID models.ChannelID `json:"channel_id,omitempty"`
	MessageID models.MessageID `json:"message_id,omitempty"`
	Counter   int              `json:"counter,omitempty"`
	Message   *messageView     `json:"message,omitempty"`
	Notice    *models.Notice   `json:"notice,omitempty"`
}

func newChannelView(ch *models.Channel) channelView {
	return channelView{
		ID:         ch.ID,
		Name:       ch.Name,
		Type:       ch.Type,
		Unread:     ch.UnreadCounter,
		Needaction: ch.NeedactionCounter,
		Partner:    ch.DirectPartnerID,
		Status:     ch.Status,
	}
}

func newMessageView(msg *models.Message) messageView {
	return messageView{
		ID:         msg.ID,
		Author:     msg.DisplayedAuthor,
		Date:       msg.Date,
		Body:       htmltext.StripHTML(msg.Body),
		Starred:    msg.IsStarred(),
		Needaction: msg.IsNeedaction(),
		Channels:   msg.RealChannelIDs(),
		Model:      msg.Model,
		ResID:      msg.ResID,
	}
}

func newEventView(ev *models.Event) eventView {
	view := eventView{
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
		Counter:   ev.Counter,
		Notice:    ev.Notice,
	}
	if ev.Message != nil {
		msg := newMessageView(ev.Message)
		view.Message = &msg
	}
	return view
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONLine(out io.Writer, v any) error {
	return json.NewEncoder(out).Encode(v)
}

func channelRows(channels []*models.Channel) [][]string {
	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		name := ch.Name
		if ch.UnreadCounter > 0 {
			name = unreadStyle.Render(name)
		}
		rows = append(rows, []string{
			string(ch.ID),
			name,
			string(ch.Type),
			counterCell(ch.UnreadCounter, unreadStyle),
			counterCell(ch.NeedactionCounter, needactionStyle),
		})
	}
	return rows
}

// formatMessage renders a message on one line:
// "<id>  <time>  <author>: <body>" with star and needaction markers.
func formatMessage(msg *models.Message, now time.Time) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%6s", msg.ID)))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(formatMessageTime(msg.Date, now)))
	b.WriteString("  ")
	if msg.IsNeedaction() {
		b.WriteString(needactionStyle.Render("●") + " ")
	}
	if msg.IsStarred() {
		b.WriteString("★ ")
	}
	author := msg.DisplayedAuthor
	if author == "" {
		author = "?"
	}
	b.WriteString(authorStyle.Render(author))
	b.WriteString(": ")
	body := htmltext.Inline(msg.Body)
	if body == "" && len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, string(att.Name))
		}
		body = "[" + strings.Join(names, ", ") + "]"
	}
	if body == "" && msg.SubtypeDescription != "" {
		body = mutedStyle.Render(msg.SubtypeDescription)
	}
	b.WriteString(htmltext.Truncate(body, bodyPreviewWidth))
	return b.String()
}

func formatMessageTime(t, now time.Time) string {
	if t.IsZero() {
		return strings.Repeat(" ", len(messageTimeShort))
	}
	local := t.Local()
	y1, m1, d1 := local.Date()
	y2, m2, d2 := now.Local().Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return local.Format(messageTimeShort)
	}
	return local.Format(messageTimeLong)
}

// formatEvent renders an event for the watch stream. Events without a
// human-readable form return "".
func formatEvent(ev *models.Event, now time.Time) string {
	switch ev.Type {
	case models.EventTypeNewMessage:
		if ev.Message == nil {
			return ""
		}
		prefix := ""
		if ev.Channel != nil {
			prefix = mutedStyle.Render("#"+ev.Channel.Name) + " "
		}
		return prefix + formatMessage(ev.Message, now)
	case models.EventTypeNewChannel:
		if ev.Channel == nil {
			return ""
		}
		return noticeStyle.Render(fmt.Sprintf("joined #%s", ev.Channel.Name))
	case models.EventTypeUnsubscribed:
		return noticeStyle.Render(fmt.Sprintf("left channel %s", ev.ChannelID))
	case models.EventTypeNeedactionUpdated:
		return mutedStyle.Render(fmt.Sprintf("inbox: %d", ev.Counter))
	case models.EventTypeStarredUpdated:
		return mutedStyle.Render(fmt.Sprintf("starred: %d", ev.Counter))
	case models.EventTypeNotice:
		if ev.Notice == nil {
			return ""
		}
		return noticeStyle.Render(ev.Notice.Title+": ") + htmltext.Inline(ev.Notice.Body)
	default:
		return ""
	}
}
