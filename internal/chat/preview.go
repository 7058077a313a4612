package chat

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tOgg1/discuss/internal/htmltext"
	"github.com/tOgg1/discuss/internal/models"
)

// Preview is one row of the conversation list: a channel, or a needaction
// message when the Inbox is previewed.
type Preview struct {
	ID        models.ChannelID
	MessageID models.MessageID
	Name      string
	IsChat    bool
	Status    string
	Unread    int
	ImageSrc  string

	LastMessage        *models.Message
	LastMessagePreview string
	LastMessageDate    time.Time
}

// ChannelsPreview builds the preview rows of the given channels, most
// relevant first. Including the Inbox adds one row per needaction message.
// Channels without a known last message are resolved with one server call.
func (m *Manager) ChannelsPreview(ctx context.Context, ids []models.ChannelID) ([]Preview, error) {
	m.mu.Lock()
	var rows []Preview
	var missing []models.ChannelID
	for _, id := range ids {
		ch := m.byID[id]
		if ch == nil {
			continue
		}
		if id == models.InboxChannelID {
			for _, msg := range ch.DefaultCache().Messages {
				rows = append(rows, inboxPreview(msg))
			}
			continue
		}
		row := channelPreview(ch)
		if row.LastMessage == nil {
			missing = append(missing, id)
		}
		rows = append(rows, row)
	}
	m.mu.Unlock()

	if len(missing) > 0 {
		if err := m.resolvePreviews(ctx, rows, missing); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return previewLess(rows[i], rows[j]) })
	for i := range rows {
		if msg := rows[i].LastMessage; msg != nil {
			rows[i].LastMessagePreview = htmltext.Inline(msg.Body)
			rows[i].LastMessageDate = msg.Date
		}
	}
	return rows, nil
}

func (m *Manager) resolvePreviews(ctx context.Context, rows []Preview, missing []models.ChannelID) error {
	sorted := slices.Clone(missing)
	slices.Sort(sorted)
	keys := make([]string, len(sorted))
	for i, id := range sorted {
		keys[i] = string(id)
	}

	previews, _, err := m.previews.Do(ctx, strings.Join(keys, ","), func(ctx context.Context) ([]models.ChannelPreview, error) {
		return m.backend.FetchPreview(ctx, sorted)
	})
	if err != nil {
		return fmt.Errorf("fetch channel previews: %w", err)
	}

	m.lock()
	defer m.unlock()
	byChannel := make(map[models.ChannelID]*models.Message, len(previews))
	for _, p := range previews {
		if p.LastMessage == nil {
			continue
		}
		byChannel[p.ID] = m.addMessage(p.LastMessage, addOptions{})
	}
	for i := range rows {
		if rows[i].LastMessage != nil || rows[i].MessageID != 0 {
			continue
		}
		if msg, ok := byChannel[rows[i].ID]; ok {
			rows[i].LastMessage = msg
		}
	}
	return nil
}

func inboxPreview(msg *models.Message) Preview {
	name := msg.RecordName
	if name == "" {
		name = msg.Subject
	}
	if name == "" {
		name = msg.DisplayedAuthor
	}
	image := msg.ModuleIcon
	if image == "" {
		image = msg.AvatarSrc
	}
	return Preview{
		ID:          models.InboxChannelID,
		MessageID:   msg.ID,
		Name:        name,
		ImageSrc:    image,
		LastMessage: msg,
	}
}

func channelPreview(ch *models.Channel) Preview {
	row := Preview{
		ID:          ch.ID,
		Name:        ch.Name,
		IsChat:      ch.IsChat,
		Status:      ch.Status,
		Unread:      ch.UnreadCounter,
		LastMessage: ch.LastMessage,
	}
	if row.LastMessage == nil {
		if msgs := ch.DefaultCache().Messages; len(msgs) > 0 {
			row.LastMessage = msgs[len(msgs)-1]
		}
	}
	switch {
	case ch.Type == models.ChannelTypeDM:
		row.ImageSrc = "/web/image/res.partner/" + strconv.FormatInt(ch.DirectPartnerID, 10) + "/image_small"
	case !ch.ID.IsVirtual():
		row.ImageSrc = "/web/image/mail.channel/" + string(ch.ID) + "/image_small"
	default:
		row.ImageSrc = defaultAvatar
	}
	return row
}

// previewLess orders unread rows first, then conversations, then rows
// with a last message, newest first.
func previewLess(a, b Preview) bool {
	if ua, ub := min(a.Unread, 1), min(b.Unread, 1); ua != ub {
		return ua > ub
	}
	if a.IsChat != b.IsChat {
		return a.IsChat
	}
	if (a.LastMessage != nil) != (b.LastMessage != nil) {
		return a.LastMessage != nil
	}
	if a.LastMessage != nil && b.LastMessage != nil {
		return a.LastMessage.Date.After(b.LastMessage.Date)
	}
	return false
}
