package chat

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/discuss/internal/models"
)

func page(from, to models.MessageID, channel models.ChannelID) []models.MessageData {
	var out []models.MessageData
	for id := from; id <= to; id++ {
		out = append(out, message(id, 5, channel))
	}
	return out
}

func messageIDs(msgs []*models.Message) []models.MessageID {
	out := make([]models.MessageID, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.ID)
	}
	return out
}

func TestStoreStaysOrderedWithoutDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		pushed  []models.MessageID
		fetched []models.MessageID
		dup     models.MessageID
		want    []models.MessageID
	}{
		{
			name:    "fetched page interleaves pushed messages",
			pushed:  []models.MessageID{30, 10},
			fetched: []models.MessageID{20, 10, 25, 5},
			dup:     10,
			want:    []models.MessageID{5, 10, 20, 25, 30},
		},
		{
			name:    "push descending then fetch older",
			pushed:  []models.MessageID{9, 8, 7},
			fetched: []models.MessageID{1, 7, 3},
			dup:     7,
			want:    []models.MessageID{1, 3, 7, 8, 9},
		},
		{
			name:    "same message pushed twice",
			pushed:  []models.MessageID{4, 2, 4},
			fetched: []models.MessageID{6, 2},
			dup:     4,
			want:    []models.MessageID{2, 4, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
			ctx := context.Background()

			var first *models.Message
			for _, id := range tt.pushed {
				h.m.HandleNotifications(ctx, []models.Notification{channelNote(message(id, 5, "7"), "7")})
				if id == tt.dup && first == nil {
					first = h.m.Message(id)
				}
			}
			require.NotNil(t, first)

			h.backend.fetch = func(models.Domain, int) ([]models.MessageData, error) {
				out := make([]models.MessageData, 0, len(tt.fetched))
				for _, id := range tt.fetched {
					out = append(out, message(id, 5, "7"))
				}
				return out, nil
			}
			_, err := h.m.GetMessages(ctx, Query{ChannelID: "7"})
			require.NoError(t, err)

			all := h.m.Messages()
			require.Len(t, all, len(tt.want))
			require.Equal(t, tt.want, messageIDs(all))
			require.True(t, slices.IsSortedFunc(all, func(a, b *models.Message) int { return cmp.Compare(a.ID, b.ID) }))
			require.Same(t, first, h.m.Message(tt.dup))
		})
	}
}

func TestGetMessagesFetchesOnceThenServesCache(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	h.backend.fetch = func(models.Domain, int) ([]models.MessageData, error) {
		return page(10, 12, "7"), nil
	}
	ctx := context.Background()

	msgs, err := h.m.GetMessages(ctx, Query{ChannelID: "7"})
	require.NoError(t, err)
	require.Equal(t, []models.MessageID{10, 11, 12}, messageIDs(msgs))
	require.True(t, h.m.AllHistoryLoaded("7", nil))
	require.Equal(t, models.Domain{{Field: "channel_ids", Operator: "in", Value: int64(7)}}, h.backend.fetchCalls[0])

	again, err := h.m.GetMessages(ctx, Query{ChannelID: "7"})
	require.NoError(t, err)
	require.Equal(t, messageIDs(msgs), messageIDs(again))
	require.Len(t, h.backend.fetchCalls, 1)

	// Fetched pages are merged silently.
	require.Empty(t, h.log.ofType(models.EventTypeNewMessage))
	require.Equal(t, 0, h.m.Channel("7").UnreadCounter)
}

func TestLoadMoreFetchesOlderPage(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	calls := 0
	h.backend.fetch = func(models.Domain, int) ([]models.MessageData, error) {
		calls++
		if calls == 1 {
			return page(50, 74, "7"), nil
		}
		return page(40, 49, "7"), nil
	}
	ctx := context.Background()

	_, err := h.m.GetMessages(ctx, Query{ChannelID: "7"})
	require.NoError(t, err)
	require.False(t, h.m.AllHistoryLoaded("7", nil))

	msgs, err := h.m.GetMessages(ctx, Query{ChannelID: "7", LoadMore: true})
	require.NoError(t, err)
	require.Len(t, msgs, 35)
	require.Equal(t, models.MessageID(40), msgs[0].ID)
	require.True(t, h.m.AllHistoryLoaded("7", nil))

	more := h.backend.fetchCalls[1]
	require.Equal(t, models.Term{Field: "id", Operator: "<", Value: float64(50)}, more[0])
	require.Equal(t, "channel_ids", more[1].Field)
}

func TestMailboxDomains(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	ctx := context.Background()

	_, err := h.m.GetMessages(ctx, Query{ChannelID: models.InboxChannelID})
	require.NoError(t, err)
	_, err = h.m.GetMessages(ctx, Query{ChannelID: models.StarredChannelID})
	require.NoError(t, err)

	require.Equal(t, models.Domain{{Field: "needaction", Operator: "=", Value: true}}, h.backend.fetchCalls[0])
	require.Equal(t, models.Domain{{Field: "starred", Operator: "=", Value: true}}, h.backend.fetchCalls[1])
}

func TestFilteredViewIsCachedSeparately(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	h.backend.fetch = func(domain models.Domain, _ int) ([]models.MessageData, error) {
		if len(domain) > 1 {
			return page(11, 11, "7"), nil
		}
		return page(10, 12, "7"), nil
	}
	ctx := context.Background()
	filter := models.Domain{{Field: "author_id", Operator: "=", Value: 5}}

	filtered, err := h.m.GetMessages(ctx, Query{ChannelID: "7", Domain: filter})
	require.NoError(t, err)
	require.Equal(t, []models.MessageID{11}, messageIDs(filtered))

	all, err := h.m.GetMessages(ctx, Query{ChannelID: "7"})
	require.NoError(t, err)
	require.Equal(t, []models.MessageID{10, 11, 12}, messageIDs(all))
	require.Len(t, h.m.Messages(), 3)
}

func TestFetchFailureLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	h.backend.fetch = func(models.Domain, int) ([]models.MessageData, error) {
		return nil, errors.New("timeout")
	}

	_, err := h.m.GetMessages(context.Background(), Query{ChannelID: "7"})
	require.ErrorContains(t, err, "timeout")
	require.Empty(t, h.m.Messages())
	require.False(t, h.m.Channel("7").DefaultCache().Loaded)
}

func TestGetMessagesUnknownChannel(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	_, err := h.m.GetMessages(context.Background(), Query{ChannelID: "99"})
	require.ErrorIs(t, err, ErrChannelNotFound)

	_, err = h.m.GetMessages(context.Background(), Query{})
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestGetMessagesByIDLoadsMissingAndMarksRead(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	ctx := context.Background()
	h.m.HandleNotifications(ctx, []models.Notification{channelNote(message(10, 5, "7"), "7")})

	h.backend.formatted[12] = message(12, 5, "7")
	msgs, err := h.m.GetMessages(ctx, Query{IDs: []models.MessageID{12, 10}})
	require.NoError(t, err)
	require.Equal(t, []models.MessageID{10, 12}, messageIDs(msgs))
	require.Equal(t, [][]models.MessageID{{12}}, h.backend.formatCalls)

	// 10 is known and not needaction; 12 too once loaded.
	require.Empty(t, h.backend.markRead)

	_, err = h.m.GetMessages(ctx, Query{IDs: []models.MessageID{10, 12}})
	require.NoError(t, err)
	require.Len(t, h.backend.formatCalls, 1)
}

func TestDocumentThread(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	h.backend.fetch = func(models.Domain, int) ([]models.MessageData, error) {
		first := message(61, 5)
		first.Model = "crm.lead"
		second := message(60, 5)
		second.Model = "crm.lead"
		return []models.MessageData{first, second}, nil
	}

	msgs, err := h.m.GetMessages(context.Background(), Query{Model: "crm.lead", ResID: 4})
	require.NoError(t, err)
	require.Equal(t, []models.MessageID{60, 61}, messageIDs(msgs))
	require.Equal(t, models.Domain{
		{Field: "model", Operator: "=", Value: "crm.lead"},
		{Field: "res_id", Operator: "=", Value: int64(4)},
	}, h.backend.fetchCalls[0])

	h.m.RemoveChatterMessages("crm.lead")
	require.Empty(t, h.m.Messages())
}

func TestLastSeenMessageSkipsOwnAndSystem(t *testing.T) {
	seen := publicChannel("7", "general")
	seen.SeenMessageID = 10
	h := newHarness(t, models.InitResult{ChannelSlots: slots(seen)})

	own := message(11, selfPartnerID, "7")
	system := message(12, 5, "7")
	system.MessageType = "notification"
	h.backend.fetch = func(models.Domain, int) ([]models.MessageData, error) {
		return []models.MessageData{message(10, 5, "7"), own, system, message(13, 5, "7")}, nil
	}
	_, err := h.m.GetMessages(context.Background(), Query{ChannelID: "7"})
	require.NoError(t, err)

	last := h.m.LastSeenMessage("7")
	require.NotNil(t, last)
	require.Equal(t, models.MessageID(12), last.ID)
}

func TestMessageDecoration(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})

	data := message(10, 5, "7")
	data.Body = "<p>see https://example.com</p>"
	data.AttachmentIDs = []models.Attachment{{ID: 9, Name: "report.pdf"}}
	data.TrackingValueIDs = []models.TrackingValue{
		{FieldType: "date", OldValue: "2024-03-01", NewValue: "2024-03-05"},
		{FieldType: "datetime", NewValue: "2024-03-05 14:30:00"},
	}
	email := models.MessageData{ID: 11, EmailFrom: "ext@example.com", MessageType: "email"}
	anonymous := models.MessageData{ID: 12}

	h.m.HandleNotifications(context.Background(), []models.Notification{
		channelNote(data, "7"),
		{Kind: models.NotificationChannelMessage, Origin: models.Origin{Model: models.OriginChannel}, Message: &email},
		{Kind: models.NotificationChannelMessage, Origin: models.Origin{Model: models.OriginChannel}, Message: &anonymous},
	})

	msg := h.m.Message(10)
	require.Equal(t, "general", msg.OriginName)
	require.Equal(t, models.ChannelID("7"), msg.OriginID)
	require.Equal(t, "Bob", msg.DisplayedAuthor)
	require.True(t, msg.AuthorRedirect)
	require.Equal(t, "/web/image/res.partner/5/image_small", msg.AvatarSrc)
	require.Equal(t, "/mail/view?message_id=10", msg.URL)
	require.Contains(t, msg.Body, `<a href="https://example.com"`)
	require.Equal(t, "/web/content/9?download=true", msg.Attachments[0].URL)
	require.Equal(t, models.Text("March 1, 2024"), msg.TrackingValues[0].OldValue)
	require.Equal(t, models.Text("March 5, 2024 2:30 PM"), msg.TrackingValues[1].NewValue)

	mail := h.m.Message(11)
	require.Equal(t, "ext@example.com", mail.Mailto)
	require.Equal(t, "/mail/static/src/img/email_icon.png", mail.AvatarSrc)

	anon := h.m.Message(12)
	require.Equal(t, "Anonymous", anon.DisplayedAuthor)
	require.Equal(t, "/mail/static/src/img/smiley/avatar.jpg", anon.AvatarSrc)
}
