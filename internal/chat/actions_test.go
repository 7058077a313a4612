package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/discuss/internal/models"
)

func TestConcurrentJoinsShareOneRequest(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	h.backend.joinInfo["9"] = publicChannel("9", "ops")
	h.backend.joinGate = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*models.Channel, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.m.JoinChannel(context.Background(), "9")
		}(i)
	}

	require.Eventually(t, func() bool {
		h.backend.mu.Lock()
		defer h.backend.mu.Unlock()
		return h.backend.joinCalls == 1
	}, 5*time.Second, 5*time.Millisecond)
	close(h.backend.joinGate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Same(t, results[0], results[1])
	require.Equal(t, 1, h.backend.joinCalls)
	require.True(t, h.m.Channel("9").Autoswitch)

	again, err := h.m.JoinChannel(context.Background(), "9")
	require.NoError(t, err)
	require.Same(t, results[0], again)
	require.Equal(t, 1, h.backend.joinCalls)
}

func TestCreateChannelAndDM(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	ctx := context.Background()

	ch, err := h.m.CreateChannel(ctx, "  launch ", models.ChannelTypePrivate)
	require.NoError(t, err)
	require.Equal(t, []string{"launch:private"}, h.backend.created)
	require.Equal(t, models.ChannelTypePrivate, ch.Type)

	_, err = h.m.CreateChannel(ctx, "x", models.ChannelTypeDM)
	require.Error(t, err)

	h.backend.dmInfo = dmChannel("21", models.Partner{ID: 50, Name: "Carol"})
	dm, err := h.m.CreateDM(ctx, 50)
	require.NoError(t, err)
	require.Equal(t, models.ChannelTypeDM, dm.Type)
	require.Equal(t, "Carol", dm.Name)
	require.Equal(t, []int64{50}, h.presence.last())
}

func TestOpenAndDetachDMOpensChatWindow(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	h.backend.dmInfo = dmChannel("21", models.Partner{ID: 50, Name: "Carol"})

	ch, err := h.m.OpenAndDetachDM(context.Background(), 50)
	require.NoError(t, err)
	require.True(t, ch.IsDetached)
	require.Len(t, h.log.ofType(models.EventTypeOpenChat), 1)
}

func TestOpenChannelDependsOnClientAction(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})

	require.NoError(t, h.m.OpenChannel("7"))
	h.m.SetClientActionOpen(true)
	require.NoError(t, h.m.OpenChannel("7"))

	require.Len(t, h.log.ofType(models.EventTypeDetachChannel), 1)
	require.Len(t, h.log.ofType(models.EventTypeOpenChannel), 1)
	require.ErrorIs(t, h.m.OpenChannel("99"), ErrChannelNotFound)
}

func TestWindowOperationsUseUUID(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	ctx := context.Background()

	require.NoError(t, h.m.DetachChannel(ctx, "7"))
	require.NoError(t, h.m.FoldChannel(ctx, "7", true))
	require.NoError(t, h.m.FoldChannel(ctx, "7", false))
	require.NoError(t, h.m.CloseChatSession(ctx, "7"))

	require.Equal(t, []string{"uuid-7"}, h.backend.minimize)
	require.Equal(t, []string{"uuid-7:folded", "uuid-7:open", "uuid-7:closed"}, h.backend.folds)
	require.ErrorIs(t, h.m.DetachChannel(ctx, "99"), ErrChannelNotFound)
}

func TestUnsubscribeByChannelType(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(
		publicChannel("7", "general"),
		dmChannel("2", models.Partner{ID: 42, Name: "Alice"}),
	)})
	ctx := context.Background()

	require.NoError(t, h.m.Unsubscribe(ctx, "7"))
	require.NoError(t, h.m.Unsubscribe(ctx, "2"))

	require.Equal(t, []models.ChannelID{"7"}, h.backend.leaves)
	require.Equal(t, []string{"uuid-2"}, h.backend.pins)
	// The registry only changes on the server's confirmation.
	require.NotNil(t, h.m.Channel("7"))
}

func TestMarkAllAsRead(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	ctx := context.Background()

	require.NoError(t, h.m.MarkAllAsRead(ctx, models.InboxChannelID, nil))
	require.Empty(t, h.backend.markAll)

	h.m.HandleNotifications(ctx, []models.Notification{needactionNote(message(100, 5, "7"))})

	require.NoError(t, h.m.MarkAllAsRead(ctx, models.InboxChannelID, nil))
	require.NoError(t, h.m.MarkAllAsRead(ctx, "7", nil))
	require.Len(t, h.backend.markAll, 2)
	require.Empty(t, h.backend.markAll[0].channelIDs)
	require.Equal(t, []models.ChannelID{"7"}, h.backend.markAll[1].channelIDs)
}

func TestMarkAsReadSkipsHandledMessages(t *testing.T) {
	h := newHarness(t, models.InitResult{ChannelSlots: slots(publicChannel("7", "general"))})
	ctx := context.Background()
	h.m.HandleNotifications(ctx, []models.Notification{
		needactionNote(message(100, 5, "7")),
		channelNote(message(101, 5, "7"), "7"),
	})

	require.NoError(t, h.m.MarkAsRead(ctx, []models.MessageID{100, 101, 500}))
	require.Equal(t, [][]models.MessageID{{100, 500}}, h.backend.markRead)
}

func TestPostMessage(t *testing.T) {
	h := newHarness(t, models.InitResult{
		ChannelSlots: slots(publicChannel("7", "general")),
		Shortcodes: []models.Shortcode{
			{ShortcodeType: "image", Source: ":)", Substitution: "<img src='smile'/>", UnicodeSource: "😊"},
			{ShortcodeType: "text", Source: "ty", Substitution: "Thank you!"},
		},
	})
	h.backend.postedID = 300
	ctx := context.Background()

	id, err := h.m.PostMessage(ctx, PostTarget{ChannelID: "7"}, models.PostPayload{Body: " hello :) "})
	require.NoError(t, err)
	require.Equal(t, models.MessageID(300), id)
	require.Equal(t, "hello 😊", h.backend.posted[0].Body)

	_, err = h.m.PostMessage(ctx, PostTarget{ChannelID: "7"}, models.PostPayload{Body: "   "})
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = h.m.PostMessage(ctx, PostTarget{}, models.PostPayload{Body: "hi"})
	require.Error(t, err)

	require.Len(t, h.m.CannedResponses(), 1)
	require.Len(t, h.m.Emojis(), 1)
}

func TestPostDocumentMessageStoresIt(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	h.backend.postedID = 301
	h.backend.formatted[301] = message(301, selfPartnerID)

	id, err := h.m.PostMessage(context.Background(), PostTarget{Model: "crm.lead", ResID: 4}, models.PostPayload{Body: "note"})
	require.NoError(t, err)

	msg := h.m.Message(id)
	require.NotNil(t, msg)
	require.Equal(t, "crm.lead", msg.Model)
	require.Equal(t, int64(4), msg.ResID)
	require.True(t, msg.IsAuthor)
}

func TestIncomingEmojiSubstitution(t *testing.T) {
	h := newHarness(t, models.InitResult{
		ChannelSlots: slots(publicChannel("7", "general")),
		Shortcodes: []models.Shortcode{
			{ShortcodeType: "image", Source: ":)", Substitution: "<img src='smile'/>", UnicodeSource: "😊"},
		},
	})

	data := message(10, 5, "7")
	data.Body = "<p>hi :)</p>"
	other := message(11, 5, "7")
	other.Body = "<p>a:)b</p>"
	h.m.HandleNotifications(context.Background(), []models.Notification{channelNote(data, "7"), channelNote(other, "7")})

	require.Equal(t, `<p>hi  <span class="o_mail_emoji"><img src='smile'/></span> </p>`, h.m.Message(10).Body)
	require.Equal(t, "<p>a:)b</p>", h.m.Message(11).Body)
}

func TestCommandsFilteredByChannelType(t *testing.T) {
	h := newHarness(t, models.InitResult{
		ChannelSlots: slots(publicChannel("7", "general"), dmChannel("2", models.Partner{ID: 42, Name: "Alice"})),
		Commands: []models.Command{
			{Name: "help"},
			{Name: "leave", ChannelTypes: []string{"channel"}},
			{Name: "who", ChannelTypes: []string{"channel", "chat"}},
		},
	})

	names := func(cmds []models.Command) []string {
		var out []string
		for _, c := range cmds {
			out = append(out, c.Name)
		}
		return out
	}
	require.Equal(t, []string{"help", "leave", "who"}, names(h.m.Commands("7")))
	require.Equal(t, []string{"help", "who"}, names(h.m.Commands("2")))
	require.Nil(t, h.m.Commands("99"))
}

func TestSearchPartnerPrefersSuggestions(t *testing.T) {
	h := newHarness(t, models.InitResult{
		MentionPartnerSuggestions: [][]models.Partner{
			{{ID: 10, Name: "Zoé Martin"}, {ID: selfPartnerID, Name: "Zoe Self"}},
			{{ID: 11, Name: "Anna Zoellner"}},
		},
	})
	ctx := context.Background()

	found, err := h.m.SearchPartner(ctx, "ZOE", 0)
	require.NoError(t, err)
	require.Equal(t, []models.Partner{{ID: 11, Name: "Anna Zoellner"}, {ID: 10, Name: "Zoé Martin"}}, found)
	require.Empty(t, h.backend.searchCalls)

	h.backend.searchResult = []models.Partner{{ID: 20, Name: "Yann"}, {ID: 21, Name: "Xavier"}}
	found, err = h.m.SearchPartner(ctx, "nobody", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"nobody"}, h.backend.searchCalls)
	require.Equal(t, "Xavier", string(found[0].Name))
}

func TestMentionSuggestionsFetchListenersOnce(t *testing.T) {
	h := newHarness(t, models.InitResult{
		ChannelSlots:              slots(publicChannel("7", "general")),
		MentionPartnerSuggestions: [][]models.Partner{{{ID: 10, Name: "Zoé"}}},
	})
	h.backend.listeners = []models.Partner{{ID: 12, Name: "Li"}}
	ctx := context.Background()

	global, err := h.m.MentionPartnerSuggestions(ctx, "")
	require.NoError(t, err)
	require.Len(t, global, 1)

	for range 2 {
		members, err := h.m.MentionPartnerSuggestions(ctx, "7")
		require.NoError(t, err)
		require.Equal(t, [][]models.Partner{{{ID: 12, Name: "Li"}}}, members)
	}
	require.Equal(t, 1, h.backend.listenerCalls)
}

func TestChannelsPreviewOrdering(t *testing.T) {
	withLast := publicChannel("8", "announcements")
	last := message(80, 5, "8")
	withLast.LastMessage = &last
	unread := publicChannel("9", "support")
	unread.MessageUnreadCounter = 2

	h := newHarness(t, models.InitResult{ChannelSlots: slots(
		dmChannel("7", models.Partner{ID: 42, Name: "Alice"}),
		withLast,
		unread,
	)})
	dmLast := message(70, 42, "7")
	dmLast.Body = "<p>see <b>you</b></p>"
	h.backend.previews = []models.ChannelPreview{
		{ID: "7", LastMessage: &dmLast},
		{ID: "9", LastMessage: nil},
	}

	rows, err := h.m.ChannelsPreview(context.Background(), []models.ChannelID{"7", "8", "9"})
	require.NoError(t, err)

	var order []models.ChannelID
	for _, r := range rows {
		order = append(order, r.ID)
	}
	require.Equal(t, []models.ChannelID{"9", "7", "8"}, order)
	require.Equal(t, 1, h.backend.previewCalls)
	require.Equal(t, "see you", rows[1].LastMessagePreview)
	require.Equal(t, "/web/image/res.partner/42/image_small", rows[1].ImageSrc)
	require.Equal(t, "/web/image/mail.channel/8/image_small", rows[2].ImageSrc)
	require.Same(t, h.m.Message(70), h.m.Channel("7").LastMessage)
}

func TestInboxPreviewRows(t *testing.T) {
	h := newHarness(t, models.InitResult{})
	data := message(100, 5)
	data.Model = "crm.lead"
	data.RecordName = "Big deal"
	data.ModuleIcon = "/crm/static/description/icon.png"
	h.m.HandleNotifications(context.Background(), []models.Notification{needactionNote(data)})

	rows, err := h.m.ChannelsPreview(context.Background(), []models.ChannelID{models.InboxChannelID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.InboxChannelID, rows[0].ID)
	require.Equal(t, models.MessageID(100), rows[0].MessageID)
	require.Equal(t, "Big deal", rows[0].Name)
	require.Equal(t, "/crm/static/description/icon.png", rows[0].ImageSrc)
	require.Zero(t, h.backend.previewCalls)
}
