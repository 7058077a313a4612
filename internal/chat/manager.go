// Package chat holds the client-side chat state of one session: the
// message store, the channel registry with its per-filter caches, the
// counters, and the dispatcher that applies push notifications to them.
//
// A Manager is safe for concurrent use. State is mutated under a single
// lock; server calls are made outside it. Events are published after the
// lock is released, synchronously, in the order they were raised.
//
// Messages and channels returned by queries are live entries of the store.
// Treat them as read-only.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/discuss/internal/events"
	"github.com/tOgg1/discuss/internal/inflight"
	"github.com/tOgg1/discuss/internal/logging"
	"github.com/tOgg1/discuss/internal/models"
	"github.com/tOgg1/discuss/internal/throttle"
)

const (
	defaultPageSize        = 25
	defaultChatterPageSize = 30
	defaultPreviewMaxSize  = 350
	defaultSeenThrottle    = 3 * time.Second
	seenCallTimeout        = 15 * time.Second
)

// Backend is the server collaborator. rpc.Client implements it.
type Backend interface {
	InitMessaging(ctx context.Context) (models.InitResult, error)
	FetchMessages(ctx context.Context, domain models.Domain, limit int) ([]models.MessageData, error)
	MessageFormat(ctx context.Context, ids []models.MessageID) ([]models.MessageData, error)
	JoinChannel(ctx context.Context, id models.ChannelID) (models.ChannelInfo, error)
	CreateChannel(ctx context.Context, name, privacy string) (models.ChannelInfo, error)
	GetDMChannel(ctx context.Context, partnerID int64) (models.ChannelInfo, error)
	GetAndMinimizeDM(ctx context.Context, partnerID int64) (models.ChannelInfo, error)
	PostMessage(ctx context.Context, channelID models.ChannelID, payload models.PostPayload) (models.MessageID, error)
	PostDocumentMessage(ctx context.Context, model string, resID int64, payload models.PostPayload) (models.MessageID, error)
	MarkRead(ctx context.Context, ids []models.MessageID) error
	MarkAllRead(ctx context.Context, channelIDs []models.ChannelID, domain models.Domain) error
	ToggleStar(ctx context.Context, id models.MessageID) error
	UnstarAll(ctx context.Context) error
	ChannelSeen(ctx context.Context, id models.ChannelID) error
	ChannelFold(ctx context.Context, uuid, state string) error
	ChannelMinimize(ctx context.Context, uuid string, minimized bool) error
	ChannelPin(ctx context.Context, uuid string, pinned bool) error
	LeaveChannel(ctx context.Context, id models.ChannelID) error
	FetchPreview(ctx context.Context, ids []models.ChannelID) ([]models.ChannelPreview, error)
	FetchListeners(ctx context.Context, uuid string) ([]models.Partner, error)
	SearchPartner(ctx context.Context, term string, limit int) ([]models.Partner, error)
}

// Notifier shows desktop notifications for incoming messages.
type Notifier interface {
	Notify(title, content string)
}

// PresenceSubscriber tracks the presence of a set of partners. bus.Client
// implements it.
type PresenceSubscriber interface {
	UpdatePresence(partnerIDs []int64)
}

// Options configures a Manager.
type Options struct {
	// PartnerID is the partner of the session user.
	PartnerID int64

	PageSize        int
	ChatterPageSize int
	PreviewMaxSize  int
	SeenThrottle    time.Duration

	// Mobile disables auto-opening chat windows on incoming messages.
	Mobile bool

	// IsDisplayed reports whether a channel is currently on screen. Focused
	// sessions skip notifications for displayed channels.
	IsDisplayed func(models.ChannelID) bool

	// Location formats tracked date values. Defaults to time.Local.
	Location *time.Location

	Publisher events.Publisher
	Notifier  Notifier
	Presence  PresenceSubscriber
	Logger    *zerolog.Logger
}

// Counters is a snapshot of the aggregate counters.
type Counters struct {
	Needaction int
	Starred    int
	// UnreadConversations counts channels with unread messages.
	UnreadConversations int
	// GlobalUnread counts messages notified while the session was unfocused.
	GlobalUnread int
}

// Manager is the chat state of one client session.
type Manager struct {
	backend   Backend
	opts      Options
	logger    zerolog.Logger
	publisher events.Publisher

	joins     inflight.Group[*models.Channel]
	fetches   inflight.Group[[]*models.Message]
	previews  inflight.Group[[]models.ChannelPreview]
	listeners inflight.Group[[]models.Partner]
	seen      *throttle.Throttler[models.ChannelID]

	mu       sync.Mutex
	started  bool
	messages []*models.Message
	channels []*models.Channel
	byID     map[models.ChannelID]*models.Channel

	needactionCounter         int
	starredCounter            int
	unreadConversationCounter int
	globalUnreadCounter       int

	pinnedDMPartners   []int64
	commands           []models.Command
	mentionSuggestions [][]models.Partner
	cannedResponses    []models.Shortcode
	emojis             []models.Shortcode
	emoji              *emojiTable
	menuID             int64

	clientActionOpen bool
	focused          bool
	closed           bool

	// seenCalls tracks channel-seen requests running in the background.
	seenCalls sync.WaitGroup

	// queue holds side effects raised under mu, run in order once it is
	// released.
	queue []func()
}

// New creates the chat state for a session. Call Start to load it.
func New(backend Backend, opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.ChatterPageSize <= 0 {
		opts.ChatterPageSize = defaultChatterPageSize
	}
	if opts.PreviewMaxSize <= 0 {
		opts.PreviewMaxSize = defaultPreviewMaxSize
	}
	if opts.SeenThrottle <= 0 {
		opts.SeenThrottle = defaultSeenThrottle
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	m := &Manager{
		backend:   backend,
		opts:      opts,
		logger:    logging.Component("chat"),
		publisher: opts.Publisher,
		byID:      make(map[models.ChannelID]*models.Channel),
		emoji:     newEmojiTable(nil),
	}
	if opts.Logger != nil {
		m.logger = *opts.Logger
	}
	if m.publisher == nil {
		m.publisher = events.NewInMemoryPublisher()
	}
	m.seen = throttle.New(opts.SeenThrottle, throttle.Leading|throttle.Trailing, m.reportSeen)
	return m
}

// Events returns the bus state changes are published on.
func (m *Manager) Events() events.Publisher {
	return m.publisher
}

// Start registers the mailbox views and loads the session bootstrap.
func (m *Manager) Start(ctx context.Context) error {
	m.lock()
	if m.started {
		m.unlock()
		return ErrAlreadyStarted
	}
	m.addChannel(&models.ChannelInfo{ID: models.InboxChannelID, Name: "Inbox", Type: "static"},
		channelOptions{silent: true, displayNeedactions: true})
	m.addChannel(&models.ChannelInfo{ID: models.StarredChannelID, Name: "Starred", Type: "static"},
		channelOptions{silent: true})
	m.unlock()

	result, err := m.backend.InitMessaging(ctx)
	if err != nil {
		return fmt.Errorf("start chat session: %w", err)
	}

	m.lock()
	defer m.unlock()
	m.applyInit(result)
	m.started = true
	m.logger.Info().
		Int("channels", len(m.channels)).
		Int("needaction", m.needactionCounter).
		Int("starred", m.starredCounter).
		Msg("chat session started")
	return nil
}

func (m *Manager) applyInit(result models.InitResult) {
	for _, slot := range result.ChannelSlots {
		for i := range slot {
			m.addChannel(&slot[i], channelOptions{})
		}
	}
	m.needactionCounter = result.NeedactionInboxCounter
	m.starredCounter = result.StarredCounter
	m.commands = result.Commands
	m.mentionSuggestions = result.MentionPartnerSuggestions
	m.menuID = int64(result.MenuID)

	m.cannedResponses = nil
	m.emojis = nil
	for _, s := range result.Shortcodes {
		if s.ShortcodeType == "text" {
			m.cannedResponses = append(m.cannedResponses, s)
			continue
		}
		m.emojis = append(m.emojis, s)
	}
	m.emoji = newEmojiTable(m.emojis)
	m.emit(&models.Event{Type: models.EventTypeNeedactionUpdated, Counter: m.needactionCounter})
	m.emit(&models.Event{Type: models.EventTypeStarredUpdated, Counter: m.starredCounter})
}

// Run applies notification batches until ctx is done or batches is closed.
func (m *Manager) Run(ctx context.Context, batches <-chan []models.Notification) error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			m.HandleNotifications(ctx, batch)
		}
	}
}

// Close cancels scheduled channel-seen calls and waits for the ones
// already sent.
func (m *Manager) Close() {
	m.seen.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.seenCalls.Wait()
}

func (m *Manager) lock() {
	m.mu.Lock()
}

// unlock releases mu and runs the side effects queued while it was held.
func (m *Manager) unlock() {
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
}

func (m *Manager) after(fn func()) {
	m.queue = append(m.queue, fn)
}

func (m *Manager) emit(event *models.Event) {
	if event.Channel != nil && event.ChannelID == "" {
		event.ChannelID = event.Channel.ID
	}
	if event.Message != nil && event.MessageID == 0 {
		event.MessageID = event.Message.ID
	}
	m.after(func() {
		m.publisher.Publish(context.Background(), event)
	})
}

// reportSeen sends a channel-seen call without blocking the caller.
func (m *Manager) reportSeen(id models.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.seenCalls.Go(func() { m.sendChannelSeen(id) })
}

func (m *Manager) sendChannelSeen(id models.ChannelID) {
	ctx, cancel := context.WithTimeout(context.Background(), seenCallTimeout)
	defer cancel()
	if err := m.backend.ChannelSeen(ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("channel_id", string(id)).Msg("channel seen failed")
	}
}
