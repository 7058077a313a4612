// Package bus is the push notification feed: a websocket client that
// delivers decoded notification batches and keeps the presence subscription
// in sync.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tOgg1/discuss/internal/logging"
	"github.com/tOgg1/discuss/internal/models"
)

const (
	defaultDialTimeout       = 10 * time.Second
	defaultReconnectInterval = 2 * time.Second
	defaultBuffer            = 64
)

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string
	// Jar supplies the session cookie for the handshake.
	Jar http.CookieJar
	// Header is sent with the handshake.
	Header            http.Header
	DialTimeout       time.Duration
	ReconnectInterval time.Duration
	// Buffer is the number of batches queued for the consumer.
	Buffer int
	// Last resumes the feed after this notification id.
	Last   int64
	Logger *zerolog.Logger
}

// Client streams notification batches from the server. Batches are
// delivered in arrival order on Batches.
type Client struct {
	url               string
	dialer            *websocket.Dialer
	header            http.Header
	reconnectInterval time.Duration
	logger            zerolog.Logger
	out               chan []models.Notification

	mu         sync.Mutex
	conn       *websocket.Conn
	partnerIDs []int64
	last       int64

	writeMu sync.Mutex
}

// New creates a client. Call Run to connect.
func New(opts Options) (*Client, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("bus: url is required")
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	reconnectInterval := opts.ReconnectInterval
	if reconnectInterval <= 0 {
		reconnectInterval = defaultReconnectInterval
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	logger := logging.Component("bus")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Client-Id", uuid.NewString())

	return &Client{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
			Jar:              opts.Jar,
		},
		header:            header,
		reconnectInterval: reconnectInterval,
		logger:            logger,
		out:               make(chan []models.Notification, buffer),
		last:              opts.Last,
	}, nil
}

// Batches returns the channel notification batches are delivered on. It is
// closed when Run returns.
func (c *Client) Batches() <-chan []models.Notification {
	return c.out
}

// LastID returns the id of the last notification received.
func (c *Client) LastID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// UpdatePresence replaces the set of partners whose presence is tracked
// and resubscribes if connected.
func (c *Client) UpdatePresence(partnerIDs []int64) {
	c.mu.Lock()
	c.partnerIDs = slices.Clone(partnerIDs)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := c.subscribe(conn); err != nil {
		c.logger.Warn().Err(err).Msg("presence resubscribe failed")
	}
}

// Run connects and streams until ctx is done, reconnecting after failures
// with the last seen id so nothing is missed.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.out)

	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.reconnectInterval).Msg("bus connection lost")

		timer := time.NewTimer(c.reconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := c.subscribe(conn); err != nil {
		return err
	}
	c.logger.Info().Str("url", c.url).Int64("last", c.LastID()).Msg("bus connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		batch, lastID, err := DecodeBatch(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("skipping undecodable notifications")
		}
		c.mu.Lock()
		if lastID > c.last {
			c.last = lastID
		}
		c.mu.Unlock()
		if len(batch) == 0 {
			continue
		}

		for _, n := range batch {
			c.logger.Debug().
				Str("kind", n.Kind.String()).
				Str("model", n.Origin.Model).
				Str("target", string(n.Origin.ID)).
				Msg("notification received")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.out <- batch:
		}
	}
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	c.mu.Lock()
	msg := newSubscribe(c.last, c.partnerIDs)
	c.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	return nil
}
