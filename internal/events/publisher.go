// Package events provides the in-process event bus the chat core uses to
// notify UI collaborators of state changes.
package events

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/discuss/internal/models"
)

var (
	ErrInvalidSubscriptionID = errors.New("events: subscription id is required")
	ErrNilHandler            = errors.New("events: handler is nil")
	ErrSubscriptionExists    = errors.New("events: subscription id already in use")
	ErrSubscriptionNotFound  = errors.New("events: subscription not found")
)

// EventHandler receives published events. It runs on the publishing
// goroutine and must not block.
type EventHandler func(event *models.Event)

// Filter selects events. The zero Filter matches everything.
type Filter struct {
	// EventTypes restricts topics; empty means all topics.
	EventTypes []models.EventType
	// ChannelID restricts to events about one channel.
	ChannelID models.ChannelID
}

// Matches reports whether event passes the filter.
func (f Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.Type) {
		return false
	}
	return f.ChannelID == "" || event.ChannelID == f.ChannelID
}

// Publisher fans events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event)
	Subscribe(id string, filter Filter, handler EventHandler) error
	Unsubscribe(id string) error
}

type subscriber struct {
	id      string
	filter  Filter
	handler EventHandler
}

// InMemoryPublisher delivers events synchronously, in subscription order.
type InMemoryPublisher struct {
	mu   sync.RWMutex
	subs []subscriber
	now  func() time.Time
}

// Option configures an InMemoryPublisher.
type Option func(*InMemoryPublisher)

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(p *InMemoryPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewInMemoryPublisher(opts ...Option) *InMemoryPublisher {
	p := &InMemoryPublisher{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stamps event with an id and timestamp when missing, then calls
// every matching handler. Delivery stops once ctx is done.
func (p *InMemoryPublisher) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	p.mu.RLock()
	targets := make([]EventHandler, 0, len(p.subs))
	for _, s := range p.subs {
		if s.filter.Matches(event) {
			targets = append(targets, s.handler)
		}
	}
	p.mu.RUnlock()

	for _, handler := range targets {
		if ctx.Err() != nil {
			return
		}
		handler(event)
	}
}

// Subscribe registers handler under id.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	switch {
	case id == "":
		return ErrInvalidSubscriptionID
	case handler == nil:
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexOf(id) >= 0 {
		return ErrSubscriptionExists
	}
	p.subs = append(p.subs, subscriber{id: id, filter: filter, handler: handler})
	return nil
}

// On subscribes handler under a generated id and returns it.
func (p *InMemoryPublisher) On(filter Filter, handler EventHandler) (string, error) {
	id := uuid.NewString()
	return id, p.Subscribe(id, filter, handler)
}

func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(id)
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	p.subs = slices.Delete(p.subs, i, i+1)
	return nil
}

// Len returns the number of subscriptions.
func (p *InMemoryPublisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

func (p *InMemoryPublisher) indexOf(id string) int {
	return slices.IndexFunc(p.subs, func(s subscriber) bool { return s.id == id })
}
