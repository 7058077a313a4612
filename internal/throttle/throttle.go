// Package throttle rate-limits side-effecting calls per key.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Edge selects when a throttled call fires.
type Edge uint8

const (
	// Leading fires on the first trigger of a window.
	Leading Edge = 1 << iota
	// Trailing fires once at the end of a window that saw suppressed
	// triggers.
	Trailing
)

// Throttler invokes fn at most once per interval for each key, coalescing
// bursts of triggers.
type Throttler[K comparable] struct {
	interval time.Duration
	edge     Edge
	fn       func(K)
	now      func() time.Time

	mu      sync.Mutex
	keys    map[K]*keyState
	stopped bool
}

type keyState struct {
	limiter *rate.Limiter
	timer   *time.Timer
	pending bool
}

// Option configures a Throttler.
type Option[K comparable] func(*Throttler[K])

// WithNow overrides the clock used for rate accounting.
func WithNow[K comparable](now func() time.Time) Option[K] {
	return func(t *Throttler[K]) {
		if now != nil {
			t.now = now
		}
	}
}

// New returns a throttler around fn. An edge of zero means Leading|Trailing.
func New[K comparable](interval time.Duration, edge Edge, fn func(K), opts ...Option[K]) *Throttler[K] {
	if edge == 0 {
		edge = Leading | Trailing
	}
	t := &Throttler[K]{
		interval: interval,
		edge:     edge,
		fn:       fn,
		now:      time.Now,
		keys:     make(map[K]*keyState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trigger requests a call for key. It reports whether fn ran synchronously.
func (t *Throttler[K]) Trigger(key K) bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	state := t.stateLocked(key)
	now := t.now()

	if t.edge&Leading != 0 && !state.pending && state.limiter.AllowN(now, 1) {
		t.mu.Unlock()
		t.fn(key)
		return true
	}
	if t.edge&Trailing == 0 || state.pending {
		t.mu.Unlock()
		return false
	}

	delay := t.interval
	if t.edge&Leading != 0 {
		delay = state.limiter.ReserveN(now, 1).DelayFrom(now)
	}
	state.pending = true
	state.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		state.pending = false
		state.timer = nil
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			t.fn(key)
		}
	})
	t.mu.Unlock()
	return false
}

// Pending reports whether a trailing call is scheduled for key.
func (t *Throttler[K]) Pending(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.keys[key]
	return ok && state.pending
}

// Forget drops the state of key, canceling any scheduled call.
func (t *Throttler[K]) Forget(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.keys[key]; ok {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(t.keys, key)
	}
}

// Stop cancels every scheduled call; later triggers are ignored.
func (t *Throttler[K]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for key, state := range t.keys {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(t.keys, key)
	}
}

func (t *Throttler[K]) stateLocked(key K) *keyState {
	state, ok := t.keys[key]
	if !ok {
		limit := rate.Inf
		if t.interval > 0 {
			limit = rate.Every(t.interval)
		}
		state = &keyState{limiter: rate.NewLimiter(limit, 1)}
		t.keys[key] = state
	}
	return state
}
