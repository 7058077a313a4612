// Package inflight joins concurrent requests for the same key onto a
// single pending call.
package inflight

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates calls keyed by request identity. The entry for a key
// lives only while its call is pending; it is cleared on success and on
// failure alike.
type Group[T any] struct {
	flight singleflight.Group
}

// Do runs fn once per key among concurrent callers. Later callers attach
// to the pending result. shared reports whether the result was delivered
// to more than one caller.
//
// fn runs detached from the caller's cancellation: a pending request always
// completes so its result can be merged, while a canceled caller stops
// waiting and gets ctx.Err().
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (value T, shared bool, err error) {
	detached := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Shared, res.Err
		}
		v, ok := res.Val.(T)
		if !ok && res.Val != nil {
			var zero T
			return zero, res.Shared, fmt.Errorf("inflight %q: unexpected result type %T", key, res.Val)
		}
		return v, res.Shared, nil
	}
}

// Forget drops any pending entry for key so the next caller starts a new
// request.
func (g *Group[T]) Forget(key string) {
	g.flight.Forget(key)
}
