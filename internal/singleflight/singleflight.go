// Package singleflight coalesces concurrent loads of the same key.
package singleflight

import (
	"context"
	"errors"
	"sync"
)

// ErrLeaderPanicked is returned to followers whose leader's fn panicked.
var ErrLeaderPanicked = errors.New("singleflight: leader panicked")

// Group runs at most one fn per key at a time; concurrent callers for
// that key wait for the leader's result.
//
//   - The first caller for a key becomes the leader and runs fn on its
//     own goroutine. Publishing (val, err) happens-before close(done).
//   - A follower whose ctx ends stops waiting and returns ctx.Err(); the
//     leader is not interrupted. Thread ctx into fn to cancel the work.
//   - If fn panics, followers get ErrLeaderPanicked and the panic
//     continues in the leader.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Do runs fn once for key, or waits for the run already in flight.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			c.err = ErrLeaderPanicked
		}
		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn()
	finished = true
	return c.val, c.err
}

// InFlight reports how many keys are currently being loaded.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
