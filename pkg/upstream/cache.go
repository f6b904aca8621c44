package upstream

import (
	"context"
	"sync"
	"time"
)

// FetchFunc produces a fresh snapshot from the upstream system.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cache is a time-bounded snapshot of one upstream system's authoritative
// state. The snapshot is replaced wholesale on refresh, never mutated in
// place, and readers only ever observe complete snapshots.
//
// Refresh is single-flight: at most one upstream fetch is in flight at any
// time. Concurrent callers wait for the running fetch and share its outcome.
// The lock is held only for bookkeeping and the snapshot swap, never across
// the network call.
type Cache[T any] struct {
	fetch FetchFunc[T]

	mu        sync.Mutex
	snapshot  T
	hasSnap   bool
	fetchedAt time.Time
	lastErr   error
	inflight  chan struct{} // non-nil while a refresh runs; closed on completion
}

// NewCache creates a cache backed by the given fetch function. The cache
// starts empty; an empty cache is not an error by itself, but lookups against
// it produce no answer.
func NewCache[T any](fetch FetchFunc[T]) *Cache[T] {
	return &Cache[T]{fetch: fetch}
}

// IsFresh reports whether a snapshot exists and is younger than maxAge.
func (c *Cache[T]) IsFresh(maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasSnap && time.Since(c.fetchedAt) < maxAge
}

// Refresh performs one upstream fetch and replaces the snapshot atomically.
// If a refresh is already in flight, the caller waits for it and returns its
// outcome instead of issuing a second fetch. On failure the previous snapshot
// is retained, stale but available.
func (c *Cache[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight != nil {
		done := c.inflight
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		err := c.lastErr
		c.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	snap, err := c.fetch(ctx)

	c.mu.Lock()
	if err == nil {
		c.snapshot = snap
		c.hasSnap = true
		c.fetchedAt = time.Now()
	}
	c.lastErr = err
	c.inflight = nil
	close(done)
	c.mu.Unlock()

	return err
}

// EnsureFresh refreshes only when the snapshot is missing or older than
// maxAge. This is the entry point control operations use, so staleness is
// policy-driven rather than caller-driven.
func (c *Cache[T]) EnsureFresh(ctx context.Context, maxAge time.Duration) error {
	if c.IsFresh(maxAge) {
		return nil
	}
	return c.Refresh(ctx)
}

// Get returns the current snapshot and whether one exists.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.hasSnap
}

// FetchedAt returns the time of the last successful refresh, zero if none.
func (c *Cache[T]) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// Invalidate forces the next EnsureFresh to refresh regardless of age. The
// current snapshot stays readable until then.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
