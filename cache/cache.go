// Copyright (c) 2025 Erik Kassubek
//
// File: cache.go
// Brief: TTL-bounded single-slot query cache (spec §4.H)
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const slotKey = "value"

// Query[T] wraps a single optional (value, expires_at) slot behind
// go-cache's own TTL bookkeeping, rather than hand-rolling a
// time.Time comparison (§4.H). The public surface stays a
// get_or_fetch/invalidate/is_valid shape.
type Query[T any] struct {
	ttl time.Duration
	c   *gocache.Cache

	// fetchMu serializes cold-path fetches: a goroutine that finds the
	// cache cold waits here, then re-checks the slot before fetching, so
	// concurrent callers during one cold period share a single fetch.
	fetchMu sync.Mutex
}

// New constructs a query cache with the given time-to-live.
//
// Parameter:
//   - ttl time.Duration: how long a fetched value stays fresh
//
// Returns:
//   - *Query[T]: the new, empty cache
func New[T any](ttl time.Duration) *Query[T] {
	return &Query[T]{
		ttl: ttl,
		c:   gocache.New(ttl, 2*ttl),
	}
}

// GetOrFetch returns the cached value if fresh, else calls fetch and
// caches a successful result. A cancellation-safe or failing fetch
// never leaves a partially written cache entry: on error, the cache is
// left untouched and the error is propagated, never cached (spec
// §4.H, invariant 8).
//
// Parameter:
//   - fetch func() (T, error): the cold-path value producer
//
// Returns:
//   - T: the cached or freshly fetched value
//   - error: non-nil if fetch failed and nothing was cached
func (q *Query[T]) GetOrFetch(fetch func() (T, error)) (T, error) {
	if v, ok := q.c.Get(slotKey); ok {
		return v.(T), nil
	}

	q.fetchMu.Lock()
	defer q.fetchMu.Unlock()

	if v, ok := q.c.Get(slotKey); ok {
		return v.(T), nil
	}

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	q.c.Set(slotKey, v, q.ttl)
	return v, nil
}

// Invalidate clears the cached entry.
func (q *Query[T]) Invalidate() {
	q.c.Delete(slotKey)
}

// IsValid reports whether a fresh cached value is present.
//
// Returns:
//   - bool: true if a fresh value is cached
func (q *Query[T]) IsValid() bool {
	_, ok := q.c.Get(slotKey)
	return ok
}
