// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package cache

import (
	"sync"
	"time"
)

// Memory is a thread-safe in-process cache.
type Memory[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]Entry[V]
	ttl     time.Duration
	clock   Clock
	stats   counters
}

var _ Cache[string, int] = (*Memory[string, int])(nil)

// NewMemory creates an in-memory cache with the given TTL. There is no
// background goroutine; expired entries are skipped on read and dropped by
// Evict.
//
//	c := cache.NewMemory[string, models.Coordinates](24 * time.Hour)
//	_ = c.Set("rochester, mn, united states", coords)
func NewMemory[K comparable, V any](ttl time.Duration, opts ...Option) *Memory[K, V] {
	o := buildOptions(opts)
	return &Memory[K, V]{
		entries: make(map[K]Entry[V]),
		ttl:     ttl,
		clock:   o.clock,
	}
}

// Get returns the value for key if present and inside the TTL.
func (c *Memory[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !entry.Valid(c.clock(), c.ttl) {
		c.stats.misses.Add(1)
		var zero V
		return zero, false
	}

	c.stats.hits.Add(1)
	return entry.Value, true
}

// Set stores value under key. It never fails.
func (c *Memory[K, V]) Set(key K, value V) error {
	c.mu.Lock()
	c.entries[key] = Entry[V]{Value: value, CreatedAt: c.clock()}
	c.mu.Unlock()
	return nil
}

// TTL returns the validity window.
func (c *Memory[K, V]) TTL() time.Duration {
	return c.ttl
}

// Evict removes expired entries.
func (c *Memory[K, V]) Evict() (int, error) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !entry.Valid(now, c.ttl) {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.evictions.Add(int64(removed))
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Memory[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Memory[K, V]) Stats() Stats {
	return c.stats.snapshot(int64(c.Len()))
}
