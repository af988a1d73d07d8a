// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package cache provides a TTL cache abstraction with pluggable backing stores.
//
// An entry is valid while now - CreatedAt < TTL. Expired entries read as
// absent and are removed by Evict, which the cache janitor service calls on a
// schedule. Two backends ship: Memory (process-local map) and Badger
// (persistent, survives restarts). Both take an injectable clock so TTL
// behavior is testable without sleeping.
package cache

import (
	"sync/atomic"
	"time"
)

// Cache is a key-value cache whose entries expire a fixed TTL after they
// were written.
type Cache[K comparable, V any] interface {
	// Get returns the value and true if the key is present and not expired.
	Get(key K) (V, bool)

	// Set stores value under key, stamped with the current time.
	Set(key K, value V) error

	// TTL returns the validity window applied to every entry.
	TTL() time.Duration

	// Evict removes expired entries and returns how many were removed.
	Evict() (int, error)

	// Stats returns hit, miss and eviction counters.
	Stats() Stats
}

// Entry is a cached value with its write time.
type Entry[V any] struct {
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the entry is still inside its TTL at now.
func (e Entry[V]) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) < ttl
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int64 `json:"entries"`
}

// HitRate returns hits / (hits + misses) as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Clock returns the current time. Tests substitute a fixed or stepped clock.
type Clock func() time.Time

// Option configures a cache backend.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces time.Now as the cache's time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// counters is shared by the backends.
type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot(entries int64) Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}
