// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Badger is a persistent cache keyed by string. Values are stored as JSON
// entries under a namespace prefix so several caches can share one database.
//
// Entries are also written with a badger TTL of twice the cache TTL so the
// database reclaims space even if Evict never runs; validity itself is always
// decided by CreatedAt against the cache clock.
type Badger[V any] struct {
	db      *badger.DB
	prefix  []byte
	ttl     time.Duration
	clock   Clock
	stats   counters
	entries atomic.Int64
}

var _ Cache[string, int] = (*Badger[int])(nil)

// OpenBadger opens (or creates) a badger database at path. An empty path opens
// an in-memory database.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// NewBadger returns a cache stored in db under namespace. The caller owns db.
func NewBadger[V any](db *badger.DB, namespace string, ttl time.Duration, opts ...Option) *Badger[V] {
	o := buildOptions(opts)
	return &Badger[V]{
		db:     db,
		prefix: []byte(namespace + ":"),
		ttl:    ttl,
		clock:  o.clock,
	}
}

func (c *Badger[V]) key(k string) []byte {
	out := make([]byte, 0, len(c.prefix)+len(k))
	out = append(out, c.prefix...)
	return append(out, k...)
}

// Get returns the value for key if present and inside the TTL. Storage and
// decode errors read as a miss.
func (c *Badger[V]) Get(key string) (V, bool) {
	var entry Entry[V]
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if err != nil || !entry.Valid(c.clock(), c.ttl) {
		c.stats.misses.Add(1)
		var zero V
		return zero, false
	}

	c.stats.hits.Add(1)
	return entry.Value, true
}

// Set stores value under key.
func (c *Badger[V]) Set(key string, value V) error {
	data, err := json.Marshal(Entry[V]{Value: value, CreatedAt: c.clock()})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(c.key(key), data).WithTTL(2 * c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	c.entries.Add(1)
	return nil
}

// TTL returns the validity window.
func (c *Badger[V]) TTL() time.Duration {
	return c.ttl
}

// Evict deletes expired entries in this namespace and runs a value-log GC pass.
func (c *Badger[V]) Evict() (int, error) {
	now := c.clock()

	var expired [][]byte
	live := int64(0)
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(c.prefix); it.ValidForPrefix(c.prefix); it.Next() {
			item := it.Item()
			var entry Entry[V]
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil || !entry.Valid(now, c.ttl) {
				expired = append(expired, item.KeyCopy(nil))
				continue
			}
			live++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache entries: %w", err)
	}

	if len(expired) > 0 {
		wb := c.db.NewWriteBatch()
		defer wb.Cancel()
		for _, k := range expired {
			if err := wb.Delete(k); err != nil {
				return 0, fmt.Errorf("delete expired entry: %w", err)
			}
		}
		if err := wb.Flush(); err != nil {
			return 0, fmt.Errorf("flush evictions: %w", err)
		}
	}

	c.entries.Store(live)
	c.stats.evictions.Add(int64(len(expired)))

	// Reclaim disk space; ErrNoRewrite just means there was nothing to collect.
	if !c.db.Opts().InMemory {
		if err := c.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			return len(expired), fmt.Errorf("value log gc: %w", err)
		}
	}
	return len(expired), nil
}

// Stats returns a snapshot of the counters. Entries is accurate as of the
// last Evict plus writes since.
func (c *Badger[V]) Stats() Stats {
	return c.stats.snapshot(c.entries.Load())
}
