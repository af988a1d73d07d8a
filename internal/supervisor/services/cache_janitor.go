// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/metrics"
)

// Evicter is the eviction half of cache.Cache.
type Evicter interface {
	Evict() (int, error)
}

// CacheJanitorService removes expired cache entries on a fixed interval.
// Eviction errors are logged and the loop carries on; a cache that cannot
// evict still serves reads, it just grows.
type CacheJanitorService struct {
	cache    Evicter
	cacheTag string
	interval time.Duration
	logger   zerolog.Logger
}

// NewCacheJanitorService creates a janitor for cache. name labels the
// eviction metric. A non-positive interval means one hour.
func NewCacheJanitorService(cache Evicter, name string, interval time.Duration, logger zerolog.Logger) *CacheJanitorService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CacheJanitorService{
		cache:    cache,
		cacheTag: name,
		interval: interval,
		logger:   logging.Component(logger, "cache-janitor").With().Str("cache", name).Logger(),
	}
}

// Serve implements suture.Service.
func (s *CacheJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *CacheJanitorService) sweep() {
	start := time.Now()
	n, err := s.cache.Evict()
	if n > 0 {
		metrics.CacheEvictions.WithLabelValues(s.cacheTag).Add(float64(n))
	}
	if err != nil {
		s.logger.Warn().Err(err).Int("evicted", n).Msg("cache eviction failed")
		return
	}
	s.logger.Debug().Int("evicted", n).Dur("elapsed", time.Since(start)).Msg("cache swept")
}

// String implements fmt.Stringer.
func (s *CacheJanitorService) String() string {
	return "cache-janitor-" + s.cacheTag
}
