// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/siteselect/internal/cache"
	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/normalize"
	"github.com/tomtom215/siteselect/internal/retry"
)

// Options configures a Resolver.
type Options struct {
	// RequestsPerSecond and Burst shape the process-wide limiter shared by
	// every outbound call. Zero rate means unlimited.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds a single provider attempt.
	Timeout time.Duration

	// Retry controls attempts and backoff. Retryable is set by the resolver.
	Retry retry.Policy
}

// DefaultOptions matches the public Nominatim usage policy.
func DefaultOptions() Options {
	return Options{
		RequestsPerSecond: 1,
		Burst:             1,
		Timeout:           10 * time.Second,
		Retry:             retry.Default(),
	}
}

// Resolver answers address lookups from the cache and falls back to the
// external Geocoder on a miss.
//
// A hit inside the TTL never calls the provider. Misses for the same key that
// arrive concurrently share one provider call. Successful lookups are written
// back so the next request within the TTL is served locally.
type Resolver struct {
	cache    cache.Cache[string, models.Coordinates]
	geocoder Geocoder // nil disables external lookups
	limiter  *rate.Limiter
	timeout  time.Duration
	policy   retry.Policy
	group    singleflight.Group
	logger   zerolog.Logger
}

// NewResolver builds a Resolver. A nil geocoder makes every miss return
// ErrUnavailable, which is how geocoding is switched off.
func NewResolver(c cache.Cache[string, models.Coordinates], g Geocoder, opts Options, logger zerolog.Logger) *Resolver {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	policy := opts.Retry
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, ErrNotFound) && !IsBreakerOpen(err)
	}

	r := &Resolver{
		cache:    c,
		geocoder: g,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		policy:   policy,
		logger:   logger.With().Str("component", "geocode").Logger(),
	}
	r.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("geocode attempt failed, retrying")
	}
	return r
}

// Key builds the cache key for a location: normalized non-empty parts joined
// by ", ".
func Key(city, region, country string) string {
	return normalize.Address(city, region, country)
}

// Resolve returns coordinates for address. Any failure to produce a value is
// reported as ErrUnavailable (wrapping the cause); it is never fatal to the
// caller.
func (r *Resolver) Resolve(ctx context.Context, address string) (models.Coordinates, error) {
	key := strings.TrimSpace(address)
	if key == "" {
		return models.Coordinates{}, fmt.Errorf("%w: empty address", ErrUnavailable)
	}

	if coords, ok := r.cache.Get(key); ok {
		metrics.GeocodeCacheHits.Inc()
		return coords, nil
	}
	metrics.GeocodeCacheMisses.Inc()

	if r.geocoder == nil {
		return models.Coordinates{}, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}

	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		// Another caller may have filled the cache while this one queued.
		if coords, ok := r.cache.Get(key); ok {
			return coords, nil
		}
		return r.fetch(ctx, key)
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("address", key).Bool("shared", shared).Msg("geocoding unavailable")
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v.(models.Coordinates), nil
}

// fetch calls the provider under the limiter, per-attempt timeout and retry
// policy, then writes the result back.
func (r *Resolver) fetch(ctx context.Context, key string) (models.Coordinates, error) {
	provider := r.geocoder.Name()

	var coords models.Coordinates
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		start := time.Now()
		c, err := r.geocoder.Geocode(callCtx, key)
		metrics.RecordGeocodeCall(provider, outcome(err), time.Since(start))
		if err != nil {
			return err
		}
		coords = c
		return nil
	})
	if err != nil {
		return models.Coordinates{}, err
	}

	if err := r.cache.Set(key, coords); err != nil {
		// The lookup succeeded; a failed write-back only costs a future call.
		r.logger.Error().Err(err).Str("address", key).Msg("failed to cache coordinates")
	}
	r.logger.Debug().Str("address", key).Float64("lat", coords.Latitude).Float64("lon", coords.Longitude).Msg("geocoded")
	return coords, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsBreakerOpen(err):
		return "rejected"
	default:
		return "error"
	}
}
