// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
)

// BreakerSettings configures BreakerGeocoder.
type BreakerSettings struct {
	// ConsecutiveFailures opens the circuit. Zero means 5.
	ConsecutiveFailures uint32
	// Timeout is how long the circuit stays open before a probe. Zero means one minute.
	Timeout time.Duration
}

// BreakerGeocoder wraps a Geocoder with a circuit breaker so a dead provider
// fails fast instead of consuming the rate budget and retry delays of every
// new site.
//
// ErrNotFound is a successful answer from the provider and does not count
// as a failure. The breaker uses real time; tests drive it through failures,
// not the clock.
type BreakerGeocoder struct {
	next Geocoder
	cb   *gobreaker.CircuitBreaker[models.Coordinates]
	name string
}

var _ Geocoder = (*BreakerGeocoder)(nil)

// NewBreakerGeocoder wraps next.
func NewBreakerGeocoder(next Geocoder, settings BreakerSettings, logger zerolog.Logger) *BreakerGeocoder {
	failures := settings.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	name := next.Name() + "-geocoder"

	metrics.SetBreakerState(name, 0)

	cb := gobreaker.NewCircuitBreaker[models.Coordinates](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("geocoder circuit breaker state change")
			metrics.SetBreakerState(name, stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &BreakerGeocoder{next: next, cb: cb, name: name}
}

// Name implements Geocoder.
func (b *BreakerGeocoder) Name() string { return b.next.Name() }

// State returns the current breaker state.
func (b *BreakerGeocoder) State() gobreaker.State { return b.cb.State() }

// Geocode implements Geocoder. When the circuit is open the call is not made
// and the returned error satisfies IsBreakerOpen.
func (b *BreakerGeocoder) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	return b.cb.Execute(func() (models.Coordinates, error) {
		return b.next.Geocode(ctx, address)
	})
}

// IsBreakerOpen reports whether err came from a breaker that refused the call.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
