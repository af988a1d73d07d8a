// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package retry runs an operation with bounded attempts and exponential
// backoff. Waits between attempts are cancellable through the context.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted wraps the last error when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier grows the delay after each failed attempt. Zero means 2.
	Multiplier float64

	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error except context cancellation.
	Retryable func(error) bool

	// OnRetry is called before each wait with the attempt that just failed
	// (1-based), its error and the delay about to be slept.
	OnRetry func(attempt int, err error, delay time.Duration)

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Default is three attempts starting at one second, capped at eight.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends, or attempts run out. The returned error wraps ErrExhausted and the
// last failure in the exhausted case.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = wait
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return fmt.Errorf("%w (last error: %v)", ctxErr, err)
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%w (last error: %v)", sleepErr, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Backoff returns the wait after the given zero-based failed attempt:
// InitialDelay * Multiplier^attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = math.MaxInt64
	}

	// Past this point float64 overflow is possible for any sane base.
	if attempt > 62 {
		return maxDelay
	}

	d := time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(attempt)))
	if d <= 0 || d > maxDelay {
		return maxDelay
	}
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
