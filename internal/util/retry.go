// retry.go retries operations that fail under cross-process contention.
// Hook handlers and CLI commands share one SQLite store and a handful of
// flock-guarded JSON files; collisions are brief, so backoff stays short.

package util

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	// MaxAttempts caps total attempts, first try included.
	MaxAttempts int

	// InitialDelay is the sleep before the second attempt. Each
	// subsequent delay doubles, up to MaxDelay.
	InitialDelay time.Duration

	// MaxDelay caps the per-attempt sleep.
	MaxDelay time.Duration

	// IsRetryable decides whether an error is worth another attempt.
	// Nil means IsBusy.
	IsRetryable func(error) bool
}

// DefaultRetryConfig covers the store-write case: a sibling hook holds
// the SQLite write lock for a few milliseconds at most.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		IsRetryable:  IsBusy,
	}
}

// busyPatterns match the contention failures the kit actually sees:
// SQLite busy/locked states and transient file-handle pressure when
// several hooks fire at once.
var busyPatterns = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"locked by another process",
	"resource temporarily unavailable",
	"try again",
	"too many open files",
}

// IsBusy reports whether err looks like cross-process contention that a
// short wait will clear. Anything else is treated as permanent.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range busyPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget runs out. Sleeps are jittered so colliding hooks do not
// re-collide on the same schedule.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 50 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = IsBusy
	}

	var zero T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.IsRetryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		// Up to 25% jitter.
		sleep := delay + time.Duration(rand.Float64()*0.25*float64(delay))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}

// RetryWithContext runs fn with the default contention config.
func RetryWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return Retry(ctx, DefaultRetryConfig(), fn)
}
