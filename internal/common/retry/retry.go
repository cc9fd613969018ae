// Package retry re-runs an operation with exponential backoff. The router uses
// it to wait for the broker at startup; message handling itself never retries.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/multierr"
)

// ErrExhausted wraps the last failure once every attempt has been used
var ErrExhausted = stderrors.New("retry attempts exhausted")

type Config struct {
	// MaxAttempts counts the first call too
	MaxAttempts  int
	InitialDelay time.Duration
	// MaxDelay caps the exponential growth
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter adds up to this fraction of the delay at random
	Jitter float64
	// Retryable filters errors; nil retries every error
	Retryable func(error) bool
	// OnRetry runs before each wait
	OnRetry func(attempt int, delay time.Duration, err error)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. A non-retryable error is returned unwrapped.
func Do(ctx context.Context, config Config, fn func(ctx context.Context) error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}

	delay := config.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if config.Retryable != nil && !config.Retryable(lastErr) {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
		}

		wait := withJitter(delay, config.Jitter)
		if config.OnRetry != nil {
			config.OnRetry(attempt, wait, lastErr)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, multierr.Combine(ctx.Err(), lastErr))
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}

func withJitter(delay time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || delay <= 0 {
		return delay
	}
	spread := int64(float64(delay) * fraction)
	if spread <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(spread))
}
