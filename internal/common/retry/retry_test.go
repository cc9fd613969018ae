package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 5, config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, config.InitialDelay)
	assert.Equal(t, 10*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.Multiplier)
	assert.Nil(t, config.Retryable)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDo_Exhausted(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent error")

	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, cause)
}

func TestDo_NonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	config := fastConfig(3)
	config.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	attempts := 0
	err := Do(context.Background(), config, func(context.Context) error {
		attempts++
		return permanent
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, permanent, err)
}

func TestDo_ContextCancellation(t *testing.T) {
	config := fastConfig(10)
	config.InitialDelay = 100 * time.Millisecond
	config.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	attempts := 0
	cause := errors.New("always fails")
	err := Do(ctx, config, func(context.Context) error {
		attempts++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, cause)
	assert.Less(t, attempts, 10)
}

func TestDo_OnRetryReportsCappedDelays(t *testing.T) {
	config := Config{
		MaxAttempts:  4,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		Multiplier:   2.0,
	}
	var delays []time.Duration
	config.OnRetry = func(attempt int, delay time.Duration, err error) {
		assert.Equal(t, len(delays)+1, attempt)
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), config, func(context.Context) error { return errors.New("fail") })

	assert.Equal(t, []time.Duration{5 * time.Millisecond, 8 * time.Millisecond, 8 * time.Millisecond}, delays)
}

func TestWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 20; i++ {
		got := withJitter(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.Less(t, got, base+50*time.Millisecond)
	}
	assert.Equal(t, base, withJitter(base, 0))
}
