// Package ratelimit throttles inbound consumption with golang.org/x/time/rate
package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"message-router/internal/common/errors"
)

type Limiter struct {
	config  Config
	limiter *rate.Limiter
	waited  atomic.Int64
	denied  atomic.Int64
}

func NewLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError("invalid rate limit: " + err.Error())
	}

	limit := rate.Inf
	if config.Enabled {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &Limiter{
		config:  config,
		limiter: rate.NewLimiter(limit, config.BurstSize),
	}, nil
}

// Wait blocks until a token is available or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.config.Enabled {
		return nil
	}
	l.waited.Add(1)
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.RateLimitError("inbound messages")
	}
	return nil
}

// TryAcquire takes a token without blocking
func (l *Limiter) TryAcquire() bool {
	if !l.config.Enabled {
		return true
	}
	if l.limiter.Allow() {
		return true
	}
	l.denied.Add(1)
	return false
}

func (l *Limiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enabled":             l.config.Enabled,
		"requests_per_second": l.config.RequestsPerSecond,
		"burst_size":          l.config.BurstSize,
		"available_tokens":    l.limiter.Tokens(),
		"waits":               l.waited.Load(),
		"denied":              l.denied.Load(),
	}
}
