package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

// WindowLimiter allows up to limit requests per window per key.
type WindowLimiter struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewWindowLimiter creates a windowed rate limiter.
func NewWindowLimiter(store Store, limit int64, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Record(ctx, key, l.window)
	if err != nil {
		return false, err
	}

	return count <= l.limit, nil
}

var _ Limiter = (*WindowLimiter)(nil)
