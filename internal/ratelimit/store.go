package ratelimit

import (
	"context"
	"time"
)

// Store is the counted rate-limit primitive.
type Store interface {
	// Record records a request and returns the count of requests in the
	// current window for key.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
