package shortener

import (
	"context"
	"time"
)

// Cache is the low-latency code->target lookup in front of the repository.
// Entries are TTL-bounded and eventually consistent with the record store;
// Invalidate is authoritative only for admin deletes.
type Cache interface {
	Get(ctx context.Context, code Code) (*CachedTarget, error)
	SetWithTTL(ctx context.Context, target *CachedTarget, ttl time.Duration) error
	Invalidate(ctx context.Context, code Code) error
}
