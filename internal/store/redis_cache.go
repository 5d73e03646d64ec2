package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink-go/internal/shortener"
)

const cachePrefix = "cache:url:"

// RedisCache is the Redis implementation of shortener.Cache. Each code maps
// to a hash holding the redirect snapshot, bounded by the configured TTL.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a Redis-backed redirect cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, code shortener.Code) (*shortener.CachedTarget, error) {
	fields, err := c.client.HGetAll(ctx, cachePrefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, shortener.ErrNotFound
	}

	target := &shortener.CachedTarget{
		Code:     shortener.Code(fields["code"]),
		Original: fields["original"],
	}

	if raw := fields["expires_at"]; raw != "" {
		if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
			expires := time.Unix(0, nanos).UTC()
			target.ExpiresAt = &expires
		}
	}

	if raw := fields["hit_count"]; raw != "" {
		if count, err := strconv.ParseInt(raw, 10, 64); err == nil {
			target.HitCount = count
		}
	}

	return target, nil
}

func (c *RedisCache) SetWithTTL(ctx context.Context, target *shortener.CachedTarget, ttl time.Duration) error {
	key := cachePrefix + string(target.Code)

	expiresAt := ""
	if target.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(target.ExpiresAt.UnixNano(), 10)
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"code":       string(target.Code),
		"original":   target.Original,
		"expires_at": expiresAt,
		"hit_count":  strconv.FormatInt(target.HitCount, 10),
	})

	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	_, err := pipe.Exec(ctx)

	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, code shortener.Code) error {
	return c.client.Del(ctx, cachePrefix+string(code)).Err()
}

var _ shortener.Cache = (*RedisCache)(nil)
