package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink-go/internal/analytics"
)

// Column-family TTLs. Hour counters and per-key breakdowns are kept
// indefinitely; minute rows and visitor sets decay.
const (
	minuteRowTTL  = 30 * 24 * time.Hour
	visitorSetTTL = 90 * 24 * time.Hour
)

// accessTimesScript upserts first = min(first, t), last = max(last, t) in
// one round trip so concurrent consumers cannot clobber each other.
var accessTimesScript = redis.NewScript(`
local t = tonumber(ARGV[1])
local first = redis.call('HGET', KEYS[1], 'first')
if not first or t < tonumber(first) then
  redis.call('HSET', KEYS[1], 'first', ARGV[1])
end
local last = redis.call('HGET', KEYS[1], 'last')
if not last or t > tonumber(last) then
  redis.call('HSET', KEYS[1], 'last', ARGV[1])
end
return 1
`)

// RedisAnalyticsStore implements analytics.Store on Redis hashes and sets,
// partitioned per code by key prefix. All writes are commutative increments
// or idempotent set inserts, so at-least-once delivery is safe.
type RedisAnalyticsStore struct {
	client redis.UniversalClient
}

// NewRedisAnalyticsStore creates a Redis-backed analytics store.
func NewRedisAnalyticsStore(client redis.UniversalClient) *RedisAnalyticsStore {
	return &RedisAnalyticsStore{client: client}
}

func hourKey(code, day string) string {
	return fmt.Sprintf("stats:hour:%s:%s", code, day)
}

func minuteKey(code, day string, hour int) string {
	return fmt.Sprintf("stats:minute:%s:%s:%02d", code, day, hour)
}

func visitorsKey(code, day string) string {
	return fmt.Sprintf("stats:visitors:%s:%s", code, day)
}

func (s *RedisAnalyticsStore) ApplyHit(ctx context.Context, event *analytics.HitEvent) error {
	ts := event.Timestamp.UTC()
	day := ts.Format("2006-01-02")

	pipe := s.client.TxPipeline()

	pipe.HIncrBy(ctx, hourKey(event.Code, day), strconv.Itoa(ts.Hour()), 1)

	mKey := minuteKey(event.Code, day, ts.Hour())
	pipe.HIncrBy(ctx, mKey, strconv.Itoa(ts.Minute()), 1)
	pipe.Expire(ctx, mKey, minuteRowTTL)

	if event.Referrer != "" && event.Referrer != "direct" {
		pipe.HIncrBy(ctx, "stats:referrer:"+event.Code, event.Referrer, 1)
	}

	if event.Country != "" {
		pipe.HIncrBy(ctx, "stats:geo:"+event.Code, event.Country, 1)
	}

	device := deviceField(event.DeviceType, event.Browser, event.OS)
	pipe.HIncrBy(ctx, "stats:device:"+event.Code, device, 1)

	_, err := pipe.Exec(ctx)

	return err
}

func (s *RedisAnalyticsStore) TouchAccessTimes(ctx context.Context, code string, t time.Time) error {
	nanos := strconv.FormatInt(t.UTC().UnixNano(), 10)

	return accessTimesScript.Run(ctx, s.client, []string{"stats:access:" + code}, nanos).Err()
}

func (s *RedisAnalyticsStore) RecordUniqueVisitor(ctx context.Context, code, day, visitorHash string) error {
	key := visitorsKey(code, day)

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, visitorHash)
	pipe.Expire(ctx, key, visitorSetTTL)
	_, err := pipe.Exec(ctx)

	return err
}

func (s *RedisAnalyticsStore) HourlyHits(ctx context.Context, code, day string) (map[int]int64, error) {
	return s.intBuckets(ctx, hourKey(code, day))
}

func (s *RedisAnalyticsStore) MinuteHits(ctx context.Context, code, day string, hour int) (map[int]int64, error) {
	return s.intBuckets(ctx, minuteKey(code, day, hour))
}

func (s *RedisAnalyticsStore) intBuckets(ctx context.Context, key string) (map[int]int64, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	buckets := make(map[int]int64, len(fields))

	for field, raw := range fields {
		bucket, err := strconv.Atoi(field)
		if err != nil {
			continue
		}

		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}

		buckets[bucket] = count
	}

	return buckets, nil
}

func (s *RedisAnalyticsStore) Referrers(ctx context.Context, code string) (map[string]int64, error) {
	return s.counts(ctx, "stats:referrer:"+code)
}

func (s *RedisAnalyticsStore) Geographic(ctx context.Context, code string) (map[string]int64, error) {
	return s.counts(ctx, "stats:geo:"+code)
}

func (s *RedisAnalyticsStore) counts(ctx context.Context, key string) (map[string]int64, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(fields))

	for field, raw := range fields {
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}

		counts[field] = count
	}

	return counts, nil
}

func (s *RedisAnalyticsStore) Devices(ctx context.Context, code string) (map[analytics.DeviceKey]int64, error) {
	fields, err := s.counts(ctx, "stats:device:"+code)
	if err != nil {
		return nil, err
	}

	combos := make(map[analytics.DeviceKey]int64, len(fields))

	for field, count := range fields {
		parts := strings.SplitN(field, "|", 3)
		if len(parts) != 3 {
			continue
		}

		combos[analytics.DeviceKey{DeviceType: parts[0], Browser: parts[1], OS: parts[2]}] = count
	}

	return combos, nil
}

func (s *RedisAnalyticsStore) AccessTimes(ctx context.Context, code string) (*analytics.AccessTimes, error) {
	fields, err := s.client.HGetAll(ctx, "stats:access:"+code).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, nil
	}

	first, err := strconv.ParseInt(fields["first"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt first access time: %w", err)
	}

	last, err := strconv.ParseInt(fields["last"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt last access time: %w", err)
	}

	return &analytics.AccessTimes{
		First: time.Unix(0, first).UTC(),
		Last:  time.Unix(0, last).UTC(),
	}, nil
}

func (s *RedisAnalyticsStore) UniqueVisitors(ctx context.Context, code, day string) (int64, error) {
	return s.client.SCard(ctx, visitorsKey(code, day)).Result()
}

// deviceField joins the device combination into one hash field, with
// "unknown" standing in for anything the parser could not classify.
func deviceField(deviceType, browser, os string) string {
	return orUnknown(deviceType) + "|" + orUnknown(browser) + "|" + orUnknown(os)
}

var _ analytics.Store = (*RedisAnalyticsStore)(nil)
