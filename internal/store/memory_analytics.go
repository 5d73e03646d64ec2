package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/serroba/shortlink-go/internal/analytics"
)

// MemoryAnalyticsStore is an in-memory implementation of analytics.Store with
// the same commutative-increment and idempotent-set semantics as the Redis
// adapter. Used by consumer and query tests.
type MemoryAnalyticsStore struct {
	mu        sync.RWMutex
	hours     map[string]map[int]int64 // "code|day" -> hour -> count
	minutes   map[string]map[int]int64 // "code|day|hour" -> minute -> count
	referrers map[string]map[string]int64
	countries map[string]map[string]int64
	devices   map[string]map[analytics.DeviceKey]int64
	access    map[string]*analytics.AccessTimes
	visitors  map[string]map[string]struct{} // "code|day" -> set of hashes

	// ApplyErr, when set, fails the next ApplyHit; used to exercise the
	// consumer's retry path.
	ApplyErr error
}

// NewMemoryAnalyticsStore creates an empty in-memory analytics store.
func NewMemoryAnalyticsStore() *MemoryAnalyticsStore {
	return &MemoryAnalyticsStore{
		hours:     make(map[string]map[int]int64),
		minutes:   make(map[string]map[int]int64),
		referrers: make(map[string]map[string]int64),
		countries: make(map[string]map[string]int64),
		devices:   make(map[string]map[analytics.DeviceKey]int64),
		access:    make(map[string]*analytics.AccessTimes),
		visitors:  make(map[string]map[string]struct{}),
	}
}

func (m *MemoryAnalyticsStore) ApplyHit(_ context.Context, event *analytics.HitEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ApplyErr != nil {
		err := m.ApplyErr
		m.ApplyErr = nil

		return err
	}

	ts := event.Timestamp.UTC()
	day := ts.Format("2006-01-02")

	hourKey := event.Code + "|" + day
	if m.hours[hourKey] == nil {
		m.hours[hourKey] = make(map[int]int64)
	}

	m.hours[hourKey][ts.Hour()]++

	minuteKey := fmt.Sprintf("%s|%s|%d", event.Code, day, ts.Hour())
	if m.minutes[minuteKey] == nil {
		m.minutes[minuteKey] = make(map[int]int64)
	}

	m.minutes[minuteKey][ts.Minute()]++

	if event.Referrer != "" && event.Referrer != "direct" {
		if m.referrers[event.Code] == nil {
			m.referrers[event.Code] = make(map[string]int64)
		}

		m.referrers[event.Code][event.Referrer]++
	}

	if event.Country != "" {
		if m.countries[event.Code] == nil {
			m.countries[event.Code] = make(map[string]int64)
		}

		m.countries[event.Code][event.Country]++
	}

	key := analytics.DeviceKey{
		DeviceType: orUnknown(event.DeviceType),
		Browser:    orUnknown(event.Browser),
		OS:         orUnknown(event.OS),
	}

	if m.devices[event.Code] == nil {
		m.devices[event.Code] = make(map[analytics.DeviceKey]int64)
	}

	m.devices[event.Code][key]++

	return nil
}

func (m *MemoryAnalyticsStore) TouchAccessTimes(_ context.Context, code string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t = t.UTC()

	current, ok := m.access[code]
	if !ok {
		m.access[code] = &analytics.AccessTimes{First: t, Last: t}

		return nil
	}

	if t.Before(current.First) {
		current.First = t
	}

	if t.After(current.Last) {
		current.Last = t
	}

	return nil
}

func (m *MemoryAnalyticsStore) RecordUniqueVisitor(_ context.Context, code, day, visitorHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := code + "|" + day
	if m.visitors[key] == nil {
		m.visitors[key] = make(map[string]struct{})
	}

	m.visitors[key][visitorHash] = struct{}{}

	return nil
}

func (m *MemoryAnalyticsStore) HourlyHits(_ context.Context, code, day string) (map[int]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyIntMap(m.hours[code+"|"+day]), nil
}

func (m *MemoryAnalyticsStore) MinuteHits(_ context.Context, code, day string, hour int) (map[int]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyIntMap(m.minutes[fmt.Sprintf("%s|%s|%d", code, day, hour)]), nil
}

func (m *MemoryAnalyticsStore) Referrers(_ context.Context, code string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyStringMap(m.referrers[code]), nil
}

func (m *MemoryAnalyticsStore) Geographic(_ context.Context, code string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyStringMap(m.countries[code]), nil
}

func (m *MemoryAnalyticsStore) Devices(_ context.Context, code string) (map[analytics.DeviceKey]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[analytics.DeviceKey]int64, len(m.devices[code]))
	for k, v := range m.devices[code] {
		out[k] = v
	}

	return out, nil
}

func (m *MemoryAnalyticsStore) AccessTimes(_ context.Context, code string) (*analytics.AccessTimes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current, ok := m.access[code]
	if !ok {
		return nil, nil
	}

	clone := *current

	return &clone, nil
}

func (m *MemoryAnalyticsStore) UniqueVisitors(_ context.Context, code, day string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.visitors[code+"|"+day])), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}

func copyIntMap(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

func copyStringMap(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

var _ analytics.Store = (*MemoryAnalyticsStore)(nil)
