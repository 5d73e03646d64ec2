package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/serroba/shortlink-go/internal/shortener"
)

// MemoryRepository is an in-memory implementation of shortener.Repository.
// It mirrors the store-level unique constraints on code and normalized, which
// makes it usable for exercising the service's conflict resolution in tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	byCode     map[shortener.Code]*shortener.UrlRecord
	normalized map[string]shortener.Code
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byCode:     make(map[shortener.Code]*shortener.UrlRecord),
		normalized: make(map[string]shortener.Code),
	}
}

func (m *MemoryRepository) Insert(_ context.Context, record *shortener.UrlRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[record.Code]; exists {
		return &shortener.UniqueViolationError{Field: "code"}
	}

	if _, exists := m.normalized[record.Normalized]; exists {
		return &shortener.UniqueViolationError{Field: "normalized"}
	}

	clone := *record
	m.byCode[record.Code] = &clone
	m.normalized[record.Normalized] = record.Code

	return nil
}

func (m *MemoryRepository) FindByCode(_ context.Context, code shortener.Code) (*shortener.UrlRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byCode[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	clone := *record

	return &clone, nil
}

func (m *MemoryRepository) FindByNormalized(_ context.Context, normalized string) (*shortener.UrlRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.normalized[normalized]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	clone := *m.byCode[code]

	return &clone, nil
}

func (m *MemoryRepository) Delete(_ context.Context, code shortener.Code) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byCode[code]
	if !ok {
		return false, nil
	}

	delete(m.byCode, code)
	delete(m.normalized, record.Normalized)

	return true, nil
}

func (m *MemoryRepository) IncrementHitCount(_ context.Context, code shortener.Code, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byCode[code]
	if !ok {
		return shortener.ErrNotFound
	}

	record.HitCount += delta
	record.UpdatedAt = time.Now().UTC()

	return nil
}

func (m *MemoryRepository) List(_ context.Context, q shortener.ListQuery) ([]*shortener.UrlRecord, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	matched := make([]*shortener.UrlRecord, 0, len(m.byCode))

	for _, record := range m.byCode {
		if !matchesStatus(record, q.Status, now) {
			continue
		}

		if q.Search != "" {
			needle := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(record.Original), needle) &&
				!strings.Contains(strings.ToLower(string(record.Code)), needle) {
				continue
			}
		}

		clone := *record
		matched = append(matched, &clone)
	}

	sortRecords(matched, q.Sort, q.Descending)

	total := int64(len(matched))

	if q.Offset >= len(matched) {
		return nil, total, nil
	}

	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	return matched[q.Offset:end], total, nil
}

func (m *MemoryRepository) Stats(_ context.Context) (*shortener.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	stats := &shortener.Stats{Total: int64(len(m.byCode))}

	for _, record := range m.byCode {
		if record.Expired(now) {
			stats.Expired++
		}
	}

	stats.Active = stats.Total - stats.Expired

	return stats, nil
}

func matchesStatus(record *shortener.UrlRecord, status shortener.StatusFilter, now time.Time) bool {
	switch status {
	case shortener.StatusActive:
		return !record.Expired(now)
	case shortener.StatusExpired:
		return record.Expired(now)
	default:
		return true
	}
}

func sortRecords(records []*shortener.UrlRecord, field shortener.SortField, descending bool) {
	less := func(a, b *shortener.UrlRecord) bool {
		switch field {
		case shortener.SortByUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case shortener.SortByHitCount:
			return a.HitCount < b.HitCount
		case shortener.SortByOriginal:
			return a.Original < b.Original
		case shortener.SortByCode:
			return a.Code < b.Code
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if descending {
			return less(records[j], records[i])
		}

		return less(records[i], records[j])
	})
}

// MemoryCache is an in-memory implementation of shortener.Cache with TTLs
// checked lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[shortener.Code]memoryCacheEntry
}

type memoryCacheEntry struct {
	target    shortener.CachedTarget
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[shortener.Code]memoryCacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, code shortener.Code) (*shortener.CachedTarget, error) {
	c.mu.RLock()
	entry, ok := c.entries[code]
	c.mu.RUnlock()

	if !ok {
		return nil, shortener.ErrNotFound
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, code)
		c.mu.Unlock()

		return nil, shortener.ErrNotFound
	}

	target := entry.target

	return &target, nil
}

func (c *MemoryCache) SetWithTTL(_ context.Context, target *shortener.CachedTarget, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryCacheEntry{target: *target}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.entries[target.Code] = entry

	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, code shortener.Code) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, code)

	return nil
}

// Compile-time checks.
var (
	_ shortener.Repository = (*MemoryRepository)(nil)
	_ shortener.Cache      = (*MemoryCache)(nil)
)
