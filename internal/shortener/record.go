package shortener

import "time"

// Code represents a short URL code.
type Code string

// UrlRecord is the durable record behind one short code.
type UrlRecord struct {
	ID          string
	Code        Code
	Original    string
	Normalized  string
	HitCount    int64
	CustomAlias string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatorIP   string
	CreatorUA   string
	Metadata    map[string]any
}

// Resolvable reports whether the record may still be redirected to at t.
func (r *UrlRecord) Resolvable(t time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(t)
}

// Expired reports whether the record's expiry has passed at t.
func (r *UrlRecord) Expired(t time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(t)
}

// CachedTarget is the cache-resident snapshot of a record, enough to serve a
// redirect without touching the primary store.
type CachedTarget struct {
	Code      Code
	Original  string
	ExpiresAt *time.Time
	HitCount  int64
}

// CreateInput is a validated ingestion request.
type CreateInput struct {
	URL         string
	CustomAlias string
	ExpiresAt   *time.Time
	Metadata    map[string]any
	CreatorIP   string
	CreatorUA   string
}

// CreateResult is returned by CreateShort. IsNew is false when an existing
// resolvable record for the same normalized URL was returned instead.
type CreateResult struct {
	Code      Code
	ShortURL  string
	Original  string
	CreatedAt time.Time
	ExpiresAt *time.Time
	IsNew     bool
}

// SortField enumerates allowed list sort columns.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
	SortByHitCount  SortField = "hitCount"
	SortByOriginal  SortField = "original"
	SortByCode      SortField = "code"
)

// StatusFilter narrows a listing to active or expired records.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusActive  StatusFilter = "active"
	StatusExpired StatusFilter = "expired"
)

// ListQuery describes a paginated listing of records.
type ListQuery struct {
	Search     string
	Status     StatusFilter
	Sort       SortField
	Descending bool
	Offset     int
	Limit      int
}

// Stats summarizes the record population. Expired counts records whose
// expiry is set and has passed; active is the remainder.
type Stats struct {
	Total   int64
	Active  int64
	Expired int64
}
