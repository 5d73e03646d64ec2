package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidURL is returned for unparsable URLs or disallowed schemes.
	ErrInvalidURL = errors.New("invalid url")

	// ErrURLTooLong is returned when the URL exceeds the configured maximum.
	ErrURLTooLong = errors.New("url too long")

	// ErrExpiryInPast is returned when the requested expiry is not in the future.
	ErrExpiryInPast = errors.New("expiry must be in the future")

	// ErrURLBlocked is returned when the reputation service flags the URL.
	ErrURLBlocked = errors.New("url blocked by reputation service")
)

// Service orchestrates normalization, allocation, persistence, and cache
// priming for short URLs.
type Service struct {
	repo         Repository
	cache        Cache
	allocator    *Allocator
	scanner      Scanner
	logger       *zap.Logger
	baseURL      string
	maxURLLength int
	cacheTTL     time.Duration
	scanEnabled  bool
}

// ServiceConfig collects the service collaborators and policy knobs.
type ServiceConfig struct {
	Repository   Repository
	Cache        Cache
	Allocator    *Allocator
	Scanner      Scanner
	Logger       *zap.Logger
	BaseURL      string
	MaxURLLength int
	CacheTTL     time.Duration
	ScanEnabled  bool
}

// NewService creates a URL service.
func NewService(cfg ServiceConfig) *Service {
	scanner := cfg.Scanner
	if scanner == nil {
		scanner = AllowAllScanner{}
	}

	return &Service{
		repo:         cfg.Repository,
		cache:        cfg.Cache,
		allocator:    cfg.Allocator,
		scanner:      scanner,
		logger:       cfg.Logger,
		baseURL:      cfg.BaseURL,
		maxURLLength: cfg.MaxURLLength,
		cacheTTL:     cfg.CacheTTL,
		scanEnabled:  cfg.ScanEnabled,
	}
}

// ShortURL builds the externally visible short URL for a code.
func (s *Service) ShortURL(code Code) string {
	return fmt.Sprintf("%s/%s", s.baseURL, code)
}

// CreateShort ingests a URL: validates, optionally scans, normalizes, dedups,
// allocates a code, persists, and primes the cache. Identical normalized URLs
// resolve to the same record; concurrent duplicates are settled by the
// store's unique constraint on the normalized column.
func (s *Service) CreateShort(ctx context.Context, input CreateInput) (*CreateResult, error) {
	now := time.Now().UTC()

	if err := s.validateInput(ctx, input, now); err != nil {
		return nil, err
	}

	normalized := Normalize(input.URL)

	if existing, err := s.repo.FindByNormalized(ctx, normalized); err == nil {
		if existing.Resolvable(now) {
			return s.resultFor(existing, false), nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	record, err := s.buildRecord(ctx, input, normalized, now)
	if err != nil {
		return nil, err
	}

	inserted, err := s.insertResolvingConflicts(ctx, record, input.CustomAlias != "")
	if err != nil {
		return nil, err
	}

	isNew := inserted.ID == record.ID
	if isNew {
		s.primeCache(ctx, inserted)
		s.logger.Info("short url created",
			zap.String("code", string(inserted.Code)),
			zap.String("normalized", inserted.Normalized),
			zap.Bool("custom_alias", inserted.CustomAlias != ""),
		)
	}

	return s.resultFor(inserted, isNew), nil
}

func (s *Service) validateInput(ctx context.Context, input CreateInput, now time.Time) error {
	if len(input.URL) > s.maxURLLength {
		return ErrURLTooLong
	}

	u, err := url.Parse(input.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return ErrExpiryInPast
	}

	if s.scanEnabled {
		flagged, err := s.scanner.Scan(ctx, input.URL)
		if err != nil {
			// Fail-open: a broken reputation service must not stop ingestion.
			s.logger.Warn("reputation check failed", zap.String("url", input.URL), zap.Error(err))
		} else if flagged {
			return ErrURLBlocked
		}
	}

	if input.CustomAlias != "" {
		if err := s.allocator.ValidateAlias(ctx, input.CustomAlias); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) buildRecord(ctx context.Context, input CreateInput, normalized string, now time.Time) (*UrlRecord, error) {
	var code Code

	if input.CustomAlias != "" {
		code = Code(input.CustomAlias)
	} else {
		allocated, err := s.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}

		code = allocated
	}

	return &UrlRecord{
		ID:          uuid.NewString(),
		Code:        code,
		Original:    input.URL,
		Normalized:  normalized,
		CustomAlias: input.CustomAlias,
		ExpiresAt:   input.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatorIP:   input.CreatorIP,
		CreatorUA:   input.CreatorUA,
		Metadata:    input.Metadata,
	}, nil
}

// insertResolvingConflicts inserts the record, retrying code collisions once
// with a fresh allocation and resolving normalized collisions to the record
// that won the race.
func (s *Service) insertResolvingConflicts(ctx context.Context, record *UrlRecord, custom bool) (*UrlRecord, error) {
	for attempt := 0; ; attempt++ {
		err := s.repo.Insert(ctx, record)
		if err == nil {
			return record, nil
		}

		uv, ok := AsUniqueViolation(err)
		if !ok {
			return nil, err
		}

		switch uv.Field {
		case "normalized":
			existing, ferr := s.repo.FindByNormalized(ctx, record.Normalized)
			if ferr != nil {
				return nil, err
			}

			return existing, nil
		case "code":
			if custom {
				return nil, ErrAliasTaken
			}

			if attempt >= 1 {
				return nil, err
			}

			code, aerr := s.allocator.Allocate(ctx)
			if aerr != nil {
				return nil, aerr
			}

			record.Code = code
		default:
			return nil, err
		}
	}
}

func (s *Service) resultFor(record *UrlRecord, isNew bool) *CreateResult {
	return &CreateResult{
		Code:      record.Code,
		ShortURL:  s.ShortURL(record.Code),
		Original:  record.Original,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
		IsNew:     isNew,
	}
}

func (s *Service) primeCache(ctx context.Context, record *UrlRecord) {
	target := &CachedTarget{
		Code:      record.Code,
		Original:  record.Original,
		ExpiresAt: record.ExpiresAt,
		HitCount:  record.HitCount,
	}

	if err := s.cache.SetWithTTL(ctx, target, s.cacheTTL); err != nil {
		s.logger.Warn("cache priming failed", zap.String("code", string(record.Code)), zap.Error(err))
	}
}

// Resolve looks a code up cache-first, repopulating the cache from the
// repository on a miss. Returns ErrNotFound when the code is absent.
func (s *Service) Resolve(ctx context.Context, code Code) (*CachedTarget, error) {
	if target, err := s.cache.Get(ctx, code); err == nil && target != nil {
		return target, nil
	}

	record, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	target := &CachedTarget{
		Code:      record.Code,
		Original:  record.Original,
		ExpiresAt: record.ExpiresAt,
		HitCount:  record.HitCount,
	}

	if cerr := s.cache.SetWithTTL(ctx, target, s.cacheTTL); cerr != nil {
		s.logger.Warn("cache repopulation failed", zap.String("code", string(code)), zap.Error(cerr))
	}

	return target, nil
}

// Get fetches the full record from the primary store, bypassing the cache.
func (s *Service) Get(ctx context.Context, code Code) (*UrlRecord, error) {
	return s.repo.FindByCode(ctx, code)
}

// DeleteByCode removes the record and then invalidates the cache entry.
// The invalidation is synchronous: a stale cache after an admin delete is
// only tolerated for reads that started before it.
func (s *Service) DeleteByCode(ctx context.Context, code Code) (bool, error) {
	deleted, err := s.repo.Delete(ctx, code)
	if err != nil {
		return false, err
	}

	if !deleted {
		return false, nil
	}

	if err := s.cache.Invalidate(ctx, code); err != nil {
		return true, fmt.Errorf("cache invalidation: %w", err)
	}

	s.logger.Info("short url deleted", zap.String("code", string(code)))

	return true, nil
}

// IncrementHitCount applies a best-effort counter bump and opportunistically
// refreshes the cached snapshot. Errors are logged, never surfaced.
func (s *Service) IncrementHitCount(ctx context.Context, code Code, delta int64) {
	if err := s.repo.IncrementHitCount(ctx, code, delta); err != nil {
		s.logger.Warn("hit count increment failed", zap.String("code", string(code)), zap.Error(err))

		return
	}

	target, err := s.cache.Get(ctx, code)
	if err != nil || target == nil {
		return
	}

	target.HitCount += delta
	if err := s.cache.SetWithTTL(ctx, target, s.cacheTTL); err != nil {
		s.logger.Debug("cache snapshot refresh failed", zap.String("code", string(code)), zap.Error(err))
	}
}

// List returns a page of records plus the total match count.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*UrlRecord, int64, error) {
	return s.repo.List(ctx, q)
}

// Stats summarizes totals split into active and expired.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// BatchEntryResult is the per-entry outcome of a batch ingestion.
type BatchEntryResult struct {
	URL    string
	Result *CreateResult
	Err    error
}

// CreateBatch ingests up to the caller-enforced limit of URLs, collecting
// per-entry successes and failures instead of failing the whole batch.
func (s *Service) CreateBatch(ctx context.Context, inputs []CreateInput) []BatchEntryResult {
	results := make([]BatchEntryResult, 0, len(inputs))

	for _, input := range inputs {
		result, err := s.CreateShort(ctx, input)
		results = append(results, BatchEntryResult{URL: input.URL, Result: result, Err: err})
	}

	return results
}
