package handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/serroba/shortlink-go/internal/middleware"
	"github.com/serroba/shortlink-go/internal/redirect"
	"github.com/serroba/shortlink-go/internal/shortener"
	"go.uber.org/zap"
)

const maxBatchSize = 100

// CreationMetrics counts successful ingestions.
type CreationMetrics interface {
	URLCreated()
}

type nopCreationMetrics struct{}

func (nopCreationMetrics) URLCreated() {}

// URLHandler serves the /api/urls surface.
type URLHandler struct {
	urls    *shortener.Service
	metrics CreationMetrics
	logger  *zap.Logger
}

// NewURLHandler creates the URL management handler.
func NewURLHandler(urls *shortener.Service, metrics CreationMetrics, logger *zap.Logger) *URLHandler {
	if metrics == nil {
		metrics = nopCreationMetrics{}
	}

	return &URLHandler{urls: urls, metrics: metrics, logger: logger}
}

// Create shortens one URL.
func (h *URLHandler) Create(ctx context.Context, req *CreateURLRequest) (*CreateURLResponse, error) {
	meta := middleware.RequestMetaFromContext(ctx)

	result, err := h.urls.CreateShort(ctx, shortener.CreateInput{
		URL:         req.Body.URL,
		CustomAlias: req.Body.CustomAlias,
		ExpiresAt:   req.Body.ExpiresAt,
		Metadata:    req.Body.Metadata,
		CreatorIP:   meta.ClientIP,
		CreatorUA:   meta.UserAgent,
	})
	if err != nil {
		return nil, mapDomainError(err)
	}

	if result.IsNew {
		h.metrics.URLCreated()
	}

	resp := &CreateURLResponse{Status: http.StatusCreated}
	resp.Body = urlBody(result)

	return resp, nil
}

func urlBody(result *shortener.CreateResult) URLBody {
	return URLBody{
		Code:      string(result.Code),
		ShortURL:  result.ShortURL,
		Original:  result.Original,
		CreatedAt: result.CreatedAt,
		ExpiresAt: result.ExpiresAt,
		IsNew:     result.IsNew,
	}
}

// List returns a paginated listing.
func (h *URLHandler) List(ctx context.Context, req *ListURLsRequest) (*ListURLsResponse, error) {
	query := shortener.ListQuery{
		Search:     req.Search,
		Status:     shortener.StatusFilter(req.Status),
		Sort:       shortener.SortField(req.Sort),
		Descending: req.Order != "ASC",
		Offset:     (req.Page - 1) * req.Limit,
		Limit:      req.Limit,
	}

	records, total, err := h.urls.List(ctx, query)
	if err != nil {
		return nil, mapDomainError(err)
	}

	resp := &ListURLsResponse{}
	resp.Body.URLs = make([]ListedURL, 0, len(records))

	for _, record := range records {
		resp.Body.URLs = append(resp.Body.URLs, ListedURL{
			Code:        string(record.Code),
			ShortURL:    h.urls.ShortURL(record.Code),
			Original:    record.Original,
			HitCount:    record.HitCount,
			CustomAlias: record.CustomAlias,
			ExpiresAt:   record.ExpiresAt,
			CreatedAt:   record.CreatedAt,
			UpdatedAt:   record.UpdatedAt,
			Metadata:    record.Metadata,
		})
	}

	resp.Body.Total = total
	resp.Body.Page = req.Page
	resp.Body.Limit = req.Limit
	resp.Body.TotalPages = int(math.Ceil(float64(total) / float64(req.Limit)))
	resp.Body.HasNext = req.Page < resp.Body.TotalPages
	resp.Body.HasPrev = req.Page > 1

	return resp, nil
}

// Stats reports total, active, and expired record counts.
func (h *URLHandler) Stats(ctx context.Context, _ *struct{}) (*URLStatsResponse, error) {
	stats, err := h.urls.Stats(ctx)
	if err != nil {
		return nil, mapDomainError(err)
	}

	resp := &URLStatsResponse{}
	resp.Body.Total = stats.Total
	resp.Body.Active = stats.Active
	resp.Body.Expired = stats.Expired

	return resp, nil
}

// Delete removes a short URL. Admin only.
func (h *URLHandler) Delete(ctx context.Context, req *CodeRequest) (*DeleteURLResponse, error) {
	deleted, err := h.urls.DeleteByCode(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, mapDomainError(err)
	}

	if !deleted {
		return nil, mapDomainError(shortener.ErrNotFound)
	}

	return &DeleteURLResponse{Status: http.StatusNoContent}, nil
}

// Batch ingests up to maxBatchSize URLs, reporting per-entry outcomes.
// Admin only.
func (h *URLHandler) Batch(ctx context.Context, req *BatchCreateRequest) (*BatchCreateResponse, error) {
	if len(req.Body.URLs) > maxBatchSize {
		return nil, mapDomainError(shortener.ErrInvalidURL)
	}

	meta := middleware.RequestMetaFromContext(ctx)
	inputs := make([]shortener.CreateInput, 0, len(req.Body.URLs))

	for _, entry := range req.Body.URLs {
		inputs = append(inputs, shortener.CreateInput{
			URL:         entry.URL,
			CustomAlias: entry.CustomAlias,
			ExpiresAt:   entry.ExpiresAt,
			CreatorIP:   meta.ClientIP,
			CreatorUA:   meta.UserAgent,
		})
	}

	resp := &BatchCreateResponse{Status: http.StatusCreated}
	resp.Body.Success = []URLBody{}
	resp.Body.Errors = []BatchError{}

	for _, outcome := range h.urls.CreateBatch(ctx, inputs) {
		if outcome.Err != nil {
			resp.Body.Errors = append(resp.Body.Errors, BatchError{
				URL:   outcome.URL,
				Error: batchErrorMessage(outcome.Err),
			})

			continue
		}

		if outcome.Result.IsNew {
			h.metrics.URLCreated()
		}

		resp.Body.Success = append(resp.Body.Success, urlBody(outcome.Result))
	}

	return resp, nil
}

func batchErrorMessage(err error) string {
	if msg := clientMessage(err); msg != "" {
		return msg
	}

	return "internal error"
}

// Preview returns the record behind a code without redirecting.
func (h *URLHandler) Preview(ctx context.Context, req *CodeRequest) (*PreviewResponse, error) {
	if !shortener.ValidCode(req.Code) {
		return nil, mapDomainError(redirect.ErrInvalidCode)
	}

	record, err := h.urls.Get(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, mapDomainError(err)
	}

	resp := &PreviewResponse{}
	resp.Body.Code = string(record.Code)
	resp.Body.Original = record.Original
	resp.Body.CreatedAt = record.CreatedAt
	resp.Body.ExpiresAt = record.ExpiresAt
	resp.Body.HitCount = record.HitCount
	resp.Body.IsExpired = record.Expired(time.Now().UTC())
	resp.Body.Metadata = record.Metadata

	return resp, nil
}
