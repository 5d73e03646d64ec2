package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink-go/internal/middleware"
)

// RegisterURLRoutes registers the /api/urls surface. Mutating public routes
// carry the rate-limit flag; destructive and bulk routes are admin only.
func RegisterURLRoutes(api huma.API, h *URLHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-short-url",
		Method:        http.MethodPost,
		Path:          "/api/urls",
		Summary:       "Create short URL",
		Description:   "Shortens a URL, deduplicating against existing records for the same destination.",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			middleware.RateLimitedMetadata: true,
		},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "list-urls",
		Method:      http.MethodGet,
		Path:        "/api/urls",
		Summary:     "List short URLs",
		Tags:        []string{"URLs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "url-stats",
		Method:      http.MethodGet,
		Path:        "/api/urls/stats",
		Summary:     "Record population stats",
		Tags:        []string{"URLs"},
	}, h.Stats)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-url",
		Method:        http.MethodDelete,
		Path:          "/api/urls/{code}",
		Summary:       "Delete short URL",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusNoContent,
		Metadata: map[string]any{
			middleware.AdminOnlyMetadata: true,
		},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID:   "batch-create-urls",
		Method:        http.MethodPost,
		Path:          "/api/urls/batch",
		Summary:       "Create short URLs in bulk",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			middleware.AdminOnlyMetadata: true,
		},
	}, h.Batch)
}

// RegisterAnalyticsRoutes registers the /api/analytics surface.
func RegisterAnalyticsRoutes(api huma.API, h *AnalyticsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-analytics",
		Method:      http.MethodGet,
		Path:        "/api/analytics/{code}",
		Summary:     "Per-code analytics dashboard",
		Tags:        []string{"Analytics"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "analytics-summary",
		Method:      http.MethodGet,
		Path:        "/api/analytics/{code}/summary",
		Summary:     "Condensed analytics view",
		Tags:        []string{"Analytics"},
	}, h.Summary)

	huma.Register(api, huma.Operation{
		OperationID: "analytics-export",
		Method:      http.MethodGet,
		Path:        "/api/analytics/{code}/export",
		Summary:     "Export the hit time series",
		Tags:        []string{"Analytics"},
	}, h.Export)
}

// RegisterRedirectRoutes registers the hot-path routes at the root.
func RegisterRedirectRoutes(api huma.API, redirectH *RedirectHandler, urlH *URLHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to the original URL",
		Tags:        []string{"Redirect"},
	}, redirectH.Redirect)

	huma.Register(api, huma.Operation{
		OperationID: "preview-url",
		Method:      http.MethodGet,
		Path:        "/{code}/preview",
		Summary:     "Preview a short URL without following it",
		Tags:        []string{"Redirect"},
	}, urlH.Preview)
}
