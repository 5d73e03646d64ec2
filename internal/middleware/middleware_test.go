package middleware_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/serroba/shortlink-go/internal/middleware"
	"github.com/serroba/shortlink-go/internal/ratelimit"
	"github.com/serroba/shortlink-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoResponse struct {
	Body struct {
		IP        string `json:"ip"`
		UserAgent string `json:"userAgent"`
		RequestID string `json:"requestId"`
	}
}

func newTestAPI(t *testing.T, adminSecret string, limiter ratelimit.Limiter) humatest.TestAPI {
	t.Helper()

	_, api := humatest.New(t)

	api.UseMiddleware(
		middleware.RequestID(api),
		middleware.CaptureRequestMeta(api),
		middleware.AdminKey(api, "X-API-Key", adminSecret),
		middleware.RateLimiter(api, limiter, zap.NewNop()),
	)

	echo := func(ctx context.Context, _ *struct{}) (*echoResponse, error) {
		meta := middleware.RequestMetaFromContext(ctx)

		resp := &echoResponse{}
		resp.Body.IP = meta.ClientIP
		resp.Body.UserAgent = meta.UserAgent
		resp.Body.RequestID = middleware.RequestIDFromContext(ctx)

		return resp, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "echo",
		Method:      http.MethodGet,
		Path:        "/echo",
	}, echo)

	huma.Register(api, huma.Operation{
		OperationID: "admin-echo",
		Method:      http.MethodGet,
		Path:        "/admin",
		Metadata:    map[string]any{middleware.AdminOnlyMetadata: true},
	}, echo)

	huma.Register(api, huma.Operation{
		OperationID: "limited-echo",
		Method:      http.MethodGet,
		Path:        "/limited",
		Metadata:    map[string]any{middleware.RateLimitedMetadata: true},
	}, echo)

	return api
}

func defaultLimiter() ratelimit.Limiter {
	return ratelimit.NewWindowLimiter(store.NewRateLimitMemoryStore(), 2, time.Minute)
}

func TestRequestMeta(t *testing.T) {
	api := newTestAPI(t, "secret", defaultLimiter())

	resp := api.Get("/echo",
		"X-Forwarded-For: 203.0.113.9, 10.0.0.1",
		"User-Agent: test-agent",
	)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ip":"203.0.113.9"`)
	assert.Contains(t, resp.Body.String(), `"userAgent":"test-agent"`)
}

func TestRequestID(t *testing.T) {
	api := newTestAPI(t, "secret", defaultLimiter())

	resp := api.Get("/echo")

	require.Equal(t, http.StatusOK, resp.Code)

	header := resp.Header().Get(middleware.RequestIDHeader)
	assert.NotEmpty(t, header)
	assert.Contains(t, resp.Body.String(), header)

	second := api.Get("/echo")
	assert.NotEqual(t, header, second.Header().Get(middleware.RequestIDHeader))
}

func TestAdminKey(t *testing.T) {
	t.Run("public routes need no key", func(t *testing.T) {
		api := newTestAPI(t, "secret", defaultLimiter())

		assert.Equal(t, http.StatusOK, api.Get("/echo").Code)
	})

	t.Run("admin routes reject a missing key", func(t *testing.T) {
		api := newTestAPI(t, "secret", defaultLimiter())

		assert.Equal(t, http.StatusUnauthorized, api.Get("/admin").Code)
	})

	t.Run("admin routes reject a wrong key", func(t *testing.T) {
		api := newTestAPI(t, "secret", defaultLimiter())

		assert.Equal(t, http.StatusUnauthorized, api.Get("/admin", "X-API-Key: nope").Code)
	})

	t.Run("admin routes accept the right key", func(t *testing.T) {
		api := newTestAPI(t, "secret", defaultLimiter())

		assert.Equal(t, http.StatusOK, api.Get("/admin", "X-API-Key: secret").Code)
	})
}

func TestRateLimiter(t *testing.T) {
	api := newTestAPI(t, "secret", defaultLimiter())

	assert.Equal(t, http.StatusOK, api.Get("/limited").Code)
	assert.Equal(t, http.StatusOK, api.Get("/limited").Code)
	assert.Equal(t, http.StatusTooManyRequests, api.Get("/limited").Code)

	// Unmarked routes never consume budget.
	assert.Equal(t, http.StatusOK, api.Get("/echo").Code)
}
