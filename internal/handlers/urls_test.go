package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/serroba/shortlink-go/internal/handlers"
	"github.com/serroba/shortlink-go/internal/middleware"
	"github.com/serroba/shortlink-go/internal/shortener"
	"github.com/serroba/shortlink-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	repo    *store.MemoryRepository
	service *shortener.Service
	handler *handlers.URLHandler
	created int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := store.NewMemoryRepository()
	cache := store.NewMemoryCache()

	allocator, err := shortener.NewAllocator(repo, 7, 3, 50)
	require.NoError(t, err)

	service := shortener.NewService(shortener.ServiceConfig{
		Repository:   repo,
		Cache:        cache,
		Allocator:    allocator,
		Logger:       zap.NewNop(),
		BaseURL:      "http://localhost:8080",
		MaxURLLength: 2048,
		CacheTTL:     time.Hour,
	})

	f := &fixture{repo: repo, service: service}
	f.handler = handlers.NewURLHandler(service, countingMetrics{f}, zap.NewNop())

	return f
}

type countingMetrics struct{ f *fixture }

func (m countingMetrics) URLCreated() { m.f.created++ }

func createRequest(url string) *handlers.CreateURLRequest {
	req := &handlers.CreateURLRequest{}
	req.Body.URL = url

	return req
}

func TestCreate(t *testing.T) {
	t.Run("creates a short url", func(t *testing.T) {
		f := newFixture(t)

		ctx := middleware.ContextWithRequestMeta(context.Background(), middleware.RequestMeta{
			ClientIP:  "203.0.113.9",
			UserAgent: "Mozilla/5.0",
		})

		resp, err := f.handler.Create(ctx, createRequest("https://example.com/page"))

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.Status)
		assert.True(t, resp.Body.IsNew)
		assert.Contains(t, resp.Body.ShortURL, resp.Body.Code)
		assert.Equal(t, 1, f.created)

		record, err := f.repo.FindByCode(context.Background(), shortener.Code(resp.Body.Code))
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.9", record.CreatorIP)
	})

	t.Run("dedup does not count a new creation", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.handler.Create(context.Background(), createRequest("https://example.com/page"))
		require.NoError(t, err)

		resp, err := f.handler.Create(context.Background(), createRequest("https://example.com/page?utm_source=x"))
		require.NoError(t, err)

		assert.False(t, resp.Body.IsNew)
		assert.Equal(t, 1, f.created)
	})

	t.Run("maps validation failures to 400", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.handler.Create(context.Background(), createRequest("ftp://example.com"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "INVALID_URL")
	})

	t.Run("maps alias conflicts to 400", func(t *testing.T) {
		f := newFixture(t)

		req := createRequest("https://a.com/x")
		req.Body.CustomAlias = "my-link"

		_, err := f.handler.Create(context.Background(), req)
		require.NoError(t, err)

		other := createRequest("https://b.com/y")
		other.Body.CustomAlias = "my-link"

		_, err = f.handler.Create(context.Background(), other)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ALIAS_TAKEN")
	})
}

func TestList(t *testing.T) {
	f := newFixture(t)

	for _, url := range []string{
		"https://a.example/1",
		"https://a.example/2",
		"https://b.example/3",
	} {
		_, err := f.handler.Create(context.Background(), createRequest(url))
		require.NoError(t, err)
	}

	t.Run("paginates with navigation flags", func(t *testing.T) {
		resp, err := f.handler.List(context.Background(), &handlers.ListURLsRequest{
			Page:  1,
			Limit: 2,
			Sort:  "createdAt",
			Order: "DESC",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Body.Total)
		assert.Len(t, resp.Body.URLs, 2)
		assert.Equal(t, 2, resp.Body.TotalPages)
		assert.True(t, resp.Body.HasNext)
		assert.False(t, resp.Body.HasPrev)
	})

	t.Run("searches by original", func(t *testing.T) {
		resp, err := f.handler.List(context.Background(), &handlers.ListURLsRequest{
			Page:   1,
			Limit:  20,
			Search: "b.example",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Body.Total)
	})
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Create(context.Background(), createRequest("https://a.example/1"))
	require.NoError(t, err)

	resp, err := f.handler.Stats(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Body.Total)
	assert.Equal(t, int64(1), resp.Body.Active)
	assert.Equal(t, int64(0), resp.Body.Expired)
}

func TestDelete(t *testing.T) {
	t.Run("deletes and returns 204", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.handler.Create(context.Background(), createRequest("https://a.example/1"))
		require.NoError(t, err)

		resp, err := f.handler.Delete(context.Background(), &handlers.CodeRequest{Code: created.Body.Code})

		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.Status)
	})

	t.Run("404 for unknown codes", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.handler.Delete(context.Background(), &handlers.CodeRequest{Code: "missing1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestBatch(t *testing.T) {
	f := newFixture(t)

	req := &handlers.BatchCreateRequest{}
	req.Body.URLs = []struct {
		URL         string     `json:"url"`
		CustomAlias string     `json:"customAlias,omitempty" required:"false"`
		ExpiresAt   *time.Time `json:"expiresAt,omitempty" required:"false"`
	}{
		{URL: "https://a.example/1"},
		{URL: "ftp://bad.example"},
		{URL: "https://b.example/2"},
	}

	resp, err := f.handler.Batch(context.Background(), req)

	require.NoError(t, err)
	assert.Len(t, resp.Body.Success, 2)
	require.Len(t, resp.Body.Errors, 1)
	assert.Equal(t, "ftp://bad.example", resp.Body.Errors[0].URL)
	assert.Contains(t, resp.Body.Errors[0].Error, "INVALID_URL")
}

func TestPreview(t *testing.T) {
	t.Run("returns the record without redirecting", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.handler.Create(context.Background(), createRequest("https://a.example/1"))
		require.NoError(t, err)

		resp, err := f.handler.Preview(context.Background(), &handlers.CodeRequest{Code: created.Body.Code})

		require.NoError(t, err)
		assert.Equal(t, "https://a.example/1", resp.Body.Original)
		assert.False(t, resp.Body.IsExpired)
	})

	t.Run("marks expired records", func(t *testing.T) {
		f := newFixture(t)

		expiry := time.Now().Add(30 * time.Millisecond)
		req := createRequest("https://a.example/1")
		req.Body.ExpiresAt = &expiry

		created, err := f.handler.Create(context.Background(), req)
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		resp, err := f.handler.Preview(context.Background(), &handlers.CodeRequest{Code: created.Body.Code})

		require.NoError(t, err)
		assert.True(t, resp.Body.IsExpired)
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.handler.Preview(context.Background(), &handlers.CodeRequest{Code: "bad code!"})

		require.Error(t, err)
	})
}
