package handlers_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/serroba/shortlink-go/internal/handlers"
	"github.com/serroba/shortlink-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAnalyticsFixture(t *testing.T) (*handlers.AnalyticsHandler, time.Time) {
	t.Helper()

	analyticsStore := store.NewMemoryAnalyticsStore()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{base, base.Add(30 * time.Second), base.Add(time.Hour)} {
		event := &analytics.HitEvent{
			Code:      "code123",
			Timestamp: ts,
			IP:        "203.0.113.9",
			UserAgent: "Mozilla/5.0",
			Referrer:  "https://news.example",
		}
		if i == 2 {
			event.Referrer = "https://blog.example"
		}

		require.NoError(t, analyticsStore.ApplyHit(context.Background(), event))
		require.NoError(t, analyticsStore.TouchAccessTimes(context.Background(), event.Code, ts))
	}

	query := analytics.NewQuery(analyticsStore, zap.NewNop())

	return handlers.NewAnalyticsHandler(query, zap.NewNop()), base
}

func TestGetAnalytics(t *testing.T) {
	handler, base := newAnalyticsFixture(t)

	t.Run("builds the dashboard", func(t *testing.T) {
		resp, err := handler.Get(context.Background(), &handlers.AnalyticsRequest{
			Code:        "code123",
			StartDate:   base.Format(time.RFC3339),
			EndDate:     base.Add(2 * time.Hour).Format(time.RFC3339),
			Granularity: "hour",
			TopLimit:    10,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Body.TotalHits)
		require.Len(t, resp.Body.TimeSeries, 3)
		assert.Equal(t, int64(2), resp.Body.TimeSeries[0].Hits)
		assert.Equal(t, "https://news.example", resp.Body.TopReferrers[0].Key)
	})

	t.Run("accepts bare dates", func(t *testing.T) {
		resp, err := handler.Get(context.Background(), &handlers.AnalyticsRequest{
			Code:        "code123",
			StartDate:   "2024-01-01",
			EndDate:     "2024-01-01",
			Granularity: "day",
		})

		require.NoError(t, err)
		require.Len(t, resp.Body.TimeSeries, 1)
		assert.Equal(t, int64(3), resp.Body.TimeSeries[0].Hits)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		_, err := handler.Get(context.Background(), &handlers.AnalyticsRequest{
			Code:      "code123",
			StartDate: "January 1st",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid startDate")
	})

	t.Run("rejects inverted ranges", func(t *testing.T) {
		_, err := handler.Get(context.Background(), &handlers.AnalyticsRequest{
			Code:      "code123",
			StartDate: "2024-01-02",
			EndDate:   "2024-01-01",
		})

		require.Error(t, err)
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		_, err := handler.Get(context.Background(), &handlers.AnalyticsRequest{Code: "bad code!"})

		require.Error(t, err)
	})
}

func TestExport(t *testing.T) {
	handler, base := newAnalyticsFixture(t)

	t.Run("emits csv rows", func(t *testing.T) {
		resp, err := handler.Export(context.Background(), &handlers.ExportRequest{
			Code:      "code123",
			StartDate: base.Format(time.RFC3339),
			EndDate:   base.Add(time.Hour).Format(time.RFC3339),
			Format:    "csv",
		})

		require.NoError(t, err)
		assert.Equal(t, "text/csv", resp.Headers.ContentType)

		lines := strings.Split(strings.TrimSpace(string(resp.Body)), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "timestamp,hits", lines[0])
		assert.Equal(t, "2024-01-01T12:00:00Z,2", lines[1])
		assert.Equal(t, "2024-01-01T13:00:00Z,1", lines[2])
	})

	t.Run("emits a json envelope", func(t *testing.T) {
		resp, err := handler.Export(context.Background(), &handlers.ExportRequest{
			Code:      "code123",
			StartDate: base.Format(time.RFC3339),
			EndDate:   base.Add(time.Hour).Format(time.RFC3339),
			Format:    "json",
		})

		require.NoError(t, err)
		assert.Equal(t, "application/json", resp.Headers.ContentType)
		assert.Contains(t, string(resp.Body), `"code":"code123"`)
		assert.Contains(t, string(resp.Body), `"hits":2`)
	})
}

func TestSummary(t *testing.T) {
	handler, _ := newAnalyticsFixture(t)

	resp, err := handler.Summary(context.Background(), &handlers.CodeRequest{Code: "code123"})

	require.NoError(t, err)
	assert.Equal(t, "code123", resp.Body.Code)
	assert.Equal(t, "https://news.example", resp.Body.TopReferrer)
	require.NotNil(t, resp.Body.FirstAccessed)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), *resp.Body.FirstAccessed)
}
