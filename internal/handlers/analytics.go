package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/serroba/shortlink-go/internal/shortener"
	"go.uber.org/zap"
)

// AnalyticsHandler serves the /api/analytics surface.
type AnalyticsHandler struct {
	query  *analytics.Query
	logger *zap.Logger
}

// NewAnalyticsHandler creates the analytics handler.
func NewAnalyticsHandler(query *analytics.Query, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{query: query, logger: logger}
}

// Get builds the full dashboard for a code.
func (h *AnalyticsHandler) Get(ctx context.Context, req *AnalyticsRequest) (*AnalyticsResponse, error) {
	if !shortener.ValidCode(req.Code) {
		return nil, huma.Error400BadRequest("INVALID_CODE: code contains invalid characters")
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	granularity, gerr := analytics.ParseGranularity(req.Granularity)
	if gerr != nil {
		return nil, huma.Error400BadRequest(gerr.Error())
	}

	dashboard, err := h.query.Dashboard(ctx, req.Code, start, end, granularity, req.TopLimit)
	if err != nil {
		return nil, mapDomainError(err)
	}

	resp := &AnalyticsResponse{}
	resp.Body.Code = dashboard.Code
	resp.Body.Granularity = string(dashboard.Granularity)
	resp.Body.StartDate = dashboard.StartDate
	resp.Body.EndDate = dashboard.EndDate
	resp.Body.TimeSeries = timePoints(dashboard.TimeSeries)
	resp.Body.TotalHits = dashboard.TotalHits
	resp.Body.TopReferrers = rankedEntries(dashboard.TopReferrers)
	resp.Body.Geographic = rankedEntries(dashboard.Geographic)
	resp.Body.Devices = rankedEntries(dashboard.Devices)
	resp.Body.Browsers = rankedEntries(dashboard.Browsers)
	resp.Body.FirstAccessed = dashboard.FirstAccessed
	resp.Body.LastAccessed = dashboard.LastAccessed
	resp.Body.UniqueVisitors = dashboard.UniqueVisitors

	return resp, nil
}

// Summary builds the condensed view.
func (h *AnalyticsHandler) Summary(ctx context.Context, req *CodeRequest) (*SummaryResponse, error) {
	if !shortener.ValidCode(req.Code) {
		return nil, huma.Error400BadRequest("INVALID_CODE: code contains invalid characters")
	}

	summary, err := h.query.Summary(ctx, req.Code)
	if err != nil {
		return nil, mapDomainError(err)
	}

	resp := &SummaryResponse{}
	resp.Body.Code = summary.Code
	resp.Body.HitsToday = summary.HitsToday
	resp.Body.HitsLast7Days = summary.HitsLast7Days
	resp.Body.TopReferrer = summary.TopReferrer
	resp.Body.UniqueToday = summary.UniqueToday
	resp.Body.FirstAccessed = summary.FirstAccessed
	resp.Body.LastAccessed = summary.LastAccessed

	return resp, nil
}

// Export emits the hourly series as CSV rows or a JSON envelope.
func (h *AnalyticsHandler) Export(ctx context.Context, req *ExportRequest) (*ExportResponse, error) {
	if !shortener.ValidCode(req.Code) {
		return nil, huma.Error400BadRequest("INVALID_CODE: code contains invalid characters")
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	series, qerr := h.query.ExportSeries(ctx, req.Code, start, end)
	if qerr != nil {
		return nil, mapDomainError(qerr)
	}

	resp := &ExportResponse{}

	if req.Format == "csv" {
		resp.Headers.ContentType = "text/csv"
		resp.Body = exportCSV(series)

		return resp, nil
	}

	resp.Headers.ContentType = "application/json"

	envelope := struct {
		Code   string          `json:"code"`
		Points []TimePointBody `json:"points"`
	}{Code: req.Code, Points: timePoints(series)}

	body, merr := json.Marshal(envelope)
	if merr != nil {
		return nil, huma.Error500InternalServerError("internal error")
	}

	resp.Body = body

	return resp, nil
}

func exportCSV(series []analytics.TimePoint) []byte {
	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"timestamp", "hits"})

	for _, point := range series {
		_ = writer.Write([]string{
			point.Bucket.UTC().Format(time.RFC3339),
			strconv.FormatInt(point.Hits, 10),
		})
	}

	writer.Flush()

	return buf.Bytes()
}

func timePoints(series []analytics.TimePoint) []TimePointBody {
	out := make([]TimePointBody, 0, len(series))
	for _, point := range series {
		out = append(out, TimePointBody{Timestamp: point.Bucket, Hits: point.Hits})
	}

	return out
}

func rankedEntries(entries []analytics.RankedEntry) []RankedEntryBody {
	out := make([]RankedEntryBody, 0, len(entries))
	for _, entry := range entries {
		out = append(out, RankedEntryBody{
			Key:        entry.Key,
			Count:      entry.Count,
			Percentage: entry.Percentage,
		})
	}

	return out
}

// parseRange accepts ISO-8601 instants or bare dates; a bare end date spans
// to the end of that day.
func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	var start, end time.Time

	if startRaw != "" {
		parsed, _, err := parseDate(startRaw)
		if err != nil {
			return start, end, huma.Error400BadRequest("invalid startDate: " + startRaw)
		}

		start = parsed
	}

	if endRaw != "" {
		parsed, dayOnly, err := parseDate(endRaw)
		if err != nil {
			return start, end, huma.Error400BadRequest("invalid endDate: " + endRaw)
		}

		if dayOnly {
			parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		}

		end = parsed
	}

	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, huma.Error400BadRequest("endDate precedes startDate")
	}

	return start, end, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}

	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, err
	}

	return t.UTC(), true, nil
}
