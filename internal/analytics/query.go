package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Granularity selects the time-series bucket width.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// ErrBadGranularity is returned for unknown granularity values.
var ErrBadGranularity = errors.New("granularity must be minute, hour, or day")

// ParseGranularity validates a client-supplied granularity, defaulting to hour.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "", string(GranularityHour):
		return GranularityHour, nil
	case string(GranularityMinute):
		return GranularityMinute, nil
	case string(GranularityDay):
		return GranularityDay, nil
	default:
		return "", ErrBadGranularity
	}
}

const (
	defaultTopLimit = 10
	maxTopLimit     = 50

	defaultHourRange   = 7 * 24 * time.Hour
	defaultMinuteRange = 24 * time.Hour
)

// TimePoint is one bucket of the hit time series.
type TimePoint struct {
	Bucket time.Time
	Hits   int64
}

// RankedEntry is one row of a top-N breakdown with its share of the total.
type RankedEntry struct {
	Key        string
	Count      int64
	Percentage float64
}

// Dashboard is the reconstructed analytics view for one code.
type Dashboard struct {
	Code           string
	Granularity    Granularity
	StartDate      time.Time
	EndDate        time.Time
	TimeSeries     []TimePoint
	TotalHits      int64
	TopReferrers   []RankedEntry
	Geographic     []RankedEntry
	Devices        []RankedEntry
	Browsers       []RankedEntry
	FirstAccessed  *time.Time
	LastAccessed   *time.Time
	UniqueVisitors int64
}

// Summary is the condensed per-code view.
type Summary struct {
	Code           string
	HitsToday      int64
	HitsLast7Days  int64
	TopReferrer    string
	UniqueToday    int64
	FirstAccessed  *time.Time
	LastAccessed   *time.Time
}

// Query reconstructs dashboards from the counter store.
type Query struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewQuery creates the analytics query service.
func NewQuery(store Store, logger *zap.Logger) *Query {
	return &Query{store: store, logger: logger, now: time.Now}
}

// Dashboard builds the full analytics payload for a code. A zero start or
// end falls back to a granularity-dependent default range ending now.
// Buckets with no hits are materialized as zeros.
func (q *Query) Dashboard(
	ctx context.Context,
	code string,
	start, end time.Time,
	granularity Granularity,
	topLimit int,
) (*Dashboard, error) {
	start, end = q.resolveRange(start, end, granularity)

	if topLimit <= 0 {
		topLimit = defaultTopLimit
	} else if topLimit > maxTopLimit {
		topLimit = maxTopLimit
	}

	series, err := q.timeSeries(ctx, code, start, end, granularity)
	if err != nil {
		return nil, fmt.Errorf("time series: %w", err)
	}

	total, err := q.totalHits(ctx, code, start, end)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}

	referrers, err := q.store.Referrers(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("referrers: %w", err)
	}

	countries, err := q.store.Geographic(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("geographic: %w", err)
	}

	devices, browsers, err := q.deviceBreakdown(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}

	access, err := q.store.AccessTimes(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("access times: %w", err)
	}

	unique, err := q.store.UniqueVisitors(ctx, code, q.now().UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("unique visitors: %w", err)
	}

	dashboard := &Dashboard{
		Code:           code,
		Granularity:    granularity,
		StartDate:      start,
		EndDate:        end,
		TimeSeries:     series,
		TotalHits:      total,
		TopReferrers:   rank(referrers, topLimit),
		Geographic:     rank(countries, topLimit),
		Devices:        devices,
		Browsers:       browsers,
		UniqueVisitors: unique,
	}

	if access != nil {
		first, last := access.First, access.Last
		dashboard.FirstAccessed = &first
		dashboard.LastAccessed = &last
	}

	return dashboard, nil
}

// Summary builds the condensed view: today's and the trailing week's hits,
// the leading referrer, and the access window.
func (q *Query) Summary(ctx context.Context, code string) (*Summary, error) {
	now := q.now().UTC()
	today := now.Format("2006-01-02")

	hitsToday, err := q.totalHits(ctx, code, startOfDay(now), now)
	if err != nil {
		return nil, err
	}

	week, err := q.totalHits(ctx, code, now.Add(-defaultHourRange), now)
	if err != nil {
		return nil, err
	}

	referrers, err := q.store.Referrers(ctx, code)
	if err != nil {
		return nil, err
	}

	unique, err := q.store.UniqueVisitors(ctx, code, today)
	if err != nil {
		return nil, err
	}

	access, err := q.store.AccessTimes(ctx, code)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Code:          code,
		HitsToday:     hitsToday,
		HitsLast7Days: week,
		UniqueToday:   unique,
	}

	if top := rank(referrers, 1); len(top) > 0 {
		summary.TopReferrer = top[0].Key
	}

	if access != nil {
		first, last := access.First, access.Last
		summary.FirstAccessed = &first
		summary.LastAccessed = &last
	}

	return summary, nil
}

// ExportSeries returns the hourly series for the range, suitable for CSV or
// JSON export rows.
func (q *Query) ExportSeries(ctx context.Context, code string, start, end time.Time) ([]TimePoint, error) {
	start, end = q.resolveRange(start, end, GranularityHour)

	return q.timeSeries(ctx, code, start, end, GranularityHour)
}

func (q *Query) resolveRange(start, end time.Time, granularity Granularity) (time.Time, time.Time) {
	if end.IsZero() {
		end = q.now().UTC()
	}

	if start.IsZero() {
		span := defaultHourRange
		if granularity == GranularityMinute {
			span = defaultMinuteRange
		}

		start = end.Add(-span)
	}

	return start.UTC(), end.UTC()
}

func (q *Query) timeSeries(
	ctx context.Context,
	code string,
	start, end time.Time,
	granularity Granularity,
) ([]TimePoint, error) {
	switch granularity {
	case GranularityMinute:
		return q.minuteSeries(ctx, code, start, end)
	case GranularityDay:
		return q.daySeries(ctx, code, start, end)
	default:
		return q.hourSeries(ctx, code, start, end)
	}
}

func (q *Query) hourSeries(ctx context.Context, code string, start, end time.Time) ([]TimePoint, error) {
	var series []TimePoint

	byDay := make(map[string]map[int]int64)

	for bucket := start.Truncate(time.Hour); !bucket.After(end); bucket = bucket.Add(time.Hour) {
		day := bucket.Format("2006-01-02")

		hours, ok := byDay[day]
		if !ok {
			fetched, err := q.store.HourlyHits(ctx, code, day)
			if err != nil {
				return nil, err
			}

			hours = fetched
			byDay[day] = hours
		}

		series = append(series, TimePoint{Bucket: bucket, Hits: hours[bucket.Hour()]})
	}

	return series, nil
}

func (q *Query) daySeries(ctx context.Context, code string, start, end time.Time) ([]TimePoint, error) {
	var series []TimePoint

	for bucket := startOfDay(start); !bucket.After(end); bucket = bucket.AddDate(0, 0, 1) {
		hours, err := q.store.HourlyHits(ctx, code, bucket.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}

		var total int64
		for _, count := range hours {
			total += count
		}

		series = append(series, TimePoint{Bucket: bucket, Hits: total})
	}

	return series, nil
}

func (q *Query) minuteSeries(ctx context.Context, code string, start, end time.Time) ([]TimePoint, error) {
	var series []TimePoint

	byHour := make(map[string]map[int]int64)

	for bucket := start.Truncate(time.Minute); !bucket.After(end); bucket = bucket.Add(time.Minute) {
		day := bucket.Format("2006-01-02")
		hourKey := fmt.Sprintf("%s:%02d", day, bucket.Hour())

		minutes, ok := byHour[hourKey]
		if !ok {
			fetched, err := q.store.MinuteHits(ctx, code, day, bucket.Hour())
			if err != nil {
				return nil, err
			}

			minutes = fetched
			byHour[hourKey] = minutes
		}

		series = append(series, TimePoint{Bucket: bucket, Hits: minutes[bucket.Minute()]})
	}

	return series, nil
}

// totalHits sums the hour-table counters whose buckets fall inside the range.
func (q *Query) totalHits(ctx context.Context, code string, start, end time.Time) (int64, error) {
	var total int64

	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		hours, err := q.store.HourlyHits(ctx, code, day.Format("2006-01-02"))
		if err != nil {
			return 0, err
		}

		for hour, count := range hours {
			bucket := day.Add(time.Duration(hour) * time.Hour)
			if bucket.Before(start.Truncate(time.Hour)) || bucket.After(end) {
				continue
			}

			total += count
		}
	}

	return total, nil
}

func (q *Query) deviceBreakdown(ctx context.Context, code string) ([]RankedEntry, []RankedEntry, error) {
	combos, err := q.store.Devices(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	deviceCounts := make(map[string]int64)
	browserCounts := make(map[string]int64)

	for key, count := range combos {
		deviceCounts[key.DeviceType] += count
		browserCounts[key.Browser] += count
	}

	return rank(deviceCounts, defaultTopLimit), rank(browserCounts, defaultTopLimit), nil
}

// rank sorts the counts descending, truncates to limit, and attaches each
// entry's percentage of the untruncated total.
func rank(counts map[string]int64, limit int) []RankedEntry {
	if len(counts) == 0 {
		return nil
	}

	var sum int64
	entries := make([]RankedEntry, 0, len(counts))

	for key, count := range counts {
		entries = append(entries, RankedEntry{Key: key, Count: count})
		sum += count
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}

		return entries[i].Key < entries[j].Key
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	for i := range entries {
		entries[i].Percentage = 100 * float64(entries[i].Count) / float64(sum)
	}

	return entries
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
