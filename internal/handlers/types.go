package handlers

import "time"

// CreateURLRequest is the body for creating a short URL.
type CreateURLRequest struct {
	Body struct {
		URL         string         `doc:"The URL to shorten" example:"https://example.com/very/long/path" json:"url"`
		CustomAlias string         `doc:"Requested alias instead of a generated code" json:"customAlias,omitempty" required:"false"`
		ExpiresAt   *time.Time     `doc:"Absolute expiry instant (ISO-8601)" json:"expiresAt,omitempty" required:"false"`
		Metadata    map[string]any `doc:"Opaque metadata stored with the record" json:"metadata,omitempty" required:"false"`
	}
}

// URLBody is the canonical short-URL payload.
type URLBody struct {
	Code      string     `doc:"The short code" example:"abc123" json:"code"`
	ShortURL  string     `doc:"The full short URL" json:"shortUrl"`
	Original  string     `doc:"The original URL" json:"original"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsNew     bool       `doc:"False when an existing record for the same destination was returned" json:"isNew"`
}

// CreateURLResponse is the response for a created (or deduplicated) short URL.
type CreateURLResponse struct {
	Status int
	Body   URLBody
}

// ListURLsRequest carries the listing query parameters.
type ListURLsRequest struct {
	Page   int    `default:"1"         doc:"Page number (1-based)" minimum:"1" query:"page"`
	Limit  int    `default:"20"        doc:"Page size" maximum:"100" minimum:"1" query:"limit"`
	Sort   string `default:"createdAt" doc:"Sort field" enum:"createdAt,updatedAt,hitCount,original,code" query:"sort"`
	Order  string `default:"DESC"      doc:"Sort direction" enum:"ASC,DESC" query:"order"`
	Search string `doc:"Substring match on original URL or code" query:"search" required:"false"`
	Status string `default:"all"       doc:"Expiry filter" enum:"all,active,expired" query:"status"`
}

// ListedURL is one row of a listing.
type ListedURL struct {
	Code        string         `json:"code"`
	ShortURL    string         `json:"shortUrl"`
	Original    string         `json:"original"`
	HitCount    int64          `json:"hitCount"`
	CustomAlias string         `json:"customAlias,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ListURLsResponse is the paginated listing payload.
type ListURLsResponse struct {
	Body struct {
		URLs       []ListedURL `json:"urls"`
		Total      int64       `json:"total"`
		Page       int         `json:"page"`
		Limit      int         `json:"limit"`
		TotalPages int         `json:"totalPages"`
		HasNext    bool        `json:"hasNext"`
		HasPrev    bool        `json:"hasPrev"`
	}
}

// URLStatsResponse summarizes the record population.
type URLStatsResponse struct {
	Body struct {
		Total   int64 `json:"total"`
		Active  int64 `json:"active"`
		Expired int64 `json:"expired"`
	}
}

// CodeRequest addresses one short URL by code.
type CodeRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// DeleteURLResponse is an empty 204.
type DeleteURLResponse struct {
	Status int
}

// BatchCreateRequest is the admin bulk-ingestion body.
type BatchCreateRequest struct {
	Body struct {
		URLs []struct {
			URL         string     `json:"url"`
			CustomAlias string     `json:"customAlias,omitempty" required:"false"`
			ExpiresAt   *time.Time `json:"expiresAt,omitempty" required:"false"`
		} `json:"urls" maxItems:"100" minItems:"1"`
	}
}

// BatchError is one failed batch entry.
type BatchError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchCreateResponse aggregates per-entry outcomes.
type BatchCreateResponse struct {
	Status int
	Body   struct {
		Success []URLBody    `json:"success"`
		Errors  []BatchError `json:"errors"`
	}
}

// PreviewResponse is the non-redirecting view of a code.
type PreviewResponse struct {
	Body struct {
		Code      string         `json:"code"`
		Original  string         `json:"original"`
		CreatedAt time.Time      `json:"createdAt"`
		ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
		HitCount  int64          `json:"hitCount"`
		IsExpired bool           `json:"isExpired"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}
}

// RedirectRequest is the request for following a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse carries the redirect status, target, and the
// cache-suppression headers.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location     string `header:"Location"`
		CacheControl string `header:"Cache-Control"`
		Pragma       string `header:"Pragma"`
		RobotsTag    string `header:"X-Robots-Tag"`
	}
}

// AnalyticsRequest addresses a code's dashboard.
type AnalyticsRequest struct {
	Code        string `doc:"The short code" path:"code"`
	StartDate   string `doc:"Range start (ISO-8601 or YYYY-MM-DD)" query:"startDate" required:"false"`
	EndDate     string `doc:"Range end (ISO-8601 or YYYY-MM-DD)" query:"endDate" required:"false"`
	Granularity string `default:"hour" doc:"Time-series bucket width" enum:"minute,hour,day" query:"granularity"`
	TopLimit    int    `default:"10"   doc:"Entries per breakdown" maximum:"50" minimum:"1" query:"topLimit"`
}

// TimePointBody is one bucket of the time series.
type TimePointBody struct {
	Timestamp time.Time `json:"timestamp"`
	Hits      int64     `json:"hits"`
}

// RankedEntryBody is one breakdown row.
type RankedEntryBody struct {
	Key        string  `json:"key"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AnalyticsResponse is the dashboard payload.
type AnalyticsResponse struct {
	Body struct {
		Code           string            `json:"code"`
		Granularity    string            `json:"granularity"`
		StartDate      time.Time         `json:"startDate"`
		EndDate        time.Time         `json:"endDate"`
		TimeSeries     []TimePointBody   `json:"timeSeries"`
		TotalHits      int64             `json:"totalHits"`
		TopReferrers   []RankedEntryBody `json:"topReferrers"`
		Geographic     []RankedEntryBody `json:"geographic"`
		Devices        []RankedEntryBody `json:"devices"`
		Browsers       []RankedEntryBody `json:"browsers"`
		FirstAccessed  *time.Time        `json:"firstAccessed,omitempty"`
		LastAccessed   *time.Time        `json:"lastAccessed,omitempty"`
		UniqueVisitors int64             `json:"uniqueVisitors"`
	}
}

// SummaryResponse is the condensed analytics view.
type SummaryResponse struct {
	Body struct {
		Code          string     `json:"code"`
		HitsToday     int64      `json:"hitsToday"`
		HitsLast7Days int64      `json:"hitsLast7Days"`
		TopReferrer   string     `json:"topReferrer,omitempty"`
		UniqueToday   int64      `json:"uniqueToday"`
		FirstAccessed *time.Time `json:"firstAccessed,omitempty"`
		LastAccessed  *time.Time `json:"lastAccessed,omitempty"`
	}
}

// ExportRequest addresses a code's export.
type ExportRequest struct {
	Code      string `doc:"The short code" path:"code"`
	StartDate string `query:"startDate" required:"false"`
	EndDate   string `query:"endDate" required:"false"`
	Format    string `default:"json" doc:"Export format" enum:"csv,json" query:"format"`
}

// ExportResponse carries either the CSV bytes or the JSON envelope.
type ExportResponse struct {
	Headers struct {
		ContentType string `header:"Content-Type"`
	}
	Body []byte
}
