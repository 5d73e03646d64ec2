package shortener

import (
	"net/url"
	"strings"
)

// trackingParams are marketing parameters stripped during normalization so
// the same logical destination dedups to one code.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"dclid":        {},
	"source":       {},
	"medium":       {},
	"campaign":     {},
}

// Normalize produces the canonical form of rawURL used for deduplication.
// - Lowercases the scheme and host; path case is left intact.
// - Strips default ports (:80 for http, :443 for https).
// - Removes a trailing slash unless the path is exactly "/".
// - Drops tracking query parameters, preserving the order of the rest.
//   When every parameter is dropped the "?" goes with them.
// - Drops an empty fragment; a non-empty fragment is preserved verbatim.
// If parsing fails the input is returned unchanged; ingestion rejects
// invalid URLs separately.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if strings.HasSuffix(u.Host, ":80") && u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else if strings.HasSuffix(u.Host, ":443") && u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	u.RawQuery = filterQuery(u.RawQuery)
	u.ForceQuery = false

	if u.Fragment == "" {
		u.Fragment = ""
		u.RawFragment = ""
	}

	return u.String()
}

// filterQuery removes tracking parameters from a raw query string while
// keeping the remaining pairs in their original order and encoding.
func filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]

	for _, pair := range pairs {
		if pair == "" {
			continue
		}

		name := pair
		if idx := strings.Index(pair, "="); idx != -1 {
			name = pair[:idx]
		}

		decoded, err := url.QueryUnescape(name)
		if err != nil {
			decoded = name
		}

		if _, tracked := trackingParams[strings.ToLower(decoded)]; tracked {
			continue
		}

		kept = append(kept, pair)
	}

	return strings.Join(kept, "&")
}
