package redirect

import (
	"context"
	"strings"
)

// GeoInfo is the location attributed to a client IP.
type GeoInfo struct {
	Country string
	City    string
}

// GeoResolver attributes a location to an IP. Implementations may return
// (nil, nil) when nothing is known; the dispatcher treats that as absent.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (*GeoInfo, error)
}

// NoopGeoResolver is the default resolver used when no geo database is wired.
type NoopGeoResolver struct{}

func (NoopGeoResolver) Resolve(_ context.Context, _ string) (*GeoInfo, error) {
	return nil, nil
}

// AgentInfo is the classification of a user-agent string.
type AgentInfo struct {
	DeviceType string
	Browser    string
	OS         string
}

// AgentParser classifies user-agent strings. Pluggable so a full parser can
// replace the built-in heuristics.
type AgentParser interface {
	Parse(userAgent string) AgentInfo
}

// HeuristicAgentParser classifies agents by substring matching. Good enough
// for dashboard breakdowns; anything unrecognized stays empty and the
// analytics store fills in "unknown".
type HeuristicAgentParser struct{}

func (HeuristicAgentParser) Parse(userAgent string) AgentInfo {
	ua := strings.ToLower(userAgent)

	return AgentInfo{
		DeviceType: deviceType(ua),
		Browser:    browser(ua),
		OS:         operatingSystem(ua),
	}
}

func deviceType(ua string) string {
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "bot") || strings.Contains(ua, "crawler") || strings.Contains(ua, "spider"):
		return "bot"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func browser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome/"):
		return "Chrome"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident/"):
		return "Internet Explorer"
	default:
		return ""
	}
}

func operatingSystem(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "mac os x") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return ""
	}
}
