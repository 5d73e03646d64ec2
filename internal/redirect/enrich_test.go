package redirect_test

import (
	"testing"

	"github.com/serroba/shortlink-go/internal/redirect"
	"github.com/stretchr/testify/assert"
)

func TestHeuristicAgentParser(t *testing.T) {
	parser := redirect.HeuristicAgentParser{}

	cases := []struct {
		name string
		ua   string
		want redirect.AgentInfo
	}{
		{
			name: "desktop chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
			want: redirect.AgentInfo{DeviceType: "desktop", Browser: "Chrome", OS: "Windows"},
		},
		{
			name: "iphone safari",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
			want: redirect.AgentInfo{DeviceType: "mobile", Browser: "Safari", OS: "iOS"},
		},
		{
			name: "android firefox",
			ua:   "Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0",
			want: redirect.AgentInfo{DeviceType: "mobile", Browser: "Firefox", OS: "Android"},
		},
		{
			name: "edge on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			want: redirect.AgentInfo{DeviceType: "desktop", Browser: "Edge", OS: "Windows"},
		},
		{
			name: "googlebot",
			ua:   "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			want: redirect.AgentInfo{DeviceType: "bot", Browser: "", OS: ""},
		},
		{
			name: "ipad tablet",
			ua:   "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Safari/604.1",
			want: redirect.AgentInfo{DeviceType: "tablet", Browser: "Safari", OS: "iOS"},
		},
		{
			name: "empty agent stays empty",
			ua:   "",
			want: redirect.AgentInfo{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parser.Parse(tc.ua))
		})
	}
}

func TestNoopGeoResolver(t *testing.T) {
	info, err := redirect.NoopGeoResolver{}.Resolve(t.Context(), "203.0.113.9")

	assert.NoError(t, err)
	assert.Nil(t, info)
}
