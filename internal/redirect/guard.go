package redirect

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidRedirect is returned when a stored target fails the
// open-redirect policy and must not be emitted as a Location header.
var ErrInvalidRedirect = errors.New("redirect target rejected by policy")

// suspiciousTLDs is a minimal policy set, not a security boundary.
var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf"}

// permanentHosts are known-stable destinations served with a 301; everything
// else gets a 302 so the target can still be changed.
var permanentHosts = map[string]struct{}{
	"youtube.com":       {},
	"youtu.be":          {},
	"github.com":        {},
	"gitlab.com":        {},
	"twitter.com":       {},
	"x.com":             {},
	"facebook.com":      {},
	"instagram.com":     {},
	"linkedin.com":      {},
	"medium.com":        {},
	"stackoverflow.com": {},
}

// ValidateTarget applies the open-redirect defense to a stored original URL:
// http(s) scheme only, no loopback or private/link-local hosts, no
// suspicious TLDs.
func ValidateTarget(original string) error {
	u, err := url.Parse(original)
	if err != nil {
		return fmt.Errorf("%w: unparsable target", ErrInvalidRedirect)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidRedirect, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidRedirect)
	}

	if host == "localhost" {
		return fmt.Errorf("%w: loopback host", ErrInvalidRedirect)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: internal address %s", ErrInvalidRedirect, host)
		}
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return fmt.Errorf("%w: suspicious tld %s", ErrInvalidRedirect, tld)
		}
	}

	return nil
}

// PermanentHost reports whether the target's effective host (leading "www."
// stripped) is on the stable allowlist.
func PermanentHost(original string) bool {
	u, err := url.Parse(original)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	_, ok := permanentHosts[host]

	return ok
}
