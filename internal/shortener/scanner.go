package shortener

import "context"

// Scanner probes an external URL-reputation service. Scan returns true when
// the service positively flags the URL as malicious. Errors are treated as
// fail-open by the service layer: logged, never surfaced.
type Scanner interface {
	Scan(ctx context.Context, rawURL string) (flagged bool, err error)
}

// AllowAllScanner is the default scanner used when scanning is disabled.
type AllowAllScanner struct{}

func (AllowAllScanner) Scan(_ context.Context, _ string) (bool, error) {
	return false, nil
}
