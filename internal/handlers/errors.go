package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink-go/internal/redirect"
	"github.com/serroba/shortlink-go/internal/shortener"
)

// clientMessage returns the stable client-facing wording for a domain error,
// or empty when the error is not a validation-class failure.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, shortener.ErrInvalidURL):
		return "INVALID_URL: url must be a valid http or https URL"
	case errors.Is(err, shortener.ErrURLTooLong):
		return "URL_TOO_LONG: url exceeds the maximum length"
	case errors.Is(err, shortener.ErrExpiryInPast):
		return "EXPIRY_IN_PAST: expiresAt must be in the future"
	case errors.Is(err, shortener.ErrAliasInvalid):
		return "ALIAS_INVALID: alias must be 3-50 characters of [A-Za-z0-9_-]"
	case errors.Is(err, shortener.ErrAliasTaken):
		return "ALIAS_TAKEN: alias already in use"
	case errors.Is(err, shortener.ErrURLBlocked):
		return "URL_BLOCKED: url flagged by the reputation service"
	case errors.Is(err, redirect.ErrInvalidCode):
		return "INVALID_CODE: code contains invalid characters"
	case errors.Is(err, redirect.ErrInvalidRedirect):
		return "INVALID_REDIRECT: stored target rejected by policy"
	default:
		return ""
	}
}

// mapDomainError translates domain errors onto the HTTP taxonomy. Unmatched
// errors become 500, or 503 when a synchronous dependency timed out.
func mapDomainError(err error) error {
	if msg := clientMessage(err); msg != "" {
		return huma.Error400BadRequest(msg)
	}

	switch {
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, redirect.ErrGone):
		return huma.Error410Gone("short url expired")
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("dependency unavailable")
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
