package handlers

import (
	"context"

	"github.com/serroba/shortlink-go/internal/middleware"
	"github.com/serroba/shortlink-go/internal/redirect"
	"go.uber.org/zap"
)

// RedirectHandler serves GET /{code}.
type RedirectHandler struct {
	dispatcher *redirect.Dispatcher
	logger     *zap.Logger
}

// NewRedirectHandler creates the redirect handler.
func NewRedirectHandler(dispatcher *redirect.Dispatcher, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{dispatcher: dispatcher, logger: logger}
}

// Redirect resolves the code and responds with the dispatcher's outcome plus
// cache-suppression headers so intermediaries never serve a stale target.
func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	meta := middleware.RequestMetaFromContext(ctx)

	outcome, err := h.dispatcher.Resolve(ctx, req.Code, redirect.RequestContext{
		IP:        meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	})
	if err != nil {
		return nil, mapDomainError(err)
	}

	middleware.LoggerWith(ctx, h.logger).Debug("redirect served",
		zap.String("code", req.Code),
		zap.Int("status", outcome.Status),
	)

	resp := &RedirectResponse{Status: outcome.Status}
	resp.Headers.Location = outcome.Location
	resp.Headers.CacheControl = "no-cache, no-store, must-revalidate"
	resp.Headers.Pragma = "no-cache"
	resp.Headers.RobotsTag = "noindex, nofollow"

	return resp, nil
}
