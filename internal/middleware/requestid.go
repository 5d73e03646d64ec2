package middleware

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader is the response header carrying the correlation id.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the correlation id, or empty outside a request.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}

	return ""
}

// RequestID generates a per-request correlation id, returns it in the
// response header, and stores it in the context for log correlation.
func RequestID(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		id := uuid.NewString()

		ctx.SetHeader(RequestIDHeader, id)
		ctx = huma.WithContext(ctx, context.WithValue(ctx.Context(), requestIDKey{}, id))

		next(ctx)
	}
}

// LoggerWith attaches the request's correlation id to a logger.
func LoggerWith(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return logger.With(zap.String("request_id", id))
	}

	return logger
}
