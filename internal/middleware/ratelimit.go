package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink-go/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimitedMetadata marks an operation as subject to the rate limiter.
const RateLimitedMetadata = "rateLimited"

// RateLimiter limits requests on marked operations by client IP and
// user-agent. The limiter is a pre-filter: a failing limiter store degrades
// to allowing the request rather than taking the endpoint down.
func RateLimiter(api huma.API, limiter ratelimit.Limiter, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || op.Metadata[RateLimitedMetadata] != true {
			next(ctx)

			return
		}

		allowed, err := limiter.Allow(ctx.Context(), clientKey(ctx))
		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", op.Path), zap.Error(err))
			next(ctx)

			return
		}

		if !allowed {
			logger.Warn("rate limit exceeded",
				zap.String("path", op.Path),
				zap.String("client_ip", clientIP(ctx)),
			)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")

			return
		}

		next(ctx)
	}
}

// clientKey hashes IP and user-agent into the rate limit bucket key.
func clientKey(ctx huma.Context) string {
	sum := sha256.Sum256([]byte(clientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(sum[:])
}
