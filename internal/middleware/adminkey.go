package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// AdminOnlyMetadata marks an operation as requiring the admin API key.
const AdminOnlyMetadata = "adminOnly"

// AdminKey enforces the configured API key on operations whose metadata
// carries AdminOnlyMetadata. The comparison is constant time so the key
// cannot be probed byte by byte.
func AdminKey(api huma.API, header, secret string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || op.Metadata[AdminOnlyMetadata] != true {
			next(ctx)

			return
		}

		provided := ctx.Header(header)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing or invalid API key")

			return
		}

		next(ctx)
	}
}
