package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/serroba/shortlink-go/internal/config"
	"github.com/serroba/shortlink-go/internal/handlers"
	"github.com/serroba/shortlink-go/internal/health"
	"github.com/serroba/shortlink-go/internal/messaging"
	"github.com/serroba/shortlink-go/internal/metrics"
	"github.com/serroba/shortlink-go/internal/middleware"
	"github.com/serroba/shortlink-go/internal/ratelimit"
	"github.com/serroba/shortlink-go/internal/redirect"
	"github.com/serroba/shortlink-go/internal/shortener"
	"go.uber.org/zap"
)

// DispatcherPackage registers the redirect dispatcher with the default
// enrichment plugs.
func DispatcherPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redirect.Dispatcher, error) {
		return redirect.NewDispatcher(
			do.MustInvoke[*shortener.Service](i),
			do.MustInvoke[messaging.Publish[analytics.HitEvent]](i),
			redirect.NoopGeoResolver{},
			redirect.HeuristicAgentParser{},
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// HTTPPackage wires the router, the huma API with its middleware chain, and
// every route group, including the metrics endpoints on the bare mux.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		options := do.MustInvoke[*config.Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		api := humachi.New(router, huma.DefaultConfig("Shortlink", "1.0.0"))

		api.UseMiddleware(
			middleware.RequestID(api),
			middleware.CaptureRequestMeta(api),
			middleware.AdminKey(api, options.APIKeyHeader, options.AdminAPIKey),
			middleware.RateLimiter(api, do.MustInvoke[ratelimit.Limiter](i), logger),
		)

		urlHandler := handlers.NewURLHandler(
			do.MustInvoke[*shortener.Service](i),
			do.MustInvoke[*metrics.Metrics](i),
			logger,
		)
		redirectHandler := handlers.NewRedirectHandler(do.MustInvoke[*redirect.Dispatcher](i), logger)
		analyticsHandler := handlers.NewAnalyticsHandler(do.MustInvoke[*analytics.Query](i), logger)

		healthHandler := health.NewHandler(
			health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i)),
			health.NewRedisChecker(do.MustInvoke[redis.UniversalClient](i)),
		)

		handlers.RegisterURLRoutes(api, urlHandler)
		handlers.RegisterAnalyticsRoutes(api, analyticsHandler)
		handlers.RegisterRedirectRoutes(api, redirectHandler, urlHandler)
		health.RegisterRoutes(api, healthHandler)

		m := do.MustInvoke[*metrics.Metrics](i)
		router.Handle("/metrics", m.Handler())
		router.Handle("/metrics/json", m.JSONHandler())

		return api, nil
	})
}
