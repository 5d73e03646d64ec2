package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Checker reports the reachability of one dependency.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

// RedisChecker adapts a redis client to Checker.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string { return "redis" }

func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PostgresChecker adapts a pgx pool to Checker.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker creates a PostgreSQL health checker.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

func (p *PostgresChecker) Name() string { return "postgres" }

func (p *PostgresChecker) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Handler serves the health endpoints.
type Handler struct {
	checkers []Checker
}

// NewHandler creates a health handler over the given dependency checkers.
func NewHandler(checkers ...Checker) *Handler {
	return &Handler{checkers: checkers}
}

// Response reports overall and per-dependency status.
type Response struct {
	Body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies,omitempty"`
	}
}

// Check reports process health plus every dependency. Degradation is
// reported in the body, not the status code; readiness is the strict probe.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Dependencies = make(map[string]string, len(h.checkers))

	for _, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			resp.Body.Dependencies[checker.Name()] = "unhealthy"
			resp.Body.Status = "degraded"
		} else {
			resp.Body.Dependencies[checker.Name()] = "healthy"
		}
	}

	return resp, nil
}

// Liveness is a process-only check: reachable means alive.
func (h *Handler) Liveness(_ context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "alive"

	return resp, nil
}

// Readiness fails with 503 when any dependency is unreachable.
func (h *Handler) Readiness(ctx context.Context, _ *struct{}) (*Response, error) {
	resp, err := h.Check(ctx, nil)
	if err != nil {
		return nil, err
	}

	if resp.Body.Status != "ok" {
		return nil, huma.Error503ServiceUnavailable("dependencies unavailable")
	}

	resp.Body.Status = "ready"

	return resp, nil
}

// RegisterRoutes registers the health endpoints.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, "/health", h.Check)
	huma.Get(api, "/health/liveness", h.Liveness)
	huma.Get(api, "/health/readiness", h.Readiness)
}
