package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink-go/internal/config"
	"github.com/serroba/shortlink-go/internal/ratelimit"
	"github.com/serroba/shortlink-go/internal/shortener"
	"github.com/serroba/shortlink-go/internal/store"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// RedisPackage registers the shared Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (redis.UniversalClient, error) {
		options := do.MustInvoke[*config.Options](i)

		return redis.NewClient(&redis.Options{Addr: options.RedisAddr}), nil
	})
}

// PostgresPackage migrates the schema and registers the connection pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		options := do.MustInvoke[*config.Options](i)

		if err := store.Migrate(options.DatabaseURL); err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, options.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("postgres ping: %w", err)
		}

		return pool, nil
	})
}

// RepositoryPackage registers the record repository, the redirect cache, and
// the URL service on top of them.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (shortener.Repository, error) {
		return store.NewPostgresRepository(do.MustInvoke[*pgxpool.Pool](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (shortener.Cache, error) {
		return store.NewRedisCache(do.MustInvoke[redis.UniversalClient](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*shortener.Allocator, error) {
		options := do.MustInvoke[*config.Options](i)

		return shortener.NewAllocator(
			do.MustInvoke[shortener.Repository](i),
			options.CodeLength,
			options.AliasMinLength,
			options.AliasMaxLength,
		)
	})

	do.Provide(injector, func(i *do.Injector) (*shortener.Service, error) {
		options := do.MustInvoke[*config.Options](i)

		return shortener.NewService(shortener.ServiceConfig{
			Repository:   do.MustInvoke[shortener.Repository](i),
			Cache:        do.MustInvoke[shortener.Cache](i),
			Allocator:    do.MustInvoke[*shortener.Allocator](i),
			Logger:       do.MustInvoke[*zap.Logger](i),
			BaseURL:      options.BaseURL,
			MaxURLLength: options.MaxURLLength,
			CacheTTL:     options.CacheTTL(),
			ScanEnabled:  options.EnableURLScanning,
		}), nil
	})
}

// RateLimitPackage registers the counted limiter over Redis.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Limiter, error) {
		options := do.MustInvoke[*config.Options](i)
		limitStore := store.NewRateLimitRedisStore(do.MustInvoke[redis.UniversalClient](i))

		return ratelimit.NewWindowLimiter(limitStore, int64(options.RateLimitMax), options.RateLimitTTL()), nil
	})
}
