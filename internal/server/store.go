package server

import (
	"context"
	"fmt"
	"time"

	"accessgate/internal/config"
	"accessgate/internal/domain"
	"accessgate/internal/modules/auth"
	"accessgate/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const redisKeyPrefix = "accessgate"

// NewRateLimitStore builds the configured rate-limit backend. The returned
// close func releases any connection the store owns.
func NewRateLimitStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (auth.RateLimitStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return repository.NewRedisRateLimitStore(client, redisKeyPrefix), client.Close, nil
	case config.BackendMemory:
		return repository.NewMemoryRateLimitStore(), noop, nil
	default:
		return repository.NewRateLimitRepository(db), noop, nil
	}
}

func PolicyFromConfig(cfg *config.Config) domain.RateLimitPolicy {
	return domain.RateLimitPolicy{
		MaxFailures: cfg.RateLimitMaxFailures,
		Window:      cfg.RateLimitWindow,
		Lockout:     cfg.RateLimitLockout,
	}
}
