package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"accessgate/internal/domain"

	"github.com/redis/go-redis/v9"
)

// A WATCH transaction is retried at most once per competing commit.
const maxWatchAttempts = 32

// RedisRateLimitStore keeps counters in a Redis hash per key. Increments use
// WATCH/MULTI and are retried when another client touched the key.
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRateLimitStore(client *redis.Client, prefix string) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: prefix}
}

func (s *RedisRateLimitStore) redisKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", s.prefix, key)
}

func (s *RedisRateLimitStore) Get(ctx context.Context, key string) (*domain.RateLimitEntry, error) {
	res, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("read rate limit entry: %w", err)
	}
	return decodeEntry(key, res)
}

func (s *RedisRateLimitStore) RegisterFailure(ctx context.Context, key string, now time.Time, policy domain.RateLimitPolicy) (*domain.RateLimitEntry, error) {
	rk := s.redisKey(key)
	var entry *domain.RateLimitEntry

	txf := func(tx *redis.Tx) error {
		res, err := tx.HGetAll(ctx, rk).Result()
		if err != nil {
			return err
		}
		e, err := decodeEntry(key, res)
		if err != nil {
			return err
		}
		if e == nil {
			e = &domain.RateLimitEntry{Key: key}
		}
		e.ApplyFailure(now, policy)

		ttl := policy.Window
		if e.LockedUntil != nil {
			if untilLock := e.LockedUntil.Sub(now); untilLock > ttl {
				ttl = untilLock
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rk, encodeEntry(e))
			pipe.PExpire(ctx, rk, ttl)
			return nil
		})
		if err == nil {
			entry = e
		}
		return err
	}

	for attempt := 1; attempt <= maxWatchAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, rk)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("register failure: %w", err)
		}
	}
	return nil, fmt.Errorf("register failure: %w", redis.TxFailedErr)
}

func (s *RedisRateLimitStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit entry: %w", err)
	}
	return nil
}

func encodeEntry(e *domain.RateLimitEntry) map[string]any {
	var lockedUntil int64
	if e.LockedUntil != nil {
		lockedUntil = e.LockedUntil.UnixNano()
	}
	return map[string]any{
		"failures":     e.Failures,
		"window_start": e.WindowStart.UnixNano(),
		"locked_until": lockedUntil,
		"updated_at":   e.UpdatedAt.UnixNano(),
	}
}

func decodeEntry(key string, res map[string]string) (*domain.RateLimitEntry, error) {
	if len(res) == 0 {
		return nil, nil
	}

	failures, err := strconv.Atoi(res["failures"])
	if err != nil {
		return nil, fmt.Errorf("decode failures for %s: %w", key, err)
	}
	windowStart, err := parseUnixNano(res["window_start"])
	if err != nil {
		return nil, fmt.Errorf("decode window_start for %s: %w", key, err)
	}
	updatedAt, err := parseUnixNano(res["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("decode updated_at for %s: %w", key, err)
	}

	e := &domain.RateLimitEntry{
		Key:         key,
		Failures:    failures,
		WindowStart: windowStart,
		UpdatedAt:   updatedAt,
	}
	if raw := res["locked_until"]; raw != "" && raw != "0" {
		lockedUntil, err := parseUnixNano(raw)
		if err != nil {
			return nil, fmt.Errorf("decode locked_until for %s: %w", key, err)
		}
		e.LockedUntil = &lockedUntil
	}
	return e, nil
}

func parseUnixNano(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
