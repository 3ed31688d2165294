package server

import (
	"context"
	"testing"
	"time"

	"accessgate/internal/config"
	"accessgate/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimitStore(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	store, closeStore, err := NewRateLimitStore(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &repository.RateLimitRepository{}, store)
	assert.NoError(t, closeStore())

	cfg.RateLimitBackend = config.BackendMemory
	store, closeStore, err = NewRateLimitStore(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryRateLimitStore{}, store)
	assert.NoError(t, closeStore())

	mr := miniredis.RunT(t)
	cfg.RateLimitBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	store, closeStore, err = NewRateLimitStore(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &repository.RedisRateLimitStore{}, store)

	_, err = store.RegisterFailure(ctx, "ip:192.0.2.1", time.Now().UTC(), PolicyFromConfig(cfg))
	require.NoError(t, err)
	assert.True(t, mr.Exists("accessgate:ratelimit:ip:192.0.2.1"))
	assert.NoError(t, closeStore())
}

func TestNewRateLimitStore_RedisErrors(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.RateLimitBackend = config.BackendRedis

	cfg.RedisURL = "not-a-url"
	_, _, err := NewRateLimitStore(ctx, cfg, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg.RedisURL = "redis://" + addr
	_, _, err = NewRateLimitStore(ctx, cfg, nil)
	assert.Error(t, err)
}
