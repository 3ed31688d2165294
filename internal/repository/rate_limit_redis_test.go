package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisRateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimitStore(client, "accessgate"), mr
}

func TestRedisRateLimitStore_Lockout(t *testing.T) {
	store, _ := setupRedisStore(t)
	exerciseLockout(t, store)
}

func TestRedisRateLimitStore_ConcurrentFailures(t *testing.T) {
	store, _ := setupRedisStore(t)
	exerciseConcurrentFailures(t, store)
}

func TestRedisRateLimitStore_KeyExpiresWithLock(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < defaultPolicy.MaxFailures; i++ {
		_, err := store.RegisterFailure(ctx, "account:user@example.com", now, defaultPolicy)
		require.NoError(t, err)
	}
	assert.True(t, mr.Exists("accessgate:ratelimit:account:user@example.com"))
	ttl := mr.TTL("accessgate:ratelimit:account:user@example.com")
	assert.InDelta(t, (15 * time.Minute).Seconds(), ttl.Seconds(), 2)

	mr.FastForward(16 * time.Minute)
	e, err := store.Get(ctx, "account:user@example.com")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestRedisRateLimitStore_ConnectionErrorSurfaces(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "ip:10.0.0.1")
	assert.Error(t, err)

	_, err = store.RegisterFailure(context.Background(), "ip:10.0.0.1", time.Now(), defaultPolicy)
	assert.Error(t, err)
}
