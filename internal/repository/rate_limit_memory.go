package repository

import (
	"context"
	"sync"
	"time"

	"accessgate/internal/domain"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryRateLimitStore is a single-process store for local development.
// Expired items are dropped lazily on read; no janitor goroutine is started.
type MemoryRateLimitStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, domain.RateLimitEntry]
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		cache: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, domain.RateLimitEntry](),
		),
	}
}

func (s *MemoryRateLimitStore) Get(_ context.Context, key string) (*domain.RateLimitEntry, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, nil
	}
	e := item.Value()
	return &e, nil
}

func (s *MemoryRateLimitStore) RegisterFailure(_ context.Context, key string, now time.Time, policy domain.RateLimitPolicy) (*domain.RateLimitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := domain.RateLimitEntry{Key: key}
	if item := s.cache.Get(key); item != nil {
		e = item.Value()
	}
	e.ApplyFailure(now, policy)

	ttl := policy.Window
	if e.LockedUntil != nil {
		if untilLock := e.LockedUntil.Sub(now); untilLock > ttl {
			ttl = untilLock
		}
	}
	s.cache.Set(key, e, ttl)
	return &e, nil
}

func (s *MemoryRateLimitStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}
