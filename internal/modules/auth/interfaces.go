package auth

import (
	"context"
	"time"

	"accessgate/internal/domain"
)

// AccountRepository reads credential records from the user store.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

// RateLimitStore persists failure counters. Get returns nil without error for
// unknown keys. RegisterFailure must be an atomic read-modify-write.
type RateLimitStore interface {
	Get(ctx context.Context, key string) (*domain.RateLimitEntry, error)
	RegisterFailure(ctx context.Context, key string, now time.Time, policy domain.RateLimitPolicy) (*domain.RateLimitEntry, error)
	Reset(ctx context.Context, key string) error
}

// RefreshTokenRepository persists refresh token hashes. Rotate must consume
// the old row and insert the new one in a single transaction, and CreateCapped
// must insert and enforce the session cap in a single transaction.
type RefreshTokenRepository interface {
	CreateCapped(ctx context.Context, t *domain.RefreshToken, keep int, now time.Time) (int64, error)
	FindActiveByHash(ctx context.Context, hash string, now time.Time) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, accountID int64, next *domain.RefreshToken, now time.Time) error
	DetectReuse(ctx context.Context, hash string, now time.Time) (bool, error)
	RevokeByHash(ctx context.Context, hash string, now time.Time) (int64, error)
	RevokeByAccount(ctx context.Context, accountID int64, now time.Time) (int64, error)
}
