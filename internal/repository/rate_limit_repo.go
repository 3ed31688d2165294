package repository

import (
	"context"
	"errors"
	"time"

	"accessgate/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitRepository keeps failed-attempt counters in the relational store.
// Increments run in a transaction holding the row lock, so concurrent
// failures for one key never lose an update.
type RateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Get returns nil without error when the key has no entry.
func (r *RateLimitRepository) Get(ctx context.Context, key string) (*domain.RateLimitEntry, error) {
	var e domain.RateLimitEntry
	err := r.db.WithContext(ctx).Where("rate_key = ?", key).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *RateLimitRepository) RegisterFailure(ctx context.Context, key string, now time.Time, policy domain.RateLimitPolicy) (*domain.RateLimitEntry, error) {
	var (
		entry *domain.RateLimitEntry
		err   error
	)
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		entry, err = r.registerFailureOnce(ctx, key, now, policy)
		if err == nil || !isRetryable(err) {
			break
		}
	}
	return entry, err
}

func (r *RateLimitRepository) registerFailureOnce(ctx context.Context, key string, now time.Time, policy domain.RateLimitPolicy) (*domain.RateLimitEntry, error) {
	var e domain.RateLimitEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := domain.RateLimitEntry{Key: key, WindowStart: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("rate_key = ?", key).
			First(&e).Error; err != nil {
			return err
		}

		e.ApplyFailure(now, policy)
		return tx.Model(&domain.RateLimitEntry{}).
			Where("rate_key = ?", key).
			Updates(map[string]any{
				"failures":     e.Failures,
				"window_start": e.WindowStart,
				"locked_until": e.LockedUntil,
				"updated_at":   e.UpdatedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("rate_key = ?", key).
		Delete(&domain.RateLimitEntry{}).Error
}

// DeleteStale removes unlocked entries last touched before cutoff.
func (r *RateLimitRepository) DeleteStale(ctx context.Context, now, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("updated_at < ? AND (locked_until IS NULL OR locked_until < ?)", cutoff, now).
		Delete(&domain.RateLimitEntry{})
	return res.RowsAffected, res.Error
}
