package repository

import (
	"context"
	"errors"
	"time"

	"accessgate/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefreshTokenRepository provides DB access for refresh tokens.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// FindActiveByHash returns ErrNotFound for absent, revoked and expired tokens alike.
func (r *RefreshTokenRepository) FindActiveByHash(ctx context.Context, hash string, now time.Time) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// Rotate consumes the active token identified by oldHash and inserts next in
// the same family, in one transaction. It returns ErrNotFound when the old
// token is not active or not owned by accountID, and ErrTokenReused after
// revoking the family when the old token had already been rotated.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, accountID int64, next *domain.RefreshToken, now time.Time) error {
	reused := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.RefreshToken
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", oldHash).
			First(&current).Error; err != nil {
			return translate(err)
		}
		if current.AccountID != accountID {
			return ErrNotFound
		}

		if current.UsedAt != nil {
			reused = true
			return revokeReusedFamily(tx, &current, now)
		}
		if !current.IsActive(now) {
			return ErrNotFound
		}

		res := tx.Model(&domain.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL AND used_at IS NULL", current.ID).
			Updates(map[string]any{"used_at": now, "revoked_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrNotFound
		}

		rotatedFrom := current.ID
		next.AccountID = current.AccountID
		next.FamilyID = current.FamilyID
		next.RotatedFrom = &rotatedFrom
		return tx.Create(next).Error
	})
	if err != nil {
		return err
	}
	if reused {
		return ErrTokenReused
	}
	return nil
}

// DetectReuse reports whether hash belongs to a token that was already
// rotated. If so the whole family is revoked and the replay is recorded.
func (r *RefreshTokenRepository) DetectReuse(ctx context.Context, hash string, now time.Time) (bool, error) {
	reused := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.RefreshToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", hash).
			First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.UsedAt == nil {
			return nil
		}
		reused = true
		return revokeReusedFamily(tx, &current, now)
	})
	if err != nil {
		return false, err
	}
	return reused, nil
}

func revokeReusedFamily(tx *gorm.DB, current *domain.RefreshToken, now time.Time) error {
	if err := tx.Model(&domain.RefreshToken{}).Where("id = ?", current.ID).
		Update("reuse_detected_at", now).Error; err != nil {
		return err
	}
	return tx.Model(&domain.RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", current.FamilyID).
		Update("revoked_at", now).Error
}

// RevokeByHash reports how many rows changed; zero means the token was
// already invalid or never existed.
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", familyID).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

func (r *RefreshTokenRepository) RevokeByAccount(ctx context.Context, accountID int64, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

// CreateCapped inserts t and, when keep is positive, revokes all but the
// newest keep active tokens of the account in the same transaction. The
// account row is locked so concurrent logins cannot overshoot the cap.
func (r *RefreshTokenRepository) CreateCapped(ctx context.Context, t *domain.RefreshToken, keep int, now time.Time) (int64, error) {
	var revoked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner domain.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", t.AccountID).
			Limit(1).
			Find(&owner).Error; err != nil {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		if keep <= 0 {
			return nil
		}
		n, err := revokeExcess(tx, t.AccountID, keep, now)
		revoked = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// RevokeExcess keeps the newest keep active tokens of an account and revokes the rest.
func (r *RefreshTokenRepository) RevokeExcess(ctx context.Context, accountID int64, keep int, now time.Time) (int64, error) {
	return revokeExcess(r.db.WithContext(ctx), accountID, keep, now)
}

func revokeExcess(db *gorm.DB, accountID int64, keep int, now time.Time) (int64, error) {
	var ids []int64
	if err := db.Model(&domain.RefreshToken{}).
		Where("account_id = ? AND revoked_at IS NULL AND expires_at > ?", accountID, now).
		Order("issued_at DESC, id DESC").
		Offset(keep).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := db.Model(&domain.RefreshToken{}).
		Where("id IN ? AND revoked_at IS NULL", ids).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

// DeleteExpired removes expired tokens and tokens revoked before revokedBefore.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, revokedBefore).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
