package repository

import (
	"context"
	"errors"
	"strings"

	"accessgate/internal/domain"

	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// NormalizeEmail is the canonical form used for both storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	a.Email = NormalizeEmail(a.Email)
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// Upsert creates the account or refreshes its hash, role and verified flag.
func (r *AccountRepository) Upsert(ctx context.Context, a *domain.Account) error {
	a.Email = NormalizeEmail(a.Email)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Account
		err := tx.Where("email = ?", a.Email).First(&existing).Error
		switch {
		case err == nil:
			a.ID = existing.ID
			return tx.Model(&existing).Updates(map[string]any{
				"password_hash": a.PasswordHash,
				"verified":      a.Verified,
				"role":          a.Role,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(a).Error
		default:
			return err
		}
	})
}
