package domain

import "time"

// RefreshToken is the persisted side of an opaque refresh token.
//
// Security notes:
// - Only the peppered SHA-256 hash of the raw token is stored (TokenHash).
// - Rotation consumes a row (UsedAt + RevokedAt) and inserts its successor in
//   the same family. Presenting a consumed row again revokes the whole family.
type RefreshToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	AccountID int64 `json:"account_id" gorm:"index;not null"`

	TokenHash   string `json:"-" gorm:"size:64;uniqueIndex;not null"`
	FamilyID    string `json:"family_id" gorm:"size:36;index;not null"`
	RotatedFrom *int64 `json:"rotated_from,omitempty"`

	IssuedAt        time.Time  `json:"issued_at" gorm:"not null"`
	ExpiresAt       time.Time  `json:"expires_at" gorm:"index;not null"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty" gorm:"index"`
	ReuseDetectedAt *time.Time `json:"reuse_detected_at,omitempty"`

	UserAgent *string `json:"user_agent,omitempty" gorm:"size:512"`
	IP        *string `json:"ip,omitempty" gorm:"size:64"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
