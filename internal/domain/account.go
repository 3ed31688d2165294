package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Account is the credential record owned by the user store. The session
// subsystem only reads it.
type Account struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"size:254;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Verified     bool      `json:"verified" gorm:"not null;default:false"`
	Role         Role      `json:"role" gorm:"size:32;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Public is the projection handed back to clients.
func (a *Account) Public() AccountPublic {
	return AccountPublic{ID: a.ID, Email: a.Email, Role: a.Role}
}

type AccountPublic struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
