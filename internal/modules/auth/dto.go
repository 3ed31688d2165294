package auth

import (
	"time"

	"accessgate/internal/domain"
)

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
}

type ClearLockoutRequest struct {
	Key string `json:"key" validate:"required,max=320"`
}

// ClientMeta is request metadata stored next to refresh tokens.
type ClientMeta struct {
	IP        string
	UserAgent string
}

type LoginInput struct {
	Identifier string
	Password   string
	Client     ClientMeta
}

type RefreshInput struct {
	RefreshToken string
	Client       ClientMeta
}

// Tokens are the credentials the transport turns into cookies.
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type Session struct {
	Account domain.AccountPublic
	Tokens  Tokens
}

type LoginResult struct {
	State   State
	Trace   []State
	Session *Session
}

type RefreshResult struct {
	State   State
	Trace   []State
	Session *Session
	// ClearCookies is set on every failure exit.
	ClearCookies bool
}

type LogoutResult struct {
	State   State
	Revoked bool
}
