package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"accessgate/internal/domain"
	"accessgate/internal/pkg/jwt"
)

const refreshTokenBytes = 32

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// RefreshToken pairs the raw value handed to the client with the digest
// that gets persisted. Raw must never be stored or logged.
type RefreshToken struct {
	Raw  string
	Hash string
}

// TokenIssuer mints access and refresh tokens.
type TokenIssuer struct {
	signer *jwt.Service
	pepper string
}

func NewTokenIssuer(signer *jwt.Service, refreshPepper string) *TokenIssuer {
	return &TokenIssuer{signer: signer, pepper: refreshPepper}
}

func (i *TokenIssuer) AccessTTL() time.Duration { return i.signer.TTL() }

func (i *TokenIssuer) IssueAccessToken(account *domain.Account) (AccessToken, error) {
	token, expiresAt, err := i.signer.GenerateToken(account.ID, string(account.Role))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyAccessToken checks signature and expiry only; access tokens are
// never looked up server-side.
func (i *TokenIssuer) VerifyAccessToken(token string) (*jwt.Claims, error) {
	return i.signer.ValidateToken(token)
}

func (i *TokenIssuer) IssueRefreshToken() (RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, fmt.Errorf("read random bytes: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return RefreshToken{Raw: raw, Hash: i.HashRefreshToken(raw)}, nil
}

// HashRefreshToken is the one-way digest stored for a raw refresh token.
func (i *TokenIssuer) HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw + i.pepper))
	return hex.EncodeToString(sum[:])
}
