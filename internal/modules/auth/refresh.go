package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"accessgate/internal/domain"
	"accessgate/internal/repository"

	"github.com/google/uuid"
)

// RefreshStore owns the refresh token lifecycle on top of the repository.
type RefreshStore struct {
	repo      RefreshTokenRepository
	issuer    *TokenIssuer
	ttl       time.Duration
	maxActive int
	now       func() time.Time
}

func NewRefreshStore(repo RefreshTokenRepository, issuer *TokenIssuer, ttl time.Duration, maxActive int) *RefreshStore {
	return &RefreshStore{
		repo:      repo,
		issuer:    issuer,
		ttl:       ttl,
		maxActive: maxActive,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *RefreshStore) TTL() time.Duration { return s.ttl }

// Create starts a new token family for the account and returns the raw token.
func (s *RefreshStore) Create(ctx context.Context, accountID int64, meta ClientMeta) (string, time.Time, error) {
	tok, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	row := s.newRow(tok.Hash, now, meta)
	row.AccountID = accountID
	row.FamilyID = uuid.NewString()
	if _, err := s.repo.CreateCapped(ctx, row, s.maxActive, now); err != nil {
		return "", time.Time{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return tok.Raw, row.ExpiresAt, nil
}

// LookupActive returns nil without error for absent, revoked and expired tokens.
func (s *RefreshStore) LookupActive(ctx context.Context, raw string) (*domain.RefreshToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rec, err := s.repo.FindActiveByHash(ctx, s.issuer.HashRefreshToken(raw), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	return rec, nil
}

// Rotate atomically consumes oldRaw and returns its successor. Any token that
// is not active for accountID yields ErrInvalidOrExpiredRefresh.
func (s *RefreshStore) Rotate(ctx context.Context, oldRaw string, accountID int64, meta ClientMeta) (string, time.Time, error) {
	oldRaw = strings.TrimSpace(oldRaw)
	if oldRaw == "" {
		return "", time.Time{}, ErrInvalidOrExpiredRefresh
	}

	tok, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	next := s.newRow(tok.Hash, now, meta)
	err = s.repo.Rotate(ctx, s.issuer.HashRefreshToken(oldRaw), accountID, next, now)
	switch {
	case err == nil:
		return tok.Raw, next.ExpiresAt, nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrTokenReused):
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrInvalidOrExpiredRefresh, err)
	default:
		return "", time.Time{}, fmt.Errorf("rotate refresh token: %w", err)
	}
}

// DetectReuse reports whether raw is a token that was already rotated away,
// revoking its whole family when it is.
func (s *RefreshStore) DetectReuse(ctx context.Context, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	reused, err := s.repo.DetectReuse(ctx, s.issuer.HashRefreshToken(raw), s.now())
	if err != nil {
		return false, fmt.Errorf("detect refresh reuse: %w", err)
	}
	return reused, nil
}

// Revoke is a no-op for tokens that are absent or already invalid.
func (s *RefreshStore) Revoke(ctx context.Context, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	n, err := s.repo.RevokeByHash(ctx, s.issuer.HashRefreshToken(raw), s.now())
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return n > 0, nil
}

// RevokeAll ends every session of an account.
func (s *RefreshStore) RevokeAll(ctx context.Context, accountID int64) (int64, error) {
	n, err := s.repo.RevokeByAccount(ctx, accountID, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke account sessions: %w", err)
	}
	return n, nil
}

func (s *RefreshStore) newRow(hash string, now time.Time, meta ClientMeta) *domain.RefreshToken {
	return &domain.RefreshToken{
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		UserAgent: nullableString(meta.UserAgent),
		IP:        nullableString(meta.IP),
	}
}

const maxClientMetaBytes = 512

// nullableString drops invalid UTF-8 and cuts on a rune boundary so the value
// always fits a Postgres text column.
func nullableString(v string) *string {
	v = strings.TrimSpace(strings.ToValidUTF8(v, ""))
	if v == "" {
		return nil
	}
	if len(v) > maxClientMetaBytes {
		cut := maxClientMetaBytes
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	return &v
}
