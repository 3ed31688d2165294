package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accessgate/internal/domain"
	"accessgate/internal/repository"

	"github.com/rs/zerolog"
)

const defaultStoreTimeout = 2 * time.Second

var ErrInvalidLockoutKey = errors.New("lockout key must start with ip: or account:")

// Service drives the login, refresh and logout flows.
type Service struct {
	limiter      *RateLimiter
	verifier     *CredentialVerifier
	issuer       *TokenIssuer
	refresh      *RefreshStore
	accounts     AccountRepository
	storeTimeout time.Duration
	log          zerolog.Logger
}

func NewService(
	limiter *RateLimiter,
	verifier *CredentialVerifier,
	issuer *TokenIssuer,
	refresh *RefreshStore,
	accounts AccountRepository,
	storeTimeout time.Duration,
	log zerolog.Logger,
) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		limiter:      limiter,
		verifier:     verifier,
		issuer:       issuer,
		refresh:      refresh,
		accounts:     accounts,
		storeTimeout: storeTimeout,
		log:          log.With().Str("component", "session").Logger(),
	}
}

// Issuer exposes access token verification to the HTTP middleware.
func (s *Service) Issuer() *TokenIssuer { return s.issuer }

// Login authenticates an identifier/password pair. The result is never nil;
// on failure the error is a *SessionError.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	m := newMachine(StateUnauthenticated)
	fail := func(se *SessionError) (*LoginResult, error) {
		m.to(StateUnauthenticated)
		return &LoginResult{State: m.current, Trace: m.trace}, se
	}

	m.to(StateCheckingRateLimit)
	keys := []string{IPKey(in.Client.IP), AccountKey(in.Identifier)}
	lockedUntil, err := s.checkLimits(ctx, keys)
	if err != nil {
		s.log.Error().Err(err).Str("op", "login").Msg("rate limit check failed")
		return fail(newSessionError(ReasonInternal, err))
	}
	if lockedUntil != nil {
		se := newSessionError(ReasonRateLimited, nil)
		se.LockedUntil = lockedUntil
		s.log.Info().Str("op", "login").Time("locked_until", *lockedUntil).Msg("login attempt while locked")
		return fail(se)
	}

	m.to(StateVerifyingCredentials)
	vctx, cancel := context.WithTimeout(ctx, s.storeTimeout+s.verifier.hashTimeout)
	v, err := s.verifier.Verify(vctx, in.Identifier, in.Password)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("op", "login").Msg("credential verification failed")
		return fail(newSessionError(ReasonInternal, err))
	}

	if !v.OK {
		if v.Reason == ReasonInvalidCredentials {
			if err := s.recordAll(ctx, keys, false); err != nil {
				s.log.Error().Err(err).Str("op", "login").Msg("failed to record login failure")
				return fail(newSessionError(ReasonInternal, err))
			}
		}
		return fail(newSessionError(v.Reason, nil))
	}

	if err := s.recordAll(ctx, keys, true); err != nil {
		s.log.Error().Err(err).Str("op", "login").Int64("account_id", v.Account.ID).Msg("failed to reset rate limit")
		return fail(newSessionError(ReasonInternal, err))
	}

	m.to(StateIssuingTokens)
	session, err := s.openSession(ctx, v.Account, in.Client)
	if err != nil {
		s.log.Error().Err(err).Str("op", "login").Int64("account_id", v.Account.ID).Msg("failed to issue tokens")
		return fail(newSessionError(ReasonInternal, err))
	}

	m.to(StateAuthenticated)
	s.log.Info().Str("op", "login").Int64("account_id", v.Account.ID).Msg("login succeeded")
	return &LoginResult{State: m.current, Trace: m.trace, Session: session}, nil
}

// Refresh exchanges a refresh token for a new access token and a rotated
// refresh token. Every failure asks the caller to clear both cookies.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (*RefreshResult, error) {
	m := newMachine(StatePresentingRefresh)
	fail := func(reason Reason, cause error) (*RefreshResult, error) {
		m.to(StateRefreshInvalid)
		return &RefreshResult{State: m.current, Trace: m.trace, ClearCookies: true}, newSessionError(reason, cause)
	}

	if strings.TrimSpace(in.RefreshToken) == "" {
		return fail(ReasonInvalidRefresh, nil)
	}

	m.to(StateValidating)
	lctx, cancel := s.withStoreTimeout(ctx)
	rec, err := s.refresh.LookupActive(lctx, in.RefreshToken)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("op", "refresh").Msg("refresh lookup failed")
		return fail(ReasonInternal, err)
	}
	if rec == nil {
		dctx, cancel := s.withStoreTimeout(ctx)
		reused, err := s.refresh.DetectReuse(dctx, in.RefreshToken)
		cancel()
		if err != nil {
			s.log.Error().Err(err).Str("op", "refresh").Msg("refresh reuse check failed")
			return fail(ReasonInternal, err)
		}
		if reused {
			s.log.Warn().Str("op", "refresh").Msg("refresh token reuse detected, family revoked")
		}
		return fail(ReasonInvalidRefresh, nil)
	}

	actx, cancel := s.withStoreTimeout(ctx)
	account, err := s.accounts.GetByID(actx, rec.AccountID)
	cancel()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(ReasonInvalidRefresh, nil)
	case err != nil:
		s.log.Error().Err(err).Str("op", "refresh").Int64("account_id", rec.AccountID).Msg("account lookup failed")
		return fail(ReasonInternal, err)
	case !account.Verified:
		return fail(ReasonInvalidRefresh, nil)
	}

	m.to(StateRotating)
	access, err := s.issuer.IssueAccessToken(account)
	if err != nil {
		s.log.Error().Err(err).Str("op", "refresh").Int64("account_id", account.ID).Msg("failed to sign access token")
		return fail(ReasonInternal, err)
	}

	rctx, cancel := s.withStoreTimeout(ctx)
	raw, refreshExpiresAt, err := s.refresh.Rotate(rctx, in.RefreshToken, account.ID, in.Client)
	cancel()
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredRefresh) {
			if errors.Is(err, repository.ErrTokenReused) {
				s.log.Warn().Str("op", "refresh").Int64("account_id", account.ID).Str("family_id", rec.FamilyID).Msg("refresh token reuse detected, family revoked")
			}
			return fail(ReasonInvalidRefresh, err)
		}
		s.log.Error().Err(err).Str("op", "refresh").Int64("account_id", account.ID).Msg("refresh rotation failed")
		return fail(ReasonInternal, err)
	}

	m.to(StateAuthenticated)
	return &RefreshResult{
		State: m.current,
		Trace: m.trace,
		Session: &Session{
			Account: account.Public(),
			Tokens: Tokens{
				AccessToken:      access.Token,
				AccessExpiresAt:  access.ExpiresAt,
				RefreshToken:     raw,
				RefreshExpiresAt: refreshExpiresAt,
			},
		},
	}, nil
}

// Logout revokes the presented refresh token, if any, and always succeeds.
func (s *Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	revoked, err := s.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		s.log.Error().Err(err).Str("op", "logout").Msg("failed to revoke refresh token")
	}
	return LogoutResult{State: StateUnauthenticated, Revoked: revoked}
}

// Me returns the public view of the account behind an access token.
func (s *Service) Me(ctx context.Context, accountID int64) (domain.AccountPublic, error) {
	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.AccountPublic{}, newSessionError(ReasonInvalidCredentials, err)
		}
		s.log.Error().Err(err).Str("op", "me").Int64("account_id", accountID).Msg("account lookup failed")
		return domain.AccountPublic{}, newSessionError(ReasonInternal, err)
	}
	return account.Public(), nil
}

// ClearLockout drops the counter and any lock for an ip: or account: key.
func (s *Service) ClearLockout(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	switch {
	case strings.HasPrefix(key, "ip:") && len(key) > len("ip:"):
		key = IPKey(strings.TrimPrefix(key, "ip:"))
	case strings.HasPrefix(key, "account:") && len(key) > len("account:"):
		key = AccountKey(strings.TrimPrefix(key, "account:"))
	default:
		return ErrInvalidLockoutKey
	}

	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	if err := s.limiter.RecordAttempt(ctx, key, true); err != nil {
		s.log.Error().Err(err).Str("op", "clear_lockout").Msg("failed to clear lockout")
		return newSessionError(ReasonInternal, err)
	}
	s.log.Info().Str("op", "clear_lockout").Str("key_kind", keyKind(key)).Msg("lockout cleared")
	return nil
}

// RevokeAllSessions signs an account out everywhere.
func (s *Service) RevokeAllSessions(ctx context.Context, accountID int64) (int64, error) {
	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	n, err := s.refresh.RevokeAll(ctx, accountID)
	if err != nil {
		s.log.Error().Err(err).Str("op", "revoke_all").Int64("account_id", accountID).Msg("failed to revoke sessions")
		return 0, newSessionError(ReasonInternal, err)
	}
	s.log.Info().Str("op", "revoke_all").Int64("account_id", accountID).Int64("revoked", n).Msg("sessions revoked")
	return n, nil
}

// checkLimits returns the latest active lock across keys.
func (s *Service) checkLimits(ctx context.Context, keys []string) (*time.Time, error) {
	var latest *time.Time
	for _, key := range keys {
		kctx, cancel := s.withStoreTimeout(ctx)
		d, err := s.limiter.CheckAttempt(kctx, key)
		cancel()
		if err != nil {
			return nil, err
		}
		if !d.Allowed && d.LockedUntil != nil && (latest == nil || d.LockedUntil.After(*latest)) {
			latest = d.LockedUntil
		}
	}
	return latest, nil
}

func (s *Service) recordAll(ctx context.Context, keys []string, success bool) error {
	for _, key := range keys {
		kctx, cancel := s.withStoreTimeout(ctx)
		err := s.limiter.RecordAttempt(kctx, key, success)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, account *domain.Account, client ClientMeta) (*Session, error) {
	access, err := s.issuer.IssueAccessToken(account)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	raw, refreshExpiresAt, err := s.refresh.Create(ctx, account.ID, client)
	if err != nil {
		return nil, err
	}

	return &Session{
		Account: account.Public(),
		Tokens: Tokens{
			AccessToken:      access.Token,
			AccessExpiresAt:  access.ExpiresAt,
			RefreshToken:     raw,
			RefreshExpiresAt: refreshExpiresAt,
		},
	}, nil
}

func (s *Service) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}
