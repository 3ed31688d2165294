package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"accessgate/internal/database"
	"accessgate/internal/domain"
	"accessgate/internal/pkg/jwt"
	"accessgate/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSecret   = "test-secret-that-is-at-least-32-bytes-long"
	testPepper   = "test-pepper"
	testPassword = "correct horse battery staple"
)

type fixture struct {
	db       *gorm.DB
	accounts *repository.AccountRepository
	tokens   *repository.RefreshTokenRepository
	limits   *repository.RateLimitRepository
	limiter  *RateLimiter
	verifier *CredentialVerifier
	issuer   *TokenIssuer
	refresh  *RefreshStore
	service  *Service
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:auth_test_%s?mode=memory&cache=shared", name)
	db, err := database.Connect(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	f := &fixture{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		tokens:   repository.NewRefreshTokenRepository(db),
		limits:   repository.NewRateLimitRepository(db),
		issuer:   NewTokenIssuer(jwt.New(testSecret, 15*time.Minute), testPepper),
	}

	verifier, err := NewCredentialVerifier(f.accounts, bcrypt.MinCost, 3*time.Second)
	require.NoError(t, err)
	f.verifier = verifier
	f.limiter = NewRateLimiter(f.limits, DefaultPolicy())
	f.refresh = NewRefreshStore(f.tokens, f.issuer, 7*24*time.Hour, 10)
	f.service = NewService(f.limiter, f.verifier, f.issuer, f.refresh, f.accounts, 2*time.Second, zerolog.Nop())
	return f
}

func (f *fixture) addAccount(t *testing.T, email string, verified bool) *domain.Account {
	t.Helper()
	hash, err := f.verifier.HashPassword(testPassword)
	require.NoError(t, err)
	a := &domain.Account{Email: email, PasswordHash: hash, Verified: verified, Role: domain.RoleCustomer}
	require.NoError(t, f.accounts.Create(context.Background(), a))
	return a
}
