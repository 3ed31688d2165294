package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accessgate/internal/domain"
	"accessgate/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const dummyPassword = "accessgate-timing-equaliser"

// Verification is the outcome of a credential check. Account is only set
// when OK is true.
type Verification struct {
	OK      bool
	Account *domain.Account
	Reason  Reason
}

// CredentialVerifier checks identifier/password pairs against bcrypt hashes.
type CredentialVerifier struct {
	accounts    AccountRepository
	cost        int
	hashTimeout time.Duration
	dummyHash   []byte
}

func NewCredentialVerifier(accounts AccountRepository, cost int, hashTimeout time.Duration) (*CredentialVerifier, error) {
	cost = clampCost(cost)
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &CredentialVerifier{
		accounts:    accounts,
		cost:        cost,
		hashTimeout: hashTimeout,
		dummyHash:   dummy,
	}, nil
}

func clampCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}

// Verify never tells an unknown account apart from a wrong password: both
// run one bcrypt comparison and return ReasonInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, password string) (Verification, error) {
	account, err := v.accounts.GetByEmail(ctx, normalizeIdentifier(identifier))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Verification{}, fmt.Errorf("lookup account: %w", err)
	}

	if account == nil {
		if _, err := v.compare(ctx, v.dummyHash, password); err != nil {
			return Verification{}, err
		}
		return Verification{Reason: ReasonInvalidCredentials}, nil
	}

	match, err := v.compare(ctx, []byte(account.PasswordHash), password)
	if err != nil {
		return Verification{}, err
	}
	if !match {
		return Verification{Reason: ReasonInvalidCredentials}, nil
	}
	if !account.Verified {
		return Verification{Reason: ReasonUnverifiedAccount}, nil
	}
	return Verification{OK: true, Account: account}, nil
}

// compare runs bcrypt under the hash deadline.
func (v *CredentialVerifier) compare(ctx context.Context, hash []byte, password string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.hashTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("compare password hash: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword(hash, []byte(password))
	}()

	select {
	case err := <-done:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("compare password hash: %w", err)
		}
	case <-ctx.Done():
		return false, fmt.Errorf("compare password hash: %w", ctx.Err())
	}
}

// HashPassword produces a hash at the verifier's cost.
func (v *CredentialVerifier) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
