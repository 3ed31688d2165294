package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"accessgate/internal/domain"
)

const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
	DefaultLockout     = 15 * time.Minute
)

func DefaultPolicy() domain.RateLimitPolicy {
	return domain.RateLimitPolicy{
		MaxFailures: DefaultMaxFailures,
		Window:      DefaultWindow,
		Lockout:     DefaultLockout,
	}
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed     bool
	LockedUntil *time.Time
}

// RateLimiter throttles login attempts per key.
type RateLimiter struct {
	store  RateLimitStore
	policy domain.RateLimitPolicy
	now    func() time.Time
}

func NewRateLimiter(store RateLimitStore, policy domain.RateLimitPolicy) *RateLimiter {
	return &RateLimiter{
		store:  store,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *RateLimiter) Policy() domain.RateLimitPolicy { return l.policy }

// CheckAttempt denies the key while a lock is active. A storage error denies
// as well and is returned alongside the decision.
func (l *RateLimiter) CheckAttempt(ctx context.Context, key string) (Decision, error) {
	entry, err := l.store.Get(ctx, key)
	if err != nil {
		return Decision{Allowed: false}, fmt.Errorf("check %s: %w", keyKind(key), err)
	}
	if entry.IsLocked(l.now()) {
		until := *entry.LockedUntil
		return Decision{Allowed: false, LockedUntil: &until}, nil
	}
	return Decision{Allowed: true}, nil
}

// RecordAttempt resets the key on success and counts a failure otherwise.
func (l *RateLimiter) RecordAttempt(ctx context.Context, key string, success bool) error {
	if success {
		if err := l.store.Reset(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", keyKind(key), err)
		}
		return nil
	}
	if _, err := l.store.RegisterFailure(ctx, key, l.now(), l.policy); err != nil {
		return fmt.Errorf("record failure for %s: %w", keyKind(key), err)
	}
	return nil
}

func IPKey(ip string) string {
	return "ip:" + strings.TrimSpace(ip)
}

func AccountKey(identifier string) string {
	return "account:" + normalizeIdentifier(identifier)
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// keyKind keeps identifiers and addresses out of error strings and logs.
func keyKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i] + " key"
	}
	return "key"
}
