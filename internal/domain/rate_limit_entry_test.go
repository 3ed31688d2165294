package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = RateLimitPolicy{MaxFailures: 3, Window: 10 * time.Minute, Lockout: 15 * time.Minute}

func TestApplyFailure_LocksAtThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &RateLimitEntry{Key: "account:a@example.com"}

	e.ApplyFailure(now, testPolicy)
	e.ApplyFailure(now.Add(time.Minute), testPolicy)
	assert.False(t, e.IsLocked(now.Add(time.Minute)))

	e.ApplyFailure(now.Add(2*time.Minute), testPolicy)
	require.NotNil(t, e.LockedUntil)
	assert.Equal(t, now.Add(2*time.Minute+15*time.Minute), *e.LockedUntil)
	assert.True(t, e.IsLocked(now.Add(3*time.Minute)))
	assert.False(t, e.IsLocked(*e.LockedUntil))
}

func TestApplyFailure_WindowElapsedRestartsCount(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &RateLimitEntry{Key: "ip:10.0.0.1"}

	e.ApplyFailure(now, testPolicy)
	e.ApplyFailure(now.Add(time.Minute), testPolicy)
	e.ApplyFailure(now.Add(11*time.Minute), testPolicy)

	assert.Equal(t, 1, e.Failures)
	assert.Equal(t, now.Add(11*time.Minute), e.WindowStart)
	assert.Nil(t, e.LockedUntil)
}

func TestApplyFailure_ActiveLockIsNotExtended(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	long := RateLimitPolicy{MaxFailures: 1, Window: time.Minute, Lockout: time.Hour}
	e := &RateLimitEntry{Key: "ip:10.0.0.1"}

	e.ApplyFailure(now, long)
	require.NotNil(t, e.LockedUntil)
	until := *e.LockedUntil

	e.ApplyFailure(now.Add(30*time.Minute), long)
	assert.Equal(t, until, *e.LockedUntil)
	assert.True(t, e.IsLocked(now.Add(30*time.Minute)))
}

func TestApplyFailure_ExpiredLockStartsFreshWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &RateLimitEntry{Key: "ip:10.0.0.1"}
	for i := 0; i < 3; i++ {
		e.ApplyFailure(now, testPolicy)
	}
	require.True(t, e.IsLocked(now))

	after := now.Add(16 * time.Minute)
	e.ApplyFailure(after, testPolicy)
	assert.Equal(t, 1, e.Failures)
	assert.Nil(t, e.LockedUntil)
	assert.False(t, e.IsLocked(after))
}

func TestRefreshToken_IsActive(t *testing.T) {
	now := time.Now()
	tok := &RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, tok.IsActive(now))

	assert.False(t, tok.IsActive(now.Add(time.Hour)))

	revoked := now
	tok.RevokedAt = &revoked
	assert.False(t, tok.IsActive(now))
}
