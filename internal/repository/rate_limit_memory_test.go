package repository

import "testing"

func TestMemoryRateLimitStore_Lockout(t *testing.T) {
	exerciseLockout(t, NewMemoryRateLimitStore())
}

func TestMemoryRateLimitStore_ConcurrentFailures(t *testing.T) {
	exerciseConcurrentFailures(t, NewMemoryRateLimitStore())
}
