package domain

import "time"

// RateLimitEntry holds the failed-attempt counter for one key. Keys are
// namespaced ("ip:203.0.113.7", "account:user@example.com") so IP and account
// throttling never collide.
type RateLimitEntry struct {
	Key         string     `json:"key" gorm:"column:rate_key;primaryKey;size:320"`
	Failures    int        `json:"failures" gorm:"not null;default:0"`
	WindowStart time.Time  `json:"window_start" gorm:"not null"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (RateLimitEntry) TableName() string { return "rate_limit_entries" }

// IsLocked reports whether the key is refused at now.
func (e *RateLimitEntry) IsLocked(now time.Time) bool {
	return e != nil && e.LockedUntil != nil && e.LockedUntil.After(now)
}

// RateLimitPolicy is the lockout rule: MaxFailures failures inside Window lock
// the key for Lockout.
type RateLimitPolicy struct {
	MaxFailures int
	Window      time.Duration
	Lockout     time.Duration
}

// ApplyFailure advances the entry by one failure at now. A window that has
// elapsed, or a lock that has expired, starts a fresh count. An active lock is
// never extended or cleared here.
func (e *RateLimitEntry) ApplyFailure(now time.Time, p RateLimitPolicy) {
	if e.IsLocked(now) {
		e.Failures++
		e.UpdatedAt = now
		return
	}

	lockExpired := e.LockedUntil != nil
	windowElapsed := e.WindowStart.IsZero() || now.Sub(e.WindowStart) >= p.Window
	if lockExpired || windowElapsed {
		e.Failures = 0
		e.WindowStart = now
		e.LockedUntil = nil
	}

	e.Failures++
	if e.Failures >= p.MaxFailures {
		until := now.Add(p.Lockout)
		e.LockedUntil = &until
	}
	e.UpdatedAt = now
}
