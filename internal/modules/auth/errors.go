package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimited             = errors.New("rate limited")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUnverifiedAccount       = errors.New("account not verified")
	ErrInvalidOrExpiredRefresh = errors.New("invalid or expired refresh token")
	ErrInternal                = errors.New("internal error")
)

// Reason is the stable, client-visible failure tag.
type Reason string

const (
	ReasonRateLimited        Reason = "rate_limited"
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonUnverifiedAccount  Reason = "unverified_account"
	ReasonInvalidRefresh     Reason = "invalid_refresh"
	ReasonInternal           Reason = "internal_error"
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonRateLimited:
		return ErrRateLimited
	case ReasonInvalidCredentials:
		return ErrInvalidCredentials
	case ReasonUnverifiedAccount:
		return ErrUnverifiedAccount
	case ReasonInvalidRefresh:
		return ErrInvalidOrExpiredRefresh
	default:
		return ErrInternal
	}
}

// SessionError is the typed failure returned by the session flows. It
// matches its sentinel with errors.Is, and the underlying cause if any.
type SessionError struct {
	Reason      Reason
	LockedUntil *time.Time
	Err         error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *SessionError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason.sentinel(), e.Err}
	}
	return []error{e.Reason.sentinel()}
}

func newSessionError(reason Reason, cause error) *SessionError {
	return &SessionError{Reason: reason, Err: cause}
}

// ReasonOf extracts the failure tag from any error; unknown errors are internal.
func ReasonOf(err error) Reason {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Reason
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, ErrUnverifiedAccount):
		return ReasonUnverifiedAccount
	case errors.Is(err, ErrInvalidOrExpiredRefresh):
		return ReasonInvalidRefresh
	}
	return ReasonInternal
}
