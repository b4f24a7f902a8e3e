package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel error kinds surfaced by the auth core. Adapters map these to
// transport status codes with errors.Is; the core never formats status codes.
var (
	ErrDuplicateIdentity  = errors.New("identity already registered")
	ErrInvalidAffiliation = errors.New("affiliation missing or does not resolve for role")
	// ErrWeakPassword wraps the concrete policy reasons reported by ValidatePassword.
	ErrWeakPassword      = errors.New("password does not meet strength policy")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCredentials hides whether the identifier or the password failed.
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountLocked          = errors.New("account temporarily locked")
	ErrAccountInactive        = errors.New("account inactive")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExpired         = errors.New("session expired")
	ErrUserInactive           = errors.New("user deactivated")
	ErrInvalidCurrentPassword = errors.New("current password mismatch")
	ErrInvalidResetToken      = errors.New("invalid reset token")
	ErrTokenRevoked           = errors.New("token revoked")
	ErrTokenExpired           = errors.New("token expired")
	ErrNotFound               = errors.New("resource not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidInput           = errors.New("invalid input")
)

// LockedError carries the unlock time alongside the ErrAccountLocked kind
// so the boundary can tell the caller when retrying becomes useful.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account temporarily locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// RateLimitedError carries a retry-after hint alongside ErrRateLimitExceeded.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimitExceeded }
