package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

// CachedSession is the TTL-bound session copy stored in the cache tier.
// It expires naturally at session lifetime, independent of the Postgres row.
type CachedSession struct {
	SessionID         uuid.UUID   `json:"session_id"`
	UserID            uuid.UUID   `json:"user_id"`
	Role              domain.Role `json:"role"`
	IPAddress         string      `json:"ip_address"`
	DeviceFingerprint string      `json:"device_fingerprint"`
	RefreshVersion    int64       `json:"refresh_version"`
	CreatedAt         time.Time   `json:"created_at"`
	ExpiresAt         time.Time   `json:"expires_at"`
}

// SessionCache holds active session copies to avoid per-request store reads.
// Get returns (nil, nil) on a miss; callers fall back to the authoritative
// session repository and repopulate (read-through).
type SessionCache interface {
	Put(ctx context.Context, session CachedSession, ttl time.Duration) error
	Get(ctx context.Context, sessionID uuid.UUID) (*CachedSession, error)
	Invalidate(ctx context.Context, sessionID uuid.UUID) error
	InvalidateAllForUser(ctx context.Context, userID uuid.UUID) error
}

// TokenBlacklist records explicitly revoked tokens until their own expiry.
// TTLs are clamped to the token's remaining lifetime so the set never grows
// unbounded and a token cannot outlive its blacklist entry.
type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// Rate-limit scopes tracked independently; all must pass.
const (
	ScopeLoginIP      = "login:ip"
	ScopeLoginAccount = "login:account"
	ScopeResetEmail   = "reset:email"
)

// AttemptState is the post-increment failure counter envelope.
type AttemptState struct {
	Count       int
	Locked      bool
	LockedUntil *time.Time
}

// RateLimiter is the per-scope attempt counter with explicit lockout state.
// RecordFailure must be a single atomic cache increment; reaching limit
// transitions to a lockout record of lockFor length and resets the counter.
// Limiter unavailability fails open by policy (availability over strict
// enforcement); callers log and continue.
type RateLimiter interface {
	RecordFailure(ctx context.Context, scope, identifier string, limit int, window, lockFor time.Duration) (AttemptState, error)
	IsLocked(ctx context.Context, scope, identifier string) (bool, time.Time, error)
	Clear(ctx context.Context, scope, identifier string) error
}
