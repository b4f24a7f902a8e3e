package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

// PasswordHasher is the one-way credential hash with constant-time verify.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AccessClaims is the claim set bound into short-lived access tokens.
type AccessClaims struct {
	UserID         uuid.UUID
	Role           domain.Role
	SessionID      uuid.UUID
	DealerID       *uuid.UUID
	ManufacturerID *uuid.UUID
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// RefreshClaims is the claim set bound into refresh tokens.
// Version is the rotation counter checked against the session row.
type RefreshClaims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Version   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ResetClaims is the claim set of the single-use password-reset artifact.
type ResetClaims struct {
	UserID    uuid.UUID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies the three token families with independent
// secrets. Verify methods reject cross-family tokens (access secret where
// refresh is expected and vice versa) and report expiry as domain.ErrTokenExpired.
type TokenCodec interface {
	IssueAccess(claims AccessClaims) (string, error)
	IssueRefresh(claims RefreshClaims) (string, error)
	IssueReset(claims ResetClaims) (string, error)
	VerifyAccess(token string) (AccessClaims, error)
	VerifyRefresh(token string) (RefreshClaims, error)
	VerifyReset(token string) (ResetClaims, error)
}
