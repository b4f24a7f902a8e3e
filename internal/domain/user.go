package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the platform access role carried by every identity and token.
type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleDealerManager Role = "DEALER_MANAGER"
	RoleDealerStaff   Role = "DEALER_STAFF"
	RoleEVMStaff      Role = "EVM_STAFF"
)

// ParseRole normalizes a raw role string against the known role set.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleDealerManager, RoleDealerStaff, RoleEVMStaff:
		return Role(raw), true
	}
	return "", false
}

// RequiresDealer reports whether the role must carry a dealer affiliation.
func (r Role) RequiresDealer() bool {
	return r == RoleDealerManager || r == RoleDealerStaff
}

// RequiresManufacturer reports whether the role must carry a manufacturer affiliation.
func (r Role) RequiresManufacturer() bool {
	return r == RoleEVMStaff
}

// User is the canonical authentication identity for the dealer platform.
// It keeps only auth-relevant state; business profile data is owned elsewhere.
// Exactly one affiliation is set for dealer/manufacturer roles, neither for ADMIN.
type User struct {
	UserID           uuid.UUID
	Email            string
	DisplayName      string
	PasswordHash     string
	Role             Role
	DealerID         *uuid.UUID
	ManufacturerID   *uuid.UUID
	IsActive         bool
	FailedLoginCount int
	LockedUntil      *time.Time
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session models a login session issued at authentication time.
// The Postgres row is authoritative; a TTL-bound copy lives in the session cache.
type Session struct {
	SessionID         uuid.UUID
	UserID            uuid.UUID
	IPAddress         string
	DeviceFingerprint string
	UserAgent         string
	RefreshVersion    int64
	CreatedAt         time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
}

// Usable reports whether the session may still back refresh/verify calls.
func (s Session) Usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// LoginAttempt records authentication outcomes for audit and the
// login-history endpoint. Lockout decisions read the cache, not this table.
type LoginAttempt struct {
	ID                int64
	UserID            *uuid.UUID
	AttemptAt         time.Time
	IPAddress         string
	Status            string
	FailureReason     string
	DeviceFingerprint string
	UserAgent         string
}
