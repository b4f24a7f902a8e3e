package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

// PublicProfile is the externally visible identity shape. It never carries
// the password hash and is always read fresh on verify so role/affiliation
// changes take effect immediately.
type PublicProfile struct {
	UserID         uuid.UUID   `json:"id"`
	Email          string      `json:"identifier"`
	DisplayName    string      `json:"displayName"`
	Role           domain.Role `json:"role"`
	DealerID       *uuid.UUID  `json:"dealerId,omitempty"`
	ManufacturerID *uuid.UUID  `json:"manufacturerId,omitempty"`
	Active         bool        `json:"active"`
}

func toPublicProfile(u domain.User) PublicProfile {
	return PublicProfile{
		UserID:         u.UserID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		Role:           u.Role,
		DealerID:       u.DealerID,
		ManufacturerID: u.ManufacturerID,
		Active:         u.IsActive,
	}
}

type RegisterRequest struct {
	Identifier    string     `json:"identifier"`
	Password      string     `json:"password"`
	DisplayName   string     `json:"displayName"`
	Role          string     `json:"role"`
	AffiliationID *uuid.UUID `json:"affiliationId,omitempty"`
	IPAddress     string     `json:"-"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

type LoginResponse struct {
	Profile      PublicProfile `json:"profile"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	SessionID    uuid.UUID     `json:"sessionId"`
	ExpiresIn    int64         `json:"expiresIn"`
}

type RefreshResponse struct {
	Profile      PublicProfile `json:"profile"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    int64         `json:"expiresIn"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// VerifyStatus tags the outcome of an access-token verification so the
// boundary decides per-route whether Anonymous or Invalid is acceptable.
type VerifyStatus int

const (
	VerifyAnonymous VerifyStatus = iota
	VerifyAuthenticated
	VerifyInvalid
)

// VerifyResult is the capability-typed verification outcome. Reason carries
// the domain error kind when Status is VerifyInvalid.
type VerifyResult struct {
	Status  VerifyStatus
	Profile *PublicProfile
	Claims  *ports.AccessClaims
	Reason  error
}

type SessionItem struct {
	SessionID         uuid.UUID  `json:"sessionId"`
	IPAddress         string     `json:"ipAddress"`
	DeviceFingerprint string     `json:"deviceFingerprint"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	RevokedAt         *time.Time `json:"revokedAt,omitempty"`
	IsCurrent         bool       `json:"isCurrent"`
}

type LoginHistoryQuery struct {
	Page   int
	Limit  int
	Days   int
	Status string
}

type LoginHistoryItem struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Status            string    `json:"status"`
	FailureReason     string    `json:"failureReason,omitempty"`
	IPAddress         string    `json:"ipAddress"`
	DeviceFingerprint string    `json:"deviceFingerprint,omitempty"`
}

func toSessionItem(s domain.Session, currentSessionID uuid.UUID) SessionItem {
	return SessionItem{
		SessionID:         s.SessionID,
		IPAddress:         s.IPAddress,
		DeviceFingerprint: s.DeviceFingerprint,
		CreatedAt:         s.CreatedAt,
		ExpiresAt:         s.ExpiresAt,
		RevokedAt:         s.RevokedAt,
		IsCurrent:         s.SessionID == currentSessionID,
	}
}
