package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"column:email"`
	DisplayName      string     `gorm:"column:display_name"`
	PasswordHash     string     `gorm:"column:password_hash"`
	Role             string     `gorm:"column:role"`
	DealerID         *uuid.UUID `gorm:"column:dealer_id"`
	ManufacturerID   *uuid.UUID `gorm:"column:manufacturer_id"`
	IsActive         bool       `gorm:"column:is_active"`
	FailedLoginCount int        `gorm:"column:failed_login_count"`
	LockedUntil      *time.Time `gorm:"column:locked_until"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type dealerModel struct {
	DealerID  uuid.UUID `gorm:"column:dealer_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name"`
	IsActive  bool      `gorm:"column:is_active"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (dealerModel) TableName() string { return "dealers" }

type manufacturerModel struct {
	ManufacturerID uuid.UUID `gorm:"column:manufacturer_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"column:name"`
	IsActive       bool      `gorm:"column:is_active"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (manufacturerModel) TableName() string { return "manufacturers" }

type sessionModel struct {
	SessionID         uuid.UUID  `gorm:"column:session_id;type:uuid;primaryKey"`
	UserID            uuid.UUID  `gorm:"column:user_id"`
	IPAddress         *string    `gorm:"column:ip_address"`
	DeviceFingerprint string     `gorm:"column:device_fingerprint"`
	UserAgent         string     `gorm:"column:user_agent"`
	RefreshVersion    int64      `gorm:"column:refresh_version"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	ExpiresAt         time.Time  `gorm:"column:expires_at"`
	RevokedAt         *time.Time `gorm:"column:revoked_at"`
}

func (sessionModel) TableName() string { return "sessions" }

type loginAttemptModel struct {
	ID                int64      `gorm:"column:id;primaryKey"`
	UserID            *uuid.UUID `gorm:"column:user_id"`
	AttemptAt         time.Time  `gorm:"column:attempt_at"`
	IPAddress         *string    `gorm:"column:ip_address"`
	Status            string     `gorm:"column:status"`
	FailureReason     string     `gorm:"column:failure_reason"`
	DeviceFingerprint string     `gorm:"column:device_fingerprint"`
	UserAgent         string     `gorm:"column:user_agent"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }

type passwordResetTokenModel struct {
	TokenID   uuid.UUID  `gorm:"column:token_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id"`
	TokenHash string     `gorm:"column:token_hash"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at"`
}

func (passwordResetTokenModel) TableName() string { return "password_reset_tokens" }

type authOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (authOutboxModel) TableName() string { return "auth_outbox" }
