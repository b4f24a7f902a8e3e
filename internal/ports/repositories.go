package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

// CreateUserParams captures atomic user-creation inputs.
// It includes the outbox metadata so registration state and the platform
// signal cannot diverge.
type CreateUserParams struct {
	Email          string
	DisplayName    string
	PasswordHash   string
	Role           domain.Role
	DealerID       *uuid.UUID
	ManufacturerID *uuid.UUID
	CreatedAtUTC   time.Time
}

// UserRepository defines persistence operations for user identities.
// Login counters are mirrored here for audit; the cache-side lockout guard
// remains authoritative for the lockout decision itself.
type UserRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateUserParams, outboxEvent OutboxEvent) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	RecordLoginSuccess(ctx context.Context, userID uuid.UUID, at time.Time) error
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, at time.Time, lockedUntil *time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error
}

// AffiliationRepository resolves dealer/manufacturer references at registration.
type AffiliationRepository interface {
	DealerExists(ctx context.Context, dealerID uuid.UUID) (bool, error)
	ManufacturerExists(ctx context.Context, manufacturerID uuid.UUID) (bool, error)
}

// SessionCreateParams captures metadata required to create a session record.
// The session id is minted by the core so it can be bound into both tokens
// before the row exists.
type SessionCreateParams struct {
	SessionID         uuid.UUID
	UserID            uuid.UUID
	IPAddress         string
	DeviceFingerprint string
	UserAgent         string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// SessionRepository manages the authoritative session lifecycle.
// Refresh rotation is a compare-and-swap on the stored version so superseded
// refresh tokens are rejected even when concurrent refreshes race.
type SessionRepository interface {
	Create(ctx context.Context, params SessionCreateParams) (domain.Session, error)
	GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Session, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error)
	RotateRefreshVersion(ctx context.Context, sessionID uuid.UUID, fromVersion int64, at time.Time) (int64, error)
	RevokeByID(ctx context.Context, sessionID uuid.UUID, revokedAt time.Time) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) error
}

// LoginAttemptRepository stores login outcomes for audit and history endpoints.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, since *time.Time, status string) ([]domain.LoginAttempt, error)
}

// ResetTokenRepository owns the single-use reset-token lifecycle.
// Consume must be atomic: a token id is marked used exactly once.
type ResetTokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, createdAt, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string, usedAt time.Time) (uuid.UUID, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	FirstSeenAt    time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
// Event delivery is fire-and-forget from the core's perspective; auth
// correctness never depends on a publish succeeding.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
