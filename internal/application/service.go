package application

import (
	"time"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

// Event types emitted through the transactional outbox. Downstream services
// (notification, analytics) consume these from the broker; the auth core
// never waits on delivery.
const (
	eventTypeUserRegistered   = "auth.user_registered"
	eventTypeAccountLocked    = "auth.account_locked"
	eventTypePasswordChanged  = "auth.password_changed"
	eventTypeSessionsRevoked  = "auth.sessions_revoked"
	eventTypeResetRequested   = "auth.password_reset_requested"
)

// Config is the tunable policy surface of the auth core.
// All thresholds and lifetimes arrive from bootstrap; nothing is hard-coded
// per call site.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// SessionTTL is the session lifetime and the cache TTL for its copy.
	SessionTTL         time.Duration
	MaxSessionsPerUser int

	FailedLoginThreshold int
	LoginIPThreshold     int
	AttemptWindow        time.Duration
	LockoutDuration      time.Duration

	ResetRequestThreshold int
	ResetRequestWindow    time.Duration
	ResetTokenTTL         time.Duration
}

// Service orchestrates credential verification, token issuance, session
// lifecycle, and lockout policy. It is stateless between calls; all durable
// state lives behind the injected ports.
type Service struct {
	cfg           Config
	users         ports.UserRepository
	affiliations  ports.AffiliationRepository
	sessions      ports.SessionRepository
	loginAttempts ports.LoginAttemptRepository
	resetTokens   ports.ResetTokenRepository
	outbox        ports.OutboxRepository
	sessionCache  ports.SessionCache
	blacklist     ports.TokenBlacklist
	limiter       ports.RateLimiter
	hasher        ports.PasswordHasher
	codec         ports.TokenCodec
	nowFn         func() time.Time
}

// Dependencies enumerates every collaborator explicitly so tests substitute
// fakes and multiple service instances share no hidden state.
type Dependencies struct {
	Config        Config
	Users         ports.UserRepository
	Affiliations  ports.AffiliationRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	ResetTokens   ports.ResetTokenRepository
	Outbox        ports.OutboxRepository
	SessionCache  ports.SessionCache
	Blacklist     ports.TokenBlacklist
	Limiter       ports.RateLimiter
	Hasher        ports.PasswordHasher
	Codec         ports.TokenCodec
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:           deps.Config,
		users:         deps.Users,
		affiliations:  deps.Affiliations,
		sessions:      deps.Sessions,
		loginAttempts: deps.LoginAttempts,
		resetTokens:   deps.ResetTokens,
		outbox:        deps.Outbox,
		sessionCache:  deps.SessionCache,
		blacklist:     deps.Blacklist,
		limiter:       deps.Limiter,
		hasher:        deps.Hasher,
		codec:         deps.Codec,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}
