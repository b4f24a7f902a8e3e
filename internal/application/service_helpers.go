package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

const serviceName = "evdealer-auth-service"

// enumerationDecoyHash is a syntactically valid bcrypt hash of a random,
// discarded secret. The unknown-user login path verifies against it so
// "no such user" and "wrong password" share the same hashing cost.
const enumerationDecoyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// normalizeEmail canonicalizes and validates the identifier before
// persistence or comparison. The identifier scheme is email, case-folded.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: identifier is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid identifier", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

// hashToken stores one-way token fingerprints instead of raw secrets.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a cryptographically random hex token.
func randomHex(bytesLen int) string {
	raw := make([]byte, bytesLen)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

// resolveAffiliation enforces the role/affiliation invariant: dealer roles
// carry a resolving dealer id, manufacturer staff a manufacturer id, ADMIN
// neither.
func (s *Service) resolveAffiliation(ctx context.Context, role domain.Role, affiliationID *uuid.UUID) (dealerID, manufacturerID *uuid.UUID, err error) {
	switch {
	case role.RequiresDealer():
		if affiliationID == nil {
			return nil, nil, fmt.Errorf("%w: role %s requires a dealer affiliation", domain.ErrInvalidAffiliation, role)
		}
		ok, checkErr := s.affiliations.DealerExists(ctx, *affiliationID)
		if checkErr != nil {
			return nil, nil, fmt.Errorf("resolve dealer affiliation: %w", checkErr)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: dealer %s does not exist", domain.ErrInvalidAffiliation, affiliationID)
		}
		return affiliationID, nil, nil
	case role.RequiresManufacturer():
		if affiliationID == nil {
			return nil, nil, fmt.Errorf("%w: role %s requires a manufacturer affiliation", domain.ErrInvalidAffiliation, role)
		}
		ok, checkErr := s.affiliations.ManufacturerExists(ctx, *affiliationID)
		if checkErr != nil {
			return nil, nil, fmt.Errorf("resolve manufacturer affiliation: %w", checkErr)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: manufacturer %s does not exist", domain.ErrInvalidAffiliation, affiliationID)
		}
		return nil, affiliationID, nil
	default:
		if affiliationID != nil {
			return nil, nil, fmt.Errorf("%w: role %s does not take an affiliation", domain.ErrInvalidAffiliation, role)
		}
		return nil, nil, nil
	}
}

// checkScopeLocked returns the rate-limit error kind when the scope is in
// lockout, failing open when the limiter is unreachable.
func (s *Service) checkScopeLocked(ctx context.Context, scope, identifier string) error {
	locked, until, err := s.limiter.IsLocked(ctx, scope, identifier)
	if err != nil {
		s.warnLimiterDown(ctx, scope, err)
		return nil
	}
	if !locked {
		return nil
	}
	retryAfter := until.Sub(s.nowFn())
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return &domain.RateLimitedError{Scope: scope, RetryAfter: retryAfter}
}

// recordIPFailure charges a failed attempt against the source-IP scope.
func (s *Service) recordIPFailure(ctx context.Context, ip string) {
	if ip == "" {
		return
	}
	if _, err := s.limiter.RecordFailure(ctx, ports.ScopeLoginIP, ip,
		s.cfg.LoginIPThreshold, s.cfg.AttemptWindow, s.cfg.LockoutDuration); err != nil {
		s.warnLimiterDown(ctx, ports.ScopeLoginIP, err)
	}
}

// recordAttempt stores login outcome context for audit and history.
func (s *Service) recordAttempt(ctx context.Context, userID *uuid.UUID, req LoginRequest, status, reason string) {
	if err := s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		UserID:            userID,
		AttemptAt:         s.nowFn(),
		IPAddress:         req.IPAddress,
		Status:            status,
		FailureReason:     reason,
		DeviceFingerprint: req.DeviceInfo,
		UserAgent:         req.UserAgent,
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to persist login attempt",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "record_login_attempt",
			"outcome", "warning",
			"status", status,
			"reason", reason,
			"error", err,
		)
	}
}

func (s *Service) cacheSession(ctx context.Context, role domain.Role, session domain.Session) {
	ttl := session.ExpiresAt.Sub(s.nowFn())
	if ttl <= 0 {
		return
	}
	if err := s.sessionCache.Put(ctx, ports.CachedSession{
		SessionID:         session.SessionID,
		UserID:            session.UserID,
		Role:              role,
		IPAddress:         session.IPAddress,
		DeviceFingerprint: session.DeviceFingerprint,
		RefreshVersion:    session.RefreshVersion,
		CreatedAt:         session.CreatedAt,
		ExpiresAt:         session.ExpiresAt,
	}, ttl); err != nil {
		s.warnLimiterDown(ctx, "session_cache_put", err)
	}
}

// warnLimiterDown logs cache-tier failures that policy treats as non-fatal.
func (s *Service) warnLimiterDown(ctx context.Context, operation string, err error) {
	slog.Default().WarnContext(ctx, "cache tier unavailable; continuing per fail-open policy",
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", operation,
		"outcome", "warning",
		"error", err,
	)
}
