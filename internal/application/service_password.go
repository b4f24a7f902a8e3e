package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

// ChangePassword verifies the current credential, installs the new hash and
// revokes every session of the user so stolen refresh tokens die with it.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return domain.ErrAccountInactive
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return domain.ErrInvalidCurrentPassword
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	now := s.nowFn()
	if err := s.users.UpdatePassword(ctx, userID, newHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, userID); err != nil {
		return err
	}

	s.enqueueEvent(ctx, eventTypePasswordChanged, user.UserID.String(), map[string]any{
		"user_id":    user.UserID,
		"changed_at": now,
	})
	return nil
}

// ForgotPassword issues a single-use, signed reset artifact. Unknown
// identifiers succeed silently to avoid account enumeration; the reset scope
// is rate limited per identifier regardless of existence.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	// The request that reaches the threshold still goes through; the lock it
	// sets rejects the scope from the next request on, so a full threshold of
	// requests is served per window.
	if err := s.checkScopeLocked(ctx, ports.ScopeResetEmail, normalized); err != nil {
		return err
	}
	if _, err := s.limiter.RecordFailure(ctx, ports.ScopeResetEmail, normalized,
		s.cfg.ResetRequestThreshold, s.cfg.ResetRequestWindow, s.cfg.ResetRequestWindow); err != nil {
		s.warnLimiterDown(ctx, ports.ScopeResetEmail, err)
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		// Do not leak whether the account exists.
		return nil
	}
	if !user.IsActive {
		return nil
	}

	now := s.nowFn()
	tokenID := randomHex(16)
	expiresAt := now.Add(s.cfg.ResetTokenTTL)

	token, err := s.codec.IssueReset(ports.ResetClaims{
		UserID:    user.UserID,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.resetTokens.Create(ctx, user.UserID, hashToken(tokenID), now, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.enqueueEvent(ctx, eventTypeResetRequested, user.UserID.String(), map[string]any{
		"user_id":     user.UserID,
		"identifier":  user.Email,
		"reset_token": token,
		"expires_at":  expiresAt,
	})
	return nil
}

// ResetPassword consumes a reset artifact exactly once and installs the new
// credential hash, revoking every open session.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidResetToken)
	}

	claims, err := s.codec.VerifyReset(req.Token)
	if err != nil {
		return domain.ErrInvalidResetToken
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	now := s.nowFn()
	userID, err := s.resetTokens.Consume(ctx, hashToken(claims.TokenID), now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidResetToken
		}
		return err
	}
	if userID != claims.UserID {
		return domain.ErrInvalidResetToken
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, newHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.LogoutAll(ctx, userID); err != nil {
		return err
	}
	_ = s.limiter.Clear(ctx, ports.ScopeLoginAccount, userID.String())

	s.enqueueEvent(ctx, eventTypePasswordChanged, userID.String(), map[string]any{
		"user_id":    userID,
		"changed_at": now,
		"via":        "reset",
	})
	return nil
}

// enqueueEvent stores a fire-and-forget platform event in the outbox. The
// publisher worker owns delivery; enqueue failures are logged, not fatal.
func (s *Service) enqueueEvent(ctx context.Context, eventType, key string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: key,
		Payload:      raw,
		OccurredAt:   s.nowFn(),
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to enqueue outbox event",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "enqueue_event",
			"outcome", "warning",
			"event_type", eventType,
			"error", err,
		)
	}
}
