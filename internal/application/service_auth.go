package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

// Register creates a local account and emits the registration outbox event in
// one transaction, so account state and the platform signal cannot diverge.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (PublicProfile, error) {
	email, err := normalizeEmail(req.Identifier)
	if err != nil {
		return PublicProfile{}, err
	}

	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return PublicProfile{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, req.Role)
	}

	dealerID, manufacturerID, err := s.resolveAffiliation(ctx, role, req.AffiliationID)
	if err != nil {
		return PublicProfile{}, err
	}

	if err := domain.ValidatePassword(req.Password); err != nil {
		return PublicProfile{}, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return PublicProfile{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"email":         email,
		"role":          role,
		"registered_at": now,
	})

	user, err := s.users.CreateWithOutboxTx(ctx, ports.CreateUserParams{
		Email:          email,
		DisplayName:    req.DisplayName,
		PasswordHash:   passwordHash,
		Role:           role,
		DealerID:       dealerID,
		ManufacturerID: manufacturerID,
		CreatedAtUTC:   now,
	}, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventTypeUserRegistered,
		PartitionKey: email,
		Payload:      payload,
		OccurredAt:   now,
	})
	if err != nil {
		return PublicProfile{}, err
	}

	return toPublicProfile(user), nil
}

// Login validates credentials under the rate-limit and lockout policy and
// issues an access/refresh token pair bound to a fresh session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Identifier)
	if err != nil {
		return LoginResponse{}, err
	}

	if req.IPAddress != "" {
		if lockedErr := s.checkScopeLocked(ctx, ports.ScopeLoginIP, req.IPAddress); lockedErr != nil {
			return LoginResponse{}, lockedErr
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			// Store unreachable fails closed: never skip credential checks.
			return LoginResponse{}, fmt.Errorf("lookup identity: %w", err)
		}
		// Burn the same hashing cost as the wrong-password path so the two
		// failures stay indistinguishable by latency.
		_ = s.hasher.Compare(enumerationDecoyHash, req.Password)
		s.recordIPFailure(ctx, req.IPAddress)
		s.recordAttempt(ctx, nil, req, "FAILED", "USER_NOT_FOUND")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	if locked, until, lockErr := s.limiter.IsLocked(ctx, ports.ScopeLoginAccount, user.UserID.String()); lockErr != nil {
		s.warnLimiterDown(ctx, "login", lockErr)
	} else if locked {
		s.recordAttempt(ctx, &user.UserID, req, "BLOCKED", "ACCOUNT_LOCKED")
		return LoginResponse{}, &domain.LockedError{Until: until}
	}

	if !user.IsActive {
		s.recordAttempt(ctx, &user.UserID, req, "FAILED", "ACCOUNT_INACTIVE")
		return LoginResponse{}, domain.ErrAccountInactive
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return LoginResponse{}, s.handlePasswordMismatch(ctx, user, req)
	}

	now := s.nowFn()
	_ = s.limiter.Clear(ctx, ports.ScopeLoginAccount, user.UserID.String())
	if req.IPAddress != "" {
		_ = s.limiter.Clear(ctx, ports.ScopeLoginIP, req.IPAddress)
	}
	if err := s.users.RecordLoginSuccess(ctx, user.UserID, now); err != nil {
		slog.Default().WarnContext(ctx, "failed to record login success",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", "warning",
			"error", err,
		)
	}

	s.enforceSessionCap(ctx, user.UserID, now)

	sessionID := uuid.New()
	session, err := s.sessions.Create(ctx, ports.SessionCreateParams{
		SessionID:         sessionID,
		UserID:            user.UserID,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceInfo,
		UserAgent:         req.UserAgent,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
	})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, err := s.codec.IssueAccess(ports.AccessClaims{
		UserID:         user.UserID,
		Role:           user.Role,
		SessionID:      session.SessionID,
		DealerID:       user.DealerID,
		ManufacturerID: user.ManufacturerID,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.cfg.AccessTokenTTL),
	})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.codec.IssueRefresh(ports.RefreshClaims{
		UserID:    user.UserID,
		SessionID: session.SessionID,
		Version:   session.RefreshVersion,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue refresh token: %w", err)
	}

	s.cacheSession(ctx, user.Role, session)
	s.recordAttempt(ctx, &user.UserID, req, "SUCCESS", "")

	return LoginResponse{
		Profile:      toPublicProfile(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.SessionID,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Refresh rotates the refresh token and issues a new access token for an
// active, non-revoked session. Rotation is a compare-and-swap on the stored
// version: a superseded refresh token loses the race and is rejected, so
// replaying an old token after rotation always fails. The rate limiter is
// intentionally not consulted here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResponse{}, domain.ErrInvalidRefreshToken
	}

	now := s.nowFn()
	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return RefreshResponse{}, domain.ErrInvalidRefreshToken
	}
	if !session.Usable(now) {
		return RefreshResponse{}, domain.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return RefreshResponse{}, domain.ErrInvalidRefreshToken
	}
	if !user.IsActive {
		// Deactivation kills the session as a side effect.
		_ = s.sessions.RevokeByID(ctx, session.SessionID, now)
		_ = s.sessionCache.Invalidate(ctx, session.SessionID)
		return RefreshResponse{}, domain.ErrInvalidRefreshToken
	}

	newVersion, err := s.sessions.RotateRefreshVersion(ctx, session.SessionID, claims.Version, now)
	if err != nil {
		return RefreshResponse{}, domain.ErrInvalidRefreshToken
	}

	accessToken, err := s.codec.IssueAccess(ports.AccessClaims{
		UserID:         user.UserID,
		Role:           user.Role,
		SessionID:      session.SessionID,
		DealerID:       user.DealerID,
		ManufacturerID: user.ManufacturerID,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.cfg.AccessTokenTTL),
	})
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("issue access token: %w", err)
	}
	newRefreshToken, err := s.codec.IssueRefresh(ports.RefreshClaims{
		UserID:    user.UserID,
		SessionID: session.SessionID,
		Version:   newVersion,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("issue refresh token: %w", err)
	}

	session.RefreshVersion = newVersion
	s.cacheSession(ctx, user.Role, session)

	return RefreshResponse{
		Profile:      toPublicProfile(user),
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Logout blacklists the presented access token for its remaining lifetime and
// revokes the bound session. Idempotent: logging out an already-revoked
// session or an unusable token is not an error.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		// Expired or malformed tokens have nothing left to revoke.
		return nil
	}

	now := s.nowFn()
	if remaining := claims.ExpiresAt.Sub(now); remaining > 0 {
		if err := s.blacklist.Add(ctx, accessToken, remaining); err != nil {
			s.warnLimiterDown(ctx, "logout_blacklist", err)
		}
	}
	if err := s.sessions.RevokeByID(ctx, claims.SessionID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	_ = s.sessionCache.Invalidate(ctx, claims.SessionID)
	return nil
}

// LogoutAll revokes every session for the user and purges the cache copies.
// Used directly and as the forced re-authentication step after password changes.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	now := s.nowFn()
	if err := s.sessions.RevokeAllByUser(ctx, userID, now); err != nil {
		return err
	}
	_ = s.sessionCache.InvalidateAllForUser(ctx, userID)

	payload, _ := json.Marshal(map[string]any{
		"user_id":    userID,
		"revoked_at": now,
	})
	_ = s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventTypeSessionsRevoked,
		PartitionKey: userID.String(),
		Payload:      payload,
		OccurredAt:   now,
	})
	return nil
}

// Verify checks an access token end to end: blacklist, signature/expiry,
// session liveness (cache read-through to the store), and a fresh user read
// so role or affiliation changes apply immediately. The tagged result lets
// the boundary accept Anonymous on optional-auth routes instead of failing.
func (s *Service) Verify(ctx context.Context, accessToken string) VerifyResult {
	if accessToken == "" {
		return VerifyResult{Status: VerifyAnonymous}
	}

	if revoked, err := s.blacklist.Contains(ctx, accessToken); err != nil {
		// Blacklist unavailability fails open by policy; signature, session
		// and user checks below still gate the request.
		s.warnLimiterDown(ctx, "verify_blacklist", err)
	} else if revoked {
		return VerifyResult{Status: VerifyInvalid, Reason: domain.ErrTokenRevoked}
	}

	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return VerifyResult{Status: VerifyInvalid, Reason: domain.ErrTokenExpired}
		}
		return VerifyResult{Status: VerifyInvalid, Reason: domain.ErrUnauthorized}
	}

	now := s.nowFn()
	repopulate, reason := s.checkSessionLive(ctx, claims.SessionID, claims.UserID, now)
	if reason != nil {
		return VerifyResult{Status: VerifyInvalid, Reason: reason}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return VerifyResult{Status: VerifyInvalid, Reason: domain.ErrUserInactive}
	}
	if !user.IsActive {
		return VerifyResult{Status: VerifyInvalid, Reason: domain.ErrUserInactive}
	}
	if repopulate != nil {
		s.cacheSession(ctx, user.Role, *repopulate)
	}

	profile := toPublicProfile(user)
	return VerifyResult{Status: VerifyAuthenticated, Profile: &profile, Claims: &claims}
}

// RevokeSession revokes a specific session owned by the calling user.
// Ownership checks prevent cross-user session manipulation.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.ErrSessionNotFound
	}
	if session.UserID != userID {
		return domain.ErrUnauthorized
	}

	now := s.nowFn()
	if err := s.sessions.RevokeByID(ctx, sessionID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	_ = s.sessionCache.Invalidate(ctx, sessionID)
	return nil
}

// checkSessionLive consults the cache first and falls back to the
// authoritative store on a miss (read-through). When the store served the
// read it returns the session so the caller can repopulate the cache once
// the user's current role is known.
func (s *Service) checkSessionLive(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) (*domain.Session, error) {
	cached, err := s.sessionCache.Get(ctx, sessionID)
	if err == nil && cached != nil {
		if cached.UserID != userID {
			return nil, domain.ErrUnauthorized
		}
		if now.After(cached.ExpiresAt) {
			return nil, domain.ErrSessionExpired
		}
		return nil, nil
	}
	if err != nil {
		s.warnLimiterDown(ctx, "verify_session_cache", err)
	}

	session, storeErr := s.sessions.GetByID(ctx, sessionID)
	if storeErr != nil {
		return nil, domain.ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionNotFound
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}
	return &session, nil
}

func (s *Service) handlePasswordMismatch(ctx context.Context, user domain.User, req LoginRequest) error {
	now := s.nowFn()
	s.recordAttempt(ctx, &user.UserID, req, "FAILED", "INVALID_PASSWORD")
	s.recordIPFailure(ctx, req.IPAddress)

	state, err := s.limiter.RecordFailure(ctx, ports.ScopeLoginAccount, user.UserID.String(),
		s.cfg.FailedLoginThreshold, s.cfg.AttemptWindow, s.cfg.LockoutDuration)
	if err != nil {
		// Fail open: lockout bookkeeping being down must not block the
		// invalid-credentials response.
		s.warnLimiterDown(ctx, "login", err)
		return domain.ErrInvalidCredentials
	}

	if mirrorErr := s.users.RecordLoginFailure(ctx, user.UserID, now, state.LockedUntil); mirrorErr != nil {
		slog.Default().WarnContext(ctx, "failed to mirror login failure",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", "warning",
			"error", mirrorErr,
		)
	}

	if state.Locked && state.LockedUntil != nil {
		payload, _ := json.Marshal(map[string]any{
			"user_id":      user.UserID,
			"locked_until": state.LockedUntil,
			"ip_address":   req.IPAddress,
		})
		_ = s.outbox.Enqueue(ctx, ports.OutboxEvent{
			EventID:      uuid.New(),
			EventType:    eventTypeAccountLocked,
			PartitionKey: user.UserID.String(),
			Payload:      payload,
			OccurredAt:   now,
		})
		slog.Default().WarnContext(ctx, "account lockout triggered",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", "blocked",
			"user_id", user.UserID.String(),
			"locked_until", state.LockedUntil,
		)
		return &domain.LockedError{Until: *state.LockedUntil}
	}
	return domain.ErrInvalidCredentials
}

// enforceSessionCap keeps at most MaxSessionsPerUser-1 prior active sessions
// before a new login, evicting oldest first. Two concurrent logins racing
// here converge on keep-newest-N, at worst evicting one extra session.
func (s *Service) enforceSessionCap(ctx context.Context, userID uuid.UUID, now time.Time) {
	if s.cfg.MaxSessionsPerUser <= 0 {
		return
	}
	active, err := s.sessions.ListActiveByUser(ctx, userID, now)
	if err != nil || len(active) < s.cfg.MaxSessionsPerUser {
		return
	}
	evict := len(active) - s.cfg.MaxSessionsPerUser + 1
	for _, old := range active[:evict] {
		_ = s.sessions.RevokeByID(ctx, old.SessionID, now)
		_ = s.sessionCache.Invalidate(ctx, old.SessionID)
	}
}
