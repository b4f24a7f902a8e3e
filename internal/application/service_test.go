package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

func TestRegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := registeredAdmin(f)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if profile.UserID == uuid.Nil {
		t.Fatalf("register returned empty user id")
	}
	if profile.Email != "admin@example.com" {
		t.Fatalf("unexpected identifier %q", profile.Email)
	}

	loginRes, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginRes.AccessToken == "" || loginRes.RefreshToken == "" {
		t.Fatalf("login must return both tokens")
	}

	result := f.service.Verify(ctx, loginRes.AccessToken)
	if result.Status != VerifyAuthenticated {
		t.Fatalf("expected authenticated verify, got %v (%v)", result.Status, result.Reason)
	}
	if result.Profile == nil || result.Profile.UserID != profile.UserID {
		t.Fatalf("verify returned wrong profile")
	}

	refreshRes, err := f.service.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshRes.AccessToken == "" || refreshRes.RefreshToken == "" {
		t.Fatalf("refresh must return both tokens")
	}

	// The pre-rotation refresh token is superseded and must be rejected.
	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token after rotation, got %v", err)
	}

	if err := f.service.Logout(ctx, loginRes.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	// Idempotent: a second logout with the same token succeeds.
	if err := f.service.Logout(ctx, loginRes.AccessToken); err != nil {
		t.Fatalf("repeated logout failed: %v", err)
	}

	result = f.service.Verify(ctx, loginRes.AccessToken)
	if result.Status != VerifyInvalid || !errors.Is(result.Reason, domain.ErrTokenRevoked) {
		t.Fatalf("expected revoked token after logout, got %v (%v)", result.Status, result.Reason)
	}
	if _, err := f.service.Refresh(ctx, refreshRes.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected dead session refresh to fail, got %v", err)
	}
}

func TestRegisterRejectsWeakAndDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.Register(ctx, RegisterRequest{
		Identifier: "weak@example.com",
		Password:   "password",
		Role:       string(domain.RoleAdmin),
	}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}

	// Passwords beyond the hashing input limit are a policy violation, not an
	// internal failure.
	if _, err := f.service.Register(ctx, RegisterRequest{
		Identifier: "long@example.com",
		Password:   "Aa1!" + strings.Repeat("x", 96),
		Role:       string(domain.RoleAdmin),
	}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password error for over-length password, got %v", err)
	}

	if _, err := registeredAdmin(f); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := registeredAdmin(f); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}

	// Identifiers are case-folded before uniqueness checks.
	if _, err := f.service.Register(ctx, RegisterRequest{
		Identifier:  "ADMIN@Example.COM",
		Password:    strongPassword(),
		DisplayName: "Shouting Admin",
		Role:        string(domain.RoleAdmin),
	}); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected case-folded duplicate, got %v", err)
	}
}

func TestRegisterAffiliationInvariant(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	dealerID := uuid.New()
	f.dealers.dealers[dealerID] = true

	if _, err := f.service.Register(ctx, RegisterRequest{
		Identifier: "staff@example.com",
		Password:   strongPassword(),
		Role:       string(domain.RoleDealerStaff),
	}); !errors.Is(err, domain.ErrInvalidAffiliation) {
		t.Fatalf("dealer staff without dealer must fail, got %v", err)
	}

	unknown := uuid.New()
	if _, err := f.service.Register(ctx, RegisterRequest{
		Identifier:    "staff@example.com",
		Password:      strongPassword(),
		Role:          string(domain.RoleDealerStaff),
		AffiliationID: &unknown,
	}); !errors.Is(err, domain.ErrInvalidAffiliation) {
		t.Fatalf("unknown dealer must fail, got %v", err)
	}

	profile, err := f.service.Register(ctx, RegisterRequest{
		Identifier:    "staff@example.com",
		Password:      strongPassword(),
		Role:          string(domain.RoleDealerStaff),
		AffiliationID: &dealerID,
	})
	if err != nil {
		t.Fatalf("register dealer staff failed: %v", err)
	}
	if profile.DealerID == nil || *profile.DealerID != dealerID {
		t.Fatalf("expected dealer affiliation on profile")
	}

	if _, err := f.service.Register(ctx, RegisterRequest{
		Identifier:    "admin2@example.com",
		Password:      strongPassword(),
		Role:          string(domain.RoleAdmin),
		AffiliationID: &dealerID,
	}); !errors.Is(err, domain.ErrInvalidAffiliation) {
		t.Fatalf("admin with affiliation must fail, got %v", err)
	}
}

func TestLoginFailureModes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := registeredAdmin(f)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Unknown identifier and wrong password are indistinguishable.
	req := loginRequest("nobody@example.com")
	if _, err := f.service.Login(ctx, req); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected invalid credentials, got %v", err)
	}
	wrong := loginRequest("admin@example.com")
	wrong.Password = "WrongPass123!"
	if _, err := f.service.Login(ctx, wrong); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected invalid credentials, got %v", err)
	}

	f.users.setActive(profile.UserID, false)
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("inactive account: expected inactive error, got %v", err)
	}
}

func TestLockoutAfterThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := registeredAdmin(f); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	wrong := loginRequest("admin@example.com")
	wrong.Password = "WrongPass123!"

	for i := 0; i < testConfig().FailedLoginThreshold-1; i++ {
		if _, err := f.service.Login(ctx, wrong); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	// The threshold attempt trips the lock and reports it.
	_, err := f.service.Login(ctx, wrong)
	var locked *domain.LockedError
	if !errors.As(err, &locked) || !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected typed lockout at threshold, got %v", err)
	}
	if !locked.Until.After(time.Now().UTC()) {
		t.Fatalf("lockout must carry a future unlock time")
	}

	// Correct credentials are refused while the lock holds.
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account, got %v", err)
	}

	if _, ok := f.outbox.lastOfType("auth.account_locked"); !ok {
		t.Fatalf("expected lockout event in outbox")
	}
}

func TestLoginSuccessClearsFailureBudget(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := registeredAdmin(f); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	wrong := loginRequest("admin@example.com")
	wrong.Password = "WrongPass123!"
	for i := 0; i < testConfig().FailedLoginThreshold-1; i++ {
		_, _ = f.service.Login(ctx, wrong)
	}
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// The window restarts: the next failures start from zero again.
	for i := 0; i < testConfig().FailedLoginThreshold-1; i++ {
		if _, err := f.service.Login(ctx, wrong); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d after reset: expected invalid credentials, got %v", i+1, err)
		}
	}
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); err != nil {
		t.Fatalf("login after sub-threshold failures must succeed, got %v", err)
	}
}

func TestSessionCapEvictsOldest(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxSessionsPerUser = 2
	f := newFixtureWithConfig(cfg)
	ctx := context.Background()

	if _, err := registeredAdmin(f); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	first, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); err != nil {
		t.Fatalf("third login failed: %v", err)
	}

	// The oldest session was evicted to hold the cap.
	if _, err := f.service.Refresh(ctx, first.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected evicted session refresh to fail, got %v", err)
	}
	result := f.service.Verify(ctx, first.AccessToken)
	if result.Status != VerifyInvalid {
		t.Fatalf("expected evicted session verify to fail, got %v", result.Status)
	}
}

func TestVerifyFallsBackToStoreOnCacheFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := registeredAdmin(f); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	f.cache.mu.Lock()
	f.cache.failGet = true
	f.cache.mu.Unlock()

	result := f.service.Verify(ctx, loginRes.AccessToken)
	if result.Status != VerifyAuthenticated {
		t.Fatalf("cache failure must fall back to store, got %v (%v)", result.Status, result.Reason)
	}
}

func TestVerifyReflectsDeactivation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := registeredAdmin(f)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	f.users.setActive(profile.UserID, false)

	result := f.service.Verify(ctx, loginRes.AccessToken)
	if result.Status != VerifyInvalid || !errors.Is(result.Reason, domain.ErrUserInactive) {
		t.Fatalf("expected inactive-user verify failure, got %v (%v)", result.Status, result.Reason)
	}
}

func TestRevokeSessionOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := registeredAdmin(f)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := f.service.RevokeSession(ctx, uuid.New(), loginRes.SessionID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign revoke must be unauthorized, got %v", err)
	}
	if err := f.service.RevokeSession(ctx, profile.UserID, loginRes.SessionID); err != nil {
		t.Fatalf("own revoke failed: %v", err)
	}
	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked session refresh to fail, got %v", err)
	}
}

func TestChangePasswordForcesReauthentication(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := registeredAdmin(f)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := f.service.ChangePassword(ctx, profile.UserID, ChangePasswordRequest{
		CurrentPassword: "WrongPass123!",
		NewPassword:     "NewStrongPass123!",
	}); !errors.Is(err, domain.ErrInvalidCurrentPassword) {
		t.Fatalf("expected invalid current password, got %v", err)
	}

	if err := f.service.ChangePassword(ctx, profile.UserID, ChangePasswordRequest{
		CurrentPassword: strongPassword(),
		NewPassword:     "NewStrongPass123!",
	}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected all sessions revoked, got %v", err)
	}
	if _, err := f.service.Login(ctx, loginRequest("admin@example.com")); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	next := loginRequest("admin@example.com")
	next.Password = "NewStrongPass123!"
	if _, err := f.service.Login(ctx, next); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := registeredAdmin(f); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Unknown identifiers do not error and leave no token behind.
	if err := f.service.ForgotPassword(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("forgot for unknown identifier must not error, got %v", err)
	}

	if err := f.service.ForgotPassword(ctx, "admin@example.com"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	event, ok := f.outbox.lastOfType("auth.password_reset_requested")
	if !ok {
		t.Fatalf("expected reset-requested event in outbox")
	}
	var payload struct {
		ResetToken string `json:"reset_token"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.ResetToken == "" {
		t.Fatalf("expected reset token in event payload: %v", err)
	}

	if err := f.service.ResetPassword(ctx, ResetPasswordRequest{
		Token:       payload.ResetToken,
		NewPassword: "password",
	}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("weak replacement must fail, got %v", err)
	}

	if err := f.service.ResetPassword(ctx, ResetPasswordRequest{
		Token:       payload.ResetToken,
		NewPassword: "ResetStrongPass123!",
	}); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	// Single use: the consumed token is dead.
	if err := f.service.ResetPassword(ctx, ResetPasswordRequest{
		Token:       payload.ResetToken,
		NewPassword: "AnotherStrongPass123!",
	}); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected consumed token to fail, got %v", err)
	}

	// Reset revoked the open session and installed the new credential.
	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected sessions revoked by reset, got %v", err)
	}
	next := loginRequest("admin@example.com")
	next.Password = "ResetStrongPass123!"
	if _, err := f.service.Login(ctx, next); err != nil {
		t.Fatalf("login with reset password failed: %v", err)
	}
}

func TestForgotPasswordRateLimit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	// A full threshold of requests succeeds per window.
	for i := 0; i < testConfig().ResetRequestThreshold; i++ {
		if err := f.service.ForgotPassword(ctx, "admin@example.com"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	err := f.service.ForgotPassword(ctx, "admin@example.com")
	var rateLimited *domain.RateLimitedError
	if !errors.As(err, &rateLimited) || !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected typed rate limit beyond threshold, got %v", err)
	}
	if rateLimited.RetryAfter <= 0 {
		t.Fatalf("rate limit must carry a retry-after hint")
	}
}

func TestListSessionsAndLoginHistory(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := registeredAdmin(f)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	first, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := f.service.Login(ctx, loginRequest("admin@example.com"))
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	sessions, err := f.service.ListSessions(ctx, profile.UserID, second.SessionID)
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	current := 0
	for _, item := range sessions {
		if item.IsCurrent {
			current++
			if item.SessionID != second.SessionID {
				t.Fatalf("wrong session flagged current")
			}
		}
	}
	if current != 1 {
		t.Fatalf("exactly one session must be current, got %d", current)
	}
	_ = first

	wrong := loginRequest("admin@example.com")
	wrong.Password = "WrongPass123!"
	_, _ = f.service.Login(ctx, wrong)

	history, err := f.service.LoginHistory(ctx, profile.UserID, LoginHistoryQuery{})
	if err != nil {
		t.Fatalf("login history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(history))
	}
	failed, err := f.service.LoginHistory(ctx, profile.UserID, LoginHistoryQuery{Status: "failed"})
	if err != nil {
		t.Fatalf("filtered history failed: %v", err)
	}
	if len(failed) != 1 || failed[0].FailureReason == "" {
		t.Fatalf("expected one failed attempt with reason, got %d", len(failed))
	}
}
