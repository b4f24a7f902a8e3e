package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

type fixture struct {
	service  *Service
	users    *fakeUsers
	sessions *fakeSessions
	attempts *fakeLoginAttempts
	resets   *fakeResetTokens
	outbox   *fakeOutbox
	cache    *fakeSessionCache
	limiter  *fakeLimiter
	dealers  *fakeAffiliations
}

func testConfig() Config {
	return Config{
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       7 * 24 * time.Hour,
		SessionTTL:            7 * 24 * time.Hour,
		MaxSessionsPerUser:    5,
		FailedLoginThreshold:  5,
		LoginIPThreshold:      20,
		AttemptWindow:         15 * time.Minute,
		LockoutDuration:       30 * time.Minute,
		ResetRequestThreshold: 3,
		ResetRequestWindow:    15 * time.Minute,
		ResetTokenTTL:         time.Hour,
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(testConfig())
}

func newFixtureWithConfig(cfg Config) *fixture {
	users := &fakeUsers{
		byEmail: make(map[string]domain.User),
		byID:    make(map[uuid.UUID]domain.User),
	}
	affiliations := &fakeAffiliations{
		dealers:       map[uuid.UUID]bool{},
		manufacturers: map[uuid.UUID]bool{},
	}
	sessions := &fakeSessions{byID: make(map[uuid.UUID]domain.Session)}
	attempts := &fakeLoginAttempts{}
	resets := &fakeResetTokens{records: map[string]resetRecord{}}
	outbox := &fakeOutbox{}
	cache := &fakeSessionCache{items: map[uuid.UUID]ports.CachedSession{}}
	blacklist := &fakeBlacklist{revoked: map[string]time.Time{}}
	limiter := &fakeLimiter{
		counters: map[string]int{},
		locks:    map[string]time.Time{},
	}

	svc := NewService(Dependencies{
		Config:        cfg,
		Users:         users,
		Affiliations:  affiliations,
		Sessions:      sessions,
		LoginAttempts: attempts,
		ResetTokens:   resets,
		Outbox:        outbox,
		SessionCache:  cache,
		Blacklist:     blacklist,
		Limiter:       limiter,
		Hasher:        &fakeHasher{},
		Codec:         newFakeCodec(),
	})

	return &fixture{
		service:  svc,
		users:    users,
		sessions: sessions,
		attempts: attempts,
		resets:   resets,
		outbox:   outbox,
		cache:    cache,
		limiter:  limiter,
		dealers:  affiliations,
	}
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
	byID    map[uuid.UUID]domain.User
}

func (f *fakeUsers) CreateWithOutboxTx(_ context.Context, params ports.CreateUserParams, _ ports.OutboxEvent) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[params.Email]; exists {
		return domain.User{}, domain.ErrDuplicateIdentity
	}
	user := domain.User{
		UserID:         uuid.New(),
		Email:          params.Email,
		DisplayName:    params.DisplayName,
		PasswordHash:   params.PasswordHash,
		Role:           params.Role,
		DealerID:       params.DealerID,
		ManufacturerID: params.ManufacturerID,
		IsActive:       true,
		CreatedAt:      params.CreatedAtUTC,
		UpdatedAt:      params.CreatedAtUTC,
	}
	f.byEmail[user.Email] = user
	f.byID[user.UserID] = user
	return user, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) RecordLoginSuccess(_ context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.LastLoginAt = &at
	user.FailedLoginCount = 0
	user.LockedUntil = nil
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) RecordLoginFailure(_ context.Context, userID uuid.UUID, _ time.Time, lockedUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.FailedLoginCount++
	if lockedUntil != nil {
		user.LockedUntil = lockedUntil
	}
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) setActive(userID uuid.UUID, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.byID[userID]
	user.IsActive = active
	f.byID[userID] = user
	f.byEmail[user.Email] = user
}

type fakeAffiliations struct {
	dealers       map[uuid.UUID]bool
	manufacturers map[uuid.UUID]bool
}

func (f *fakeAffiliations) DealerExists(_ context.Context, dealerID uuid.UUID) (bool, error) {
	return f.dealers[dealerID], nil
}

func (f *fakeAffiliations) ManufacturerExists(_ context.Context, manufacturerID uuid.UUID) (bool, error) {
	return f.manufacturers[manufacturerID], nil
}

type fakeSessions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Session
}

func (f *fakeSessions) Create(_ context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := domain.Session{
		SessionID:         params.SessionID,
		UserID:            params.UserID,
		IPAddress:         params.IPAddress,
		DeviceFingerprint: params.DeviceFingerprint,
		UserAgent:         params.UserAgent,
		RefreshVersion:    1,
		CreatedAt:         params.CreatedAt,
		ExpiresAt:         params.ExpiresAt,
	}
	f.byID[session.SessionID] = session
	return session, nil
}

func (f *fakeSessions) GetByID(_ context.Context, sessionID uuid.UUID) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byID[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessions) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sessionsOfLocked(userID)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeSessions) ListActiveByUser(_ context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := make([]domain.Session, 0)
	for _, session := range f.sessionsOfLocked(userID) {
		if session.Usable(now) {
			active = append(active, session)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	return active, nil
}

func (f *fakeSessions) sessionsOfLocked(userID uuid.UUID) []domain.Session {
	result := make([]domain.Session, 0)
	for _, session := range f.byID {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}

func (f *fakeSessions) RotateRefreshVersion(_ context.Context, sessionID uuid.UUID, fromVersion int64, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byID[sessionID]
	if !ok || session.RevokedAt != nil || session.RefreshVersion != fromVersion {
		return 0, domain.ErrInvalidRefreshToken
	}
	session.RefreshVersion++
	f.byID[sessionID] = session
	return session.RefreshVersion, nil
}

func (f *fakeSessions) RevokeByID(_ context.Context, sessionID uuid.UUID, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byID[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &revokedAt
		f.byID[sessionID] = session
	}
	return nil
}

func (f *fakeSessions) RevokeAllByUser(_ context.Context, userID uuid.UUID, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.byID {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &revokedAt
			f.byID[id] = session
		}
	}
	return nil
}

type fakeLoginAttempts struct {
	mu    sync.Mutex
	items []domain.LoginAttempt
}

func (f *fakeLoginAttempts) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt.ID = int64(len(f.items) + 1)
	f.items = append(f.items, attempt)
	return nil
}

func (f *fakeLoginAttempts) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int, since *time.Time, status string) ([]domain.LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.LoginAttempt, 0)
	for _, item := range f.items {
		if item.UserID == nil || *item.UserID != userID {
			continue
		}
		if since != nil && item.AttemptAt.Before(*since) {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AttemptAt.After(result[j].AttemptAt) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type resetRecord struct {
	userID    uuid.UUID
	expiresAt time.Time
	used      bool
}

type fakeResetTokens struct {
	mu      sync.Mutex
	records map[string]resetRecord
}

func (f *fakeResetTokens) Create(_ context.Context, userID uuid.UUID, tokenHash string, _, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tokenHash] = resetRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeResetTokens) Consume(_ context.Context, tokenHash string, usedAt time.Time) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[tokenHash]
	if !ok || rec.used || usedAt.After(rec.expiresAt) {
		return uuid.Nil, domain.ErrNotFound
	}
	rec.used = true
	f.records[tokenHash] = rec
	return rec.userID, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }

func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (f *fakeOutbox) lastOfType(eventType string) (ports.OutboxEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].EventType == eventType {
			return f.events[i], true
		}
	}
	return ports.OutboxEvent{}, false
}

type fakeSessionCache struct {
	mu      sync.Mutex
	items   map[uuid.UUID]ports.CachedSession
	failGet bool
	gets    int
}

func (f *fakeSessionCache) Put(_ context.Context, session ports.CachedSession, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[session.SessionID] = session
	return nil
}

func (f *fakeSessionCache) Get(_ context.Context, sessionID uuid.UUID) (*ports.CachedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet {
		return nil, errors.New("cache down")
	}
	session, ok := f.items[sessionID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (f *fakeSessionCache) Invalidate(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, sessionID)
	return nil
}

func (f *fakeSessionCache) InvalidateAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.items {
		if session.UserID == userID {
			delete(f.items, id)
		}
	}
	return nil
}

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (f *fakeBlacklist) Add(_ context.Context, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = time.Now().UTC().Add(ttl)
	return nil
}

func (f *fakeBlacklist) Contains(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.revoked[token]
	return ok && time.Now().UTC().Before(until), nil
}

type fakeLimiter struct {
	mu       sync.Mutex
	counters map[string]int
	locks    map[string]time.Time
}

func (f *fakeLimiter) key(scope, identifier string) string { return scope + ":" + identifier }

func (f *fakeLimiter) RecordFailure(_ context.Context, scope, identifier string, limit int, _ time.Duration, lockFor time.Duration) (ports.AttemptState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(scope, identifier)
	f.counters[key]++
	state := ports.AttemptState{Count: f.counters[key]}
	if limit > 0 && state.Count >= limit {
		until := time.Now().UTC().Add(lockFor)
		f.locks[key] = until
		delete(f.counters, key)
		state.Locked = true
		state.LockedUntil = &until
	}
	return state, nil
}

func (f *fakeLimiter) IsLocked(_ context.Context, scope, identifier string) (bool, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.locks[f.key(scope, identifier)]
	if !ok || time.Now().UTC().After(until) {
		return false, time.Time{}, nil
	}
	return true, until, nil
}

func (f *fakeLimiter) Clear(_ context.Context, scope, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counters, f.key(scope, identifier))
	delete(f.locks, f.key(scope, identifier))
	return nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}

// fakeCodec issues opaque tokens backed by in-memory claim maps, one map per
// token family so cross-family verification fails like a signature mismatch.
type fakeCodec struct {
	mu      sync.Mutex
	access  map[string]ports.AccessClaims
	refresh map[string]ports.RefreshClaims
	reset   map[string]ports.ResetClaims
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		access:  map[string]ports.AccessClaims{},
		refresh: map[string]ports.RefreshClaims{},
		reset:   map[string]ports.ResetClaims{},
	}
}

func (f *fakeCodec) IssueAccess(claims ports.AccessClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "access." + uuid.NewString()
	f.access[token] = claims
	return token, nil
}

func (f *fakeCodec) IssueRefresh(claims ports.RefreshClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "refresh." + uuid.NewString()
	f.refresh[token] = claims
	return token, nil
}

func (f *fakeCodec) IssueReset(claims ports.ResetClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "reset." + uuid.NewString()
	f.reset[token] = claims
	return token, nil
}

func (f *fakeCodec) VerifyAccess(token string) (ports.AccessClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.access[token]
	if !ok {
		return ports.AccessClaims{}, domain.ErrUnauthorized
	}
	if time.Now().UTC().After(claims.ExpiresAt) {
		return ports.AccessClaims{}, domain.ErrTokenExpired
	}
	return claims, nil
}

func (f *fakeCodec) VerifyRefresh(token string) (ports.RefreshClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.refresh[token]
	if !ok {
		return ports.RefreshClaims{}, domain.ErrInvalidRefreshToken
	}
	if time.Now().UTC().After(claims.ExpiresAt) {
		return ports.RefreshClaims{}, domain.ErrTokenExpired
	}
	return claims, nil
}

func (f *fakeCodec) VerifyReset(token string) (ports.ResetClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.reset[token]
	if !ok {
		return ports.ResetClaims{}, domain.ErrInvalidResetToken
	}
	if time.Now().UTC().After(claims.ExpiresAt) {
		return ports.ResetClaims{}, domain.ErrTokenExpired
	}
	return claims, nil
}

func strongPassword() string { return "StrongPass123!" }

func registeredAdmin(f *fixture) (PublicProfile, error) {
	return f.service.Register(context.Background(), RegisterRequest{
		Identifier:  "admin@example.com",
		Password:    strongPassword(),
		DisplayName: "Platform Admin",
		Role:        string(domain.RoleAdmin),
	})
}

func loginRequest(email string) LoginRequest {
	return LoginRequest{
		Identifier: email,
		Password:   strongPassword(),
		DeviceInfo: "unit-test-device",
		IPAddress:  "127.0.0.1",
		UserAgent:  "unit-test",
	}
}
