package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListSessions returns current and historical sessions for the authenticated
// user, newest first, flagging the session the caller is on.
func (s *Service) ListSessions(ctx context.Context, userID, currentSessionID uuid.UUID) ([]SessionItem, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, 100, 0)
	if err != nil {
		return nil, err
	}

	result := make([]SessionItem, 0, len(sessions))
	for _, it := range sessions {
		result = append(result, toSessionItem(it, currentSessionID))
	}
	return result, nil
}

// LoginHistory returns login attempts with pagination and optional
// time/status filters.
func (s *Service) LoginHistory(ctx context.Context, userID uuid.UUID, q LoginHistoryQuery) ([]LoginHistoryItem, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	offset := (q.Page - 1) * q.Limit

	var since *time.Time
	if q.Days > 0 {
		t := s.nowFn().Add(-time.Duration(q.Days) * 24 * time.Hour)
		since = &t
	}

	attempts, err := s.loginAttempts.ListByUser(ctx, userID, q.Limit, offset, since, strings.ToUpper(strings.TrimSpace(q.Status)))
	if err != nil {
		return nil, err
	}

	result := make([]LoginHistoryItem, 0, len(attempts))
	for _, attempt := range attempts {
		result = append(result, LoginHistoryItem{
			ID:                attempt.ID,
			Timestamp:         attempt.AttemptAt,
			Status:            attempt.Status,
			FailureReason:     attempt.FailureReason,
			IPAddress:         attempt.IPAddress,
			DeviceFingerprint: attempt.DeviceFingerprint,
		})
	}
	return result, nil
}
