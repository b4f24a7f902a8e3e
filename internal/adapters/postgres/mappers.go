package postgres

import (
	"errors"
	"strings"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:           row.UserID,
		Email:            row.Email,
		DisplayName:      row.DisplayName,
		PasswordHash:     row.PasswordHash,
		Role:             domain.Role(row.Role),
		DealerID:         row.DealerID,
		ManufacturerID:   row.ManufacturerID,
		IsActive:         row.IsActive,
		FailedLoginCount: row.FailedLoginCount,
		LockedUntil:      row.LockedUntil,
		LastLoginAt:      row.LastLoginAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func toDomainSession(row sessionModel) domain.Session {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.Session{
		SessionID:         row.SessionID,
		UserID:            row.UserID,
		IPAddress:         ip,
		DeviceFingerprint: row.DeviceFingerprint,
		UserAgent:         row.UserAgent,
		RefreshVersion:    row.RefreshVersion,
		CreatedAt:         row.CreatedAt,
		ExpiresAt:         row.ExpiresAt,
		RevokedAt:         row.RevokedAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.LoginAttempt{
		ID:                row.ID,
		UserID:            row.UserID,
		AttemptAt:         row.AttemptAt,
		IPAddress:         ip,
		Status:            row.Status,
		FailureReason:     row.FailureReason,
		DeviceFingerprint: row.DeviceFingerprint,
		UserAgent:         row.UserAgent,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
