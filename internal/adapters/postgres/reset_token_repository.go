package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

type resetTokenRepository struct {
	db *gorm.DB
}

func (r *resetTokenRepository) Create(ctx context.Context, userID uuid.UUID, tokenHash string, createdAt, expiresAt time.Time) error {
	rec := passwordResetTokenModel{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

// Consume marks the token used under a row lock so two concurrent resets with
// the same token cannot both succeed.
func (r *resetTokenRepository) Consume(ctx context.Context, tokenHash string, usedAt time.Time) (uuid.UUID, error) {
	var rec passwordResetTokenModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", tokenHash).
			Where("used_at IS NULL").
			Where("expires_at > ?", usedAt).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		return tx.Model(&passwordResetTokenModel{}).
			Where("token_id = ?", rec.TokenID).
			Update("used_at", usedAt).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return rec.UserID, nil
}
