package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type affiliationRepository struct {
	db *gorm.DB
}

func (r *affiliationRepository) DealerExists(ctx context.Context, dealerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&dealerModel{}).
		Where("dealer_id = ?", dealerID).
		Where("is_active").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *affiliationRepository) ManufacturerExists(ctx context.Context, manufacturerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&manufacturerModel{}).
		Where("manufacturer_id = ?", manufacturerID).
		Where("is_active").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
