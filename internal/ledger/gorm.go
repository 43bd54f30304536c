package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mentorlink/consult/internal/domain"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates the session_records table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("failed to migrate session records: %w", err)
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, id domain.BookingID) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).First(&rec, "booking_id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session record: %w", err)
	}
	return &rec, nil
}

func (r *gormRepository) Save(ctx context.Context, rec *Record) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}
