package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mentorlink/consult/internal/domain"
)

// bookingRow mirrors the booking service's table. Read-only here.
type bookingRow struct {
	ID             string    `gorm:"primaryKey;column:id"`
	MentorID       string    `gorm:"column:mentor_id"`
	MenteeID       string    `gorm:"column:mentee_id"`
	Status         string    `gorm:"column:status"`
	ScheduledStart time.Time `gorm:"column:scheduled_start"`
	ScheduledEnd   time.Time `gorm:"column:scheduled_end"`
}

func (bookingRow) TableName() string { return "bookings" }

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Get(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	var row bookingRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return &domain.Booking{
		ID:             domain.BookingID(row.ID),
		MentorID:       domain.UserID(row.MentorID),
		MenteeID:       domain.UserID(row.MenteeID),
		Status:         domain.BookingStatus(row.Status),
		ScheduledStart: row.ScheduledStart,
		ScheduledEnd:   row.ScheduledEnd,
	}, nil
}
