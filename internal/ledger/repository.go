package ledger

import (
	"context"
	"errors"

	"github.com/mentorlink/consult/internal/domain"
)

var ErrNotFound = errors.New("session record not found")

// Repository persists session records. Two implementations exist: gorm over
// Postgres for production and an in-memory map for tests.
type Repository interface {
	Get(ctx context.Context, id domain.BookingID) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}
