// Package booking is the contract to the external appointment store. The
// session layer only ever reads bookings; availability, double-booking and
// payment logic live on the other side of this interface.
package booking

import (
	"context"
	"errors"

	"github.com/mentorlink/consult/internal/domain"
)

var ErrNotFound = errors.New("booking not found")

type Store interface {
	Get(ctx context.Context, id domain.BookingID) (*domain.Booking, error)
}
