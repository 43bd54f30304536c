// Package domain contains entities without behaviorful dependencies, just
// the meta-data the session layer reasons about.
package domain

import "time"

type (
	BookingID string
	UserID    string
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Join attempts are accepted inside [ScheduledStart-JoinEarlyMargin,
// ScheduledEnd+JoinLateMargin].
const (
	JoinEarlyMargin = 20 * time.Minute
	JoinLateMargin  = 15 * time.Minute
)

// Booking is the read-only view of an appointment the session layer needs.
// The booking store owns the full record; we never write it.
type Booking struct {
	ID             BookingID
	MentorID       UserID
	MenteeID       UserID
	Status         BookingStatus
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

// RoleOf reports which session role the user plays in this booking.
func (b *Booking) RoleOf(uid UserID) (Role, bool) {
	switch uid {
	case b.MentorID:
		return RoleHost, true
	case b.MenteeID:
		return RoleGuest, true
	}
	return "", false
}

// Window returns the interval during which a join attempt is accepted.
func (b *Booking) Window() (time.Time, time.Time) {
	return b.ScheduledStart.Add(-JoinEarlyMargin), b.ScheduledEnd.Add(JoinLateMargin)
}

func (b *Booking) InWindow(t time.Time) bool {
	open, close := b.Window()
	return !t.Before(open) && !t.After(close)
}

// WindowElapsed reports whether the join window is fully in the past,
// which is the precondition for no-show classification.
func (b *Booking) WindowElapsed(t time.Time) bool {
	_, close := b.Window()
	return t.After(close)
}
