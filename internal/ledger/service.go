package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/domain"
)

// Service is the narrow mutation API over session records. A single mutex
// serializes read-modify-write cycles; contention is bounded because every
// call touches exactly one booking's row and holds the lock only for the
// duration of that cycle.
type Service struct {
	mu   sync.Mutex
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the record for a booking, or ErrNotFound before first join.
func (s *Service) Get(ctx context.Context, id domain.BookingID) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) loadOrCreate(ctx context.Context, b *domain.Booking) (*Record, error) {
	rec, err := s.repo.Get(ctx, b.ID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &Record{
		BookingID:      string(b.ID),
		ScheduledStart: b.ScheduledStart,
		ScheduledEnd:   b.ScheduledEnd,
	}, nil
}

// RecordJoin notes a successful room entry. The first join per role pins the
// role's first-join timestamp; every join increments the role's counter. The
// updated record is returned so callers can read the authoritative session
// start for reconnect-friendly elapsed-time display.
func (s *Service) RecordJoin(ctx context.Context, b *domain.Booking, role domain.Role, at time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadOrCreate(ctx, b)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleHost {
		if rec.HostFirstJoin == nil {
			t := at
			rec.HostFirstJoin = &t
		}
		rec.HostJoins++
	} else {
		if rec.GuestFirstJoin == nil {
			t := at
			rec.GuestFirstJoin = &t
		}
		rec.GuestJoins++
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordSessionStart pins the authoritative start time, once. Called when the
// live room first holds both parties (admit sweep or guest auto-admission);
// later calls keep the original timestamp so every client agrees on elapsed
// time.
func (s *Service) RecordSessionStart(ctx context.Context, b *domain.Booking, at time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadOrCreate(ctx, b)
	if err != nil {
		return nil, err
	}
	if rec.ActualStart == nil {
		t := at
		rec.ActualStart = &t
		if err := s.repo.Save(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// AccrueWaiting adds time a connection spent in the waiting room to the
// role's total. Called when a waiter is promoted or leaves without being
// admitted.
func (s *Service) AccrueWaiting(ctx context.Context, id domain.BookingID, role domain.Role, waited time.Duration) error {
	if waited <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if role == domain.RoleHost {
		rec.HostWaitingSec += int64(waited / time.Second)
	} else {
		rec.GuestWaitingSec += int64(waited / time.Second)
	}
	return s.repo.Save(ctx, rec)
}

// RecordDisconnect increments the role's disconnect counter.
func (s *Service) RecordDisconnect(ctx context.Context, id domain.BookingID, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if role == domain.RoleHost {
		rec.HostDisconnects++
	} else {
		rec.GuestDisconnects++
	}
	return s.repo.Save(ctx, rec)
}

// RecordSample folds one clamped QoS sample into the role's aggregate.
func (s *Service) RecordSample(ctx context.Context, id domain.BookingID, role domain.Role, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.aggregate(role).fold(sample.Clamped())
	return s.repo.Save(ctx, rec)
}

// Finalize sets the end timestamp and reason. The first finalization wins;
// the record is immutable afterwards.
func (s *Service) Finalize(ctx context.Context, id domain.BookingID, reason domain.EndReason, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Ended() {
		log.Debug().Str("module", "ledger").Str("booking", rec.BookingID).
			Str("reason", rec.EndReason).Msg("already finalized")
		return nil
	}
	t := at
	rec.ActualEnd = &t
	rec.EndReason = string(reason)
	return s.repo.Save(ctx, rec)
}

// ClassifyNoShow inspects a fully-elapsed, never-ended booking and returns
// the no-show reason, or ok=false when both parties showed up or the window
// has not elapsed yet. A booking with no record at all means neither party
// ever joined.
func (s *Service) ClassifyNoShow(ctx context.Context, b *domain.Booking, now time.Time) (domain.EndReason, bool, error) {
	if !b.WindowElapsed(now) {
		return "", false, nil
	}

	rec, err := s.repo.Get(ctx, b.ID)
	if errors.Is(err, ErrNotFound) {
		return domain.NoShowBoth, true, nil
	}
	if err != nil {
		return "", false, err
	}
	if rec.Ended() {
		return "", false, nil
	}

	switch {
	case rec.HostFirstJoin == nil && rec.GuestFirstJoin == nil:
		return domain.NoShowBoth, true, nil
	case rec.HostFirstJoin == nil:
		return domain.NoShowMentor, true, nil
	case rec.GuestFirstJoin == nil:
		return domain.NoShowMentee, true, nil
	}
	return "", false, nil
}

// MarkNoShow classifies and, when applicable, finalizes the record with the
// no-show reason. Creates the record first for never-joined bookings so the
// outcome is durable.
func (s *Service) MarkNoShow(ctx context.Context, b *domain.Booking, now time.Time) (domain.EndReason, bool, error) {
	reason, ok, err := s.ClassifyNoShow(ctx, b, now)
	if err != nil || !ok {
		return "", false, err
	}

	s.mu.Lock()
	rec, err := s.loadOrCreate(ctx, b)
	if err != nil {
		s.mu.Unlock()
		return "", false, err
	}
	if !rec.Ended() {
		rec.EndReason = string(reason)
		if err := s.repo.Save(ctx, rec); err != nil {
			s.mu.Unlock()
			return "", false, err
		}
	}
	s.mu.Unlock()

	log.Info().Str("module", "ledger").Str("booking", string(b.ID)).
		Str("reason", string(reason)).Msg("booking classified as no-show")
	return reason, true, nil
}
