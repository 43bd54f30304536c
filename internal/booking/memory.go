package booking

import (
	"context"
	"sync"

	"github.com/mentorlink/consult/internal/domain"
)

// Memory is a test double for the external booking store.
type Memory struct {
	mu       sync.RWMutex
	bookings map[domain.BookingID]domain.Booking
}

func NewMemory() *Memory {
	return &Memory{bookings: make(map[domain.BookingID]domain.Booking)}
}

func (m *Memory) Put(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
}

func (m *Memory) Get(_ context.Context, id domain.BookingID) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := b
	return &cp, nil
}
