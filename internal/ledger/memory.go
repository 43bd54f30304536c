package ledger

import (
	"context"
	"sync"

	"github.com/mentorlink/consult/internal/domain"
)

// memoryRepository is the test/standalone implementation.
type memoryRepository struct {
	mu      sync.RWMutex
	records map[domain.BookingID]Record
}

func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[domain.BookingID]Record)}
}

func (r *memoryRepository) Get(_ context.Context, id domain.BookingID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (r *memoryRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[domain.BookingID(rec.BookingID)] = *rec
	return nil
}
