// Package rooms owns realtime room membership. Every booking has exactly two
// groups, waiting and live, and a connection is in at most one of them at any
// instant. Membership is only reachable through the operations here; no map
// escapes the package, so the invariant cannot be broken from outside.
package rooms

import (
	"sync"

	"github.com/mentorlink/consult/internal/domain"
)

// Kind names one of the two groups of a booking.
type Kind string

const (
	Waiting Kind = "waiting"
	Live    Kind = "live"
)

// Sender is the transport endpoint of one occupant. The adapter owns it and
// its Send must never block; slow consumers are the adapter's problem.
type Sender interface {
	Send(event string, data any) error
}

// Occupant is one connection's membership entry.
type Occupant struct {
	ConnID string
	UserID domain.UserID
	Role   domain.Role
	Sender Sender
}

// pair is one booking's two groups. It has its own lock so contention stays
// scoped to a single booking.
type pair struct {
	mu      sync.RWMutex
	waiting map[string]Occupant
	live    map[string]Occupant
}

func newPair() *pair {
	return &pair{
		waiting: make(map[string]Occupant),
		live:    make(map[string]Occupant),
	}
}

func (p *pair) empty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.waiting) == 0 && len(p.live) == 0
}
