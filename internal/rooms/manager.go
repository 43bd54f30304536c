package rooms

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/domain"
)

type Manager struct {
	mu       sync.RWMutex
	bookings map[domain.BookingID]*pair
}

func NewManager() *Manager {
	return &Manager{bookings: make(map[domain.BookingID]*pair)}
}

func (m *Manager) getOrCreate(id domain.BookingID) *pair {
	m.mu.RLock()
	p, ok := m.bookings[id]
	m.mu.RUnlock()
	if ok {
		return p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok = m.bookings[id]; !ok {
		p = newPair()
		m.bookings[id] = p
	}
	return p
}

func (m *Manager) get(id domain.BookingID) (*pair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.bookings[id]
	return p, ok
}

// dropIfEmpty removes the booking's pair once both groups have drained.
func (m *Manager) dropIfEmpty(id domain.BookingID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.bookings[id]; ok && p.empty() {
		delete(m.bookings, id)
	}
}

// Join places the occupant in the named group, removing it from the other
// group of the same booking first.
func (m *Manager) Join(id domain.BookingID, k Kind, occ Occupant) {
	p := m.getOrCreate(id)
	p.mu.Lock()
	delete(p.waiting, occ.ConnID)
	delete(p.live, occ.ConnID)
	if k == Live {
		p.live[occ.ConnID] = occ
	} else {
		p.waiting[occ.ConnID] = occ
	}
	p.mu.Unlock()
	log.Debug().Str("module", "rooms").Str("booking", string(id)).
		Str("conn", occ.ConnID).Str("group", string(k)).Msg("member joined group")
}

// Leave removes the connection from both groups. Returns the group it was in.
func (m *Manager) Leave(id domain.BookingID, connID string) (Kind, bool) {
	p, ok := m.get(id)
	if !ok {
		return "", false
	}
	p.mu.Lock()
	var was Kind
	if _, ok = p.waiting[connID]; ok {
		was = Waiting
		delete(p.waiting, connID)
	} else if _, ok = p.live[connID]; ok {
		was = Live
		delete(p.live, connID)
	}
	p.mu.Unlock()

	if ok {
		log.Debug().Str("module", "rooms").Str("booking", string(id)).
			Str("conn", connID).Str("group", string(was)).Msg("member left group")
	}
	m.dropIfEmpty(id)
	return was, ok
}

// KindOf reports the group the connection currently occupies, if any.
func (m *Manager) KindOf(id domain.BookingID, connID string) (Kind, bool) {
	p, ok := m.get(id)
	if !ok {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.waiting[connID]; ok {
		return Waiting, true
	}
	if _, ok := p.live[connID]; ok {
		return Live, true
	}
	return "", false
}

// RoleLive reports whether the live room holds a connection in the given
// role.
func (m *Manager) RoleLive(id domain.BookingID, role domain.Role) bool {
	p, ok := m.get(id)
	if !ok {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, occ := range p.live {
		if occ.Role == role {
			return true
		}
	}
	return false
}

// HostLive is what auto-admits a late-arriving guest.
func (m *Manager) HostLive(id domain.BookingID) bool {
	return m.RoleLive(id, domain.RoleHost)
}

// Clear empties both groups of a booking and returns everyone removed. Used
// when a session ends; a later join starts a fresh lifecycle.
func (m *Manager) Clear(id domain.BookingID) []Occupant {
	p, ok := m.get(id)
	if !ok {
		return nil
	}
	p.mu.Lock()
	out := make([]Occupant, 0, len(p.waiting)+len(p.live))
	for connID, occ := range p.waiting {
		out = append(out, occ)
		delete(p.waiting, connID)
	}
	for connID, occ := range p.live {
		out = append(out, occ)
		delete(p.live, connID)
	}
	p.mu.Unlock()
	m.dropIfEmpty(id)
	return out
}

// Members returns a snapshot of one group.
func (m *Manager) Members(id domain.BookingID, k Kind) []Occupant {
	p, ok := m.get(id)
	if !ok {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	group := p.live
	if k == Waiting {
		group = p.waiting
	}
	out := make([]Occupant, 0, len(group))
	for _, occ := range group {
		out = append(out, occ)
	}
	return out
}

func (m *Manager) Count(id domain.BookingID, k Kind) int {
	p, ok := m.get(id)
	if !ok {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if k == Waiting {
		return len(p.waiting)
	}
	return len(p.live)
}

// PromoteAll moves every currently-waiting occupant to the live group in one
// sweep under the booking's lock, so a guest joining concurrently either
// lands in the sweep or in the live room directly, never in limbo. Returns
// the promoted occupants.
func (m *Manager) PromoteAll(id domain.BookingID) []Occupant {
	p, ok := m.get(id)
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	moved := make([]Occupant, 0, len(p.waiting))
	for connID, occ := range p.waiting {
		delete(p.waiting, connID)
		p.live[connID] = occ
		moved = append(moved, occ)
	}
	return moved
}

// Broadcast sends an event to one group, skipping the excluded connection.
// Send failures are counted, not retried; a dead socket is reaped by its own
// read pump.
func (m *Manager) Broadcast(id domain.BookingID, k Kind, except string, event string, data any) int {
	sent := 0
	for _, occ := range m.Members(id, k) {
		if occ.ConnID == except {
			continue
		}
		if err := occ.Sender.Send(event, data); err != nil {
			log.Warn().Err(err).Str("module", "rooms").Str("booking", string(id)).
				Str("conn", occ.ConnID).Str("event", event).Msg("broadcast drop")
			continue
		}
		sent++
	}
	return sent
}

// BroadcastAll reaches both groups of the booking.
func (m *Manager) BroadcastAll(id domain.BookingID, except string, event string, data any) int {
	return m.Broadcast(id, Waiting, except, event, data) +
		m.Broadcast(id, Live, except, event, data)
}
