package ws

import (
	"sync"

	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/session"
)

// hub tracks every open connection, grouped by user. It backs the personal
// notification group and the user:online/offline fan-out; room-scoped
// traffic never goes through here.
type hub struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	byUser map[domain.UserID]map[string]*conn
}

func newHub() *hub {
	return &hub{
		conns:  make(map[string]*conn),
		byUser: make(map[domain.UserID]map[string]*conn),
	}
}

// add registers the connection and reports whether it is the user's first,
// which is when an online broadcast is due.
func (h *hub) add(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
	group, ok := h.byUser[c.userID]
	if !ok {
		group = make(map[string]*conn)
		h.byUser[c.userID] = group
	}
	group[c.id] = c
	return len(group) == 1
}

// remove deregisters the connection and reports whether it was the user's
// last, which is when the offline broadcast and presence delete are due.
func (h *hub) remove(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.id)
	group, ok := h.byUser[c.userID]
	if !ok {
		return false
	}
	delete(group, c.id)
	if len(group) == 0 {
		delete(h.byUser, c.userID)
		return true
	}
	return false
}

// notifyUser reaches every connection of one user.
func (h *hub) notifyUser(userID domain.UserID, event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byUser[userID] {
		_ = c.Send(event, data)
	}
}

// broadcastPresence tells every other user's connections about a presence
// change.
func (h *hub) broadcastPresence(event string, userID domain.UserID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		if c.userID == userID {
			continue
		}
		_ = c.Send(event, session.PresencePayload{UserID: string(userID)})
	}
}
