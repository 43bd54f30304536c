// Package session implements the server-held session state machine: join
// with time-window and role checks, the waiting-room/admission protocol, the
// live-room signaling relay, QoS intake and disconnect handling. Per
// connection the lifecycle is NotJoined -> Waiting -> Live -> Ended, with a
// direct NotJoined -> Live path for hosts and auto-admitted guests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/booking"
	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/ledger"
	"github.com/mentorlink/consult/internal/rooms"
	"github.com/mentorlink/consult/internal/store"
	"github.com/mentorlink/consult/internal/token"
)

// connState is owned by exactly one connection; no other connection ever
// mutates it. waitingSince is set while the connection sits in the waiting
// room and zeroed on promotion.
type connState struct {
	bookingID    domain.BookingID
	role         domain.Role
	live         bool
	waitingSince time.Time
}

type Coordinator struct {
	mu     sync.RWMutex
	states map[string]*connState

	rooms    *rooms.Manager
	bcast    *rooms.Fanout
	tokens   *token.Service
	bookings booking.Store
	ledger   *ledger.Service
	flags    *store.Client

	// now is swappable in tests.
	now func() time.Time
}

func NewCoordinator(
	rm *rooms.Manager,
	bcast *rooms.Fanout,
	tokens *token.Service,
	bookings booking.Store,
	led *ledger.Service,
	flags *store.Client,
) *Coordinator {
	return &Coordinator{
		states:   make(map[string]*connState),
		rooms:    rm,
		bcast:    bcast,
		tokens:   tokens,
		bookings: bookings,
		ledger:   led,
		flags:    flags,
		now:      time.Now,
	}
}

func (c *Coordinator) stateOf(connID string) (connState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[connID]
	if !ok {
		return connState{}, false
	}
	return *st, true
}

func (c *Coordinator) setState(connID string, st connState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[connID] = &st
}

func (c *Coordinator) clearState(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, connID)
}

// promote flips the connection live and returns how long it waited.
func (c *Coordinator) promote(connID string, now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[connID]
	if !ok {
		return 0
	}
	st.live = true
	var waited time.Duration
	if !st.waitingSince.IsZero() {
		waited = now.Sub(st.waitingSince)
		st.waitingSince = time.Time{}
	}
	return waited
}

func (c *Coordinator) occupant(p Peer, role domain.Role) rooms.Occupant {
	return rooms.Occupant{
		ConnID: p.ID(),
		UserID: p.UserID(),
		Role:   role,
		Sender: p,
	}
}

// Join runs the full admission decision for one join token. Room membership
// is mutated only after every check and the ledger write have succeeded, so a
// failed join leaves no partial state.
func (c *Coordinator) Join(ctx context.Context, p Peer, rawToken string) (*JoinedPayload, error) {
	claims, err := c.tokens.VerifyJoinToken(rawToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if domain.UserID(claims.Subject) != p.UserID() {
		return nil, ErrUnauthorized
	}

	b, err := c.bookings.Get(ctx, domain.BookingID(claims.BookingID))
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		log.Error().Err(err).Str("module", "session").Str("booking", claims.BookingID).Msg("booking load failed")
		return nil, ErrJoinFailed
	}
	if b.Status != domain.BookingConfirmed {
		return nil, ErrSessionNotReady
	}

	role, party := b.RoleOf(p.UserID())
	if !party {
		return nil, ErrAccessDenied
	}
	if string(role) != claims.Role {
		return nil, ErrRoleMismatch
	}

	now := c.now()
	if !b.InWindow(now) {
		return nil, ErrWindowClosed
	}

	// A connection switching bookings leaves the old one first.
	if prev, ok := c.stateOf(p.ID()); ok && prev.bookingID != b.ID {
		c.detach(ctx, p, prev, true)
	}

	// Admission decision: hosts go straight to the live room. A guest is
	// auto-admitted when a host connection is already live, or when the
	// shared admission flag shows the host opened the room AND the host is
	// still connected somewhere (this is what lets a reconnecting guest on
	// another instance skip the waiting room). Once every host connection
	// is gone the presence marker lapses, the flag stops short-circuiting
	// and the next join starts a fresh lifecycle.
	admitted := role == domain.RoleHost
	if !admitted {
		admitted = c.rooms.HostLive(b.ID)
		if !admitted {
			flagged, ferr := c.flags.Admitted(ctx, b.ID)
			if ferr != nil {
				log.Error().Err(ferr).Str("module", "session").Str("booking", string(b.ID)).Msg("admission flag read failed")
			}
			if flagged {
				online, oerr := c.flags.Online(ctx, b.MentorID)
				if oerr != nil {
					log.Error().Err(oerr).Str("module", "session").Str("booking", string(b.ID)).Msg("host presence read failed")
				}
				admitted = online
			}
		}
	}

	rec, err := c.ledger.RecordJoin(ctx, b, role, now)
	if err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(b.ID)).Msg("ledger join failed")
		return nil, ErrJoinFailed
	}
	startedAt := rec.ActualStart

	kind := rooms.Waiting
	if admitted {
		kind = rooms.Live
	}
	c.rooms.Join(b.ID, kind, c.occupant(p, role))
	st := connState{bookingID: b.ID, role: role, live: admitted}
	if !admitted {
		st.waitingSince = now
	}
	c.setState(p.ID(), st)

	// The session starts the first time both roles share the live room.
	if startedAt == nil && c.rooms.RoleLive(b.ID, domain.RoleHost) && c.rooms.RoleLive(b.ID, domain.RoleGuest) {
		if rec, err = c.ledger.RecordSessionStart(ctx, b, now); err != nil {
			log.Error().Err(err).Str("module", "session").Str("booking", string(b.ID)).Msg("session start record failed")
		} else {
			startedAt = rec.ActualStart
		}
	}

	payload := &JoinedPayload{
		BookingID:        string(b.ID),
		Role:             string(role),
		Admitted:         admitted,
		SessionStartedAt: startedAt,
	}
	_ = p.Send(EvJoined, payload)
	if !admitted {
		_ = p.Send(EvWaiting, WaitingPayload{BookingID: string(b.ID)})
	}

	// A host arriving after its guests learns about each waiter right away.
	if role == domain.RoleHost {
		for _, occ := range c.rooms.Members(b.ID, rooms.Waiting) {
			_ = p.Send(EvParticipantJoined, ParticipantPayload{
				BookingID: string(b.ID),
				UserID:    string(occ.UserID),
				Role:      string(occ.Role),
			})
		}
	}

	c.bcast.BroadcastAll(ctx, b.ID, p.ID(), EvParticipantJoined, ParticipantPayload{
		BookingID: string(b.ID),
		UserID:    string(p.UserID()),
		Role:      string(role),
	})

	log.Info().Str("module", "session").Str("booking", string(b.ID)).
		Str("user", string(p.UserID())).Str("role", string(role)).
		Bool("admitted", admitted).Msg("session join")
	return payload, nil
}

// Admit is the host-driven transition that promotes every currently-waiting
// guest at once. The waiting set is swept under the booking's room lock so a
// guest joining mid-admission is either in the sweep or already live.
func (c *Coordinator) Admit(ctx context.Context, p Peer, bookingID domain.BookingID) (*AdmitResult, error) {
	st, ok := c.stateOf(p.ID())
	if !ok || st.bookingID != bookingID || !st.live {
		return nil, ErrNotJoined
	}
	if st.role != domain.RoleHost {
		return nil, ErrMentorOnly
	}

	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("booking load failed")
		return nil, ErrAdmitFailed
	}
	if b.Status != domain.BookingConfirmed {
		return nil, ErrSessionNotReady
	}
	if b.MentorID != p.UserID() {
		return nil, ErrAccessDenied
	}

	now := c.now()
	if err := c.flags.SetAdmitted(ctx, b, now); err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("admission flag write failed")
		return nil, ErrAdmitFailed
	}
	rec, err := c.ledger.RecordSessionStart(ctx, b, now)
	if err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("ledger admit failed")
		return nil, ErrAdmitFailed
	}
	startedAt := rec.ActualStart

	moved := c.rooms.PromoteAll(bookingID)
	for _, occ := range moved {
		if waited := c.promote(occ.ConnID, now); waited > 0 {
			if err := c.ledger.AccrueWaiting(ctx, bookingID, occ.Role, waited); err != nil {
				log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("waiting accrual failed")
			}
		}
		_ = occ.Sender.Send(EvAdmitted, AdmittedPayload{
			BookingID:        string(bookingID),
			AdmittedAt:       now,
			SessionStartedAt: startedAt,
		})
	}
	c.bcast.Broadcast(ctx, bookingID, rooms.Live, "", EvReady, ReadyPayload{BookingID: string(bookingID)})

	log.Info().Str("module", "session").Str("booking", string(bookingID)).
		Int("promoted", len(moved)).Msg("guests admitted")
	return &AdmitResult{
		BookingID:        string(bookingID),
		AdmittedAt:       now,
		SessionStartedAt: startedAt,
		Promoted:         len(moved),
	}, nil
}

// Leave removes the caller from the booking's rooms and tells the remaining
// live members.
func (c *Coordinator) Leave(ctx context.Context, p Peer, bookingID domain.BookingID) error {
	st, ok := c.stateOf(p.ID())
	if !ok || st.bookingID != bookingID {
		return ErrNotJoined
	}
	c.detach(ctx, p, st, true)
	return nil
}

// detach is the shared exit path for leave, booking switch and session end.
// A waiter exiting unadmitted accrues its waiting-room time here.
func (c *Coordinator) detach(ctx context.Context, p Peer, st connState, notify bool) {
	c.rooms.Leave(st.bookingID, p.ID())
	c.clearState(p.ID())
	if !st.live && !st.waitingSince.IsZero() {
		if err := c.ledger.AccrueWaiting(ctx, st.bookingID, st.role, c.now().Sub(st.waitingSince)); err != nil {
			log.Error().Err(err).Str("module", "session").Str("booking", string(st.bookingID)).Msg("waiting accrual failed")
		}
	}
	if notify {
		c.bcast.Broadcast(ctx, st.bookingID, rooms.Live, "", EvParticipantLeft, ParticipantPayload{
			BookingID: string(st.bookingID),
			UserID:    string(p.UserID()),
			Role:      string(st.role),
		})
	}
}

// End terminates the session for everyone: the ledger is finalized with a
// reason derived from the caller's role, the live room hears "ended", the
// admission flag is cleared and both rooms drain. A later join re-runs
// admission from scratch.
func (c *Coordinator) End(ctx context.Context, p Peer, bookingID domain.BookingID) error {
	st, ok := c.stateOf(p.ID())
	if !ok || st.bookingID != bookingID {
		return ErrNotJoined
	}

	reason := domain.EndReasonFor(st.role)
	if err := c.ledger.Finalize(ctx, bookingID, reason, c.now()); err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("ledger finalize failed")
	}

	c.bcast.Broadcast(ctx, bookingID, rooms.Live, "", EvEnded, EndedPayload{
		BookingID: string(bookingID),
		EndedBy:   string(reason),
	})

	if err := c.flags.ClearAdmitted(ctx, bookingID); err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("admission flag clear failed")
	}

	for _, occ := range c.rooms.Clear(bookingID) {
		c.clearState(occ.ConnID)
	}

	log.Info().Str("module", "session").Str("booking", string(bookingID)).
		Str("reason", string(reason)).Msg("session ended")
	return nil
}

// Relay forwards an opaque negotiation payload to the other live members.
// A message from a connection that is not live for that booking is silently
// dropped; stray or late signals must not resurrect state.
func (c *Coordinator) Relay(ctx context.Context, p Peer, event string, bookingID domain.BookingID, data json.RawMessage) {
	st, ok := c.stateOf(p.ID())
	if !ok || st.bookingID != bookingID || !st.live {
		log.Debug().Str("module", "session").Str("booking", string(bookingID)).
			Str("event", event).Str("conn", p.ID()).Msg("signal dropped, sender not live")
		return
	}
	c.bcast.Broadcast(ctx, bookingID, rooms.Live, p.ID(), event, SignalPayload{
		BookingID: string(bookingID),
		From: SignalSender{
			UserID: string(p.UserID()),
			Role:   string(st.role),
		},
		Data: data,
	})
}

// RecordQoS folds one quality sample into the ledger. Samples from
// connections that are not live for the booking are dropped.
func (c *Coordinator) RecordQoS(ctx context.Context, p Peer, bookingID domain.BookingID, sample ledger.Sample) {
	st, ok := c.stateOf(p.ID())
	if !ok || st.bookingID != bookingID || !st.live {
		return
	}
	if err := c.ledger.RecordSample(ctx, bookingID, st.role, sample); err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(bookingID)).Msg("qos record failed")
	}
}

// HandleDisconnect runs the leave path for a transport-level drop and counts
// it in the ledger. Not an error: network churn is a normal lifecycle event.
func (c *Coordinator) HandleDisconnect(ctx context.Context, p Peer) {
	st, ok := c.stateOf(p.ID())
	if !ok {
		return
	}
	c.detach(ctx, p, st, true)
	if err := c.ledger.RecordDisconnect(ctx, st.bookingID, st.role); err != nil {
		log.Error().Err(err).Str("module", "session").Str("booking", string(st.bookingID)).Msg("disconnect record failed")
	}
	log.Info().Str("module", "session").Str("booking", string(st.bookingID)).
		Str("user", string(p.UserID())).Msg("connection dropped mid-session")
}

// MarkNoShow classifies a confirmed booking with a fully-elapsed window.
// Driven by the admin boundary, never by either client.
func (c *Coordinator) MarkNoShow(ctx context.Context, bookingID domain.BookingID) (domain.EndReason, bool, error) {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return "", false, ErrBookingNotFound
		}
		return "", false, err
	}
	if b.Status != domain.BookingConfirmed {
		return "", false, ErrSessionNotReady
	}
	return c.ledger.MarkNoShow(ctx, b, c.now())
}
