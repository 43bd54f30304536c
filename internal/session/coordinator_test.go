package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlink/consult/internal/booking"
	"github.com/mentorlink/consult/internal/config"
	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/ledger"
	"github.com/mentorlink/consult/internal/rooms"
	"github.com/mentorlink/consult/internal/store"
	"github.com/mentorlink/consult/internal/token"
)

type sentEvent struct {
	Event string
	Data  any
}

type fakePeer struct {
	id     string
	userID domain.UserID

	mu     sync.Mutex
	events []sentEvent
}

func (f *fakePeer) ID() string            { return f.id }
func (f *fakePeer) UserID() domain.UserID { return f.userID }

func (f *fakePeer) Send(ev string, d any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Event: ev, Data: d})
	return nil
}

func (f *fakePeer) named(ev string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.Event == ev {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	coord    *Coordinator
	tokens   *token.Service
	bookings *booking.Memory
	ledger   *ledger.Service
	flags    *store.Client
	base     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	flags, err := store.New(config.RedisConfig{Host: mr.Host(), Port: mr.Port(), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = flags.Close() })

	tokens := token.NewService(config.JWTConfig{
		Secret:       "test-secret",
		Issuer:       "consult",
		Audience:     "consult-realtime",
		JoinTokenTTL: time.Hour,
	})
	bookings := booking.NewMemory()
	led := ledger.NewService(ledger.NewMemoryRepository())

	mgr := rooms.NewManager()
	f := &fixture{
		coord:    NewCoordinator(mgr, rooms.NewFanout(mgr, flags.Redis(), "test:"), tokens, bookings, led, flags),
		tokens:   tokens,
		bookings: bookings,
		ledger:   led,
		flags:    flags,
		base:     time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC),
	}
	f.setNow(f.base)
	return f
}

func (f *fixture) setNow(t time.Time) {
	f.coord.now = func() time.Time { return t }
}

func (f *fixture) confirmedBooking(id domain.BookingID) *domain.Booking {
	b := &domain.Booking{
		ID:             id,
		MentorID:       "mentor-1",
		MenteeID:       "mentee-1",
		Status:         domain.BookingConfirmed,
		ScheduledStart: f.base,
		ScheduledEnd:   f.base.Add(time.Hour),
	}
	f.bookings.Put(b)
	return b
}

func (f *fixture) joinToken(t *testing.T, b domain.BookingID, u domain.UserID, r domain.Role) string {
	t.Helper()
	raw, err := f.tokens.MintJoinToken(b, u, r)
	require.NoError(t, err)
	return raw
}

func hostPeer() *fakePeer  { return &fakePeer{id: "conn-host", userID: "mentor-1"} }
func guestPeer() *fakePeer { return &fakePeer{id: "conn-guest", userID: "mentee-1"} }

func TestJoinOutsideWindowRejected(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()
	tok := f.joinToken(t, "b1", "mentor-1", domain.RoleHost)

	f.setNow(f.base.Add(-domain.JoinEarlyMargin - time.Minute))
	_, err := f.coord.Join(ctx, hostPeer(), tok)
	assert.ErrorIs(t, err, ErrWindowClosed)

	f.setNow(f.base.Add(time.Hour + domain.JoinLateMargin + time.Minute))
	_, err = f.coord.Join(ctx, hostPeer(), tok)
	assert.ErrorIs(t, err, ErrWindowClosed)

	f.setNow(f.base.Add(-5 * time.Minute))
	res, err := f.coord.Join(ctx, hostPeer(), tok)
	require.NoError(t, err)
	assert.True(t, res.Admitted)
}

func TestJoinValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.coord.Join(ctx, hostPeer(), "not-a-token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("token user mismatch", func(t *testing.T) {
		f.confirmedBooking("b1")
		tok := f.joinToken(t, "b1", "mentee-1", domain.RoleGuest)
		_, err := f.coord.Join(ctx, hostPeer(), tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown booking", func(t *testing.T) {
		tok := f.joinToken(t, "missing", "mentor-1", domain.RoleHost)
		_, err := f.coord.Join(ctx, hostPeer(), tok)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("unconfirmed booking", func(t *testing.T) {
		f.bookings.Put(&domain.Booking{
			ID: "pending", MentorID: "mentor-1", MenteeID: "mentee-1",
			Status:         domain.BookingPending,
			ScheduledStart: f.base, ScheduledEnd: f.base.Add(time.Hour),
		})
		tok := f.joinToken(t, "pending", "mentor-1", domain.RoleHost)
		_, err := f.coord.Join(ctx, hostPeer(), tok)
		assert.ErrorIs(t, err, ErrSessionNotReady)
	})

	t.Run("stranger to the booking", func(t *testing.T) {
		f.confirmedBooking("b1")
		tok := f.joinToken(t, "b1", "outsider", domain.RoleHost)
		_, err := f.coord.Join(ctx, &fakePeer{id: "c9", userID: "outsider"}, tok)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("role mismatch", func(t *testing.T) {
		f.confirmedBooking("b1")
		tok := f.joinToken(t, "b1", "mentee-1", domain.RoleHost)
		_, err := f.coord.Join(ctx, guestPeer(), tok)
		assert.ErrorIs(t, err, ErrRoleMismatch)
	})
}

func TestGuestBeforeHostWaits(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()
	guest := guestPeer()

	res, err := f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Nil(t, res.SessionStartedAt)
	assert.Len(t, guest.named(EvWaiting), 1)

	// The host arriving later is told about the waiter.
	host := hostPeer()
	res, err = f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	assert.True(t, res.Admitted)

	joined := host.named(EvParticipantJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "mentee-1", joined[0].Data.(ParticipantPayload).UserID)

	// The waiter heard about the host's arrival too.
	assert.NotEmpty(t, guest.named(EvParticipantJoined))
}

func TestGuestAfterHostAutoAdmitted(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)

	guest := guestPeer()
	res, err := f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	require.NotNil(t, res.SessionStartedAt)
	assert.Empty(t, guest.named(EvWaiting))

	// Both parties see the arrival.
	assert.NotEmpty(t, host.named(EvParticipantJoined))
}

func TestAdmitSweepsAllWaiters(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	g1 := &fakePeer{id: "conn-g1", userID: "mentee-1"}
	_, err := f.coord.Join(ctx, g1, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	// Same guest from a second device also waits.
	g2 := &fakePeer{id: "conn-g2", userID: "mentee-1"}
	_, err = f.coord.Join(ctx, g2, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	host := hostPeer()
	_, err = f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)

	admitAt := f.base.Add(2 * time.Minute)
	f.setNow(admitAt)
	res, err := f.coord.Admit(ctx, host, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Promoted)

	a1 := g1.named(EvAdmitted)
	a2 := g2.named(EvAdmitted)
	require.Len(t, a1, 1)
	require.Len(t, a2, 1)
	p1 := a1[0].Data.(AdmittedPayload)
	p2 := a2[0].Data.(AdmittedPayload)
	require.NotNil(t, p1.SessionStartedAt)
	require.NotNil(t, p2.SessionStartedAt)
	assert.True(t, p1.SessionStartedAt.Equal(*p2.SessionStartedAt))

	assert.NotEmpty(t, g1.named(EvReady))
	assert.NotEmpty(t, host.named(EvReady))

	// Signals now relay to the promoted guests.
	f.coord.Relay(ctx, host, EvOffer, "b1", json.RawMessage(`{"sdp":"x"}`))
	assert.Len(t, g1.named(EvOffer), 1)
}

func TestAdmitGuards(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	_, err := f.coord.Admit(ctx, hostPeer(), "b1")
	assert.ErrorIs(t, err, ErrNotJoined)

	guest := guestPeer()
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	_, err = f.coord.Admit(ctx, guest, "b1")
	assert.ErrorIs(t, err, ErrNotJoined) // waiting, not live

	host := hostPeer()
	_, err = f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Admit(ctx, host, "other-booking")
	assert.ErrorIs(t, err, ErrNotJoined)

	// A live guest is still not a host.
	_, err = f.coord.Admit(ctx, host, "b1")
	require.NoError(t, err)
	_, err = f.coord.Admit(ctx, guest, "b1")
	assert.ErrorIs(t, err, ErrMentorOnly)
}

func TestEndClearsAdmissionForRejoin(t *testing.T) {
	f := newFixture(t)
	b := f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Admit(ctx, host, "b1")
	require.NoError(t, err)

	admitted, err := f.flags.Admitted(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, admitted)

	require.NoError(t, f.coord.End(ctx, host, "b1"))

	admitted, err = f.flags.Admitted(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, admitted)

	rec, err := f.ledger.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.EndedByMentor), rec.EndReason)

	// Host is gone; a rejoining guest lands back in the waiting room.
	res, err := f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	assert.False(t, res.Admitted)
}

func TestFullDisconnectRequiresReadmission(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Admit(ctx, host, "b1")
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	// Everyone drops without an explicit end. The admission flag is still
	// in Redis, but no host presence marker backs it up.
	f.coord.HandleDisconnect(ctx, guest)
	f.coord.HandleDisconnect(ctx, host)

	f.setNow(f.base.Add(5 * time.Minute))
	fresh := &fakePeer{id: "conn-guest-2", userID: "mentee-1"}
	res, err := f.coord.Join(ctx, fresh, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Len(t, fresh.named(EvWaiting), 1)
}

func TestGuestReadmittedWhileHostStillConnected(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Admit(ctx, host, "b1")
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	// The host's socket on another instance keeps its presence marker alive.
	require.NoError(t, f.flags.MarkOnline(ctx, "mentor-1"))

	f.coord.HandleDisconnect(ctx, host)
	f.coord.HandleDisconnect(ctx, guest)

	// A reconnecting guest skips the waiting room: flag plus live host.
	fresh := &fakePeer{id: "conn-guest-2", userID: "mentee-1"}
	res, err := f.coord.Join(ctx, fresh, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	assert.True(t, res.Admitted)
}

func TestWaitingDurationAccrued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("promoted waiter", func(t *testing.T) {
		f.confirmedBooking("b1")
		f.setNow(f.base)
		guest := guestPeer()
		_, err := f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
		require.NoError(t, err)

		f.setNow(f.base.Add(time.Minute))
		host := hostPeer()
		_, err = f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
		require.NoError(t, err)

		f.setNow(f.base.Add(3 * time.Minute))
		_, err = f.coord.Admit(ctx, host, "b1")
		require.NoError(t, err)

		rec, err := f.ledger.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, int64(180), rec.GuestWaitingSec)
		assert.Equal(t, int64(0), rec.HostWaitingSec)
	})

	t.Run("waiter gives up", func(t *testing.T) {
		f.confirmedBooking("b2")
		f.setNow(f.base)
		g := &fakePeer{id: "conn-g9", userID: "mentee-1"}
		_, err := f.coord.Join(ctx, g, f.joinToken(t, "b2", "mentee-1", domain.RoleGuest))
		require.NoError(t, err)

		f.setNow(f.base.Add(2 * time.Minute))
		f.coord.HandleDisconnect(ctx, g)

		rec, err := f.ledger.Get(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, int64(120), rec.GuestWaitingSec)
	})
}

func TestEndNotifiesLiveRoom(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	require.NoError(t, f.coord.End(ctx, guest, "b1"))

	ended := host.named(EvEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, string(domain.EndedByMentee), ended[0].Data.(EndedPayload).EndedBy)

	// Terminal for both connections.
	err = f.coord.Leave(ctx, host, "b1")
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestQoSAggregation(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	f.coord.RecordQoS(ctx, guest, "b1", ledger.Sample{RTTMs: 30, Jitter: 4, Loss: 0, BitrateKbps: 900})
	f.coord.RecordQoS(ctx, guest, "b1", ledger.Sample{RTTMs: 50, Jitter: 6, Loss: 2, BitrateKbps: 1100})
	// Out-of-range values clamp instead of vanishing.
	f.coord.RecordQoS(ctx, guest, "b1", ledger.Sample{RTTMs: -10, Jitter: 500, Loss: 1, BitrateKbps: 1000})

	rec, err := f.ledger.Get(ctx, "b1")
	require.NoError(t, err)
	agg := rec.GuestQoS
	assert.Equal(t, int64(3), agg.Samples)
	assert.InDelta(t, (30.0+50.0+0.0)/3, agg.AvgRTTMs, 1e-9)
	assert.InDelta(t, (4.0+6.0+100.0)/3, agg.AvgJitter, 1e-9)

	// Samples for a booking the sender is not live in are dropped.
	f.coord.RecordQoS(ctx, guest, "b2", ledger.Sample{RTTMs: 1})
	rec, err = f.ledger.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.GuestQoS.Samples)
}

func TestSignalFromNonLiveConnectionDropped(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	guest := guestPeer()
	_, err := f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	host := hostPeer()
	_, err = f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)

	// Guest is still waiting; its offer must not reach the host.
	f.coord.Relay(ctx, guest, EvOffer, "b1", json.RawMessage(`{"sdp":"waiting"}`))
	assert.Empty(t, host.named(EvOffer))

	// Unknown connection is equally silent.
	stranger := &fakePeer{id: "conn-x", userID: "outsider"}
	f.coord.Relay(ctx, stranger, EvICE, "b1", json.RawMessage(`{}`))
	assert.Empty(t, host.named(EvICE))
}

func TestSignalRelayAttributesSender(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	raw := json.RawMessage(`{"sdp":"v=0 ..."}`)
	f.coord.Relay(ctx, host, EvOffer, "b1", raw)

	offers := guest.named(EvOffer)
	require.Len(t, offers, 1)
	sig := offers[0].Data.(SignalPayload)
	assert.Equal(t, "mentor-1", sig.From.UserID)
	assert.Equal(t, string(domain.RoleHost), sig.From.Role)
	assert.JSONEq(t, string(raw), string(sig.Data))

	// Sender never receives its own signal back.
	assert.Empty(t, host.named(EvOffer))
}

func TestDisconnectCountsAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	host := hostPeer()
	guest := guestPeer()
	_, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)

	f.coord.HandleDisconnect(ctx, guest)

	left := host.named(EvParticipantLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "mentee-1", left[0].Data.(ParticipantPayload).UserID)

	rec, err := f.ledger.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GuestDisconnects)

	// Idempotent: a second disconnect for the same conn is a no-op.
	f.coord.HandleDisconnect(ctx, guest)
	rec, err = f.ledger.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GuestDisconnects)
}

func TestNoShowClassification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("neither joined", func(t *testing.T) {
		f.confirmedBooking("b-none")
		f.setNow(f.base.Add(2 * time.Hour))
		reason, ok, err := f.coord.MarkNoShow(ctx, "b-none")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.NoShowBoth, reason)
	})

	t.Run("only host joined", func(t *testing.T) {
		f.confirmedBooking("b-host-only")
		f.setNow(f.base)
		host := hostPeer()
		_, err := f.coord.Join(ctx, host, f.joinToken(t, "b-host-only", "mentor-1", domain.RoleHost))
		require.NoError(t, err)

		f.setNow(f.base.Add(2 * time.Hour))
		reason, ok, err := f.coord.MarkNoShow(ctx, "b-host-only")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.NoShowMentee, reason)
	})

	t.Run("window still open", func(t *testing.T) {
		f.confirmedBooking("b-open")
		f.setNow(f.base)
		_, ok, err := f.coord.MarkNoShow(ctx, "b-open")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// Mirrors the end-to-end timeline from the session design doc: host joins
// early, guest is auto-admitted, guest drops mid-call.
func TestHostGuestLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	f.confirmedBooking("b1")
	ctx := context.Background()

	f.setNow(f.base.Add(-10 * time.Minute))
	host := hostPeer()
	res, err := f.coord.Join(ctx, host, f.joinToken(t, "b1", "mentor-1", domain.RoleHost))
	require.NoError(t, err)
	assert.True(t, res.Admitted)

	f.setNow(f.base.Add(-5 * time.Minute))
	guest := guestPeer()
	res, err = f.coord.Join(ctx, guest, f.joinToken(t, "b1", "mentee-1", domain.RoleGuest))
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.NotEmpty(t, host.named(EvParticipantJoined))

	f.setNow(f.base.Add(2 * time.Minute))
	f.coord.HandleDisconnect(ctx, guest)
	assert.NotEmpty(t, host.named(EvParticipantLeft))

	rec, err := f.ledger.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GuestDisconnects)
	assert.Equal(t, 1, rec.GuestJoins)
	require.NotNil(t, rec.ActualStart)
}
