package rooms_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/rooms"
)

// fanoutPair builds two independent instances sharing one Redis, both with
// their subscriber loop running.
func fanoutPair(t *testing.T) (*rooms.Manager, *rooms.Fanout, *rooms.Manager, *rooms.Fanout) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	ma := rooms.NewManager()
	fa := rooms.NewFanout(ma, newClient(), "test:")
	mb := rooms.NewManager()
	fb := rooms.NewFanout(mb, newClient(), "test:")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = fa.Run(ctx) }()
	go func() { _ = fb.Run(ctx) }()

	return ma, fa, mb, fb
}

func TestFanoutReachesOtherInstance(t *testing.T) {
	ma, fa, mb, _ := fanoutPair(t)

	local, ls := occupant("a1", domain.RoleHost)
	remote, rs := occupant("b1", domain.RoleGuest)
	ma.Join("bk1", rooms.Live, local)
	mb.Join("bk1", rooms.Live, remote)

	// Publish until the remote subscriber has caught the frame; the
	// subscription may still be settling on the first attempt.
	require.Eventually(t, func() bool {
		fa.Broadcast(context.Background(), "bk1", rooms.Live, "a1", "session:ready", nil)
		return rs.count() >= 1
	}, 2*time.Second, 20*time.Millisecond)

	// The origin excluded its sender locally and never re-delivers its own
	// published frame.
	assert.Equal(t, 0, ls.count())
}

func TestFanoutRespectsGroup(t *testing.T) {
	_, fa, mb, _ := fanoutPair(t)

	waiter, ws := occupant("b2", domain.RoleGuest)
	liveOcc, ls := occupant("b3", domain.RoleGuest)
	mb.Join("bk1", rooms.Waiting, waiter)
	mb.Join("bk1", rooms.Live, liveOcc)

	require.Eventually(t, func() bool {
		fa.Broadcast(context.Background(), "bk1", rooms.Live, "", "signal:offer", map[string]string{"sdp": "x"})
		return ls.count() >= 1
	}, 2*time.Second, 20*time.Millisecond)

	// A live-only frame never leaks into the remote waiting room.
	assert.Equal(t, 0, ws.count())
}

func TestFanoutBroadcastAllSpansGroups(t *testing.T) {
	_, fa, mb, _ := fanoutPair(t)

	waiter, ws := occupant("b2", domain.RoleGuest)
	liveOcc, ls := occupant("b3", domain.RoleGuest)
	mb.Join("bk1", rooms.Waiting, waiter)
	mb.Join("bk1", rooms.Live, liveOcc)

	require.Eventually(t, func() bool {
		fa.BroadcastAll(context.Background(), "bk1", "", "session:participant-joined", nil)
		return ws.count() >= 1 && ls.count() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}
