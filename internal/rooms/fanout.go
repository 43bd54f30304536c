package rooms

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/domain"
)

// frame is the cross-instance broadcast envelope. Connection ids are
// meaningless outside their own process, so the sender exclusion only applies
// on the origin instance; every other instance delivers to all of its local
// members of the group.
type frame struct {
	Instance  string          `json:"instance"`
	BookingID string          `json:"bookingId"`
	Group     string          `json:"group"` // empty means both groups
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

// Fanout extends room broadcasts across server instances through a Redis
// pub/sub channel per booking. Membership stays process-local; only the
// event payload travels, so a load balancer may route the two parties of one
// booking to different processes and they still hear each other.
type Fanout struct {
	mgr      *Manager
	rdb      *redis.Client
	prefix   string
	instance string
}

func NewFanout(mgr *Manager, rdb *redis.Client, prefix string) *Fanout {
	return &Fanout{mgr: mgr, rdb: rdb, prefix: prefix, instance: uuid.NewString()}
}

func (f *Fanout) channel(id domain.BookingID) string {
	return f.prefix + "room:" + string(id)
}

// Broadcast delivers to the local group and publishes the frame for every
// other instance. The returned count covers local delivery only.
func (f *Fanout) Broadcast(ctx context.Context, id domain.BookingID, k Kind, except string, event string, data any) int {
	sent := f.mgr.Broadcast(id, k, except, event, data)
	f.publish(ctx, id, string(k), event, data)
	return sent
}

// BroadcastAll reaches both groups of the booking on every instance.
func (f *Fanout) BroadcastAll(ctx context.Context, id domain.BookingID, except string, event string, data any) int {
	sent := f.mgr.BroadcastAll(id, except, event, data)
	f.publish(ctx, id, "", event, data)
	return sent
}

func (f *Fanout) publish(ctx context.Context, id domain.BookingID, group string, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("module", "rooms").Str("event", event).Msg("fanout marshal failed")
		return
	}
	payload, err := json.Marshal(frame{
		Instance:  f.instance,
		BookingID: string(id),
		Group:     group,
		Event:     event,
		Data:      raw,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "rooms").Str("event", event).Msg("fanout marshal failed")
		return
	}
	if err := f.rdb.Publish(ctx, f.channel(id), payload).Err(); err != nil {
		log.Error().Err(err).Str("module", "rooms").Str("booking", string(id)).
			Str("event", event).Msg("fanout publish failed")
	}
}

// Run subscribes to every booking channel and delivers remote frames to the
// local rooms until the context ends.
func (f *Fanout) Run(ctx context.Context) error {
	sub := f.rdb.PSubscribe(ctx, f.prefix+"room:*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.deliver(msg.Payload)
		}
	}
}

func (f *Fanout) deliver(payload string) {
	var fr frame
	if err := json.Unmarshal([]byte(payload), &fr); err != nil {
		log.Warn().Err(err).Str("module", "rooms").Msg("bad fanout frame")
		return
	}
	if fr.Instance == f.instance {
		// Already delivered locally at publish time.
		return
	}
	id := domain.BookingID(fr.BookingID)
	if fr.Group == "" {
		f.mgr.BroadcastAll(id, "", fr.Event, fr.Data)
		return
	}
	f.mgr.Broadcast(id, Kind(fr.Group), "", fr.Event, fr.Data)
}
