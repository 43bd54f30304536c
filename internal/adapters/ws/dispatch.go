package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/ledger"
	"github.com/mentorlink/consult/internal/session"
)

type bookingPayload struct {
	BookingID string `json:"bookingId"`
}

type joinPayload struct {
	Token string `json:"token"`
}

type signalPayload struct {
	BookingID string          `json:"bookingId"`
	Data      json.RawMessage `json:"data"`
}

type qosPayload struct {
	BookingID string        `json:"bookingId"`
	Stats     ledger.Sample `json:"stats"`
}

// handleMessage dispatches one inbound frame. The event set is closed;
// anything else is nacked, never silently absorbed into a handler. A panic
// in a handler is caught here so a poisoned message cannot take down the
// pump; the caller gets the generic failure code for the operation.
func (ctl *Controller) handleMessage(ctx context.Context, c *conn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", c.id).Msg("bad frame")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("module", "ws").Str("event", env.Event).Msg("handler panic")
			switch env.Event {
			case session.EvJoin:
				c.ack(env.Seq, false, session.ErrJoinFailed.Error(), nil)
			case session.EvAdmit:
				c.ack(env.Seq, false, session.ErrAdmitFailed.Error(), nil)
			}
		}
	}()

	switch env.Event {
	case session.EvJoin:
		var p joinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.ack(env.Seq, false, session.ErrUnauthorized.Error(), nil)
			return
		}
		if !ctl.joinLimiter.Allow(c.userID) {
			c.ack(env.Seq, false, "RATE_LIMITED", nil)
			return
		}
		res, err := ctl.coord.Join(ctx, c, p.Token)
		if err != nil {
			c.ack(env.Seq, false, err.Error(), nil)
			return
		}
		c.ack(env.Seq, true, "", res)

	case session.EvAdmit:
		var p bookingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.ack(env.Seq, false, session.ErrNotJoined.Error(), nil)
			return
		}
		res, err := ctl.coord.Admit(ctx, c, domain.BookingID(p.BookingID))
		if err != nil {
			c.ack(env.Seq, false, err.Error(), nil)
			return
		}
		c.ack(env.Seq, true, "", res)

	case session.EvLeave:
		var p bookingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.ack(env.Seq, false, session.ErrNotJoined.Error(), nil)
			return
		}
		if err := ctl.coord.Leave(ctx, c, domain.BookingID(p.BookingID)); err != nil {
			c.ack(env.Seq, false, err.Error(), nil)
			return
		}
		c.ack(env.Seq, true, "", nil)

	case session.EvEnd:
		var p bookingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.ack(env.Seq, false, session.ErrNotJoined.Error(), nil)
			return
		}
		if err := ctl.coord.End(ctx, c, domain.BookingID(p.BookingID)); err != nil {
			c.ack(env.Seq, false, err.Error(), nil)
			return
		}
		c.ack(env.Seq, true, "", nil)

	case session.EvOffer, session.EvAnswer, session.EvICE:
		// Fire-and-forget: a malformed or mistimed signal is dropped, never
		// an error back to the sender.
		var p signalPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug().Err(err).Str("module", "ws").Str("event", env.Event).Msg("bad signal payload")
			return
		}
		ctl.coord.Relay(ctx, c, env.Event, domain.BookingID(p.BookingID), p.Data)

	case session.EvQoS:
		var p qosPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug().Err(err).Str("module", "ws").Msg("bad qos payload")
			return
		}
		ctl.coord.RecordQoS(ctx, c, domain.BookingID(p.BookingID), p.Stats)

	case "ping":
		_ = c.Send("pong", nil)

	default:
		log.Warn().Str("module", "ws").Str("event", env.Event).Msg("unknown event")
		c.ack(env.Seq, false, "UNKNOWN_EVENT", nil)
	}
}
