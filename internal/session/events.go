package session

import (
	"encoding/json"
	"time"

	"github.com/mentorlink/consult/internal/domain"
)

// Wire event names. Client-to-server operations are acked; server-to-client
// events are fire-and-forget.
const (
	EvJoin  = "session:join"
	EvAdmit = "session:admit"
	EvLeave = "session:leave"
	EvEnd   = "session:end"
	EvQoS   = "session:qos"

	EvOffer  = "signal:offer"
	EvAnswer = "signal:answer"
	EvICE    = "signal:ice"

	EvJoined            = "session:joined"
	EvWaiting           = "session:waiting"
	EvAdmitted          = "session:admitted"
	EvReady             = "session:ready"
	EvParticipantJoined = "session:participant-joined"
	EvParticipantLeft   = "session:participant-left"
	EvEnded             = "session:ended"

	EvOnline  = "user:online"
	EvOffline = "user:offline"
)

type JoinedPayload struct {
	BookingID        string     `json:"bookingId"`
	Role             string     `json:"role"`
	Admitted         bool       `json:"admitted"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
}

type WaitingPayload struct {
	BookingID string `json:"bookingId"`
}

type AdmittedPayload struct {
	BookingID        string     `json:"bookingId"`
	AdmittedAt       time.Time  `json:"admittedAt"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
}

type ReadyPayload struct {
	BookingID string `json:"bookingId"`
}

type ParticipantPayload struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
}

type EndedPayload struct {
	BookingID string `json:"bookingId"`
	EndedBy   string `json:"endedBy"`
}

// SignalSender attributes a relayed payload so the receiver can tell which
// peer it came from.
type SignalSender struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// SignalPayload wraps an opaque negotiation message. Data passes through
// unmodified.
type SignalPayload struct {
	BookingID string          `json:"bookingId"`
	From      SignalSender    `json:"from"`
	Data      json.RawMessage `json:"data"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

// AdmitResult is the ack payload of a successful admission.
type AdmitResult struct {
	BookingID        string     `json:"bookingId"`
	AdmittedAt       time.Time  `json:"admittedAt"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	Promoted         int        `json:"promoted"`
}

// Peer is one authenticated realtime connection as the coordinator sees it.
// The websocket adapter implements it for real sockets; tests use a fake.
type Peer interface {
	ID() string
	UserID() domain.UserID
	Send(event string, data any) error
}
