package session

import "errors"

// Operation errors carry the stable machine-readable code in their message;
// the websocket adapter surfaces it verbatim in the ack. None of these crash
// a connection.
var (
	ErrUnauthorized    = errors.New("UNAUTHORIZED")
	ErrAccessDenied    = errors.New("ACCESS_DENIED")
	ErrRoleMismatch    = errors.New("ROLE_MISMATCH")
	ErrBookingNotFound = errors.New("BOOKING_NOT_FOUND")
	ErrSessionNotReady = errors.New("SESSION_NOT_READY")
	ErrWindowClosed    = errors.New("SESSION_WINDOW_CLOSED")
	ErrNotJoined       = errors.New("SESSION_NOT_JOINED")
	ErrMentorOnly      = errors.New("MENTOR_ONLY")
	ErrJoinFailed      = errors.New("SESSION_JOIN_FAILED")
	ErrAdmitFailed     = errors.New("SESSION_ADMIT_FAILED")
)
