package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/booking"
	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/ledger"
	"github.com/mentorlink/consult/internal/session"
	"github.com/mentorlink/consult/internal/token"
)

type Handlers struct {
	tokens   *token.Service
	bookings booking.Store
	ledger   *ledger.Service
	coord    *session.Coordinator
}

func NewHandlers(tokens *token.Service, bookings booking.Store, led *ledger.Service, coord *session.Coordinator) *Handlers {
	return &Handlers{tokens: tokens, bookings: bookings, ledger: led, coord: coord}
}

// MintJoinToken issues the short-lived session entry token for a booking the
// caller is a party to. The caller's role is derived from the booking, never
// from the request.
func (h *Handlers) MintJoinToken(c *gin.Context) {
	bookingID := domain.BookingID(c.Param("bookingID"))
	uid := identity(c)

	b, err := h.bookings.Get(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		log.Error().Err(err).Str("module", "http").Str("booking", string(bookingID)).Msg("booking load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if b.Status != domain.BookingConfirmed {
		c.JSON(http.StatusConflict, gin.H{"error": "booking not confirmed"})
		return
	}

	role, ok := b.RoleOf(uid)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this booking"})
		return
	}

	raw, err := h.tokens.MintJoinToken(b.ID, uid, role)
	if err != nil {
		log.Error().Err(err).Str("module", "http").Str("booking", string(bookingID)).Msg("token mint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": raw, "role": role})
}

// SessionLog returns the ledger record for a booking the caller belongs to.
func (h *Handlers) SessionLog(c *gin.Context) {
	bookingID := domain.BookingID(c.Param("bookingID"))
	uid := identity(c)

	b, err := h.bookings.Get(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		log.Error().Err(err).Str("module", "http").Str("booking", string(bookingID)).Msg("booking load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if _, ok := b.RoleOf(uid); !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this booking"})
		return
	}

	rec, err := h.ledger.Get(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no session record"})
			return
		}
		log.Error().Err(err).Str("module", "http").Str("booking", string(bookingID)).Msg("ledger read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// NoShowCheck classifies a booking whose window has elapsed. Admin-only and
// idempotent: an already-finalized record is left alone.
func (h *Handlers) NoShowCheck(c *gin.Context) {
	bookingID := domain.BookingID(c.Param("bookingID"))

	reason, classified, err := h.coord.MarkNoShow(c.Request.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, session.ErrSessionNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "booking not confirmed"})
		default:
			log.Error().Err(err).Str("module", "http").Str("booking", string(bookingID)).Msg("no-show check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"classified": classified, "reason": reason})
}
