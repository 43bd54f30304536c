// Package gate authenticates every inbound realtime connection before any
// room operation is permitted. A connection that fails here is refused
// outright; no partial state is created.
package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/store"
	"github.com/mentorlink/consult/internal/token"
)

var ErrUnauthorized = errors.New("UNAUTHORIZED")

type Gate struct {
	tokens *token.Service
	users  UserStore
	store  *store.Client
}

func New(tokens *token.Service, users UserStore, st *store.Client) *Gate {
	return &Gate{tokens: tokens, users: users, store: st}
}

// credential extracts the bearer credential from the handshake. Priority:
// Authorization header, then the handshake auth field, then the plain query
// parameter (browsers cannot set headers on a websocket upgrade).
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if v := r.URL.Query().Get("auth"); v != "" {
		return v
	}
	return r.URL.Query().Get("token")
}

// Authenticate verifies the handshake credential: signature and claims,
// revocation list, account status. Every failure collapses to
// ErrUnauthorized; callers get no oracle for which check tripped.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request) (*token.Identity, error) {
	raw := credential(r)
	if raw == "" {
		return nil, ErrUnauthorized
	}

	id, err := g.tokens.VerifyAccessToken(raw)
	if err != nil {
		return nil, ErrUnauthorized
	}

	revoked, err := g.store.Revoked(ctx, id.TokenID)
	if err != nil {
		// Fail closed: an unreachable revocation list must not admit anyone.
		log.Error().Err(err).Str("module", "gate").Msg("revocation check failed")
		return nil, ErrUnauthorized
	}
	if revoked {
		return nil, ErrUnauthorized
	}

	u, err := g.users.Get(ctx, id.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			log.Error().Err(err).Str("module", "gate").Str("user", string(id.UserID)).Msg("user lookup failed")
		}
		return nil, ErrUnauthorized
	}
	if u.Blocked {
		return nil, ErrUnauthorized
	}

	return id, nil
}
