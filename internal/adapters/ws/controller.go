package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/config"
	"github.com/mentorlink/consult/internal/gate"
	"github.com/mentorlink/consult/internal/session"
	"github.com/mentorlink/consult/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	cfg         *config.Config
	gate        *gate.Gate
	coord       *session.Coordinator
	presence    *store.Client
	hub         *hub
	joinLimiter *joinRateLimiter
}

func NewController(cfg *config.Config, g *gate.Gate, coord *session.Coordinator, presence *store.Client) *Controller {
	return &Controller{
		cfg:         cfg,
		gate:        g,
		coord:       coord,
		presence:    presence,
		hub:         newHub(),
		joinLimiter: newJoinRateLimiter(10, time.Minute),
	}
}

// HandleSession gates and upgrades one realtime connection. The gate runs
// before the upgrade; a refused credential never reaches any handler.
func (ctl *Controller) HandleSession(ctx context.Context, c *gin.Context) {
	identity, err := ctl.gate.Authenticate(c.Request.Context(), c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}

	conn := newConn(uuid.NewString(), identity.UserID, wsc)
	log.Info().Str("module", "ws").Str("conn", conn.id).
		Str("user", string(identity.UserID)).Msg("connection open")

	first := ctl.hub.add(conn)
	if err := ctl.presence.MarkOnline(ctx, conn.userID); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("user", string(conn.userID)).Msg("presence write failed")
	}
	if first {
		ctl.hub.broadcastPresence(session.EvOnline, conn.userID)
	}

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, conn)
}

// onDisconnect is the single cleanup path for every way a socket dies. It
// runs on a fresh context: the connection's own context is already cancelled
// by the time cleanup happens, and the ledger/presence writes still have to
// land.
func (ctl *Controller) onDisconnect(conn *conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ctl.coord.HandleDisconnect(ctx, conn)
	last := ctl.hub.remove(conn)
	if last {
		if err := ctl.presence.MarkOffline(ctx, conn.userID); err != nil {
			log.Error().Err(err).Str("module", "ws").Str("user", string(conn.userID)).Msg("presence delete failed")
		}
		ctl.hub.broadcastPresence(session.EvOffline, conn.userID)
	}
	conn.close()
	log.Info().Str("module", "ws").Str("conn", conn.id).Msg("connection closed")
}
