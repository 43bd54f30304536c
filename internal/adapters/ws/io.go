package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *conn) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *conn) {
	defer func() {
		cancel()
		ctl.onDisconnect(c)
	}()

	c.ws.SetReadLimit(ctl.cfg.ReadLimit)
	readWait := ctl.cfg.PingPeriod + writeWait
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		// A live pong is as good as a keepalive for presence purposes.
		if err := ctl.presence.MarkOnline(ctx, c.userID); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("user", string(c.userID)).Msg("presence refresh failed")
		}
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "ws").Str("conn", c.id).Msg("readPump read error")
				}
				return
			}
			_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
			ctl.handleMessage(ctx, c, data)
		}
	}
}
