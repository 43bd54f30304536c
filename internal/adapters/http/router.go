package http

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mentorlink/consult/internal/adapters/ws"
	"github.com/mentorlink/consult/internal/config"
	"github.com/mentorlink/consult/internal/token"
)

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers, wsCtl *ws.Controller, tokens *token.Service) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/ws/session", func(c *gin.Context) {
		wsCtl.HandleSession(ctx, c)
	})

	sessions := r.Group("/sessions", BearerAuth(tokens))
	sessions.POST("/:bookingID/join-token", h.MintJoinToken)
	sessions.GET("/:bookingID/log", h.SessionLog)

	admin := r.Group("/admin", AdminAuth(cfg.AdminKey))
	admin.POST("/bookings/:bookingID/no-show", h.NoShowCheck)

	return r
}
