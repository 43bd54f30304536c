package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	router "github.com/mentorlink/consult/internal/adapters/http"
	"github.com/mentorlink/consult/internal/adapters/ws"
	"github.com/mentorlink/consult/internal/booking"
	"github.com/mentorlink/consult/internal/config"
	"github.com/mentorlink/consult/internal/gate"
	"github.com/mentorlink/consult/internal/ledger"
	"github.com/mentorlink/consult/internal/rooms"
	"github.com/mentorlink/consult/internal/session"
	"github.com/mentorlink/consult/internal/store"
	"github.com/mentorlink/consult/internal/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := ledger.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate")
	}

	shared, err := store.New(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() {
		if err := shared.Close(); err != nil {
			log.Error().Err(err).Msg("redis close")
		}
	}()

	tokens := token.NewService(cfg.JWT)
	bookings := booking.NewGormStore(db)
	led := ledger.NewService(ledger.NewGormRepository(db))
	g := gate.New(tokens, gate.NewGormUserStore(db), shared)

	mgr := rooms.NewManager()
	fan := rooms.NewFanout(mgr, shared.Redis(), shared.Prefix())
	go func() {
		if err := fan.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("room fanout stopped")
		}
	}()

	coord := session.NewCoordinator(mgr, fan, tokens, bookings, led, shared)
	wsCtl := ws.NewController(cfg, g, coord, shared)
	handlers := router.NewHandlers(tokens, bookings, led, coord)

	r := router.SetupRouter(ctx, cfg, handlers, wsCtl, tokens)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("consult session server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited gracefully")
}
