package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/one-word-story/internal/adapters/http"
	"github.com/dkeye/one-word-story/internal/app"
	"github.com/dkeye/one-word-story/internal/app/orch"
	"github.com/dkeye/one-word-story/internal/config"
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
)

func roomTemplate(cfg *config.Config, sink core.EventSink) core.RoomConfig {
	return core.RoomConfig{
		TurnTimeout:     cfg.Game.TurnTimeout(),
		MaxSkips:        cfg.Game.MaxSkipsBeforeRemoval,
		ReconnectGrace:  cfg.Game.ReconnectGrace(),
		IdleTimeout:     cfg.Game.IdleRoomTimeout(),
		MinParticipants: cfg.Game.MinParticipantsToStart,
		MaxParticipants: cfg.Game.MaxParticipants,
		MaxWords:        cfg.Game.MaxWords,
		Words: domain.WordPolicy{
			MaxLength:                cfg.Word.MaxLength,
			AllowHyphen:              cfg.Word.AllowHyphen,
			AllowApostrophe:          cfg.Word.AllowApostrophe,
			AllowTrailingPunctuation: cfg.Word.AllowTrailingPunctuation,
		},
		Banned: cfg.Word.Banned,
		Clock:  core.SystemClock(),
		Sink:   sink,
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	sink := app.NewLogSink()
	manager := app.NewRoomManager(ctx, roomTemplate(cfg, sink))
	reg := app.NewRegistry()

	o := &orch.Orchestrator{
		Registry:   reg,
		Rooms:      manager,
		AutoCreate: cfg.Game.AutoCreateRooms,
	}
	manager.SetObserver(o)

	r := router.SetupRouter(ctx, cfg, o, sink)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("one-word-story server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	manager.Shutdown()
	log.Info().Msg("Server exited gracefully")
}
