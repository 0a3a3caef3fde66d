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

	"github.com/nasty-codes-software/resonance/internal/adapters/auth"
	router "github.com/nasty-codes-software/resonance/internal/adapters/http"
	"github.com/nasty-codes-software/resonance/internal/adapters/store"
	"github.com/nasty-codes-software/resonance/internal/app"
	"github.com/nasty-codes-software/resonance/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	if err := st.Seed(); err != nil {
		log.Fatal().Err(err).Msg("failed to seed channels")
	}

	identity, err := store.NewCachedIdentity(st, cfg.ProfileCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build profile cache")
	}

	tokens := auth.NewTokenService(cfg.Secret, cfg.TokenTTL)

	hub := app.NewHub(app.Deps{
		Identity:   identity,
		Social:     st,
		Messages:   st,
		Voice:      st,
		Authz:      st,
		Tokens:     tokens,
		ICEServers: cfg.WebRTCICEServers(),
	})

	r := router.SetupRouter(ctx, cfg, hub, st, tokens)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("resonance server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
