package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/gamefloor/go/internal/apiconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	setupLogging(getEnv("LOG_LEVEL", "info"))

	config, err := loadConfig(getEnv("FLOOR_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	config.Events.Enabled = getEnvAsBool("FLOOR_EVENTS_ENABLED", config.Events.Enabled)

	apiConfig := apiconfig.NewConfigFromEnv()
	if err := apiConfig.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid floor service settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, config, apiConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up services")
	}
	defer services.Close()

	server := setupServer(services)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return services.Roster.Run(gctx, config.pollConfig()) })
	g.Go(func() error { return services.Floor.Run(gctx) })
	g.Go(func() error { return services.Hub.Start(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("floor_api", apiConfig.BaseURL).Msg("Floor server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Floor server stopped with error")
		return
	}
	log.Info().Msg("Floor server stopped")
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
