package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/npezzotti/chat-relay/internal/api"
	"github.com/npezzotti/chat-relay/internal/config"
	"github.com/npezzotti/chat-relay/internal/identity"
	"github.com/npezzotti/chat-relay/internal/relay"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/store"
)

var (
	configPath string
	debug      bool
	pretty     bool
)

func main() {
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&pretty, "pretty", false, "human-friendly log output")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := log.Logger

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	pgStore, err := store.NewPgStore(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer func() {
		if err := pgStore.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()

	idp := identity.NewJWTProvider(cfg.SigningKey)

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)

	relayServer := relay.NewServer(logger, pgStore, idp, statsUpdater, cfg)
	srv := api.NewServer(mux, logger, relayServer, pgStore, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server")
	}

	shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server shutdown")
	}

	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatal().Err(err).Msg("relay shutdown")
	}

	logger.Info().Msg("shutdown complete")
}
