package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ashare/internal/config"
	"ashare/internal/resultapi"
	"ashare/internal/store"
	"ashare/internal/util"
)

func main() {
	cfgPath := "config/ashare.yaml"
	if p := os.Getenv("ASHARE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	logger := util.NewLogger(util.LogConfig{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	util.SetDefault(logger)

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening run store")
	}
	defer runs.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           resultapi.NewServer(runs, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("results API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down results API")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
