package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"ashare/internal/config"
	"ashare/internal/gather"
	"ashare/internal/gather/cn"
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

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing window")
	}

	src, err := store.OpenGorm(cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening market database")
	}
	defer src.Close()

	benchmarks := make([]string, 0, len(cfg.Report.Benchmarks))
	for _, b := range cfg.Report.Benchmarks {
		benchmarks = append(benchmarks, b.Code)
	}
	g := cn.NewSnapshotGatherer(src, store.NewParquetStore(cfg.Storage.DataDir), cn.SnapshotOptions{
		Range:            gather.DateRange{Start: start, End: end},
		DividendYears:    cfg.Backtest.Selection.DividendYears,
		Benchmarks:       benchmarks,
		Retry:            util.DefaultRetryPolicy,
		QueriesPerSecond: cfg.Database.QueriesPerSecond,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info().Str("gatherer", g.Name()).Str("data_dir", cfg.Storage.DataDir).Msg("starting")
	if err := g.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("snapshot failed")
	}
}
