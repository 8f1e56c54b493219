package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ashare/internal/backtest"
	"ashare/internal/config"
	"ashare/internal/market"
	"ashare/internal/report"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	src, closeSrc, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		return err
	}
	codes := make([]string, 0, len(cfg.Report.Benchmarks))
	for _, b := range cfg.Report.Benchmarks {
		codes = append(codes, b.Code)
	}
	view, err := market.Load(ctx, src, market.LoadOptions{
		Start:         start,
		End:           end,
		DividendYears: cfg.Backtest.Selection.DividendYears,
		Benchmarks:    codes,
		Retry:         util.DefaultRetryPolicy,
	}, logger)
	if err != nil {
		return err
	}

	res, err := backtest.NewBacktester(cfg.Backtest, view, logger).Run(ctx)
	if err != nil {
		return err
	}

	gen := report.NewGenerator(cfg.Report, logger)
	arts, err := gen.Generate(res, view)
	if err != nil {
		return err
	}
	report.PrintSummary(os.Stdout, report.Summarize(res), report.Annual(res.Daily))
	fmt.Printf("trades: %s\ndaily:  %s\n", arts.Trades, arts.Daily)
	if arts.HTML != "" {
		fmt.Printf("chart:  %s\n", arts.HTML)
	}

	if !cfg.Report.Persist {
		return nil
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer runs.Close()
	rec, err := report.RunRecord(cfg.Report.Prefix, res, cfg.Backtest)
	if err != nil {
		return err
	}
	id, err := runs.SaveRun(ctx, rec)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	logger.Info().Str("run_id", id).Str("path", cfg.Storage.SQLitePath).Msg("run persisted")
	return nil
}

// openSource returns the market source selected by backtest.source and a
// func releasing it.
func openSource(cfg *config.Config, logger zerolog.Logger) (market.Source, func(), error) {
	switch cfg.Backtest.Source {
	case "parquet":
		return store.NewParquetStore(cfg.Storage.DataDir), func() {}, nil
	default:
		src, err := store.OpenGorm(cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {
			if err := src.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing market database")
			}
		}, nil
	}
}
