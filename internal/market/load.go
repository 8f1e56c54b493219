package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ashare/internal/domain"
	"ashare/internal/util"
)

// LoadOptions describes the window and extras to pre-fetch.
type LoadOptions struct {
	Start, End time.Time

	// DividendYears is how many calendar years of dividend history before
	// Start are needed for the continuity check on the first day.
	DividendYears int

	// Benchmarks lists index codes to load for reporting. A benchmark that
	// fails to load is logged and left out.
	Benchmarks []string

	Retry util.RetryPolicy
}

// Load bulk-reads everything a run needs from src. The calendar and the
// security directory are fetched first because an empty result for either
// aborts the run. Quotes, dividends and benchmarks are then fetched
// concurrently.
func Load(ctx context.Context, src Source, opts LoadOptions, log zerolog.Logger) (*View, error) {
	log = log.With().Str("component", "market").Logger()
	started := time.Now()

	var days []time.Time
	err := util.Retry(ctx, opts.Retry, log, "trading days", func(ctx context.Context) error {
		var err error
		days, err = src.TradingDays(ctx, opts.Start, opts.End)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading trading days: %w", err)
	}
	cal := util.NewTradingCalendar(days)
	if cal.Len() == 0 {
		return nil, fmt.Errorf("%s to %s: %w",
			opts.Start.Format(domain.DateLayout), opts.End.Format(domain.DateLayout), ErrNoCalendar)
	}

	var securities []domain.Security
	err = util.Retry(ctx, opts.Retry, log, "securities", func(ctx context.Context) error {
		var err error
		securities, err = src.Securities(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading securities: %w", err)
	}
	if len(securities) == 0 {
		return nil, ErrNoSecurities
	}

	var (
		quotes     []domain.DailyQuote
		dividends  []domain.DividendRecord
		benchmarks = make([][]domain.BenchmarkPoint, len(opts.Benchmarks))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return util.Retry(gctx, opts.Retry, log, "quotes", func(ctx context.Context) error {
			var err error
			quotes, err = src.Quotes(ctx, cal.First(), cal.Last())
			if err != nil {
				return fmt.Errorf("loading quotes: %w", err)
			}
			return nil
		})
	})
	g.Go(func() error {
		from := time.Date(opts.Start.Year()-opts.DividendYears, 1, 1, 0, 0, 0, 0, time.UTC)
		return util.Retry(gctx, opts.Retry, log, "dividends", func(ctx context.Context) error {
			var err error
			dividends, err = src.Dividends(ctx, from, cal.Last())
			if err != nil {
				return fmt.Errorf("loading dividends: %w", err)
			}
			return nil
		})
	})
	for i, code := range opts.Benchmarks {
		g.Go(func() error {
			points, err := src.Benchmark(gctx, code, cal.First(), cal.Last())
			if err != nil {
				log.Warn().Err(err).Str("index", code).Msg("benchmark unavailable")
				return nil
			}
			benchmarks[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := NewView(cal, securities, quotes, NewDividendIndex(dividends))
	for i, code := range opts.Benchmarks {
		if len(benchmarks[i]) > 0 {
			view.SetBenchmark(code, benchmarks[i])
		}
	}

	log.Info().
		Int("days", cal.Len()).
		Int("securities", len(securities)).
		Int("quotes", len(quotes)).
		Int("dividends", len(dividends)).
		Int("dropped", view.Dropped()).
		Dur("elapsed", time.Since(started)).
		Msg("market data loaded")
	return view, nil
}
