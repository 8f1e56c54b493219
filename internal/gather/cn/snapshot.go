// Package cn gathers China A-share market data into local snapshots.
package cn

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ashare/internal/domain"
	"ashare/internal/gather"
	"ashare/internal/market"
	"ashare/internal/store"
	"ashare/internal/util"
)

var _ gather.Gatherer = (*SnapshotGatherer)(nil)

// SnapshotOptions selects what a snapshot covers.
type SnapshotOptions struct {
	Range gather.DateRange

	// DividendYears extends the dividend export this many calendar years
	// before Range.Start.
	DividendYears int

	Benchmarks []string
	Retry      util.RetryPolicy

	// Parallel bounds concurrent yearly quote exports. Zero means 2.
	Parallel int

	// QueriesPerSecond throttles reads against the source. Zero means
	// unlimited.
	QueriesPerSecond float64
}

// SnapshotStats counts what the last Run exported.
type SnapshotStats struct {
	Sessions   int
	Securities int
	Quotes     int
	Dividends  int
	Benchmarks int
	Years      []int
}

// SnapshotGatherer copies a market.Source into a ParquetStore so backtests
// can run without the database.
type SnapshotGatherer struct {
	src   market.Source
	dst   *store.ParquetStore
	opts  SnapshotOptions
	log   zerolog.Logger
	limit *rate.Limiter
	stats SnapshotStats
}

// NewSnapshotGatherer creates a SnapshotGatherer.
func NewSnapshotGatherer(src market.Source, dst *store.ParquetStore, opts SnapshotOptions, log zerolog.Logger) *SnapshotGatherer {
	if opts.Parallel <= 0 {
		opts.Parallel = 2
	}
	limit := rate.NewLimiter(rate.Inf, 1)
	if opts.QueriesPerSecond > 0 {
		limit = rate.NewLimiter(rate.Limit(opts.QueriesPerSecond), 1)
	}
	return &SnapshotGatherer{
		src:   src,
		dst:   dst,
		opts:  opts,
		log:   log.With().Str("component", "snapshot").Logger(),
		limit: limit,
	}
}

// Name returns the gatherer identifier.
func (g *SnapshotGatherer) Name() string { return "cn-snapshot" }

// Stats returns the counts of the last successful Run.
func (g *SnapshotGatherer) Stats() SnapshotStats { return g.stats }

// Run exports the calendar and security directory, then quotes year by
// year, dividends and benchmarks concurrently. A benchmark that fails is
// logged and skipped.
func (g *SnapshotGatherer) Run(ctx context.Context) error {
	r := g.opts.Range
	if !r.Valid() {
		return fmt.Errorf("snapshot: invalid range %s to %s",
			r.Start.Format(domain.DateLayout), r.End.Format(domain.DateLayout))
	}
	started := time.Now()
	var stats SnapshotStats

	var days []time.Time
	if err := g.fetch(ctx, "trading days", func(ctx context.Context) (err error) {
		days, err = g.src.TradingDays(ctx, r.Start, r.End)
		return err
	}); err != nil {
		return err
	}
	if len(days) == 0 {
		return fmt.Errorf("snapshot: %w", market.ErrNoCalendar)
	}
	if err := g.dst.WriteCalendar(days); err != nil {
		return err
	}
	stats.Sessions = len(days)

	var secs []domain.Security
	if err := g.fetch(ctx, "securities", func(ctx context.Context) (err error) {
		secs, err = g.src.Securities(ctx)
		return err
	}); err != nil {
		return err
	}
	if len(secs) == 0 {
		return fmt.Errorf("snapshot: %w", market.ErrNoSecurities)
	}
	if err := g.dst.WriteSecurities(secs); err != nil {
		return err
	}
	stats.Securities = len(secs)

	years := r.Years()
	quoteCounts := make([]int, len(years))
	g2, gctx := errgroup.WithContext(ctx)
	g2.SetLimit(g.opts.Parallel)
	for i, year := range years {
		g2.Go(func() error {
			part := r.Clip(year)
			var quotes []domain.DailyQuote
			if err := g.fetch(gctx, fmt.Sprintf("quotes %d", year), func(ctx context.Context) (err error) {
				quotes, err = g.src.Quotes(ctx, part.Start, part.End)
				return err
			}); err != nil {
				return err
			}
			if _, err := g.dst.WriteQuotes(quotes); err != nil {
				return err
			}
			quoteCounts[i] = len(quotes)
			g.log.Info().Int("year", year).Int("quotes", len(quotes)).Msg("quotes exported")
			return nil
		})
	}
	g2.Go(func() error {
		from := time.Date(r.Start.Year()-g.opts.DividendYears, 1, 1, 0, 0, 0, 0, time.UTC)
		var divs []domain.DividendRecord
		if err := g.fetch(gctx, "dividends", func(ctx context.Context) (err error) {
			divs, err = g.src.Dividends(ctx, from, r.End)
			return err
		}); err != nil {
			return err
		}
		stats.Dividends = len(divs)
		return g.dst.WriteDividends(divs)
	})
	if err := g2.Wait(); err != nil {
		return err
	}

	for _, code := range g.opts.Benchmarks {
		var pts []domain.BenchmarkPoint
		err := g.fetch(ctx, "benchmark "+code, func(ctx context.Context) (err error) {
			pts, err = g.src.Benchmark(ctx, code, r.Start, r.End)
			return err
		})
		if err == nil {
			err = g.dst.WriteBenchmark(code, pts)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.log.Warn().Err(err).Str("index", code).Msg("benchmark skipped")
			continue
		}
		stats.Benchmarks++
	}

	for _, n := range quoteCounts {
		stats.Quotes += n
	}
	stats.Years = years
	g.stats = stats
	g.log.Info().
		Int("sessions", stats.Sessions).
		Int("securities", stats.Securities).
		Int("quotes", stats.Quotes).
		Int("dividends", stats.Dividends).
		Int("benchmarks", stats.Benchmarks).
		Dur("elapsed", time.Since(started)).
		Msg("snapshot complete")
	return nil
}

func (g *SnapshotGatherer) fetch(ctx context.Context, op string, fn func(context.Context) error) error {
	err := util.Retry(ctx, g.opts.Retry, g.log, op, func(ctx context.Context) error {
		if err := g.limit.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		return fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", op, err)
	}
	return nil
}
