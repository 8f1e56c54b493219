// Package backtest drives the daily simulation loop over a pre-loaded
// market view.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ashare/internal/config"
	"ashare/internal/domain"
	"ashare/internal/engine"
	"ashare/internal/market"
	"ashare/internal/strategy"
)

// Result holds the output streams of a backtest run.
type Result struct {
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Trades         []domain.Trade
	Daily          []domain.DailyRecord
	Holdings       []domain.Holding // open at the end of the run
	IdleDays       int
}

// FinalAsset returns the last recorded total asset, or the initial capital
// for an empty run.
func (r *Result) FinalAsset() float64 {
	if len(r.Daily) == 0 {
		return r.InitialCapital
	}
	return r.Daily[len(r.Daily)-1].TotalAsset
}

// Backtester replays the calendar of a market view through selection,
// ranking and execution.
type Backtester struct {
	cfg    config.Backtest
	view   *market.View
	picker *strategy.Picker
	log    zerolog.Logger
}

// NewBacktester creates a Backtester over view with the given parameters.
func NewBacktester(cfg config.Backtest, view *market.View, log zerolog.Logger) *Backtester {
	return &Backtester{
		cfg:    cfg,
		view:   view,
		picker: strategy.NewPicker(cfg),
		log:    log.With().Str("component", "backtest").Logger(),
	}
}

// Run executes the simulation. Each call starts from a fresh portfolio, so
// repeated runs over the same view produce identical results. The context is
// checked between sessions.
func (bt *Backtester) Run(ctx context.Context) (*Result, error) {
	if bt.view == nil || bt.view.Calendar().Len() == 0 {
		return nil, market.ErrNoCalendar
	}
	if bt.view.SecurityCount() == 0 {
		return nil, market.ErrNoSecurities
	}

	cal := bt.view.Calendar()
	eng := engine.NewEngine(bt.cfg, bt.log)
	res := &Result{
		Start:          cal.First(),
		End:            cal.Last(),
		InitialCapital: bt.cfg.InitialCapital,
		Daily:          make([]domain.DailyRecord, 0, cal.Len()),
	}

	bt.log.Info().
		Str("start", res.Start.Format(domain.DateLayout)).
		Str("end", res.End.Format(domain.DateLayout)).
		Int("sessions", cal.Len()).
		Float64("capital", bt.cfg.InitialCapital).
		Msg("backtest started")

	for i := 0; i < cal.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest aborted at session %d: %w", i, err)
		}
		day := cal.Day(i)

		if len(bt.view.AllQuotesAt(i)) == 0 {
			bt.log.Warn().Str("date", day.Format(domain.DateLayout)).Msg("no data")
			res.IdleDays++
		} else {
			targets, rej := bt.picker.Targets(bt.view, day)
			codes := make([]string, len(targets))
			for j, t := range targets {
				codes[j] = t.Quote.Code
			}
			trades := eng.Step(bt.view, i, day, codes)
			res.Trades = append(res.Trades, trades...)

			bt.log.Debug().
				Str("date", day.Format(domain.DateLayout)).
				Int("targets", len(targets)).
				Int("rejected", rej.Total()).
				Interface("reasons", rej.Map()).
				Int("trades", len(trades)).
				Msg("session")
		}

		rec := eng.Snapshot(day)
		res.Daily = append(res.Daily, rec)

		if i == cal.Len()-1 || cal.Day(i+1).Year() != day.Year() {
			bt.log.Info().
				Int("year", day.Year()).
				Float64("total_asset", rec.TotalAsset).
				Float64("return_pct", rec.CumulativeReturnPct).
				Int("trades", len(res.Trades)).
				Msg("year complete")
		}
	}

	res.Holdings = eng.Portfolio().Holdings()
	bt.log.Info().
		Int("trades", len(res.Trades)).
		Int("idle_days", res.IdleDays).
		Float64("final_asset", res.FinalAsset()).
		Msg("backtest finished")
	return res, nil
}
