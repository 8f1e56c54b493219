// Package report turns a finished backtest into ledgers, statistics and an
// equity-curve page.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"ashare/internal/backtest"
	"ashare/internal/config"
	"ashare/internal/domain"
)

// BenchmarkSource supplies index closes by index code.
type BenchmarkSource interface {
	Benchmark(indexCode string) []domain.BenchmarkPoint
}

// Artifacts lists the files written by Generate. HTML is empty when the
// page is disabled.
type Artifacts struct {
	Trades string
	Daily  string
	HTML   string
}

// Generator writes report artifacts into the configured output directory.
type Generator struct {
	cfg config.Report
	log zerolog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg config.Report, log zerolog.Logger) *Generator {
	return &Generator{cfg: cfg, log: log.With().Str("component", "report").Logger()}
}

// Page assembles the chart data for res: the resampled strategy curve and
// every configured benchmark that has a base close on the first sample.
func (g *Generator) Page(res *backtest.Result, bench BenchmarkSource) Page {
	sampled, gran := Resample(res.Daily)
	p := Page{
		Title:       g.cfg.Prefix,
		Summary:     Summarize(res),
		Granularity: gran,
		Dates:       make([]string, len(sampled)),
		Strategy:    make([]float64, len(sampled)),
		Annual:      Annual(res.Daily),
	}
	dates := make([]time.Time, len(sampled))
	for i, rec := range sampled {
		dates[i] = rec.Date
		p.Dates[i] = rec.Date.Format(domain.DateLayout)
		p.Strategy[i] = rec.CumulativeReturnPct
	}

	if bench == nil {
		return p
	}
	for _, b := range g.cfg.Benchmarks {
		values, ok := BenchmarkReturns(dates, bench.Benchmark(b.Code))
		if !ok {
			g.log.Warn().Str("benchmark", b.Name).Str("code", b.Code).Msg("no base close, series omitted")
			continue
		}
		p.Benchmarks = append(p.Benchmarks, Series{Name: b.Name, Code: b.Code, Values: values})
	}
	return p
}

// Generate writes the trade ledger, the daily ledger and, unless disabled,
// the equity-curve page.
func (g *Generator) Generate(res *backtest.Result, bench BenchmarkSource) (Artifacts, error) {
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create report dir: %w", err)
	}

	var a Artifacts
	a.Trades = g.path("trade_records.csv")
	if err := writeFile(a.Trades, func(w io.Writer) error { return WriteTrades(w, res.Trades) }); err != nil {
		return a, err
	}
	g.log.Info().Str("path", a.Trades).Int("rows", len(res.Trades)).Msg("trade ledger written")

	a.Daily = g.path("daily_results.csv")
	if err := writeFile(a.Daily, func(w io.Writer) error { return WriteDaily(w, res.Daily) }); err != nil {
		return a, err
	}
	g.log.Info().Str("path", a.Daily).Int("rows", len(res.Daily)).Msg("daily ledger written")

	if g.cfg.DisableHTML || len(res.Daily) == 0 {
		return a, nil
	}
	page := g.Page(res, bench)
	a.HTML = g.path("equity_curve.html")
	if err := writeFile(a.HTML, func(w io.Writer) error { return RenderHTML(w, page) }); err != nil {
		return a, err
	}
	g.log.Info().Str("path", a.HTML).Str("granularity", page.Granularity.String()).
		Int("benchmarks", len(page.Benchmarks)).Msg("equity curve written")
	return a, nil
}

func (g *Generator) path(suffix string) string {
	return filepath.Join(g.cfg.OutputDir, g.cfg.Prefix+"_"+suffix)
}

func writeFile(path string, fill func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := fill(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
