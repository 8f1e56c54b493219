// Package store holds the market data sources a backtest loads from and the
// repository finished runs are persisted to.
package store

import (
	"context"
	"errors"
	"time"

	"ashare/internal/domain"
	"ashare/internal/market"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("store: not found")

// Compile-time interface checks.
var (
	_ market.Source = (*GormSource)(nil)
	_ market.Source = (*ParquetStore)(nil)
	_ market.Source = (*MemorySource)(nil)
	_ RunStore      = (*SQLiteStore)(nil)
)

// RunSummary is the header row of a persisted backtest.
type RunSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"createdAt"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	InitialCapital   float64   `json:"initialCapital"`
	FinalAsset       float64   `json:"finalAsset"`
	TotalReturn      float64   `json:"totalReturn"`
	AnnualizedReturn float64   `json:"annualizedReturn"`
	MaxDrawdown      float64   `json:"maxDrawdown"`
	Sharpe           float64   `json:"sharpe"`
	TradeCount       int       `json:"tradeCount"`
	Config           string    `json:"config,omitempty"` // YAML of the parameters used
}

// Run is a complete persisted backtest.
type Run struct {
	RunSummary
	Trades []domain.Trade
	Daily  []domain.DailyRecord
	Annual []domain.AnnualStats
}

// RunStore persists finished backtests and reads them back.
type RunStore interface {
	// SaveRun stores run and returns its ID, assigning one when empty.
	SaveRun(ctx context.Context, run *Run) (string, error)

	// ListRuns returns the most recent runs first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// GetRun returns the header of one run or ErrNotFound.
	GetRun(ctx context.Context, id string) (*RunSummary, error)

	RunTrades(ctx context.Context, id string) ([]domain.Trade, error)
	RunDaily(ctx context.Context, id string) ([]domain.DailyRecord, error)
	RunAnnual(ctx context.Context, id string) ([]domain.AnnualStats, error)

	Close() error
}

// inWindow reports whether t falls in [start, end].
func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
