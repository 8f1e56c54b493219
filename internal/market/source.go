// Package market provides the read-only, pre-loaded view of A-share market
// data that the simulation consumes, and the collaborator interface used to
// fill it.
package market

import (
	"context"
	"errors"
	"time"

	"ashare/internal/domain"
)

// Fatal preconditions of a run.
var (
	ErrNoCalendar   = errors.New("no trading days in range")
	ErrNoSecurities = errors.New("security directory is empty")
)

// Source is the external data collaborator. Implementations bulk-read a
// whole window per call; nothing here is called inside the daily loop.
type Source interface {
	// TradingDays returns the sessions in [start, end].
	TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)

	// Securities returns the full security directory.
	Securities(ctx context.Context) ([]domain.Security, error)

	// Quotes returns every daily quote in [start, end].
	Quotes(ctx context.Context, start, end time.Time) ([]domain.DailyQuote, error)

	// Dividends returns dividend events dated in [start, end].
	Dividends(ctx context.Context, start, end time.Time) ([]domain.DividendRecord, error)

	// Benchmark returns the closes of an index in [start, end], ordered by date.
	Benchmark(ctx context.Context, indexCode string, start, end time.Time) ([]domain.BenchmarkPoint, error)
}
