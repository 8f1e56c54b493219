package store

import (
	"context"
	"time"

	"ashare/internal/domain"
)

// MemorySource serves market data held in memory. Reads filter by window
// and return copies.
type MemorySource struct {
	Days            []time.Time
	SecurityList    []domain.Security
	QuoteList       []domain.DailyQuote
	DividendList    []domain.DividendRecord
	BenchmarkCloses map[string][]domain.BenchmarkPoint
}

// TradingDays returns the sessions in [start, end].
func (m *MemorySource) TradingDays(_ context.Context, start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range m.Days {
		if inWindow(d, start, end) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Securities returns the security directory.
func (m *MemorySource) Securities(context.Context) ([]domain.Security, error) {
	return append([]domain.Security(nil), m.SecurityList...), nil
}

// Quotes returns the quotes dated in [start, end].
func (m *MemorySource) Quotes(_ context.Context, start, end time.Time) ([]domain.DailyQuote, error) {
	var out []domain.DailyQuote
	for _, q := range m.QuoteList {
		if inWindow(q.Date, start, end) {
			out = append(out, q)
		}
	}
	return out, nil
}

// Dividends returns dividend events dated in [start, end].
func (m *MemorySource) Dividends(_ context.Context, start, end time.Time) ([]domain.DividendRecord, error) {
	var out []domain.DividendRecord
	for _, d := range m.DividendList {
		if inWindow(d.Date, start, end) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Benchmark returns index closes dated in [start, end].
func (m *MemorySource) Benchmark(_ context.Context, indexCode string, start, end time.Time) ([]domain.BenchmarkPoint, error) {
	var out []domain.BenchmarkPoint
	for _, p := range m.BenchmarkCloses[indexCode] {
		if inWindow(p.Date, start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}
