package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare/internal/domain"
)

func openRuns(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(created time.Time) *Run {
	return &Run{
		RunSummary: RunSummary{
			Name:           "dividend_value",
			CreatedAt:      created,
			Start:          d(2024, 1, 2),
			End:            d(2024, 1, 3),
			InitialCapital: 1_000_000,
			FinalAsset:     1_001_000,
			TotalReturn:    0.1,
			TradeCount:     2,
			Config:         "top_k: 10\n",
		},
		Trades: []domain.Trade{
			{Date: d(2024, 1, 2), Code: "sh.600000", Name: "浦发银行", Action: domain.ActionBuy, Price: 7.2,
				Shares: 1300, Amount: 9360, Fee: 5.19, ResultingShares: 1300, ResultingCash: 990634.81, Reason: "target"},
			{Date: d(2024, 1, 3), Code: "sh.600000", Name: "浦发银行", Action: domain.ActionSellAll, Price: 6.4,
				Shares: 1300, Amount: 8320, Fee: 13.49, ResultingShares: 0, ResultingCash: 998941.32, Reason: "stop-loss: pnl -11.11%"},
		},
		Daily: []domain.DailyRecord{
			{Date: d(2024, 1, 2), Cash: 990634.81, PositionValue: 9360, TotalAsset: 999994.81, CumulativeReturnPct: -0.0005},
			{Date: d(2024, 1, 3), Cash: 998941.32, TotalAsset: 998941.32, CumulativeReturnPct: -0.1059},
		},
		Annual: []domain.AnnualStats{{Year: 2024, AnnualReturn: -0.1, MaxReturn: 0, MaxDrawdown: 0.1, TradingDays: 2}},
	}
}

func TestSQLiteStoreOpen(t *testing.T) {
	s := openRuns(t)
	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteStoreSaveAndRead(t *testing.T) {
	s := openRuns(t)
	ctx := context.Background()

	run := sampleRun(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.Len(t, id, 36, "uuid assigned")
	assert.Equal(t, id, run.ID)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "dividend_value", got.Name)
	assert.Equal(t, d(2024, 1, 2), got.Start)
	assert.Equal(t, 2, got.TradeCount)
	assert.Equal(t, "top_k: 10\n", got.Config)
	assert.True(t, got.CreatedAt.Equal(run.CreatedAt))

	trades, err := s.RunTrades(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.Trades, trades)

	daily, err := s.RunDaily(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.Daily, daily)

	annual, err := s.RunAnnual(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.Annual, annual)
}

func TestSQLiteStoreListOrder(t *testing.T) {
	s := openRuns(t)
	ctx := context.Background()

	older := sampleRun(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	older.Name = "older"
	newer := sampleRun(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	newer.Name = "newer"
	_, err := s.SaveRun(ctx, older)
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, newer)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].Name)

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := openRuns(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RunTrades(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RunDaily(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RunAnnual(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreDuplicateIDRollsBack(t *testing.T) {
	s := openRuns(t)
	ctx := context.Background()

	run := sampleRun(time.Now().UTC())
	run.ID = "fixed"
	_, err := s.SaveRun(ctx, run)
	require.NoError(t, err)

	dup := sampleRun(time.Now().UTC())
	dup.ID = "fixed"
	_, err = s.SaveRun(ctx, dup)
	require.Error(t, err)

	trades, err := s.RunTrades(ctx, "fixed")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}
