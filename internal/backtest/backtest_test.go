package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare/internal/config"
	"ashare/internal/domain"
	"ashare/internal/market"
	"ashare/internal/util"
)

func f(v float64) *float64 { return &v }

func sessions(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

func eligible(code string, day time.Time, close float64) domain.DailyQuote {
	return domain.DailyQuote{
		Code:             code,
		Date:             day,
		Close:            close,
		Open:             f(close),
		TotalMarketValue: f(120),
		PeTTM:            f(8),
		PsTTM:            f(1.2),
		PePercentile1Y:   f(10),
		PsPercentile1Y:   f(12),
		DividendYield:    f(4.5),
	}
}

func fixture(days []time.Time, skip map[int]bool) *market.View {
	listed := time.Date(2010, 5, 4, 0, 0, 0, 0, time.UTC)
	secs := []domain.Security{{Code: "sh.600000", Name: "浦发银行", ListingDate: listed}}
	var quotes []domain.DailyQuote
	for i, d := range days {
		if skip[i] {
			continue
		}
		quotes = append(quotes, eligible("sh.600000", d, 10))
	}
	divs := market.NewDividendIndex([]domain.DividendRecord{
		{Code: "sh.600000", Date: time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC), CashPerShare: 0.4},
		{Code: "sh.600000", Date: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), CashPerShare: 0.4},
	})
	return market.NewView(util.NewTradingCalendar(days), secs, quotes, divs)
}

func TestRunRespectsTradeInterval(t *testing.T) {
	cfg := config.Default().Backtest
	view := fixture(sessions(7), nil)

	res, err := NewBacktester(cfg, view, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	days := view.Calendar().Days()
	assert.Equal(t, days[0], res.Trades[0].Date)
	assert.Equal(t, days[5], res.Trades[1].Date)
	for _, tr := range res.Trades {
		assert.Equal(t, domain.ActionBuy, tr.Action)
		assert.Equal(t, int64(10_000), tr.Shares)
		assert.InDelta(t, 22.0, tr.Fee, 1e-9)
	}
	assert.Equal(t, int64(20_000), res.Trades[1].ResultingShares)

	require.Len(t, res.Daily, 7)
	assert.InDelta(t, cfg.InitialCapital-22, res.Daily[0].TotalAsset, 1e-6)
	require.Len(t, res.Holdings, 1)
	assert.Equal(t, 10.0, res.Holdings[0].EntryPrice)
}

func TestRunInvariants(t *testing.T) {
	cfg := config.Default().Backtest
	res, err := NewBacktester(cfg, fixture(sessions(40), nil), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	for _, rec := range res.Daily {
		assert.GreaterOrEqual(t, rec.Cash, 0.0)
		assert.InDelta(t, rec.Cash+rec.PositionValue, rec.TotalAsset, 1e-6)
		want := (rec.TotalAsset - cfg.InitialCapital) / cfg.InitialCapital * 100
		assert.InDelta(t, want, rec.CumulativeReturnPct, 1e-9)
	}
	for _, tr := range res.Trades {
		assert.Zero(t, tr.Shares%cfg.Execution.LotSize)
		assert.GreaterOrEqual(t, tr.ResultingShares, int64(0))
	}
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := config.Default().Backtest
	bt := NewBacktester(cfg, fixture(sessions(30), nil), zerolog.Nop())

	first, err := bt.Run(context.Background())
	require.NoError(t, err)
	second, err := bt.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunIdleDayStillSnapshots(t *testing.T) {
	cfg := config.Default().Backtest
	res, err := NewBacktester(cfg, fixture(sessions(4), map[int]bool{2: true}), zerolog.Nop()).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.IdleDays)
	require.Len(t, res.Daily, 4)
	assert.Equal(t, res.Daily[1].TotalAsset, res.Daily[2].TotalAsset)
	assert.InDelta(t, res.Daily[0].TotalAsset, res.FinalAsset(), 1e-6)
}

func TestRunPreconditions(t *testing.T) {
	cfg := config.Default().Backtest

	empty := market.NewView(util.NewTradingCalendar(nil), nil, nil, nil)
	_, err := NewBacktester(cfg, empty, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, market.ErrNoCalendar)

	_, err = NewBacktester(cfg, nil, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, market.ErrNoCalendar)

	noSecs := market.NewView(util.NewTradingCalendar(sessions(3)), nil, nil, nil)
	_, err = NewBacktester(cfg, noSecs, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, market.ErrNoSecurities)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBacktester(config.Default().Backtest, fixture(sessions(5), nil), zerolog.Nop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFinalAssetEmptyRun(t *testing.T) {
	r := &Result{InitialCapital: 1000}
	assert.Equal(t, 1000.0, r.FinalAsset())
}
