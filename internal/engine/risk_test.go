package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare/internal/config"
)

func TestCommissionFee(t *testing.T) {
	m := NewCommissionModel(config.Default().Backtest.Commission)

	tests := []struct {
		name   string
		shares int64
		price  float64
		want   float64
	}{
		{"small buy pays minimum", 1000, 10, 5 + 0.2},
		{"small sell adds stamp duty", -1000, 10, 5 + 0.2 + 10},
		{"large buy", 100_000, 10, 200 + 20},
		{"large sell", -100_000, 10, 200 + 20 + 1000},
		{"nothing", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.Fee(tt.shares, tt.price), 1e-9)
		})
	}
}

func TestRiskEvaluate(t *testing.T) {
	rm := NewRiskManager(config.Default().Backtest.Execution)

	tests := []struct {
		price float64
		want  StopAction
	}{
		{20, StopTakeProfit},
		{25, StopTakeProfit},
		{13.5, StopTrim},
		{13, StopTrim},
		{12.9, StopNone},
		{10, StopNone},
		{9.8, StopNone},
		{9.7, StopHalt},
		{9.1, StopHalt},
		{9, StopLoss},
		{8.8, StopLoss},
	}
	for _, tt := range tests {
		got, _ := rm.Evaluate(10, tt.price)
		assert.Equal(t, tt.want, got, "price %.2f: got %s", tt.price, got)
	}

	got, pnl := rm.Evaluate(0, 10)
	assert.Equal(t, StopNone, got, "zero entry price is skipped")
	assert.Zero(t, pnl)
}

func TestRiskCooldownAndCap(t *testing.T) {
	rm := NewRiskManager(config.Default().Backtest.Execution)

	assert.Equal(t, 90, rm.Cooldown(StopTakeProfit))
	assert.Equal(t, 30, rm.Cooldown(StopLoss))
	assert.Equal(t, 0, rm.Cooldown(StopTrim))

	assert.True(t, rm.WithinCap(99_999, 1_000_000))
	assert.False(t, rm.WithinCap(100_000, 1_000_000))

	assert.True(t, rm.ValuationStretched(f(70.1), nil))
	assert.True(t, rm.ValuationStretched(nil, f(71)))
	assert.False(t, rm.ValuationStretched(f(70), f(70)))
	assert.False(t, rm.ValuationStretched(nil, nil))
}

func TestCooldownBook(t *testing.T) {
	c := newCooldownBook()

	c.forbid("A", 33)
	assert.True(t, c.isForbidden("A", 32))
	assert.False(t, c.isForbidden("A", 33))

	c.forbid("A", 10) // shorter ban does not shorten the active one
	until, ok := c.forbiddenUntil("A")
	require.True(t, ok)
	assert.Equal(t, 33, until)

	c.expire(33)
	_, ok = c.forbiddenUntil("A")
	assert.False(t, ok)

	assert.True(t, c.setStopBuy("B"))
	assert.False(t, c.setStopBuy("B"))
	c.clearStopBuy("B")
	assert.False(t, c.isStopBuy("B"))

	assert.True(t, c.intervalElapsed("C", 0, 5))
	c.recordTrade("C", 10)
	assert.False(t, c.intervalElapsed("C", 14, 5))
	assert.True(t, c.intervalElapsed("C", 15, 5))
}

func TestPortfolioBuySell(t *testing.T) {
	p := NewPortfolio(100_000)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := p.buy("A", "Alpha", 1000, 10, 5, day)
	require.NoError(t, err)
	_, err = p.buy("A", "Alpha", 1000, 12, 5, day)
	require.NoError(t, err)

	h, ok := p.Holding("A")
	require.True(t, ok)
	assert.Equal(t, int64(2000), h.Shares)
	assert.Equal(t, 10.0, h.EntryPrice)
	assert.InDelta(t, 11.0, h.AvgCost, 1e-9)
	assert.InDelta(t, 100_000-10_000-12_000-10, p.Cash(), 1e-9)

	_, err = p.buy("B", "Beta", 100_000, 10, 5, day)
	assert.ErrorIs(t, err, errInsufficientCash)

	_, err = p.sell("A", 3000, 12, 5, day)
	assert.ErrorIs(t, err, errOversell)

	remaining, err := p.sell("A", 2000, 12, 5, day)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	_, ok = p.Holding("A")
	assert.False(t, ok)
	assert.Empty(t, p.Codes())
}

func TestPortfolioValuation(t *testing.T) {
	p := NewPortfolio(50_000)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := p.buy("B", "Beta", 100, 20, 0, day)
	require.NoError(t, err)
	_, err = p.buy("A", "Alpha", 200, 10, 0, day)
	require.NoError(t, err)

	p.mark("A", 11)
	p.mark("Z", 99) // not held, ignored

	assert.Equal(t, []string{"A", "B"}, p.Codes())
	assert.InDelta(t, 200*11+100*20, p.PositionValue(), 1e-9)
	assert.InDelta(t, p.Cash()+p.PositionValue(), p.TotalValue(), 1e-9)
	assert.Len(t, p.Holdings(), 2)
}
