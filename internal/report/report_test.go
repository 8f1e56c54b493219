package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare/internal/backtest"
	"ashare/internal/config"
	"ashare/internal/domain"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// weekdays returns one record per weekday in [from, to], total asset rising
// by one unit per session.
func weekdays(from, to time.Time) []domain.DailyRecord {
	var out []domain.DailyRecord
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		total := 1000 + float64(len(out))
		out = append(out, domain.DailyRecord{
			Date:                d,
			Cash:                total,
			TotalAsset:          total,
			CumulativeReturnPct: (total - 1000) / 10,
		})
	}
	return out
}

func TestWriteTrades(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTrades(&buf, []domain.Trade{{
		Date: day(2024, 1, 2), Code: "sh.600000", Name: "浦发银行", Action: domain.ActionBuy,
		Price: 10, Shares: 10_000, Amount: 100_000, Fee: 22, ResultingShares: 10_000,
		ResultingCash: 9_899_978, Reason: "target",
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,code,name,action,price,shares,amount,fee,resulting_shares,resulting_cash,reason", lines[0])
	assert.Equal(t, "2024-01-02,sh.600000,浦发银行,buy,10.00,10000,100000.00,22.00,10000,9899978.00,target", lines[1])
}

func TestWriteDaily(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDaily(&buf, []domain.DailyRecord{{
		Date: day(2024, 1, 2), Cash: 900.123, PositionValue: 100, TotalAsset: 1000.123, CumulativeReturnPct: 0.0123,
	}})
	require.NoError(t, err)
	assert.Equal(t,
		"date,cash,position_value,total_asset,cumulative_return_pct\n2024-01-02,900.12,100.00,1000.12,0.01\n",
		buf.String())
}

func TestChooseGranularity(t *testing.T) {
	start := day(2024, 1, 1)
	assert.Equal(t, Daily, ChooseGranularity(start, start.AddDate(0, 0, 89)))
	assert.Equal(t, Weekly, ChooseGranularity(start, start.AddDate(0, 0, 90)))
	assert.Equal(t, Weekly, ChooseGranularity(start, start.AddDate(0, 0, 365)))
	assert.Equal(t, Monthly, ChooseGranularity(start, start.AddDate(0, 0, 366)))
}

func TestResampleDaily(t *testing.T) {
	daily := weekdays(day(2024, 1, 2), day(2024, 2, 29))
	out, g := Resample(daily)
	assert.Equal(t, Daily, g)
	assert.Equal(t, daily, out)

	out, g = Resample(nil)
	assert.Nil(t, out)
	assert.Equal(t, Daily, g)
}

func TestResampleWeekly(t *testing.T) {
	daily := weekdays(day(2024, 1, 1), day(2024, 6, 28))
	out, g := Resample(daily)
	require.Equal(t, Weekly, g)

	assert.Len(t, out, 26)
	for _, rec := range out {
		assert.Equal(t, time.Friday, rec.Date.Weekday(), rec.Date)
	}
	assert.Equal(t, daily[len(daily)-1], out[len(out)-1])
}

func TestResampleMonthly(t *testing.T) {
	daily := weekdays(day(2022, 1, 3), day(2023, 12, 29))
	out, g := Resample(daily)
	require.Equal(t, Monthly, g)

	require.Len(t, out, 24)
	assert.Equal(t, day(2022, 1, 31), out[0].Date)
	assert.Equal(t, day(2022, 4, 29), out[3].Date)
	assert.Equal(t, day(2023, 12, 29), out[23].Date)
}

func TestBenchmarkReturns(t *testing.T) {
	dates := []time.Time{day(2024, 1, 5), day(2024, 1, 12), day(2024, 1, 19)}
	points := []domain.BenchmarkPoint{
		{Date: day(2024, 1, 5), Close: 3500},
		{Date: day(2024, 1, 19), Close: 3850},
	}
	got, ok := BenchmarkReturns(dates, points)
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.InDelta(t, 0, *got[0], 1e-9)
	assert.Nil(t, got[1])
	assert.InDelta(t, 10, *got[2], 1e-9)

	_, ok = BenchmarkReturns(dates, points[1:])
	assert.False(t, ok, "missing base omits the series")
	_, ok = BenchmarkReturns(nil, points)
	assert.False(t, ok)
}

func TestAnnual(t *testing.T) {
	daily := []domain.DailyRecord{
		{Date: day(2023, 12, 28), TotalAsset: 100, CumulativeReturnPct: 0},
		{Date: day(2023, 12, 29), TotalAsset: 110, CumulativeReturnPct: 10},
		{Date: day(2024, 1, 2), TotalAsset: 120, CumulativeReturnPct: 20},
		{Date: day(2024, 1, 3), TotalAsset: 90, CumulativeReturnPct: -10},
		{Date: day(2024, 1, 4), TotalAsset: 99, CumulativeReturnPct: -1},
	}
	stats := Annual(daily)
	require.Len(t, stats, 2)

	assert.Equal(t, 2023, stats[0].Year)
	assert.InDelta(t, 10, stats[0].AnnualReturn, 1e-9)
	assert.InDelta(t, 10, stats[0].MaxReturn, 1e-9)
	assert.Zero(t, stats[0].MaxDrawdown)
	assert.Equal(t, 2, stats[0].TradingDays)

	assert.Equal(t, 2024, stats[1].Year)
	assert.InDelta(t, -17.5, stats[1].AnnualReturn, 1e-9)
	assert.InDelta(t, 20, stats[1].MaxReturn, 1e-9)
	assert.InDelta(t, 25, stats[1].MaxDrawdown, 1e-9)
	assert.Equal(t, 120.0, stats[1].StartAsset)
	assert.Equal(t, 99.0, stats[1].EndAsset)

	assert.Empty(t, Annual(nil))
}

func sampleResult() *backtest.Result {
	daily := weekdays(day(2024, 1, 2), day(2024, 3, 29))
	return &backtest.Result{
		Start:          daily[0].Date,
		End:            daily[len(daily)-1].Date,
		InitialCapital: 1000,
		Daily:          daily,
		Trades: []domain.Trade{
			{Date: day(2024, 1, 2), Code: "sh.600000", Action: domain.ActionBuy, Fee: 5},
			{Date: day(2024, 2, 1), Code: "sh.600000", Action: domain.ActionSell, Fee: 6},
			{Date: day(2024, 3, 1), Code: "sh.600000", Action: domain.ActionSellAll, Fee: 7},
		},
	}
}

func TestSummarize(t *testing.T) {
	res := sampleResult()
	s := Summarize(res)

	assert.Equal(t, len(res.Daily), s.TradingDays)
	assert.Equal(t, 1, s.Buys)
	assert.Equal(t, 1, s.Sells)
	assert.Equal(t, 1, s.SellAlls)
	assert.InDelta(t, 18, s.TotalFees, 1e-9)
	assert.InDelta(t, (res.FinalAsset()/1000-1)*100, s.TotalReturn, 1e-9)
	assert.Greater(t, s.AnnualizedReturn, s.TotalReturn)
	assert.Zero(t, s.MaxDrawdown, "monotonic curve never draws down")
	assert.Greater(t, s.Sharpe, 0.0)
	assert.Greater(t, s.Volatility, 0.0)
}

func TestMaxDrawdown(t *testing.T) {
	daily := []domain.DailyRecord{{TotalAsset: 100}, {TotalAsset: 150}, {TotalAsset: 120}, {TotalAsset: 160}, {TotalAsset: 80}}
	assert.InDelta(t, 50, maxDrawdown(daily), 1e-9)
}

type benchmarks map[string][]domain.BenchmarkPoint

func (b benchmarks) Benchmark(code string) []domain.BenchmarkPoint { return b[code] }

func TestGenerate(t *testing.T) {
	cfg := config.Default().Report
	cfg.OutputDir = filepath.Join(t.TempDir(), "logs")
	res := sampleResult()

	bench := benchmarks{
		domain.IndexCSI300: {{Date: res.Daily[0].Date, Close: 3500}, {Date: res.End, Close: 3600}},
		// zz500 has no close on the first sample and is left out
		domain.IndexCSI500: {{Date: res.End, Close: 5600}},
	}
	a, err := NewGenerator(cfg, zerolog.Nop()).Generate(res, bench)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.OutputDir, "dividend_value_trade_records.csv"), a.Trades)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "dividend_value_daily_results.csv"), a.Daily)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "dividend_value_equity_curve.html"), a.HTML)

	raw, err := os.ReadFile(a.Daily)
	require.NoError(t, err)
	assert.Equal(t, len(res.Daily)+1, strings.Count(string(raw), "\n"))

	html, err := os.ReadFile(a.HTML)
	require.NoError(t, err)
	page := string(html)
	assert.Contains(t, page, "chart.js")
	assert.Contains(t, page, `"label":"strategy"`)
	assert.Contains(t, page, `"label":"hs300"`)
	assert.NotContains(t, page, `"label":"zz500"`)
	assert.Contains(t, page, "<td>2024</td>")
}

func TestGenerateWithoutHTML(t *testing.T) {
	cfg := config.Default().Report
	cfg.OutputDir = t.TempDir()
	cfg.DisableHTML = true

	a, err := NewGenerator(cfg, zerolog.Nop()).Generate(sampleResult(), nil)
	require.NoError(t, err)
	assert.Empty(t, a.HTML)
	assert.FileExists(t, a.Trades)
}

func TestPrintSummary(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	PrintSummary(&buf, Summarize(res), Annual(res.Daily))

	out := buf.String()
	assert.Contains(t, out, "Total return")
	assert.Contains(t, out, "Sharpe")
	assert.Contains(t, out, "2024")
	assert.Contains(t, out, "1/1/1")
}

func TestRunRecord(t *testing.T) {
	res := sampleResult()
	params := config.Default().Backtest

	run, err := RunRecord("dividend_value", res, params)
	require.NoError(t, err)
	assert.Empty(t, run.ID, "store assigns the id")
	assert.Equal(t, "dividend_value", run.Name)
	assert.Equal(t, 3, run.TradeCount)
	assert.Equal(t, res.FinalAsset(), run.FinalAsset)
	assert.Equal(t, Summarize(res).TotalReturn, run.TotalReturn)
	assert.Len(t, run.Daily, len(res.Daily))
	require.Len(t, run.Annual, 1)
	assert.Equal(t, 2024, run.Annual[0].Year)
	assert.Contains(t, run.Config, "top_k: 10")
	assert.Contains(t, run.Config, "trade_interval_days: 5")
}
