package report

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"ashare/internal/backtest"
	"ashare/internal/domain"
)

// TradingDaysPerYear is the annualization convention.
const TradingDaysPerYear = 252

// Summary holds the headline metrics of a run. Percentages are in percent.
type Summary struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	TradingDays      int       `json:"tradingDays"`
	IdleDays         int       `json:"idleDays"`
	InitialCapital   float64   `json:"initialCapital"`
	FinalAsset       float64   `json:"finalAsset"`
	TotalReturn      float64   `json:"totalReturn"`
	AnnualizedReturn float64   `json:"annualizedReturn"`
	MaxDrawdown      float64   `json:"maxDrawdown"`
	Volatility       float64   `json:"volatility"`
	Sharpe           float64   `json:"sharpe"`
	MeanDailyReturn  float64   `json:"meanDailyReturn"`
	Buys             int       `json:"buys"`
	Sells            int       `json:"sells"`
	SellAlls         int       `json:"sellAlls"`
	TotalFees        float64   `json:"totalFees"`
	OpenPositions    int       `json:"openPositions"`
}

// Summarize computes the Summary of a finished run. Sharpe uses a zero
// risk-free rate.
func Summarize(res *backtest.Result) Summary {
	s := Summary{
		Start:          res.Start,
		End:            res.End,
		TradingDays:    len(res.Daily),
		IdleDays:       res.IdleDays,
		InitialCapital: res.InitialCapital,
		FinalAsset:     res.FinalAsset(),
		OpenPositions:  len(res.Holdings),
	}
	for _, t := range res.Trades {
		s.TotalFees += t.Fee
		switch t.Action {
		case domain.ActionBuy:
			s.Buys++
		case domain.ActionSell:
			s.Sells++
		case domain.ActionSellAll:
			s.SellAlls++
		}
	}

	if s.InitialCapital > 0 {
		s.TotalReturn = (s.FinalAsset/s.InitialCapital - 1) * 100
		if n := len(res.Daily); n > 0 && s.FinalAsset > 0 {
			growth := s.FinalAsset / s.InitialCapital
			s.AnnualizedReturn = (math.Pow(growth, float64(TradingDaysPerYear)/float64(n)) - 1) * 100
		}
	}
	s.MaxDrawdown = maxDrawdown(res.Daily)

	rets := dailyReturns(res.Daily)
	if len(rets) > 1 {
		mean, std := stat.MeanStdDev(rets, nil)
		s.MeanDailyReturn = mean * 100
		s.Volatility = std * math.Sqrt(TradingDaysPerYear) * 100
		if std > 0 {
			s.Sharpe = mean / std * math.Sqrt(TradingDaysPerYear)
		}
	}
	return s
}

func dailyReturns(daily []domain.DailyRecord) []float64 {
	if len(daily) < 2 {
		return nil
	}
	out := make([]float64, 0, len(daily)-1)
	for i := 1; i < len(daily); i++ {
		prev := daily[i-1].TotalAsset
		if prev <= 0 {
			continue
		}
		out = append(out, daily[i].TotalAsset/prev-1)
	}
	return out
}

func maxDrawdown(daily []domain.DailyRecord) float64 {
	var peak, worst float64
	for _, d := range daily {
		if d.TotalAsset > peak {
			peak = d.TotalAsset
		}
		if peak > 0 {
			if dd := (peak - d.TotalAsset) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
