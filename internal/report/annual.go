package report

import (
	"ashare/internal/domain"
)

// Annual groups daily records by calendar year. Per year:
//
//   - AnnualReturn is the change from the first to the last total asset, in percent
//   - MaxReturn is the highest cumulative return reached
//   - MaxDrawdown is the deepest fall from a running peak of total asset, in percent
//
// Records must be in date order.
func Annual(daily []domain.DailyRecord) []domain.AnnualStats {
	var out []domain.AnnualStats
	for start := 0; start < len(daily); {
		year := daily[start].Date.Year()
		end := start
		for end < len(daily) && daily[end].Date.Year() == year {
			end++
		}
		out = append(out, yearStats(year, daily[start:end]))
		start = end
	}
	return out
}

func yearStats(year int, recs []domain.DailyRecord) domain.AnnualStats {
	first, last := recs[0].TotalAsset, recs[len(recs)-1].TotalAsset
	st := domain.AnnualStats{
		Year:        year,
		TradingDays: len(recs),
		StartAsset:  first,
		EndAsset:    last,
		MaxReturn:   recs[0].CumulativeReturnPct,
	}
	if first > 0 {
		st.AnnualReturn = (last - first) / first * 100
	}

	peak := first
	for _, r := range recs {
		if r.CumulativeReturnPct > st.MaxReturn {
			st.MaxReturn = r.CumulativeReturnPct
		}
		if r.TotalAsset > peak {
			peak = r.TotalAsset
		}
		if peak > 0 {
			if dd := (peak - r.TotalAsset) / peak * 100; dd > st.MaxDrawdown {
				st.MaxDrawdown = dd
			}
		}
	}
	return st
}
