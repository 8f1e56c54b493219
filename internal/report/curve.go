package report

import (
	"time"

	"ashare/internal/domain"
)

// Granularity is the sampling step of the equity curve.
type Granularity int

const (
	Daily Granularity = iota
	Weekly
	Monthly
)

func (g Granularity) String() string {
	switch g {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return "daily"
	}
}

// ChooseGranularity picks the sampling step for a run spanning first..last:
// daily under 90 calendar days, weekly up to a year, monthly beyond.
func ChooseGranularity(first, last time.Time) Granularity {
	span := int(last.Sub(first).Hours() / 24)
	switch {
	case span < 90:
		return Daily
	case span <= 365:
		return Weekly
	default:
		return Monthly
	}
}

// Resample keeps the last record of each ISO week or calendar month,
// depending on the span of daily. Records must be in date order.
func Resample(daily []domain.DailyRecord) ([]domain.DailyRecord, Granularity) {
	if len(daily) == 0 {
		return nil, Daily
	}
	g := ChooseGranularity(daily[0].Date, daily[len(daily)-1].Date)
	if g == Daily {
		out := make([]domain.DailyRecord, len(daily))
		copy(out, daily)
		return out, g
	}

	key := func(t time.Time) [2]int {
		if g == Weekly {
			y, w := t.ISOWeek()
			return [2]int{y, w}
		}
		return [2]int{t.Year(), int(t.Month())}
	}

	var out []domain.DailyRecord
	for i, rec := range daily {
		if i == len(daily)-1 || key(daily[i+1].Date) != key(rec.Date) {
			out = append(out, rec)
		}
	}
	return out, g
}

// Series is one line of the equity chart, in percent. Nil values are gaps.
type Series struct {
	Name   string
	Code   string
	Values []*float64
}

// BenchmarkReturns converts index closes into percentage returns on dates,
// based at the close on dates[0]. It reports false when there is no base
// close, in which case the series should be left out.
func BenchmarkReturns(dates []time.Time, points []domain.BenchmarkPoint) ([]*float64, bool) {
	if len(dates) == 0 {
		return nil, false
	}
	closes := make(map[time.Time]float64, len(points))
	for _, p := range points {
		closes[domain.Day(p.Date)] = p.Close
	}
	base, ok := closes[domain.Day(dates[0])]
	if !ok || base <= 0 {
		return nil, false
	}

	out := make([]*float64, len(dates))
	for i, d := range dates {
		c, ok := closes[domain.Day(d)]
		if !ok {
			continue
		}
		r := (c/base - 1) * 100
		out[i] = &r
	}
	return out, true
}
