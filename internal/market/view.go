package market

import (
	"sort"
	"time"

	"ashare/internal/domain"
	"ashare/internal/util"
)

// DividendIndex records, per code, the calendar years in which a qualifying
// cash dividend was paid.
type DividendIndex struct {
	years map[string]map[int]struct{}
}

// NewDividendIndex builds an index from raw dividend events. Events with no
// positive cash amount are ignored.
func NewDividendIndex(records []domain.DividendRecord) *DividendIndex {
	idx := &DividendIndex{years: make(map[string]map[int]struct{})}
	for _, r := range records {
		idx.Add(r)
	}
	return idx
}

// Add records one dividend event.
func (d *DividendIndex) Add(r domain.DividendRecord) {
	if !r.Qualifies() {
		return
	}
	ys, ok := d.years[r.Code]
	if !ok {
		ys = make(map[int]struct{})
		d.years[r.Code] = ys
	}
	ys[r.Date.Year()] = struct{}{}
}

// Paid reports whether code paid a qualifying dividend in year.
func (d *DividendIndex) Paid(code string, year int) bool {
	_, ok := d.years[code][year]
	return ok
}

// PaidEachYear reports whether code paid in every one of the n completed
// years before year.
func (d *DividendIndex) PaidEachYear(code string, year, n int) bool {
	for y := year - 1; y >= year-n; y-- {
		if !d.Paid(code, y) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

// View is the immutable in-memory snapshot a backtest runs against. Lookups
// are O(1) by (day, code) and by code. A View is safe for concurrent reads.
type View struct {
	calendar   *util.TradingCalendar
	securities map[string]domain.Security
	quotes     []map[string]domain.DailyQuote // by session index
	ordered    [][]domain.DailyQuote          // by session index, sorted by code
	dividends  *DividendIndex
	benchmarks map[string][]domain.BenchmarkPoint
	dropped    int
}

// NewView assembles a View. Quotes dated outside the calendar are dropped
// and counted; later duplicates for the same (code, day) replace earlier ones.
func NewView(
	cal *util.TradingCalendar,
	securities []domain.Security,
	quotes []domain.DailyQuote,
	dividends *DividendIndex,
) *View {
	v := &View{
		calendar:   cal,
		securities: make(map[string]domain.Security, len(securities)),
		quotes:     make([]map[string]domain.DailyQuote, cal.Len()),
		ordered:    make([][]domain.DailyQuote, cal.Len()),
		dividends:  dividends,
		benchmarks: make(map[string][]domain.BenchmarkPoint),
	}
	if v.dividends == nil {
		v.dividends = NewDividendIndex(nil)
	}
	for _, s := range securities {
		v.securities[s.Code] = s
	}

	for _, q := range quotes {
		i, ok := cal.IndexOf(q.Date)
		if !ok {
			v.dropped++
			continue
		}
		q.Date = cal.Day(i)
		if v.quotes[i] == nil {
			v.quotes[i] = make(map[string]domain.DailyQuote)
		}
		v.quotes[i][q.Code] = q
	}

	for i, day := range v.quotes {
		if len(day) == 0 {
			continue
		}
		list := make([]domain.DailyQuote, 0, len(day))
		for _, q := range day {
			list = append(list, q)
		}
		sort.Slice(list, func(a, b int) bool { return list[a].Code < list[b].Code })
		v.ordered[i] = list
	}
	return v
}

// Calendar returns the session calendar the view is indexed by.
func (v *View) Calendar() *util.TradingCalendar { return v.calendar }

// Security looks up the directory entry for code.
func (v *View) Security(code string) (domain.Security, bool) {
	s, ok := v.securities[code]
	return s, ok
}

// SecurityCount returns the directory size.
func (v *View) SecurityCount() int { return len(v.securities) }

// Dropped returns how many quotes fell outside the calendar.
func (v *View) Dropped() int { return v.dropped }

// Quote returns the quote for code on day.
func (v *View) Quote(code string, day time.Time) (domain.DailyQuote, bool) {
	i, ok := v.calendar.IndexOf(day)
	if !ok {
		return domain.DailyQuote{}, false
	}
	return v.QuoteAt(code, i)
}

// QuoteAt returns the quote for code at session index i.
func (v *View) QuoteAt(code string, i int) (domain.DailyQuote, bool) {
	if i < 0 || i >= len(v.quotes) {
		return domain.DailyQuote{}, false
	}
	q, ok := v.quotes[i][code]
	return q, ok
}

// AllQuotes returns every quote on day ordered by code. The slice is shared
// and must not be modified.
func (v *View) AllQuotes(day time.Time) []domain.DailyQuote {
	i, ok := v.calendar.IndexOf(day)
	if !ok {
		return nil
	}
	return v.AllQuotesAt(i)
}

// AllQuotesAt is AllQuotes by session index.
func (v *View) AllQuotesAt(i int) []domain.DailyQuote {
	if i < 0 || i >= len(v.ordered) {
		return nil
	}
	return v.ordered[i]
}

// HasDividendLastNYears reports whether code paid a qualifying cash dividend
// in each of the n calendar years preceding day's year.
func (v *View) HasDividendLastNYears(code string, day time.Time, n int) bool {
	return v.dividends.PaidEachYear(code, day.Year(), n)
}

// SetBenchmark attaches an index series. It is only called while loading.
func (v *View) SetBenchmark(indexCode string, points []domain.BenchmarkPoint) {
	v.benchmarks[indexCode] = points
}

// Benchmark returns the series loaded for indexCode, or nil.
func (v *View) Benchmark(indexCode string) []domain.BenchmarkPoint {
	return v.benchmarks[indexCode]
}
