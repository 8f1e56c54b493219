package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"ashare/internal/domain"
)

// ParquetStore is an offline snapshot of the market data on disk. Layout:
//
//	<DataDir>/cn/calendar.parquet
//	<DataDir>/cn/securities.parquet
//	<DataDir>/cn/dividends.parquet
//	<DataDir>/cn/quotes/<YYYY>.parquet
//	<DataDir>/cn/benchmarks/<index code>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// CalendarRecord is one open session.
type CalendarRecord struct {
	Date int64 `parquet:"date,timestamp(millisecond)"`
}

// SecurityRecord is one entry of the security directory.
type SecurityRecord struct {
	Code         string `parquet:"code"`
	Name         string `parquet:"name"`
	ListingDate  int64  `parquet:"listing_date,timestamp(millisecond)"`
	DelistedDate *int64 `parquet:"delisted_date,optional,timestamp(millisecond)"`
	IsDelisted   bool   `parquet:"is_delisted"`
}

// QuoteRecord is one daily quote. Optional columns are null when the
// upstream value was missing.
type QuoteRecord struct {
	Code             string   `parquet:"code"`
	Date             int64    `parquet:"date,timestamp(millisecond)"`
	Close            float64  `parquet:"close"`
	Open             *float64 `parquet:"open,optional"`
	TotalMarketValue *float64 `parquet:"total_market_value,optional"`
	PeTTM            *float64 `parquet:"pe_ttm,optional"`
	PsTTM            *float64 `parquet:"ps_ttm,optional"`
	PePercentile1Y   *float64 `parquet:"pe_percentile_1y,optional"`
	PsPercentile1Y   *float64 `parquet:"ps_percentile_1y,optional"`
	DividendYield    *float64 `parquet:"dividend_yield,optional"`
	IsST             bool     `parquet:"is_st"`
}

// DividendRow is one dividend event.
type DividendRow struct {
	Code         string  `parquet:"code"`
	Date         int64   `parquet:"date,timestamp(millisecond)"`
	CashPerShare float64 `parquet:"cash_per_share"`
}

// BenchmarkRecord is one index close.
type BenchmarkRecord struct {
	Date  int64   `parquet:"date,timestamp(millisecond)"`
	Close float64 `parquet:"close"`
}

// ---------------------------------------------------------------------------
// market.Source implementation
// ---------------------------------------------------------------------------

// TradingDays returns the snapshot sessions in [start, end]. A missing
// calendar file yields no sessions.
func (s *ParquetStore) TradingDays(_ context.Context, start, end time.Time) ([]time.Time, error) {
	records, err := readOptional[CalendarRecord](s.calendarPath())
	if err != nil {
		return nil, err
	}
	var days []time.Time
	for _, r := range records {
		d := fromMillis(r.Date)
		if inWindow(d, start, end) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// Securities returns the snapshot security directory.
func (s *ParquetStore) Securities(context.Context) ([]domain.Security, error) {
	records, err := readOptional[SecurityRecord](s.securitiesPath())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Security, len(records))
	for i, r := range records {
		out[i] = domain.Security{
			Code:        r.Code,
			Name:        r.Name,
			ListingDate: fromMillis(r.ListingDate),
			IsDelisted:  r.IsDelisted,
		}
		if r.DelistedDate != nil {
			d := fromMillis(*r.DelistedDate)
			out[i].DelistedDate = &d
		}
	}
	return out, nil
}

// Quotes reads the yearly quote files overlapping [start, end].
func (s *ParquetStore) Quotes(_ context.Context, start, end time.Time) ([]domain.DailyQuote, error) {
	var out []domain.DailyQuote
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readOptional[QuoteRecord](s.quotePath(year))
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			d := fromMillis(r.Date)
			if !inWindow(d, start, end) {
				continue
			}
			out = append(out, domain.DailyQuote{
				Code:             r.Code,
				Date:             d,
				Close:            r.Close,
				Open:             r.Open,
				TotalMarketValue: r.TotalMarketValue,
				PeTTM:            r.PeTTM,
				PsTTM:            r.PsTTM,
				PePercentile1Y:   r.PePercentile1Y,
				PsPercentile1Y:   r.PsPercentile1Y,
				DividendYield:    r.DividendYield,
				IsST:             r.IsST,
			})
		}
	}
	return out, nil
}

// Dividends returns snapshot dividend events dated in [start, end].
func (s *ParquetStore) Dividends(_ context.Context, start, end time.Time) ([]domain.DividendRecord, error) {
	records, err := readOptional[DividendRow](s.dividendsPath())
	if err != nil {
		return nil, err
	}
	var out []domain.DividendRecord
	for _, r := range records {
		d := fromMillis(r.Date)
		if inWindow(d, start, end) {
			out = append(out, domain.DividendRecord{Code: r.Code, Date: d, CashPerShare: r.CashPerShare})
		}
	}
	return out, nil
}

// Benchmark returns the snapshot closes of an index in [start, end].
func (s *ParquetStore) Benchmark(_ context.Context, indexCode string, start, end time.Time) ([]domain.BenchmarkPoint, error) {
	records, err := readOptional[BenchmarkRecord](s.benchmarkPath(indexCode))
	if err != nil {
		return nil, err
	}
	var out []domain.BenchmarkPoint
	for _, r := range records {
		d := fromMillis(r.Date)
		if inWindow(d, start, end) {
			out = append(out, domain.BenchmarkPoint{Date: d, Close: r.Close})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Writers
// ---------------------------------------------------------------------------

// WriteCalendar merges days into the calendar file.
func (s *ParquetStore) WriteCalendar(days []time.Time) error {
	path := s.calendarPath()
	existing, _ := readParquetFile[CalendarRecord](path)
	seen := make(map[int64]struct{}, len(existing)+len(days))
	for _, r := range existing {
		seen[r.Date] = struct{}{}
	}
	for _, d := range days {
		seen[toMillis(d)] = struct{}{}
	}
	merged := make([]CalendarRecord, 0, len(seen))
	for ms := range seen {
		merged = append(merged, CalendarRecord{Date: ms})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })
	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	return nil
}

// WriteSecurities replaces the security directory.
func (s *ParquetStore) WriteSecurities(secs []domain.Security) error {
	records := make([]SecurityRecord, len(secs))
	for i, sec := range secs {
		records[i] = SecurityRecord{
			Code:        sec.Code,
			Name:        sec.Name,
			ListingDate: toMillis(sec.ListingDate),
			IsDelisted:  sec.IsDelisted,
		}
		if sec.DelistedDate != nil {
			ms := toMillis(*sec.DelistedDate)
			records[i].DelistedDate = &ms
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Code < records[j].Code })
	if err := writeParquetFile(s.securitiesPath(), records); err != nil {
		return fmt.Errorf("writing securities: %w", err)
	}
	return nil
}

// WriteQuotes merges quotes into the yearly quote files. A later quote for
// the same (code, date) replaces the stored one. It returns the years
// written.
func (s *ParquetStore) WriteQuotes(quotes []domain.DailyQuote) ([]int, error) {
	groups := make(map[int][]QuoteRecord)
	for _, q := range quotes {
		y := q.Date.Year()
		groups[y] = append(groups[y], QuoteRecord{
			Code:             q.Code,
			Date:             toMillis(q.Date),
			Close:            q.Close,
			Open:             q.Open,
			TotalMarketValue: q.TotalMarketValue,
			PeTTM:            q.PeTTM,
			PsTTM:            q.PsTTM,
			PePercentile1Y:   q.PePercentile1Y,
			PsPercentile1Y:   q.PsPercentile1Y,
			DividendYield:    q.DividendYield,
			IsST:             q.IsST,
		})
	}

	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		path := s.quotePath(y)
		existing, err := readOptional[QuoteRecord](path)
		if err != nil {
			return nil, fmt.Errorf("merging quotes for %d: %w", y, err)
		}
		merged := mergeQuoteRecords(existing, groups[y])
		if err := writeParquetFile(path, merged); err != nil {
			return nil, fmt.Errorf("writing quotes for %d: %w", y, err)
		}
	}
	return years, nil
}

// WriteDividends replaces the dividend file.
func (s *ParquetStore) WriteDividends(divs []domain.DividendRecord) error {
	records := make([]DividendRow, len(divs))
	for i, d := range divs {
		records[i] = DividendRow{Code: d.Code, Date: toMillis(d.Date), CashPerShare: d.CashPerShare}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Code != records[j].Code {
			return records[i].Code < records[j].Code
		}
		return records[i].Date < records[j].Date
	})
	if err := writeParquetFile(s.dividendsPath(), records); err != nil {
		return fmt.Errorf("writing dividends: %w", err)
	}
	return nil
}

// WriteBenchmark replaces the closes of one index.
func (s *ParquetStore) WriteBenchmark(indexCode string, points []domain.BenchmarkPoint) error {
	records := make([]BenchmarkRecord, len(points))
	for i, p := range points {
		records[i] = BenchmarkRecord{Date: toMillis(p.Date), Close: p.Close}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	if err := writeParquetFile(s.benchmarkPath(indexCode), records); err != nil {
		return fmt.Errorf("writing benchmark %s: %w", indexCode, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func (s *ParquetStore) root() string { return filepath.Join(s.DataDir, "cn") }

func (s *ParquetStore) calendarPath() string   { return filepath.Join(s.root(), "calendar.parquet") }
func (s *ParquetStore) securitiesPath() string { return filepath.Join(s.root(), "securities.parquet") }
func (s *ParquetStore) dividendsPath() string  { return filepath.Join(s.root(), "dividends.parquet") }

// quotePath returns <DataDir>/cn/quotes/<YYYY>.parquet.
func (s *ParquetStore) quotePath(year int) string {
	return filepath.Join(s.root(), "quotes", fmt.Sprintf("%d.parquet", year))
}

// benchmarkPath returns <DataDir>/cn/benchmarks/<code>.parquet.
func (s *ParquetStore) benchmarkPath(indexCode string) string {
	return filepath.Join(s.root(), "benchmarks", strings.ToLower(indexCode)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// readOptional reads path, treating a missing file as empty.
func readOptional[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := readParquetFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// mergeQuoteRecords deduplicates quote records by (code, date), preferring
// new records over existing ones. Results are sorted by date, then code.
func mergeQuoteRecords(existing, incoming []QuoteRecord) []QuoteRecord {
	type key struct {
		code string
		ts   int64
	}
	seen := make(map[key]QuoteRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Code, r.Date}] = r
	}
	for _, r := range incoming {
		seen[key{r.Code, r.Date}] = r
	}

	merged := make([]QuoteRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date < merged[j].Date
		}
		return merged[i].Code < merged[j].Code
	})
	return merged
}

func toMillis(t time.Time) int64 { return domain.Day(t).UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
