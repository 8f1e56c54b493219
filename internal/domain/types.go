// Package domain holds the value types shared by the market data layer, the
// simulation engine and the reporting layer.
package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical day format used in storage, ledgers and the API.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Day truncates t to UTC midnight of its calendar date so that dates coming
// from different drivers compare equal.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Security is one entry of the A-share security directory.
type Security struct {
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	ListingDate  time.Time  `json:"listingDate"`
	DelistedDate *time.Time `json:"delistedDate,omitempty"`
	IsDelisted   bool       `json:"isDelisted"`
}

// ListedOn reports whether the security was trading on day.
func (s Security) ListedOn(day time.Time) bool {
	if day.Before(s.ListingDate) {
		return false
	}
	if s.IsDelisted && s.DelistedDate != nil && !day.Before(*s.DelistedDate) {
		return false
	}
	return true
}

// DailyQuote is the end-of-day snapshot for one security. Optional metrics
// are pointers: nil means the provider had no value for that day.
type DailyQuote struct {
	Code             string
	Date             time.Time
	Close            float64
	Open             *float64
	TotalMarketValue *float64 // 亿 CNY
	PeTTM            *float64
	PsTTM            *float64
	PePercentile1Y   *float64 // 0-100
	PsPercentile1Y   *float64 // 0-100
	DividendYield    *float64 // percent
	IsST             bool
}

// DividendRecord is one cash dividend event.
type DividendRecord struct {
	Code         string
	Date         time.Time
	CashPerShare float64
}

// Qualifies reports whether the record counts toward dividend continuity.
func (d DividendRecord) Qualifies() bool { return d.CashPerShare > 0 }

// BenchmarkPoint is one close of a benchmark index.
type BenchmarkPoint struct {
	Date  time.Time
	Close float64
}

// Well-known benchmark index codes.
const (
	IndexCSI300  = "sh.000300"
	IndexCSI500  = "sh.000905"
	IndexCSI1000 = "sh.000852"
)

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

// Holding is an open position. EntryPrice is the fill price of the first
// acquisition and drives stop-loss and take-profit math; AvgCost is the
// weighted average of all buys.
type Holding struct {
	Code          string
	Name          string
	Shares        int64
	AvgCost       float64
	EntryPrice    float64
	LastTradeDate time.Time
	MarkPrice     float64
}

// Value returns the position value at its mark price.
func (h Holding) Value() float64 { return float64(h.Shares) * h.MarkPrice }

// ---------------------------------------------------------------------------
// Output records
// ---------------------------------------------------------------------------

// TradeAction identifies the kind of fill recorded in the trade ledger.
type TradeAction string

const (
	ActionBuy     TradeAction = "buy"
	ActionSell    TradeAction = "sell"
	ActionSellAll TradeAction = "sell_all"
)

// Trade is one executed fill.
type Trade struct {
	Date            time.Time   `json:"date"`
	Code            string      `json:"code"`
	Name            string      `json:"name"`
	Action          TradeAction `json:"action"`
	Price           float64     `json:"price"`
	Shares          int64       `json:"shares"`
	Amount          float64     `json:"amount"`
	Fee             float64     `json:"fee"`
	ResultingShares int64       `json:"resultingShares"`
	ResultingCash   float64     `json:"resultingCash"`
	Reason          string      `json:"reason"`
}

// DailyRecord is the end-of-day valuation of the portfolio.
type DailyRecord struct {
	Date                time.Time `json:"date"`
	Cash                float64   `json:"cash"`
	PositionValue       float64   `json:"positionValue"`
	TotalAsset          float64   `json:"totalAsset"`
	CumulativeReturnPct float64   `json:"cumulativeReturnPct"`
}

// AnnualStats summarises one calendar year of daily records.
type AnnualStats struct {
	Year         int     `json:"year"`
	AnnualReturn float64 `json:"annualReturn"`
	MaxReturn    float64 `json:"maxReturn"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	TradingDays  int     `json:"tradingDays"`
	StartAsset   float64 `json:"startAsset"`
	EndAsset     float64 `json:"endAsset"`
}
