package strategy

import (
	"time"

	"ashare/internal/config"
	"ashare/internal/domain"
)

// Universe is the read side of the market view that selection needs.
type Universe interface {
	AllQuotes(day time.Time) []domain.DailyQuote
	Security(code string) (domain.Security, bool)
	HasDividendLastNYears(code string, day time.Time, n int) bool
}

// Reason names the first eligibility predicate a quote failed.
type Reason int

const (
	ReasonNotListed Reason = iota
	ReasonListingAge
	ReasonST
	ReasonPrice
	ReasonMarketCap
	ReasonPE
	ReasonDividendYield
	ReasonPEPercentile
	ReasonPSPercentile
	ReasonDividendHistory
	reasonCount
)

var reasonNames = [reasonCount]string{
	"not_listed",
	"listing_age",
	"st",
	"price",
	"market_cap",
	"pe_ttm",
	"dividend_yield",
	"pe_percentile",
	"ps_percentile",
	"dividend_history",
}

func (r Reason) String() string {
	if r < 0 || r >= reasonCount {
		return "unknown"
	}
	return reasonNames[r]
}

// Rejections counts rejected quotes per reason for one day.
type Rejections [reasonCount]int

// Total returns the number of rejected quotes.
func (r Rejections) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Map returns the non-zero counters keyed by reason name.
func (r Rejections) Map() map[string]int {
	out := make(map[string]int)
	for i, c := range r {
		if c > 0 {
			out[Reason(i).String()] = c
		}
	}
	return out
}

// Selector filters a day's quotes down to the eligible candidate set.
type Selector struct {
	cfg config.Selection
}

// NewSelector creates a Selector with the given thresholds.
func NewSelector(cfg config.Selection) *Selector {
	return &Selector{cfg: cfg}
}

// Check evaluates the eligibility predicates in order and returns the first
// that fails. A missing metric fails its predicate.
func (s *Selector) Check(u Universe, q domain.DailyQuote) (Reason, bool) {
	sec, ok := u.Security(q.Code)
	if !ok || !sec.ListedOn(q.Date) {
		return ReasonNotListed, false
	}
	minAge := time.Duration(s.cfg.ListingYears) * 365 * 24 * time.Hour
	if q.Date.Sub(sec.ListingDate) < minAge {
		return ReasonListingAge, false
	}
	if q.IsST {
		return ReasonST, false
	}
	if q.Close < s.cfg.MinPrice {
		return ReasonPrice, false
	}
	if q.TotalMarketValue == nil || *q.TotalMarketValue < s.cfg.MarketCapFloor {
		return ReasonMarketCap, false
	}
	if q.PeTTM == nil || *q.PeTTM > s.cfg.PECeiling {
		return ReasonPE, false
	}
	if q.DividendYield == nil || *q.DividendYield < s.cfg.DividendYieldFloor {
		return ReasonDividendYield, false
	}
	if q.PePercentile1Y == nil || *q.PePercentile1Y > s.cfg.PEPercentileCeiling {
		return ReasonPEPercentile, false
	}
	if q.PsPercentile1Y == nil || *q.PsPercentile1Y > s.cfg.PSPercentileCeiling {
		return ReasonPSPercentile, false
	}
	if !u.HasDividendLastNYears(q.Code, q.Date, s.cfg.DividendYears) {
		return ReasonDividendHistory, false
	}
	return 0, true
}

// Select returns a new slice of the quotes on day that pass every
// predicate, in the universe's order, along with per-reason rejection counts.
func (s *Selector) Select(u Universe, day time.Time) ([]domain.DailyQuote, Rejections) {
	var (
		rej        Rejections
		candidates []domain.DailyQuote
	)
	for _, q := range u.AllQuotes(day) {
		if reason, ok := s.Check(u, q); !ok {
			rej[reason]++
			continue
		}
		candidates = append(candidates, q)
	}
	return candidates, rej
}
