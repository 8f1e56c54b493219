package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"ashare/internal/domain"
)

var (
	errInsufficientCash = errors.New("insufficient cash")
	errOversell         = errors.New("sell exceeds holding")
)

// Portfolio is the cash balance and open holdings of a run. Only the engine
// package mutates it.
type Portfolio struct {
	cash     float64
	holdings map[string]*domain.Holding
}

// NewPortfolio creates an all-cash portfolio.
func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{
		cash:     cash,
		holdings: make(map[string]*domain.Holding),
	}
}

// Cash returns the available cash.
func (p *Portfolio) Cash() float64 { return p.cash }

// Holding returns a copy of the holding for code.
func (p *Portfolio) Holding(code string) (domain.Holding, bool) {
	h, ok := p.holdings[code]
	if !ok {
		return domain.Holding{}, false
	}
	return *h, true
}

// Codes returns the held codes in ascending order.
func (p *Portfolio) Codes() []string {
	codes := make([]string, 0, len(p.holdings))
	for code := range p.holdings {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Holdings returns copies of all holdings ordered by code.
func (p *Portfolio) Holdings() []domain.Holding {
	out := make([]domain.Holding, 0, len(p.holdings))
	for _, code := range p.Codes() {
		out = append(out, *p.holdings[code])
	}
	return out
}

// PositionValue sums shares times mark price over all holdings. Codes are
// visited in sorted order so the float sum is reproducible.
func (p *Portfolio) PositionValue() float64 {
	var v float64
	for _, code := range p.Codes() {
		v += p.holdings[code].Value()
	}
	return v
}

// TotalValue returns cash plus position value.
func (p *Portfolio) TotalValue() float64 { return p.cash + p.PositionValue() }

// mark sets the mark price of a held code.
func (p *Portfolio) mark(code string, price float64) {
	if h, ok := p.holdings[code]; ok {
		h.MarkPrice = price
	}
}

// buy adds shares at price, debiting amount plus fee. The entry price is
// fixed by the first acquisition; later adds only move the average cost.
func (p *Portfolio) buy(code, name string, shares int64, price, fee float64, day time.Time) (*domain.Holding, error) {
	amount := float64(shares) * price
	if p.cash < amount+fee {
		return nil, fmt.Errorf("buying %d %s: %w", shares, code, errInsufficientCash)
	}
	p.cash -= amount + fee

	h, ok := p.holdings[code]
	if !ok {
		h = &domain.Holding{Code: code, Name: name, EntryPrice: price}
		p.holdings[code] = h
	}
	h.AvgCost = (float64(h.Shares)*h.AvgCost + amount) / float64(h.Shares+shares)
	h.Shares += shares
	h.MarkPrice = price
	h.LastTradeDate = day
	return h, nil
}

// sell removes shares at price, crediting amount minus fee. The holding is
// destroyed when no shares remain. It returns the remaining share count.
func (p *Portfolio) sell(code string, shares int64, price, fee float64, day time.Time) (int64, error) {
	h, ok := p.holdings[code]
	if !ok || shares > h.Shares {
		return 0, fmt.Errorf("selling %d %s: %w", shares, code, errOversell)
	}
	proceeds := float64(shares)*price - fee
	if p.cash+proceeds < 0 {
		return h.Shares, fmt.Errorf("selling %d %s: fee exceeds proceeds: %w", shares, code, errInsufficientCash)
	}
	p.cash += proceeds

	h.Shares -= shares
	h.MarkPrice = price
	h.LastTradeDate = day
	if h.Shares == 0 {
		delete(p.holdings, code)
		return 0, nil
	}
	return h.Shares, nil
}
