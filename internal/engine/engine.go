// Package engine is the trading state machine of a backtest: it owns the
// portfolio and the cooldown book, applies sell, stop and buy rules once per
// session and emits the resulting fills.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"ashare/internal/config"
	"ashare/internal/domain"
)

// Market is the read side of the market view that execution needs.
type Market interface {
	QuoteAt(code string, day int) (domain.DailyQuote, bool)
	Security(code string) (domain.Security, bool)
}

// Engine applies the daily rule sequence to a Portfolio:
//
//  1. valuation sells
//  2. forced exits for ST and sub-floor prices
//  3. stop-loss and take-profit
//  4. buys from the ranked target set
//
// Sizing uses the portfolio value taken once at the start of each Step.
type Engine struct {
	cfg        config.Execution
	initial    float64
	commission CommissionModel
	risk       *RiskManager
	portfolio  *Portfolio
	cooldowns  *cooldownBook
	log        zerolog.Logger
}

// NewEngine creates an Engine holding the configured initial capital.
func NewEngine(cfg config.Backtest, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:        cfg.Execution,
		initial:    cfg.InitialCapital,
		commission: NewCommissionModel(cfg.Commission),
		risk:       NewRiskManager(cfg.Execution),
		portfolio:  NewPortfolio(cfg.InitialCapital),
		cooldowns:  newCooldownBook(),
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Portfolio exposes the portfolio for reads.
func (e *Engine) Portfolio() *Portfolio { return e.portfolio }

// ForbiddenUntil returns the first session index at which code may be bought
// again, if a ban is active.
func (e *Engine) ForbiddenUntil(code string) (int, bool) {
	return e.cooldowns.forbiddenUntil(code)
}

// StopBuy reports whether accumulation of code is suspended.
func (e *Engine) StopBuy(code string) bool { return e.cooldowns.isStopBuy(code) }

// session carries the per-Step context.
type session struct {
	m      Market
	idx    int
	day    time.Time
	total  float64
	trades []domain.Trade
}

// Step runs one session at calendar index idx (dated day) against the ranked
// target codes and returns the fills made.
func (e *Engine) Step(m Market, idx int, day time.Time, targets []string) []domain.Trade {
	e.cooldowns.expire(idx)
	for _, code := range e.portfolio.Codes() {
		if q, ok := m.QuoteAt(code, idx); ok && q.Close > 0 {
			e.portfolio.mark(code, q.Close)
		}
	}

	s := &session{m: m, idx: idx, day: day, total: e.portfolio.TotalValue()}
	e.valuationSells(s)
	e.forcedExits(s)
	e.stopRules(s)
	e.buys(s, targets)
	return s.trades
}

// Snapshot values the portfolio at its current marks.
func (e *Engine) Snapshot(day time.Time) domain.DailyRecord {
	pos := e.portfolio.PositionValue()
	total := e.portfolio.Cash() + pos
	var ret float64
	if e.initial > 0 {
		ret = (total - e.initial) / e.initial * 100
	}
	return domain.DailyRecord{
		Date:                day,
		Cash:                e.portfolio.Cash(),
		PositionValue:       pos,
		TotalAsset:          total,
		CumulativeReturnPct: ret,
	}
}

// ---------------------------------------------------------------------------
// Rule steps
// ---------------------------------------------------------------------------

func (e *Engine) valuationSells(s *session) {
	for _, code := range e.portfolio.Codes() {
		q, ok := s.m.QuoteAt(code, s.idx)
		if !ok || !e.risk.ValuationStretched(q.PePercentile1Y, q.PsPercentile1Y) {
			continue
		}
		if _, forced := e.forcedReason(q); forced {
			continue // forcedExits sells and bans these
		}
		if !e.cooldowns.intervalElapsed(code, s.idx, e.cfg.TradeIntervalDays) {
			e.skip(s, code, "valuation sell within trade interval")
			continue
		}
		reason := fmt.Sprintf("valuation: pe_pct %s ps_pct %s above %.0f",
			pct(q.PePercentile1Y), pct(q.PsPercentile1Y), e.cfg.ValuationSellPercentile)
		e.sellSlice(s, code, q.Close, reason)
	}
}

func (e *Engine) forcedExits(s *session) {
	for _, code := range e.portfolio.Codes() {
		q, ok := s.m.QuoteAt(code, s.idx)
		if !ok {
			continue
		}
		reason, forced := e.forcedReason(q)
		if !forced {
			continue
		}
		if e.liquidate(s, code, q.Close, reason) {
			e.cooldowns.forbid(code, PermanentBan)
		}
	}
}

// forcedReason reports whether q must be exited and banned for good.
func (e *Engine) forcedReason(q domain.DailyQuote) (string, bool) {
	switch {
	case q.IsST:
		return "forced: st", true
	case q.Close < e.cfg.MinPrice:
		return fmt.Sprintf("forced: close %.2f below %.2f", q.Close, e.cfg.MinPrice), true
	}
	return "", false
}

func (e *Engine) stopRules(s *session) {
	for _, code := range e.portfolio.Codes() {
		q, ok := s.m.QuoteAt(code, s.idx)
		if !ok {
			continue
		}
		h, _ := e.portfolio.Holding(code)
		action, pnl := e.risk.Evaluate(h.EntryPrice, q.Close)
		reason := fmt.Sprintf("%s: pnl %.2f%%", action, pnl*100)

		switch action {
		case StopTakeProfit, StopLoss:
			if e.liquidate(s, code, q.Close, reason) {
				e.cooldowns.forbid(code, s.idx+e.risk.Cooldown(action))
			}
		case StopTrim:
			if !e.cooldowns.intervalElapsed(code, s.idx, e.cfg.TradeIntervalDays) {
				e.skip(s, code, "take-profit within trade interval")
				continue
			}
			e.sellSlice(s, code, q.Close, reason)
		case StopHalt:
			if e.cooldowns.setStopBuy(code) {
				e.log.Debug().Str("code", code).Float64("pnl", pnl).Msg("stop buy")
			}
		}
	}
}

func (e *Engine) buys(s *session, targets []string) {
	for _, code := range targets {
		switch {
		case e.cooldowns.isForbidden(code, s.idx):
			e.skip(s, code, "buy forbidden")
			continue
		case e.cooldowns.isStopBuy(code):
			e.skip(s, code, "stop buy")
			continue
		case !e.cooldowns.intervalElapsed(code, s.idx, e.cfg.TradeIntervalDays):
			e.skip(s, code, "buy within trade interval")
			continue
		}

		q, ok := s.m.QuoteAt(code, s.idx)
		if !ok || q.Close <= 0 {
			e.skip(s, code, "no quote")
			continue
		}
		price := q.Close

		var held int64
		if h, ok := e.portfolio.Holding(code); ok {
			held = h.Shares
		}
		if !e.risk.WithinCap(float64(held)*price, s.total) {
			e.skip(s, code, "position cap reached")
			continue
		}

		shares := e.lots(s.total*e.cfg.TradePct, price)
		if shares == 0 {
			e.skip(s, code, "buy size below one lot")
			continue
		}
		fee := e.commission.Fee(shares, price)
		if e.portfolio.Cash() < float64(shares)*price+fee {
			e.skip(s, code, "insufficient cash")
			continue
		}

		name := code
		if sec, ok := s.m.Security(code); ok && sec.Name != "" {
			name = sec.Name
		}
		h, err := e.portfolio.buy(code, name, shares, price, fee, s.day)
		if err != nil {
			e.skip(s, code, err.Error())
			continue
		}
		e.cooldowns.recordTrade(code, s.idx)
		e.record(s, domain.Trade{
			Date:            s.day,
			Code:            code,
			Name:            name,
			Action:          domain.ActionBuy,
			Price:           price,
			Shares:          shares,
			Amount:          float64(shares) * price,
			Fee:             fee,
			ResultingShares: h.Shares,
			ResultingCash:   e.portfolio.Cash(),
			Reason:          "target",
		})
	}
}

// ---------------------------------------------------------------------------
// Fills
// ---------------------------------------------------------------------------

// sellSlice sells one trade-sized slice of code, lot-rounded down. A holding
// smaller than a lot, or a slice that would leave less than a lot, is sold
// in full.
func (e *Engine) sellSlice(s *session, code string, price float64, reason string) {
	h, ok := e.portfolio.Holding(code)
	if !ok || price <= 0 {
		return
	}
	lot := e.cfg.LotSize

	var shares int64
	if h.Shares < lot {
		shares = h.Shares
	} else {
		shares = e.lots(s.total*e.cfg.TradePct, price)
		if shares == 0 {
			e.skip(s, code, "sell size below one lot")
			return
		}
		if shares >= h.Shares || h.Shares-shares < lot {
			shares = h.Shares
		}
	}
	e.sell(s, code, shares, price, reason)
}

// liquidate sells the whole holding of code. It reports whether the sale
// happened.
func (e *Engine) liquidate(s *session, code string, price float64, reason string) bool {
	h, ok := e.portfolio.Holding(code)
	if !ok {
		return false
	}
	if price <= 0 {
		e.log.Warn().Str("code", code).Float64("price", price).Msg("cannot liquidate at non-positive price")
		return false
	}
	return e.sell(s, code, h.Shares, price, reason)
}

func (e *Engine) sell(s *session, code string, shares int64, price float64, reason string) bool {
	h, _ := e.portfolio.Holding(code)
	fee := e.commission.Fee(-shares, price)
	remaining, err := e.portfolio.sell(code, shares, price, fee, s.day)
	if err != nil {
		e.log.Warn().Err(err).Str("code", code).Msg("sell rejected")
		return false
	}

	action := domain.ActionSell
	if remaining == 0 {
		action = domain.ActionSellAll
		e.cooldowns.clearStopBuy(code)
	}
	e.cooldowns.recordTrade(code, s.idx)
	e.record(s, domain.Trade{
		Date:            s.day,
		Code:            code,
		Name:            h.Name,
		Action:          action,
		Price:           price,
		Shares:          shares,
		Amount:          float64(shares) * price,
		Fee:             fee,
		ResultingShares: remaining,
		ResultingCash:   e.portfolio.Cash(),
		Reason:          reason,
	})
	return true
}

func (e *Engine) record(s *session, t domain.Trade) {
	s.trades = append(s.trades, t)
	e.log.Info().
		Str("date", t.Date.Format(domain.DateLayout)).
		Str("code", t.Code).
		Str("action", string(t.Action)).
		Int64("shares", t.Shares).
		Float64("price", t.Price).
		Float64("fee", t.Fee).
		Str("reason", t.Reason).
		Msg("trade")
}

func (e *Engine) skip(s *session, code, why string) {
	e.log.Debug().Str("date", s.day.Format(domain.DateLayout)).Str("code", code).Msg(why)
}

// lots converts a notional into a whole number of lots at price.
func (e *Engine) lots(notional, price float64) int64 {
	if price <= 0 || notional <= 0 {
		return 0
	}
	lot := float64(e.cfg.LotSize)
	n := math.Floor(notional/price/lot + 1e-9)
	return int64(n) * e.cfg.LotSize
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}
