package engine

import (
	"ashare/internal/config"
)

// StopAction is the outcome of evaluating a holding against the stop rules.
type StopAction int

const (
	StopNone StopAction = iota
	// StopHalt suspends further buying of the code without selling.
	StopHalt
	// StopTrim sells one trade-sized slice to lock in profit.
	StopTrim
	// StopTakeProfit liquidates after the full profit target is reached.
	StopTakeProfit
	// StopLoss liquidates after the loss limit is breached.
	StopLoss
)

func (a StopAction) String() string {
	switch a {
	case StopHalt:
		return "stop-buy"
	case StopTrim:
		return "take-profit"
	case StopTakeProfit:
		return "take-profit-clear"
	case StopLoss:
		return "stop-loss"
	default:
		return "none"
	}
}

// RiskManager enforces the position cap and the stop-loss and take-profit
// ladder measured from a holding's entry price.
//
//   - pnl >= TakeProfitFull: liquidate, ban for TakeProfitCooldownDays
//   - pnl >= TakeProfitPartial: trim one slice
//   - pnl <= -StopLoss: liquidate, ban for StopLossCooldownDays
//   - pnl <= -StopBuy: stop adding
type RiskManager struct {
	cfg config.Execution
}

// NewRiskManager creates a RiskManager with the given thresholds.
func NewRiskManager(cfg config.Execution) *RiskManager {
	return &RiskManager{cfg: cfg}
}

// Evaluate classifies price against entry. A non-positive entry price yields
// StopNone.
func (rm *RiskManager) Evaluate(entry, price float64) (StopAction, float64) {
	if entry <= 0 {
		return StopNone, 0
	}
	pnl := (price - entry) / entry
	switch {
	case pnl >= rm.cfg.TakeProfitFull:
		return StopTakeProfit, pnl
	case pnl >= rm.cfg.TakeProfitPartial:
		return StopTrim, pnl
	case pnl <= -rm.cfg.StopLoss:
		return StopLoss, pnl
	case pnl <= -rm.cfg.StopBuy:
		return StopHalt, pnl
	}
	return StopNone, pnl
}

// Cooldown returns the ban length in sessions that follows a liquidating
// action.
func (rm *RiskManager) Cooldown(a StopAction) int {
	switch a {
	case StopTakeProfit:
		return rm.cfg.TakeProfitCooldownDays
	case StopLoss:
		return rm.cfg.StopLossCooldownDays
	}
	return 0
}

// WithinCap reports whether a position worth positionValue may still be
// added to when the portfolio is worth total.
func (rm *RiskManager) WithinCap(positionValue, total float64) bool {
	return positionValue < total*rm.cfg.PositionCapPct
}

// ValuationStretched reports whether either valuation percentile exceeds the
// sell threshold. Missing percentiles never trigger.
func (rm *RiskManager) ValuationStretched(pePct, psPct *float64) bool {
	limit := rm.cfg.ValuationSellPercentile
	return (pePct != nil && *pePct > limit) || (psPct != nil && *psPct > limit)
}
