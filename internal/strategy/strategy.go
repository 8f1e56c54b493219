// Package strategy implements the dividend-value stock picking rules: the
// per-day eligibility filter and the rank-sum target set.
package strategy

import (
	"time"

	"ashare/internal/config"
)

// Picker chains selection and ranking into the day's target set.
type Picker struct {
	selector *Selector
	ranker   *Ranker
}

// NewPicker creates a Picker from the backtest parameters.
func NewPicker(cfg config.Backtest) *Picker {
	return &Picker{
		selector: NewSelector(cfg.Selection),
		ranker:   NewRanker(cfg.Ranking.TopK),
	}
}

// Targets returns the ranked target set for day together with the reasons
// the other quotes were rejected.
func (p *Picker) Targets(u Universe, day time.Time) ([]Ranked, Rejections) {
	candidates, rej := p.selector.Select(u, day)
	return p.ranker.Rank(candidates), rej
}
