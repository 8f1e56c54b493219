package report

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"ashare/internal/backtest"
	"ashare/internal/config"
	"ashare/internal/store"
)

// RunRecord packages res for a RunStore. The parameter set is kept as YAML
// so a stored run can be replayed with the same config.
func RunRecord(name string, res *backtest.Result, params config.Backtest) (*store.Run, error) {
	raw, err := yaml.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding run parameters: %w", err)
	}
	s := Summarize(res)
	return &store.Run{
		RunSummary: store.RunSummary{
			Name:             name,
			CreatedAt:        time.Now().UTC(),
			Start:            res.Start,
			End:              res.End,
			InitialCapital:   res.InitialCapital,
			FinalAsset:       s.FinalAsset,
			TotalReturn:      s.TotalReturn,
			AnnualizedReturn: s.AnnualizedReturn,
			MaxDrawdown:      s.MaxDrawdown,
			Sharpe:           s.Sharpe,
			TradeCount:       len(res.Trades),
			Config:           string(raw),
		},
		Trades: res.Trades,
		Daily:  res.Daily,
		Annual: Annual(res.Daily),
	}, nil
}
