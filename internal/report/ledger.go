package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ashare/internal/domain"
)

var (
	tradeHeader = []string{
		"date", "code", "name", "action", "price", "shares", "amount",
		"fee", "resulting_shares", "resulting_cash", "reason",
	}
	dailyHeader = []string{
		"date", "cash", "position_value", "total_asset", "cumulative_return_pct",
	}
)

// WriteTrades writes the trade ledger as CSV, one row per fill.
func WriteTrades(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("write trade header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.Date.Format(domain.DateLayout),
			t.Code,
			t.Name,
			string(t.Action),
			money(t.Price),
			strconv.FormatInt(t.Shares, 10),
			money(t.Amount),
			money(t.Fee),
			strconv.FormatInt(t.ResultingShares, 10),
			money(t.ResultingCash),
			t.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trade %s %s: %w", row[0], t.Code, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDaily writes the daily valuation ledger as CSV.
func WriteDaily(w io.Writer, daily []domain.DailyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dailyHeader); err != nil {
		return fmt.Errorf("write daily header: %w", err)
	}
	for _, d := range daily {
		row := []string{
			d.Date.Format(domain.DateLayout),
			money(d.Cash),
			money(d.PositionValue),
			money(d.TotalAsset),
			money(d.CumulativeReturnPct),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write daily %s: %w", row[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
