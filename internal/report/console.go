package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"ashare/internal/domain"
)

// PrintSummary writes the headline metrics and the per-year table to w.
func PrintSummary(w io.Writer, s Summary, annual []domain.AnnualStats) {
	fmt.Fprintf(w, "\n  %s ~ %s (%d trading days, %d without data)\n\n",
		s.Start.Format(domain.DateLayout), s.End.Format(domain.DateLayout), s.TradingDays, s.IdleDays)

	tbl := tablewriter.NewWriter(w)
	tbl.Header("Metric", "Value")
	tbl.Append("Initial capital", fmt.Sprintf("%.2f", s.InitialCapital))
	tbl.Append("Final asset", fmt.Sprintf("%.2f", s.FinalAsset))
	tbl.Append("Total return", fmt.Sprintf("%.2f%%", s.TotalReturn))
	tbl.Append("Annualized return", fmt.Sprintf("%.2f%%", s.AnnualizedReturn))
	tbl.Append("Max drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown))
	tbl.Append("Volatility", fmt.Sprintf("%.2f%%", s.Volatility))
	tbl.Append("Sharpe", fmt.Sprintf("%.2f", s.Sharpe))
	tbl.Append("Trades (buy/sell/sell_all)", fmt.Sprintf("%d/%d/%d", s.Buys, s.Sells, s.SellAlls))
	tbl.Append("Fees", fmt.Sprintf("%.2f", s.TotalFees))
	tbl.Append("Open positions", fmt.Sprintf("%d", s.OpenPositions))
	tbl.Render()

	if len(annual) == 0 {
		return
	}
	fmt.Fprintln(w)
	yt := tablewriter.NewWriter(w)
	yt.Header("Year", "Return", "Max return", "Max drawdown", "Days")
	for _, a := range annual {
		yt.Append(
			fmt.Sprintf("%d", a.Year),
			fmt.Sprintf("%.2f%%", a.AnnualReturn),
			fmt.Sprintf("%.2f%%", a.MaxReturn),
			fmt.Sprintf("%.2f%%", a.MaxDrawdown),
			fmt.Sprintf("%d", a.TradingDays),
		)
	}
	yt.Render()
}
