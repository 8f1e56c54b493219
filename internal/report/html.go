package report

import (
	"fmt"
	"html/template"
	"io"

	"ashare/internal/domain"
)

// Page is the data behind the equity-curve HTML report.
type Page struct {
	Title       string
	Summary     Summary
	Granularity Granularity
	Dates       []string
	Strategy    []float64
	Benchmarks  []Series
	Annual      []domain.AnnualStats
}

type dataset struct {
	Label       string     `json:"label"`
	Data        []*float64 `json:"data"`
	BorderColor string     `json:"borderColor"`
	BorderWidth int        `json:"borderWidth"`
	PointRadius int        `json:"pointRadius"`
	SpanGaps    bool       `json:"spanGaps"`
	Fill        bool       `json:"fill"`
}

var palette = []string{"#d62728", "#1f77b4", "#2ca02c", "#ff7f0e", "#9467bd"}

func (p Page) datasets() []dataset {
	strategy := make([]*float64, len(p.Strategy))
	for i := range p.Strategy {
		strategy[i] = &p.Strategy[i]
	}
	out := []dataset{{Label: "strategy", Data: strategy, BorderColor: palette[0], BorderWidth: 2}}
	for i, s := range p.Benchmarks {
		out = append(out, dataset{
			Label:       s.Name,
			Data:        s.Values,
			BorderColor: palette[(i+1)%len(palette)],
			BorderWidth: 1,
			SpanGaps:    true,
		})
	}
	return out
}

var pageTmpl = template.Must(template.New("equity").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"window": func(s Summary) string {
		return s.Start.Format(domain.DateLayout) + " ~ " + s.End.Format(domain.DateLayout)
	},
}).Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4"></script>
<style>
body { font-family: -apple-system, "Segoe UI", "PingFang SC", sans-serif; margin: 24px; color: #222; }
table { border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #ccc; padding: 4px 12px; text-align: right; }
th { background: #f4f4f4; }
.summary td:first-child { text-align: left; }
</style>
</head>
<body>
<h2>{{.Title}}</h2>
<table class="summary">
<tr><td>Window</td><td>{{window .Summary}}</td></tr>
<tr><td>Trading days</td><td>{{.Summary.TradingDays}}</td></tr>
<tr><td>Initial capital</td><td>{{money .Summary.InitialCapital}}</td></tr>
<tr><td>Final asset</td><td>{{money .Summary.FinalAsset}}</td></tr>
<tr><td>Total return (%)</td><td>{{money .Summary.TotalReturn}}</td></tr>
<tr><td>Annualized return (%)</td><td>{{money .Summary.AnnualizedReturn}}</td></tr>
<tr><td>Max drawdown (%)</td><td>{{money .Summary.MaxDrawdown}}</td></tr>
<tr><td>Sharpe</td><td>{{money .Summary.Sharpe}}</td></tr>
</table>
<h3>Cumulative return (%), {{.Granularity}}</h3>
<canvas id="equity" height="110"></canvas>
<h3>Annual statistics</h3>
<table>
<tr><th>Year</th><th>Return (%)</th><th>Max return (%)</th><th>Max drawdown (%)</th><th>Days</th></tr>
{{range .Annual}}<tr><td>{{.Year}}</td><td>{{money .AnnualReturn}}</td><td>{{money .MaxReturn}}</td><td>{{money .MaxDrawdown}}</td><td>{{.TradingDays}}</td></tr>
{{end}}</table>
<script>
new Chart(document.getElementById("equity"), {
  type: "line",
  data: { labels: {{.Dates}}, datasets: {{.Datasets}} },
  options: { interaction: { mode: "index", intersect: false }, scales: { y: { ticks: { callback: v => v + "%" } } } }
});
</script>
</body>
</html>
`))

// RenderHTML writes the equity-curve page for p.
func RenderHTML(w io.Writer, p Page) error {
	data := struct {
		Page
		Datasets []dataset
	}{p, p.datasets()}
	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render equity page: %w", err)
	}
	return nil
}
