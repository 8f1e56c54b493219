package strategy

import (
	"math"
	"sort"

	"ashare/internal/domain"
)

// Ranked is a candidate with its per-metric rank positions (1 = best) and
// their sum.
type Ranked struct {
	Quote     domain.DailyQuote
	PSRank    int
	PERank    int
	YieldRank int
	Score     int
}

// Ranker orders candidates by rank-sum and keeps the best K.
type Ranker struct {
	topK int
}

// NewRanker creates a Ranker returning at most topK targets.
func NewRanker(topK int) *Ranker {
	return &Ranker{topK: topK}
}

// Rank scores candidates and returns the top K in ascending score order.
// Ties keep input order. The input slice is not modified.
func (r *Ranker) Rank(candidates []domain.DailyQuote) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, q := range candidates {
		out[i].Quote = q
	}

	assign := func(key func(domain.DailyQuote) float64, set func(*Ranked, int)) {
		order := make([]int, len(candidates))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return key(candidates[order[a]]) < key(candidates[order[b]])
		})
		for pos, i := range order {
			set(&out[i], pos+1)
		}
	}

	assign(func(q domain.DailyQuote) float64 { return ascending(q.PsPercentile1Y) },
		func(rk *Ranked, n int) { rk.PSRank = n })
	assign(func(q domain.DailyQuote) float64 { return ascending(q.PePercentile1Y) },
		func(rk *Ranked, n int) { rk.PERank = n })
	assign(func(q domain.DailyQuote) float64 { return ascending(negate(q.DividendYield)) },
		func(rk *Ranked, n int) { rk.YieldRank = n })

	for i := range out {
		out[i].Score = out[i].PSRank + out[i].PERank + out[i].YieldRank
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score < out[b].Score })

	if len(out) > r.topK {
		out = out[:r.topK]
	}
	return out
}

// ascending maps a missing value to +Inf so it sorts last.
func ascending(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}

func negate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := -*v
	return &n
}
