// Package gather copies market data between stores.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range is non-empty.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.Before(r.Start)
}

// Years returns each calendar year the range touches, in order.
func (r DateRange) Years() []int {
	if !r.Valid() {
		return nil
	}
	years := make([]int, 0, r.End.Year()-r.Start.Year()+1)
	for y := r.Start.Year(); y <= r.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// Clip returns the part of the range that falls inside year.
func (r DateRange) Clip(year int) DateRange {
	out := DateRange{
		Start: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	if r.Start.After(out.Start) {
		out.Start = r.Start
	}
	if r.End.Before(out.End) {
		out.End = r.End
	}
	return out
}
