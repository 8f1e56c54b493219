package util

import (
	"sort"
	"time"

	"ashare/internal/domain"
)

// TradingCalendar is an ordered, duplicate-free sequence of trading sessions.
// Positions in the sequence are the unit of all interval and cooldown
// arithmetic, so weekends and holidays never count toward a wait.
type TradingCalendar struct {
	days  []time.Time
	index map[time.Time]int
}

// NewTradingCalendar normalises days to UTC midnight, sorts them and drops
// duplicates.
func NewTradingCalendar(days []time.Time) *TradingCalendar {
	norm := make([]time.Time, 0, len(days))
	for _, d := range days {
		norm = append(norm, domain.Day(d))
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i].Before(norm[j]) })

	tc := &TradingCalendar{
		days:  norm[:0],
		index: make(map[time.Time]int, len(norm)),
	}
	for _, d := range norm {
		if _, dup := tc.index[d]; dup {
			continue
		}
		tc.index[d] = len(tc.days)
		tc.days = append(tc.days, d)
	}
	return tc
}

// Len returns the number of sessions.
func (tc *TradingCalendar) Len() int { return len(tc.days) }

// Day returns the session at position i.
func (tc *TradingCalendar) Day(i int) time.Time { return tc.days[i] }

// Days returns a copy of all sessions in order.
func (tc *TradingCalendar) Days() []time.Time {
	out := make([]time.Time, len(tc.days))
	copy(out, tc.days)
	return out
}

// IndexOf returns the position of t, or false if t is not a session.
func (tc *TradingCalendar) IndexOf(t time.Time) (int, bool) {
	i, ok := tc.index[domain.Day(t)]
	return i, ok
}

// IsTradingDay reports whether t is a session.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	_, ok := tc.IndexOf(t)
	return ok
}

// First returns the first session. The calendar must not be empty.
func (tc *TradingCalendar) First() time.Time { return tc.days[0] }

// Last returns the last session. The calendar must not be empty.
func (tc *TradingCalendar) Last() time.Time { return tc.days[len(tc.days)-1] }
