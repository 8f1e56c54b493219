package engine

import "math"

// PermanentBan is the until-index used for bans that outlive the run.
const PermanentBan = math.MaxInt

// cooldownBook tracks per-code buy suspensions and the session index of the
// last fill. All indices are positions in the trading calendar.
type cooldownBook struct {
	forbidden map[string]int // code -> first index at which buying is allowed again
	stopBuy   map[string]struct{}
	lastTrade map[string]int
}

func newCooldownBook() *cooldownBook {
	return &cooldownBook{
		forbidden: make(map[string]int),
		stopBuy:   make(map[string]struct{}),
		lastTrade: make(map[string]int),
	}
}

// forbid blocks buys of code before index until. An existing longer ban is
// kept.
func (c *cooldownBook) forbid(code string, until int) {
	if cur, ok := c.forbidden[code]; ok && cur >= until {
		return
	}
	c.forbidden[code] = until
}

func (c *cooldownBook) isForbidden(code string, day int) bool {
	until, ok := c.forbidden[code]
	return ok && day < until
}

func (c *cooldownBook) forbiddenUntil(code string) (int, bool) {
	until, ok := c.forbidden[code]
	return until, ok
}

// expire drops bans that no longer apply at day.
func (c *cooldownBook) expire(day int) {
	for code, until := range c.forbidden {
		if day >= until {
			delete(c.forbidden, code)
		}
	}
}

func (c *cooldownBook) setStopBuy(code string) bool {
	if _, ok := c.stopBuy[code]; ok {
		return false
	}
	c.stopBuy[code] = struct{}{}
	return true
}

func (c *cooldownBook) clearStopBuy(code string) { delete(c.stopBuy, code) }

func (c *cooldownBook) isStopBuy(code string) bool {
	_, ok := c.stopBuy[code]
	return ok
}

func (c *cooldownBook) recordTrade(code string, day int) { c.lastTrade[code] = day }

// intervalElapsed reports whether at least interval sessions have passed
// since the last fill of code.
func (c *cooldownBook) intervalElapsed(code string, day, interval int) bool {
	last, ok := c.lastTrade[code]
	return !ok || day-last >= interval
}
