// Package calendar is the ground truth for trading days. A Calendar is
// backed by a pre-fetched, sorted list of trading dates for one market,
// loaded once per process and consulted with binary search. Dates outside
// the known range fail closed: they are not trading days.
package calendar

import (
	"sort"
	"time"

	"github.com/qinvest/stocksim/pkg/models"
	"github.com/qinvest/stocksim/pkg/utils"
)

// Calendar answers trading-day queries for a single market.
// It is immutable after construction and safe for concurrent use.
type Calendar struct {
	market models.Market
	days   []time.Time // sorted, UTC midnight
}

// New builds a calendar from an explicit list of trading dates.
// The input is copied, normalized to UTC midnight, and sorted.
func New(market models.Market, days []time.Time) *Calendar {
	normalized := make([]time.Time, len(days))
	for i, d := range days {
		normalized[i] = utils.Midnight(d)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Before(normalized[j]) })
	return &Calendar{market: market, days: normalized}
}

// NewWeekday builds a Monday–Friday calendar covering [start, end].
// Useful for synthetic data and tests; real calendars should come from
// an exchange-published date list that includes holidays.
func NewWeekday(market models.Market, start, end time.Time) *Calendar {
	var days []time.Time
	for d := utils.Midnight(start); !d.After(utils.Midnight(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return New(market, days)
}

// Market returns the market this calendar covers.
func (c *Calendar) Market() models.Market { return c.market }

// search returns the index of the first trading day not before d.
func (c *Calendar) search(d time.Time) int {
	d = utils.Midnight(d)
	return sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(d) })
}

// IsTradingDay reports whether d is a known trading day.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	i := c.search(d)
	return i < len(c.days) && c.days[i].Equal(utils.Midnight(d))
}

// NextTradingDay returns the first trading day strictly after d.
// ok is false when no later trading day is known.
func (c *Calendar) NextTradingDay(d time.Time) (time.Time, bool) {
	i := c.search(d)
	if i < len(c.days) && c.days[i].Equal(utils.Midnight(d)) {
		i++
	}
	if i >= len(c.days) {
		return time.Time{}, false
	}
	return c.days[i], true
}

// PrevTradingDay returns the last trading day strictly before d.
// ok is false when no earlier trading day is known.
func (c *Calendar) PrevTradingDay(d time.Time) (time.Time, bool) {
	i := c.search(d)
	if i == 0 {
		return time.Time{}, false
	}
	return c.days[i-1], true
}

// TradingDaysBetween returns all trading days in [start, end] inclusive,
// in ascending order. The backtest orchestrator derives its iteration set
// from this; it never iterates calendar days directly.
func (c *Calendar) TradingDaysBetween(start, end time.Time) []time.Time {
	lo := c.search(start)
	hi := c.search(end)
	if hi < len(c.days) && c.days[hi].Equal(utils.Midnight(end)) {
		hi++
	}
	if lo >= hi {
		return nil
	}
	out := make([]time.Time, hi-lo)
	copy(out, c.days[lo:hi])
	return out
}

// Len returns the number of known trading days.
func (c *Calendar) Len() int { return len(c.days) }
