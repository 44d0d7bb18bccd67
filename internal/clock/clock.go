// Package clock supplies the single authoritative notion of "now" and
// "today" in US-Eastern time, plus the trading-holiday calendar. Every
// time-of-day decision elsewhere in the service (scheduler fire times,
// budget-ledger date keys, "already reported today" filters) goes
// through this package so they can never drift relative to each other.
package clock

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Eastern is the IANA zone used throughout the service. Loaded once at
// package init; falls back to a fixed -5h offset if the zoneinfo
// database is unavailable in the runtime image.
var Eastern *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	Eastern = loc
}

// Clock wraps time.Now in the Eastern zone and holds the holiday table
// together with the logger for its unknown-year warning.
type Clock struct {
	log      zerolog.Logger
	mu       sync.RWMutex
	holidays map[int]map[string]struct{} // year -> set of "YYYY-MM-DD"
}

// New builds a Clock with the built-in holiday table.
func New(log zerolog.Logger) *Clock {
	c := &Clock{
		log:      log.With().Str("component", "clock").Logger(),
		holidays: defaultHolidays(),
	}
	return c
}

// Now returns the current instant projected into US-Eastern.
func (c *Clock) Now() time.Time {
	return time.Now().In(Eastern)
}

// Today returns the current calendar date in US-Eastern, time-of-day
// truncated to midnight.
func (c *Clock) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, Eastern)
}

// IsNonTradingDay reports whether d is a weekend or a configured
// US-market holiday. An unknown year never errors: it logs a warning
// and is treated as having no holidays (§9 open question, resolved as
// "treat as fully open, warn").
func (c *Clock) IsNonTradingDay(d time.Time) bool {
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return true
	}

	c.mu.RLock()
	yearSet, ok := c.holidays[d.Year()]
	c.mu.RUnlock()

	if !ok {
		c.log.Warn().Int("year", d.Year()).Msg("no holiday table for year, treating as fully open")
		return false
	}

	_, isHoliday := yearSet[d.Format("2006-01-02")]
	return isHoliday
}

// defaultHolidays returns the built-in NYSE holiday table for the years
// this service is expected to run across. Extend per-year as needed;
// an unlisted year is handled by IsNonTradingDay's warn-and-allow path.
func defaultHolidays() map[int]map[string]struct{} {
	return map[int]map[string]struct{}{
		2024: set(
			"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29",
			"2024-05-27", "2024-06-19", "2024-07-04", "2024-09-02",
			"2024-11-28", "2024-12-25",
		),
		2025: set(
			"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18",
			"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01",
			"2025-11-27", "2025-12-25",
		),
		2026: set(
			"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03",
			"2026-05-25", "2026-06-19", "2026-07-03", "2026-09-07",
			"2026-11-26", "2026-12-25",
		),
	}
}

func set(dates ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		m[d] = struct{}{}
	}
	return m
}
