// Package earningscalendar owns the EarningsCalendar table: a local
// cache of upcoming earnings events fetched from the calendar vendor,
// consulted so job runs don't re-fetch the same horizon on every tick.
package earningscalendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/ticker"
)

// Session is the reporting time-of-day, when known.
type Session string

const (
	BeforeMarket Session = "before_market"
	AfterMarket  Session = "after_market"
	Unknown      Session = "unknown"
)

// Event is one cached earnings calendar row.
type Event struct {
	Ticker       string
	EarningsDate string // YYYY-MM-DD
	Session      Session
	Confirmed    bool
	FetchedAt    time.Time
}

// Store owns the EarningsCalendar table exclusively.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New builds a Store backed by db.
func New(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "earningscalendar").Logger()}
}

// Upsert replaces the row for (ticker, earnings_date).
func (s *Store) Upsert(ctx context.Context, e Event) error {
	tk, err := ticker.Normalize(e.Ticker)
	if err != nil {
		return err
	}

	confirmed := 0
	if e.Confirmed {
		confirmed = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO earnings_calendar (ticker, earnings_date, session, confirmed, fetched_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(ticker, earnings_date) DO UPDATE SET
		   session = excluded.session,
		   confirmed = excluded.confirmed,
		   fetched_at = excluded.fetched_at`,
		tk, e.EarningsDate, string(e.Session), confirmed)
	if err != nil {
		return fmt.Errorf("upsert earnings event for %s/%s: %w", tk, e.EarningsDate, err)
	}
	return nil
}

// Upcoming returns every cached event whose date falls within
// [from, from+days], sorted by date then ticker.
func (s *Store) Upcoming(ctx context.Context, from time.Time, days int) ([]Event, error) {
	to := from.AddDate(0, 0, days)

	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, earnings_date, session, confirmed, fetched_at FROM earnings_calendar
		 WHERE earnings_date >= ? AND earnings_date <= ?`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query upcoming earnings: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var sessionStr, fetchedAtStr string
		var confirmed int
		if err := rows.Scan(&e.Ticker, &e.EarningsDate, &sessionStr, &confirmed, &fetchedAtStr); err != nil {
			return nil, fmt.Errorf("scan earnings event: %w", err)
		}
		e.Session = Session(sessionStr)
		e.Confirmed = confirmed != 0
		if parsed, err := time.Parse("2006-01-02 15:04:05", fetchedAtStr); err == nil {
			e.FetchedAt = parsed
		}
		events = append(events, e)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].EarningsDate != events[j].EarningsDate {
			return events[i].EarningsDate < events[j].EarningsDate
		}
		return events[i].Ticker < events[j].Ticker
	})

	return events, rows.Err()
}
