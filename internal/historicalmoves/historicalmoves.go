// Package historicalmoves owns the durable HistoricalMove table: the
// append-mostly per-ticker earnings reaction history that supplies the
// tracked universe and historical move distributions the VRP engine
// needs.
package historicalmoves

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/ticker"
)

// Move is one observed earnings reaction for a ticker.
type Move struct {
	Ticker          string
	EarningsDate    string // YYYY-MM-DD
	PreClose        float64
	PostOpen        float64
	MovePct         float64
	IntradayMovePct float64
}

// Store owns the HistoricalMove table exclusively.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New builds a Store backed by db.
func New(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "historicalmoves").Logger()}
}

// Upsert replaces the row for (ticker, earnings_date).
func (s *Store) Upsert(ctx context.Context, m Move) error {
	tk, err := ticker.Normalize(m.Ticker)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO historical_moves (ticker, earnings_date, pre_close, post_open, move_pct, recorded_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(ticker, earnings_date) DO UPDATE SET
		   pre_close = excluded.pre_close,
		   post_open = excluded.post_open,
		   move_pct = excluded.move_pct,
		   recorded_at = excluded.recorded_at`,
		tk, m.EarningsDate, m.PreClose, m.PostOpen, m.MovePct)
	if err != nil {
		return fmt.Errorf("upsert historical move for %s/%s: %w", tk, m.EarningsDate, err)
	}
	return nil
}

// Moves returns every recorded move for tickerSymbol, newest-first.
func (s *Store) Moves(ctx context.Context, tickerSymbol string) ([]Move, error) {
	tk, err := ticker.Normalize(tickerSymbol)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, earnings_date, pre_close, post_open, move_pct
		 FROM historical_moves WHERE ticker = ? ORDER BY earnings_date DESC`, tk)
	if err != nil {
		return nil, fmt.Errorf("query moves for %s: %w", tk, err)
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		var m Move
		if err := rows.Scan(&m.Ticker, &m.EarningsDate, &m.PreClose, &m.PostOpen, &m.MovePct); err != nil {
			return nil, fmt.Errorf("scan historical move: %w", err)
		}
		m.IntradayMovePct = math.Abs(m.MovePct)
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// AverageIntradayMove returns the mean of |intraday_move_pct| across
// Moves(tickerSymbol), or ok=false if fewer than minCount observations
// exist.
func (s *Store) AverageIntradayMove(ctx context.Context, tickerSymbol string, minCount int) (avg float64, ok bool, err error) {
	moves, err := s.Moves(ctx, tickerSymbol)
	if err != nil {
		return 0, false, err
	}
	if len(moves) < minCount {
		return 0, false, nil
	}

	abs := make([]float64, len(moves))
	for i, m := range moves {
		abs[i] = math.Abs(m.MovePct)
	}

	return stat.Mean(abs, nil), true, nil
}

// AbsHistory returns |move_pct| for every recorded move, newest-first,
// the slice shape the VRP engine consumes directly.
func (s *Store) AbsHistory(ctx context.Context, tickerSymbol string) ([]float64, error) {
	moves, err := s.Moves(ctx, tickerSymbol)
	if err != nil {
		return nil, err
	}
	abs := make([]float64, len(moves))
	for i, m := range moves {
		abs[i] = math.Abs(m.MovePct)
	}
	return abs, nil
}

// Consistency derives a [0,1] proxy for reaction-size consistency from
// the coefficient of variation of the historical |move_pct| series:
// tight, repeatable reactions score near 1; erratic ones score near 0.
// ok is false with fewer than minCount observations or a zero mean.
func (s *Store) Consistency(ctx context.Context, tickerSymbol string, minCount int) (score float64, ok bool, err error) {
	abs, err := s.AbsHistory(ctx, tickerSymbol)
	if err != nil {
		return 0, false, err
	}
	if len(abs) < minCount {
		return 0, false, nil
	}

	mean := stat.Mean(abs, nil)
	if mean == 0 {
		return 0, false, nil
	}
	stddev := stat.StdDev(abs, nil)

	cv := stddev / mean
	score = 1 - cv
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true, nil
}

// TrackedUniverse returns the distinct set of tickers with recorded
// history — the whitelist every pipeline stage filters against.
func (s *Store) TrackedUniverse(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM historical_moves`)
	if err != nil {
		return nil, fmt.Errorf("query tracked universe: %w", err)
	}
	defer rows.Close()

	universe := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		universe[t] = struct{}{}
	}
	return universe, rows.Err()
}

// TrackedUniverseSorted returns the tracked universe as a sorted slice,
// convenient for deterministic test assertions and log output.
func (s *Store) TrackedUniverseSorted(ctx context.Context) ([]string, error) {
	universe, err := s.TrackedUniverse(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(universe))
	for t := range universe {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
