// Package sentiment implements the Sentiment Cache + History component:
// a short-TTL hot lookup over a single row per (ticker, earnings_date),
// and a permanent history table joining pre-earnings predictions to
// post-earnings outcomes.
package sentiment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/scoring"
	"github.com/aristath/vrp-sentinel/internal/ticker"
)

// Source is the closed enum of where a sentiment record originated.
type Source string

const (
	SourcePaidAI     Source = "paid_ai"
	SourceWebSearch  Source = "web_search"
	SourceVendorNews Source = "vendor_news"
	SourceManual     Source = "manual"
)

// Record is one SentimentRecord as defined in the data model.
type Record struct {
	Ticker            string
	EarningsDate      string
	CollectedAt       time.Time
	Source            Source
	Text              string
	Score             float64 // [-1,+1]
	Direction         scoring.Direction
	RealizedMovePct   *float64
	ActualDirection   *string // "Up" / "Down"
	PredictionCorrect *bool
}

// Store owns SentimentRecord exclusively. The hot cache and the
// permanent history share the same sentiment_history table; the hot
// cache reads are simply "most recent row within TTL".
type Store struct {
	db     *database.DB
	hotTTL time.Duration
	log    zerolog.Logger
}

// New builds a Store. hotTTL controls how fresh a row must be to count
// as a hot-cache hit (default 3h).
func New(db *database.DB, hotTTL time.Duration, log zerolog.Logger) *Store {
	return &Store{db: db, hotTTL: hotTTL, log: log.With().Str("component", "sentiment").Logger()}
}

// HotGet returns the freshest non-expired entry for (ticker, date).
// (ticker, earnings_date) is the table's primary key, so RecordSentiment
// upserts over whatever source was there before; only one row can exist
// per key, which makes a paid_ai-over-web_search preference moot here.
func (s *Store) HotGet(ctx context.Context, tickerSymbol, earningsDate string) (Record, bool, error) {
	tk, err := ticker.Normalize(tickerSymbol)
	if err != nil {
		return Record{}, false, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT ticker, earnings_date, recorded_at, source, raw_digest, confidence, direction
		 FROM sentiment_history WHERE ticker = ? AND earnings_date = ?`, tk, earningsDate)

	var rec Record
	var recordedAtStr, sourceStr, rawDigest, directionStr string
	err = row.Scan(&rec.Ticker, &rec.EarningsDate, &recordedAtStr, &sourceStr, &rawDigest, &rec.Score, &directionStr)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("scan sentiment row: %w", err)
	}

	recordedAt, err := time.Parse(time.RFC3339, recordedAtStr)
	if err != nil {
		return Record{}, false, nil
	}

	if time.Since(recordedAt) > s.hotTTL {
		return Record{}, false, nil
	}

	rec.CollectedAt = recordedAt
	rec.Source = Source(sourceStr)
	rec.Text = rawDigest
	rec.Direction = scoring.Direction(directionStr)

	return rec, true, nil
}

// RecordSentiment writes a pre-earnings enrichment with outcome fields
// empty. Every paid or web sentiment fetch goes through this; history
// rows never expire (only the hot-cache freshness check above does).
func (s *Store) RecordSentiment(ctx context.Context, rec Record) error {
	tk, err := ticker.Normalize(rec.Ticker)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sentiment_history (ticker, earnings_date, direction, confidence, source, raw_digest, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker, earnings_date) DO UPDATE SET
		   direction = excluded.direction,
		   confidence = excluded.confidence,
		   source = excluded.source,
		   raw_digest = excluded.raw_digest,
		   recorded_at = excluded.recorded_at`,
		tk, rec.EarningsDate, string(rec.Direction), rec.Score, string(rec.Source), rec.Text,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record sentiment for %s/%s: %w", tk, rec.EarningsDate, err)
	}
	return nil
}

// RecordOutcome fills the outcome fields exactly once: a row whose
// realized_move_pct is already set is left unchanged. prediction_correct
// is derived, never user-set: for Bullish/Bearish predictions it is
// (direction==Bullish) == (actualDirection=="Up"); for Neutral or
// Unknown predictions it stays absent.
func (s *Store) RecordOutcome(ctx context.Context, tickerSymbol, earningsDate string, realizedMovePct float64, actualDirection string) error {
	tk, err := ticker.Normalize(tickerSymbol)
	if err != nil {
		return err
	}

	var directionStr string
	row := s.db.QueryRowContext(ctx, "SELECT direction FROM sentiment_history WHERE ticker = ? AND earnings_date = ?", tk, earningsDate)
	if err := row.Scan(&directionStr); err != nil {
		return fmt.Errorf("lookup prediction direction for %s/%s: %w", tk, earningsDate, err)
	}

	direction := scoring.Direction(directionStr)

	var predictionCorrect sql.NullBool
	if direction == scoring.Bullish || direction == scoring.Bearish {
		correct := (direction == scoring.Bullish) == (actualDirection == "Up")
		predictionCorrect = sql.NullBool{Bool: correct, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sentiment_history SET realized_move_pct = ?, prediction_correct = ?
		 WHERE ticker = ? AND earnings_date = ? AND realized_move_pct IS NULL`,
		realizedMovePct, predictionCorrect, tk, earningsDate)
	if err != nil {
		return fmt.Errorf("record outcome for %s/%s: %w", tk, earningsDate, err)
	}
	return nil
}
