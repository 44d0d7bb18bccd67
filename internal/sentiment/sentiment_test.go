package sentiment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/scoring"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(database.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordSentiment_ThenHotGet_Hit(t *testing.T) {
	db := testDB(t)
	s := New(db, 3*time.Hour, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.RecordSentiment(ctx, Record{
		Ticker: "aapl", EarningsDate: "2025-01-30", Direction: scoring.Bullish,
		Score: 0.4, Source: SourcePaidAI, Text: "strong guidance",
	}))

	rec, ok, err := s.HotGet(ctx, "AAPL", "2025-01-30")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, scoring.Bullish, rec.Direction)
}

func TestRecordOutcome_BullishCorrect(t *testing.T) {
	db := testDB(t)
	s := New(db, 3*time.Hour, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.RecordSentiment(ctx, Record{
		Ticker: "NVDA", EarningsDate: "2025-02-26", Direction: scoring.Bullish, Source: SourcePaidAI,
	}))
	require.NoError(t, s.RecordOutcome(ctx, "NVDA", "2025-02-26", 5.2, "Up"))

	var correct bool
	row := db.QueryRowContext(ctx, "SELECT prediction_correct FROM sentiment_history WHERE ticker='NVDA' AND earnings_date='2025-02-26'")
	require.NoError(t, row.Scan(&correct))
	require.True(t, correct)
}

func TestRecordOutcome_BearishIncorrect(t *testing.T) {
	db := testDB(t)
	s := New(db, 3*time.Hour, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.RecordSentiment(ctx, Record{
		Ticker: "NVDA", EarningsDate: "2025-02-26", Direction: scoring.Bearish, Source: SourcePaidAI,
	}))
	require.NoError(t, s.RecordOutcome(ctx, "NVDA", "2025-02-26", 5.2, "Up"))

	var correct bool
	row := db.QueryRowContext(ctx, "SELECT prediction_correct FROM sentiment_history WHERE ticker='NVDA' AND earnings_date='2025-02-26'")
	require.NoError(t, row.Scan(&correct))
	require.False(t, correct)
}

func TestRecordOutcome_NeutralPredictionLeavesCorrectAbsent(t *testing.T) {
	db := testDB(t)
	s := New(db, 3*time.Hour, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.RecordSentiment(ctx, Record{
		Ticker: "NVDA", EarningsDate: "2025-02-26", Direction: scoring.Neutral, Source: SourcePaidAI,
	}))
	require.NoError(t, s.RecordOutcome(ctx, "NVDA", "2025-02-26", 5.2, "Up"))

	var correct interface{}
	row := db.QueryRowContext(ctx, "SELECT prediction_correct FROM sentiment_history WHERE ticker='NVDA' AND earnings_date='2025-02-26'")
	require.NoError(t, row.Scan(&correct))
	require.Nil(t, correct)
}

func TestHotGet_ExpiredProducesMiss(t *testing.T) {
	db := testDB(t)
	s := New(db, time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.RecordSentiment(ctx, Record{
		Ticker: "AAPL", EarningsDate: "2025-01-30", Direction: scoring.Bullish, Source: SourcePaidAI,
	}))
	time.Sleep(10 * time.Millisecond)

	_, ok, err := s.HotGet(ctx, "AAPL", "2025-01-30")
	require.NoError(t, err)
	require.False(t, ok)
}
