package historicalmoves

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vrp-sentinel/internal/database"
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

func TestUpsert_ThenMoves_ReturnsNewestFirst(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Move{Ticker: "aapl", EarningsDate: "2024-01-01", PreClose: 100, PostOpen: 102, MovePct: 2.0}))
	require.NoError(t, s.Upsert(ctx, Move{Ticker: "AAPL", EarningsDate: "2024-04-01", PreClose: 110, PostOpen: 105, MovePct: -4.5}))

	moves, err := s.Moves(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, "2024-04-01", moves[0].EarningsDate)
}

func TestAverageIntradayMove_AbsentBelowMinCount(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Move{Ticker: "AAPL", EarningsDate: "2024-01-01", MovePct: 2.0}))

	_, ok, err := s.AverageIntradayMove(ctx, "AAPL", 4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAverageIntradayMove_ComputesMeanOfAbsoluteValues(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	dates := []string{"2024-01-01", "2024-04-01", "2024-07-01", "2024-10-01"}
	pcts := []float64{2.0, -4.0, 3.0, -5.0}
	for i, d := range dates {
		require.NoError(t, s.Upsert(ctx, Move{Ticker: "AAPL", EarningsDate: d, MovePct: pcts[i]}))
	}

	avg, ok, err := s.AverageIntradayMove(ctx, "AAPL", 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 3.5, avg, 0.0001)
}

func TestTrackedUniverse_DistinctTickers(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Move{Ticker: "AAPL", EarningsDate: "2024-01-01", MovePct: 1}))
	require.NoError(t, s.Upsert(ctx, Move{Ticker: "MSFT", EarningsDate: "2024-01-02", MovePct: 1}))
	require.NoError(t, s.Upsert(ctx, Move{Ticker: "AAPL", EarningsDate: "2024-04-01", MovePct: 1}))

	universe, err := s.TrackedUniverseSorted(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, universe)
}
