package earningscalendar

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func TestUpcoming_FiltersByWindowAndSorts(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, Event{Ticker: "ZZZ", EarningsDate: "2025-06-02", Session: BeforeMarket}))
	require.NoError(t, s.Upsert(ctx, Event{Ticker: "AAA", EarningsDate: "2025-06-02", Session: AfterMarket}))
	require.NoError(t, s.Upsert(ctx, Event{Ticker: "BBB", EarningsDate: "2025-07-01", Session: Unknown}))

	events, err := s.Upcoming(ctx, base, 7)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "AAA", events[0].Ticker)
	require.Equal(t, "ZZZ", events[1].Ticker)
}

func TestUpsert_ConfirmedFlagPersists(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Event{Ticker: "aapl", EarningsDate: "2025-01-30", Confirmed: true}))
	events, err := s.Upcoming(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 60)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].Confirmed)
	require.Equal(t, "AAPL", events[0].Ticker)
}
