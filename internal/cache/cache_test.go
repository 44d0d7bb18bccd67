package cache

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

func TestCache_SetThenGet_Hit(t *testing.T) {
	db := testDB(t)
	c := New(db, 10, "v1", zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "foo", []byte(`{"a":1}`), time.Minute)
	v, ok := c.Get(ctx, "foo")

	require.True(t, ok)
	require.Equal(t, `{"a":1}`, string(v))
}

func TestCache_Expiry_ProducesMiss(t *testing.T) {
	db := testDB(t)
	c := New(db, 10, "v1", zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "foo", []byte(`{}`), -time.Second) // already expired
	_, ok := c.Get(ctx, "foo")

	require.False(t, ok)
}

func TestCache_Delete_RemovesFromBothTiers(t *testing.T) {
	db := testDB(t)
	c := New(db, 10, "v1", zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "foo", []byte(`{}`), time.Minute)
	c.Delete(ctx, "foo")
	_, ok := c.Get(ctx, "foo")

	require.False(t, ok)
}

func TestCache_L1Eviction_EvictsLeastRecentlyUsed(t *testing.T) {
	db := testDB(t)
	c := New(db, 2, "v1", zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	// Touch "a" so "b" becomes least-recently-used.
	_, _ = c.Get(ctx, "a")
	c.Set(ctx, "c", []byte("3"), time.Minute)

	c.mu.Lock()
	_, hasB := c.items[c.namespaced("b")]
	_, hasA := c.items[c.namespaced("a")]
	c.mu.Unlock()

	require.False(t, hasB, "b should have been evicted from L1")
	require.True(t, hasA, "a was touched more recently and should remain in L1")
}

func TestCache_CleanupExpired_DeletesExpiredRows(t *testing.T) {
	db := testDB(t)
	c := New(db, 10, "v1", zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "stale", []byte("{}"), -time.Second)
	n, err := c.CleanupExpired(ctx)

	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))
}

func TestCache_Stats_TracksHitsAndMisses(t *testing.T) {
	db := testDB(t)
	c := New(db, 10, "v1", zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "foo", []byte("{}"), time.Minute)
	_, _ = c.Get(ctx, "foo")
	_, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}
