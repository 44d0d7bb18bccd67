package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vrp-sentinel/internal/breaker"
	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/cache"
	"github.com/aristath/vrp-sentinel/internal/clock"
	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/earningscalendar"
	"github.com/aristath/vrp-sentinel/internal/events"
	"github.com/aristath/vrp-sentinel/internal/historicalmoves"
	"github.com/aristath/vrp-sentinel/internal/liquidity"
	"github.com/aristath/vrp-sentinel/internal/pipeline"
	"github.com/aristath/vrp-sentinel/internal/ratelimit"
	"github.com/aristath/vrp-sentinel/internal/scoring"
	"github.com/aristath/vrp-sentinel/internal/sentiment"
	"github.com/aristath/vrp-sentinel/internal/vrp"
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

func testRunner(t *testing.T, dailyCeiling int) (*Runner, *earningscalendar.Store, *historicalmoves.Store) {
	t.Helper()
	db := testDB(t)
	log := zerolog.Nop()

	clk := clock.New(log)
	cacheStore := cache.New(db, 128, "v1", log)
	ev := events.NewManager(log)
	budgetTracker := budget.New(db, clk, dailyCeiling, 5.00, log)
	calendarStore := earningscalendar.New(db, log)
	historicalStore := historicalmoves.New(db, log)
	sentimentStore := sentiment.New(db, time.Hour, log)

	orchCfg := pipeline.Config{
		MinHistoricalMoves:  3,
		VRPThresholds:       vrp.DefaultThresholds(),
		LiquidityThresholds: liquidity.Thresholds{MinOI: 50, GoodOI: 200, ExcellentOI: 1000, MinVolume: 10, GoodVolume: 100, ExcellentVolume: 500, MaxSpreadPct: 0.15, GoodSpreadPct: 0.08, ExcellentSpreadPct: 0.03},
		Weights:             scoring.DefaultWeights(),
		TradeableThreshold:  55,
		VRPRatioFloor:       1.2,
		MaxDigestSize:       5,
		PaidSentimentCost:   0.01,
		WorkerCount:         2,
	}
	orch := pipeline.New(orchCfg, log, historicalStore, sentimentStore, budgetTracker,
		nil, ratelimit.NewBucket("options", 10, 1), breaker.New("options", breaker.Config{FailureThreshold: 3, SuccessThreshold: 1, RecoveryTimeout: time.Minute}, log),
		nil, ratelimit.NewBucket("sentiment", 10, 1), breaker.New("sentiment", breaker.Config{FailureThreshold: 3, SuccessThreshold: 1, RecoveryTimeout: time.Minute}, log),
		nil)

	r := New(db, log, Config{DigestWindowDays: 1, IVLogRetentionDays: 180}, clk, cacheStore, ev, budgetTracker,
		calendarStore, historicalStore, sentimentStore, orch, nil, nil)

	return r, calendarStore, historicalStore
}

func TestMorningDigest_EmptyCalendar_ReturnsZeroEntries(t *testing.T) {
	r, _, _ := testRunner(t, 40)
	res := r.MorningDigest(context.Background())

	require.Equal(t, StatusOK, res.Status)
	require.Equal(t, 0, res.Counts["candidates"])
	require.Equal(t, 0, res.Counts["digest_entries"])
}

func TestMorningDigest_UntrackedTicker_ExcludedFromCandidates(t *testing.T) {
	r, calendarStore, _ := testRunner(t, 40)
	ctx := context.Background()

	require.NoError(t, calendarStore.Upsert(ctx, earningscalendar.Event{
		Ticker: "NFLX", EarningsDate: time.Now().Format("2006-01-02"),
	}))

	res := r.MorningDigest(ctx)
	require.Equal(t, 0, res.Counts["candidates"])
}

func TestPreTradeRefresh_BudgetExhausted_StillRuns(t *testing.T) {
	r, _, _ := testRunner(t, 0) // zero daily ceiling forces Exhausted
	res := r.PreTradeRefresh(context.Background())

	require.Equal(t, 1, res.Counts["budget_status_exhausted"])
}

func TestWeeklyCleanup_PrunesExpiredCache(t *testing.T) {
	r, _, _ := testRunner(t, 40)
	ctx := context.Background()

	res := r.WeeklyCleanup(ctx)
	require.Equal(t, StatusOK, res.Status)
	require.GreaterOrEqual(t, res.Counts["cache_evicted"], 0)
}

func TestWeeklyBackup_WritesSnapshotToCache(t *testing.T) {
	r, _, hist := testRunner(t, 40)
	ctx := context.Background()

	require.NoError(t, hist.Upsert(ctx, historicalmoves.Move{Ticker: "AAPL", EarningsDate: "2025-01-01", PreClose: 100, PostOpen: 104, MovePct: 4}))

	res := r.WeeklyBackup(ctx)
	require.Equal(t, StatusOK, res.Status)
	require.Equal(t, 1, res.Counts["universe_size"])
	require.Greater(t, res.Counts["bytes"], 0)
}

func TestPreMarketPrep_NoVendorConfigured_Fails(t *testing.T) {
	r, _, _ := testRunner(t, 40)
	res := r.PreMarketPrep(context.Background())
	require.Equal(t, StatusFailed, res.Status)
}

func TestOutcomeRecorder_NoVendorConfigured_Fails(t *testing.T) {
	r, _, _ := testRunner(t, 40)
	res := r.OutcomeRecorder(context.Background(), nil)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, 1, res.Counts["vendor_missing"])
}
