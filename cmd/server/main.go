// Package main is the entry point for the earnings VRP digest service.
// It evaluates upcoming earnings events for volatility risk premium,
// enriches the top candidates with sentiment, and ships a ranked digest
// on a fixed daily schedule.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/vrp-sentinel/internal/breaker"
	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/cache"
	"github.com/aristath/vrp-sentinel/internal/clock"
	"github.com/aristath/vrp-sentinel/internal/config"
	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/earningscalendar"
	"github.com/aristath/vrp-sentinel/internal/events"
	"github.com/aristath/vrp-sentinel/internal/historicalmoves"
	"github.com/aristath/vrp-sentinel/internal/jobs"
	"github.com/aristath/vrp-sentinel/internal/liquidity"
	"github.com/aristath/vrp-sentinel/internal/pipeline"
	"github.com/aristath/vrp-sentinel/internal/ratelimit"
	"github.com/aristath/vrp-sentinel/internal/scheduler"
	"github.com/aristath/vrp-sentinel/internal/scoring"
	"github.com/aristath/vrp-sentinel/internal/sentiment"
	"github.com/aristath/vrp-sentinel/internal/server"
	"github.com/aristath/vrp-sentinel/internal/vrp"
	"github.com/aristath/vrp-sentinel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().EmbedObject(cfg).Msg("starting vrp-sentinel")

	db, err := database.New(database.Config{Path: cfg.DatabasePath})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	clk := clock.New(log)
	cacheStore := cache.New(db, cfg.CacheL1Capacity, cfg.CacheSchemaVersion, log)
	eventsManager := events.NewManager(log)
	budgetTracker := budget.New(db, clk, cfg.DailyCallCeiling, cfg.MonthlyCostCeiling, log)

	historicalStore := historicalmoves.New(db, log)
	sentimentStore := sentiment.New(db, cfg.SentimentHotTTL, log)
	calendarStore := earningscalendar.New(db, log)

	rateLimiters := ratelimit.NewRegistry()
	rateLimiters.Register("earnings_calendar", cfg.EarningsCalendarBucketCapacity, cfg.EarningsCalendarRefillPerSec)
	rateLimiters.Register("options_data", cfg.OptionsDataBucketCapacity, cfg.OptionsDataRefillPerSec)
	rateLimiters.Register("sentiment", cfg.SentimentBucketCapacity, cfg.SentimentRefillPerSec)

	breakerCfg := breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
	}
	optionsBreaker := breaker.New("options_data", breakerCfg, log)
	sentimentBreaker := breaker.New("sentiment", breakerCfg, log)

	// Vendor collaborators (earnings calendar, options data, paid
	// sentiment, web search, downstream sink) are HTTP clients against
	// deployment-specific third-party APIs and are left unconfigured
	// here. Every component that needs one degrades gracefully instead
	// of requiring a live client to boot: the pipeline falls back to the
	// historical mean and skips enrichment, and jobs that strictly
	// require a vendor (calendar-sync, outcome-recorder) report
	// StatusFailed with an explanatory count rather than panicking.
	orchCfg := pipeline.Config{
		MinHistoricalMoves: cfg.MinHistoricalMoves,
		VRPThresholds:      vrp.DefaultThresholds(),
		LiquidityThresholds: liquidity.Thresholds{
			MinOI: cfg.LiquidityMinOI, GoodOI: cfg.LiquidityGoodOI, ExcellentOI: cfg.LiquidityExcellentOI,
			MinVolume: cfg.LiquidityMinVolume, GoodVolume: cfg.LiquidityGoodVolume, ExcellentVolume: cfg.LiquidityExcellentVolume,
			MaxSpreadPct: cfg.LiquidityMaxSpreadPct, GoodSpreadPct: cfg.LiquidityGoodSpreadPct, ExcellentSpreadPct: cfg.LiquidityExcellentSpreadPct,
		},
		Weights:            scoring.DefaultWeights(),
		TradeableThreshold: cfg.TradeableThreshold,
		VRPRatioFloor:      cfg.VRPRatioFloor,
		MaxDigestSize:      cfg.MaxDigestSize,
		PaidSentimentCost:  cfg.PaidSentimentCostPerCall,
		WorkerCount:        cfg.MaxConcurrentJobs,
	}

	orch := pipeline.New(
		orchCfg, log, historicalStore, sentimentStore, budgetTracker,
		nil, rateLimiters.Get("options_data"), optionsBreaker,
		nil, rateLimiters.Get("sentiment"), sentimentBreaker,
		nil,
	)

	jobRunner := jobs.New(
		db, log, jobs.Config{DigestWindowDays: 1, IVLogRetentionDays: cfg.IVLogRetentionDays},
		clk, cacheStore, eventsManager, budgetTracker,
		calendarStore, historicalStore, sentimentStore, orch,
		nil, nil,
	)

	entries := []scheduler.Entry{
		{Name: "pre-market-prep", Hour: 6, Minute: 0, Run: func(ctx context.Context) { jobRunner.PreMarketPrep(ctx) }},
		{Name: "sentiment-scan", Hour: 6, Minute: 30, Run: func(ctx context.Context) { jobRunner.SentimentScan(ctx) }},
		{Name: "morning-digest", Hour: 8, Minute: 0, Run: func(ctx context.Context) { jobRunner.MorningDigest(ctx) }},
		{Name: "market-open-refresh", Hour: 9, Minute: 35, Run: func(ctx context.Context) { jobRunner.MarketOpenRefresh(ctx) }},
		{Name: "pre-trade-refresh", Hour: 15, Minute: 30, Run: func(ctx context.Context) { jobRunner.PreTradeRefresh(ctx) }},
		{Name: "after-hours-check", Hour: 16, Minute: 15, Run: func(ctx context.Context) { jobRunner.AfterHoursCheck(ctx) }},
		{Name: "outcome-recorder", Hour: 17, Minute: 0, Run: func(ctx context.Context) { jobRunner.OutcomeRecorder(ctx, nil) }},
		{Name: "evening-summary", Hour: 18, Minute: 0, Run: func(ctx context.Context) { jobRunner.EveningSummary(ctx) }},
		{Name: "weekly-backfill", Hour: 2, Minute: 0, Weekdays: []time.Weekday{time.Sunday}, Run: func(ctx context.Context) { jobRunner.WeeklyBackfill(ctx) }},
		{Name: "weekly-backup", Hour: 2, Minute: 30, Weekdays: []time.Weekday{time.Sunday}, Run: func(ctx context.Context) { jobRunner.WeeklyBackup(ctx) }},
		{Name: "weekly-cleanup", Hour: 3, Minute: 0, Weekdays: []time.Weekday{time.Sunday}, Run: func(ctx context.Context) { jobRunner.WeeklyCleanup(ctx) }},
		{Name: "calendar-sync", Hour: 3, Minute: 30, Weekdays: []time.Weekday{time.Sunday}, Run: func(ctx context.Context) { jobRunner.CalendarSync(ctx) }},
	}

	sched := scheduler.New(clk, log, entries, 30*time.Second, 30*time.Second)

	httpServer := server.New(server.Config{
		Log:                  log,
		DevMode:              cfg.DevMode,
		BotWebhookSecret:     cfg.BotWebhookSecret,
		AlertIngestSharedKey: cfg.AlertIngestSharedKey,
		Budget:               budgetTracker,
		Cache:                cacheStore,
		Jobs:                 jobRunner,
		Orch:                 orch,
		DB:                   db,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: httpServer.Router(),
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("vrp-sentinel stopped")
}
