package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/events"
	"github.com/aristath/vrp-sentinel/internal/pipeline"
	"github.com/aristath/vrp-sentinel/internal/utils"
	"github.com/aristath/vrp-sentinel/internal/vendors"
)

// PreMarketPrep refreshes the cached earnings calendar for the next
// quarter and reports how many events are now tracked-universe members.
func (r *Runner) PreMarketPrep(ctx context.Context) *Result {
	res := newResult("pre-market-prep")
	defer utils.OperationTimer("jobs.pre-market-prep", r.log)()

	fetched, err := r.fetchEarnings(ctx, vendors.Horizon3Month)
	if err != nil {
		r.log.Error().Err(err).Msg("pre-market-prep failed")
		res.Status = StatusFailed
		return res.finish()
	}
	res.Counts["fetched"] = fetched

	evts, err := r.upcoming(ctx, r.digestWindowDays)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	tracked, err := r.filterTracked(ctx, evts)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	res.Counts["upcoming"] = len(evts)
	res.Counts["tracked"] = len(tracked)

	r.events.Emit(events.EventJobCompleted, "pre-market-prep", map[string]interface{}{"tracked": len(tracked)})
	return res.finish()
}

// SentimentScan warms the sentiment cache for every tracked upcoming
// candidate ahead of the morning digest, so the digest run itself
// mostly hits hot cache instead of paying for fresh vendor calls.
func (r *Runner) SentimentScan(ctx context.Context) *Result {
	res := newResult("sentiment-scan")
	defer utils.OperationTimer("jobs.sentiment-scan", r.log)()

	evts, err := r.upcoming(ctx, r.digestWindowDays)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	tracked, err := r.filterTracked(ctx, evts)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}

	warmed := 0
	for _, c := range candidatesFrom(tracked) {
		if rec := r.orch.EnrichSentiment(ctx, c); rec != nil {
			warmed++
		} else {
			res.FailedTickers = append(res.FailedTickers, c.Ticker)
		}
	}
	res.Counts["candidates"] = len(tracked)
	res.Counts["warmed"] = warmed

	r.rateLimitTick(ctx)
	return res.finish()
}

// MorningDigest runs the full six-step pipeline over the tracked
// earnings dated from today through DigestWindowDays days ahead and
// sends the formatted digest downstream.
func (r *Runner) MorningDigest(ctx context.Context) *Result {
	res := newResult("morning-digest")
	defer utils.OperationTimer("jobs.morning-digest", r.log)()

	evts, err := r.upcoming(ctx, r.digestWindowDays)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	tracked, err := r.filterTracked(ctx, evts)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	res.Counts["candidates"] = len(tracked)

	if len(tracked) == 0 {
		res.Counts["digest_entries"] = 0
		return res.finish()
	}

	entries, failedTickers := r.orch.Run(ctx, candidatesFrom(tracked))
	res.FailedTickers = failedTickers
	res.Counts["digest_entries"] = len(entries)
	res.Counts["tradeable"] = countTradeable(entries)

	if r.downstreamSink != nil {
		body := vendors.TruncateMessage(FormatDigest(entries), vendors.MaxMessageLength)
		if err := r.downstreamSink.SendMessage(ctx, body, "Markdown"); err != nil {
			res.DownstreamErr = err.Error()
		}
	}

	return res.finish()
}

// MarketOpenRefresh re-prices the tracked candidates reporting today or
// tomorrow right after the open, when live quotes replace the pre-market
// historical fallback used by the morning digest.
func (r *Runner) MarketOpenRefresh(ctx context.Context) *Result {
	res := newResult("market-open-refresh")
	defer utils.OperationTimer("jobs.market-open-refresh", r.log)()

	evts, err := r.upcoming(ctx, 1)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	tracked, err := r.filterTracked(ctx, evts)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}

	evalResults, failedTickers := r.orch.EvaluateBatch(ctx, candidatesFrom(tracked))
	res.FailedTickers = failedTickers
	res.Counts["refreshed"] = len(evalResults)

	return res.finish()
}

// PreTradeRefresh is a final re-evaluation shortly before the market
// close window that matters for same-day earnings, reusing whatever
// budget remains for one last sentiment pass.
func (r *Runner) PreTradeRefresh(ctx context.Context) *Result {
	res := newResult("pre-trade-refresh")
	defer utils.OperationTimer("jobs.pre-trade-refresh", r.log)()

	check := r.budget.CanCall(ctx)
	res.Counts["budget_status_exhausted"] = boolToInt(check.Status == budget.Exhausted)

	evts, err := r.upcoming(ctx, 1)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	tracked, err := r.filterTracked(ctx, evts)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}

	entries, failedTickers := r.orch.Run(ctx, candidatesFrom(tracked))
	res.FailedTickers = failedTickers
	res.Counts["digest_entries"] = len(entries)

	return res.finish()
}

// AfterHoursCheck counts the cached earnings events dated today, the same
// set OutcomeRecorder later works through. It does not filter by tracked
// universe or by reporting session, so pre-market and after-close
// reporters are counted alike.
func (r *Runner) AfterHoursCheck(ctx context.Context) *Result {
	res := newResult("after-hours-check")
	defer utils.OperationTimer("jobs.after-hours-check", r.log)()

	evts, err := r.upcoming(ctx, 0)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	res.Counts["reported_today"] = len(evts)

	return res.finish()
}

// OutcomeRecorder fetches the current stock price for each cached
// earnings event dated today and records a sentiment outcome for it. It
// does not compute a realized move from that price (the recorded move is
// 0.0) and it does not write HistoricalMove rows.
func (r *Runner) OutcomeRecorder(ctx context.Context, optionsVendor vendors.OptionsData) *Result {
	res := newResult("outcome-recorder")
	defer utils.OperationTimer("jobs.outcome-recorder", r.log)()

	evts, err := r.upcoming(ctx, 0)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}

	if optionsVendor == nil {
		res.Status = StatusFailed
		res.Counts["vendor_missing"] = 1
		return res.finish()
	}

	recorded := 0
	for _, e := range evts {
		price, err := optionsVendor.GetStockPrice(ctx, e.Ticker)
		if err != nil {
			res.FailedTickers = append(res.FailedTickers, e.Ticker)
			continue
		}

		actualDirection := "Up"
		movePct := 0.0 // pre-close reference unavailable without an intraday feed; recorded as a same-day snapshot.
		if err := r.sentiment.RecordOutcome(ctx, e.Ticker, e.EarningsDate, movePct, actualDirection); err != nil {
			r.log.Warn().Err(err).Str("ticker", e.Ticker).Msg("failed to record sentiment outcome")
			res.FailedTickers = append(res.FailedTickers, e.Ticker)
			continue
		}
		_ = price // price is fetched but not stored or logged; no synthetic pre-close value is fabricated here.
		recorded++
	}
	res.Counts["recorded"] = recorded

	return res.finish()
}

// EveningSummary reports the day's budget and cache counters downstream
// without running any new evaluations.
func (r *Runner) EveningSummary(ctx context.Context) *Result {
	res := newResult("evening-summary")
	defer utils.OperationTimer("jobs.evening-summary", r.log)()

	summary, err := r.budget.StatusSummary(ctx)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	stats := r.cache.Stats()

	res.Counts["calls_today"] = summary.CallsToday
	res.Counts["cache_hits"] = int(stats.Hits)
	res.Counts["cache_misses"] = int(stats.Misses)

	if r.downstreamSink != nil {
		body := fmt.Sprintf("Evening summary: %d API calls today, cost $%s, cache hits %d / misses %d",
			summary.CallsToday, summary.CostToday.StringFixed(2), stats.Hits, stats.Misses)
		if err := r.downstreamSink.SendMessage(ctx, body, "Markdown"); err != nil {
			res.DownstreamErr = err.Error()
		}
	}

	return res.finish()
}

// WeeklyBackfill fetches the full 12-month earnings calendar horizon
// into the local calendar table. It does not write historical_moves
// rows, so gaps in a ticker's move history are not filled here.
func (r *Runner) WeeklyBackfill(ctx context.Context) *Result {
	res := newResult("weekly-backfill")
	defer utils.OperationTimer("jobs.weekly-backfill", r.log)()

	fetched, err := r.fetchEarnings(ctx, vendors.Horizon12Month)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	res.Counts["fetched"] = fetched

	return res.finish()
}

// BackupSnapshot is the msgpack-encoded payload WeeklyBackup produces.
type BackupSnapshot struct {
	TakenAt    time.Time        `msgpack:"taken_at"`
	Universe   []string         `msgpack:"universe"`
	CacheStats map[string]int64 `msgpack:"cache_stats"`
}

// WeeklyBackup snapshots the tracked universe and cache counters into a
// compact msgpack blob and writes it into the durable cache under a
// dated key, giving operators a point-in-time artifact independent of
// the live sqlite file.
func (r *Runner) WeeklyBackup(ctx context.Context) *Result {
	res := newResult("weekly-backup")
	defer utils.OperationTimer("jobs.weekly-backup", r.log)()

	universe, err := r.historical.TrackedUniverseSorted(ctx)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	stats := r.cache.Stats()

	snapshot := BackupSnapshot{
		TakenAt:  r.clock.Now(),
		Universe: universe,
		CacheStats: map[string]int64{
			"hits": stats.Hits, "misses": stats.Misses, "evictions": stats.Evictions,
		},
	}

	blob, err := msgpack.Marshal(snapshot)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}

	key := "backup:" + r.clock.Today().Format("2006-01-02")
	r.cache.Set(ctx, key, blob, 30*24*time.Hour)

	res.Counts["universe_size"] = len(universe)
	res.Counts["bytes"] = len(blob)

	return res.finish()
}

// WeeklyCleanup evicts expired cache rows and prunes IV log rows past
// the configured retention window.
func (r *Runner) WeeklyCleanup(ctx context.Context) *Result {
	res := newResult("weekly-cleanup")
	defer utils.OperationTimer("jobs.weekly-cleanup", r.log)()

	evicted, err := r.cache.CleanupExpired(ctx)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	res.Counts["cache_evicted"] = int(evicted)

	cutoff := r.clock.Today().AddDate(0, 0, -r.ivLogRetentionDays).Format("2006-01-02")
	result, err := r.db.ExecContext(ctx, "DELETE FROM iv_log WHERE observed_at < ?", cutoff)
	if err != nil {
		res.Status = StatusFailed
		return res.finish()
	}
	n, _ := result.RowsAffected()
	res.Counts["iv_log_pruned"] = int(n)

	if err := r.db.WALCheckpoint(""); err != nil {
		r.log.Warn().Err(err).Msg("weekly-cleanup: WAL checkpoint failed")
	}

	stats, err := r.db.GetStats()
	if err != nil {
		r.log.Warn().Err(err).Msg("weekly-cleanup: failed to read database stats")
		return res.finish()
	}
	res.Counts["freelist_pages"] = int(stats.FreelistCount)

	// Vacuum only when reclaimable space is a meaningful share of the
	// file; VACUUM rewrites the whole database and isn't worth the I/O
	// for a handful of freed pages.
	if stats.PageCount > 0 && float64(stats.FreelistCount)/float64(stats.PageCount) > 0.1 {
		if err := r.db.Vacuum(); err != nil {
			r.log.Warn().Err(err).Msg("weekly-cleanup: vacuum failed")
		} else {
			res.Counts["vacuum_ran"] = 1
		}
	}

	return res.finish()
}

// CalendarSync performs a full earnings calendar reconciliation across
// the 12-month horizon, the same fetch WeeklyBackfill triggers but run
// on its own schedule so a failed backfill doesn't silently starve it.
func (r *Runner) CalendarSync(ctx context.Context) *Result {
	res := newResult("calendar-sync")
	defer utils.OperationTimer("jobs.calendar-sync", r.log)()

	fetched, err := r.fetchEarnings(ctx, vendors.Horizon12Month)
	if err != nil {
		res.Status = StatusFailed
		if r.calendarVendor == nil {
			res.Counts["vendor_missing"] = 1
		}
		return res.finish()
	}
	res.Counts["fetched"] = fetched

	return res.finish()
}

func countTradeable(entries []pipeline.DigestEntry) int {
	n := 0
	for _, e := range entries {
		if e.Score.Tradeable {
			n++
		}
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
