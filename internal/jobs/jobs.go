// Package jobs implements the twelve named scheduled jobs and the
// shared helpers they build on: fetching and caching the earnings
// calendar, intersecting it with the tracked universe, and running the
// VRP/sentiment pipeline. Every named job returns a Result so the
// scheduler and the admin HTTP surface can report {status, counts...}
// without reaching into job internals.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/cache"
	"github.com/aristath/vrp-sentinel/internal/clock"
	"github.com/aristath/vrp-sentinel/internal/database"
	"github.com/aristath/vrp-sentinel/internal/earningscalendar"
	"github.com/aristath/vrp-sentinel/internal/events"
	"github.com/aristath/vrp-sentinel/internal/historicalmoves"
	"github.com/aristath/vrp-sentinel/internal/pipeline"
	"github.com/aristath/vrp-sentinel/internal/sentiment"
	"github.com/aristath/vrp-sentinel/internal/vendors"
)

// Status is the closed enum of job outcomes.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result is the uniform shape every named job returns.
type Result struct {
	RunID         string
	Job           string
	Status        Status
	StartedAt     time.Time
	FinishedAt    time.Time
	Counts        map[string]int
	FailedTickers []string
	DownstreamErr string
}

func newResult(job string) *Result {
	return &Result{
		RunID:     uuid.NewString(),
		Job:       job,
		Status:    StatusOK,
		StartedAt: time.Now().UTC(),
		Counts:    make(map[string]int),
	}
}

func (r *Result) finish() *Result {
	r.FinishedAt = time.Now().UTC()
	if len(r.FailedTickers) > 0 && r.Status == StatusOK {
		r.Status = StatusPartial
	}
	if r.DownstreamErr != "" && r.Status == StatusOK {
		r.Status = StatusPartial
	}
	return r
}

// Runner holds every collaborator a named job might need. A nil vendor
// or sink field means that job degrades gracefully (the calendar-sync
// job without a calendar vendor, for example, returns StatusFailed with
// an explanatory count rather than panicking).
type Runner struct {
	db *database.DB
	log zerolog.Logger

	clock      *clock.Clock
	cache      *cache.Cache
	events     *events.Manager
	budget     *budget.Tracker
	calendar   *earningscalendar.Store
	historical *historicalmoves.Store
	sentiment  *sentiment.Store
	orch       *pipeline.Orchestrator

	calendarVendor vendors.EarningsCalendar
	downstreamSink vendors.DownstreamSink

	digestWindowDays   int
	ivLogRetentionDays int
}

// Config bundles the Runner's tunables.
type Config struct {
	DigestWindowDays   int
	IVLogRetentionDays int
}

// New builds a Runner.
func New(
	db *database.DB,
	log zerolog.Logger,
	cfg Config,
	clk *clock.Clock,
	c *cache.Cache,
	ev *events.Manager,
	budgetTracker *budget.Tracker,
	calendarStore *earningscalendar.Store,
	historicalStore *historicalmoves.Store,
	sentimentStore *sentiment.Store,
	orch *pipeline.Orchestrator,
	calendarVendor vendors.EarningsCalendar,
	downstreamSink vendors.DownstreamSink,
) *Runner {
	return &Runner{
		db: db, log: log.With().Str("component", "jobs").Logger(),
		clock: clk, cache: c, events: ev, budget: budgetTracker,
		calendar: calendarStore, historical: historicalStore, sentiment: sentimentStore,
		orch: orch, calendarVendor: calendarVendor, downstreamSink: downstreamSink,
		digestWindowDays:   cfg.DigestWindowDays,
		ivLogRetentionDays: cfg.IVLogRetentionDays,
	}
}

// fetchEarnings pulls the calendar vendor's events for horizon and
// upserts each into the local cache table. Returns the number fetched.
func (r *Runner) fetchEarnings(ctx context.Context, horizon vendors.Horizon) (int, error) {
	if r.calendarVendor == nil {
		return 0, fmt.Errorf("no earnings calendar vendor configured")
	}

	fetched, err := r.calendarVendor.GetEarningsCalendar(ctx, horizon)
	if err != nil {
		return 0, fmt.Errorf("fetch earnings calendar: %w", err)
	}

	for _, e := range fetched {
		session := earningscalendar.Unknown
		err := r.calendar.Upsert(ctx, earningscalendar.Event{
			Ticker: e.Symbol, EarningsDate: e.ReportDate, Session: session,
		})
		if err != nil {
			r.log.Warn().Err(err).Str("ticker", e.Symbol).Msg("failed to cache earnings event")
		}
	}
	return len(fetched), nil
}

// upcoming returns cached earnings events dated from the clock's current
// Eastern date through that date plus days, both ends inclusive (days=0
// is today only, days=1 is today and tomorrow).
func (r *Runner) upcoming(ctx context.Context, days int) ([]earningscalendar.Event, error) {
	return r.calendar.Upcoming(ctx, r.clock.Today(), days)
}

// filterTracked keeps only events whose ticker is in the tracked
// universe (has recorded historical moves).
func (r *Runner) filterTracked(ctx context.Context, evts []earningscalendar.Event) ([]earningscalendar.Event, error) {
	universe, err := r.historical.TrackedUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracked universe: %w", err)
	}

	var out []earningscalendar.Event
	for _, e := range evts {
		if _, ok := universe[e.Ticker]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// candidatesFrom converts cached earnings events into pipeline
// candidates.
func candidatesFrom(evts []earningscalendar.Event) []pipeline.Candidate {
	out := make([]pipeline.Candidate, len(evts))
	for i, e := range evts {
		out[i] = pipeline.Candidate{Ticker: e.Ticker, EarningsDate: e.EarningsDate}
	}
	return out
}

// rateLimitTick logs the current budget status, invoked by jobs that
// run on a tight schedule so rate-limit pressure shows up in
// structured logs well before a vendor call actually gets refused.
func (r *Runner) rateLimitTick(ctx context.Context) {
	summary, err := r.budget.StatusSummary(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limit tick: budget summary unavailable")
		return
	}
	r.log.Debug().
		Int("calls_today", summary.CallsToday).
		Str("cost_today", summary.CostToday.String()).
		Str("month_to_date", summary.MonthToDate.String()).
		Msg("rate limit tick")
}
