// Package budget implements the atomic daily-call / monthly-cost ledger
// that gates the paid AI sentiment vendor. Costs are tracked in integer
// cents via shopspring/decimal to avoid float drift against the
// configured monthly ceiling.
package budget

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/vrp-sentinel/internal/clock"
	"github.com/aristath/vrp-sentinel/internal/database"
)

// Status is the outcome of a budget check.
type Status int

const (
	Ok Status = iota
	Warn
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Warn:
		return "warn"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// CheckResult is the result of CanCall.
type CheckResult struct {
	Status Status
	Reason string
}

// Summary reports today's counters and month-to-date spend, without
// mutation.
type Summary struct {
	Date          string
	CallsToday    int
	CostToday     decimal.Decimal
	MonthToDate   decimal.Decimal
	DailyCeiling  int
	MonthlyCeil   decimal.Decimal
}

// Tracker owns the BudgetLedger exclusively.
type Tracker struct {
	db    *database.DB
	clock *clock.Clock
	log   zerolog.Logger

	dailyCeiling   int
	monthlyCeiling decimal.Decimal
}

// New builds a Tracker. monthlyCeiling is expressed in dollars (e.g.
// 5.00) and kept as a dollar-valued decimal; the ledger rows it is
// compared against are stored as integer cents.
func New(db *database.DB, clk *clock.Clock, dailyCeiling int, monthlyCeiling float64, log zerolog.Logger) *Tracker {
	return &Tracker{
		db:             db,
		clock:          clk,
		log:            log.With().Str("component", "budget").Logger(),
		dailyCeiling:   dailyCeiling,
		monthlyCeiling: decimal.NewFromFloat(monthlyCeiling),
	}
}

func (t *Tracker) today() string {
	return t.clock.Today().Format("2006-01-02")
}

func (t *Tracker) month() string {
	return t.clock.Today().Format("2006-01")
}

// CanCall computes today's calls and this month's cost and returns a
// fail-closed decision: if the ledger store is unreachable, the result
// is Exhausted, never Ok.
func (t *Tracker) CanCall(ctx context.Context) CheckResult {
	callsToday, err := t.callsToday(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("budget store unreachable, failing closed")
		return CheckResult{Status: Exhausted, Reason: "ledger store unreachable"}
	}

	monthCost, err := t.monthToDateCost(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("budget store unreachable, failing closed")
		return CheckResult{Status: Exhausted, Reason: "ledger store unreachable"}
	}

	if callsToday >= t.dailyCeiling {
		return CheckResult{Status: Exhausted, Reason: "daily call ceiling reached"}
	}
	if monthCost.GreaterThanOrEqual(t.monthlyCeiling) {
		return CheckResult{Status: Exhausted, Reason: "monthly cost ceiling reached"}
	}

	if t.dailyCeiling > 0 {
		warnThreshold := decimal.NewFromInt(int64(t.dailyCeiling)).Mul(decimal.NewFromFloat(0.8))
		if decimal.NewFromInt(int64(callsToday)).GreaterThanOrEqual(warnThreshold) {
			return CheckResult{Status: Warn, Reason: "approaching daily call ceiling"}
		}
	}

	return CheckResult{Status: Ok}
}

func (t *Tracker) callsToday(ctx context.Context) (int, error) {
	var calls int
	row := t.db.QueryRowContext(ctx, "SELECT calls FROM api_budget WHERE date = ?", t.today())
	err := row.Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query calls today: %w", err)
	}
	return calls, nil
}

func (t *Tracker) monthToDateCost(ctx context.Context) (decimal.Decimal, error) {
	var cents int64
	row := t.db.QueryRowContext(ctx, "SELECT cost_cents FROM api_budget_monthly WHERE month = ?", t.month())
	err := row.Scan(&cents)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query month to date cost: %w", err)
	}
	return decimal.New(cents, -2), nil
}

// RecordCall increments today's call count and this month's cost in one
// transaction. cost is in dollars.
func (t *Tracker) RecordCall(ctx context.Context, cost decimal.Decimal) error {
	costCents := cost.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	today := t.today()
	month := t.month()

	return database.WithTransaction(t.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO api_budget (date, calls, cost_cents, last_updated) VALUES (?, 0, 0, datetime('now'))
			 ON CONFLICT(date) DO NOTHING`, today); err != nil {
			return fmt.Errorf("insert-or-ignore today's budget row: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE api_budget SET calls = calls + 1, cost_cents = cost_cents + ?, last_updated = datetime('now') WHERE date = ?`,
			costCents, today); err != nil {
			return fmt.Errorf("increment today's budget row: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO api_budget_monthly (month, cost_cents, last_updated) VALUES (?, 0, datetime('now'))
			 ON CONFLICT(month) DO NOTHING`, month); err != nil {
			return fmt.Errorf("insert-or-ignore month row: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE api_budget_monthly SET cost_cents = cost_cents + ?, last_updated = datetime('now') WHERE month = ?`,
			costCents, month); err != nil {
			return fmt.Errorf("increment month row: %w", err)
		}

		return nil
	})
}

// RemainingCalls reports how many paid calls are left before the daily
// ceiling, clamped to zero. A ceiling of zero or less means unlimited,
// reported as math.MaxInt32 so callers can use it directly as a cap.
func (t *Tracker) RemainingCalls(ctx context.Context) (int, error) {
	if t.dailyCeiling <= 0 {
		return math.MaxInt32, nil
	}

	callsToday, err := t.callsToday(ctx)
	if err != nil {
		return 0, err
	}

	remaining := t.dailyCeiling - callsToday
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// StatusSummary returns today's counters and month-to-date spend.
func (t *Tracker) StatusSummary(ctx context.Context) (Summary, error) {
	calls, err := t.callsToday(ctx)
	if err != nil {
		return Summary{}, err
	}

	var costCents int64
	row := t.db.QueryRowContext(ctx, "SELECT cost_cents FROM api_budget WHERE date = ?", t.today())
	if err := row.Scan(&costCents); err != nil && err != sql.ErrNoRows {
		return Summary{}, fmt.Errorf("query cost today: %w", err)
	}

	monthCost, err := t.monthToDateCost(ctx)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Date:         t.today(),
		CallsToday:   calls,
		CostToday:    decimal.New(costCents, -2),
		MonthToDate:  monthCost,
		DailyCeiling: t.dailyCeiling,
		MonthlyCeil:  t.monthlyCeiling,
	}, nil
}
