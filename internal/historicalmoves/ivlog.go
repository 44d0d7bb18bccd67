package historicalmoves

import (
	"context"
	"fmt"

	"github.com/aristath/vrp-sentinel/internal/ticker"
)

// IVObservation is one implied-move reading taken ahead of an earnings
// event, journaled so a later evaluate_vrp run can tell whether a given
// ticker/date pair was ever priced from a live options chain.
type IVObservation struct {
	Ticker         string
	EarningsDate   string
	ImpliedMovePct float64
	ATMIV          float64 // 0 when the vendor does not report standalone IV
	Source         string  // "options_chain" or "historical_mean"
}

// LogIVObservation appends one row to iv_log. Append-only: repeated
// observations for the same ticker/date accumulate rather than
// overwrite, so weekly-cleanup's retention window is the only pruning.
func (s *Store) LogIVObservation(ctx context.Context, obs IVObservation) error {
	tk, err := ticker.Normalize(obs.Ticker)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO iv_log (ticker, earnings_date, implied_move_pct, atm_iv, source)
		 VALUES (?, ?, ?, ?, ?)`,
		tk, obs.EarningsDate, obs.ImpliedMovePct, obs.ATMIV, obs.Source)
	if err != nil {
		return fmt.Errorf("log iv observation for %s/%s: %w", tk, obs.EarningsDate, err)
	}
	return nil
}

// UsedRealOptionsRecently reports whether ticker/earningsDate has at
// least one "options_chain"-sourced iv_log row, i.e. whether an
// evaluation for that pair was ever priced from a live options chain.
func (s *Store) UsedRealOptionsRecently(ctx context.Context, tickerSymbol, earningsDate string) (bool, error) {
	tk, err := ticker.Normalize(tickerSymbol)
	if err != nil {
		return false, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM iv_log WHERE ticker = ? AND earnings_date = ? AND source = 'options_chain'`,
		tk, earningsDate).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query iv_log for %s/%s: %w", tk, earningsDate, err)
	}
	return count > 0, nil
}
