// Package vrp implements the Volatility Risk Premium engine: a pure
// function from an implied move and a historical move distribution to a
// ratio, tier, and edge score. No I/O, no time dependence.
package vrp

import "gonum.org/v1/gonum/stat"

// Tier classifies the VRP ratio into a tradeability bucket.
type Tier string

const (
	Excellent Tier = "Excellent"
	Good      Tier = "Good"
	Marginal  Tier = "Marginal"
	Skip      Tier = "Skip"
)

// Thresholds configures the ratio cutoffs for each tier. Tier
// thresholds are configuration, not code constants.
type Thresholds struct {
	Excellent float64 // default 2.0
	Good      float64 // default 1.5
	Marginal  float64 // default 1.2
}

// DefaultThresholds returns the spec's default tier cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 2.0, Good: 1.5, Marginal: 1.2}
}

// Result is the output of Evaluate.
type Result struct {
	Ratio     float64
	Tier      Tier
	EdgeScore float64
	Reason    string
}

// Evaluate computes the VRP result for impliedMovePct against history.
// If len(history) < minMoves, it returns tier Skip with an explanatory
// reason rather than computing a ratio.
func Evaluate(impliedMovePct float64, history []float64, minMoves int, th Thresholds) Result {
	if len(history) < minMoves {
		return Result{
			Tier:   Skip,
			Reason: "insufficient historical moves",
		}
	}

	mean := stat.Mean(history, nil)
	if mean == 0 {
		return Result{Tier: Skip, Reason: "historical mean is zero"}
	}

	ratio := impliedMovePct / mean
	tier := classify(ratio, th)
	edge := ratio - 1.0
	if edge < 0 {
		edge = 0
	}

	return Result{Ratio: ratio, Tier: tier, EdgeScore: edge}
}

func classify(ratio float64, th Thresholds) Tier {
	switch {
	case ratio >= th.Excellent:
		return Excellent
	case ratio >= th.Good:
		return Good
	case ratio >= th.Marginal:
		return Marginal
	default:
		return Skip
	}
}
