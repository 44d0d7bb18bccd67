// Package scoring combines VRP, consistency, liquidity, and skew into a
// single composite score, plus the sentiment-adjusted direction and
// contrarian size-modifier sub-engines. All three are pure functions.
package scoring

import (
	"math"

	"github.com/aristath/vrp-sentinel/internal/liquidity"
)

// LiquidityScore re-scales the liquidity tier's 0-20 table to 0-100 for
// use as the composite score's liquidity subcomponent.
func LiquidityScore(tier liquidity.Tier) float64 {
	return liquidity.Score(tier) * 5
}

// Weights configures the composite score's subcomponent weights. Must
// sum to 1 for the result to land in [0, 100].
type Weights struct {
	VRP         float64
	Consistency float64
	Liquidity   float64
	Skew        float64
}

// DefaultWeights returns the spec's default weighting.
func DefaultWeights() Weights {
	return Weights{VRP: 0.40, Consistency: 0.25, Liquidity: 0.20, Skew: 0.15}
}

// Input bundles the composite score's raw subcomponent inputs.
type Input struct {
	VRPRatio        float64
	Consistency     float64 // [0,1]
	LiquidityScore  float64 // already on the 0-100 scale from LiquidityScore
	SkewBiasValue   float64 // signed skew, e.g. -1..+1; |value| drives the decay curve
}

// Score is the composite scoring result.
type Score struct {
	Composite  float64
	Tradeable  bool
	VRPScore   float64
	Consistency float64
	Liquidity  float64
	Skew       float64
}

// lerp linearly interpolates y for x between (x0,y0) and (x1,y1). It
// does not clamp: for x outside [x0,x1] it extrapolates along the same
// line, and callers bound the result themselves.
func lerp(x, x0, y0, x1, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// vrpScore normalizes a VRP ratio to [0,100] via documented anchors:
// ratio>=2.0 -> 100, 1.5 -> 75, 1.2 -> 50, 1.0 -> 0, <1 -> 0.
func vrpScore(ratio float64) float64 {
	switch {
	case ratio >= 2.0:
		return 100
	case ratio >= 1.5:
		return lerp(ratio, 1.5, 75, 2.0, 100)
	case ratio >= 1.2:
		return lerp(ratio, 1.2, 50, 1.5, 75)
	case ratio >= 1.0:
		return lerp(ratio, 1.0, 0, 1.2, 50)
	default:
		return 0
	}
}

// consistencyScore normalizes [0,1] consistency to [0,100] via anchors:
// >=0.8 -> 100, 0.6 -> 75, 0.4 -> 50, <0.4 -> 0.
func consistencyScore(consistency float64) float64 {
	switch {
	case consistency >= 0.8:
		return 100
	case consistency >= 0.6:
		return lerp(consistency, 0.6, 75, 0.8, 100)
	case consistency >= 0.4:
		return lerp(consistency, 0.4, 50, 0.6, 75)
	default:
		return 0
	}
}

// skewScore decays linearly from a neutral plateau: |skew|<=0.15 -> 100;
// |skew|=0.5 -> ~50; beyond that continues the same line, floored at 0.
func skewScore(skewBiasValue float64) float64 {
	abs := math.Abs(skewBiasValue)
	if abs <= 0.15 {
		return 100
	}
	score := lerp(abs, 0.15, 100, 0.5, 50)
	if score < 0 {
		return 0
	}
	return score
}

// Compute produces the composite score and tradeable flag.
func Compute(in Input, w Weights, tradeableThreshold float64) Score {
	vScore := vrpScore(in.VRPRatio)
	cScore := consistencyScore(in.Consistency)
	lScore := in.LiquidityScore
	sScore := skewScore(in.SkewBiasValue)

	composite := w.VRP*vScore + w.Consistency*cScore + w.Liquidity*lScore + w.Skew*sScore
	composite = math.Round(composite*10) / 10

	return Score{
		Composite:   composite,
		Tradeable:   composite >= tradeableThreshold,
		VRPScore:    vScore,
		Consistency: cScore,
		Liquidity:   lScore,
		Skew:        sScore,
	}
}
