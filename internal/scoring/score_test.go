package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute_TradeableAboveThreshold(t *testing.T) {
	in := Input{VRPRatio: 2.0, Consistency: 0.8, LiquidityScore: 100, SkewBiasValue: 0}
	s := Compute(in, DefaultWeights(), 55)

	require.Equal(t, 100.0, s.Composite)
	require.True(t, s.Tradeable)
}

func TestCompute_NotTradeableBelowThreshold(t *testing.T) {
	in := Input{VRPRatio: 1.0, Consistency: 0.0, LiquidityScore: 20, SkewBiasValue: 0.6}
	s := Compute(in, DefaultWeights(), 55)
	require.False(t, s.Tradeable)
}

func TestLiquidityScore_RescalesTo100(t *testing.T) {
	require.Equal(t, 100.0, LiquidityScore("Excellent"))
	require.Equal(t, 20.0, LiquidityScore("Reject"))
}

func TestAdjustDirection_NeutralSkewBreaksTie(t *testing.T) {
	r := AdjustDirection(SkewNeutral, 0.3)
	require.Equal(t, Bullish, r.AdjustedDirection)

	r = AdjustDirection(SkewNeutral, -0.3)
	require.Equal(t, Bearish, r.AdjustedDirection)

	r = AdjustDirection(SkewNeutral, 0.1)
	require.Equal(t, Neutral, r.AdjustedDirection)
}

func TestAdjustDirection_ConflictCollapsesToNeutral(t *testing.T) {
	r := AdjustDirection(SkewBullish, -0.3)
	require.Equal(t, Neutral, r.AdjustedDirection)

	r = AdjustDirection(SkewBearish, 0.3)
	require.Equal(t, Neutral, r.AdjustedDirection)
}

func TestAdjustDirection_KeepsSkewWhenAligned(t *testing.T) {
	r := AdjustDirection(SkewBullish, 0.1)
	require.Equal(t, Bullish, r.AdjustedDirection)
	require.Equal(t, "skew_driven", r.RuleApplied)
}

func TestSizeModifier_ContrarianBounds(t *testing.T) {
	require.Equal(t, 0.90, SizeModifier(0.5).Modifier)
	require.Equal(t, 1.10, SizeModifier(-0.5).Modifier)
	require.Equal(t, 1.00, SizeModifier(0.0).Modifier)
}

func TestSizeModifier_HighBullishWarning(t *testing.T) {
	require.True(t, SizeModifier(0.7).HighBullishWarning)
	require.False(t, SizeModifier(0.6).HighBullishWarning)
}

func TestDirection_IsValid(t *testing.T) {
	require.True(t, Bullish.IsValid())
	require.False(t, Direction("garbage").IsValid())
}

func TestParseDirection_DefaultsToUnknown(t *testing.T) {
	require.Equal(t, Unknown, ParseDirection("sideways"))
	require.Equal(t, Bullish, ParseDirection("bullish"))
}
