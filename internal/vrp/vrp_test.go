package vrp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_SkipBelowMinMoves(t *testing.T) {
	r := Evaluate(5.0, []float64{1, 2}, 4, DefaultThresholds())
	require.Equal(t, Skip, r.Tier)
	require.NotEmpty(t, r.Reason)
}

func TestEvaluate_Tiering(t *testing.T) {
	history := []float64{2.5, 2.5, 2.5, 2.5} // mean 2.5
	cases := []struct {
		implied float64
		want    Tier
	}{
		{5.0, Excellent},  // ratio 2.0
		{6.25, Excellent}, // ratio 2.5
		{3.75, Good},      // ratio 1.5
		{3.0, Marginal},   // ratio 1.2
		{2.5, Skip},       // ratio 1.0
	}

	for _, c := range cases {
		r := Evaluate(c.implied, history, 4, DefaultThresholds())
		require.Equal(t, c.want, r.Tier, "implied=%v", c.implied)
	}
}

func TestEvaluate_IsPureAndDeterministic(t *testing.T) {
	history := []float64{1.1, 2.2, 3.3, 4.4}
	first := Evaluate(5.0, history, 4, DefaultThresholds())
	second := Evaluate(5.0, history, 4, DefaultThresholds())
	require.Equal(t, first, second)
}

func TestEvaluate_EdgeScoreNeverNegative(t *testing.T) {
	history := []float64{10, 10, 10, 10}
	r := Evaluate(1.0, history, 4, DefaultThresholds())
	require.Equal(t, 0.0, r.EdgeScore)
}
