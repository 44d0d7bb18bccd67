package liquidity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testThresholds() Thresholds {
	return Thresholds{
		MinOI: 50, GoodOI: 200, ExcellentOI: 1000,
		MinVolume: 10, GoodVolume: 100, ExcellentVolume: 500,
		MaxSpreadPct: 0.15, GoodSpreadPct: 0.08, ExcellentSpreadPct: 0.03,
	}
}

func TestClassify_WorstOfThreeAxes(t *testing.T) {
	th := testThresholds()

	q := Quote{OpenInterest: 2000, Volume: 5, Bid: 1.0, Ask: 1.02} // OI excellent, volume reject, spread excellent
	require.Equal(t, Reject, Classify(q, th))
}

func TestClassify_AllExcellent(t *testing.T) {
	th := testThresholds()
	q := Quote{OpenInterest: 2000, Volume: 600, Bid: 1.0, Ask: 1.01}
	require.Equal(t, Excellent, Classify(q, th))
}

func TestClassify_MissingBidOrAsk_IsReject(t *testing.T) {
	th := testThresholds()
	q := Quote{OpenInterest: 2000, Volume: 600, Bid: 0, Ask: 1.01}
	require.Equal(t, Reject, Classify(q, th))
}

func TestClassifyStraddle_WorseLegWins(t *testing.T) {
	th := testThresholds()
	goodCall := Quote{OpenInterest: 2000, Volume: 600, Bid: 1.0, Ask: 1.01}
	badPut := Quote{OpenInterest: 10, Volume: 1, Bid: 1.0, Ask: 1.5}

	require.Equal(t, Reject, ClassifyStraddle(goodCall, badPut, th))
}

func TestScore_MatchesTable(t *testing.T) {
	require.Equal(t, 20.0, Score(Excellent))
	require.Equal(t, 16.0, Score(Good))
	require.Equal(t, 12.0, Score(Warning))
	require.Equal(t, 4.0, Score(Reject))
}
