package vendors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aristath/vrp-sentinel/internal/scoring"
)

func TestParseSentimentResponse_FullyPopulated(t *testing.T) {
	text := "Direction: bullish\nScore: 0.65\nCatalysts: strong guidance\nRisks: margin compression"
	resp := ParseSentimentResponse(text)

	require.Equal(t, scoring.Bullish, resp.Direction)
	require.Equal(t, 0.65, resp.Score)
	require.Equal(t, "strong guidance", resp.Catalysts)
	require.Equal(t, "margin compression", resp.Risks)
}

func TestParseSentimentResponse_MissingFieldsDefault(t *testing.T) {
	resp := ParseSentimentResponse("no structured fields here")

	require.Equal(t, scoring.Neutral, resp.Direction)
	require.Equal(t, 0.0, resp.Score)
	require.Empty(t, resp.Catalysts)
	require.Empty(t, resp.Risks)
}

func TestParseSentimentResponse_NegativeScore(t *testing.T) {
	resp := ParseSentimentResponse("Direction: bearish\nScore: -0.4")
	require.Equal(t, scoring.Bearish, resp.Direction)
	require.Equal(t, -0.4, resp.Score)
}

func TestTruncateMessage_NoOpUnderLimit(t *testing.T) {
	body := "short message"
	require.Equal(t, body, TruncateMessage(body, 4096))
}

func TestTruncateMessage_TruncatesWithEllipsis(t *testing.T) {
	body := strings.Repeat("a", 5000)
	out := TruncateMessage(body, 4096)

	require.Len(t, out, 4096)
	require.True(t, strings.HasSuffix(out, "..."))
}

func TestIsKind_MatchesWrappedError(t *testing.T) {
	err := NewError(KindRateLimit, errors.New("too many requests"))
	wrapped := errors.New("outer: " + err.Error())

	require.True(t, IsKind(err, KindRateLimit))
	require.False(t, IsKind(wrapped, KindRateLimit)) // not a vendors.Error, only string-wrapped
}
