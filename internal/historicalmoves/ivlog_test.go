package historicalmoves

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogIVObservation_ThenUsedRealOptionsRecently(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	used, err := s.UsedRealOptionsRecently(ctx, "AAPL", "2024-05-01")
	require.NoError(t, err)
	require.False(t, used)

	require.NoError(t, s.LogIVObservation(ctx, IVObservation{
		Ticker: "aapl", EarningsDate: "2024-05-01",
		ImpliedMovePct: 6.2, ATMIV: 0.48, Source: "options_chain",
	}))

	used, err = s.UsedRealOptionsRecently(ctx, "AAPL", "2024-05-01")
	require.NoError(t, err)
	require.True(t, used)
}

func TestLogIVObservation_HistoricalMeanSourceDoesNotCountAsRealOptions(t *testing.T) {
	db := testDB(t)
	s := New(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.LogIVObservation(ctx, IVObservation{
		Ticker: "MSFT", EarningsDate: "2024-05-01",
		ImpliedMovePct: 4.1, Source: "historical_mean",
	}))

	used, err := s.UsedRealOptionsRecently(ctx, "MSFT", "2024-05-01")
	require.NoError(t, err)
	require.False(t, used)
}
