package clock

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() *Clock {
	return New(zerolog.Nop())
}

func TestIsNonTradingDay_Weekend(t *testing.T) {
	c := testClock()

	saturday := time.Date(2025, 3, 8, 0, 0, 0, 0, Eastern)
	require.Equal(t, time.Saturday, saturday.Weekday())
	assert.True(t, c.IsNonTradingDay(saturday))
}

func TestIsNonTradingDay_Holiday(t *testing.T) {
	c := testClock()

	newYears := time.Date(2025, 1, 1, 0, 0, 0, 0, Eastern)
	assert.True(t, c.IsNonTradingDay(newYears))
}

func TestIsNonTradingDay_RegularDay(t *testing.T) {
	c := testClock()

	regular := time.Date(2025, 3, 11, 0, 0, 0, 0, Eastern) // a Tuesday
	assert.False(t, c.IsNonTradingDay(regular))
}

func TestIsNonTradingDay_UnknownYear_NeverPanics(t *testing.T) {
	c := testClock()

	farFuture := time.Date(2099, 6, 10, 0, 0, 0, 0, Eastern) // a Wednesday
	assert.NotPanics(t, func() {
		assert.False(t, c.IsNonTradingDay(farFuture))
	})
}

func TestToday_TruncatesToMidnightEastern(t *testing.T) {
	c := testClock()
	today := c.Today()
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, 0, today.Minute())
	assert.Equal(t, Eastern, today.Location())
}
