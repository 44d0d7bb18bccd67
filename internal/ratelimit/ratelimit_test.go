package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquire_NoWait_RefusesWhenExhausted(t *testing.T) {
	b := NewBucket("vendor", 2, 0.001)
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx, 1, false))
	require.NoError(t, b.Acquire(ctx, 1, false))
	require.ErrorIs(t, b.Acquire(ctx, 1, false), ErrRefused)
}

func TestAcquire_Wait_BlocksUntilRefill(t *testing.T) {
	b := NewBucket("vendor", 1, 20) // 20/sec refill, fast enough for a test
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx, 1, true))

	start := time.Now()
	require.NoError(t, b.Acquire(ctx, 1, true))
	require.WithinDuration(t, start.Add(50*time.Millisecond), time.Now(), 200*time.Millisecond)
}

func TestAcquire_Cancellation_DoesNotLeakTokens(t *testing.T) {
	b := NewBucket("vendor", 1, 0.001) // refills far too slowly to matter
	ctx := context.Background()
	require.NoError(t, b.Acquire(ctx, 1, true))

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Acquire(cancelCtx, 1, true)
	require.Error(t, err)

	require.ErrorIs(t, err, context.Canceled)

	// The cancelled reservation's token must have been refunded by
	// CancelAt: with the bucket empty, a fresh one-token reservation then
	// waits about one refill interval (1000s at 0.001/s), not two.
	next := b.limiter.ReserveN(time.Now(), 1)
	require.Less(t, next.Delay(), 1500*time.Second)
}

func TestAcquire_ConservationBound(t *testing.T) {
	capacity := 5.0
	refillPerSec := 10.0
	b := NewBucket("vendor", capacity, refillPerSec)
	ctx := context.Background()

	window := 200 * time.Millisecond
	deadline := time.Now().Add(window)
	successes := 0
	for time.Now().Before(deadline) {
		if err := b.Acquire(ctx, 1, false); err == nil {
			successes++
		}
	}

	bound := int(capacity + refillPerSec*window.Seconds()) + 1 // +1 slack for timing
	require.LessOrEqual(t, successes, bound)
}
