// Package ratelimit provides a per-vendor token-bucket rate limiter.
// Each Bucket wraps golang.org/x/time/rate for lazy wall-clock refill
// and cancellation-safe reservations; Acquire adds the wait/no-wait and
// refusal contract this service's vendor clients need on top of it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrRefused is returned by Acquire when wait=false and the bucket
// cannot satisfy the request immediately.
var ErrRefused = fmt.Errorf("rate limit refused")

// Bucket is a single named token bucket.
type Bucket struct {
	name    string
	limiter *rate.Limiter
}

// NewBucket builds a bucket with the given capacity (burst) and
// refill rate in tokens/sec.
func NewBucket(name string, capacity float64, refillPerSec float64) *Bucket {
	return &Bucket{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(refillPerSec), int(capacity)),
	}
}

// Name returns the vendor name this bucket guards.
func (b *Bucket) Name() string {
	return b.name
}

// Acquire reserves n tokens. If wait is false, it returns immediately:
// ErrRefused if the bucket cannot satisfy n tokens right now, nil
// otherwise. If wait is true, it blocks until n tokens are available or
// ctx is cancelled; on cancellation the reservation is refunded so a
// cancelled acquire never consumes tokens it did not hand out.
func (b *Bucket) Acquire(ctx context.Context, n int, wait bool) error {
	now := time.Now()

	if !wait {
		if b.limiter.AllowN(now, n) {
			return nil
		}
		return ErrRefused
	}

	reservation := b.limiter.ReserveN(now, n)
	if !reservation.OK() {
		return fmt.Errorf("%s: requested %d tokens exceeds bucket capacity", b.name, n)
	}

	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.CancelAt(time.Now())
		return ctx.Err()
	}
}

// Registry owns one Bucket per vendor name.
type Registry struct {
	buckets map[string]*Bucket
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*Bucket)}
}

// Register adds or replaces the bucket for name.
func (r *Registry) Register(name string, capacity, refillPerSec float64) *Bucket {
	b := NewBucket(name, capacity, refillPerSec)
	r.buckets[name] = b
	return b
}

// Get returns the bucket for name, or nil if not registered.
func (r *Registry) Get(name string) *Bucket {
	return r.buckets[name]
}
