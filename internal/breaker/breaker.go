// Package breaker implements a three-state circuit breaker (Closed,
// Open, HalfOpen) wrapping arbitrary function values. It protects
// outbound calls to flaky vendor collaborators.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker fails a call fast without
// invoking the wrapped function.
var ErrOpen = errors.New("circuit_open")

// Config tunes the breaker's transition thresholds.
type Config struct {
	FailureThreshold int           // consecutive failures in Closed before tripping Open
	SuccessThreshold int           // consecutive successes in HalfOpen before closing
	RecoveryTimeout  time.Duration // time in Open before trying HalfOpen
}

// Breaker guards a named dependency.
type Breaker struct {
	name string
	cfg  Config
	log  zerolog.Logger

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	openedAt        time.Time
}

// New builds a Breaker starting in the Closed state.
func New(name string, cfg Config, log zerolog.Logger) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg,
		log:   log.With().Str("component", "breaker").Str("vendor", name).Logger(),
		state: Closed,
	}
}

// State returns the current state under lock.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call invokes fn if the breaker allows it, recording the outcome. A
// context cancellation before fn runs is neither a success nor a
// failure and does not affect breaker state.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !b.allow() {
		return ErrOpen
	}

	err := fn(ctx)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Cancelled mid-call: counted as neither success nor failure.
		return err
	}

	if err != nil {
		b.recordFailure()
		return err
	}

	b.recordSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.successCount = 0
			b.log.Info().Msg("breaker transitioning to half_open")
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.failureCount = 0
	b.successCount = 0
	b.log.Warn().Msg("breaker open")
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
			b.log.Info().Msg("breaker closed")
		}
	}
}
