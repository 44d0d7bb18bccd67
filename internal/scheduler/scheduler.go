// Package scheduler fires named jobs at fixed Eastern-zone times of
// day. It is DST-safe because each fire time is recomputed against
// clock.Eastern on every tick rather than accumulated from a fixed
// interval, and it never queues a missed or overrunning run: if a job
// is still executing when its next fire time arrives, that tick is
// skipped and logged as an overrun rather than stacking concurrent
// runs of the same job.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vrp-sentinel/internal/clock"
)

// Entry is one scheduled job: fire daily at Hour:Minute Eastern on any
// of the given weekdays (nil/empty means every day).
type Entry struct {
	Name     string
	Hour     int
	Minute   int
	Weekdays []time.Weekday // empty = every day
	Run      func(ctx context.Context)
}

func (e Entry) firesOn(wd time.Weekday) bool {
	if len(e.Weekdays) == 0 {
		return true
	}
	for _, w := range e.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// Scheduler owns a fixed set of Entries and dispatches them from a
// single goroutine per entry, each polling at pollInterval (default 30s)
// for its next fire time.
type Scheduler struct {
	clock        *clock.Clock
	log          zerolog.Logger
	entries      []Entry
	pollInterval time.Duration
	drainTimeout time.Duration

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	overruns sync.Map // name -> count
}

// New builds a Scheduler. pollInterval and drainTimeout fall back to
// 30s and 30s respectively when zero.
func New(clk *clock.Clock, log zerolog.Logger, entries []Entry, pollInterval, drainTimeout time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &Scheduler{
		clock:        clk,
		log:          log.With().Str("component", "scheduler").Logger(),
		entries:      entries,
		pollInterval: pollInterval,
		drainTimeout: drainTimeout,
	}
}

// Start launches one dispatch goroutine per entry. Returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, e := range s.entries {
		entry := e
		s.wg.Add(1)
		go s.dispatch(ctx, entry)
	}
}

// dispatch polls for entry's next fire time and runs it exactly once
// per matching minute, skipping overruns rather than queueing them.
func (s *Scheduler) dispatch(ctx context.Context, entry Entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var running sync.Mutex
	lastFired := ""

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now()
			if now.Hour() != entry.Hour || now.Minute() != entry.Minute {
				continue
			}
			if !entry.firesOn(now.Weekday()) {
				continue
			}

			fireKey := now.Format("2006-01-02T15:04")
			if fireKey == lastFired {
				continue
			}

			if !running.TryLock() {
				count, _ := s.overruns.LoadOrStore(entry.Name, 0)
				s.overruns.Store(entry.Name, count.(int)+1)
				s.log.Warn().Str("job", entry.Name).Msg("scheduler overrun: previous run still in flight, skipping tick")
				continue
			}
			lastFired = fireKey

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer running.Unlock()
				s.log.Info().Str("job", entry.Name).Msg("scheduler firing job")
				entry.Run(ctx)
			}()
		}
	}
}

// Stop cancels all dispatch goroutines and waits up to drainTimeout for
// in-flight job runs to finish before returning.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.drainTimeout):
		s.log.Warn().Msg("scheduler drain timeout exceeded, some jobs may still be running")
	}
}

// OverrunCount returns how many ticks were skipped for name due to an
// in-flight run, for status reporting.
func (s *Scheduler) OverrunCount(name string) int {
	v, ok := s.overruns.Load(name)
	if !ok {
		return 0
	}
	return v.(int)
}
