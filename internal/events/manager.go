// Package events provides lightweight structured event emission for
// observability, distinct from the request/response flow of any single
// component. Events are logged, not queued or persisted.
package events

import (
	"time"

	"github.com/rs/zerolog"
)

// EventType names a category of structured event.
type EventType string

const (
	EventJobStarted    EventType = "job_started"
	EventJobCompleted  EventType = "job_completed"
	EventJobFailed     EventType = "job_failed"
	EventBudgetWarn    EventType = "budget_warn"
	EventBudgetHalt    EventType = "budget_halt"
	EventBreakerOpen   EventType = "breaker_open"
	EventBreakerClosed EventType = "breaker_closed"
	EventCacheEvicted  EventType = "cache_evicted"
)

// Event is a single structured occurrence worth surfacing in logs.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Manager emits events through a zerolog logger. It holds no state and
// is safe for concurrent use because zerolog.Logger is immutable value.
type Manager struct {
	log zerolog.Logger
}

// NewManager builds an event Manager using log as the base logger.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log.With().Str("component", "events").Logger()}
}

// Emit logs a structured event with the given type, originating module,
// and arbitrary context data.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	evt := m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		Time("event_time", time.Now())

	for k, v := range data {
		evt = evt.Interface(k, v)
	}

	evt.Msg("event")
}

// EmitError logs an error-level event, attaching the error and any
// additional context. Used by jobs and vendor clients to surface
// failures without aborting the caller.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	evt := m.log.Error().
		Str("module", module).
		Err(err)

	for k, v := range context {
		evt = evt.Interface(k, v)
	}

	evt.Msg("error event")
}
