package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives every emitted event, e.g. an external broker.
// Publish must not block the caller for long; failures are logged.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Emitter is what modules depend on to emit events
type Emitter interface {
	Emit(eventType EventType, module, userID string, data EventData)
}

// Manager handles event emission and logging
type Manager struct {
	bus   *Bus
	sinks []Sink
	log   zerolog.Logger
	now   func() time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger, sinks ...Sink) *Manager {
	return &Manager{
		bus:   bus,
		sinks: sinks,
		log:   log.With().Str("service", "events").Logger(),
		now:   time.Now,
	}
}

// Emit publishes an event to the bus and sinks, and logs it
func (m *Manager) Emit(eventType EventType, module, userID string, data EventData) {
	event := Event{
		Type:      eventType,
		Timestamp: m.now(),
		Module:    module,
		UserID:    userID,
		Data:      data,
	}

	m.bus.Publish(event)

	for _, sink := range m.sinks {
		if err := sink.Publish(context.Background(), event); err != nil {
			m.log.Warn().
				Err(err).
				Str("event_type", string(eventType)).
				Msg("Failed to publish event to sink")
		}
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module, userID string, err error, context map[string]interface{}) {
	m.Emit(ErrorOccurred, module, userID, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

// Close closes every sink
func (m *Manager) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopEmitter discards events
type NopEmitter struct{}

// Emit implements Emitter
func (NopEmitter) Emit(EventType, string, string, EventData) {}
