// Package events provides the in-process telemetry stream for the gateway.
// Every boundary in the retrieval pipeline publishes a typed event onto a
// Bus, which fans events out to subscribers and retains a bounded replay
// ring of the most recent entries.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Type discriminates telemetry events.
type Type string

// Telemetry event taxonomy.
const (
	TypeQueryReceived     Type = "query_received"
	TypePrivacyProcessed  Type = "privacy_processed"
	TypeRiskBlocked       Type = "risk_blocked"
	TypeConsentRequired   Type = "consent_required"
	TypeConsentDecision   Type = "consent_decision"
	TypeIngestSuccess     Type = "ingest_success"
	TypeIngestError       Type = "ingest_error"
	TypeArchestraRequest  Type = "archestra_request"
	TypeArchestraResponse Type = "archestra_response"
	TypeMemorySaved       Type = "memory_saved"
)

// DefaultCapacity is the default size of the replay ring.
const DefaultCapacity = 200

// Event is a single telemetry record. Events are totally ordered by
// (Timestamp, ID).
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine; panics are recovered so one broken subscriber
// cannot break telemetry.
type Handler func(Event)

// Bus is the in-process event bus with a bounded replay ring.
type Bus struct {
	mu       sync.Mutex
	capacity int
	ring     []Event
	handlers map[int]Handler
	nextSub  int
	logger   hclog.Logger
}

// BusConfig holds configuration for the event bus.
type BusConfig struct {
	Capacity int // Replay ring size (default: 200)
	Logger   hclog.Logger
}

// NewBus creates a new event bus.
func NewBus(config BusConfig) *Bus {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	return &Bus{
		capacity: config.Capacity,
		ring:     make([]Event, 0, config.Capacity),
		handlers: make(map[int]Handler),
		logger:   config.Logger.Named("event-bus"),
	}
}

// Publish assigns an id and timestamp, appends the event to the ring
// (evicting the oldest entry on overflow) and invokes every handler.
func (b *Bus) Publish(t Type, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}

	b.mu.Lock()
	b.ring = append(b.ring, event)
	if len(b.ring) > b.capacity {
		b.ring = b.ring[len(b.ring)-b.capacity:]
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.invoke(h, event)
	}

	return event
}

// invoke runs a single handler, swallowing panics.
func (b *Bus) invoke(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	h(event)
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Recent returns up to limit of the most recent events, oldest first.
// A non-positive limit returns the whole ring.
func (b *Bus) Recent(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.ring)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, b.ring[len(b.ring)-n:])
	return out
}

// Len returns the number of events currently retained.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}
