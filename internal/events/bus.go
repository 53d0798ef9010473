package events

import (
	"sync"
	"time"

	"ultra-signal-engine/internal/arbiter"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSignalExpired   EventType = "SIGNAL_EXPIRED"
	EventSignalPersisted EventType = "SIGNAL_PERSISTED"
	EventSourceIngested  EventType = "SOURCE_INGESTED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions. Subscribers run in their
// own goroutine so a slow consumer never blocks the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a freshly arbitrated signal
func (b *Bus) PublishSignalGenerated(signal *arbiter.UltraSignal) {
	b.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal": signal,
		},
	})
}

// PublishSignalExpired publishes a TTL eviction from the live buffer
func (b *Bus) PublishSignalExpired(signal *arbiter.UltraSignal) {
	b.Publish(Event{
		Type: EventSignalExpired,
		Data: map[string]interface{}{
			"signal_id": signal.ID,
			"symbol":    signal.Symbol,
			"timeframe": signal.Timeframe,
		},
	})
}

// PublishSignalPersisted publishes a history write with its change reason
func (b *Bus) PublishSignalPersisted(signal *arbiter.UltraSignal, reason string) {
	b.Publish(Event{
		Type: EventSignalPersisted,
		Data: map[string]interface{}{
			"signal_id": signal.ID,
			"symbol":    signal.Symbol,
			"timeframe": signal.Timeframe,
			"reason":    reason,
		},
	})
}

// PublishSourceIngested publishes a raw source arrival
func (b *Bus) PublishSourceIngested(sourceType, symbol, timeframe, side string) {
	b.Publish(Event{
		Type: EventSourceIngested,
		Data: map[string]interface{}{
			"source":    sourceType,
			"symbol":    symbol,
			"timeframe": timeframe,
			"side":      side,
		},
	})
}

// PublishError publishes an error event
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
