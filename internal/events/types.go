// Package events provides an asynchronous event bus that carries DAF session,
// diagnostic and headset events from producers to consumers without blocking
// the producer.
package events

import (
	"time"
)

// EventType identifies an event kind. Values are also used as MQTT topic suffixes
// and SSE event names.
type EventType string

const (
	TypeSessionStarted               EventType = "session_started"
	TypeSessionStopped               EventType = "session_stopped"
	TypeDiagnostic                   EventType = "diagnostic"
	TypeHeadphoneStateChanged        EventType = "headphoneStateChanged"
	TypeBluetoothHeadsetStateChanged EventType = "bluetoothHeadsetStateChanged"
)

// Event is anything that can travel on the bus
type Event interface {
	// GetType returns the event kind
	GetType() EventType

	// GetTimestamp returns when the event occurred
	GetTimestamp() time.Time

	// GetPayload returns a JSON-friendly view of the event
	GetPayload() map[string]any
}

// Publisher is the producer side of the bus. Components receive it through
// their constructors.
type Publisher interface {
	// TryPublish enqueues the event without blocking and reports whether it was accepted
	TryPublish(event Event) bool
}

// EventConsumer represents a consumer that processes events
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

// ConsumerFunc adapts a function to EventConsumer
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(Event) error
}

// Name implements EventConsumer
func (c ConsumerFunc) Name() string { return c.ConsumerName }

// ProcessEvent implements EventConsumer
func (c ConsumerFunc) ProcessEvent(event Event) error { return c.Fn(event) }

// NopPublisher drops every event. Used where no bus is wired.
type NopPublisher struct{}

// TryPublish implements Publisher
func (NopPublisher) TryPublish(Event) bool { return false }
