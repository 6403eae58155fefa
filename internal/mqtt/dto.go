package mqtt

import (
	"time"

	"github.com/leadme/daf/internal/events"
)

// EventMessage is the JSON document published for every forwarded event.
// Field names are part of the topic contract for subscribers.
type EventMessage struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEventMessage builds the message for ev
func NewEventMessage(ev events.Event) EventMessage {
	return EventMessage{
		Type:      string(ev.GetType()),
		Timestamp: ev.GetTimestamp().UTC(),
		Payload:   ev.GetPayload(),
	}
}
