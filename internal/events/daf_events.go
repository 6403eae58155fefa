package events

import (
	"time"

	"github.com/leadme/daf/internal/errors"
)

// SessionEvent reports a DAF session entering or leaving the Running state
type SessionEvent struct {
	Type          EventType
	SessionID     string
	SampleRateHz  int
	DelayMs       int
	CapacityBytes int
	FrameBytes    int
	Timestamp     time.Time
}

// NewSessionEvent creates a session lifecycle event stamped with the current time
func NewSessionEvent(eventType EventType, sessionID string, sampleRateHz, delayMs, capacityBytes, frameBytes int) *SessionEvent {
	return &SessionEvent{
		Type:          eventType,
		SessionID:     sessionID,
		SampleRateHz:  sampleRateHz,
		DelayMs:       delayMs,
		CapacityBytes: capacityBytes,
		FrameBytes:    frameBytes,
		Timestamp:     time.Now(),
	}
}

func (e *SessionEvent) GetType() EventType      { return e.Type }
func (e *SessionEvent) GetTimestamp() time.Time { return e.Timestamp }

func (e *SessionEvent) GetPayload() map[string]any {
	return map[string]any{
		"session_id":     e.SessionID,
		"sample_rate_hz": e.SampleRateHz,
		"delay_ms":       e.DelayMs,
		"capacity_bytes": e.CapacityBytes,
		"frame_bytes":    e.FrameBytes,
	}
}

// DiagnosticEvent is the out-of-band failure report delivered to the host,
// typically for DeviceUnavailable on start.
type DiagnosticEvent struct {
	Component string
	Category  string
	Priority  string
	Message   string
	Context   map[string]any
	Timestamp time.Time
}

// NewDiagnosticEvent converts an error into a diagnostic event. Enhanced errors
// keep their component, category and context.
func NewDiagnosticEvent(err error) *DiagnosticEvent {
	ev := &DiagnosticEvent{
		Component: errors.ComponentUnknown,
		Category:  string(errors.CategoryGeneric),
		Timestamp: time.Now(),
	}
	if err == nil {
		return ev
	}

	ev.Message = err.Error()

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		ev.Component = ee.GetComponent()
		ev.Category = ee.GetCategory()
		ev.Priority = ee.GetPriority()
		ev.Context = ee.GetContext()
		ev.Timestamp = ee.GetTimestamp()
	}

	return ev
}

func (e *DiagnosticEvent) GetType() EventType      { return TypeDiagnostic }
func (e *DiagnosticEvent) GetTimestamp() time.Time { return e.Timestamp }

func (e *DiagnosticEvent) GetPayload() map[string]any {
	payload := map[string]any{
		"component": e.Component,
		"category":  e.Category,
		"message":   e.Message,
	}
	if e.Priority != "" {
		payload["priority"] = e.Priority
	}
	if len(e.Context) > 0 {
		payload["context"] = e.Context
	}
	return payload
}

// HeadsetEvent reports a change in wired or Bluetooth headphone connectivity
type HeadsetEvent struct {
	Type      EventType
	Connected bool
	Timestamp time.Time
}

// NewHeadphoneStateChanged creates a wired headphone connectivity event
func NewHeadphoneStateChanged(connected bool) *HeadsetEvent {
	return &HeadsetEvent{Type: TypeHeadphoneStateChanged, Connected: connected, Timestamp: time.Now()}
}

// NewBluetoothHeadsetStateChanged creates a Bluetooth headset connectivity event
func NewBluetoothHeadsetStateChanged(connected bool) *HeadsetEvent {
	return &HeadsetEvent{Type: TypeBluetoothHeadsetStateChanged, Connected: connected, Timestamp: time.Now()}
}

func (e *HeadsetEvent) GetType() EventType      { return e.Type }
func (e *HeadsetEvent) GetTimestamp() time.Time { return e.Timestamp }

func (e *HeadsetEvent) GetPayload() map[string]any {
	return map[string]any{"connected": e.Connected}
}
