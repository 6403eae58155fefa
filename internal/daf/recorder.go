package daf

import (
	"github.com/leadme/daf/internal/observability/metrics"
)

// Recorder receives engine and lifecycle measurements. The Prometheus
// implementation lives in observability/metrics.
type Recorder interface {
	metrics.Recorder
	// RecordFrame counts one frame of n bytes delivered to the sink
	RecordFrame(n int)
	// SetSessionActive tracks whether a session is running
	SetSessionActive(active bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string) {}
func (nopRecorder) RecordDuration(string, float64) {}
func (nopRecorder) RecordError(string, string)     {}
func (nopRecorder) RecordFrame(int)                {}
func (nopRecorder) SetSessionActive(bool)          {}
