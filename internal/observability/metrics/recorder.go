// Package metrics provides Prometheus collectors for the DAF service.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on a concrete collector.
type Recorder interface {
	// RecordOperation records an operation with its status,
	// e.g. ("session_start", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence. errorType is usually an
	// error category such as "device-unavailable" or "transient-io".
	RecordError(operation, errorType string)
}
