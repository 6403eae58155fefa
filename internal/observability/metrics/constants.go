// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded by the DAF controller and engine.
const (
	// OpSessionStart is a Start request that reached device acquisition.
	OpSessionStart = "session_start"
	// OpSessionStop is a Stop request that released a running session.
	OpSessionStop = "session_stop"
	// OpSession is the lifetime of a session from start to stop.
	OpSession = "session"
	// OpCaptureRead is one read from the capture source.
	OpCaptureRead = "capture_read"
	// OpSinkWrite is one write to the playback sink.
	OpSinkWrite = "sink_write"
	// OpWorkerIteration is one read, delay and write cycle.
	OpWorkerIteration = "worker_iteration"
	// OpWorker is the worker goroutine as a whole.
	OpWorker = "worker"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Label values for headset kinds.
const (
	LabelWired     = "wired"
	LabelBluetooth = "bluetooth"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart1s is the starting bucket for 1s histograms (1s to ~9 hours range).
	BucketStart1s = 1.0
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server and event bus.
const ShutdownTimeout = 5 * time.Second
