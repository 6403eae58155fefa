package daf

// Device is the lifecycle shared by capture and playback handles
type Device interface {
	// Start begins hardware I/O
	Start() error
	// Stop ends hardware I/O; Read and Write return promptly afterwards
	Stop() error
	// Close releases the underlying resources. Calling Close twice is a no-op.
	Close() error
}

// CaptureSource produces PCM frames. Read blocks for at most the device
// timeout; a count of zero means no data was available.
type CaptureSource interface {
	Device
	Read(buf []byte) (int, error)
}

// SinkDevice consumes PCM frames. Write blocks for at most the device
// timeout and fails with ErrWriteFailed when the frame could not be queued.
type SinkDevice interface {
	Device
	Write(buf []byte) (int, error)
}

// Backend opens capture and playback devices for a given format.
// Open failures are reported as ErrDeviceUnavailable.
type Backend interface {
	Name() string
	// RecommendedFrameSize returns the platform minimum buffer size in bytes
	RecommendedFrameSize(cfg AudioConfig) (int, error)
	OpenCapture(cfg AudioConfig, frameSize int) (CaptureSource, error)
	OpenSink(cfg AudioConfig, frameSize int) (SinkDevice, error)
}
