package daf

import (
	"github.com/leadme/daf/internal/errors"
)

var (
	// ErrDeviceUnavailable is returned when a capture or playback device cannot be acquired
	ErrDeviceUnavailable = errors.Newf("audio device unavailable").
				Component("daf").
				Category(errors.CategoryDeviceUnavailable).
				Build()

	// ErrWriteFailed is returned by sinks when a frame could not be written
	ErrWriteFailed = errors.Newf("audio write failed").
			Component("daf").
			Category(errors.CategoryTransientIO).
			Build()
)

// deviceUnavailable wraps err so that errors.Is(err, ErrDeviceUnavailable) holds
func deviceUnavailable(err error, backend, device string, cfg AudioConfig) error {
	return errors.New(err).
		Component("daf").
		Category(errors.CategoryDeviceUnavailable).
		AudioContext(cfg.SampleRateHz, cfg.DelayMs).
		Context("backend", backend).
		Context("device", device).
		Build()
}
