package daf

import (
	"fmt"

	"github.com/leadme/daf/internal/errors"
)

const (
	// DefaultSampleRateHz is the capture and playback rate used when none is configured
	DefaultSampleRateHz = 16000
	// DefaultDelayMs is the feedback delay used when none is configured
	DefaultDelayMs = 200
	// BytesPerSample is fixed, PCM is signed 16-bit little endian
	BytesPerSample = 2
	// ChannelCount is fixed, audio is mono
	ChannelCount = 1

	maxDelayMs = 5000
)

// AudioConfig describes the PCM format and delay of a session. It is copied
// into the session on Start and never changes while the session runs.
type AudioConfig struct {
	SampleRateHz   int
	DelayMs        int
	BytesPerSample int
	ChannelCount   int
}

// NewAudioConfig returns a config with the fixed PCM format filled in
func NewAudioConfig(sampleRateHz, delayMs int) AudioConfig {
	return AudioConfig{
		SampleRateHz:   sampleRateHz,
		DelayMs:        delayMs,
		BytesPerSample: BytesPerSample,
		ChannelCount:   ChannelCount,
	}
}

// DefaultAudioConfig returns 16 kHz mono with a 200 ms delay
func DefaultAudioConfig() AudioConfig {
	return NewAudioConfig(DefaultSampleRateHz, DefaultDelayMs)
}

// CapacityBytes is the delay expressed in bytes. Samples are computed first
// so the result is always a whole number of samples.
func (c AudioConfig) CapacityBytes() int {
	return c.SampleRateHz * c.DelayMs / 1000 * c.BytesPerSample
}

// FrameBytes converts a duration in milliseconds to a whole-sample byte count
func (c AudioConfig) FrameBytes(ms int) int {
	return c.SampleRateHz * ms / 1000 * c.BytesPerSample * c.ChannelCount
}

// Validate checks the config against the single supported PCM format
func (c AudioConfig) Validate() error {
	var problems []string
	if c.SampleRateHz <= 0 {
		problems = append(problems, fmt.Sprintf("sample rate must be positive, got %d", c.SampleRateHz))
	}
	if c.DelayMs < 0 || c.DelayMs > maxDelayMs {
		problems = append(problems, fmt.Sprintf("delay must be within 0..%d ms, got %d", maxDelayMs, c.DelayMs))
	}
	if c.BytesPerSample != BytesPerSample {
		problems = append(problems, fmt.Sprintf("only 16-bit PCM is supported, got %d bytes per sample", c.BytesPerSample))
	}
	if c.ChannelCount != ChannelCount {
		problems = append(problems, fmt.Sprintf("only mono is supported, got %d channels", c.ChannelCount))
	}
	if len(problems) == 0 {
		return nil
	}

	return errors.Newf("invalid audio config: %v", problems).
		Component("daf").
		Category(errors.CategoryValidation).
		AudioContext(c.SampleRateHz, c.DelayMs).
		Build()
}
