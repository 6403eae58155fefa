// Package malgo opens sound card capture and playback devices through
// miniaudio. Device callbacks are bridged to the blocking Read and Write
// calls of the DAF worker with a bounded wait.
package malgo

import (
	"fmt"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/logger"
)

// BackendName is reported by Backend.Name
const BackendName = "malgo"

const (
	defaultPeriodMs      = 20
	defaultTimeout       = 100 * time.Millisecond
	defaultBufferPeriods = 8
)

// Config selects devices and timing for the backend
type Config struct {
	CaptureDevice  string
	PlaybackDevice string
	PeriodMs       int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BufferPeriods  int
	Logger         logger.Logger
}

// Backend implements daf.Backend on top of malgo
type Backend struct {
	cfg Config
	log logger.Logger
}

var _ daf.Backend = (*Backend)(nil)

// NewBackend creates a backend; zero config values select defaults
func NewBackend(cfg Config) *Backend {
	if cfg.PeriodMs <= 0 {
		cfg.PeriodMs = defaultPeriodMs
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultTimeout
	}
	if cfg.BufferPeriods < 2 {
		cfg.BufferPeriods = defaultBufferPeriods
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Backend{cfg: cfg, log: log}
}

func (b *Backend) Name() string { return BackendName }

// RecommendedFrameSize is one device period of audio in bytes
func (b *Backend) RecommendedFrameSize(cfg daf.AudioConfig) (int, error) {
	size := cfg.FrameBytes(b.cfg.PeriodMs)
	if size <= 0 {
		return 0, fmt.Errorf("period of %d ms at %d Hz is empty", b.cfg.PeriodMs, cfg.SampleRateHz)
	}
	return size, nil
}

func (b *Backend) periodFrames(cfg daf.AudioConfig) uint32 {
	return uint32(cfg.SampleRateHz * b.cfg.PeriodMs / 1000)
}

// OpenCapture initializes the capture device without starting it
func (b *Backend) OpenCapture(cfg daf.AudioConfig, frameSize int) (daf.CaptureSource, error) {
	buf := newPCMBuffer(frameSize * b.cfg.BufferPeriods)
	d, err := b.openDevice(malgo.Capture, b.cfg.CaptureDevice, cfg, buf)
	if err != nil {
		return nil, err
	}
	return &captureDevice{device: d, timeout: b.cfg.ReadTimeout}, nil
}

// OpenSink initializes the playback device without starting it
func (b *Backend) OpenSink(cfg daf.AudioConfig, frameSize int) (daf.SinkDevice, error) {
	buf := newPCMBuffer(frameSize * b.cfg.BufferPeriods)
	d, err := b.openDevice(malgo.Playback, b.cfg.PlaybackDevice, cfg, buf)
	if err != nil {
		return nil, err
	}
	return &playbackDevice{device: d, timeout: b.cfg.WriteTimeout}, nil
}

func (b *Backend) openDevice(kind malgo.DeviceType, name string, cfg daf.AudioConfig, buf *pcmBuffer) (*device, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.SampleRate = uint32(cfg.SampleRateHz)
	deviceConfig.PeriodSizeInFrames = b.periodFrames(cfg)
	deviceConfig.Alsa.NoMMap = 1

	var callbacks malgo.DeviceCallbacks
	switch kind {
	case malgo.Capture:
		deviceConfig.Capture.Format = malgo.FormatS16
		deviceConfig.Capture.Channels = uint32(cfg.ChannelCount)
		callbacks.Data = func(_, input []byte, _ uint32) { buf.push(input) }
	default:
		deviceConfig.Playback.Format = malgo.FormatS16
		deviceConfig.Playback.Channels = uint32(cfg.ChannelCount)
		callbacks.Data = func(output, _ []byte, _ uint32) { buf.pull(output) }
	}

	kindName := kindString(kind)
	log := b.log.With(logger.String("device_kind", kindName))
	callbacks.Stop = func() {
		log.Debug("device stopped")
	}

	// an explicit device needs a lookup, the default is chosen by miniaudio
	if !isDefaultName(name) {
		infos, err := ctx.Devices(kind)
		if err != nil {
			freeContext(ctx)
			return nil, fmt.Errorf("enumerate %s devices: %w", kindName, err)
		}
		info, err := selectDevice(infos, name)
		if err != nil {
			freeContext(ctx)
			return nil, err
		}
		if kind == malgo.Capture {
			deviceConfig.Capture.DeviceID = info.ID.Pointer()
		} else {
			deviceConfig.Playback.DeviceID = info.ID.Pointer()
		}
		name = info.Name()
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(ctx)
		return nil, fmt.Errorf("init %s device %q: %w", kindName, name, err)
	}

	log.Info("audio device opened",
		logger.String("device", name),
		logger.Int("sample_rate_hz", int(dev.SampleRate())),
		logger.Int("period_frames", int(deviceConfig.PeriodSizeInFrames)))

	return &device{
		kind: kindName,
		name: name,
		ctx:  ctx,
		dev:  dev,
		buf:  buf,
		log:  log,
	}, nil
}

func kindString(kind malgo.DeviceType) string {
	if kind == malgo.Capture {
		return "capture"
	}
	return "playback"
}
