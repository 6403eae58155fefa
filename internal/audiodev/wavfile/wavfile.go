// Package wavfile implements a DAF backend that captures from a 16-bit mono
// WAV file and plays back into another WAV file. It is used for offline
// rendering and for end-to-end tests without sound hardware.
package wavfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/logger"
)

// BackendName is reported by Backend.Name
const BackendName = "wavfile"

const (
	defaultPeriodMs    = 20
	defaultIdleTimeout = 10 * time.Millisecond
	bitDepth           = 16
)

// Config names the input and output files
type Config struct {
	InputPath  string
	OutputPath string
	// TailPadding is the number of silent bytes emitted after the input ends,
	// normally the delay capacity so the delayed tail reaches the output.
	TailPadding int
	// IdleTimeout is how long Read waits once input and padding are exhausted
	IdleTimeout time.Duration
	Logger      logger.Logger
}

// Backend implements daf.Backend over WAV files
type Backend struct {
	cfg Config
	log logger.Logger

	exhausted     chan struct{}
	exhaustedOnce sync.Once
}

var _ daf.Backend = (*Backend)(nil)

// New creates a backend
func New(cfg Config) *Backend {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Backend{cfg: cfg, log: log, exhausted: make(chan struct{})}
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) RecommendedFrameSize(cfg daf.AudioConfig) (int, error) {
	return cfg.FrameBytes(defaultPeriodMs), nil
}

// Exhausted is closed once the input file and tail padding have been read
func (b *Backend) Exhausted() <-chan struct{} {
	return b.exhausted
}

func (b *Backend) markExhausted() {
	b.exhaustedOnce.Do(func() { close(b.exhausted) })
}

// OpenCapture opens the input file and checks that it matches cfg
func (b *Backend) OpenCapture(cfg daf.AudioConfig, frameSize int) (daf.CaptureSource, error) {
	f, err := os.Open(b.cfg.InputPath)
	if err != nil {
		return nil, fileError(err, "open_input", b.cfg.InputPath)
	}

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fileError(fmt.Errorf("input is not a valid WAV audio file"), "read_header", b.cfg.InputPath)
	}

	if int(decoder.BitDepth) != bitDepth || int(decoder.NumChans) != cfg.ChannelCount || int(decoder.SampleRate) != cfg.SampleRateHz {
		f.Close()
		return nil, errors.Newf("unsupported WAV format: %d Hz, %d bit, %d channels, want %d Hz, %d bit, %d channels",
			decoder.SampleRate, decoder.BitDepth, decoder.NumChans, cfg.SampleRateHz, bitDepth, cfg.ChannelCount).
			Component("audiodev").
			Category(errors.CategoryValidation).
			Context("path", b.cfg.InputPath).
			Build()
	}

	b.log.Info("opened WAV input",
		logger.String("path", b.cfg.InputPath),
		logger.Int("sample_rate_hz", int(decoder.SampleRate)))

	return &source{
		backend: b,
		file:    f,
		decoder: decoder,
		padding: b.cfg.TailPadding,
		ints: &audio.IntBuffer{
			Data:   make([]int, frameSize/daf.BytesPerSample),
			Format: &audio.Format{SampleRate: cfg.SampleRateHz, NumChannels: cfg.ChannelCount},
		},
		stopped: make(chan struct{}),
	}, nil
}

// OpenSink creates the output file
func (b *Backend) OpenSink(cfg daf.AudioConfig, frameSize int) (daf.SinkDevice, error) {
	if err := os.MkdirAll(filepath.Dir(b.cfg.OutputPath), 0o755); err != nil {
		return nil, fileError(err, "create_output_dir", b.cfg.OutputPath)
	}

	f, err := os.Create(b.cfg.OutputPath)
	if err != nil {
		return nil, fileError(err, "create_output", b.cfg.OutputPath)
	}

	format := &audio.Format{SampleRate: cfg.SampleRateHz, NumChannels: cfg.ChannelCount}
	return &sink{
		backend: b,
		file:    f,
		encoder: wav.NewEncoder(f, cfg.SampleRateHz, bitDepth, cfg.ChannelCount, 1),
		ints: &audio.IntBuffer{
			Data:           make([]int, 0, frameSize/daf.BytesPerSample),
			Format:         format,
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component("audiodev").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}

// source reads PCM frames from the decoder
type source struct {
	backend *Backend

	mu      sync.Mutex
	file    *os.File
	decoder *wav.Decoder
	ints    *audio.IntBuffer
	eof     bool
	padding int
	closed  bool

	stopped  chan struct{}
	stopOnce sync.Once
}

func (s *source) Start() error { return nil }

func (s *source) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *source) Read(buf []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, os.ErrClosed
	}

	n, err := s.readLocked(buf)
	s.mu.Unlock()
	if n > 0 || err != nil {
		return n, err
	}

	s.backend.markExhausted()
	select {
	case <-time.After(s.backend.cfg.IdleTimeout):
	case <-s.stopped:
	}
	return 0, nil
}

func (s *source) readLocked(buf []byte) (int, error) {
	samples := min(len(buf)/daf.BytesPerSample, cap(s.ints.Data))
	if samples == 0 {
		return 0, nil
	}

	if !s.eof {
		s.ints.Data = s.ints.Data[:samples]
		n, err := s.decoder.PCMBuffer(s.ints)
		if err != nil && !errors.Is(err, io.EOF) {
			// a decode error ends the input like EOF does
			s.backend.log.Warn("WAV decode failed, treating as end of input",
				logger.String("path", s.backend.cfg.InputPath),
				logger.Error(err))
			n = 0
		}
		if n > 0 {
			for i, v := range s.ints.Data[:n] {
				binary.LittleEndian.PutUint16(buf[i*daf.BytesPerSample:], uint16(int16(v)))
			}
			return n * daf.BytesPerSample, nil
		}
		s.eof = true
	}

	if s.padding > 0 {
		n := min(s.padding, samples*daf.BytesPerSample)
		clear(buf[:n])
		s.padding -= n
		return n, nil
	}

	return 0, nil
}

// sink encodes written frames into the output file
type sink struct {
	backend *Backend

	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	ints    *audio.IntBuffer
	written int
	closed  bool
}

func (s *sink) Start() error { return nil }
func (s *sink) Stop() error  { return nil }

func (s *sink) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.Join(daf.ErrWriteFailed, os.ErrClosed)
	}

	samples := len(buf) / daf.BytesPerSample
	s.ints.Data = s.ints.Data[:0]
	for i := range samples {
		s.ints.Data = append(s.ints.Data, int(int16(binary.LittleEndian.Uint16(buf[i*daf.BytesPerSample:]))))
	}

	if err := s.encoder.Write(s.ints); err != nil {
		return 0, errors.Join(daf.ErrWriteFailed, err)
	}
	s.written += samples * daf.BytesPerSample
	return samples * daf.BytesPerSample, nil
}

// Close finalizes the WAV header and closes the file
func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	encErr := s.encoder.Close()
	fileErr := s.file.Close()
	s.backend.log.Info("closed WAV output",
		logger.String("path", s.backend.cfg.OutputPath),
		logger.Int("bytes_written", s.written))

	if encErr != nil {
		return fileError(encErr, "finalize_output", s.backend.cfg.OutputPath)
	}
	if fileErr != nil {
		return fileError(fileErr, "close_output", s.backend.cfg.OutputPath)
	}
	return nil
}
