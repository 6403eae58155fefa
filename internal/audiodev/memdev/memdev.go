// Package memdev provides an in-memory audio backend. Capture plays back a
// scripted byte stream and the sink records everything written to it.
// Open and close calls are counted so callers can verify device ownership.
package memdev

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leadme/daf/internal/daf"
)

const (
	// BackendName is reported by Backend.Name
	BackendName = "memory"

	defaultPeriodMs    = 20
	defaultIdleTimeout = 2 * time.Millisecond
)

// ErrClosed is returned by Read and Write on a closed device
var ErrClosed = fmt.Errorf("memdev: device closed")

// Options script the behaviour of the backend
type Options struct {
	// FrameSize in bytes, zero selects 20 ms of audio
	FrameSize int
	// Input is replayed by every capture device opened
	Input []byte
	// IdleTimeout is how long Read waits once Input is exhausted
	IdleTimeout time.Duration

	OpenCaptureErr error
	OpenSinkErr    error
	StartSinkErr   error
	FrameSizeErr   error

	// ReadErrEvery makes every Nth read fail
	ReadErrEvery int
	// WriteErrEvery makes every Nth write fail
	WriteErrEvery int
	// ReadPanic, when non-nil, makes every read panic with this value
	ReadPanic any
	// Block, when set, makes every read wait until the channel is closed,
	// ignoring Stop
	Block <-chan struct{}
}

// Backend implements daf.Backend
type Backend struct {
	opts Options

	mu       sync.Mutex
	captures []*Capture
	sinks    []*Sink

	captureOpens    atomic.Int64
	sinkOpens       atomic.Int64
	openDevices     atomic.Int64
	useAfterRelease atomic.Int64
}

var _ daf.Backend = (*Backend)(nil)

// New creates a backend
func New(opts Options) *Backend {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &Backend{opts: opts}
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) RecommendedFrameSize(cfg daf.AudioConfig) (int, error) {
	if b.opts.FrameSizeErr != nil {
		return 0, b.opts.FrameSizeErr
	}
	if b.opts.FrameSize > 0 {
		return b.opts.FrameSize, nil
	}
	return cfg.FrameBytes(defaultPeriodMs), nil
}

func (b *Backend) OpenCapture(cfg daf.AudioConfig, frameSize int) (daf.CaptureSource, error) {
	b.captureOpens.Add(1)
	if b.opts.OpenCaptureErr != nil {
		return nil, b.opts.OpenCaptureErr
	}

	c := &Capture{
		backend: b,
		input:   b.opts.Input,
		drained: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if len(c.input) == 0 {
		close(c.drained)
	}
	b.openDevices.Add(1)

	b.mu.Lock()
	b.captures = append(b.captures, c)
	b.mu.Unlock()
	return c, nil
}

func (b *Backend) OpenSink(cfg daf.AudioConfig, frameSize int) (daf.SinkDevice, error) {
	b.sinkOpens.Add(1)
	if b.opts.OpenSinkErr != nil {
		return nil, b.opts.OpenSinkErr
	}

	s := &Sink{backend: b}
	b.openDevices.Add(1)

	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
	return s, nil
}

// CaptureOpens counts OpenCapture calls, including failed ones
func (b *Backend) CaptureOpens() int { return int(b.captureOpens.Load()) }

// SinkOpens counts OpenSink calls, including failed ones
func (b *Backend) SinkOpens() int { return int(b.sinkOpens.Load()) }

// OpenDevices is the number of successfully opened devices not yet closed
func (b *Backend) OpenDevices() int { return int(b.openDevices.Load()) }

// UseAfterRelease counts Read or Write calls made on a closed device
func (b *Backend) UseAfterRelease() int { return int(b.useAfterRelease.Load()) }

// LastCapture returns the most recently opened capture device
func (b *Backend) LastCapture() *Capture {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.captures) == 0 {
		return nil
	}
	return b.captures[len(b.captures)-1]
}

// LastSink returns the most recently opened sink
func (b *Backend) LastSink() *Sink {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sinks) == 0 {
		return nil
	}
	return b.sinks[len(b.sinks)-1]
}

// Capture replays Options.Input
type Capture struct {
	backend *Backend

	mu      sync.Mutex
	input   []byte
	pos     int
	reads   int
	started bool
	closed  bool

	drained  chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	inRead   atomic.Bool
}

func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *Capture) Stop() error {
	c.stopOnce.Do(func() { close(c.stopped) })
	return nil
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.backend.openDevices.Add(-1)
	return nil
}

func (c *Capture) Read(buf []byte) (int, error) {
	opts := &c.backend.opts
	if opts.Block != nil {
		c.inRead.Store(true)
		<-opts.Block
	}
	if opts.ReadPanic != nil {
		panic(opts.ReadPanic)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.backend.useAfterRelease.Add(1)
		return 0, ErrClosed
	}
	c.reads++
	if opts.ReadErrEvery > 0 && c.reads%opts.ReadErrEvery == 0 {
		c.mu.Unlock()
		return 0, fmt.Errorf("memdev: injected read failure %d", c.reads)
	}
	if c.pos < len(c.input) {
		n := copy(buf, c.input[c.pos:])
		c.pos += n
		if c.pos == len(c.input) {
			close(c.drained)
		}
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	select {
	case <-time.After(opts.IdleTimeout):
	case <-c.stopped:
	}
	return 0, nil
}

// Blocked reports whether a reader is waiting on Options.Block
func (c *Capture) Blocked() bool { return c.inRead.Load() }

// Drained is closed once all input has been read
func (c *Capture) Drained() <-chan struct{} { return c.drained }

// Closed reports whether Close was called
func (c *Capture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Sink records written bytes
type Sink struct {
	backend *Backend

	mu      sync.Mutex
	output  []byte
	writes  int
	started bool
	closed  bool
}

func (s *Sink) Start() error {
	if err := s.backend.opts.StartSinkErr; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Sink) Stop() error { return nil }

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.backend.openDevices.Add(-1)
	return nil
}

func (s *Sink) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.backend.useAfterRelease.Add(1)
		return 0, ErrClosed
	}
	s.writes++
	if every := s.backend.opts.WriteErrEvery; every > 0 && s.writes%every == 0 {
		return 0, daf.ErrWriteFailed
	}
	s.output = append(s.output, buf...)
	return len(buf), nil
}

// Output returns a copy of everything written so far
func (s *Sink) Output() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.output))
	copy(out, s.output)
	return out
}

// Len returns the number of bytes written so far
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.output)
}

// Closed reports whether Close was called
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Started reports whether Start was called
func (s *Sink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Started reports whether Start was called
func (c *Capture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
