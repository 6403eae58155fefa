package daf

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/observability/metrics"
)

// DefaultJoinTimeout bounds how long Stop waits for the worker
const DefaultJoinTimeout = 2 * time.Second

// State of the controller
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	JoinTimeout time.Duration
	Publisher   events.Publisher
	Metrics     Recorder
	Logger      logger.Logger
}

// session is everything Start acquires and Stop releases
type session struct {
	id        string
	config    AudioConfig
	capture   CaptureSource
	sink      SinkDevice
	line      *DelayLine
	frameSize int
	done      chan struct{}
	startedAt time.Time
	// running is the only state this session's worker reads
	running atomic.Bool
}

// SessionInfo describes the running session for status reporting
type SessionInfo struct {
	ID            string    `json:"id"`
	SampleRateHz  int       `json:"sampleRateHz"`
	DelayMs       int       `json:"delayMs"`
	CapacityBytes int       `json:"capacityBytes"`
	FrameBytes    int       `json:"frameBytes"`
	Backend       string    `json:"backend"`
	StartedAt     time.Time `json:"startedAt"`
}

// Controller is the start/stop state machine for a single DAF session.
// Start and Stop are safe to call from any goroutine.
type Controller struct {
	backend     Backend
	joinTimeout time.Duration
	publisher   events.Publisher
	metrics     Recorder
	log         logger.Logger

	mu      sync.Mutex
	session *session
	// active mirrors session != nil for State, which must not take mu
	active atomic.Bool
}

// NewController creates an idle controller that opens devices through backend
func NewController(backend Backend, opts Options) *Controller {
	c := &Controller{
		backend:     backend,
		joinTimeout: opts.JoinTimeout,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
	if c.joinTimeout <= 0 {
		c.joinTimeout = DefaultJoinTimeout
	}
	if c.publisher == nil {
		c.publisher = events.NopPublisher{}
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	return c
}

// Start opens both devices, sizes the delay line and launches the worker.
// Calling Start while running is a no-op. On failure nothing stays open and
// the controller remains idle.
func (c *Controller) Start(cfg AudioConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.log.Debug("start ignored, session already running", logger.String("session_id", c.session.id))
		return nil
	}

	if err := cfg.Validate(); err != nil {
		c.metrics.RecordOperation(metrics.OpSessionStart, metrics.StatusError)
		c.metrics.RecordError(metrics.OpSessionStart, string(errors.CategoryValidation))
		return err
	}

	s, err := c.openSession(cfg)
	if err != nil {
		c.metrics.RecordOperation(metrics.OpSessionStart, metrics.StatusError)
		c.metrics.RecordError(metrics.OpSessionStart, string(errors.CategoryOf(err)))
		c.log.Warn("failed to start session",
			logger.String("backend", c.backend.Name()),
			logger.Error(err))
		return err
	}

	c.session = s
	s.running.Store(true)
	c.active.Store(true)

	eng := newEngine(s.capture, s.sink, s.line, s.frameSize, &s.running, c.log.With(logger.String("session_id", s.id)), c.metrics)
	go c.runWorker(eng, s)

	c.metrics.RecordOperation(metrics.OpSessionStart, metrics.StatusSuccess)
	c.metrics.SetSessionActive(true)
	c.publisher.TryPublish(events.NewSessionEvent(events.TypeSessionStarted, s.id,
		cfg.SampleRateHz, cfg.DelayMs, s.line.Capacity(), s.frameSize))

	c.log.Info("session started",
		logger.String("session_id", s.id),
		logger.String("backend", c.backend.Name()),
		logger.Int("sample_rate_hz", cfg.SampleRateHz),
		logger.Int("delay_ms", cfg.DelayMs),
		logger.Int("capacity_bytes", s.line.Capacity()),
		logger.Int("frame_bytes", s.frameSize))

	return nil
}

// openSession acquires and starts both devices, rolling back on any failure
func (c *Controller) openSession(cfg AudioConfig) (*session, error) {
	name := c.backend.Name()

	frameSize, err := c.backend.RecommendedFrameSize(cfg)
	if err != nil {
		return nil, deviceUnavailable(err, name, "frame-size", cfg)
	}
	if frameSize <= 0 {
		return nil, deviceUnavailable(fmt.Errorf("backend reported frame size %d", frameSize), name, "frame-size", cfg)
	}

	capture, err := c.backend.OpenCapture(cfg, frameSize)
	if err != nil {
		return nil, deviceUnavailable(err, name, "capture", cfg)
	}

	sink, err := c.backend.OpenSink(cfg, frameSize)
	if err != nil {
		c.closeDevice("capture", capture)
		return nil, deviceUnavailable(err, name, "sink", cfg)
	}

	if err := capture.Start(); err != nil {
		c.closeDevice("capture", capture)
		c.closeDevice("sink", sink)
		return nil, deviceUnavailable(err, name, "capture", cfg)
	}
	if err := sink.Start(); err != nil {
		c.stopDevice("capture", capture)
		c.closeDevice("capture", capture)
		c.closeDevice("sink", sink)
		return nil, deviceUnavailable(err, name, "sink", cfg)
	}

	return &session{
		id:        uuid.NewString(),
		config:    cfg,
		capture:   capture,
		sink:      sink,
		line:      NewDelayLine(cfg.CapacityBytes()),
		frameSize: frameSize,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}, nil
}

func (c *Controller) runWorker(eng *Engine, s *session) {
	defer close(s.done)

	if err := eng.Run(); err != nil {
		// the session stays Running until Stop releases its devices
		c.log.Error("worker stopped unexpectedly",
			logger.String("session_id", s.id),
			logger.Error(err))
		c.publisher.TryPublish(events.NewDiagnosticEvent(err))
	}
}

// Stop signals the worker, waits up to the join timeout for it to exit and
// then releases both devices. Calling Stop while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return
	}

	s.running.Store(false)
	c.active.Store(false)

	select {
	case <-s.done:
	case <-time.After(c.joinTimeout):
		err := errors.Newf("worker did not exit within %s", c.joinTimeout).
			Component("daf").
			Category(errors.CategoryTeardownTimeout).
			Priority(errors.PriorityHigh).
			Context("session_id", s.id).
			Timing("join_worker", c.joinTimeout).
			Build()
		c.log.Error("teardown timeout, releasing devices anyway",
			logger.String("session_id", s.id),
			logger.Duration("join_timeout", c.joinTimeout))
		c.metrics.RecordError(metrics.OpSessionStop, string(errors.CategoryTeardownTimeout))
		c.publisher.TryPublish(events.NewDiagnosticEvent(err))
	}

	c.stopDevice("capture", s.capture)
	c.stopDevice("sink", s.sink)
	c.closeDevice("capture", s.capture)
	c.closeDevice("sink", s.sink)
	c.session = nil

	elapsed := time.Since(s.startedAt)
	c.metrics.RecordOperation(metrics.OpSessionStop, metrics.StatusSuccess)
	c.metrics.RecordDuration(metrics.OpSession, elapsed.Seconds())
	c.metrics.SetSessionActive(false)
	c.publisher.TryPublish(events.NewSessionEvent(events.TypeSessionStopped, s.id,
		s.config.SampleRateHz, s.config.DelayMs, s.line.Capacity(), s.frameSize))

	c.log.Info("session stopped",
		logger.String("session_id", s.id),
		logger.Duration("duration", elapsed))
}

// State reports whether a session is running. It never blocks on Start or Stop.
func (c *Controller) State() State {
	if c.active.Load() {
		return StateRunning
	}
	return StateIdle
}

// Session returns details of the running session
func (c *Controller) Session() (SessionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:            s.id,
		SampleRateHz:  s.config.SampleRateHz,
		DelayMs:       s.config.DelayMs,
		CapacityBytes: s.line.Capacity(),
		FrameBytes:    s.frameSize,
		Backend:       c.backend.Name(),
		StartedAt:     s.startedAt,
	}, true
}

func (c *Controller) stopDevice(name string, d Device) {
	if err := d.Stop(); err != nil {
		c.log.Warn("failed to stop device", logger.String("device", name), logger.Error(err))
	}
}

func (c *Controller) closeDevice(name string, d Device) {
	if err := d.Close(); err != nil {
		c.log.Warn("failed to close device", logger.String("device", name), logger.Error(err))
	}
}
