// Package headset detects wired and Bluetooth headphones and notifies
// subscribers when either changes. The DAF engine does not depend on it; the
// host uses it to decide when feedback playback is safe.
package headset

import (
	"context"
	"sync"
	"time"

	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/logger"
)

const defaultPollInterval = time.Second

// Kinds reported to StateRecorder
const (
	KindWired     = "wired"
	KindBluetooth = "bluetooth"
)

// StateRecorder receives connectivity changes, typically a metrics collector
type StateRecorder interface {
	SetHeadsetConnected(kind string, connected bool)
}

// Listener receives HeadsetEvent values synchronously from the poll goroutine
type Listener func(event *events.HeadsetEvent)

// Options configures a Monitor
type Options struct {
	PollInterval time.Duration
	Publisher    events.Publisher
	Metrics      StateRecorder
	Logger       logger.Logger
}

// cacheInvalidator is implemented by probers that cache enumeration
type cacheInvalidator interface {
	Invalidate()
}

// Monitor polls a Prober and publishes headphoneStateChanged and
// bluetoothHeadsetStateChanged events on change.
type Monitor struct {
	prober    Prober
	interval  time.Duration
	publisher events.Publisher
	metrics   StateRecorder
	log       logger.Logger

	mu          sync.Mutex
	state       State
	registered  bool
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[int]Listener
	nextID      int
}

// NewMonitor creates an unregistered monitor
func NewMonitor(prober Prober, opts Options) *Monitor {
	m := &Monitor{
		prober:      prober,
		interval:    opts.PollInterval,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		subscribers: make(map[int]Listener),
	}
	if m.interval <= 0 {
		m.interval = defaultPollInterval
	}
	if m.publisher == nil {
		m.publisher = events.NopPublisher{}
	}
	if m.log == nil {
		m.log = logger.NewNopLogger()
	}
	return m
}

// Subscribe adds a listener and returns a function that removes it
func (m *Monitor) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// Register probes once, announces the current state of both kinds and
// starts polling until ctx ends or Unregister is called. Registering twice
// is a no-op.
func (m *Monitor) Register(ctx context.Context) error {
	m.mu.Lock()
	if m.registered {
		m.mu.Unlock()
		return nil
	}

	// registration reads the live device list, not a cached one
	if c, ok := m.prober.(cacheInvalidator); ok {
		c.Invalidate()
	}
	initial, err := m.prober.Probe(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	m.state = initial
	m.registered = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.log.Info("headset detection registered",
		logger.Bool("wired", initial.Wired),
		logger.Bool("bluetooth", initial.Bluetooth),
		logger.Duration("poll_interval", m.interval))

	m.emit(events.NewHeadphoneStateChanged(initial.Wired))
	m.emit(events.NewBluetoothHeadsetStateChanged(initial.Bluetooth))
	m.record(initial)

	go m.poll(pollCtx, done)
	return nil
}

// Unregister stops polling and waits for the poll goroutine. It is a no-op
// when the monitor is not registered.
func (m *Monitor) Unregister() {
	m.mu.Lock()
	if !m.registered {
		m.mu.Unlock()
		return
	}
	m.registered = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info("headset detection unregistered")
}

// IsAnyHeadphoneConnected reports whether wired or Bluetooth headphones are
// connected. An unregistered monitor probes synchronously.
func (m *Monitor) IsAnyHeadphoneConnected() bool {
	return m.State().Any()
}

// State returns the last known connectivity
func (m *Monitor) State() State {
	m.mu.Lock()
	if m.registered {
		defer m.mu.Unlock()
		return m.state
	}
	m.mu.Unlock()

	s, err := m.prober.Probe(context.Background())
	if err != nil {
		m.log.Warn("headset probe failed", logger.Error(err))
		return State{}
	}
	return s
}

func (m *Monitor) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check probes once and emits an event for every kind that changed
func (m *Monitor) check(ctx context.Context) {
	next, err := m.prober.Probe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Debug("headset probe failed, keeping previous state", logger.Error(err))
		}
		return
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if next.Wired != prev.Wired {
		m.log.Info("wired headphone state changed", logger.Bool("connected", next.Wired))
		m.emit(events.NewHeadphoneStateChanged(next.Wired))
	}
	if next.Bluetooth != prev.Bluetooth {
		m.log.Info("bluetooth headset state changed", logger.Bool("connected", next.Bluetooth))
		m.emit(events.NewBluetoothHeadsetStateChanged(next.Bluetooth))
	}
	if next != prev {
		m.record(next)
	}
}

func (m *Monitor) emit(ev *events.HeadsetEvent) {
	m.publisher.TryPublish(ev)

	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (m *Monitor) record(s State) {
	if m.metrics == nil {
		return
	}
	m.metrics.SetHeadsetConnected(KindWired, s.Wired)
	m.metrics.SetHeadsetConnected(KindBluetooth, s.Bluetooth)
}
