package headset

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/observability/metrics"
)

var _ StateRecorder = (*metrics.DAFMetrics)(nil)

func TestMain(m *testing.M) {
	// go-cache runs a janitor goroutine for the lifetime of each cache
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

// fakeProber returns whatever state the test stores
type fakeProber struct {
	mu    sync.Mutex
	state State
	err   error
	calls atomic.Int32
}

func (f *fakeProber) set(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeProber) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProber) Probe(ctx context.Context) (State, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

type eventLog struct {
	mu     sync.Mutex
	events []*events.HeadsetEvent
}

func (l *eventLog) add(ev *events.HeadsetEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []*events.HeadsetEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*events.HeadsetEvent(nil), l.events...)
}

type publisherFunc func(events.Event) bool

func (f publisherFunc) TryPublish(ev events.Event) bool { return f(ev) }

type stateRecorder struct {
	mu    sync.Mutex
	state map[string]bool
}

func (r *stateRecorder) SetHeadsetConnected(kind string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		r.state = map[string]bool{}
	}
	r.state[kind] = connected
}

func (r *stateRecorder) get(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[kind]
}

func TestRegisterAnnouncesInitialState(t *testing.T) {
	prober := &fakeProber{state: State{Wired: true}}
	m := NewMonitor(prober, Options{PollInterval: time.Hour})
	log := &eventLog{}
	m.Subscribe(log.add)

	require.NoError(t, m.Register(t.Context()))
	t.Cleanup(m.Unregister)

	got := log.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, events.TypeHeadphoneStateChanged, got[0].GetType())
	assert.True(t, got[0].Connected)
	assert.Equal(t, events.TypeBluetoothHeadsetStateChanged, got[1].GetType())
	assert.False(t, got[1].Connected)
	assert.True(t, m.IsAnyHeadphoneConnected())
}

func TestRegisterBypassesCachedDeviceList(t *testing.T) {
	var mu sync.Mutex
	names := []string{"USB Headset"}
	prober := NewDeviceProber(func() ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return names, nil
	}, time.Hour)

	s, err := prober.Probe(t.Context())
	require.NoError(t, err)
	require.True(t, s.Wired)

	mu.Lock()
	names = []string{"Built-in Speakers"}
	mu.Unlock()

	m := NewMonitor(prober, Options{PollInterval: time.Hour})
	require.NoError(t, m.Register(t.Context()))
	t.Cleanup(m.Unregister)

	assert.False(t, m.IsAnyHeadphoneConnected())
}

func TestMonitorEmitsOnlyOnChange(t *testing.T) {
	prober := &fakeProber{}
	var published atomic.Int32
	rec := &stateRecorder{}
	m := NewMonitor(prober, Options{
		PollInterval: 5 * time.Millisecond,
		Publisher: publisherFunc(func(events.Event) bool {
			published.Add(1)
			return true
		}),
		Metrics: rec,
	})
	log := &eventLog{}
	m.Subscribe(log.add)

	require.NoError(t, m.Register(t.Context()))
	t.Cleanup(m.Unregister)
	require.Len(t, log.snapshot(), 2)

	// several polls with no change
	calls := prober.calls.Load()
	require.Eventually(t, func() bool { return prober.calls.Load() > calls+3 }, time.Second, time.Millisecond)
	assert.Len(t, log.snapshot(), 2)

	prober.set(State{Bluetooth: true})
	require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, time.Second, time.Millisecond)

	last := log.snapshot()[2]
	assert.Equal(t, events.TypeBluetoothHeadsetStateChanged, last.GetType())
	assert.True(t, last.Connected)
	assert.True(t, m.IsAnyHeadphoneConnected())
	assert.True(t, rec.get(KindBluetooth))
	assert.False(t, rec.get(KindWired))

	prober.set(State{Wired: true})
	require.Eventually(t, func() bool { return len(log.snapshot()) == 5 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(5), published.Load())
}

func TestProbeErrorKeepsPreviousState(t *testing.T) {
	prober := &fakeProber{state: State{Wired: true}}
	m := NewMonitor(prober, Options{PollInterval: 5 * time.Millisecond})
	require.NoError(t, m.Register(t.Context()))
	t.Cleanup(m.Unregister)

	prober.fail(fmt.Errorf("alsa went away"))
	calls := prober.calls.Load()
	require.Eventually(t, func() bool { return prober.calls.Load() > calls+2 }, time.Second, time.Millisecond)

	assert.Equal(t, State{Wired: true}, m.State())
}

func TestRegisterFailsWhenProbeFails(t *testing.T) {
	prober := &fakeProber{err: fmt.Errorf("no sound server")}
	m := NewMonitor(prober, Options{})

	require.Error(t, m.Register(t.Context()))
	m.Unregister()
}

func TestRegisterAndUnregisterAreIdempotent(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, Options{PollInterval: time.Millisecond})
	log := &eventLog{}
	m.Subscribe(log.add)

	m.Unregister()
	require.NoError(t, m.Register(t.Context()))
	require.NoError(t, m.Register(t.Context()))
	assert.Len(t, log.snapshot(), 2)

	m.Unregister()
	m.Unregister()

	// registering again works after unregistering
	require.NoError(t, m.Register(t.Context()))
	m.Unregister()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, Options{PollInterval: time.Hour})
	log := &eventLog{}
	unsubscribe := m.Subscribe(log.add)
	unsubscribe()
	unsubscribe()

	require.NoError(t, m.Register(t.Context()))
	t.Cleanup(m.Unregister)
	assert.Empty(t, log.snapshot())
}

func TestUnregisteredMonitorProbesSynchronously(t *testing.T) {
	prober := &fakeProber{state: State{Bluetooth: true}}
	m := NewMonitor(prober, Options{})

	assert.True(t, m.IsAnyHeadphoneConnected())
	assert.Equal(t, int32(1), prober.calls.Load())

	prober.fail(fmt.Errorf("gone"))
	assert.False(t, m.IsAnyHeadphoneConnected())
}

func TestContextCancelStopsPolling(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, Options{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, m.Register(ctx))
	cancel()

	m.Unregister()
	calls := prober.calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, prober.calls.Load())
}
