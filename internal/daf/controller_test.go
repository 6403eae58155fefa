package daf_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/leadme/daf/internal/audiodev/memdev"
	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/observability/metrics"
)

var _ daf.Recorder = (*metrics.DAFMetrics)(nil)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) TryPublish(ev events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) ofType(eventType events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.GetType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// countingRecorder implements daf.Recorder
type countingRecorder struct {
	mu     sync.Mutex
	ops    map[string]int
	errs   map[string]int
	frames int
	active bool
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ops: map[string]int{}, errs: map[string]int{}}
}

func (r *countingRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[operation+":"+status]++
}

func (r *countingRecorder) RecordDuration(string, float64) {}

func (r *countingRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[operation+":"+errorType]++
}

func (r *countingRecorder) RecordFrame(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
}

func (r *countingRecorder) SetSessionActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
}

func (r *countingRecorder) errCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[key]
}

func (r *countingRecorder) opCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

func (r *countingRecorder) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func newController(t *testing.T, backend daf.Backend, opts daf.Options) *daf.Controller {
	t.Helper()
	c := daf.NewController(backend, opts)
	t.Cleanup(c.Stop)
	return c
}

// runStream starts a session, waits until the whole input has reached the sink and stops it
func runStream(t *testing.T, backend *memdev.Backend, cfg daf.AudioConfig, inputLen int) []byte {
	t.Helper()
	c := newController(t, backend, daf.Options{})

	require.NoError(t, c.Start(cfg))
	sink := backend.LastSink()
	require.NotNil(t, sink)

	require.Eventually(t, func() bool { return sink.Len() >= inputLen }, 5*time.Second, time.Millisecond)
	c.Stop()

	return sink.Output()
}

func TestImpulseAppearsAfterDelay(t *testing.T) {
	input := make([]byte, 12800)
	input[0], input[1] = 0xFF, 0x7F

	backend := memdev.New(memdev.Options{FrameSize: 640, Input: input})
	out := runStream(t, backend, daf.NewAudioConfig(16000, 200), len(input))

	require.Len(t, out, len(input))
	for i, b := range out {
		switch i {
		case 6400:
			assert.Equal(t, byte(0xFF), b)
		case 6401:
			assert.Equal(t, byte(0x7F), b)
		default:
			require.Zero(t, b, "offset %d", i)
		}
	}
}

func TestStreamContentIsDelayedLosslessly(t *testing.T) {
	cfg := daf.NewAudioConfig(16000, 100)
	capacity := cfg.CapacityBytes()
	rng := rand.New(rand.NewPCG(7, 11))

	input := make([]byte, 5*capacity)
	for i := range input {
		input[i] = byte(rng.IntN(256))
	}

	backend := memdev.New(memdev.Options{FrameSize: 333, Input: input})
	out := runStream(t, backend, cfg, len(input))

	require.Len(t, out, len(input))
	assert.Equal(t, make([]byte, capacity), out[:capacity])
	assert.Equal(t, input[:len(input)-capacity], out[capacity:])
}

func TestZeroDelayPassesThrough(t *testing.T) {
	input := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	backend := memdev.New(memdev.Options{FrameSize: 4, Input: input})

	out := runStream(t, backend, daf.NewAudioConfig(16000, 0), len(input))
	assert.Equal(t, input, out)
}

func TestStartIsIdempotent(t *testing.T) {
	backend := memdev.New(memdev.Options{})
	pub := &recordingPublisher{}
	c := newController(t, backend, daf.Options{Publisher: pub})

	require.NoError(t, c.Start(daf.DefaultAudioConfig()))
	require.NoError(t, c.Start(daf.DefaultAudioConfig()))

	assert.Equal(t, daf.StateRunning, c.State())
	assert.Equal(t, 1, backend.CaptureOpens())
	assert.Equal(t, 1, backend.SinkOpens())
	assert.Len(t, pub.ofType(events.TypeSessionStarted), 1)

	c.Stop()
	assert.Equal(t, daf.StateIdle, c.State())
	assert.Zero(t, backend.OpenDevices())
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	backend := memdev.New(memdev.Options{})
	pub := &recordingPublisher{}
	c := newController(t, backend, daf.Options{Publisher: pub})

	c.Stop()
	c.Stop()

	assert.Equal(t, daf.StateIdle, c.State())
	assert.Zero(t, backend.CaptureOpens())
	assert.Empty(t, pub.ofType(events.TypeSessionStopped))
}

func TestStopReleasesDevicesAndPublishes(t *testing.T) {
	backend := memdev.New(memdev.Options{})
	pub := &recordingPublisher{}
	rec := newCountingRecorder()
	c := newController(t, backend, daf.Options{Publisher: pub, Metrics: rec})

	require.NoError(t, c.Start(daf.DefaultAudioConfig()))
	assert.True(t, backend.LastCapture().Started())
	assert.True(t, backend.LastSink().Started())
	assert.True(t, rec.isActive())

	info, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, 6400, info.CapacityBytes)
	assert.Equal(t, 640, info.FrameBytes)
	assert.Equal(t, memdev.BackendName, info.Backend)

	c.Stop()

	assert.True(t, backend.LastCapture().Closed())
	assert.True(t, backend.LastSink().Closed())
	assert.False(t, rec.isActive())
	assert.Equal(t, 1, rec.opCount("session_stop:success"))

	_, ok = c.Session()
	assert.False(t, ok)

	started := pub.ofType(events.TypeSessionStarted)
	stopped := pub.ofType(events.TypeSessionStopped)
	require.Len(t, started, 1)
	require.Len(t, stopped, 1)
	assert.Equal(t, info.ID, started[0].GetPayload()["session_id"])
	assert.Equal(t, info.ID, stopped[0].GetPayload()["session_id"])
}

func TestRapidStartStopCycles(t *testing.T) {
	backend := memdev.New(memdev.Options{FrameSize: 64, Input: make([]byte, 4096)})
	c := newController(t, backend, daf.Options{})

	for i := range 100 {
		require.NoError(t, c.Start(daf.DefaultAudioConfig()), "cycle %d", i)
		c.Stop()
		require.Equal(t, daf.StateIdle, c.State(), "cycle %d", i)
		require.Zero(t, backend.OpenDevices(), "cycle %d", i)
	}

	assert.Equal(t, 100, backend.CaptureOpens())
	assert.Equal(t, 100, backend.SinkOpens())
	assert.Zero(t, backend.UseAfterRelease())
}

func TestConcurrentStartStop(t *testing.T) {
	backend := memdev.New(memdev.Options{FrameSize: 64, Input: make([]byte, 1024)})
	c := newController(t, backend, daf.Options{})

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Go(func() {
			for i := range 50 {
				if (g+i)%2 == 0 {
					assert.NoError(t, c.Start(daf.DefaultAudioConfig()))
				} else {
					c.Stop()
				}
			}
		})
	}
	wg.Wait()
	c.Stop()

	assert.Equal(t, daf.StateIdle, c.State())
	assert.Zero(t, backend.OpenDevices())
	assert.Zero(t, backend.UseAfterRelease())
}

func TestStartFailureRollsBack(t *testing.T) {
	boom := fmt.Errorf("no such device")

	tests := []struct {
		name          string
		opts          memdev.Options
		wantSinkOpens int
	}{
		{name: "frame size query fails", opts: memdev.Options{FrameSizeErr: boom}, wantSinkOpens: 0},
		{name: "capture open fails", opts: memdev.Options{OpenCaptureErr: boom}, wantSinkOpens: 0},
		{name: "sink open fails", opts: memdev.Options{OpenSinkErr: boom}, wantSinkOpens: 1},
		{name: "sink start fails", opts: memdev.Options{StartSinkErr: boom}, wantSinkOpens: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := memdev.New(tt.opts)
			rec := newCountingRecorder()
			pub := &recordingPublisher{}
			c := newController(t, backend, daf.Options{Metrics: rec, Publisher: pub})

			err := c.Start(daf.DefaultAudioConfig())

			require.Error(t, err)
			assert.ErrorIs(t, err, daf.ErrDeviceUnavailable)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, errors.CategoryDeviceUnavailable, errors.CategoryOf(err))
			assert.Equal(t, daf.StateIdle, c.State())
			assert.Zero(t, backend.OpenDevices(), "partially opened devices must be closed")
			assert.Equal(t, tt.wantSinkOpens, backend.SinkOpens())
			assert.Equal(t, 1, rec.errCount("session_start:device-unavailable"))
			assert.Empty(t, pub.ofType(events.TypeSessionStarted))

			c.Stop()
			assert.Equal(t, daf.StateIdle, c.State())
		})
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	backend := memdev.New(memdev.Options{})
	c := newController(t, backend, daf.Options{})

	err := c.Start(daf.NewAudioConfig(16000, -1))

	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.NotErrorIs(t, err, daf.ErrDeviceUnavailable)
	assert.Zero(t, backend.CaptureOpens())
}

func TestTransientFailuresDoNotEndTheLoop(t *testing.T) {
	input := make([]byte, 6400)
	backend := memdev.New(memdev.Options{FrameSize: 64, Input: input, ReadErrEvery: 3, WriteErrEvery: 4})
	rec := newCountingRecorder()
	c := newController(t, backend, daf.Options{Metrics: rec})

	require.NoError(t, c.Start(daf.DefaultAudioConfig()))

	select {
	case <-backend.LastCapture().Drained():
	case <-time.After(5 * time.Second):
		t.Fatal("capture input was never drained")
	}

	assert.Equal(t, daf.StateRunning, c.State())
	assert.Positive(t, rec.errCount("capture_read:transient-io"))
	assert.Positive(t, rec.errCount("sink_write:transient-io"))

	// every fourth frame is dropped by the sink
	sink := backend.LastSink()
	assert.Less(t, sink.Len(), len(input))
	assert.Zero(t, sink.Len()%64)

	c.Stop()
	assert.Zero(t, backend.OpenDevices())
}

func TestTeardownTimeoutStillReleasesDevices(t *testing.T) {
	gate := make(chan struct{})
	backend := memdev.New(memdev.Options{Block: gate})
	pub := &recordingPublisher{}
	rec := newCountingRecorder()
	c := newController(t, backend, daf.Options{
		JoinTimeout: 50 * time.Millisecond,
		Publisher:   pub,
		Metrics:     rec,
	})

	require.NoError(t, c.Start(daf.DefaultAudioConfig()))
	capture := backend.LastCapture()
	require.Eventually(t, capture.Blocked, time.Second, time.Millisecond)

	start := time.Now()
	c.Stop()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, daf.StateIdle, c.State())
	assert.Zero(t, backend.OpenDevices())
	assert.Equal(t, 1, rec.errCount("session_stop:teardown-timeout"))

	diags := pub.ofType(events.TypeDiagnostic)
	require.Len(t, diags, 1)
	assert.Equal(t, string(errors.CategoryTeardownTimeout), diags[0].GetPayload()["category"])
	assert.Equal(t, errors.PriorityHigh, diags[0].GetPayload()["priority"])

	// release the stuck worker; it finds its device closed and exits
	close(gate)
	require.Eventually(t, func() bool { return backend.UseAfterRelease() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, goleak.Find())
}

func TestStaleWorkerStaysStoppedAfterRestart(t *testing.T) {
	gate := make(chan struct{})
	backend := memdev.New(memdev.Options{Block: gate})
	c := newController(t, backend, daf.Options{JoinTimeout: 20 * time.Millisecond})

	require.NoError(t, c.Start(daf.DefaultAudioConfig()))
	stale := backend.LastCapture()
	require.Eventually(t, stale.Blocked, time.Second, time.Millisecond)

	// the first worker is still stuck in Read when the second session starts
	c.Stop()
	require.NoError(t, c.Start(daf.DefaultAudioConfig()))
	assert.Equal(t, daf.StateRunning, c.State())
	current := backend.LastCapture()
	require.NotSame(t, stale, current)

	close(gate)

	// one read on the released device, then the stale worker sees its own flag and exits
	require.Eventually(t, func() bool { return backend.UseAfterRelease() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return backend.UseAfterRelease() > 1 }, 100*time.Millisecond, 5*time.Millisecond)

	assert.Equal(t, daf.StateRunning, c.State())
	assert.False(t, current.Closed())

	c.Stop()
	assert.Equal(t, daf.StateIdle, c.State())
	assert.Zero(t, backend.OpenDevices())
	assert.Equal(t, 1, backend.UseAfterRelease())
}

func TestWorkerPanicIsReportedAndSessionStaysUntilStop(t *testing.T) {
	backend := memdev.New(memdev.Options{ReadPanic: "driver fault"})
	pub := &recordingPublisher{}
	rec := newCountingRecorder()
	c := newController(t, backend, daf.Options{Publisher: pub, Metrics: rec})

	require.NoError(t, c.Start(daf.DefaultAudioConfig()))

	require.Eventually(t, func() bool { return len(pub.ofType(events.TypeDiagnostic)) == 1 },
		time.Second, time.Millisecond)

	diag := pub.ofType(events.TypeDiagnostic)[0].GetPayload()
	assert.Equal(t, string(errors.CategoryAudio), diag["category"])
	assert.Equal(t, errors.PriorityCritical, diag["priority"])
	assert.Contains(t, diag["message"], "driver fault")
	assert.Equal(t, 1, rec.errCount("worker:panic"))

	assert.Equal(t, daf.StateRunning, c.State())
	assert.Equal(t, 2, backend.OpenDevices())

	start := time.Now()
	c.Stop()
	assert.Less(t, time.Since(start), daf.DefaultJoinTimeout, "a panicked worker has already exited")

	assert.Equal(t, daf.StateIdle, c.State())
	assert.True(t, backend.LastCapture().Closed())
	assert.True(t, backend.LastSink().Closed())
	assert.Zero(t, backend.OpenDevices())
	assert.Len(t, pub.ofType(events.TypeSessionStopped), 1)
}
