package daf

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/observability/metrics"
)

// Engine runs the capture, delay, playback loop for one session. It borrows
// the devices and delay line from the controller and never closes them.
type Engine struct {
	capture CaptureSource
	sink    SinkDevice
	line    *DelayLine
	frame   []byte
	running *atomic.Bool

	log     logger.Logger
	metrics Recorder

	// transient failures are expected, log a few and then at most once a second
	readLog  rate.Sometimes
	writeLog rate.Sometimes
}

func newEngine(capture CaptureSource, sink SinkDevice, line *DelayLine, frameSize int, running *atomic.Bool, log logger.Logger, rec Recorder) *Engine {
	return &Engine{
		capture:  capture,
		sink:     sink,
		line:     line,
		frame:    make([]byte, frameSize),
		running:  running,
		log:      log,
		metrics:  rec,
		readLog:  rate.Sometimes{First: 3, Interval: time.Second},
		writeLog: rate.Sometimes{First: 3, Interval: time.Second},
	}
}

// Run loops until the running flag is cleared. Read and write failures skip
// the iteration. A panic in a device call ends the loop and is returned.
func (e *Engine) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("worker panic: %v", r).
				Component("daf").
				Category(errors.CategoryAudio).
				Priority(errors.PriorityCritical).
				Context("operation", metrics.OpWorker).
				Build()
			e.metrics.RecordError(metrics.OpWorker, "panic")
		}
	}()

	for e.running.Load() {
		e.step()
	}
	return nil
}

// step performs one read, delay and write cycle
func (e *Engine) step() {
	start := time.Now()

	n, err := e.capture.Read(e.frame)
	if err != nil || n <= 0 {
		e.transientRead(n, err)
		return
	}
	n = min(n, len(e.frame))

	frame := e.frame[:n]
	e.line.Process(frame)

	if _, err := e.sink.Write(frame); err != nil {
		e.metrics.RecordError(metrics.OpSinkWrite, string(errors.CategoryTransientIO))
		e.writeLog.Do(func() {
			e.log.Debug("sink write failed, dropping frame",
				logger.Int("frame_bytes", n),
				logger.Error(err))
		})
		return
	}

	e.metrics.RecordFrame(n)
	e.metrics.RecordDuration(metrics.OpWorkerIteration, time.Since(start).Seconds())
}

func (e *Engine) transientRead(n int, err error) {
	if err == nil {
		// an empty read is the normal outcome of a device timeout
		return
	}
	e.metrics.RecordError(metrics.OpCaptureRead, string(errors.CategoryTransientIO))
	e.readLog.Do(func() {
		e.log.Debug("capture read failed",
			logger.Int("bytes_read", n),
			logger.Error(fmt.Errorf("%s: %w", metrics.OpCaptureRead, err)))
	})
}
