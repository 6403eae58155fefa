package malgo

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/leadme/daf/internal/errors"
)

var errWriteTimeout = fmt.Errorf("playback buffer full, write timed out")

// pcmBuffer bridges a malgo data callback to blocking Read and Write calls.
// The callback side never blocks; the worker side waits at most its timeout.
type pcmBuffer struct {
	rb *ringbuffer.RingBuffer

	dataReady  chan struct{}
	spaceReady chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	overruns  atomic.Uint64 // capture bytes dropped because the worker fell behind
	underruns atomic.Uint64 // playback callbacks padded with silence
}

func newPCMBuffer(size int) *pcmBuffer {
	return &pcmBuffer{
		rb:         ringbuffer.New(size),
		dataReady:  make(chan struct{}, 1),
		spaceReady: make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// push is called from the capture callback
func (b *pcmBuffer) push(p []byte) {
	if len(p) == 0 {
		return
	}
	n, _ := b.rb.Write(p)
	if n < len(p) {
		b.overruns.Add(uint64(len(p) - n))
	}
	if n > 0 {
		notify(b.dataReady)
	}
}

// pull is called from the playback callback. Missing bytes are silence.
func (b *pcmBuffer) pull(out []byte) {
	if len(out) == 0 {
		return
	}
	n, _ := b.rb.Read(out)
	if n < len(out) {
		clear(out[n:])
		b.underruns.Add(1)
	}
	if n > 0 {
		notify(b.spaceReady)
	}
}

// read waits up to timeout for captured data. It returns 0 without error
// when nothing arrived in time or the buffer was stopped.
func (b *pcmBuffer) read(p []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		n, err := b.rb.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
			return 0, err
		}

		select {
		case <-b.dataReady:
		case <-timer.C:
			return 0, nil
		case <-b.stopped:
			return 0, nil
		}
	}
}

// write queues p for playback, waiting up to timeout for space
func (b *pcmBuffer) write(p []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	written := 0
	for written < len(p) {
		n, err := b.rb.Write(p[written:])
		written += n
		if written == len(p) {
			break
		}
		if n == 0 && err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
			return written, err
		}

		select {
		case <-b.spaceReady:
		case <-timer.C:
			return written, errWriteTimeout
		case <-b.stopped:
			return written, errWriteTimeout
		}
	}
	return written, nil
}

// stop wakes any waiting reader or writer
func (b *pcmBuffer) stop() {
	b.stopOnce.Do(func() { close(b.stopped) })
}
