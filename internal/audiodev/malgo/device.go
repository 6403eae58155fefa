package malgo

import (
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/logger"
)

// device owns one malgo device and its context
type device struct {
	kind string
	name string
	ctx  *malgo.AllocatedContext
	dev  *malgo.Device
	buf  *pcmBuffer
	log  logger.Logger

	closeOnce sync.Once
}

func (d *device) Start() error {
	if err := d.dev.Start(); err != nil {
		return errors.New(err).
			Component("audiodev").
			Category(errors.CategoryAudioDevice).
			Context("operation", "start_device").
			Context("device_kind", d.kind).
			Context("device", d.name).
			Build()
	}
	return nil
}

// Stop halts the hardware and wakes any blocked Read or Write
func (d *device) Stop() error {
	d.buf.stop()
	if err := d.dev.Stop(); err != nil {
		return errors.New(err).
			Component("audiodev").
			Category(errors.CategoryAudioDevice).
			Context("operation", "stop_device").
			Context("device_kind", d.kind).
			Build()
	}
	return nil
}

func (d *device) Close() error {
	d.closeOnce.Do(func() {
		d.buf.stop()
		d.dev.Uninit()
		freeContext(d.ctx)
		d.log.Debug("audio device closed",
			logger.String("device", d.name),
			logger.Uint64("overrun_bytes", d.buf.overruns.Load()),
			logger.Uint64("underruns", d.buf.underruns.Load()))
	})
	return nil
}

type captureDevice struct {
	*device
	timeout time.Duration
}

func (c *captureDevice) Read(buf []byte) (int, error) {
	return c.buf.read(buf, c.timeout)
}

type playbackDevice struct {
	*device
	timeout time.Duration
}

func (p *playbackDevice) Write(buf []byte) (int, error) {
	n, err := p.buf.write(buf, p.timeout)
	if err != nil {
		return n, errors.Join(daf.ErrWriteFailed, err)
	}
	return n, nil
}
