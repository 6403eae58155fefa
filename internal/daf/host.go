package daf

import (
	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/logger"
)

// HeadphoneDetector answers whether any wired or Bluetooth headphones are connected
type HeadphoneDetector interface {
	IsAnyHeadphoneConnected() bool
}

// HostOptions configures the fire-and-forget facade
type HostOptions struct {
	Config AudioConfig
	// RequireHeadphones refuses StartDAF while no headphones are connected
	RequireHeadphones bool
	// StopOnUnplug stops a running session once the last headphones disconnect
	StopOnUnplug bool
	Headphones   HeadphoneDetector
	Diagnostics  events.Publisher
	Logger       logger.Logger
}

// Host exposes StartDAF and StopDAF without return values. Failures are
// delivered to the diagnostics publisher.
type Host struct {
	ctrl *Controller
	opts HostOptions
	log  logger.Logger
}

// NewHost wraps ctrl with the fire-and-forget API
func NewHost(ctrl *Controller, opts HostOptions) *Host {
	if opts.Diagnostics == nil {
		opts.Diagnostics = events.NopPublisher{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Host{ctrl: ctrl, opts: opts, log: log}
}

// StartDAF starts a session with the configured audio format
func (h *Host) StartDAF() {
	if h.opts.RequireHeadphones && !h.headphonesConnected() {
		err := errors.Newf("no headphones connected").
			Component("daf").
			Category(errors.CategoryPolicy).
			Context("operation", "start").
			Build()
		h.log.Warn("refusing to start without headphones")
		h.opts.Diagnostics.TryPublish(events.NewDiagnosticEvent(err))
		return
	}

	if err := h.ctrl.Start(h.opts.Config); err != nil {
		h.opts.Diagnostics.TryPublish(events.NewDiagnosticEvent(err))
	}
}

// StopDAF stops the running session, if any
func (h *Host) StopDAF() {
	h.ctrl.Stop()
}

// Controller returns the wrapped controller
func (h *Host) Controller() *Controller {
	return h.ctrl
}

func (h *Host) headphonesConnected() bool {
	return h.opts.Headphones != nil && h.opts.Headphones.IsAnyHeadphoneConnected()
}

// Name implements events.EventConsumer
func (h *Host) Name() string {
	return "daf-host"
}

// ProcessEvent stops the session when headphones are unplugged and
// StopOnUnplug is set.
func (h *Host) ProcessEvent(event events.Event) error {
	if !h.opts.StopOnUnplug || h.ctrl.State() != StateRunning {
		return nil
	}

	hs, ok := event.(*events.HeadsetEvent)
	if !ok || hs.Connected {
		return nil
	}

	if h.headphonesConnected() {
		return nil
	}

	h.log.Info("headphones disconnected, stopping session",
		logger.String("event_type", string(hs.GetType())))
	h.StopDAF()
	return nil
}
