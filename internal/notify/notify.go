// Package notify pushes selected bus events to chat and push services through
// shoutrrr service URLs.
package notify

import (
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/privacy"
)

// Sender delivers one message to every configured service. shoutrrr's
// router satisfies it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Config selects the services and the events pushed to them
type Config struct {
	URLs    []string
	Events  []string // event types, empty means diagnostic only
	Timeout time.Duration
}

// Notifier is an event bus consumer that turns events into push notifications
type Notifier struct {
	sender Sender
	types  map[events.EventType]bool
	log    logger.Logger
}

// NewSender builds a shoutrrr router for urls. Errors are sanitized since
// service URLs usually carry tokens.
func NewSender(urls []string, timeout time.Duration) (Sender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one service URL is required").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(privacy.WrapError(err)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender, nil
}

// New creates a notifier delivering through sender
func New(sender Sender, cfg Config, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	eventTypes := cfg.Events
	if len(eventTypes) == 0 {
		eventTypes = []string{string(events.TypeDiagnostic)}
	}
	types := make(map[events.EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[events.EventType(strings.TrimSpace(t))] = true
	}
	return &Notifier{sender: sender, types: types, log: log}
}

// Name implements events.EventConsumer
func (n *Notifier) Name() string { return "notifier" }

// Wants reports whether events of eventType are pushed
func (n *Notifier) Wants(eventType events.EventType) bool { return n.types[eventType] }

// ProcessEvent implements events.EventConsumer
func (n *Notifier) ProcessEvent(ev events.Event) error {
	if !n.types[ev.GetType()] {
		return nil
	}

	title, body := Format(ev)
	params := stypes.Params{}
	params.SetTitle(title)

	errs := slices.DeleteFunc(n.sender.Send(body, &params), func(err error) bool { return err == nil })
	if len(errs) > 0 {
		return errors.New(privacy.WrapError(errs[0])).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("event_type", string(ev.GetType())).
			Context("failed_services", len(errs)).
			Build()
	}

	n.log.Debug("notification sent", logger.String("event_type", string(ev.GetType())))
	return nil
}

// Format renders the title and body of the notification for ev
func Format(ev events.Event) (title, body string) {
	switch e := ev.(type) {
	case *events.DiagnosticEvent:
		return "DAF " + e.Category, privacy.ScrubMessage(e.Message)
	case *events.SessionEvent:
		if e.Type == events.TypeSessionStarted {
			return "DAF started", fmt.Sprintf("Session %s running with %d ms delay at %d Hz", e.SessionID, e.DelayMs, e.SampleRateHz)
		}
		return "DAF stopped", fmt.Sprintf("Session %s stopped", e.SessionID)
	case *events.HeadsetEvent:
		state := "disconnected"
		if e.Connected {
			state = "connected"
		}
		kind := "Wired headphones"
		if e.Type == events.TypeBluetoothHeadsetStateChanged {
			kind = "Bluetooth headset"
		}
		return "DAF headphones", kind + " " + state
	default:
		return "DAF " + string(ev.GetType()), fmt.Sprint(ev.GetPayload())
	}
}
