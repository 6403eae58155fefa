package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/observability/metrics"
)

// Forwarder is an event bus consumer that publishes every event as JSON to
// <prefix>/<event type>.
type Forwarder struct {
	client  Client
	prefix  string
	timeout time.Duration
	metrics *metrics.MQTTMetrics
	log     logger.Logger
}

// NewForwarder creates a forwarder publishing through client. m may be nil.
func NewForwarder(client Client, cfg Config, m *metrics.MQTTMetrics, log logger.Logger) *Forwarder {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Forwarder{
		client:  client,
		prefix:  cfg.TopicPrefix,
		timeout: cfg.PublishTimeout,
		metrics: m,
		log:     log.Module("mqtt"),
	}
}

// Name implements events.EventConsumer
func (f *Forwarder) Name() string { return "mqtt-forwarder" }

// Topic returns the topic an event of eventType is published to
func (f *Forwarder) Topic(eventType events.EventType) string {
	if f.prefix == "" {
		return string(eventType)
	}
	return f.prefix + "/" + string(eventType)
}

// ProcessEvent implements events.EventConsumer. Events that arrive while the
// broker is unreachable are dropped and reported as an error to the bus.
func (f *Forwarder) ProcessEvent(ev events.Event) error {
	payload, err := json.Marshal(NewEventMessage(ev))
	if err != nil {
		f.recordError("encode")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("event_type", string(ev.GetType())).
			Build()
	}

	if !f.client.IsConnected() {
		return fmt.Errorf("mqtt: dropping %s, broker not connected", ev.GetType())
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	topic := f.Topic(ev.GetType())
	start := time.Now()
	if err := f.client.Publish(ctx, topic, payload); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if f.metrics != nil {
		f.metrics.RecordPublish(string(ev.GetType()), len(payload), time.Since(start))
	}
	f.log.Debug("event forwarded", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

func (f *Forwarder) recordError(errorType string) {
	if f.metrics != nil {
		f.metrics.RecordError(errorType)
	}
}
