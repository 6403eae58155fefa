// Package service assembles the DAF daemon from its parts: the audio backend,
// the lifecycle controller, headset detection, the event bus and its
// consumers, and the HTTP control surface. Run blocks until its context ends
// and then tears everything down in reverse order.
package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leadme/daf/internal/api"
	malgodev "github.com/leadme/daf/internal/audiodev/malgo"
	"github.com/leadme/daf/internal/audiodev/memdev"
	"github.com/leadme/daf/internal/conf"
	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/headset"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/mqtt"
	"github.com/leadme/daf/internal/notify"
	"github.com/leadme/daf/internal/observability"
	"github.com/leadme/daf/internal/observability/metrics"
)

// Options override parts of the assembly. Zero values build everything from
// the settings.
type Options struct {
	Logger logger.Logger
	// Backend replaces the backend selected by audio.backend
	Backend daf.Backend
	// Prober replaces malgo playback device enumeration
	Prober headset.Prober
	// Metrics replaces a freshly registered metrics set
	Metrics *observability.Metrics
	// Notifier replaces the shoutrrr router built from notify.urls
	Notifier notify.Sender
	// Listener serves the HTTP API instead of webserver.listen
	Listener net.Listener
	// DisableHTTP skips the HTTP API even when webserver.enabled is set
	DisableHTTP bool
	// AutoStart requests a session as soon as everything is running
	AutoStart bool
}

// Service owns every long-lived component of the daemon
type Service struct {
	settings *conf.Settings
	opts     Options
	log      logger.Logger

	metrics *observability.Metrics
	bus     *events.EventBus
	backend daf.Backend
	ctrl    *daf.Controller
	host    *daf.Host
	monitor *headset.Monitor
	mqtt    mqtt.Client
	notify  notify.Sender
	server  *api.Server
}

// New builds the component graph without starting any goroutine other than
// the event bus workers.
func New(settings *conf.Settings, opts Options) (*Service, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("service").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Service{
		settings: settings,
		opts:     opts,
		log:      log.Module("service"),
		metrics:  opts.Metrics,
		backend:  opts.Backend,
	}

	if s.metrics == nil {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("error initializing metrics: %w", err)
		}
		s.metrics = m
	}

	if s.backend == nil {
		backend, err := NewBackend(settings, log)
		if err != nil {
			return nil, err
		}
		s.backend = backend
	}

	s.bus = events.NewEventBus(events.Config{
		BufferSize: settings.EventBus.BufferSize,
		Workers:    settings.EventBus.Workers,
	}, log.Module("events"))

	if settings.Headset.Enabled {
		prober := opts.Prober
		if prober == nil {
			prober = headset.NewDeviceProber(headset.PlaybackDevices, settings.Headset.CacheTTL)
		}
		s.monitor = headset.NewMonitor(prober, headset.Options{
			PollInterval: settings.Headset.PollInterval,
			Publisher:    s.bus,
			Metrics:      s.metrics.DAF,
			Logger:       log.Module("headset"),
		})
	}

	s.ctrl = daf.NewController(s.backend, daf.Options{
		JoinTimeout: settings.DAF.JoinTimeout,
		Publisher:   s.bus,
		Metrics:     s.metrics.DAF,
		Logger:      log.Module("daf"),
	})

	hostOpts := daf.HostOptions{
		Config:            daf.NewAudioConfig(settings.DAF.SampleRate, settings.DAF.DelayMs),
		RequireHeadphones: settings.DAF.RequireHeadphones && s.monitor != nil,
		StopOnUnplug:      settings.DAF.StopOnUnplug && s.monitor != nil,
		Diagnostics:       s.bus,
		Logger:            log.Module("daf"),
	}
	if s.monitor != nil {
		hostOpts.Headphones = s.monitor
	}
	s.host = daf.NewHost(s.ctrl, hostOpts)

	if settings.WebServer.Enabled && !opts.DisableHTTP {
		serverOpts := []api.ServerOption{
			api.WithLogger(log),
			api.WithDAF(s.host, s.ctrl),
			api.WithMetrics(s.metrics),
			api.WithVersion(settings.Version),
		}
		if s.monitor != nil {
			serverOpts = append(serverOpts, api.WithHeadsets(s.monitor))
		}
		server, err := api.New(api.ConfigFromSettings(settings), serverOpts...)
		if err != nil {
			_ = s.bus.Shutdown(time.Second)
			return nil, err
		}
		s.server = server
	}

	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(mqttConfig(settings), s.metrics.MQTT, log.Module("mqtt"))
		if err != nil {
			_ = s.bus.Shutdown(time.Second)
			return nil, err
		}
		s.mqtt = client
	}

	if settings.Notify.Enabled {
		sender := opts.Notifier
		if sender == nil {
			var err error
			sender, err = notify.NewSender(settings.Notify.URLs, settings.Notify.Timeout)
			if err != nil {
				_ = s.bus.Shutdown(time.Second)
				return nil, err
			}
		}
		s.notify = sender
	}

	if err := s.registerConsumers(); err != nil {
		_ = s.bus.Shutdown(time.Second)
		return nil, err
	}

	return s, nil
}

// NewBackend opens the audio backend named by audio.backend
func NewBackend(settings *conf.Settings, log logger.Logger) (daf.Backend, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	switch settings.Audio.Backend {
	case malgodev.BackendName, "":
		return malgodev.NewBackend(malgodev.Config{
			CaptureDevice:  settings.Audio.CaptureDevice,
			PlaybackDevice: settings.Audio.PlaybackDevice,
			PeriodMs:       settings.Audio.PeriodMs,
			ReadTimeout:    settings.Audio.ReadTimeout,
			WriteTimeout:   settings.Audio.WriteTimeout,
			BufferPeriods:  settings.Audio.BufferPeriods,
			Logger:         log.Module("audio"),
		}), nil
	case memdev.BackendName:
		// silent capture, discarded playback
		return memdev.New(memdev.Options{IdleTimeout: settings.Audio.ReadTimeout}), nil
	default:
		return nil, errors.Newf("unknown audio backend %q", settings.Audio.Backend).
			Component("service").
			Category(errors.CategoryConfiguration).
			Context("backend", settings.Audio.Backend).
			Build()
	}
}

func mqttConfig(settings *conf.Settings) mqtt.Config {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	if settings.MQTT.ClientID != "" {
		cfg.ClientID = settings.MQTT.ClientID
	}
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	if settings.MQTT.TopicPrefix != "" {
		cfg.TopicPrefix = settings.MQTT.TopicPrefix
	}
	cfg.Retain = settings.MQTT.Retain
	return cfg
}

// registerConsumers subscribes the host, the SSE broadcaster, the MQTT
// forwarder and the push notifier. It runs before headset registration so the initial
// connectivity events have somewhere to go.
func (s *Service) registerConsumers() error {
	consumers := []events.EventConsumer{s.host}
	if s.server != nil {
		consumers = append(consumers, s.server.APIController().SSE())
	}
	if s.mqtt != nil {
		consumers = append(consumers, mqtt.NewForwarder(s.mqtt, mqttConfig(s.settings), s.metrics.MQTT, s.log.Module("mqtt")))
	}
	if s.notify != nil {
		consumers = append(consumers, notify.New(s.notify, notify.Config{
			Events:  s.settings.Notify.Events,
			Timeout: s.settings.Notify.Timeout,
		}, s.log.Module("notify")))
	}

	for _, c := range consumers {
		if err := s.bus.RegisterConsumer(c); err != nil {
			return fmt.Errorf("error registering %s: %w", c.Name(), err)
		}
	}
	return nil
}

// Run starts headset detection, the MQTT connection and the HTTP server and
// blocks until ctx is cancelled or the HTTP server fails. Any running
// session is stopped before Run returns.
func (s *Service) Run(ctx context.Context) error {
	defer s.shutdown()

	s.log.Info("starting DAF service",
		logger.String("version", s.settings.Version),
		logger.String("backend", s.backend.Name()),
		logger.Int("sample_rate", s.settings.DAF.SampleRate),
		logger.Int("delay_ms", s.settings.DAF.DelayMs),
		logger.Bool("require_headphones", s.settings.DAF.RequireHeadphones))

	g, gctx := errgroup.WithContext(ctx)

	if s.monitor != nil {
		if err := s.monitor.Register(gctx); err != nil {
			// detection failures must not keep the service down
			s.log.Warn("headset detection unavailable", logger.Error(err))
		}
	}

	if s.mqtt != nil {
		g.Go(func() error {
			if err := s.mqtt.Connect(gctx); err != nil {
				s.log.Warn("MQTT broker unreachable, events will not be forwarded until it is",
					logger.Error(err))
			}
			return nil
		})
	}

	if s.server != nil {
		g.Go(func() error {
			if s.opts.Listener != nil {
				return s.server.Serve(gctx, s.opts.Listener)
			}
			return s.server.Run(gctx)
		})
	}

	if s.opts.AutoStart {
		s.host.StartDAF()
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	return g.Wait()
}

// shutdown releases components in reverse start order
func (s *Service) shutdown() {
	s.log.Info("stopping DAF service")

	s.host.StopDAF()
	if s.monitor != nil {
		s.monitor.Unregister()
	}
	if err := s.bus.Shutdown(metrics.ShutdownTimeout); err != nil {
		s.log.Warn("event bus did not drain", logger.Error(err))
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}

	s.log.Info("DAF service stopped")
}

// Host returns the fire-and-forget facade
func (s *Service) Host() *daf.Host { return s.host }

// Controller returns the lifecycle controller
func (s *Service) Controller() *daf.Controller { return s.ctrl }

// Bus returns the event bus
func (s *Service) Bus() *events.EventBus { return s.bus }
