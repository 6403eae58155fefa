// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/leadme/daf/internal/conf"
	"github.com/leadme/daf/internal/errors"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/privacy"
)

var sentryInitialized atomic.Bool

// PlatformInfo holds privacy-safe platform information for telemetry.
// Hostnames and host IDs are never collected.
type PlatformInfo struct {
	OS              string `json:"os"`
	Architecture    string `json:"arch"`
	NumCPU          int    `json:"num_cpu"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Virtualization  string `json:"virtualization,omitempty"`
}

// CollectPlatformInfo gathers the platform details attached to error reports
// and logged at startup. Host details are best effort.
func CollectPlatformInfo() PlatformInfo {
	info := PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}

	if hi, err := host.Info(); err == nil {
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
		info.Virtualization = hi.VirtualizationSystem
	}

	return info
}

// InitSentry initializes the Sentry SDK when telemetry.sentry is enabled and
// installs it as the reporter for enhanced errors. It is a no-op otherwise.
func InitSentry(settings *conf.Settings, log logger.Logger) error {
	return initSentry(settings, nil, log)
}

func initSentry(settings *conf.Settings, transport sentry.Transport, log logger.Logger) error {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.Module("telemetry")

	if !settings.Telemetry.Sentry {
		log.Debug("sentry telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.SentryDSN,
		Transport:        transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Telemetry.Environment,
		ServerName:       "", // never leak the hostname
		Release:          fmt.Sprintf("dafd@%s", settings.Version),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureSentryScope(settings)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized.Store(true)

	log.Info("sentry telemetry initialized",
		logger.String("environment", settings.Telemetry.Environment),
		logger.String("version", settings.Version))
	return nil
}

// applyPrivacyFilters strips user, host and runtime details from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

func configureSentryScope(settings *conf.Settings) {
	platformInfo := CollectPlatformInfo()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", platformInfo.OS)
		scope.SetTag("arch", platformInfo.Architecture)
		if platformInfo.Platform != "" {
			scope.SetTag("platform", platformInfo.Platform)
		}

		scope.SetContext("platform", map[string]any{
			"platform_version": platformInfo.PlatformVersion,
			"kernel_version":   platformInfo.KernelVersion,
			"virtualization":   platformInfo.Virtualization,
			"num_cpu":          platformInfo.NumCPU,
			"go_version":       platformInfo.GoVersion,
		})

		scope.SetContext("application", map[string]any{
			"name":    "dafd",
			"version": settings.Version,
		})
		scope.SetContext("audio", map[string]any{
			"backend":     settings.Audio.Backend,
			"sample_rate": settings.DAF.SampleRate,
			"delay_ms":    settings.DAF.DelayMs,
		})
	})
}

// Flush waits up to timeout for buffered events to be delivered. It returns
// true when nothing was pending or everything was sent.
func Flush(timeout time.Duration) bool {
	if !sentryInitialized.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// Close detaches the reporter and flushes pending events
func Close(timeout time.Duration) {
	if !sentryInitialized.Swap(false) {
		return
	}
	errors.SetTelemetryReporter(nil)
	sentry.Flush(timeout)
}
