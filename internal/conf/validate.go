// validate.go contains validation logic for the configuration settings
package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/leadme/daf/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateDAFSettings(&settings.DAF)...)
	ve.Errors = append(ve.Errors, validateAudioSettings(&settings.Audio)...)
	ve.Errors = append(ve.Errors, validateHeadsetSettings(&settings.Headset, &settings.DAF)...)
	ve.Errors = append(ve.Errors, validateWebServerSettings(&settings.WebServer)...)
	ve.Errors = append(ve.Errors, validateMQTTSettings(&settings.MQTT)...)
	ve.Errors = append(ve.Errors, validateNotifySettings(&settings.Notify)...)
	ve.Errors = append(ve.Errors, validateTelemetrySettings(&settings.Telemetry)...)
	ve.Errors = append(ve.Errors, validateLoggingSettings(&settings.Logging)...)

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func validateDAFSettings(s *DAFSettings) []string {
	var errs []string
	if s.SampleRate <= 0 {
		errs = append(errs, fmt.Sprintf("daf.samplerate must be positive, got %d", s.SampleRate))
	}
	if s.DelayMs < 0 {
		errs = append(errs, fmt.Sprintf("daf.delayms must not be negative, got %d", s.DelayMs))
	}
	if s.DelayMs > 5000 {
		errs = append(errs, fmt.Sprintf("daf.delayms must be at most 5000, got %d", s.DelayMs))
	}
	if s.JoinTimeout <= 0 {
		errs = append(errs, "daf.jointimeout must be positive")
	}
	return errs
}

func validateAudioSettings(s *AudioSettings) []string {
	var errs []string
	switch s.Backend {
	case "malgo", "memory":
	default:
		errs = append(errs, fmt.Sprintf("audio.backend must be malgo or memory, got %q", s.Backend))
	}
	if s.PeriodMs <= 0 {
		errs = append(errs, "audio.periodms must be positive")
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		errs = append(errs, "audio.readtimeout and audio.writetimeout must be positive")
	}
	if s.BufferPeriods < 2 {
		errs = append(errs, "audio.bufferperiods must be at least 2")
	}
	return errs
}

func validateHeadsetSettings(s *HeadsetSettings, daf *DAFSettings) []string {
	var errs []string
	if s.Enabled && s.PollInterval <= 0 {
		errs = append(errs, "headset.pollinterval must be positive when headset detection is enabled")
	}
	if !s.Enabled && daf.RequireHeadphones {
		errs = append(errs, "daf.requireheadphones needs headset.enabled")
	}
	return errs
}

func validateWebServerSettings(s *WebServerSettings) []string {
	if !s.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return []string{fmt.Sprintf("webserver.listen %q is not host:port: %v", s.Listen, err)}
	}
	return nil
}

func validateMQTTSettings(s *MQTTSettings) []string {
	if !s.Enabled {
		return nil
	}
	var errs []string
	u, err := url.Parse(s.Broker)
	if err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker %q is not a valid broker URL", s.Broker))
	}
	if strings.TrimSpace(s.TopicPrefix) == "" {
		errs = append(errs, "mqtt.topicprefix must not be empty")
	}
	return errs
}

func validateNotifySettings(s *NotifySettings) []string {
	if !s.Enabled {
		return nil
	}
	if len(s.URLs) == 0 {
		return []string{"notify.urls needs at least one service URL when notify is enabled"}
	}
	return nil
}

func validateTelemetrySettings(s *TelemetrySettings) []string {
	if s.Sentry && s.SentryDSN == "" {
		return []string{"telemetry.sentrydsn is required when telemetry.sentry is enabled"}
	}
	return nil
}

func validateLoggingSettings(s *logger.LoggingConfig) []string {
	var errs []string
	for _, level := range []string{s.DefaultLevel} {
		if level != "" && !logger.IsValidLevel(level) {
			errs = append(errs, fmt.Sprintf("logging.default_level %q is not a valid level", level))
		}
	}
	for module, level := range s.ModuleLevels {
		if !logger.IsValidLevel(level) {
			errs = append(errs, fmt.Sprintf("logging.module_levels.%s %q is not a valid level", module, level))
		}
	}
	return errs
}
