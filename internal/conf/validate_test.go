package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/logger"
)

func validSettings() *Settings {
	return &Settings{
		DAF: DAFSettings{
			SampleRate:        SampleRate,
			DelayMs:           DelayMs,
			JoinTimeout:       2 * time.Second,
			RequireHeadphones: true,
		},
		Audio: AudioSettings{
			Backend:       "malgo",
			PeriodMs:      20,
			ReadTimeout:   100 * time.Millisecond,
			WriteTimeout:  100 * time.Millisecond,
			BufferPeriods: 8,
		},
		Headset:   HeadsetSettings{Enabled: true, PollInterval: time.Second},
		WebServer: WebServerSettings{Enabled: true, Listen: "127.0.0.1:8090"},
		Logging:   logger.LoggingConfig{DefaultLevel: "info"},
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(s *Settings) {}},
		{name: "zero delay is allowed", mutate: func(s *Settings) { s.DAF.DelayMs = 0 }},
		{name: "negative delay", mutate: func(s *Settings) { s.DAF.DelayMs = -5 }, wantErr: "daf.delayms"},
		{name: "excessive delay", mutate: func(s *Settings) { s.DAF.DelayMs = 6000 }, wantErr: "at most 5000"},
		{name: "zero sample rate", mutate: func(s *Settings) { s.DAF.SampleRate = 0 }, wantErr: "daf.samplerate"},
		{name: "missing join timeout", mutate: func(s *Settings) { s.DAF.JoinTimeout = 0 }, wantErr: "daf.jointimeout"},
		{name: "unknown backend", mutate: func(s *Settings) { s.Audio.Backend = "oss" }, wantErr: "audio.backend"},
		{name: "tiny ring buffer", mutate: func(s *Settings) { s.Audio.BufferPeriods = 1 }, wantErr: "audio.bufferperiods"},
		{
			name:    "headphone policy without detection",
			mutate:  func(s *Settings) { s.Headset.Enabled = false },
			wantErr: "daf.requireheadphones",
		},
		{name: "bad listen address", mutate: func(s *Settings) { s.WebServer.Listen = "8090" }, wantErr: "webserver.listen"},
		{
			name:    "mqtt without broker host",
			mutate:  func(s *Settings) { s.MQTT = MQTTSettings{Enabled: true, Broker: "broker", TopicPrefix: "daf"} },
			wantErr: "mqtt.broker",
		},
		{name: "notify without urls", mutate: func(s *Settings) { s.Notify.Enabled = true }, wantErr: "notify.urls"},
		{name: "sentry without dsn", mutate: func(s *Settings) { s.Telemetry.Sentry = true }, wantErr: "sentrydsn"},
		{name: "bad log level", mutate: func(s *Settings) { s.Logging.DefaultLevel = "loud" }, wantErr: "logging.default_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationErrorCollectsAll(t *testing.T) {
	s := validSettings()
	s.DAF.SampleRate = 0
	s.Audio.PeriodMs = 0

	err := ValidateSettings(s)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}
