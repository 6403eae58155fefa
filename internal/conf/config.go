// config.go: settings struct and functions to load and save the DAF configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/privacy"
)

// DAFSettings contains the delay line and lifecycle parameters
type DAFSettings struct {
	SampleRate        int           `yaml:"samplerate" mapstructure:"samplerate"`               // capture and playback rate in Hz
	DelayMs           int           `yaml:"delayms" mapstructure:"delayms"`                     // feedback delay in milliseconds
	JoinTimeout       time.Duration `yaml:"jointimeout" mapstructure:"jointimeout"`             // bounded wait for the worker on stop
	RequireHeadphones bool          `yaml:"requireheadphones" mapstructure:"requireheadphones"` // refuse to start without headphones
	StopOnUnplug      bool          `yaml:"stoponunplug" mapstructure:"stoponunplug"`           // stop a running session when headphones go away
}

// AudioSettings selects the device backend and its timing
type AudioSettings struct {
	Backend        string        `yaml:"backend" mapstructure:"backend"`               // "malgo" for sound hardware
	CaptureDevice  string        `yaml:"capturedevice" mapstructure:"capturedevice"`   // device name, "default" or "sysdefault"
	PlaybackDevice string        `yaml:"playbackdevice" mapstructure:"playbackdevice"` // device name, "default" or "sysdefault"
	PeriodMs       int           `yaml:"periodms" mapstructure:"periodms"`             // device period, sets the worker frame size
	ReadTimeout    time.Duration `yaml:"readtimeout" mapstructure:"readtimeout"`       // upper bound for one capture read
	WriteTimeout   time.Duration `yaml:"writetimeout" mapstructure:"writetimeout"`     // upper bound for one playback write
	BufferPeriods  int           `yaml:"bufferperiods" mapstructure:"bufferperiods"`   // ring buffer size in device periods
}

// HeadsetSettings controls headphone connectivity detection
type HeadsetSettings struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	PollInterval time.Duration `yaml:"pollinterval" mapstructure:"pollinterval"`
	CacheTTL     time.Duration `yaml:"cachettl" mapstructure:"cachettl"` // device enumeration cache lifetime
}

// WebServerSettings contains the HTTP control surface settings
type WebServerSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
	Debug   bool   `yaml:"debug" mapstructure:"debug"`
}

// MQTTSettings contains settings for forwarding events to an MQTT broker
type MQTTSettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker      string `yaml:"broker" mapstructure:"broker"`
	ClientID    string `yaml:"clientid" mapstructure:"clientid"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	TopicPrefix string `yaml:"topicprefix" mapstructure:"topicprefix"`
	Retain      bool   `yaml:"retain" mapstructure:"retain"`
}

// TelemetrySettings contains Prometheus and Sentry settings
type TelemetrySettings struct {
	Metrics     bool   `yaml:"metrics" mapstructure:"metrics"`         // expose /metrics on the web server
	Sentry      bool   `yaml:"sentry" mapstructure:"sentry"`           // report errors to Sentry
	SentryDSN   string `yaml:"sentrydsn" mapstructure:"sentrydsn"`     // Sentry project DSN
	Environment string `yaml:"environment" mapstructure:"environment"` // Sentry environment tag
}

// NotifySettings configures push notifications sent through shoutrrr service URLs
type NotifySettings struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string      `yaml:"urls" mapstructure:"urls"`       // shoutrrr service URLs, e.g. ntfy://ntfy.sh/topic
	Events  []string      `yaml:"events" mapstructure:"events"`   // event types to push, empty means diagnostic only
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"` // per-send timeout
}

// EventBusSettings sizes the internal event bus
type EventBusSettings struct {
	BufferSize int `yaml:"buffersize" mapstructure:"buffersize"`
	Workers    int `yaml:"workers" mapstructure:"workers"`
}

// Settings contains all configuration options for the DAF service
type Settings struct {
	Debug     bool                 `yaml:"debug" mapstructure:"debug"`
	Version   string               `yaml:"-" mapstructure:"-"` // set at build time
	DAF       DAFSettings          `yaml:"daf" mapstructure:"daf"`
	Audio     AudioSettings        `yaml:"audio" mapstructure:"audio"`
	Headset   HeadsetSettings      `yaml:"headset" mapstructure:"headset"`
	WebServer WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	MQTT      MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Notify    NotifySettings       `yaml:"notify" mapstructure:"notify"`
	Telemetry TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	EventBus  EventBusSettings     `yaml:"eventbus" mapstructure:"eventbus"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings.
// configFile may be empty, in which case the OS default locations are searched
// and a default config is written to the first one when none exists.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, wires environment overrides and reads the config file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
			return createDefaultConfig(configFile)
		}
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		return nil
	}

	viper.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(filepath.Join(configPaths[0], ConfigFileName))
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the current defaults to configPath and reads them back
func createDefaultConfig(configPath string) error {
	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error building default settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return err
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the most recently loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temporary file and rename.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// MarshalYAMLString renders the effective settings with secrets masked.
func (s *Settings) MarshalYAMLString() (string, error) {
	redacted := *s
	if redacted.MQTT.Password != "" {
		redacted.MQTT.Password = "********"
	}
	if len(redacted.Notify.URLs) > 0 {
		urls := make([]string, len(redacted.Notify.URLs))
		for i, u := range redacted.Notify.URLs {
			urls[i] = privacy.RedactCredentials(u)
		}
		redacted.Notify.URLs = urls
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
