// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("daf.samplerate", SampleRate)
	viper.SetDefault("daf.delayms", DelayMs)
	viper.SetDefault("daf.jointimeout", "2s")
	viper.SetDefault("daf.requireheadphones", true)
	viper.SetDefault("daf.stoponunplug", true)

	viper.SetDefault("audio.backend", "malgo")
	viper.SetDefault("audio.capturedevice", "sysdefault")
	viper.SetDefault("audio.playbackdevice", "sysdefault")
	viper.SetDefault("audio.periodms", 20)
	viper.SetDefault("audio.readtimeout", "100ms")
	viper.SetDefault("audio.writetimeout", "100ms")
	viper.SetDefault("audio.bufferperiods", 8)

	viper.SetDefault("headset.enabled", true)
	viper.SetDefault("headset.pollinterval", "1s")
	viper.SetDefault("headset.cachettl", "5s")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "127.0.0.1:8090")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "dafd")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topicprefix", "daf")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})
	viper.SetDefault("notify.events", []string{"diagnostic"})
	viper.SetDefault("notify.timeout", "10s")

	viper.SetDefault("telemetry.metrics", true)
	viper.SetDefault("telemetry.sentry", false)
	viper.SetDefault("telemetry.sentrydsn", "")
	viper.SetDefault("telemetry.environment", "production")

	viper.SetDefault("eventbus.buffersize", 1024)
	viper.SetDefault("eventbus.workers", 2)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/daf.log")
	viper.SetDefault("logging.file_output.level", "info")
}
