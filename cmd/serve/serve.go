package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leadme/daf/internal/conf"
	"github.com/leadme/daf/internal/service"
)

// Command creates the serve command, which runs the daemon with its HTTP
// control surface until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the DAF service",
		Long:  "Run the DAF service with headset detection and the HTTP control API. Sessions are started and stopped through the API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Main(cmd.Context(), settings, service.Options{AutoStart: autoStart})
		},
	}

	if err := setupFlags(cmd, settings, &autoStart); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, autoStart *bool) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the HTTP API")
	cmd.Flags().StringVar(&settings.Audio.Backend, "backend", viper.GetString("audio.backend"), "Audio backend (\"malgo\" or \"memory\")")
	cmd.Flags().StringVar(&settings.Audio.CaptureDevice, "capture", viper.GetString("audio.capturedevice"), "Capture device (\"sysdefault\", \"default\" or a device name)")
	cmd.Flags().StringVar(&settings.Audio.PlaybackDevice, "playback", viper.GetString("audio.playbackdevice"), "Playback device (\"sysdefault\", \"default\" or a device name)")
	cmd.Flags().BoolVar(&settings.DAF.RequireHeadphones, "require-headphones", viper.GetBool("daf.requireheadphones"), "Refuse to start a session without headphones")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Forward events to the configured MQTT broker")
	cmd.Flags().BoolVar(autoStart, "autostart", false, "Start a session as soon as the service is up")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
