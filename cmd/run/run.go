package run

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leadme/daf/internal/conf"
	"github.com/leadme/daf/internal/service"
)

// Command creates the run command: a single foreground session without the
// HTTP API that lasts until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one DAF session in the foreground",
		Long:  "Start delayed playback immediately and keep it running until Ctrl+C. The HTTP API is not started.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Main(cmd.Context(), settings, service.Options{
				AutoStart:   true,
				DisableHTTP: true,
			})
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Audio.CaptureDevice, "capture", viper.GetString("audio.capturedevice"), "Capture device (\"sysdefault\", \"default\" or a device name)")
	cmd.Flags().StringVar(&settings.Audio.PlaybackDevice, "playback", viper.GetString("audio.playbackdevice"), "Playback device (\"sysdefault\", \"default\" or a device name)")
	cmd.Flags().BoolVar(&settings.DAF.RequireHeadphones, "require-headphones", viper.GetBool("daf.requireheadphones"), "Refuse to start without headphones")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
