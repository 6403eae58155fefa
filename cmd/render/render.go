package render

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadme/daf/internal/conf"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/service"
)

// Command creates the render command, which applies the delay to a WAV file
// offline instead of to live audio.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "render [input.wav] [output.wav]",
		Short: "Write a delayed copy of a WAV file",
		Long:  "Run the delay line over a 16-bit mono WAV file at the configured sample rate. The output is longer than the input by the delay.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logger.LogLevelInfo
			if settings.Debug {
				level = logger.LogLevelDebug
			}
			log := logger.NewSlogLogger(os.Stderr, level, time.Local)

			return service.Render(cmd.Context(), settings, args[0], args[1], log)
		},
	}
}
