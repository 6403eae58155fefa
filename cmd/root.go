package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leadme/daf/cmd/config"
	"github.com/leadme/daf/cmd/devices"
	"github.com/leadme/daf/cmd/render"
	"github.com/leadme/daf/cmd/run"
	"github.com/leadme/daf/cmd/serve"
	"github.com/leadme/daf/internal/buildinfo"
	"github.com/leadme/daf/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dafd",
		Short:        "Delayed auditory feedback service",
		Long:         "dafd captures microphone audio and plays it back to headphones after a fixed delay.",
		Version:      info.String(),
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	devicesCmd := devices.Command()
	configCmd := config.Command(settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		run.Command(settings),
		render.Command(settings),
		devicesCmd,
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// device listing and config printing must work with a broken config
		if cmd.Name() == devicesCmd.Name() || cmd.Name() == configCmd.Name() {
			return nil
		}
		// flags may have overridden validated values
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	// read by main before cobra runs, declared here for help output and parsing
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default: search the standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().IntVar(&settings.DAF.DelayMs, "delay", viper.GetInt("daf.delayms"), "Feedback delay in milliseconds")
	rootCmd.PersistentFlags().IntVar(&settings.DAF.SampleRate, "samplerate", viper.GetInt("daf.samplerate"), "Capture and playback sample rate in Hz")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
