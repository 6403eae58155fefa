package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leadme/daf/internal/conf"
)

// Command creates the config command, which prints the effective settings
// after defaults, the config file, environment and flags are merged.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := settings.MarshalYAMLString()
			if err != nil {
				return fmt.Errorf("error rendering configuration: %w", err)
			}

			if used := viper.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)

			if err := conf.ValidateSettings(settings); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "configuration is invalid: %v\n", err)
			}
			return nil
		},
	}

	return cmd
}
