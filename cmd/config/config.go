package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/conf"
)

// Command creates the command that prints or writes the effective configuration.
func Command(settings *conf.Settings) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, config file, environment and flags are applied. With --write it is saved as a config file instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if writePath != "" {
				if err := conf.SaveYAMLConfig(writePath, settings); err != nil {
					return err
				}
				cmd.Printf("configuration written to %s\n", writePath)
				return nil
			}

			data, err := settings.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&writePath, "write", "", "Write the configuration to this path")
	return cmd
}
