package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/relay/internal/config"
)

func newConfigCommand(root *rootCommand) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Long: `Print the configuration after defaults, the config file, RELAY_*
environment variables and command line flags have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := root.cfg.Marshal(format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", config.FormatYAML, "output format (yaml or toml)")
	return cmd
}
