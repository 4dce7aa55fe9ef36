package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomster/embuild/internal/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Prints the JSON schema of the configuration file.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				bs, err := config.ReflectSchema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bs))
				return err
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validates the configuration files.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := g.config()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "configuration of %s is valid\n", cfg.Name)
				return err
			},
		},
	)

	return cmd
}
