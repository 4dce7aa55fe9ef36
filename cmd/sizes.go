package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tomster/embuild/internal/sizes"
)

func newAssetSizesCmd() *cobra.Command {
	var (
		outputPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "asset-sizes",
		Short: "Shows the sizes of your asset files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := sizes.Collect(outputPath)
			if err != nil {
				return err
			}
			if asJSON {
				return report.WriteJSON(cmd.OutOrStdout())
			}
			return report.WriteTable(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output-path", "o", "dist/", "output directory of the build")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the sizes as JSON")

	return cmd
}
