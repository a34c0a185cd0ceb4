package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/bundle-exporter/internal/service/exporter"
)

var (
	// onePlatform is the platform the single asset is built for.
	onePlatform string

	exportOneCmd = &cobra.Command{
		Use:   "export-one <asset> [output]",
		Short: "Build one asset into a bundle without touching the manifest.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			var output string
			if len(args) > 1 {
				output = args[1]
			}

			_, err := exporter.ExportOne(ctx, configPath, args[0], output, onePlatform)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	exportOneCmd.Flags().StringVarP(&onePlatform, "platform", "p", "", "platform to build for")
	_ = exportOneCmd.MarkFlagRequired("platform")

	rootCmd.AddCommand(exportOneCmd)
}
