package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/bundle-exporter/internal/service/publisher"
)

var publishCmd = &cobra.Command{
	Use:   "publish <platform> <s3+https://host/bucket/prefix>",
	Short: "Upload a platform's bundles, manifest and listing to S3.",
	Long: `Uploads the platform output directory to an S3-compatible bucket.

Credentials are read from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
Object keys mirror the download URLs below the given prefix.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		return publisher.Run(ctx, &publisher.Options{
			ConfigPath: configPath,
			Platform:   args[0],
			Target:     args[1],
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(publishCmd)
}
