package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/bundle-exporter/internal/service/exporter"
)

var (
	// listPlatform is the platform whose directory is listed.
	listPlatform string

	fileListCmd = &cobra.Command{
		Use:   "file-list",
		Short: "Write the full listing of a platform's bundle files.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, err := exporter.WriteFileList(ctx, configPath, listPlatform)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	fileListCmd.Flags().StringVarP(&listPlatform, "platform", "p", "", "platform to list")
	_ = fileListCmd.MarkFlagRequired("platform")

	rootCmd.AddCommand(fileListCmd)
}
