package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/bundle-exporter/internal/service/exporter"
)

var (
	// platforms limits the run to the named platforms.
	platforms []string
	// categories limits the run to the named categories.
	categories []string
	// prune removes stale manifest entries on unfiltered runs.
	prune bool
	// fileList writes the full file listing after each platform.
	fileList bool

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export selected platforms and categories.",
		Long: `Exports the configured categories for the configured platforms.

Repeat --platform and --category to narrow the run; categories are always
processed in configuration order. A failing category does not stop the
run, but the command exits with an error when any category failed.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return exporter.Run(ctx, &exporter.Options{
				ConfigPath: configPath,
				Request: exporter.Request{
					Platforms:  platforms,
					Categories: categories,
					Prune:      prune,
					FileList:   fileList,
				},
			})
		},
	}

	exportAllCmd = &cobra.Command{
		Use:   "export-all",
		Short: "Export every category for every platform and write file listings.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return exporter.Run(ctx, &exporter.Options{
				ConfigPath: configPath,
				Request:    exporter.Request{FileList: true},
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	exportCmd.Flags().StringArrayVarP(&platforms, "platform", "p", nil, "platform to export (repeatable)")
	exportCmd.Flags().StringArrayVarP(&categories, "category", "k", nil, "category to export (repeatable)")
	exportCmd.Flags().BoolVar(&prune, "prune", false, "remove manifest entries no configured category produces")
	exportCmd.Flags().BoolVar(&fileList, "file-list", false, "write the full file listing of each platform")

	rootCmd.AddCommand(exportCmd, exportAllCmd)
}
