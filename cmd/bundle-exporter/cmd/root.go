package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/logger"
	"github.com/oshokin/bundle-exporter/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the default info level.
	logLevel string

	// rootCmd represents the base command; every action is a subcommand.
	rootCmd = &cobra.Command{
		Use:   "bundle-exporter",
		Short: "Build per-platform resource bundles and their download manifests.",
		Long: `Scans configured source directories, classifies assets into categories by
filename prefix and builds bundles for every configured platform.

Merged categories produce one bundle each and a manifest entry with its
download URL and checksum. Per-asset categories produce one bundle per
asset and are tracked through the file listing instead.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the bundle-exporter CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
}
