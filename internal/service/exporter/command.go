package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/logger"
	"github.com/oshokin/bundle-exporter/internal/metrics"
	"github.com/oshokin/bundle-exporter/internal/repository/manifest"
	"github.com/oshokin/bundle-exporter/internal/service/builder"
	"github.com/oshokin/bundle-exporter/internal/service/common"
	"github.com/oshokin/bundle-exporter/internal/service/hasher"
)

// Options contains inputs for the exporter entry points.
type Options struct {
	// ConfigPath is the configuration file (defaults to bundle-exporter.yaml).
	ConfigPath string
	// Request selects platforms and categories.
	Request Request
}

// ErrCategoriesFailed is returned by Run when the run completed but some categories failed.
var ErrCategoriesFailed = errors.New("some categories failed")

// Setup loads the configuration and wires an Exporter with its dependencies.
func Setup(configPath string) (*Exporter, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	b, err := builder.New(cfg.Builder)
	if err != nil {
		return nil, nil, err
	}

	h, err := hasher.New(cfg.HashAlgorithm)
	if err != nil {
		return nil, nil, err
	}

	exp := New(cfg, Dependencies{
		Builder: b,
		Hasher:  h,
		Store:   manifest.NewFileStore(cfg.OutputRoot, cfg.ManifestFilename),
		Stager:  builder.NewStager(cfg.TempRoot, cfg.CompositeExtensions),
		Metrics: metrics.New(),
	})

	return exp, cfg, nil
}

// Run loads the configuration, holds the run marker of the output root
// and exports what opts.Request selects.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bundle-exporter")

	exp, cfg, err := Setup(opts.ConfigPath)
	if err != nil {
		return err
	}

	marker, err := common.AcquireMarker(ctx, cfg.OutputRoot)
	if err != nil {
		return err
	}

	defer func() {
		if releaseErr := marker.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to remove run marker", "error", releaseErr)
		}
	}()

	report, runErr := exp.Run(ctx, opts.Request)

	if err = exp.deps.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.WarnKV(ctx, "Failed to write metrics", "error", err)
	}

	if report != nil {
		logSummary(ctx, report)
	}

	if runErr != nil {
		return fmt.Errorf("export aborted: %w", runErr)
	}

	if report.Failed() {
		return ErrCategoriesFailed
	}

	logger.Info(ctx, "Export completed successfully")

	return nil
}

// ExportOne loads the configuration and builds a single asset.
func ExportOne(ctx context.Context, configPath, assetPath, outputPath, platform string) (string, error) {
	ctx = logger.WithName(ctx, "bundle-exporter")

	exp, _, err := Setup(configPath)
	if err != nil {
		return "", err
	}

	return exp.ExportOne(ctx, assetPath, outputPath, platform)
}

// WriteFileList loads the configuration and writes the listing of one platform.
func WriteFileList(ctx context.Context, configPath, platformName string) (int, error) {
	ctx = logger.WithName(ctx, "bundle-exporter")

	exp, cfg, err := Setup(configPath)
	if err != nil {
		return 0, err
	}

	platform, err := cfg.Platform(platformName)
	if err != nil {
		return 0, err
	}

	return exp.WriteFileList(ctx, platform)
}

func logSummary(ctx context.Context, report *Report) {
	for i := range report.Platforms {
		p := &report.Platforms[i]

		var built, failed, missing, skipped int

		for j := range p.Results {
			r := &p.Results[j]
			built += len(r.Artifacts)
			skipped += len(r.Skipped)

			switch {
			case r.Failed():
				failed++
			case errors.Is(r.Err, bundle.ErrMissingSource):
				missing++
			}
		}

		logger.InfoKV(ctx, "Platform summary",
			"platform", p.Platform,
			"state", p.State.String(),
			"bundles", built,
			"failed_categories", failed,
			"empty_categories", missing,
			"skipped_assets", skipped,
			"pruned", len(p.Pruned))
	}
}
