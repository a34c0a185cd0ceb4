package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/logger"
)

// ExportOne builds a single asset into outputPath for the named platform.
// An empty outputPath places the bundle in the platform directory, named
// after the asset. The manifest is not touched.
func (e *Exporter) ExportOne(ctx context.Context, assetPath, outputPath, platformName string) (string, error) {
	platform, err := e.cfg.Platform(platformName)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(assetPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", bundle.ErrUnresolvedAsset, assetPath, err)
	}

	asset := bundle.Asset{Name: filepath.Base(abs), Path: abs}

	if outputPath == "" {
		outputPath = filepath.Join(e.cfg.PlatformDir(platform), asset.LogicalName()+e.cfg.BundleExtension)
	}

	if err = os.MkdirAll(filepath.Dir(outputPath), outputDirPermissions); err != nil {
		return "", fmt.Errorf("%w: %s: %w", bundle.ErrDirectoryUnwritable, filepath.Dir(outputPath), err)
	}

	batch, err := e.deps.Stager.Begin(platform)
	if err != nil {
		return "", err
	}

	defer func() {
		if releaseErr := batch.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release temporary copies", "error", releaseErr)
		}
	}()

	resolved, err := e.deps.Stager.Resolve(batch, asset)
	if err != nil {
		return "", err
	}

	if err = e.deps.Builder.BuildSingle(ctx, resolved, outputPath, platform); err != nil {
		return "", buildFailure(asset.Name, err)
	}

	logger.InfoKV(ctx, "Asset exported", "asset", asset.Name, "platform", platform.Name, "output", outputPath)

	return outputPath, nil
}
