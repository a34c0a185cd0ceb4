package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/logger"
	"github.com/oshokin/bundle-exporter/internal/repository/manifest"
	"github.com/oshokin/bundle-exporter/internal/service/builder"
	"github.com/oshokin/bundle-exporter/internal/service/classifier"
)

const outputDirPermissions = 0o755

// Failure reasons used as metric labels.
const (
	reasonMissingSource = "missing_source"
	reasonBuildFailure  = "build_failure"
	reasonUnresolved    = "unresolved"
	reasonUnwritable    = "unwritable"
)

// exportCategory exports one category. The returned error is set only for
// failures that abort the run; everything else lands in Result.Err.
func (e *Exporter) exportCategory(
	ctx context.Context,
	platform bundle.Platform,
	category *bundle.Category,
	m *manifest.Manifest,
) (bundle.Result, error) {
	ctx = logger.WithKV(ctx, "category", category.Name)

	result := bundle.Result{
		Platform: platform.Name,
		Category: category.Name,
		Mode:     category.Mode,
	}

	if err := category.Mode.Validate(); err != nil {
		result.Err = err
		e.failed(ctx, &result, reasonBuildFailure)

		return result, nil
	}

	dir := e.cfg.CategoryDir(platform, category)
	if err := os.MkdirAll(dir, outputDirPermissions); err != nil {
		result.Err = fmt.Errorf("%w: %s: %w", bundle.ErrDirectoryUnwritable, dir, err)
		e.failed(ctx, &result, reasonUnwritable)

		return result, result.Err
	}

	batch, err := e.deps.Stager.Begin(platform)
	if err != nil {
		result.Err = err
		e.failed(ctx, &result, reasonUnwritable)

		return result, err
	}

	defer func() {
		if releaseErr := batch.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release temporary copies", "error", releaseErr)
		}
	}()

	if category.Shared != nil {
		if err = e.buildShared(ctx, batch, platform, category, &result); err != nil {
			return result, err
		}
	}

	assets, err := classifier.Classify(e.cfg.SourceDir(category), category.Rules())
	if err != nil {
		logger.WarnKV(ctx, "Cannot read category source", "error", err)
	}

	if len(assets) == 0 {
		if result.Err == nil {
			result.Err = fmt.Errorf("%w: %s", bundle.ErrMissingSource, e.cfg.SourceDir(category))
			e.failed(ctx, &result, reasonMissingSource)
		}

		return result, nil
	}

	logger.InfoKV(ctx, "Exporting category", "mode", string(category.Mode), "assets", len(assets))

	switch category.Mode {
	case bundle.ModeMerged:
		err = e.exportMerged(ctx, batch, platform, category, assets, m, &result)
	default:
		err = e.exportPerAsset(ctx, batch, platform, category, assets, &result)
	}

	return result, err
}

func (e *Exporter) exportPerAsset(
	ctx context.Context,
	batch *builder.Batch,
	platform bundle.Platform,
	category *bundle.Category,
	assets []bundle.Asset,
	result *bundle.Result,
) error {
	var failures []error

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return err
		}

		resolved, ok := e.resolve(ctx, batch, asset, result)
		if !ok {
			continue
		}

		output := e.cfg.BundlePath(platform, category, asset.LogicalName())

		if err := e.deps.Builder.BuildSingle(ctx, resolved, output, platform); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			logger.WarnKV(ctx, "Bundle build failed", "asset", asset.Name, "error", err)
			failures = append(failures, buildFailure(asset.Name, err))

			continue
		}

		result.Artifacts = append(result.Artifacts, output)
		e.deps.Metrics.BundleBuilt(platform.Name, category.Name, category.Mode)
	}

	if len(failures) > 0 {
		result.Err = errors.Join(append([]error{result.Err}, failures...)...)
		e.failed(ctx, result, reasonBuildFailure)
	}

	return nil
}

func (e *Exporter) exportMerged(
	ctx context.Context,
	batch *builder.Batch,
	platform bundle.Platform,
	category *bundle.Category,
	assets []bundle.Asset,
	m *manifest.Manifest,
	result *bundle.Result,
) error {
	resolved := make([]bundle.Asset, 0, len(assets))
	names := make([]string, 0, len(assets))
	claimed := make(map[string]string, len(assets))

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := asset.LogicalName()
		if first, taken := claimed[name]; taken {
			e.skipDuplicate(ctx, asset, first, result)

			continue
		}

		r, ok := e.resolve(ctx, batch, asset, result)
		if !ok {
			continue
		}

		claimed[name] = asset.Path
		resolved = append(resolved, r)
		names = append(names, name)
	}

	if len(resolved) == 0 {
		result.Err = fmt.Errorf("%w: no asset of %s could be loaded", bundle.ErrUnresolvedAsset, category.Name)
		e.failed(ctx, result, reasonUnresolved)

		return nil
	}

	output := e.cfg.BundlePath(platform, category, category.ResourceName)

	if err := e.deps.Builder.BuildMerged(ctx, resolved, names, output, platform); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		result.Err = buildFailure(category.ResourceName, err)
		e.failed(ctx, result, reasonBuildFailure)

		return nil
	}

	crc, err := e.deps.Hasher.File(output)
	if err != nil {
		result.Err = buildFailure(category.ResourceName, err)
		e.failed(ctx, result, reasonBuildFailure)

		return nil
	}

	entry := bundle.Entry{
		Name:    category.ResourceName,
		Version: e.cfg.Version,
		Path:    e.cfg.DownloadURL(platform, category, category.ResourceName),
		CRC:     crc,
	}

	created := m.Upsert(entry)

	result.Artifacts = append(result.Artifacts, output)
	result.Entry = &entry
	e.deps.Metrics.BundleBuilt(platform.Name, category.Name, category.Mode)

	logger.InfoKV(ctx, "Merged bundle written",
		"name", entry.Name,
		"assets", len(resolved),
		"crc", entry.CRC,
		"new_entry", created)

	return nil
}

// buildShared builds the category's dependency bundle from explicit asset paths.
// A failure is recorded on result and the category continues.
func (e *Exporter) buildShared(
	ctx context.Context,
	batch *builder.Batch,
	platform bundle.Platform,
	category *bundle.Category,
	result *bundle.Result,
) error {
	shared := category.Shared
	assets := make([]bundle.Asset, 0, len(shared.Assets))
	names := make([]string, 0, len(shared.Assets))
	claimed := make(map[string]string, len(shared.Assets))

	for _, rel := range shared.Assets {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(e.cfg.SourceRoot, rel)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		asset := bundle.Asset{Name: filepath.Base(rel), Path: path}

		name := asset.LogicalName()
		if first, taken := claimed[name]; taken {
			e.skipDuplicate(ctx, asset, first, result)

			continue
		}

		r, ok := e.resolve(ctx, batch, asset, result)
		if !ok {
			continue
		}

		claimed[name] = asset.Path
		assets = append(assets, r)
		names = append(names, name)
	}

	if len(assets) == 0 {
		logger.WarnKV(ctx, "Shared bundle has no loadable assets", "name", shared.Name)

		return nil
	}

	output := e.cfg.BundlePath(platform, category, shared.Name)

	if err := e.deps.Builder.BuildMerged(ctx, assets, names, output, platform); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		result.Err = buildFailure(shared.Name, err)
		e.failed(ctx, result, reasonBuildFailure)

		return nil
	}

	result.Artifacts = append(result.Artifacts, output)
	e.deps.Metrics.BundleBuilt(platform.Name, category.Name, bundle.ModeMerged)

	logger.InfoKV(ctx, "Shared bundle written", "name", shared.Name, "assets", len(assets))

	return nil
}

// resolve stages an asset for building; unresolved assets are skipped.
func (e *Exporter) resolve(
	ctx context.Context,
	batch *builder.Batch,
	asset bundle.Asset,
	result *bundle.Result,
) (bundle.Asset, bool) {
	resolved, err := e.deps.Stager.Resolve(batch, asset)
	if err != nil {
		logger.WarnKV(ctx, "Skipping asset", "asset", asset.Name, "error", err)

		result.Skipped = append(result.Skipped, asset.Name)
		e.deps.Metrics.AssetSkipped(result.Platform, result.Category)

		return bundle.Asset{}, false
	}

	return resolved, true
}

// skipDuplicate drops an asset whose member name is already used in the bundle.
// The same file listed twice is dropped silently.
func (e *Exporter) skipDuplicate(ctx context.Context, asset bundle.Asset, first string, result *bundle.Result) {
	if first == asset.Path {
		return
	}

	logger.WarnKV(ctx, "Skipping asset with a duplicate member name",
		"asset", asset.Name,
		"name", asset.LogicalName(),
		"kept", first)

	result.Skipped = append(result.Skipped, asset.Name)
	e.deps.Metrics.AssetSkipped(result.Platform, result.Category)
}

func (e *Exporter) failed(ctx context.Context, result *bundle.Result, reason string) {
	e.deps.Metrics.CategoryFailed(result.Platform, result.Category, reason)

	if reason == reasonMissingSource {
		logger.WarnKV(ctx, "Category has no source assets", "error", result.Err)

		return
	}

	logger.ErrorKV(ctx, "Category failed", "reason", reason, "error", result.Err)
}

func buildFailure(name string, err error) error {
	if errors.Is(err, bundle.ErrBuildFailure) {
		return fmt.Errorf("%s: %w", name, err)
	}

	return fmt.Errorf("%w: %s: %w", bundle.ErrBuildFailure, name, err)
}
