package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/repository/manifest"
	"github.com/oshokin/bundle-exporter/internal/service/builder"
	"github.com/oshokin/bundle-exporter/internal/service/hasher"
)

// fakeBuilder writes a small file per bundle and fails for selected bundle names.
type fakeBuilder struct {
	// fail holds bundle names (without extension) whose build fails.
	fail map[string]bool
	// onBuild runs before each build with the bundle name.
	onBuild func(name string)
	// built lists bundle names in build order.
	built []string
	// inputs records every input path with whether it existed at build time.
	inputs map[string]bool
}

func newFakeBuilder(failing ...string) *fakeBuilder {
	f := &fakeBuilder{fail: map[string]bool{}, inputs: map[string]bool{}}
	for _, name := range failing {
		f.fail[name] = true
	}

	return f
}

func (f *fakeBuilder) BuildSingle(_ context.Context, asset bundle.Asset, output string, p bundle.Platform) error {
	return f.build([]bundle.Asset{asset}, []string{asset.LogicalName()}, output, p)
}

func (f *fakeBuilder) BuildMerged(
	_ context.Context,
	assets []bundle.Asset,
	names []string,
	output string,
	p bundle.Platform,
) error {
	return f.build(assets, names, output, p)
}

func (f *fakeBuilder) build(assets []bundle.Asset, names []string, output string, p bundle.Platform) error {
	name := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))

	if f.onBuild != nil {
		f.onBuild(name)
	}

	for _, a := range assets {
		_, err := os.Stat(a.Path)
		f.inputs[a.Path] = err == nil
	}

	if f.fail[name] {
		return fmt.Errorf("%w: tool exited with status 1", bundle.ErrBuildFailure)
	}

	f.built = append(f.built, name)

	return os.WriteFile(output, []byte(p.Name+":"+strings.Join(names, ",")), 0o600)
}

// unreadableStager fails to resolve the named assets and delegates the rest.
type unreadableStager struct {
	*builder.Stager

	unreadable map[string]bool
}

func (s *unreadableStager) Resolve(b *builder.Batch, asset bundle.Asset) (bundle.Asset, error) {
	if s.unreadable[asset.Name] {
		return bundle.Asset{}, fmt.Errorf("%w: %s: permission denied", bundle.ErrUnresolvedAsset, asset.Name)
	}

	return s.Stager.Resolve(b, asset)
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		SourceRoot:          filepath.Join(root, "src"),
		OutputRoot:          filepath.Join(root, "res"),
		TempRoot:            filepath.Join(root, "tmp"),
		BaseURL:             "http://cdn.local/res/",
		Version:             7,
		CompositeExtensions: []string{".prefab"},
		Platforms:           []bundle.Platform{{Name: "win", Dir: "win32test"}},
		Categories: []bundle.Category{
			{Name: "Model", Prefixes: "Hero,Monster", SourceDir: "Models", Dir: "Model", Mode: bundle.ModePerAsset},
			{Name: "Table", Prefixes: "Table", SourceDir: "Tables", Dir: "Table", Mode: bundle.ModeMerged, ResourceName: "table"},
			{Name: "Tex", Prefixes: "Tex", SourceDir: "Textures", Dir: "Tex", Mode: bundle.ModeMerged, ResourceName: "tex"},
		},
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

func writeSources(t *testing.T, cfg *config.Config, dir string, names ...string) {
	t.Helper()

	full := filepath.Join(cfg.SourceRoot, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(full, name), []byte(name), 0o600))
	}
}

func writeAllSources(t *testing.T, cfg *config.Config) {
	t.Helper()

	writeSources(t, cfg, "Models", "Hero01.prefab", "Hero01.prefab.meta", "Monster02.prefab", "Tree.prefab")
	writeSources(t, cfg, "Tables", "TableItem.txt", "TableSkill.txt")
	writeSources(t, cfg, "Textures", "TexHero.png")
}

func newTestExporter(t *testing.T, cfg *config.Config, b *fakeBuilder) *Exporter {
	t.Helper()

	h, err := hasher.New("md5")
	require.NoError(t, err)

	return New(cfg, Dependencies{
		Builder: b,
		Hasher:  h,
		Store:   manifest.NewFileStore(cfg.OutputRoot, cfg.ManifestFilename),
	})
}

// withUnreadable makes the exporter fail to resolve the named assets.
func withUnreadable(exp *Exporter, cfg *config.Config, names ...string) *Exporter {
	stager := &unreadableStager{
		Stager:     builder.NewStager(cfg.TempRoot, cfg.CompositeExtensions),
		unreadable: map[string]bool{},
	}

	for _, name := range names {
		stager.unreadable[name] = true
	}

	exp.deps.Stager = stager

	return exp
}

func loadManifest(t *testing.T, cfg *config.Config) *manifest.Manifest {
	t.Helper()

	m, err := manifest.NewFileStore(cfg.OutputRoot, cfg.ManifestFilename).
		Load(context.Background(), cfg.Platforms[0])
	require.NoError(t, err)

	return m
}

// TestRunExportsAllCategories checks artifacts and manifest entries of a clean run.
func TestRunExportsAllCategories(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	b := newFakeBuilder()
	report, err := newTestExporter(t, cfg, b).Run(context.Background(), Request{})
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Len(t, report.Platforms, 1)

	pr := report.Platforms[0]
	require.Equal(t, bundle.StateDone, pr.State)
	require.Equal(t, []Transition{
		{State: bundle.StateIdle},
		{State: bundle.StateRunning, Category: "Model"},
		{State: bundle.StateRunning, Category: "Table"},
		{State: bundle.StateRunning, Category: "Tex"},
		{State: bundle.StateDone},
	}, pr.Transitions)

	require.Equal(t, []string{"Hero01", "Monster02", "table", "tex"}, b.built)

	model := pr.Results[0]
	require.Nil(t, model.Entry)
	require.Equal(t, []string{
		filepath.Join(cfg.OutputRoot, "win32test", "Model", "Hero01.res"),
		filepath.Join(cfg.OutputRoot, "win32test", "Model", "Monster02.res"),
	}, model.Artifacts)

	m := loadManifest(t, cfg)
	require.Equal(t, 2, m.Len())

	table, ok := m.Get("table")
	require.True(t, ok)
	require.Equal(t, 7, table.Version)
	require.Equal(t, "http://cdn.local/res/win32test/Table/table.res", table.Path)

	crc, err := newTestExporter(t, cfg, b).deps.Hasher.File(filepath.Join(cfg.OutputRoot, "win32test", "Table", "table.res"))
	require.NoError(t, err)
	require.Equal(t, crc, table.CRC)
	require.Equal(t, &table, pr.Results[1].Entry)
}

// TestRunPerAssetWritesNoEntries checks that per-asset categories never touch the manifest.
func TestRunPerAssetWritesNoEntries(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	report, err := newTestExporter(t, cfg, newFakeBuilder()).
		Run(context.Background(), Request{Categories: []string{"Model"}})
	require.NoError(t, err)
	require.Len(t, report.Platforms[0].Results, 1)
	require.Len(t, report.Platforms[0].Results[0].Artifacts, 2)
	require.Zero(t, loadManifest(t, cfg).Len())
}

// TestRunMergedIsIdempotent checks that re-running a merged category keeps one entry.
func TestRunMergedIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	exp := newTestExporter(t, cfg, newFakeBuilder())
	req := Request{Categories: []string{"Table"}}

	_, err := exp.Run(context.Background(), req)
	require.NoError(t, err)

	first := loadManifest(t, cfg).Entries()

	_, err = exp.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, loadManifest(t, cfg).Entries())
	require.Len(t, first, 1)
}

// TestRunContainsCategoryFailure checks that a failing category does not stop later ones.
func TestRunContainsCategoryFailure(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	report, err := newTestExporter(t, cfg, newFakeBuilder("table")).Run(context.Background(), Request{})
	require.NoError(t, err)
	require.True(t, report.Failed())

	pr := report.Platforms[0]
	require.Equal(t, bundle.StateDone, pr.State)
	require.Len(t, pr.Results, 3)
	require.False(t, pr.Results[0].Failed())
	require.True(t, pr.Results[1].Failed())
	require.ErrorIs(t, pr.Results[1].Err, bundle.ErrBuildFailure)
	require.Nil(t, pr.Results[1].Entry)
	require.NotNil(t, pr.Results[2].Entry)

	m := loadManifest(t, cfg)
	_, ok := m.Get("table")
	require.False(t, ok)
	_, ok = m.Get("tex")
	require.True(t, ok)
}

// TestRunPerAssetFailureKeepsOtherAssets checks that one failing asset leaves its siblings built.
func TestRunPerAssetFailureKeepsOtherAssets(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	report, err := newTestExporter(t, cfg, newFakeBuilder("Hero01")).
		Run(context.Background(), Request{Categories: []string{"Model"}})
	require.NoError(t, err)

	model := report.Platforms[0].Results[0]
	require.True(t, model.Failed())
	require.ErrorIs(t, model.Err, bundle.ErrBuildFailure)
	require.Equal(t, []string{filepath.Join(cfg.OutputRoot, "win32test", "Model", "Monster02.res")}, model.Artifacts)
}

// TestRunMissingSource checks that an absent category directory is reported but not a failure.
func TestRunMissingSource(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeSources(t, cfg, "Tables", "TableItem.txt")

	report, err := newTestExporter(t, cfg, newFakeBuilder()).Run(context.Background(), Request{})
	require.NoError(t, err)
	require.False(t, report.Failed())

	pr := report.Platforms[0]
	require.ErrorIs(t, pr.Results[0].Err, bundle.ErrMissingSource)
	require.ErrorIs(t, pr.Results[2].Err, bundle.ErrMissingSource)
	require.Empty(t, pr.Results[2].Artifacts)
	require.Equal(t, 1, loadManifest(t, cfg).Len())
}

// TestRunUnwritableDirectoryAborts checks that a blocked category directory aborts the run.
func TestRunUnwritableDirectoryAborts(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	platformDir := filepath.Join(cfg.OutputRoot, "win32test")
	require.NoError(t, os.MkdirAll(platformDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(platformDir, "Table"), []byte("blocked"), 0o600))

	report, err := newTestExporter(t, cfg, newFakeBuilder()).Run(context.Background(), Request{})
	require.ErrorIs(t, err, bundle.ErrDirectoryUnwritable)

	pr := report.Platforms[0]
	require.Equal(t, bundle.StateAborted, pr.State)
	require.Len(t, pr.Results, 2)
	require.True(t, report.Failed())
}

// TestRunCancellation checks that cancellation stops before the next category
// and keeps the manifest saved so far.
func TestRunCancellation(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newFakeBuilder()
	b.onBuild = func(name string) {
		if name == "table" {
			cancel()
		}
	}

	report, err := newTestExporter(t, cfg, b).Run(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)

	pr := report.Platforms[0]
	require.Equal(t, bundle.StateAborted, pr.State)
	require.Equal(t, []string{"Hero01", "Monster02", "table"}, b.built)

	m := loadManifest(t, cfg)
	_, ok := m.Get("table")
	require.True(t, ok)
	_, ok = m.Get("tex")
	require.False(t, ok)
}

// TestRunCancelledBeforeStart checks that nothing is built with a cancelled context.
func TestRunCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := newFakeBuilder()
	_, err := newTestExporter(t, cfg, b).Run(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, b.built)
}

// TestRunReleasesTemporaries checks that flattened copies exist during the build
// and are gone afterwards, even when the build fails.
func TestRunReleasesTemporaries(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	b := newFakeBuilder("Hero01", "Monster02")

	_, err := newTestExporter(t, cfg, b).Run(context.Background(), Request{Categories: []string{"Model"}})
	require.NoError(t, err)
	require.Len(t, b.inputs, 2)

	for path, existed := range b.inputs {
		require.True(t, existed, path)
		require.True(t, strings.HasPrefix(path, cfg.TempRoot), path)

		_, statErr := os.Stat(path)
		require.ErrorIs(t, statErr, os.ErrNotExist)
	}

	entries, err := os.ReadDir(filepath.Join(cfg.TempRoot, "win"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRunPrune checks that pruning runs only for unfiltered exports.
func TestRunPrune(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	store := manifest.NewFileStore(cfg.OutputRoot, cfg.ManifestFilename)
	m := manifest.New()
	m.Upsert(bundle.Entry{Name: "retired", Version: 1, Path: "http://cdn.local/res/win32test/Old/retired.res", CRC: "00"})
	require.NoError(t, store.Save(context.Background(), cfg.Platforms[0], m))

	exp := newTestExporter(t, cfg, newFakeBuilder())

	report, err := exp.Run(context.Background(), Request{Categories: []string{"Table"}, Prune: true})
	require.NoError(t, err)
	require.Empty(t, report.Platforms[0].Pruned)

	_, ok := loadManifest(t, cfg).Get("retired")
	require.True(t, ok)

	report, err = exp.Run(context.Background(), Request{Prune: true})
	require.NoError(t, err)
	require.Equal(t, []string{"retired"}, report.Platforms[0].Pruned)

	_, ok = loadManifest(t, cfg).Get("retired")
	require.False(t, ok)
	require.Equal(t, 2, loadManifest(t, cfg).Len())
}

// TestRunSharedBundle checks that the shared bundle is built before the category's own bundles.
func TestRunSharedBundle(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	cfg.Categories[0].Shared = &bundle.SharedBundle{
		Name:   "Share",
		Assets: []string{"Fonts/Main.ttf", "Fonts/Missing.ttf"},
	}

	writeAllSources(t, cfg)
	writeSources(t, cfg, "Fonts", "Main.ttf")

	b := newFakeBuilder()
	report, err := newTestExporter(t, cfg, b).Run(context.Background(), Request{Categories: []string{"Model"}})
	require.NoError(t, err)
	require.Equal(t, []string{"Share", "Hero01", "Monster02"}, b.built)

	model := report.Platforms[0].Results[0]
	require.Equal(t, []string{"Missing.ttf"}, model.Skipped)
	require.Equal(t, filepath.Join(cfg.OutputRoot, "win32test", "Model", "Share.res"), model.Artifacts[0])
	require.False(t, model.Failed())
}

// TestRunFileList checks that the listing covers every written bundle.
func TestRunFileList(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	report, err := newTestExporter(t, cfg, newFakeBuilder()).Run(context.Background(), Request{FileList: true})
	require.NoError(t, err)
	require.Equal(t, 4, report.Platforms[0].FileListCount)

	contents, err := os.ReadFile(filepath.Join(cfg.OutputRoot, "win32test", cfg.FileListFilename))
	require.NoError(t, err)
	require.Contains(t, string(contents), "table,http://cdn.local/res/win32test/Table/table.res,")
}

// TestRunSelection checks platform and category filters.
func TestRunSelection(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	exp := newTestExporter(t, cfg, newFakeBuilder())

	_, err := exp.Run(context.Background(), Request{Platforms: []string{"ps5"}})
	require.ErrorIs(t, err, config.ErrUnknownPlatform)

	_, err = exp.Run(context.Background(), Request{Categories: []string{"Sound"}})
	require.ErrorIs(t, err, config.ErrUnknownCategory)

	report, err := exp.Run(context.Background(), Request{Categories: []string{"Tex", "Model"}})
	require.NoError(t, err)

	results := report.Platforms[0].Results
	require.Len(t, results, 2)
	require.Equal(t, "Model", results[0].Category)
	require.Equal(t, "Tex", results[1].Category)
}

// TestExportOne checks single-asset export with default and explicit outputs.
func TestExportOne(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	b := newFakeBuilder()
	exp := newTestExporter(t, cfg, b)
	asset := filepath.Join(cfg.SourceRoot, "Models", "Hero01.prefab")

	out, err := exp.ExportOne(context.Background(), asset, "", "win")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.OutputRoot, "win32test", "Hero01.res"), out)
	require.FileExists(t, out)

	explicit := filepath.Join(t.TempDir(), "nested", "hero.res")
	out, err = exp.ExportOne(context.Background(), asset, explicit, "win")
	require.NoError(t, err)
	require.Equal(t, explicit, out)
	require.FileExists(t, explicit)

	_, err = exp.ExportOne(context.Background(), asset, "", "ps5")
	require.ErrorIs(t, err, config.ErrUnknownPlatform)

	_, err = exp.ExportOne(context.Background(), filepath.Join(cfg.SourceRoot, "nope.prefab"), "", "win")
	require.ErrorIs(t, err, bundle.ErrUnresolvedAsset)
}

// TestRunMergedSkipsUnresolvedAsset builds the merged bundle from the assets that could be loaded.
func TestRunMergedSkipsUnresolvedAsset(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	exp := withUnreadable(newTestExporter(t, cfg, newFakeBuilder()), cfg, "TableSkill.txt")

	report, err := exp.Run(context.Background(), Request{Categories: []string{"Table"}})
	require.NoError(t, err)
	require.False(t, report.Failed())

	table := report.Platforms[0].Results[0]
	require.NoError(t, table.Err)
	require.Equal(t, []string{"TableSkill.txt"}, table.Skipped)
	require.NotNil(t, table.Entry)

	contents, err := os.ReadFile(filepath.Join(cfg.OutputRoot, "win32test", "Table", "table.res"))
	require.NoError(t, err)
	require.Equal(t, "win:TableItem", string(contents))

	_, ok := loadManifest(t, cfg).Get("table")
	require.True(t, ok)
}

// TestRunMergedAllUnresolved fails the category without building or writing an entry,
// and the run moves on to the next category.
func TestRunMergedAllUnresolved(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeAllSources(t, cfg)

	b := newFakeBuilder()
	exp := withUnreadable(newTestExporter(t, cfg, b), cfg, "TableItem.txt", "TableSkill.txt")

	report, err := exp.Run(context.Background(), Request{Categories: []string{"Table", "Tex"}})
	require.NoError(t, err)
	require.True(t, report.Failed())

	pr := report.Platforms[0]
	require.Equal(t, bundle.StateDone, pr.State)

	table := pr.Results[0]
	require.True(t, table.Failed())
	require.ErrorIs(t, table.Err, bundle.ErrUnresolvedAsset)
	require.Nil(t, table.Entry)
	require.Empty(t, table.Artifacts)
	require.ElementsMatch(t, []string{"TableItem.txt", "TableSkill.txt"}, table.Skipped)
	require.Equal(t, []string{"tex"}, b.built)

	m := loadManifest(t, cfg)
	_, ok := m.Get("table")
	require.False(t, ok)
	_, ok = m.Get("tex")
	require.True(t, ok)
}

// TestRunMergedDuplicateMemberName keeps the first of two assets that share a logical name.
func TestRunMergedDuplicateMemberName(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	writeSources(t, cfg, "Tables", "TableItem.txt", "TableItem.bytes", "TableSkill.txt")

	report, err := newTestExporter(t, cfg, newFakeBuilder()).
		Run(context.Background(), Request{Categories: []string{"Table"}})
	require.NoError(t, err)

	table := report.Platforms[0].Results[0]
	require.False(t, table.Failed())
	require.Equal(t, []string{"TableItem.txt"}, table.Skipped)
	require.NotNil(t, table.Entry)

	contents, err := os.ReadFile(filepath.Join(cfg.OutputRoot, "win32test", "Table", "table.res"))
	require.NoError(t, err)
	require.Equal(t, "win:TableItem,TableSkill", string(contents))
}
