package exporter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/logger"
	"github.com/oshokin/bundle-exporter/internal/metrics"
	"github.com/oshokin/bundle-exporter/internal/repository/manifest"
	"github.com/oshokin/bundle-exporter/internal/service/builder"
	"github.com/oshokin/bundle-exporter/internal/service/filelist"
	"github.com/oshokin/bundle-exporter/internal/service/hasher"
)

// Dependencies are the collaborators of an Exporter.
type Dependencies struct {
	// Builder writes bundle files.
	Builder builder.Builder
	// Hasher digests merged bundles and listed files.
	Hasher hasher.Hasher
	// Store loads and saves platform manifests.
	Store manifest.Repository
	// Stager creates transient copies of composite assets.
	Stager Stager
	// Metrics is optional.
	Metrics *metrics.ExportMetrics
}

// Stager prepares assets for a build; *builder.Stager is the implementation.
type Stager interface {
	Begin(platform bundle.Platform) (*builder.Batch, error)
	Resolve(b *builder.Batch, asset bundle.Asset) (bundle.Asset, error)
}

// Request selects what a run exports.
type Request struct {
	// Platforms are platform names; empty means all configured platforms.
	Platforms []string
	// Categories are category names; empty means all configured categories.
	Categories []string
	// Prune removes manifest entries no configured merged category produces.
	// It is ignored when Categories is not empty.
	Prune bool
	// FileList writes the full file listing of each platform after its categories.
	FileList bool
}

// Transition is one recorded state change of a platform run.
type Transition struct {
	// State is the state entered.
	State bundle.RunState
	// Category is set when State is StateRunning.
	Category string
}

// PlatformReport describes the run of one platform.
type PlatformReport struct {
	// Platform is the platform name.
	Platform string
	// State is the final state.
	State bundle.RunState
	// Transitions lists every state entered, in order.
	Transitions []Transition
	// Results holds one result per visited category.
	Results []bundle.Result
	// Pruned lists manifest entries removed by pruning.
	Pruned []string
	// FileListCount is the number of lines in the written file listing.
	FileListCount int
	// Err is the error that aborted the platform.
	Err error
}

// Report is the outcome of Run.
type Report struct {
	Platforms []PlatformReport
}

// Failed reports whether any platform aborted or any category failed.
func (r *Report) Failed() bool {
	for i := range r.Platforms {
		p := &r.Platforms[i]
		if p.State == bundle.StateAborted {
			return true
		}

		for j := range p.Results {
			if p.Results[j].Failed() {
				return true
			}
		}
	}

	return false
}

// Exporter runs exports for a configuration.
type Exporter struct {
	cfg  *config.Config
	deps Dependencies
}

// New creates an Exporter. A nil Stager is replaced with one rooted at cfg.TempRoot.
func New(cfg *config.Config, deps Dependencies) *Exporter {
	if deps.Stager == nil {
		deps.Stager = builder.NewStager(cfg.TempRoot, cfg.CompositeExtensions)
	}

	return &Exporter{
		cfg:  cfg,
		deps: deps,
	}
}

// Run exports the requested platforms one after another. The returned
// error is set only when the run was aborted; category failures are
// reported through the Report.
func (e *Exporter) Run(ctx context.Context, req Request) (*Report, error) {
	platforms, err := e.selectPlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}

	categories, err := e.selectCategories(req.Categories)
	if err != nil {
		return nil, err
	}

	report := &Report{Platforms: make([]PlatformReport, 0, len(platforms))}

	for _, platform := range platforms {
		pr := e.runPlatform(ctx, platform, categories, req)
		report.Platforms = append(report.Platforms, *pr)

		if pr.State == bundle.StateAborted {
			return report, pr.Err
		}
	}

	return report, nil
}

func (e *Exporter) runPlatform(
	ctx context.Context,
	platform bundle.Platform,
	categories []bundle.Category,
	req Request,
) *PlatformReport {
	ctx = logger.WithKV(ctx, "platform", platform.Name)
	started := time.Now()

	pr := &PlatformReport{Platform: platform.Name}
	pr.enter(bundle.StateIdle, "")

	defer func() {
		e.deps.Metrics.PlatformFinished(platform.Name, pr.State, time.Since(started))
	}()

	logger.InfoKV(ctx, "Exporting platform", "dir", platform.Dir, "categories", len(categories))

	m, err := e.deps.Store.Load(ctx, platform)
	if err != nil {
		return pr.abort(ctx, fmt.Errorf("load manifest: %w", err))
	}

	for i := range categories {
		category := &categories[i]

		if err = ctx.Err(); err != nil {
			return pr.abort(ctx, err)
		}

		pr.enter(bundle.StateRunning, category.Name)

		result, fatal := e.exportCategory(ctx, platform, category, m)
		pr.Results = append(pr.Results, result)

		if fatal != nil {
			return pr.abort(ctx, fatal)
		}

		if err = e.save(ctx, platform, m); err != nil {
			return pr.abort(ctx, err)
		}
	}

	if req.Prune && len(req.Categories) == 0 {
		pr.Pruned = m.Prune(e.producedByConfig)
		if len(pr.Pruned) > 0 {
			logger.InfoKV(ctx, "Pruned stale manifest entries", "names", pr.Pruned)

			if err = e.save(ctx, platform, m); err != nil {
				return pr.abort(ctx, err)
			}
		}
	}

	if req.FileList {
		count, err := e.WriteFileList(ctx, platform)
		if err != nil {
			return pr.abort(ctx, err)
		}

		pr.FileListCount = count
	}

	pr.enter(bundle.StateDone, "")

	logger.InfoKV(ctx, "Platform exported",
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
		"manifest_entries", m.Len())

	return pr
}

// WriteFileList writes the full listing of the platform's bundle files.
func (e *Exporter) WriteFileList(ctx context.Context, platform bundle.Platform) (int, error) {
	count, err := filelist.Write(ctx, &filelist.Options{
		Dir:       e.cfg.PlatformDir(platform),
		BaseURL:   config.JoinURL(e.cfg.BaseURL, platform.Dir),
		Extension: e.cfg.BundleExtension,
		Exclude:   e.cfg.FileListExclude,
		Filename:  e.cfg.FileListFilename,
		Hasher:    e.deps.Hasher,
	})
	if err != nil {
		return 0, fmt.Errorf("write file list: %w", err)
	}

	return count, nil
}

func (e *Exporter) save(ctx context.Context, platform bundle.Platform, m *manifest.Manifest) error {
	if err := e.deps.Store.Save(ctx, platform, m); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	e.deps.Metrics.ManifestSaved(platform.Name, m.Len())

	return nil
}

// producedByConfig reports whether some configured merged category owns name.
func (e *Exporter) producedByConfig(name string) bool {
	for i := range e.cfg.Categories {
		c := &e.cfg.Categories[i]
		if c.Mode == bundle.ModeMerged && c.ResourceName == name {
			return true
		}
	}

	return false
}

func (e *Exporter) selectPlatforms(names []string) ([]bundle.Platform, error) {
	if len(names) == 0 {
		return slices.Clone(e.cfg.Platforms), nil
	}

	platforms := make([]bundle.Platform, 0, len(names))

	for _, name := range names {
		p, err := e.cfg.Platform(name)
		if err != nil {
			return nil, err
		}

		platforms = append(platforms, p)
	}

	return platforms, nil
}

// selectCategories keeps configuration order regardless of the order of names.
func (e *Exporter) selectCategories(names []string) ([]bundle.Category, error) {
	if len(names) == 0 {
		return slices.Clone(e.cfg.Categories), nil
	}

	for _, name := range names {
		if _, err := e.cfg.Category(name); err != nil {
			return nil, err
		}
	}

	categories := make([]bundle.Category, 0, len(names))

	for _, c := range e.cfg.Categories {
		if slices.Contains(names, c.Name) {
			categories = append(categories, c)
		}
	}

	return categories, nil
}

func (pr *PlatformReport) enter(state bundle.RunState, category string) {
	pr.State = state
	pr.Transitions = append(pr.Transitions, Transition{State: state, Category: category})
}

func (pr *PlatformReport) abort(ctx context.Context, err error) *PlatformReport {
	pr.Err = err
	pr.enter(bundle.StateAborted, "")

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.WarnKV(ctx, "Export cancelled", "error", err)
	} else {
		logger.ErrorKV(ctx, "Export aborted", "error", err)
	}

	return pr
}
