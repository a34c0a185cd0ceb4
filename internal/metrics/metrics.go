// Package metrics records export run statistics in a Prometheus registry.
// The exporter is a batch job, so the registry is written to a
// node-exporter textfile at the end of a run instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/version"
)

// ExportMetrics holds the collectors of one exporter process.
// A nil *ExportMetrics is valid and records nothing.
type ExportMetrics struct {
	reg              *prometheus.Registry
	bundlesBuilt     *prometheus.CounterVec
	categoryFailures *prometheus.CounterVec
	assetsSkipped    *prometheus.CounterVec
	manifestEntries  *prometheus.GaugeVec
	exportDuration   *prometheus.HistogramVec
	lastRun          *prometheus.GaugeVec
	buildInfo        *prometheus.GaugeVec
}

// New returns a fresh registry with the exporter collectors registered.
func New() *ExportMetrics {
	m := &ExportMetrics{
		reg: prometheus.NewRegistry(),
		bundlesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bundle_exporter_bundles_built_total",
			Help: "Bundle files written by platform, category and export mode",
		}, []string{"platform", "category", "mode"}),
		categoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bundle_exporter_category_failures_total",
			Help: "Categories that failed or had no source, by reason",
		}, []string{"platform", "category", "reason"}),
		assetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bundle_exporter_assets_skipped_total",
			Help: "Candidate assets skipped because they could not be resolved",
		}, []string{"platform", "category"}),
		manifestEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bundle_exporter_manifest_entries",
			Help: "Entries in the platform manifest after the last save",
		}, []string{"platform"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bundle_exporter_export_duration_seconds",
			Help:    "Wall time of exporting one platform",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"platform"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bundle_exporter_last_run_timestamp_seconds",
			Help: "Unix time the last export of a platform finished, by final state",
		}, []string{"platform", "state"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bundle_exporter_build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"version", "commit"}),
	}

	m.reg.MustRegister(
		m.bundlesBuilt,
		m.categoryFailures,
		m.assetsSkipped,
		m.manifestEntries,
		m.exportDuration,
		m.lastRun,
		m.buildInfo,
	)

	m.buildInfo.WithLabelValues(version.Short(), version.Commit).Set(1)

	return m
}

// Registry returns the underlying registry.
func (m *ExportMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.reg
}

// BundleBuilt counts one written bundle file.
func (m *ExportMetrics) BundleBuilt(platform, category string, mode bundle.Mode) {
	if m == nil {
		return
	}

	m.bundlesBuilt.WithLabelValues(platform, category, string(mode)).Inc()
}

// CategoryFailed counts a category that did not complete, by reason.
func (m *ExportMetrics) CategoryFailed(platform, category, reason string) {
	if m == nil {
		return
	}

	m.categoryFailures.WithLabelValues(platform, category, reason).Inc()
}

// AssetSkipped counts one unresolved candidate.
func (m *ExportMetrics) AssetSkipped(platform, category string) {
	if m == nil {
		return
	}

	m.assetsSkipped.WithLabelValues(platform, category).Inc()
}

// ManifestSaved records the entry count of a saved manifest.
func (m *ExportMetrics) ManifestSaved(platform string, entries int) {
	if m == nil {
		return
	}

	m.manifestEntries.WithLabelValues(platform).Set(float64(entries))
}

// PlatformFinished records duration and completion time of a platform export.
func (m *ExportMetrics) PlatformFinished(platform string, state bundle.RunState, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.exportDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
	m.lastRun.WithLabelValues(platform, state.String()).SetToCurrentTime()
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *ExportMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
