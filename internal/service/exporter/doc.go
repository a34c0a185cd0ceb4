// Package exporter drives an export run: for every requested platform it
// walks the configured categories in order, classifies candidates, builds
// bundles through the configured builder and keeps the platform manifest
// current.
//
// A failing category never stops the run. Only an output directory that
// cannot be created, a manifest that cannot be saved, or cancellation of
// the context aborts it; manifests saved before that point stay on disk.
package exporter
