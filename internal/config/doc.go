// Package config defines the export configuration: where source content
// lives, where bundles and manifests are written, which platforms are
// targeted and how files are grouped into categories.
//
// Configuration is YAML on disk with a handful of environment overrides,
// loaded once and passed explicitly to the exporter.
package config
