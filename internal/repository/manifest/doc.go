// Package manifest implements the per-platform bundle manifest.
//
// A Manifest is an ordered list of entries keyed by name. Upsert overwrites
// an existing entry in place or appends a new one, so entries untouched by
// an export run survive it. The FileStore persists one YAML file per
// platform with one tagged record per entry, which keeps the file easy to
// edit by hand and to diff between runs.
package manifest
