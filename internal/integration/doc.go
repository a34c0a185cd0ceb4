// Package integration runs the exporter end to end against the built-in
// archive builder and on-disk manifests.
package integration
