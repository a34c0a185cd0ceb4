// Package version exposes build metadata injected through -ldflags.
// It is printed by the `version` subcommand and attached to run metrics.
package version
