package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release of the exporter, overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA, or "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns only the release string.
func Short() string {
	return Version
}

// Full returns release, commit, build time and Go version.
func Full() string {
	return fmt.Sprintf("bundle-exporter %s (commit %s, built %s, %s)", Version, Commit, BuildTime, runtime.Version())
}
