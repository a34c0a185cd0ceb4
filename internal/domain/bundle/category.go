package bundle

import (
	"fmt"
	"strings"
)

// Mode selects how a category's matched assets are turned into bundles.
type Mode string

const (
	// ModePerAsset builds one bundle per matched asset, named after the asset.
	ModePerAsset Mode = "per_asset"
	// ModeMerged builds a single bundle for the whole category.
	ModeMerged Mode = "merged"
)

// rulesSeparator separates prefix rules in a category rule string.
const rulesSeparator = ","

// Validate reports whether the mode is one of the known export modes.
func (m Mode) Validate() error {
	switch m {
	case ModePerAsset, ModeMerged:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
}

// Platform is a build target with its own output directory and manifest.
type Platform struct {
	// Name selects builder behaviour, e.g. "win", "ios" or "android".
	Name string `yaml:"name"`
	// Dir is the platform directory below the output root and the base URL.
	Dir string `yaml:"dir"`
}

// SharedBundle is an explicit list of assets packed into one dependency
// bundle before the category's own bundles are built.
type SharedBundle struct {
	// Name is the bundle file name without extension.
	Name string `yaml:"name"`
	// Assets are paths relative to the source root.
	Assets []string `yaml:"assets"`
}

// Category is a named resource group selected by filename prefixes.
type Category struct {
	// Name identifies the category on the command line and in logs.
	Name string `yaml:"name"`
	// Prefixes is a comma-separated list of filename prefix rules.
	Prefixes string `yaml:"prefixes"`
	// SourceDir is the directory scanned for candidates, relative to the source root.
	SourceDir string `yaml:"source_dir"`
	// Dir is the output subdirectory below the platform directory.
	Dir string `yaml:"dir"`
	// Mode is the export mode.
	Mode Mode `yaml:"mode"`
	// ResourceName names the merged bundle and its manifest entry.
	ResourceName string `yaml:"resource_name,omitempty"`
	// Shared is an optional dependency bundle built before the category.
	Shared *SharedBundle `yaml:"shared,omitempty"`
}

// Rules splits the prefix string into individual rules, preserving order.
func (c *Category) Rules() []string {
	parts := strings.Split(c.Prefixes, rulesSeparator)
	rules := make([]string, 0, len(parts))

	for _, part := range parts {
		if rule := strings.TrimSpace(part); rule != "" {
			rules = append(rules, rule)
		}
	}

	return rules
}
