package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

const (
	// sidecarMarker identifies engine metadata files next to real content.
	sidecarMarker = ".meta"
	// excludePrefix marks files kept out of every export.
	excludePrefix = "_"
)

// Classify returns the immediate files of dir whose names start with one
// of rules, skipping metadata sidecars and names starting with "_".
// A missing directory yields an empty list and no error.
func Classify(dir string, rules []string) ([]bundle.Asset, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(absDir) {
			return nil, nil
		}

		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	assets := make([]bundle.Asset, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		name := entry.Name()
		if !Eligible(name) || MatchRule(name, rules) == "" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}

		assets = append(assets, bundle.Asset{
			Name: name,
			Path: filepath.Join(absDir, name),
			Size: info.Size(),
		})
	}

	return assets, nil
}

// Eligible reports whether a file name may be content at all.
func Eligible(name string) bool {
	return name != "" && !strings.Contains(name, sidecarMarker) && !strings.HasPrefix(name, excludePrefix)
}

// MatchRule returns the first rule name starts with, or "" when none does.
func MatchRule(name string, rules []string) string {
	for _, rule := range rules {
		if rule != "" && strings.HasPrefix(name, rule) {
			return rule
		}
	}

	return ""
}

func isNotDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
