package bundle

import (
	"path/filepath"
	"strings"
)

// Asset is a candidate source file discovered on disk.
type Asset struct {
	// Name is the file name.
	Name string
	// Path is the absolute path to the file.
	Path string
	// Size is the file length in bytes.
	Size int64
}

// LogicalName returns the file name without its extension.
// Per-asset bundles are named after it.
func (a Asset) LogicalName() string {
	return strings.TrimSuffix(a.Name, filepath.Ext(a.Name))
}

// Entry is one record of a platform manifest.
type Entry struct {
	// Name is the unique key of the entry within a manifest.
	Name string
	// Version is the build's configured version.
	Version int
	// Path is the fully qualified download URL.
	Path string
	// CRC is the hex digest of the bundle bytes.
	CRC string
}
