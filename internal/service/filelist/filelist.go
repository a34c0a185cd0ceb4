// Package filelist writes the full listing of a platform's bundle files.
//
// Per-asset bundles never enter the manifest; the client tracks their
// freshness through this listing instead. Each line reads
// "name,url,HASH,size".
package filelist

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/logger"
	"github.com/oshokin/bundle-exporter/internal/service/hasher"
)

// Options describe one listing.
type Options struct {
	// Dir is the platform output directory scanned recursively.
	Dir string
	// BaseURL is the download URL of Dir.
	BaseURL string
	// Extension selects bundle files.
	Extension string
	// Exclude skips files whose name contains it; empty disables the filter.
	Exclude string
	// Filename is the listing file name written into Dir.
	Filename string
	// Hasher digests every listed bundle.
	Hasher hasher.Hasher
}

// Line is one listed bundle.
type Line struct {
	Name string
	URL  string
	Hash string
	Size int64
}

// String renders the line in listing format.
func (l Line) String() string {
	return strings.Join([]string{l.Name, l.URL, l.Hash, strconv.FormatInt(l.Size, 10)}, ",")
}

// Collect scans opts.Dir and returns the listed bundles in path order.
func Collect(ctx context.Context, opts *Options) ([]Line, error) {
	var lines []Line

	err := filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, opts.Extension) {
			return nil
		}

		if opts.Exclude != "" && strings.Contains(name, opts.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(opts.Dir, path)
		if err != nil {
			return err
		}

		sum, err := opts.Hasher.File(path)
		if err != nil {
			return err
		}

		lines = append(lines, Line{
			Name: strings.TrimSuffix(name, opts.Extension),
			URL:  config.JoinURL(opts.BaseURL, rel),
			Hash: sum,
			Size: info.Size(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.Dir, err)
	}

	return lines, nil
}

// Write collects the listing and replaces opts.Filename inside opts.Dir.
// It returns the number of listed bundles.
func Write(ctx context.Context, opts *Options) (int, error) {
	lines, err := Collect(ctx, opts)
	if err != nil {
		return 0, err
	}

	var builder strings.Builder

	for _, line := range lines {
		builder.WriteString(line.String())
		builder.WriteString("\n")
	}

	path := filepath.Join(opts.Dir, opts.Filename)

	//nolint:gosec // The listing is published next to the bundles.
	if err = os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return 0, fmt.Errorf("write file list: %w", err)
	}

	logger.InfoKV(ctx, "File list written", "path", path, "bundles", len(lines))

	return len(lines), nil
}
