//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/bundle-exporter/internal/logger"
)

// MarkerFilename marks an output root that an exporter is writing to.
const MarkerFilename = ".bundle-exporter.lock"

const (
	markerPermissions = 0o644
	// markerGracePeriod is how long a marker without a PID is treated as being written.
	markerGracePeriod = 5 * time.Second
)

// ErrExportRunning indicates another live exporter owns the output root.
var ErrExportRunning = errors.New("another export is running in this output root")

// Marker is a held run marker.
type Marker struct {
	// path is the marker file location.
	path string
}

// AcquireMarker creates the run marker in dir. A marker left by a process
// that no longer runs, or by an unrelated program reusing its PID, is
// removed and replaced. A marker without a PID counts as held while it is
// younger than markerGracePeriod, since its owner may not have written it yet.
func AcquireMarker(ctx context.Context, dir string) (*Marker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(dir, MarkerFilename)

	logger.DebugKV(ctx, "Checking for a run marker", "path", path)

	marker, err := createMarker(path)
	if !errors.Is(err, os.ErrExist) {
		return marker, err
	}

	contents, stale, err := inspectMarker(path)
	if err != nil {
		return nil, err
	}

	if !stale {
		return nil, ErrExportRunning
	}

	// Another exporter may have replaced the stale marker meanwhile.
	current, err := os.ReadFile(filepath.Clean(path))
	if err == nil && !bytes.Equal(current, contents) {
		return nil, ErrExportRunning
	}

	logger.InfoKV(ctx, "Removing stale run marker", "path", path, "contents", string(contents))

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale marker: %w", err)
	}

	marker, err = createMarker(path)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrExportRunning
	}

	return marker, err
}

// createMarker exclusively creates the marker and writes our PID into it.
func createMarker(path string) (*Marker, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerPermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, err
		}

		return nil, fmt.Errorf("create marker: %w", err)
	}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write marker: %w", err)
	}

	return &Marker{path: path}, nil
}

// inspectMarker reads an existing marker and reports whether it may be replaced.
func inspectMarker(path string) ([]byte, bool, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		// Released between our create attempt and now.
		return nil, true, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read marker: %w", err)
	}

	if owner, ok := parseOwner(contents); ok {
		return contents, !isExporterProcess(owner), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return contents, errors.Is(err, os.ErrNotExist), nil
	}

	return contents, time.Since(info.ModTime()) > markerGracePeriod, nil
}

// Release removes the marker.
func (m *Marker) Release() error {
	if m == nil {
		return nil
	}

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}

	return nil
}

// parseOwner returns the PID stored in marker contents.
func parseOwner(contents []byte) (int, bool) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	return pid, true
}

// isExporterProcess reports whether pid is alive and runs the same executable as us.
func isExporterProcess(pid int) bool {
	owner, err := ps.FindProcess(pid)
	if err != nil || owner == nil {
		return false
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil || self == nil {
		// Cannot compare names; assume the worst.
		return true
	}

	return owner.Executable() == self.Executable()
}
