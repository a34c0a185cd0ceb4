package builder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

const tempDirPermissions = 0o755

// Stager creates batches of transient asset copies below a temp root.
type Stager struct {
	// root is the temp root; each platform gets its own subdirectory.
	root string
	// composite holds lower-cased extensions of assets that must be flattened.
	composite map[string]struct{}
}

// Batch owns the transient copies made for one build.
type Batch struct {
	dir   string
	temps []string
	// slots counts slot directories ever created, failed copies included.
	slots    int
	released bool
}

// NewStager creates a Stager flattening files with the given extensions.
func NewStager(root string, compositeExtensions []string) *Stager {
	composite := make(map[string]struct{}, len(compositeExtensions))

	for _, ext := range compositeExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		composite[ext] = struct{}{}
	}

	return &Stager{
		root:      filepath.Clean(root),
		composite: composite,
	}
}

// Begin opens a new batch for platform. The caller must Release it.
func (s *Stager) Begin(platform bundle.Platform) (*Batch, error) {
	parent := filepath.Join(s.root, platform.Name)
	if err := os.MkdirAll(parent, tempDirPermissions); err != nil {
		return nil, fmt.Errorf("%w: %w", bundle.ErrDirectoryUnwritable, err)
	}

	dir, err := os.MkdirTemp(parent, "batch-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bundle.ErrDirectoryUnwritable, err)
	}

	return &Batch{dir: dir}, nil
}

// IsComposite reports whether the asset is flattened before building.
func (s *Stager) IsComposite(asset bundle.Asset) bool {
	_, ok := s.composite[strings.ToLower(filepath.Ext(asset.Name))]

	return ok
}

// Resolve returns the asset handed to the builder. Composite assets are
// copied into the batch; an asset that cannot be read yields ErrUnresolvedAsset.
func (s *Stager) Resolve(b *Batch, asset bundle.Asset) (bundle.Asset, error) {
	info, err := os.Stat(asset.Path)
	if err != nil {
		return bundle.Asset{}, fmt.Errorf("%w: %s: %w", bundle.ErrUnresolvedAsset, asset.Name, err)
	}

	if !info.Mode().IsRegular() {
		return bundle.Asset{}, fmt.Errorf("%w: %s: not a regular file", bundle.ErrUnresolvedAsset, asset.Name)
	}

	asset.Size = info.Size()

	if !s.IsComposite(asset) {
		return asset, nil
	}

	flat, err := b.flatten(asset)
	if err != nil {
		return bundle.Asset{}, fmt.Errorf("%w: %s: %w", bundle.ErrUnresolvedAsset, asset.Name, err)
	}

	return flat, nil
}

// Dir returns the batch directory.
func (b *Batch) Dir() string {
	return b.dir
}

// Temporaries returns the transient copies created so far.
func (b *Batch) Temporaries() []string {
	return append([]string(nil), b.temps...)
}

// Release deletes every transient copy of the batch. Calling it again is a no-op.
func (b *Batch) Release() error {
	if b == nil || b.released {
		return nil
	}

	b.released = true

	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("release batch %s: %w", b.dir, err)
	}

	return nil
}

// flatten copies the asset into its own slot of the batch directory.
func (b *Batch) flatten(asset bundle.Asset) (bundle.Asset, error) {
	if b.released {
		return bundle.Asset{}, errBatchReleased
	}

	slot := filepath.Join(b.dir, strconv.Itoa(b.slots))
	b.slots++

	if err := os.Mkdir(slot, tempDirPermissions); err != nil {
		return bundle.Asset{}, err
	}

	target := filepath.Join(slot, asset.Name)

	size, err := copyFile(asset.Path, target)
	if err != nil {
		_ = os.RemoveAll(slot)

		return bundle.Asset{}, err
	}

	b.temps = append(b.temps, target)

	return bundle.Asset{
		Name: asset.Name,
		Path: target,
		Size: size,
	}, nil
}

var errBatchReleased = errors.New("batch already released")

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()

		return 0, err
	}

	return size, out.Close()
}
