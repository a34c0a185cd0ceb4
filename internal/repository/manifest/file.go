package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
	"github.com/oshokin/bundle-exporter/internal/logger"
)

// Repository loads and persists platform manifests.
type Repository interface {
	Load(ctx context.Context, platform bundle.Platform) (*Manifest, error)
	Save(ctx context.Context, platform bundle.Platform, m *Manifest) error
	Path(platform bundle.Platform) string
}

// document is the on-disk layout of a manifest.
type document struct {
	Entries []record `yaml:"res"`
}

// record is one entry as written to disk; numbers are kept as strings.
type record struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Path    string `yaml:"path"`
	CRC     string `yaml:"crc"`
}

const (
	// filePermissions is used for manifest files consumed by the delivery side.
	filePermissions = 0o644
	// dirPermissions is used for platform directories created on first load.
	dirPermissions = 0o755
)

var errEmptyName = errors.New("entry without name")

// FileStore keeps one manifest file per platform below root.
type FileStore struct {
	// root is the output root holding platform directories.
	root string
	// filename is the manifest file name inside a platform directory.
	filename string
	// mu serialises file access across platforms exported concurrently.
	mu sync.Mutex
}

// NewFileStore creates a store writing <root>/<platform dir>/<filename>.
func NewFileStore(root, filename string) *FileStore {
	return &FileStore{
		root:     filepath.Clean(root),
		filename: filename,
	}
}

// Path returns the manifest file path of the platform.
func (s *FileStore) Path(platform bundle.Platform) string {
	return filepath.Join(s.root, platform.Dir, s.filename)
}

// Load reads the platform's manifest. A missing file is created empty;
// empty or unparseable content yields an empty manifest.
func (s *FileStore) Load(ctx context.Context, platform bundle.Platform) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(platform)

	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err = createEmpty(path); err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Created empty manifest", "path", path)

		return New(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, rejected, err := Decode(contents)
	for _, bad := range rejected {
		logger.WarnKV(ctx, "Dropping invalid manifest record", "path", path, "error", bad)
	}

	if err != nil {
		// Entries only present in the unreadable file are lost on the next save.
		logger.WarnKV(ctx, "Manifest is unreadable, starting from an empty one",
			"path", path,
			"error", err,
		)

		return New(), nil
	}

	return m, nil
}

// Save overwrites the platform's manifest file with m.
func (s *FileStore) Save(_ context.Context, platform bundle.Platform, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := Encode(m)
	if err != nil {
		return err
	}

	return writeAtomic(s.Path(platform), data)
}

// Decode parses manifest file contents. Records without a name or with a
// non-numeric version are left out of the manifest and returned in rejected;
// only content that is not a manifest at all is an error.
func Decode(contents []byte) (*Manifest, []error, error) {
	m := New()

	if len(bytes.TrimSpace(contents)) == 0 {
		return m, nil, nil
	}

	var doc document
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", bundle.ErrManifestCorrupt, err)
	}

	var rejected []error

	for i, r := range doc.Entries {
		if r.Name == "" {
			rejected = append(rejected, fmt.Errorf("%w: record %d: %w", bundle.ErrManifestCorrupt, i, errEmptyName))

			continue
		}

		version, err := strconv.Atoi(r.Version)
		if err != nil {
			rejected = append(rejected,
				fmt.Errorf("%w: record %q: version: %w", bundle.ErrManifestCorrupt, r.Name, err))

			continue
		}

		m.Upsert(bundle.Entry{
			Name:    r.Name,
			Version: version,
			Path:    r.Path,
			CRC:     r.CRC,
		})
	}

	return m, rejected, nil
}

// Encode renders m in the on-disk format.
func Encode(m *Manifest) ([]byte, error) {
	doc := document{Entries: make([]record, 0, m.Len())}

	for _, e := range m.entries {
		doc.Entries = append(doc.Entries, record{
			Name:    e.Name,
			Version: strconv.Itoa(e.Version),
			Path:    e.Path,
			CRC:     e.CRC,
		})
	}

	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return buf.Bytes(), nil
}

func createEmpty(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("%w: %w", bundle.ErrDirectoryUnwritable, err)
	}

	if err := os.WriteFile(path, nil, filePermissions); err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	return nil
}

// writeAtomic replaces path with data through a temporary file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("%w: %w", bundle.ErrDirectoryUnwritable, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary manifest: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write manifest: %w", err)
	}

	if err = tmp.Chmod(filePermissions); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("chmod manifest: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}

	return nil
}
