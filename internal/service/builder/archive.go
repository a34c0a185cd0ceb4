package builder

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

const (
	// platformEntry is the archive member naming the target platform.
	platformEntry = ".platform"
	// memberMode is the fixed mode of every archive member.
	memberMode = 0o644
	// bundlePermissions is used for written bundle files.
	bundlePermissions = 0o644
)

var (
	errNamesMismatch   = errors.New("assets and names differ in length")
	errDuplicateMember = errors.New("two assets share one member name")
)

// ArchiveBuilder writes bundles as zstd-compressed tar archives.
// Member headers carry no timestamps or owners, so identical inputs
// produce identical bytes and identical content hashes.
type ArchiveBuilder struct {
	// level is the zstd encoder level.
	level zstd.EncoderLevel
}

// member is one file stored in a bundle.
type member struct {
	name string
	path string
}

// NewArchiveBuilder returns an ArchiveBuilder with the default compression level.
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{level: zstd.SpeedDefault}
}

// BuildSingle stores one asset under its file name.
func (b *ArchiveBuilder) BuildSingle(
	ctx context.Context,
	asset bundle.Asset,
	outputPath string,
	platform bundle.Platform,
) error {
	return b.write(ctx, outputPath, platform, []member{{name: asset.Name, path: asset.Path}})
}

// BuildMerged stores assets under explicit names. An asset path listed
// more than once is stored once, under its first name; two different
// paths under one name fail the build.
func (b *ArchiveBuilder) BuildMerged(
	ctx context.Context,
	assets []bundle.Asset,
	names []string,
	outputPath string,
	platform bundle.Platform,
) error {
	if len(assets) != len(names) {
		return fmt.Errorf("%w: %w", bundle.ErrBuildFailure, errNamesMismatch)
	}

	var (
		members = make([]member, 0, len(assets))
		seen    = make(map[string]struct{}, len(assets))
		owners  = make(map[string]string, len(assets))
	)

	for i, asset := range assets {
		if _, ok := seen[asset.Path]; ok {
			continue
		}

		if owner, ok := owners[names[i]]; ok {
			return fmt.Errorf("%w: %w: %q used by %s and %s",
				bundle.ErrBuildFailure, errDuplicateMember, names[i], owner, asset.Path)
		}

		seen[asset.Path] = struct{}{}
		owners[names[i]] = asset.Path
		members = append(members, member{name: names[i], path: asset.Path})
	}

	return b.write(ctx, outputPath, platform, members)
}

// write replaces outputPath with an archive of members.
func (b *ArchiveBuilder) write(ctx context.Context, outputPath string, platform bundle.Platform, members []member) error {
	dir := filepath.Dir(outputPath)

	tmp, err := os.CreateTemp(dir, filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", bundle.ErrBuildFailure, outputPath, err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err = b.encode(ctx, tmp, platform, members); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("%w: %s: %w", bundle.ErrBuildFailure, outputPath, err)
	}

	if err = tmp.Chmod(bundlePermissions); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("%w: chmod %s: %w", bundle.ErrBuildFailure, outputPath, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", bundle.ErrBuildFailure, outputPath, err)
	}

	if err = os.Rename(tmpName, outputPath); err != nil {
		return fmt.Errorf("%w: replace %s: %w", bundle.ErrBuildFailure, outputPath, err)
	}

	return nil
}

func (b *ArchiveBuilder) encode(ctx context.Context, w io.Writer, platform bundle.Platform, members []member) error {
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(b.level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(zw)

	if err = writeMember(tw, platformEntry, []byte(platform.Name)); err != nil {
		_ = zw.Close()

		return err
	}

	for _, m := range members {
		if err = ctx.Err(); err != nil {
			_ = zw.Close()

			return err
		}

		if err = copyMember(tw, m); err != nil {
			_ = zw.Close()

			return err
		}
	}

	if err = tw.Close(); err != nil {
		_ = zw.Close()

		return err
	}

	return zw.Close()
}

func header(name string, size int64) *tar.Header {
	return &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     memberMode,
		Size:     size,
		ModTime:  time.Unix(0, 0),
		Format:   tar.FormatPAX,
	}
}

func writeMember(tw *tar.Writer, name string, data []byte) error {
	if err := tw.WriteHeader(header(name, int64(len(data)))); err != nil {
		return err
	}

	_, err := tw.Write(data)

	return err
}

func copyMember(tw *tar.Writer, m member) error {
	file, err := os.Open(filepath.Clean(m.path))
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	if err = tw.WriteHeader(header(m.name, info.Size())); err != nil {
		return err
	}

	_, err = io.Copy(tw, file)

	return err
}

// ReadArchive returns the members of a bundle written by ArchiveBuilder,
// keyed by name, including the platform member.
func ReadArchive(path string) (map[string][]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}

	defer zr.Close()

	var (
		tr      = tar.NewReader(zr)
		members = make(map[string][]byte)
	)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}

		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}

		members[hdr.Name] = data
	}
}
