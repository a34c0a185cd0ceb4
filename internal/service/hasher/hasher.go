package hasher

import (
	"crypto/md5" //nolint:gosec // Change detection only, not a security boundary.
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	// AlgorithmMD5 matches the digests the game client already compares against.
	AlgorithmMD5 = "md5"
	// AlgorithmSHA512 is the stronger standard-library digest.
	AlgorithmSHA512 = "sha512"
	// AlgorithmBLAKE3 is a fast modern digest.
	AlgorithmBLAKE3 = "blake3"
)

var errUnknownAlgorithm = errors.New("unknown hash algorithm")

// Hasher digests bundle contents.
type Hasher interface {
	// Sum returns the digest of data.
	Sum(data []byte) string
	// File returns the digest of the file at path.
	File(path string) (string, error)
	// Algorithm returns the algorithm name.
	Algorithm() string
}

// digest implements Hasher on top of a hash constructor.
type digest struct {
	name    string
	newHash func() hash.Hash
}

// New returns a Hasher for the named algorithm. An empty name selects MD5.
func New(algorithm string) (Hasher, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))

	switch name {
	case "", AlgorithmMD5:
		return &digest{name: AlgorithmMD5, newHash: md5.New}, nil
	case AlgorithmSHA512:
		return &digest{name: AlgorithmSHA512, newHash: sha512.New}, nil
	case AlgorithmBLAKE3:
		return &digest{name: AlgorithmBLAKE3, newHash: func() hash.Hash { return blake3.New() }}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAlgorithm, algorithm)
	}
}

// Algorithm returns the algorithm name.
func (d *digest) Algorithm() string {
	return d.name
}

// Sum returns the uppercase hex digest of data.
func (d *digest) Sum(data []byte) string {
	h := d.newHash()
	_, _ = h.Write(data) // hash.Hash.Write never returns an error.

	return encode(h.Sum(nil))
}

// File streams the file at path through the digest.
func (d *digest) File(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	h := d.newHash()
	if _, err = io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return encode(h.Sum(nil)), nil
}

func encode(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}
