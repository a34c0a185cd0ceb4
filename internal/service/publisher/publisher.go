package publisher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oshokin/bundle-exporter/internal/logger"
	"github.com/oshokin/bundle-exporter/internal/service/common"
)

const (
	schemeHTTP  = "s3+http"
	schemeHTTPS = "s3+https"

	accessKeyVariable = "AWS_ACCESS_KEY_ID"
	secretKeyVariable = "AWS_SECRET_ACCESS_KEY"

	defaultContentType = "application/octet-stream"
)

var (
	errBadScheme      = errors.New("target must start with s3+http:// or s3+https://")
	errBucketRequired = errors.New("target must name a bucket")
	errMissingCreds   = errors.New("credentials not set")
)

// contentTypes maps listing and manifest extensions to their MIME types.
//
//nolint:gochecknoglobals // Read-only lookup table.
var contentTypes = map[string]string{
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".txt":  "text/plain; charset=utf-8",
}

// Target is a parsed upload destination.
type Target struct {
	// Endpoint is host[:port] of the S3 service.
	Endpoint string
	// Secure selects TLS.
	Secure bool
	// Bucket is the destination bucket.
	Bucket string
	// Prefix is the key prefix inside the bucket, without slashes at the ends.
	Prefix string
}

// Uploader is the subset of *minio.Client used for publishing.
type Uploader interface {
	FPutObject(
		ctx context.Context,
		bucketName, objectName, filePath string,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

// ParseTarget parses s3+http(s)://host/bucket/prefix.
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse target: %w", err)
	}

	if u.Scheme != schemeHTTP && u.Scheme != schemeHTTPS {
		return Target{}, errBadScheme
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return Target{}, errBucketRequired
	}

	target := Target{
		Endpoint: u.Host,
		Secure:   u.Scheme == schemeHTTPS,
		Bucket:   parts[0],
	}

	if len(parts) > 1 {
		target.Prefix = strings.Trim(parts[1], "/")
	}

	return target, nil
}

// NewClient creates a minio client for target using AWS_* credentials.
func NewClient(target Target) (*minio.Client, error) {
	accessKeyID := os.Getenv(accessKeyVariable)
	if accessKeyID == "" {
		return nil, fmt.Errorf("%w: %s", errMissingCreds, accessKeyVariable)
	}

	secretAccessKey := os.Getenv(secretKeyVariable)
	if secretAccessKey == "" {
		return nil, fmt.Errorf("%w: %s", errMissingCreds, secretKeyVariable)
	}

	client, err := minio.New(target.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: target.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// ObjectKey returns the bucket key of a file at rel below the published directory.
func (t Target) ObjectKey(rel string) string {
	return path.Join(t.Prefix, filepath.ToSlash(rel))
}

// Publish uploads every file below dir and returns the number of uploaded objects.
// The run marker is never uploaded.
func Publish(ctx context.Context, up Uploader, target Target, dir string) (int, error) {
	uploaded := 0

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || d.Name() == common.MarkerFilename {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		key := target.ObjectKey(rel)

		info, err := up.FPutObject(ctx, target.Bucket, key, p, minio.PutObjectOptions{
			ContentType: contentType(p),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}

		logger.DebugKV(ctx, "Uploaded object", "bucket", target.Bucket, "key", key, "size", info.Size)

		uploaded++

		return nil
	})
	if err != nil {
		return uploaded, err
	}

	logger.InfoKV(ctx, "Published directory", "dir", dir, "bucket", target.Bucket, "objects", uploaded)

	return uploaded, nil
}

func contentType(p string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(p))]; ok {
		return ct
	}

	return defaultContentType
}
