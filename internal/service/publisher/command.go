package publisher

import (
	"context"
	"fmt"
	"path"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/logger"
)

// Options contains inputs for the publish entry point.
type Options struct {
	// ConfigPath is the configuration file.
	ConfigPath string
	// Platform is the name of the platform whose directory is uploaded.
	Platform string
	// Target is the destination, s3+http(s)://host/bucket/prefix.
	Target string
}

// Run uploads a platform directory so that bucket keys mirror the
// download URLs: <prefix>/<platform dir>/<category dir>/<bundle>.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bundle-publisher")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	platform, err := cfg.Platform(opts.Platform)
	if err != nil {
		return err
	}

	target, err := ParseTarget(opts.Target)
	if err != nil {
		return err
	}

	target.Prefix = path.Join(target.Prefix, platform.Dir)

	client, err := NewClient(target)
	if err != nil {
		return err
	}

	if _, err = Publish(ctx, client, target, cfg.PlatformDir(platform)); err != nil {
		return fmt.Errorf("publish %s: %w", platform.Name, err)
	}

	return nil
}
