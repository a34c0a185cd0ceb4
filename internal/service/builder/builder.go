package builder

import (
	"context"
	"fmt"

	"github.com/oshokin/bundle-exporter/internal/config"
	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

// Builder writes bundle files for one platform.
type Builder interface {
	// BuildSingle serialises one asset with its dependency closure into outputPath.
	BuildSingle(ctx context.Context, asset bundle.Asset, outputPath string, platform bundle.Platform) error
	// BuildMerged serialises assets under explicit names into one bundle,
	// collecting shared dependencies once for the whole set.
	BuildMerged(
		ctx context.Context,
		assets []bundle.Asset,
		names []string,
		outputPath string,
		platform bundle.Platform,
	) error
}

// New returns the builder selected by the configuration.
//
//nolint:ireturn // Callers only need the capability.
func New(cfg config.Builder) (Builder, error) {
	switch cfg.Kind {
	case "", config.BuilderArchive:
		return NewArchiveBuilder(), nil
	case config.BuilderCommand:
		return NewCommandBuilder(cfg.Command, cfg.Targets)
	default:
		return nil, fmt.Errorf("unknown builder kind %q", cfg.Kind)
	}
}
