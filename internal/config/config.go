package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

// Builder selects and configures the bundle builder adapter.
type Builder struct {
	// Kind is "archive" (built-in tar+zstd) or "command" (external tool).
	Kind string `yaml:"kind"`
	// Command is the external tool command line template.
	Command string `yaml:"command,omitempty"`
	// Targets maps platform names to the tool's own target identifiers.
	Targets map[string]string `yaml:"targets,omitempty"`
}

// Config holds everything an export run needs.
type Config struct {
	// SourceRoot is the directory category source dirs are relative to.
	SourceRoot string `yaml:"source_root"`
	// OutputRoot is where platform directories with bundles are written.
	OutputRoot string `yaml:"output_root"`
	// TempRoot holds transient flattened copies of composite assets.
	TempRoot string `yaml:"temp_root"`
	// BaseURL is the download URL prefix written into manifests.
	BaseURL string `yaml:"base_url"`
	// BundleExtension is appended to every bundle file name.
	BundleExtension string `yaml:"bundle_extension"`
	// Version is written into every upserted manifest entry.
	Version int `yaml:"version"`
	// ManifestFilename is the manifest file name inside each platform directory.
	ManifestFilename string `yaml:"manifest_filename"`
	// FileListFilename is the full-file listing name inside each platform directory.
	FileListFilename string `yaml:"file_list_filename"`
	// FileListExclude skips bundles whose name contains it from the file listing.
	FileListExclude string `yaml:"file_list_exclude"`
	// HashAlgorithm is md5, sha512 or blake3.
	HashAlgorithm string `yaml:"hash_algorithm"`
	// CompositeExtensions lists extensions of assets flattened before building.
	CompositeExtensions []string `yaml:"composite_extensions"`
	// MetricsFile is an optional Prometheus textfile written after each run.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// Builder configures the bundle builder.
	Builder Builder `yaml:"builder"`
	// Platforms are the export targets, processed in order.
	Platforms []bundle.Platform `yaml:"platforms"`
	// Categories are processed in order for every platform.
	Categories []bundle.Category `yaml:"categories"`
}

// overrides are environment variables taking precedence over the file.
type overrides struct {
	SourceRoot    string `env:"BUNDLE_SOURCE_ROOT"`
	OutputRoot    string `env:"BUNDLE_OUTPUT_ROOT"`
	TempRoot      string `env:"BUNDLE_TEMP_ROOT"`
	BaseURL       string `env:"BUNDLE_BASE_URL"`
	Version       int    `env:"BUNDLE_VERSION"`
	HashAlgorithm string `env:"BUNDLE_HASH_ALGORITHM"`
	MetricsFile   string `env:"BUNDLE_METRICS_FILE"`
	BuilderKind   string `env:"BUNDLE_BUILDER_KIND"`
	BuilderCmd    string `env:"BUNDLE_BUILDER_COMMAND"`
}

const (
	// DefaultConfigFilename is the default path of the configuration file.
	DefaultConfigFilename = "bundle-exporter.yaml"

	// DefaultBundleExtension is the bundle file suffix used by the game client.
	DefaultBundleExtension = ".res"

	// DefaultManifestFilename is the default per-platform manifest name.
	DefaultManifestFilename = "resource.yaml"

	// DefaultFileListFilename is the default per-platform file listing name.
	DefaultFileListFilename = "resource.txt"

	// DefaultFileListExclude keeps GUI bundles out of the file listing.
	DefaultFileListExclude = "gui"

	// DefaultHashAlgorithm is the digest used for manifest crc values.
	DefaultHashAlgorithm = "md5"

	// DefaultVersion is written into manifest entries when none is configured.
	DefaultVersion = 1

	// BuilderArchive selects the built-in tar+zstd builder.
	BuilderArchive = "archive"

	// BuilderCommand selects an external build tool.
	BuilderCommand = "command"

	// DefaultFilePermissions is used for the configuration file.
	DefaultFilePermissions = 0o644
)

var (
	errConfigIsNotSet       = errors.New("configuration is not set")
	errNoPlatforms          = errors.New("at least one platform must be configured")
	errNoCategories         = errors.New("at least one category must be configured")
	errDuplicatePlatform    = errors.New("duplicate platform")
	errDuplicateCategory    = errors.New("duplicate category")
	errPlatformIncomplete   = errors.New("platform requires name and dir")
	errCategoryIncomplete   = errors.New("category requires name, prefixes and dir")
	errResourceNameRequired = errors.New("merged category requires resource_name")
	errUnknownBuilder       = errors.New("unknown builder kind")
	errBuilderCommand       = errors.New("command builder requires a command")
	errBaseURLRequired      = errors.New("base_url must be provided")
	errOutputRootRequired   = errors.New("output_root must be provided")

	// ErrUnknownPlatform is returned by Platform for names not in the configuration.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrUnknownCategory is returned by Category for names not in the configuration.
	ErrUnknownCategory = errors.New("unknown category")
)

// Load reads configuration from path, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err = applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks required fields, fills defaults and rejects inconsistent tables.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if cfg.OutputRoot == "" {
		return errOutputRootRequired
	}

	if cfg.BaseURL == "" {
		return errBaseURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if err := validateBuilder(&cfg.Builder); err != nil {
		return err
	}

	if err := validatePlatforms(cfg.Platforms); err != nil {
		return err
	}

	return validateCategories(cfg.Categories)
}

// Platform returns the configured platform with the given name.
func (c *Config) Platform(name string) (bundle.Platform, error) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, nil
		}
	}

	return bundle.Platform{}, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
}

// Category returns the configured category with the given name.
func (c *Config) Category(name string) (bundle.Category, error) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, nil
		}
	}

	return bundle.Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
}

// SourceDir returns the directory scanned for the category's candidates.
func (c *Config) SourceDir(cat *bundle.Category) string {
	return filepath.Join(c.SourceRoot, cat.SourceDir)
}

// PlatformDir returns the platform's output directory.
func (c *Config) PlatformDir(p bundle.Platform) string {
	return filepath.Join(c.OutputRoot, p.Dir)
}

// CategoryDir returns the output directory of a category for a platform.
func (c *Config) CategoryDir(p bundle.Platform, cat *bundle.Category) string {
	return filepath.Join(c.OutputRoot, p.Dir, cat.Dir)
}

// BundlePath returns the on-disk path of a bundle named name.
func (c *Config) BundlePath(p bundle.Platform, cat *bundle.Category, name string) string {
	return filepath.Join(c.CategoryDir(p, cat), name+c.BundleExtension)
}

// DownloadURL returns base URL + platform dir + category dir + name + extension.
func (c *Config) DownloadURL(p bundle.Platform, cat *bundle.Category, name string) string {
	return JoinURL(c.BaseURL, p.Dir, cat.Dir, name+c.BundleExtension)
}

// JoinURL joins URL segments with exactly one slash between them.
func JoinURL(base string, parts ...string) string {
	var builder strings.Builder

	builder.WriteString(strings.TrimRight(base, "/"))

	for _, part := range parts {
		part = strings.Trim(filepath.ToSlash(part), "/")
		if part == "" {
			continue
		}

		builder.WriteString("/")
		builder.WriteString(part)
	}

	return builder.String()
}

func applyEnv(cfg *Config) error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setIfNotEmpty(&cfg.SourceRoot, o.SourceRoot)
	setIfNotEmpty(&cfg.OutputRoot, o.OutputRoot)
	setIfNotEmpty(&cfg.TempRoot, o.TempRoot)
	setIfNotEmpty(&cfg.BaseURL, o.BaseURL)
	setIfNotEmpty(&cfg.HashAlgorithm, o.HashAlgorithm)
	setIfNotEmpty(&cfg.MetricsFile, o.MetricsFile)
	setIfNotEmpty(&cfg.Builder.Kind, o.BuilderKind)
	setIfNotEmpty(&cfg.Builder.Command, o.BuilderCmd)

	if o.Version > 0 {
		cfg.Version = o.Version
	}

	return nil
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func applyDefaults(cfg *Config) {
	if cfg.BundleExtension == "" {
		cfg.BundleExtension = DefaultBundleExtension
	} else if !strings.HasPrefix(cfg.BundleExtension, ".") {
		cfg.BundleExtension = "." + cfg.BundleExtension
	}

	if cfg.Version <= 0 {
		cfg.Version = DefaultVersion
	}

	if cfg.ManifestFilename == "" {
		cfg.ManifestFilename = DefaultManifestFilename
	}

	if cfg.FileListFilename == "" {
		cfg.FileListFilename = DefaultFileListFilename
	}

	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = DefaultHashAlgorithm
	}

	if cfg.TempRoot == "" {
		cfg.TempRoot = filepath.Join(os.TempDir(), "bundle-exporter")
	}

	if cfg.Builder.Kind == "" {
		cfg.Builder.Kind = BuilderArchive
	}
}

func validateBuilder(b *Builder) error {
	switch b.Kind {
	case BuilderArchive:
		return nil
	case BuilderCommand:
		if strings.TrimSpace(b.Command) == "" {
			return errBuilderCommand
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownBuilder, b.Kind)
	}
}

func validatePlatforms(platforms []bundle.Platform) error {
	if len(platforms) == 0 {
		return errNoPlatforms
	}

	seen := make(map[string]struct{}, len(platforms))

	for _, p := range platforms {
		if p.Name == "" || p.Dir == "" {
			return fmt.Errorf("%w: %+v", errPlatformIncomplete, p)
		}

		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("%w: %s", errDuplicatePlatform, p.Name)
		}

		seen[p.Name] = struct{}{}
	}

	return nil
}

func validateCategories(categories []bundle.Category) error {
	if len(categories) == 0 {
		return errNoCategories
	}

	seen := make(map[string]struct{}, len(categories))

	for i := range categories {
		cat := &categories[i]

		if cat.Name == "" || cat.Dir == "" || len(cat.Rules()) == 0 {
			return fmt.Errorf("%w: %q", errCategoryIncomplete, cat.Name)
		}

		if _, ok := seen[cat.Name]; ok {
			return fmt.Errorf("%w: %s", errDuplicateCategory, cat.Name)
		}

		seen[cat.Name] = struct{}{}

		if err := cat.Mode.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", cat.Name, err)
		}

		if cat.Mode == bundle.ModeMerged && cat.ResourceName == "" {
			return fmt.Errorf("%w: %s", errResourceNameRequired, cat.Name)
		}
	}

	return nil
}
