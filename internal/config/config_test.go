package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

// TestValidate checks required fields, defaults and table consistency.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cfg := Default()
	require.NoError(t, Validate(cfg))

	// Missing base URL.
	cfg = Default()
	cfg.BaseURL = ""
	require.ErrorIs(t, Validate(cfg), errBaseURLRequired)

	// Malformed base URL.
	cfg = Default()
	cfg.BaseURL = "not a url"
	require.Error(t, Validate(cfg))

	// Duplicate category.
	cfg = Default()
	cfg.Categories = append(cfg.Categories, cfg.Categories[0])
	require.ErrorIs(t, Validate(cfg), errDuplicateCategory)

	// Duplicate platform.
	cfg = Default()
	cfg.Platforms = append(cfg.Platforms, cfg.Platforms[0])
	require.ErrorIs(t, Validate(cfg), errDuplicatePlatform)

	// Merged category without a resource name.
	cfg = Default()
	cfg.Categories = []bundle.Category{{Name: "Table", Prefixes: "TABLE", Dir: "Table", Mode: bundle.ModeMerged}}
	require.ErrorIs(t, Validate(cfg), errResourceNameRequired)

	// Unknown mode.
	cfg = Default()
	cfg.Categories = []bundle.Category{{Name: "Table", Prefixes: "TABLE", Dir: "Table", Mode: "zip"}}
	require.ErrorIs(t, Validate(cfg), bundle.ErrUnknownMode)

	// Command builder without a command.
	cfg = Default()
	cfg.Builder.Kind = BuilderCommand
	require.ErrorIs(t, Validate(cfg), errBuilderCommand)
}

// TestValidateDefaults fills unset optional fields.
func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.BundleExtension = "bin"
	cfg.Version = 0
	cfg.ManifestFilename = ""
	cfg.HashAlgorithm = ""
	cfg.Builder.Kind = ""

	require.NoError(t, Validate(cfg))
	require.Equal(t, ".bin", cfg.BundleExtension)
	require.Equal(t, DefaultVersion, cfg.Version)
	require.Equal(t, DefaultManifestFilename, cfg.ManifestFilename)
	require.Equal(t, DefaultHashAlgorithm, cfg.HashAlgorithm)
	require.Equal(t, BuilderArchive, cfg.Builder.Kind)
}

// TestSaveLoadRoundtrip ensures the configuration is persisted and loaded back.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exporter.yaml")

	cfg := Default()
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Platforms, loaded.Platforms)
	require.Equal(t, cfg.Categories, loaded.Categories)
	require.Equal(t, cfg.BaseURL, loaded.BaseURL)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadEnvOverrides applies BUNDLE_* variables on top of the file.
func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.yaml")
	require.NoError(t, Save(path, Default()))

	t.Setenv("BUNDLE_BASE_URL", "https://cdn.example.com/game/res")
	t.Setenv("BUNDLE_VERSION", "7")
	t.Setenv("BUNDLE_HASH_ALGORITHM", "blake3")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/game/res", cfg.BaseURL)
	require.Equal(t, 7, cfg.Version)
	require.Equal(t, "blake3", cfg.HashAlgorithm)
}

// TestLookupsAndPaths covers platform/category lookup and path helpers.
func TestLookupsAndPaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, Validate(cfg))

	p, err := cfg.Platform("win")
	require.NoError(t, err)
	require.Equal(t, "win32test", p.Dir)

	_, err = cfg.Platform("psp")
	require.ErrorIs(t, err, ErrUnknownPlatform)

	cat, err := cfg.Category("Table")
	require.NoError(t, err)

	_, err = cfg.Category("Sound")
	require.ErrorIs(t, err, ErrUnknownCategory)

	require.Equal(t, "http://localhost/res/win32test/Table/table.res", cfg.DownloadURL(p, &cat, "table"))
	require.Equal(t, filepath.Join("res", "win32test", "Table", "table.res"), cfg.BundlePath(p, &cat, "table"))
	require.Equal(t, filepath.Join("Assets", "ResourcesWWW"), cfg.SourceDir(&cat))
}

// TestJoinURL normalises slashes between segments.
func TestJoinURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://h/res/ios/Table/table.res", JoinURL("http://h/res/", "ios/", "/Table/", "table.res"))
	require.Equal(t, "http://h/a.res", JoinURL("http://h", "", "a.res"))
}
