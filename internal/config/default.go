package config

import "github.com/oshokin/bundle-exporter/internal/domain/bundle"

// Default returns a sample configuration laid out like a typical client
// project: loose GUI, model, effect and texture prefabs exported one bundle
// per asset, data tables merged into a single versioned bundle.
func Default() *Config {
	return &Config{
		SourceRoot:          "Assets",
		OutputRoot:          "res",
		TempRoot:            "Assets/TmpRes",
		BaseURL:             "http://localhost/res/",
		BundleExtension:     DefaultBundleExtension,
		Version:             DefaultVersion,
		ManifestFilename:    DefaultManifestFilename,
		FileListFilename:    DefaultFileListFilename,
		FileListExclude:     DefaultFileListExclude,
		HashAlgorithm:       DefaultHashAlgorithm,
		CompositeExtensions: []string{".prefab"},
		Builder: Builder{
			Kind: BuilderArchive,
			Targets: map[string]string{
				"win":     "StandaloneWindows",
				"ios":     "iPhone",
				"android": "Android",
			},
		},
		Platforms: []bundle.Platform{
			{Name: "win", Dir: "win32test"},
			{Name: "ios", Dir: "ios"},
			{Name: "android", Dir: "android"},
		},
		Categories: []bundle.Category{
			{
				Name:      "GUI",
				Prefixes:  "GUI,BATTLE",
				SourceDir: "ResourcesWWW",
				Dir:       "GUI",
				Mode:      bundle.ModePerAsset,
				Shared: &bundle.SharedBundle{
					Name: "Share",
					Assets: []string{
						"_BF/Font/FZDHTJW.TTF",
						"_BF/Font/FZHLJW.TTF",
						"_BF/GUI/Common/common.prefab",
						"_BF/GUI/Property/property.prefab",
						"ResourcesWWW/GUIAvatarM1.prefab",
						"ResourcesWWW/GUIAvatarM2.prefab",
						"ResourcesWWW/GUIAvatarM3.prefab",
						"ResourcesWWW/GUIItemM1.prefab",
						"ResourcesWWW/GUIItemM2.prefab",
					},
				},
			},
			{Name: "Model", Prefixes: "MODEL", SourceDir: "ResourcesWWW", Dir: "Model", Mode: bundle.ModePerAsset},
			{Name: "Effect", Prefixes: "effect", SourceDir: "ResourcesWWW", Dir: "Effect", Mode: bundle.ModePerAsset},
			{Name: "Tex", Prefixes: "Tex", SourceDir: "ResourcesWWW", Dir: "Tex", Mode: bundle.ModePerAsset},
			{
				Name:         "Table",
				Prefixes:     "TABLE",
				SourceDir:    "ResourcesWWW",
				Dir:          "Table",
				Mode:         bundle.ModeMerged,
				ResourceName: "table",
			},
			{
				Name:         "GUICache",
				Prefixes:     "GUI,BATTLE",
				SourceDir:    "ResourcesCache",
				Dir:          "GUICache",
				Mode:         bundle.ModeMerged,
				ResourceName: "gui_cache",
			},
			{Name: "Avatar", Prefixes: "Tex", SourceDir: "ResourcesHeroCache/AvatarM", Dir: "AvatarM", Mode: bundle.ModePerAsset},
			{Name: "Item", Prefixes: "item", SourceDir: "ResourcesHeroCache/Item", Dir: "Item", Mode: bundle.ModePerAsset},
		},
	}
}
