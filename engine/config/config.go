// Package config loads the cooker settings of a project from cooker.toml.
// Every subsystem gets its own typed record; nothing is global.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

const FileName = "cooker.toml"

/** @brief Product information shown by the platforms. */
type GameSettings struct {
	ProductName string `toml:"product_name"`
	CompanyName string `toml:"company_name"`
	Version     string `toml:"version"`
	// FirstScene is relative to the project Content folder.
	FirstScene string `toml:"first_scene"`
	// Icon is an image used for executables and app bundles.
	Icon string `toml:"icon"`
}

/** @brief What to build and where. */
type BuildSettings struct {
	// Target is the scripts target, empty builds the engine only.
	Target        string   `toml:"target"`
	Platform      string   `toml:"platform"`
	Architecture  string   `toml:"architecture"`
	Configuration string   `toml:"configuration"`
	OutputPath    string   `toml:"output_path"`
	CachePath     string   `toml:"cache_path"`
	Defines       []string `toml:"defines"`
	SkipPackaging bool     `toml:"skip_packaging"`
	// AdditionalAssets are cooked on top of the engine root assets.
	AdditionalAssets       []string `toml:"additional_assets"`
	AdditionalAssetFolders []string `toml:"additional_asset_folders"`
}

/** @brief Defaults for textures cooked into Content. */
type TextureSettings struct {
	Compress              bool    `toml:"compress"`
	Family                string  `toml:"family"`
	Quality               string  `toml:"quality"`
	GenerateMipMaps       bool    `toml:"generate_mipmaps"`
	MaxSize               int     `toml:"max_size"`
	PreserveAlphaCoverage bool    `toml:"preserve_alpha_coverage"`
	AlphaCoverageRef      float32 `toml:"alpha_coverage_reference"`
	// Workers is the size of the compression device, zero compresses on
	// the cooker goroutine.
	Workers int `toml:"workers"`
	// ASTCEncoder is the astcenc executable used for ASTC targets.
	ASTCEncoder string `toml:"astc_encoder"`
}

/** @brief Managed runtime deployment. */
type RuntimeSettings struct {
	Flavor          string `toml:"flavor"`
	AOTMode         string `toml:"aot_mode"`
	UseSystemDotnet bool   `toml:"use_system_dotnet"`
	SkipPackaging   bool   `toml:"skip_dotnet_packaging"`
	SkipUnusedLibs  bool   `toml:"skip_unused_libs"`
	MinVersion      int    `toml:"min_version"`
	MaxVersion      int    `toml:"max_version"`
}

/** @brief Engine installation used for cooking. */
type EngineSettings struct {
	Root      string `toml:"root"`
	BuildTool string `toml:"build_tool"`
}

type AndroidSettings struct {
	PackageName string   `toml:"package_name"`
	MinSDK      int      `toml:"min_sdk"`
	TargetSDK   int      `toml:"target_sdk"`
	Permissions []string `toml:"permissions"`
}

type IOSSettings struct {
	BundleIdentifier string `toml:"bundle_identifier"`
	TeamID           string `toml:"team_id"`
	ExportMethod     string `toml:"export_method"`
}

type MacSettings struct {
	BundleIdentifier string `toml:"bundle_identifier"`
	Category         string `toml:"category"`
}

type UWPSettings struct {
	PublisherName   string `toml:"publisher_name"`
	CertificatePath string `toml:"certificate_path"`
}

type GDKSettings struct {
	TitleID   string `toml:"title_id"`
	StoreID   string `toml:"store_id"`
	Publisher string `toml:"publisher"`
}

/** @brief Per platform packaging identity. */
type PlatformSettings struct {
	Android AndroidSettings `toml:"android"`
	IOS     IOSSettings     `toml:"ios"`
	Mac     MacSettings     `toml:"mac"`
	UWP     UWPSettings     `toml:"uwp"`
	GDK     GDKSettings     `toml:"gdk"`
}

type Config struct {
	LogLevel  string           `toml:"log_level"`
	Game      GameSettings     `toml:"game"`
	Build     BuildSettings    `toml:"build"`
	Textures  TextureSettings  `toml:"textures"`
	Runtime   RuntimeSettings  `toml:"runtime"`
	Engine    EngineSettings   `toml:"engine"`
	Platforms PlatformSettings `toml:"platforms"`
}

// Default is the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Build: BuildSettings{
			Platform:      platform.Host().String(),
			Architecture:  platform.HostArchitecture().String(),
			Configuration: platform.ConfigurationDevelopment.String(),
			OutputPath:    filepath.Join("Output", "Cooked"),
			CachePath:     filepath.Join("Cache", "Cooker"),
		},
		Textures: TextureSettings{
			Compress:         true,
			Family:           format.FamilyBC.String(),
			Quality:          compress.QualityMedium.String(),
			GenerateMipMaps:  true,
			MaxSize:          textures.DefaultMaxSize,
			AlphaCoverageRef: 0.5,
		},
		Runtime: RuntimeSettings{
			AOTMode:    dotnet.AOTNone.String(),
			Flavor:     "dotnet",
			MinVersion: dotnet.DefaultMinVersion,
			MaxVersion: dotnet.DefaultMaxVersion,
		},
		Platforms: PlatformSettings{
			Android: AndroidSettings{MinSDK: 24, TargetSDK: 34},
			IOS:     IOSSettings{ExportMethod: "development"},
			Mac:     MacSettings{Category: "public.app-category.games"},
		},
	}
}

// Load reads path on top of Default. A missing file yields the defaults.
// Unknown keys are reported as warnings and otherwise ignored.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("%s not found, using default settings", path)
		return cfg, nil
	}
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "load config", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		for _, e := range strict.Errors {
			core.LogWarn("%s: unknown setting %s", path, strings.Join(e.Key(), "."))
		}
		cfg = Default()
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "load config", path, err)
	}
	return cfg, nil
}

// LoadProject loads cooker.toml from a project folder.
func LoadProject(projectDir string) (*Config, error) {
	return Load(filepath.Join(projectDir, FileName))
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return core.NewError(core.KindIO, "save config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return core.NewPathError(core.KindIO, "save config", path, err)
	}
	return nil
}

// Validate reports every enum value that does not parse.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := core.ParseLogLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if _, err := platform.ParsePlatform(c.Build.Platform); err != nil {
		errs = append(errs, fmt.Errorf("build.platform: %w", err))
	}
	if _, err := platform.ParseArchitecture(c.Build.Architecture); err != nil {
		errs = append(errs, fmt.Errorf("build.architecture: %w", err))
	}
	if _, err := platform.ParseConfiguration(c.Build.Configuration); err != nil {
		errs = append(errs, fmt.Errorf("build.configuration: %w", err))
	}
	if _, ok := format.ParseFamily(c.Textures.Family); !ok {
		errs = append(errs, fmt.Errorf("textures.family: unknown family %q", c.Textures.Family))
	}
	if _, ok := compress.ParseQuality(c.Textures.Quality); !ok {
		errs = append(errs, fmt.Errorf("textures.quality: unknown quality %q", c.Textures.Quality))
	}
	if c.Textures.MaxSize < 0 || c.Textures.Workers < 0 {
		errs = append(errs, errors.New("textures: max_size and workers must not be negative"))
	}
	if _, err := dotnet.ParseAOTMode(c.Runtime.AOTMode); err != nil {
		errs = append(errs, fmt.Errorf("runtime.aot_mode: %w", err))
	}
	if _, err := c.Runtime.RuntimeFlavor(); err != nil {
		errs = append(errs, fmt.Errorf("runtime.flavor: %w", err))
	}
	if c.Runtime.MinVersion > c.Runtime.MaxVersion {
		errs = append(errs, fmt.Errorf("runtime: min_version %d above max_version %d", c.Runtime.MinVersion, c.Runtime.MaxVersion))
	}
	if len(errs) > 0 {
		return core.NewError(core.KindValidation, "validate config", errors.Join(errs...))
	}
	return nil
}

// Triple returns the parsed platform, architecture and configuration.
// Call Validate first.
func (b *BuildSettings) Triple() (platform.Platform, platform.Architecture, platform.Configuration) {
	p, _ := platform.ParsePlatform(b.Platform)
	a, _ := platform.ParseArchitecture(b.Architecture)
	c, _ := platform.ParseConfiguration(b.Configuration)
	return p, a, c
}

func (r *RuntimeSettings) RuntimeFlavor() (dotnet.RuntimeFlavor, error) {
	switch strings.ToLower(r.Flavor) {
	case "", "dotnet":
		return dotnet.FlavorDotnet, nil
	case "mono":
		return dotnet.FlavorMono, nil
	}
	return dotnet.FlavorDotnet, fmt.Errorf("unknown runtime flavor %q", r.Flavor)
}

func (r *RuntimeSettings) AOT() dotnet.AOTMode {
	m, _ := dotnet.ParseAOTMode(r.AOTMode)
	return m
}

// ImportOptions turns the texture defaults into importer options.
func (t *TextureSettings) ImportOptions() textures.ImportOptions {
	opts := textures.DefaultImportOptions()
	opts.Compress = t.Compress
	opts.GenerateMipMaps = t.GenerateMipMaps
	opts.PreserveAlphaCoverage = t.PreserveAlphaCoverage
	if t.AlphaCoverageRef > 0 {
		opts.AlphaCoverageReference = t.AlphaCoverageRef
	}
	if t.MaxSize > 0 {
		opts.MaxSize = t.MaxSize
	}
	if f, ok := format.ParseFamily(t.Family); ok {
		opts.Family = f
	}
	if q, ok := compress.ParseQuality(t.Quality); ok {
		opts.Quality = q
	}
	return opts
}
