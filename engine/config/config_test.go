package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

const sample = `
log_level = "debug"

[game]
product_name = "Space Rocks"
company_name = "Anima"
first_scene = "Scenes/Main.scene"

[build]
target = "GameTarget"
platform = "Android"
architecture = "ARM64"
configuration = "Release"
defines = ["ROCKS_DEMO"]

[textures]
family = "ASTC"
quality = "high"
workers = 4

[runtime]
aot_mode = "ILC"
flavor = "mono"

[platforms.android]
package_name = "com.anima.rocks"
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Game.ProductName != "Space Rocks" || cfg.Build.Defines[0] != "ROCKS_DEMO" {
		t.Errorf("unexpected %+v", cfg)
	}
	p, a, c := cfg.Build.Triple()
	if p != platform.PlatformAndroid || a != platform.ArchARM64 || c != platform.ConfigurationRelease {
		t.Errorf("triple %s %s %s", p, a, c)
	}
	// Keys missing from the file keep their defaults.
	if !cfg.Textures.Compress || cfg.Textures.MaxSize != 8192 || cfg.Platforms.Android.TargetSDK != 34 {
		t.Errorf("defaults lost: %+v", cfg.Textures)
	}
	opts := cfg.Textures.ImportOptions()
	if opts.Family != format.FamilyASTC || opts.Quality != compress.QualityHigh {
		t.Errorf("import options %+v", opts)
	}
	if cfg.Runtime.AOT() != dotnet.AOTILC {
		t.Errorf("aot %s", cfg.Runtime.AOT())
	}
	if f, _ := cfg.Runtime.RuntimeFlavor(); f != dotnet.FlavorMono {
		t.Error("flavor not parsed")
	}
}

func TestLoadToleratesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	os.WriteFile(path, []byte("[game]\nproduct_name = \"X\"\nsplash_color = \"red\"\n"), 0o644)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Game.ProductName != "X" {
		t.Errorf("known keys dropped: %+v", cfg.Game)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadProject(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cfg := Default()
	cfg.Build.Platform = "Dreamcast"
	cfg.Textures.Quality = "ultra"
	cfg.Runtime.AOTMode = "JIT"
	err := cfg.Validate()
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	cfg.Game.CompanyName = "Anima"
	cfg.Platforms.GDK.TitleID = "1234ABCD"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Game.CompanyName != "Anima" || got.Platforms.GDK.TitleID != "1234ABCD" {
		t.Errorf("got %+v", got)
	}
}
