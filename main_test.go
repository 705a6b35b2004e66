package main

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/config"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("256X128")
	if err != nil || w != 256 || h != 128 {
		t.Errorf("parseSize = %d, %d, %v", w, h, err)
	}
	for _, bad := range []string{"256", "0x4", "4x", "axb", "-1x2"} {
		if _, _, err := parseSize(bad); err == nil {
			t.Errorf("parseSize(%q) succeeded", bad)
		}
	}
}

func TestCookFlagsOverrideOnlyWhatIsSet(t *testing.T) {
	flags, fs, err := parseCookFlags([]string{"--platform", "Android", "--arch=ARM64", "--skip-packaging"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Build.Configuration = "Release"
	cfg.Build.OutputPath = "Builds"
	flags.apply(fs, cfg)

	if cfg.Build.Platform != "Android" || cfg.Build.Architecture != "ARM64" || !cfg.Build.SkipPackaging {
		t.Errorf("build = %+v", cfg.Build)
	}
	if cfg.Build.Configuration != "Release" || cfg.Build.OutputPath != "Builds" {
		t.Errorf("unset flags changed the settings: %+v", cfg.Build)
	}
}

func TestCookFlagsRejectStrayArguments(t *testing.T) {
	if _, _, err := parseCookFlags([]string{"Windows"}); !errors.Is(err, errUsage) {
		t.Errorf("err = %v", err)
	}
	if _, _, err := parseCookFlags([]string{"--bogus"}); !errors.Is(err, errUsage) {
		t.Errorf("err = %v", err)
	}
}

func TestRunExitCodes(t *testing.T) {
	if code := run(nil); code != exitUsage {
		t.Errorf("no command = %d", code)
	}
	if code := run([]string{"bake"}); code != exitUsage {
		t.Errorf("unknown command = %d", code)
	}
	if code := run([]string{"texture", "--in", "a.png"}); code != exitUsage {
		t.Errorf("missing --out = %d", code)
	}
	if code := run([]string{"texture", "--in", filepath.Join(t.TempDir(), "missing.png"), "--out", filepath.Join(t.TempDir(), "out.dds")}); code != exitFailed {
		t.Errorf("missing input = %d", code)
	}
}

func TestTextureCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	img := image.NewNRGBA(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := filepath.Join(dir, "out.dds")
	args := []string{"--in", in, "--out", out, "--compress=false", "--mips=false", "--size", "8x4", "--log-level", "error"}
	if err := runTexture(context.Background(), args); err != nil {
		t.Fatal(err)
	}
	data, err := textures.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if data.Width != 8 || data.Height != 4 || data.MipLevels() != 1 {
		t.Errorf("got %dx%d with %d mips", data.Width, data.Height, data.MipLevels())
	}
	if format.IsCompressed(data.Format) {
		t.Errorf("format %s is compressed", data.Format)
	}
}
