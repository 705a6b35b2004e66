package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/peicon"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// parseSize reads a WxH pair.
func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("size %q has a bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("size %q has a bad height", s)
	}
	return width, height, nil
}

type textureFlags struct {
	in, out     string
	kind        string
	compress    bool
	mips        bool
	srgb        bool
	size        string
	family      string
	quality     string
	astcEncoder string
	flipY       bool
	invertGreen bool
	logLevel    string
}

// options turns the flags into import options.
func (f *textureFlags) options() (textures.ImportOptions, error) {
	opts := textures.DefaultImportOptions()
	opts.Compress = f.compress
	opts.GenerateMipMaps = f.mips
	opts.SRGB = f.srgb
	opts.FlipY = f.flipY
	opts.InvertGreen = f.invertGreen

	var ok bool
	if opts.Type, ok = textures.ParseTextureType(f.kind); !ok {
		return opts, fmt.Errorf("unknown texture type %q", f.kind)
	}
	if opts.Family, ok = format.ParseFamily(f.family); !ok {
		return opts, fmt.Errorf("unknown compression family %q", f.family)
	}
	if opts.Quality, ok = compress.ParseQuality(f.quality); !ok {
		return opts, fmt.Errorf("unknown quality %q", f.quality)
	}
	if f.size != "" {
		w, h, err := parseSize(f.size)
		if err != nil {
			return opts, err
		}
		opts.Resize = true
		opts.SizeX, opts.SizeY = w, h
	}
	if opts.Family == format.FamilyASTC {
		opts.ASTC = &compress.ASTCEncoder{
			Tool:    f.astcEncoder,
			Runner:  &platform.ExecRunner{},
			WorkDir: filepath.Dir(f.out),
		}
	}
	return opts, nil
}

func runTexture(ctx context.Context, args []string) error {
	f := &textureFlags{}
	fs := pflag.NewFlagSet("texture", pflag.ContinueOnError)
	fs.StringVar(&f.in, "in", "", "source image")
	fs.StringVar(&f.out, "out", "", "destination, the extension picks the container")
	fs.StringVar(&f.kind, "type", textures.TypeAuto.String(), "Auto, ColorRGB, ColorRGBA, NormalMap, GrayScale or HDR")
	fs.BoolVar(&f.compress, "compress", true, "block compress the result")
	fs.BoolVar(&f.mips, "mips", true, "generate the mip chain")
	fs.BoolVar(&f.srgb, "srgb", false, "store color in sRGB")
	fs.StringVar(&f.size, "size", "", "resize to WxH")
	fs.StringVar(&f.family, "family", format.FamilyBC.String(), "block compression family, BC or ASTC")
	fs.StringVar(&f.quality, "quality", compress.QualityMedium.String(), "compression quality")
	fs.StringVar(&f.astcEncoder, "astc-encoder", "", "astcenc executable for ASTC targets")
	fs.BoolVar(&f.flipY, "flip-y", false, "flip the image vertically")
	fs.BoolVar(&f.invertGreen, "invert-green", false, "invert the green channel, for normal maps")
	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := setLogLevel(f.logLevel); err != nil {
		return err
	}
	if f.in == "" || f.out == "" {
		return fmt.Errorf("%w: --in and --out are required", errUsage)
	}
	opts, err := f.options()
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	data, hasAlpha, err := textures.Import(ctx, f.in, opts)
	if err != nil {
		return err
	}
	if err := textures.Export(ctx, f.out, data, compress.Options{Quality: opts.Quality, ASTC: opts.ASTC}); err != nil {
		return err
	}
	core.LogInfo("%s: %dx%d %s, %d mips, alpha %t", f.out, data.Width, data.Height, data.Format, data.MipLevels(), hasAlpha)
	return nil
}

func runIcon(ctx context.Context, args []string) error {
	var exe, image, logLevel string
	fs := pflag.NewFlagSet("icon", pflag.ContinueOnError)
	fs.StringVar(&exe, "exe", "", "Windows executable to update")
	fs.StringVar(&image, "image", "", "icon source image")
	fs.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := setLogLevel(logLevel); err != nil {
		return err
	}
	if exe == "" || image == "" {
		return fmt.Errorf("%w: --exe and --image are required", errUsage)
	}

	icon, err := textures.Load(image)
	if err != nil {
		return err
	}
	if err := peicon.UpdateIcon(ctx, exe, icon); err != nil {
		if peicon.IsWarning(err) {
			core.LogWarn("%s left unchanged: %s", exe, err)
			return nil
		}
		return err
	}
	core.LogInfo("updated the icon of %s", exe)
	return nil
}

func runIcons(ctx context.Context, args []string) error {
	var exe string
	fs := pflag.NewFlagSet("icons", pflag.ContinueOnError)
	fs.StringVar(&exe, "exe", "", "Windows executable to inspect")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if exe == "" {
		return fmt.Errorf("%w: --exe is required", errUsage)
	}
	icons, err := peicon.ReadIcons(exe)
	if err != nil {
		return err
	}
	for _, icon := range icons {
		fmt.Printf("%dx%d\t0x%x\n", icon.Width, icon.Height, icon.Offset)
	}
	return nil
}
