// Package platforms holds the per-platform half of a cook: where the
// output goes, which binaries are native and how the result is packaged.
package platforms

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

// New returns the tools cooking for p on arch.
func New(p platform.Platform, arch platform.Architecture) (cooker.PlatformTools, error) {
	b := base{platform: p, arch: arch, getenv: os.Getenv}
	switch p {
	case platform.PlatformWindows:
		return &Windows{base: b}, nil
	case platform.PlatformLinux:
		return &Linux{base: b}, nil
	case platform.PlatformMac:
		return &Mac{base: b}, nil
	case platform.PlatformAndroid:
		return &Android{base: b}, nil
	case platform.PlatformIOS:
		return &IOS{base: b}, nil
	case platform.PlatformUWP:
		return &UWP{base: b}, nil
	case platform.PlatformGDK:
		return &GDK{base: b}, nil
	}
	return nil, core.Errorf(core.KindUnsupported, "platform tools", "cannot cook for %s", p)
}

// base is embedded by every platform.
type base struct {
	platform platform.Platform
	arch     platform.Architecture
	// getenv reads the build machine environment.
	getenv func(string) string
}

func (b *base) Name() string {
	return b.platform.String() + " " + b.arch.String()
}

func (b *base) Platform() platform.Platform         { return b.platform }
func (b *base) Architecture() platform.Architecture { return b.arch }
func (b *base) AOTMode() dotnet.AOTMode             { return dotnet.AOTNone }

func (b *base) OnBuildStarted(data *cooker.CookingData) {}

// env returns the first of keys that is set.
func (b *base) env(keys ...string) (string, bool) {
	getenv := b.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, k := range keys {
		if v := getenv(k); v != "" {
			return v, true
		}
	}
	return "", false
}

// requireEnv is env failing with a Validation error naming every key.
func (b *base) requireEnv(keys ...string) (string, error) {
	if v, ok := b.env(keys...); ok {
		return v, nil
	}
	return "", core.Errorf(core.KindValidation, b.platform.String()+" packaging", "environment variable %s is not set", strings.Join(keys, " or "))
}

// FileSafeName keeps letters, digits, dashes, underscores and dots of
// name, so it can be used for executables and bundles.
func FileSafeName(name string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return -1
	}, name)
	if s == "" {
		return "Game"
	}
	return s
}

// productName is safe to call before the settings are loaded.
func productName(data *cooker.CookingData) string {
	if data.Settings == nil {
		return ""
	}
	return data.Settings.Game.ProductName
}

// ProjectGUID is stable for a given company and product.
func ProjectGUID(data *cooker.CookingData) uuid.UUID {
	game := data.Settings.Game
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("anima://"+game.CompanyName+"/"+game.ProductName))
}

// templateVars are the ${Key} values shared by every platform template.
func templateVars(data *cooker.CookingData) map[string]string {
	game := data.Settings.Game
	version := game.Version
	if version == "" {
		version = "1.0.0"
	}
	return map[string]string{
		"ProductName":   game.ProductName,
		"CompanyName":   game.CompanyName,
		"Version":       version,
		"Executable":    FileSafeName(game.ProductName),
		"Target":        data.Target,
		"Platform":      data.Platform.String(),
		"Architecture":  data.Architecture.String(),
		"Configuration": data.Configuration.String(),
		"Guid":          ProjectGUID(data).String(),
	}
}

// renameExecutable moves the engine executable of dir to the product
// name. A missing executable is logged and reported as "".
func renameExecutable(dir, from, to string) (string, error) {
	src := filepath.Join(dir, from)
	dst := filepath.Join(dir, to)
	if !platform.Exists(src) {
		if platform.Exists(dst) {
			return dst, nil
		}
		core.LogWarn("game executable %s not found", src)
		return "", nil
	}
	if src == dst {
		return dst, nil
	}
	if err := os.Rename(src, dst); err != nil {
		return "", core.NewPathError(core.KindIO, "rename executable", src, err)
	}
	return dst, nil
}

// run starts a packaging tool.
func run(data *cooker.CookingData, name string, opts ...platform.CmdOption) error {
	cmd := platform.NewCommand(name, append(opts, platform.WithStream())...)
	core.LogInfo("packaging: %s", cmd.CommandLine())
	if _, err := data.Runner.Run(data.Context(), cmd); err != nil {
		return err
	}
	return nil
}

func writeFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewPathError(core.KindIO, "write", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return core.NewPathError(core.KindIO, "write", path, err)
	}
	return nil
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func skipPackaging(data *cooker.CookingData, what string) bool {
	if data.SkipPackaging {
		core.LogInfo("skipping %s", what)
		return true
	}
	return false
}
