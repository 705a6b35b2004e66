// Package cooker turns a project into a runnable game for one platform.
// A cook is a fixed list of steps sharing a CookingData.
package cooker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-cooker/engine/config"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/cache"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/modules"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// EngineTarget is built when the project has no scripts target of its own.
const EngineTarget = "FlaxGame"

// PlatformTools is the per-platform part of a cook.
type PlatformTools interface {
	modules.NativeCodeFilter

	Name() string
	Platform() platform.Platform
	Architecture() platform.Architecture
	// AOTMode is the precompilation the platform needs, AOTNone when it
	// runs JIT.
	AOTMode() dotnet.AOTMode
	// OnBuildStarted may move the output roots, for example into an app
	// bundle.
	OnBuildStarted(data *CookingData)
	// OnPostProcess packages the cooked output.
	OnPostProcess(data *CookingData) error
}

// CookingData is the context passed to every step of a cook.
type CookingData struct {
	// Target is the scripts target, EngineTarget when the project has none.
	Target        string
	Platform      platform.Platform
	Architecture  platform.Architecture
	Configuration platform.Configuration

	ProjectDir string
	EngineRoot string

	// OriginalOutputPath is the folder the user asked for. The platform
	// tools route the other roots below it.
	OriginalOutputPath    string
	DataOutputPath        string
	NativeCodeOutputPath  string
	ManagedCodeOutputPath string
	CachePath             string

	CustomDefines []string
	SkipPackaging bool

	// BinaryModules is filled by CompileScripts.
	BinaryModules []modules.BinaryModule
	// RootAssets is filled by DeployData, relative to the project folder.
	RootAssets []string
	// Runtime is the runtime staged by DeployData.
	Runtime *dotnet.Runtime

	Settings *config.Config
	Tools    PlatformTools
	Runner   platform.Runner
	Cache    *cache.Cache
	Events   *core.EventBus
	// Device compresses textures, nil compresses on the cook goroutine.
	Device *compress.Device

	SessionID uuid.UUID

	ctx      context.Context
	progress func(label string, p float32)
	log      func(msg string)
}

// NewCookingData fills a CookingData from the project settings. The
// output folders are created by the Validate step.
func NewCookingData(projectDir string, cfg *config.Config, tools PlatformTools) *CookingData {
	p, a, c := cfg.Build.Triple()
	if tools != nil {
		p, a = tools.Platform(), tools.Architecture()
	}
	abs := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(projectDir, path)
	}
	out := abs(cfg.Build.OutputPath)
	return &CookingData{
		Target:                cfg.Build.Target,
		Platform:              p,
		Architecture:          a,
		Configuration:         c,
		ProjectDir:            projectDir,
		EngineRoot:            abs(cfg.Engine.Root),
		OriginalOutputPath:    out,
		DataOutputPath:        out,
		NativeCodeOutputPath:  out,
		ManagedCodeOutputPath: out,
		CachePath:             filepath.Join(abs(cfg.Build.CachePath), p.String(), a.String(), c.String()),
		CustomDefines:         append([]string(nil), cfg.Build.Defines...),
		SkipPackaging:         cfg.Build.SkipPackaging,
		Settings:              cfg,
		Tools:                 tools,
		Runner:                &platform.ExecRunner{},
	}
}

// Context is the context of the running cook.
func (d *CookingData) Context() context.Context {
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// IsCancelled reports whether the cook was asked to stop.
func (d *CookingData) IsCancelled() bool {
	return d.Context().Err() != nil
}

// StepProgress reports progress of the current step in [0, 1] and
// returns a Cancelled error once the cook was asked to stop.
func (d *CookingData) StepProgress(label string, p float32) error {
	if d.progress != nil {
		d.progress(label, p)
	}
	if err := d.Context().Err(); err != nil {
		return core.NewError(core.KindCancelled, label, err)
	}
	return nil
}

// Error adds a message to the cook log without failing the step.
func (d *CookingData) Error(msg string) {
	core.LogError("%s", msg)
	if d.log != nil {
		d.log(msg)
	}
}

// ContentPath is the folder cooked assets are written to.
func (d *CookingData) ContentPath() string {
	return filepath.Join(d.DataOutputPath, "Content")
}

// PlatformDataPath is the engine data installed for the target platform.
func (d *CookingData) PlatformDataPath() string {
	return filepath.Join(d.EngineRoot, "Source", "Platforms", d.Platform.String())
}

// BuildTool is the engine build tool executable.
func (d *CookingData) BuildTool() string {
	if d.Settings != nil && d.Settings.Engine.BuildTool != "" {
		return d.Settings.Engine.BuildTool
	}
	name := "Flax.Build"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(d.EngineRoot, "Binaries", "Tools", name)
}

// WorkingDir is where the build tool runs: the engine for engine-only
// builds, the project otherwise.
func (d *CookingData) WorkingDir() string {
	if d.Target == EngineTarget || d.Target == "" {
		return d.EngineRoot
	}
	return d.ProjectDir
}

// RunBuildTool runs the engine build tool with args.
func (d *CookingData) RunBuildTool(args ...string) (string, error) {
	cmd := platform.NewCommand(d.BuildTool(),
		platform.WithArgs(args...),
		platform.WithDir(d.WorkingDir()),
		platform.WithStream())
	return d.Runner.Run(d.Context(), cmd)
}

// RuntimeOptions configures the runtime staging for this cook.
func (d *CookingData) RuntimeOptions() dotnet.Options {
	opts := dotnet.Options{
		Platform:      d.Platform,
		Architecture:  d.Architecture,
		Configuration: d.Configuration,
		EngineRoot:    d.EngineRoot,
		PlatformData:  d.PlatformDataPath(),
		DataOutput:    d.DataOutputPath,
		NativeOutput:  d.NativeCodeOutputPath,
		ManagedOutput: d.ManagedCodeOutputPath,
		CachePath:     d.CachePath,
		BuildTool:     d.BuildTool(),
		WorkingDir:    d.WorkingDir(),
		Runner:        d.Runner,
	}
	if d.Tools != nil {
		opts.AOT = d.Tools.AOTMode()
	}
	if s := d.Settings; s != nil {
		if m := s.Runtime.AOT(); m != dotnet.AOTNone {
			opts.AOT = m
		}
		opts.Flavor, _ = s.Runtime.RuntimeFlavor()
		opts.UseSystemDotnet = s.Runtime.UseSystemDotnet
		opts.SkipPackaging = s.Runtime.SkipPackaging
		opts.SkipUnusedLibs = s.Runtime.SkipUnusedLibs
		opts.MinVersion = s.Runtime.MinVersion
		opts.MaxVersion = s.Runtime.MaxVersion
	}
	return opts
}

// TextureOptions are the import options for textures cooked into Content.
func (d *CookingData) TextureOptions() textures.ImportOptions {
	opts := textures.DefaultImportOptions()
	if d.Settings != nil {
		opts = d.Settings.Textures.ImportOptions()
	}
	// Mobile GPUs do not sample BC formats.
	if d.Platform.IsMobile() && opts.Family == format.FamilyBC {
		opts.Family = format.FamilyASTC
	}
	if opts.Family == format.FamilyASTC {
		opts.ASTC = &compress.ASTCEncoder{Runner: d.Runner, WorkDir: filepath.Join(d.CachePath, "astc")}
		if d.Settings != nil {
			opts.ASTC.Tool = d.Settings.Textures.ASTCEncoder
		}
	}
	opts.Device = d.Device
	return opts
}

// mkdirs creates every output root.
func (d *CookingData) mkdirs() error {
	for _, dir := range []string{d.OriginalOutputPath, d.DataOutputPath, d.NativeCodeOutputPath, d.ManagedCodeOutputPath, d.CachePath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return core.NewPathError(core.KindIO, "create output", dir, err)
		}
	}
	return nil
}
