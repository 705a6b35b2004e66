package dotnet

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

// AOTDir is the intermediate folder for precompiled assemblies.
func (o *Options) AOTDir() string {
	return filepath.Join(o.CachePath, AOTCacheFolder)
}

// RunAOT precompiles the managed output and returns the folder holding
// the compiled assemblies. The reflection-heavy Newtonsoft.Json build is
// replaced with the AOT-safe one shipped with the engine first.
func RunAOT(ctx context.Context, opts Options) (string, error) {
	if opts.AOT == AOTNone {
		return "", nil
	}
	if opts.Runner == nil || opts.BuildTool == "" {
		return "", core.Errorf(core.KindValidation, "precompile assemblies", "no build tool configured")
	}
	out := opts.AOTDir()
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", core.NewPathError(core.KindIO, "precompile assemblies", out, err)
	}

	dst := filepath.Join(opts.ManagedOutput, newtonsoftDLL)
	if platform.Exists(dst) {
		src := filepath.Join(opts.EngineRoot, "Source", "Platforms", "DotNet", "AOT", newtonsoftDLL)
		if !platform.Exists(src) {
			core.LogWarn("AOT-safe %s not found at %s", newtonsoftDLL, src)
		} else if err := platform.CopyFile(src, dst); err != nil {
			return "", err
		}
	}

	args := []string{
		"-runDotNetAOT",
		"-platform=" + opts.Platform.String(),
		"-arch=" + opts.Architecture.String(),
		"-configuration=" + opts.Configuration.String(),
		"-aotMode=" + opts.AOT.String(),
		"-binaries=" + opts.ManagedOutput,
		"-intermediate=" + out,
	}
	if opts.SkipUnusedLibs {
		args = append(args, "-skipUnusedDotnetLibs")
	}
	if _, err := opts.run(ctx, args...); err != nil {
		return "", err
	}
	core.LogInfo("precompiled assemblies with %s into %s", opts.AOT, out)
	return out, nil
}
