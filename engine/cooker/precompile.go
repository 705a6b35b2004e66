package cooker

import (
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/cooker/cache"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

// PrecompileAssembliesStep compiles the managed assemblies ahead of time
// on platforms that cannot JIT.
type PrecompileAssembliesStep struct{}

func (s *PrecompileAssembliesStep) Name() string { return "PrecompileAssemblies" }

func (s *PrecompileAssembliesStep) OnBuildStarted(data *CookingData) {}

// aotKey changes whenever the precompiled output could differ.
func aotKey(data *CookingData, opts *dotnet.Options) (string, error) {
	var toolTime int64
	if info, err := os.Stat(opts.BuildTool); err == nil {
		toolTime = info.ModTime().UnixNano()
	}
	return cache.SummaryKey(opts.AOT.String(), opts.Configuration.String(), opts.SkipUnusedLibs, toolTime, data.CustomDefines)
}

func (s *PrecompileAssembliesStep) Perform(data *CookingData) error {
	opts := data.RuntimeOptions()
	if opts.AOT == dotnet.AOTNone {
		return data.StepProgress("No precompilation needed", 1)
	}
	if err := data.StepProgress("Checking precompiled assemblies", 0); err != nil {
		return err
	}

	key, err := aotKey(data, &opts)
	if err != nil {
		return err
	}
	// The AOT output folder is the cache step folder so a key change
	// wipes it. The key is only recorded after a complete run.
	upToDate, err := data.Cache.Check(dotnet.AOTCacheFolder, key)
	if err != nil {
		return err
	}
	out := opts.AOTDir()
	if upToDate {
		core.LogInfo("precompiled assemblies are up to date")
	} else {
		if err := data.StepProgress("Precompiling assemblies ("+opts.AOT.String()+")", 0.1); err != nil {
			return err
		}
		if out, err = dotnet.RunAOT(data.Context(), opts); err != nil {
			if ierr := data.Cache.Invalidate(dotnet.AOTCacheFolder); ierr != nil {
				core.LogWarn("%s", ierr)
			}
			return err
		}
		if err := data.Cache.Commit(dotnet.AOTCacheFolder, key); err != nil {
			return err
		}
	}

	if err := data.StepProgress("Deploying precompiled assemblies", 0.9); err != nil {
		return err
	}
	if err := deployAOT(out, data.ManagedCodeOutputPath); err != nil {
		return err
	}
	return data.StepProgress("Assemblies precompiled", 1)
}

// deployAOT copies the compiled assemblies next to the managed output,
// leaving the cache bookkeeping behind.
func deployAOT(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return core.NewPathError(core.KindIO, "deploy precompiled", src, err)
	}
	for _, e := range entries {
		if e.Name() == cache.SummaryFile {
			continue
		}
		from, to := filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())
		if e.IsDir() {
			err = platform.CopyTree(from, to, true)
		} else {
			err = platform.CopyFile(from, to)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
