package cooker

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/config"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/cache"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/modules"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

var (
	ErrNoPlatformTools      = errors.New("no platform tools")
	ErrPlatformNotInstalled = errors.New("platform data is not installed")
	ErrMissingProductName   = errors.New("game product name is empty")
	ErrMissingCompanyName   = errors.New("game company name is empty")
	ErrMissingFirstScene    = errors.New("first scene is not set")
)

// ValidateStep prepares the output folders and checks the game settings.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return "Validate" }

func (s *ValidateStep) OnBuildStarted(data *CookingData) {}

func (s *ValidateStep) Perform(data *CookingData) error {
	if err := data.StepProgress("Validating settings", 0); err != nil {
		return err
	}
	if data.Tools == nil {
		return core.NewError(core.KindValidation, "validate", fmt.Errorf("%w for %s", ErrNoPlatformTools, data.Platform))
	}
	if data.Settings == nil {
		cfg, err := config.LoadProject(data.ProjectDir)
		if err != nil {
			return err
		}
		data.Settings = cfg
	}
	if err := data.Settings.Validate(); err != nil {
		return err
	}

	if err := data.mkdirs(); err != nil {
		return err
	}
	if data.Cache == nil {
		c, err := cache.Open(data.CachePath)
		if err != nil {
			return err
		}
		data.Cache = c
	}
	if err := data.StepProgress("Checking game settings", 0.5); err != nil {
		return err
	}

	var errs []error
	if data.Configuration == platform.ConfigurationRelease && !platform.Exists(data.PlatformDataPath()) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrPlatformNotInstalled, data.PlatformDataPath()))
	}
	game := data.Settings.Game
	if strings.TrimSpace(game.ProductName) == "" {
		errs = append(errs, ErrMissingProductName)
	}
	if strings.TrimSpace(game.CompanyName) == "" {
		errs = append(errs, ErrMissingCompanyName)
	}
	if game.FirstScene == "" {
		errs = append(errs, ErrMissingFirstScene)
	} else if scene := filepath.Join(data.ProjectDir, "Content", game.FirstScene); !platform.Exists(scene) {
		errs = append(errs, fmt.Errorf("first scene %s does not exist", scene))
	}
	if len(errs) > 0 {
		return core.NewError(core.KindValidation, "validate", errors.Join(errs...))
	}

	if data.Target == "" {
		core.LogWarn("no scripts target set, building the engine only")
		data.Target = EngineTarget
	}
	return data.StepProgress("Settings are valid", 1)
}

// CompileScriptsStep builds the game scripts and deploys their binaries.
type CompileScriptsStep struct{}

func (s *CompileScriptsStep) Name() string { return "CompileScripts" }

func (s *CompileScriptsStep) OnBuildStarted(data *CookingData) {}

// prebuiltEngine is the engine game binary shipped with the platform
// data. When present only the game bindings are compiled.
func prebuiltEngine(data *CookingData) string {
	return filepath.Join(data.PlatformDataPath(), "Binaries", "Game", data.Architecture.String(), data.Configuration.String())
}

// BuildInfoPath is the build-info file the build tool writes for target.
func (d *CookingData) BuildInfoPath() string {
	return filepath.Join(d.WorkingDir(), "Binaries", d.Target, d.Platform.String(), d.Architecture.String(), d.Configuration.String(), d.Target+".Build.json")
}

func (s *CompileScriptsStep) buildArgs(data *CookingData) []string {
	args := []string{
		"-build",
		"-log",
		"-mutex",
		"-buildtargets=" + data.Target,
		"-platform=" + data.Platform.String(),
		"-arch=" + data.Architecture.String(),
		"-configuration=" + data.Configuration.String(),
		"-logfile=" + filepath.Join(data.CachePath, "ScriptsBuild.log"),
	}
	if data.Target != EngineTarget {
		args = append(args, "-workspace="+data.ProjectDir)
		if platform.Exists(prebuiltEngine(data)) {
			args = append(args, "-BuildBindingsOnly", "-SkipTargets="+EngineTarget)
		}
	}
	if len(data.CustomDefines) > 0 {
		args = append(args, "-D"+strings.Join(data.CustomDefines, ","))
	}
	return args
}

func (s *CompileScriptsStep) Perform(data *CookingData) error {
	if err := data.StepProgress("Compiling scripts", 0); err != nil {
		return err
	}
	if _, err := data.RunBuildTool(s.buildArgs(data)...); err != nil {
		return err
	}

	if err := data.StepProgress("Deploying binary modules", 0.8); err != nil {
		return err
	}
	r := &modules.Resolver{
		EnginePath:    data.EngineRoot,
		NativeOutput:  data.NativeCodeOutputPath,
		ManagedOutput: data.ManagedCodeOutputPath,
		Filter:        data.Tools,
		Release:       data.Configuration == platform.ConfigurationRelease,
		PreserveMode:  platform.Host() != platform.PlatformWindows,
	}
	if err := r.Deploy(data.BuildInfoPath(), data.WorkingDir()); err != nil {
		return err
	}
	data.BinaryModules = r.Modules()
	if err := r.WriteManifest(data.DataOutputPath, data.Target, data.Platform.String(), data.Configuration.String()); err != nil {
		return err
	}
	core.LogInfo("deployed %d binary module(s)", len(data.BinaryModules))
	return data.StepProgress("Scripts compiled", 1)
}

// PostProcessStep hands the cooked output to the platform tools.
type PostProcessStep struct{}

func (s *PostProcessStep) Name() string { return "PostProcess" }

func (s *PostProcessStep) OnBuildStarted(data *CookingData) {}

func (s *PostProcessStep) Perform(data *CookingData) error {
	if err := data.StepProgress("Post processing "+data.Tools.Name(), 0); err != nil {
		return err
	}
	if err := data.Tools.OnPostProcess(data); err != nil {
		return err
	}
	return data.StepProgress("Output ready", 1)
}
