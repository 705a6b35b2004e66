package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/spaghettifunk/anima-cooker/engine/assets"
	"github.com/spaghettifunk/anima-cooker/engine/config"
	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/cache"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/platforms"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
)

type cookFlags struct {
	project       string
	platform      string
	arch          string
	configuration string
	output        string
	skipPackaging bool
	watch         bool
	clean         bool
	logLevel      string
}

func parseCookFlags(args []string) (*cookFlags, *pflag.FlagSet, error) {
	f := &cookFlags{}
	fs := pflag.NewFlagSet("cook", pflag.ContinueOnError)
	fs.StringVar(&f.project, "project", ".", "project folder holding "+config.FileName)
	fs.StringVar(&f.platform, "platform", "", "target platform, defaults to the project setting")
	fs.StringVar(&f.arch, "arch", "", "target architecture, defaults to the project setting")
	fs.StringVar(&f.configuration, "configuration", "", "Debug, Development or Release")
	fs.StringVar(&f.output, "output", "", "output folder, defaults to the project setting")
	fs.BoolVar(&f.skipPackaging, "skip-packaging", false, "stop before the platform packaging tools run")
	fs.BoolVar(&f.watch, "watch", false, "cook again whenever project content changes")
	fs.BoolVar(&f.clean, "clean", false, "recook every texture instead of reusing the cache")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, fs, err
		}
		return nil, fs, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fs, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return f, fs, nil
}

// apply overrides the project settings with the flags that were set.
func (f *cookFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("platform") {
		cfg.Build.Platform = f.platform
	}
	if fs.Changed("arch") {
		cfg.Build.Architecture = f.arch
	}
	if fs.Changed("configuration") {
		cfg.Build.Configuration = f.configuration
	}
	if fs.Changed("output") {
		cfg.Build.OutputPath = f.output
	}
	if fs.Changed("skip-packaging") {
		cfg.Build.SkipPackaging = f.skipPackaging
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func runCook(ctx context.Context, args []string) error {
	flags, fs, err := parseCookFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	project, err := filepath.Abs(flags.project)
	if err != nil {
		return core.NewPathError(core.KindIO, "cook", flags.project, err)
	}

	cfg, err := config.LoadProject(project)
	if err != nil {
		return err
	}
	flags.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	p, arch, _ := cfg.Build.Triple()
	tools, err := platforms.New(p, arch)
	if err != nil {
		return err
	}

	var device *compress.Device
	if cfg.Textures.Workers > 0 {
		if device, err = compress.NewDevice(cfg.Textures.Workers, cfg.Textures.Workers*runtime.NumCPU()); err != nil {
			return core.NewError(core.KindCompress, "cook", err)
		}
		defer device.Shutdown()
	}

	events := core.NewEventBus()
	listenCookEvents(events)

	s := &session{
		project: project,
		cfg:     cfg,
		tools:   tools,
		device:  device,
		events:  events,
		cooker:  cooker.NewCooker(),
	}
	if flags.clean {
		if err := s.clean(); err != nil {
			return err
		}
	}
	if !flags.watch {
		return s.cook(ctx)
	}
	return s.watch(ctx)
}

// session cooks one project, once or on every content change.
type session struct {
	project string
	cfg     *config.Config
	tools   cooker.PlatformTools
	device  *compress.Device
	events  *core.EventBus
	cooker  *cooker.Cooker
}

func (s *session) newData() *cooker.CookingData {
	data := cooker.NewCookingData(s.project, s.cfg, s.tools)
	data.Device = s.device
	data.Events = s.events
	return data
}

// clean drops the cooked textures of the target.
func (s *session) clean() error {
	data := s.newData()
	c, err := cache.Open(data.CachePath)
	if err != nil {
		return err
	}
	core.LogInfo("cleaning cooked textures in %s", c.Dir())
	return c.InvalidateTextures()
}

func (s *session) cook(ctx context.Context) error {
	data := s.newData()
	core.LogInfo("cooking %s for %s %s", s.project, s.tools.Name(), data.Configuration)
	res := s.cooker.Cook(ctx, data)
	if res.Metrics != nil {
		core.LogInfo("%s", res.Metrics.Summary())
	}
	if !res.OK() {
		return res.Err
	}
	core.LogInfo("cooked %s in %s", data.OriginalOutputPath, res.Duration)
	return nil
}

func (s *session) watch(ctx context.Context) error {
	data := s.newData()
	w, err := assets.NewContentWatcher(s.project,
		assets.WithIgnore(data.OriginalOutputPath, projectPath(s.project, s.cfg.Build.CachePath), filepath.Join(s.project, ".git")),
		assets.WithEvents(s.events))
	if err != nil {
		return err
	}
	defer w.Close()

	if err := s.cook(ctx); err != nil {
		if core.IsKind(err, core.KindCancelled) {
			return err
		}
		core.LogError("%s", err)
	}
	core.LogInfo("watching %s for changes", w.Root())
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Changes():
			if !ok {
				return nil
			}
			core.LogInfo("%d file(s) changed, cooking again", len(batch))
			if err := s.cook(ctx); err != nil {
				if core.IsKind(err, core.KindCancelled) {
					return nil
				}
				core.LogError("%s", err)
			}
		}
	}
}

func projectPath(project, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(project, path)
}

// listenCookEvents logs the pipeline progress.
func listenCookEvents(bus *core.EventBus) {
	bus.Register(core.EventStepStarted, nil, func(code core.EventCode, sender, listener interface{}, data core.EventContext) bool {
		core.LogInfo("[%3.0f%%] %s", data.Progress*100, data.Step)
		return false
	})
	bus.Register(core.EventStepProgress, nil, func(code core.EventCode, sender, listener interface{}, data core.EventContext) bool {
		core.LogDebug("[%3.0f%%] %s: %s", data.Progress*100, data.Step, data.Message)
		return false
	})
	bus.Register(core.EventContentChanged, nil, func(code core.EventCode, sender, listener interface{}, data core.EventContext) bool {
		core.LogDebug("changed: %s", data.Message)
		return false
	})
}
