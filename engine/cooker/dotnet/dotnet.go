// Package dotnet stages the managed runtime next to a cooked game and
// drives ahead-of-time compilation of its assemblies.
package dotnet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

const (
	DefaultMinVersion = 8
	DefaultMaxVersion = 9

	InfoFileName   = "SystemDotnetInfo.txt"
	AOTCacheFolder = "AOTAssemblies"
	newtonsoftDLL  = "Newtonsoft.Json.dll"

	sdkReplyPrefix = "DotNetSdk, "
)

// AOTMode selects how managed code is compiled ahead of time.
type AOTMode uint8

const (
	AOTNone AOTMode = iota
	AOTMonoDynamic
	AOTILC
)

func (m AOTMode) String() string {
	switch m {
	case AOTMonoDynamic:
		return "MonoAOTDynamic"
	case AOTILC:
		return "ILC"
	}
	return "None"
}

// ParseAOTMode matches a mode name case-insensitively.
func ParseAOTMode(s string) (AOTMode, error) {
	for _, m := range []AOTMode{AOTNone, AOTMonoDynamic, AOTILC} {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return AOTNone, fmt.Errorf("unknown AOT mode %q", s)
}

// RuntimeFlavor picks the runtime family. Mono only ships from the engine
// platform data and skips the SDK lookup.
type RuntimeFlavor uint8

const (
	FlavorDotnet RuntimeFlavor = iota
	FlavorMono
)

func (f RuntimeFlavor) folder() string {
	if f == FlavorMono {
		return "Mono"
	}
	return "Dotnet"
}

var ErrVersionOutOfRange = errors.New(".NET runtime version outside the supported window")

type Options struct {
	Platform      platform.Platform
	Architecture  platform.Architecture
	Configuration platform.Configuration
	AOT           AOTMode
	Flavor        RuntimeFlavor

	UseSystemDotnet bool
	SkipPackaging   bool
	SkipUnusedLibs  bool

	MinVersion int
	MaxVersion int

	// Host defaults to the machine running the cooker.
	Host platform.Platform

	EngineRoot string
	// PlatformData is the engine data folder of the target platform.
	PlatformData  string
	DataOutput    string
	NativeOutput  string
	ManagedOutput string
	CachePath     string

	BuildTool  string
	WorkingDir string
	Runner     platform.Runner
}

func (o *Options) window() (int, int) {
	lo, hi := o.MinVersion, o.MaxVersion
	if lo == 0 {
		lo = DefaultMinVersion
	}
	if hi == 0 {
		hi = DefaultMaxVersion
	}
	return lo, hi
}

func (o *Options) host() platform.Platform {
	if o.Host == platform.PlatformUnknown {
		return platform.Host()
	}
	return o.Host
}

// OutputDir is where the runtime tree of the game lives.
func (o *Options) OutputDir() string {
	return filepath.Join(o.DataOutput, o.Flavor.folder())
}

func (o *Options) run(ctx context.Context, args ...string) (string, error) {
	cmd := platform.NewCommand(o.BuildTool, platform.WithArgs(args...), platform.WithDir(o.WorkingDir))
	return o.Runner.Run(ctx, cmd)
}

// Runtime describes the staged runtime.
type Runtime struct {
	Version int
	// Source is the folder the runtime was copied from.
	Source string
	Dir    string
	// Packaged is set when the engine shipped a prebuilt runtime.
	Packaged bool
}

// source is a runtime folder and the sub-trees to copy out of it.
type source struct {
	root     string
	subtrees []string
	version  int
	packaged bool
}

// Stage deploys the runtime for the target into the game output.
func Stage(ctx context.Context, opts Options) (*Runtime, error) {
	dst := opts.OutputDir()
	if opts.SkipPackaging {
		core.LogInfo("skipping %s packaging", opts.Flavor.folder())
		return &Runtime{Dir: dst}, nil
	}

	src, err := resolveSource(ctx, &opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewError(core.KindCancelled, "stage runtime", err)
	}

	if err := checkInfo(&opts, src, dst); err != nil {
		return nil, err
	}

	if !opts.UseSystemDotnet || src.packaged {
		if len(src.subtrees) == 0 {
			if err := platform.CopyTree(src.root, dst, true); err != nil {
				return nil, err
			}
		}
		for _, sub := range src.subtrees {
			if err := platform.CopyTree(filepath.Join(src.root, sub), filepath.Join(dst, sub), true); err != nil {
				return nil, err
			}
		}
	} else {
		core.LogInfo("using the .NET %d runtime installed on the target", src.version)
	}

	if opts.Platform.IsMobile() {
		if err := deployNativeLibraries(&opts, src.root); err != nil {
			return nil, err
		}
	}

	if platform.Exists(dst) {
		n, err := platform.RemoveFiles(dst, ".exe")
		if err != nil {
			return nil, err
		}
		if n > 0 {
			core.LogDebug("removed %d executable(s) from the runtime", n)
		}
	}

	if opts.SkipUnusedLibs && opts.AOT == AOTNone {
		_, err := opts.run(ctx, "-runDotNetClassLibStripping",
			"-platform="+opts.Platform.String(),
			"-arch="+opts.Architecture.String(),
			"-configuration="+opts.Configuration.String(),
			"-binaries="+dst)
		if err != nil {
			return nil, err
		}
	}

	core.LogInfo("staged %s runtime %d from %s", opts.Flavor.folder(), src.version, src.root)
	return &Runtime{Version: src.version, Source: src.root, Dir: dst, Packaged: src.packaged}, nil
}

func resolveSource(ctx context.Context, opts *Options) (*source, error) {
	packaged := filepath.Join(opts.PlatformData, opts.Flavor.folder())
	if opts.PlatformData != "" && platform.Exists(packaged) {
		return &source{root: packaged, packaged: true}, nil
	}
	if opts.Flavor == FlavorMono {
		return nil, core.NewPathError(core.KindValidation, "stage runtime", packaged, errors.New("Mono runtime is not installed for this platform"))
	}
	if opts.Runner == nil || opts.BuildTool == "" {
		return nil, core.Errorf(core.KindValidation, "stage runtime", "no build tool to locate the .NET runtime")
	}
	if opts.host() == opts.Platform && (opts.AOT == AOTNone || opts.AOT == AOTILC) {
		return hostSDK(ctx, opts)
	}
	return crossRuntime(ctx, opts)
}

// hostSDK uses the SDK installed on the build machine.
func hostSDK(ctx context.Context, opts *Options) (*source, error) {
	reply, err := opts.run(ctx, "-printSDKs")
	if err != nil {
		return nil, err
	}
	var root string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, sdkReplyPrefix); ok {
			fields := strings.Split(rest, ", ")
			root = strings.TrimSpace(fields[len(fields)-1])
			break
		}
	}
	if root == "" {
		return nil, core.Errorf(core.KindTooling, "stage runtime", "build tool did not report a .NET SDK")
	}

	lo, hi := opts.window()
	entries, err := os.ReadDir(filepath.Join(root, "host", "fxr"))
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "stage runtime", root, err)
	}
	var best []int
	var bestName string
	for _, e := range entries {
		v, ok := parseVersion(e.Name())
		if !e.IsDir() || !ok || v[0] < lo || v[0] > hi {
			continue
		}
		if best == nil || compareVersions(v, best) > 0 {
			best, bestName = v, e.Name()
		}
	}
	if best == nil {
		return nil, core.NewPathError(core.KindValidation, "stage runtime", root, fmt.Errorf("%w: no host/fxr in [%d, %d]", ErrVersionOutOfRange, lo, hi))
	}
	return &source{
		root: root,
		subtrees: []string{
			filepath.Join("host", "fxr", bestName),
			filepath.Join("shared", "Microsoft.NETCore.App", bestName),
		},
		version: best[0],
	}, nil
}

// crossRuntime asks the build tool for the runtime pack of the target.
func crossRuntime(ctx context.Context, opts *Options) (*source, error) {
	reply, err := opts.run(ctx, "-printDotNetRuntime",
		"-platform="+opts.Platform.String(),
		"-arch="+opts.Architecture.String())
	if err != nil {
		return nil, err
	}
	var fields []string
	for _, line := range strings.Split(reply, "\n") {
		if f := strings.Split(strings.TrimSpace(line), ","); len(f) == 3 {
			fields = f
		}
	}
	if fields == nil {
		return nil, core.Errorf(core.KindTooling, "stage runtime", "unexpected -printDotNetRuntime reply %q", strings.TrimSpace(reply))
	}
	root := strings.TrimSpace(fields[2])
	major, ok := runtimePackVersion(root)
	if !ok {
		return nil, core.NewPathError(core.KindValidation, "stage runtime", root, errors.New("cannot read the runtime version from the pack path"))
	}
	if lo, hi := opts.window(); major < lo || major > hi {
		return nil, core.NewPathError(core.KindValidation, "stage runtime", root, fmt.Errorf("%w: %d not in [%d, %d]", ErrVersionOutOfRange, major, lo, hi))
	}
	return &source{root: root, version: major}, nil
}

// runtimePackVersion reads the major version from the folder right above
// runtimes/ in a pack path like .../8.0.1/runtimes/linux-x64.
func runtimePackVersion(root string) (int, bool) {
	p := strings.ReplaceAll(root, "\\", "/")
	i := strings.Index(p, "/runtimes/")
	if i < 0 {
		return 0, false
	}
	v, ok := parseVersion(p[strings.LastIndex(p[:i], "/")+1 : i])
	if !ok {
		return 0, false
	}
	return v[0], true
}

func parseVersion(s string) ([]int, bool) {
	// Drop prerelease tags such as 9.0.0-rc.1.
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	v := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		v[i] = n
	}
	return v, len(v) > 0
}

func compareVersions(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// checkInfo compares the runtime about to be deployed with the one of the
// previous cook and wipes the output when they differ.
func checkInfo(opts *Options, src *source, dst string) error {
	if opts.CachePath == "" {
		return nil
	}
	path := filepath.Join(opts.CachePath, InfoFileName)
	info := fmt.Sprintf("%d;%s", src.version, src.root)
	if prev, err := os.ReadFile(path); err == nil && string(prev) != info {
		core.LogInfo("runtime changed from %s to %s, redeploying", prev, info)
		if err := os.RemoveAll(dst); err != nil {
			return core.NewPathError(core.KindIO, "stage runtime", dst, err)
		}
	}
	if err := os.MkdirAll(opts.CachePath, 0o755); err != nil {
		return core.NewPathError(core.KindIO, "stage runtime", opts.CachePath, err)
	}
	if err := os.WriteFile(path, []byte(info), 0o644); err != nil {
		return core.NewPathError(core.KindIO, "stage runtime", path, err)
	}
	return nil
}
