package cooker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-cooker/engine/config"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/cache"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/modules"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

type fakeTools struct {
	aot     dotnet.AOTMode
	started bool
	post    int
	postErr error
}

func (f *fakeTools) Name() string                        { return "Test" }
func (f *fakeTools) Platform() platform.Platform         { return platform.PlatformLinux }
func (f *fakeTools) Architecture() platform.Architecture { return platform.ArchX64 }
func (f *fakeTools) AOTMode() dotnet.AOTMode             { return f.aot }
func (f *fakeTools) IsNativeCodeFile(path string) bool   { return filepath.Ext(path) == ".so" }
func (f *fakeTools) OnBuildStarted(data *CookingData)    { f.started = true }

func (f *fakeTools) OnPostProcess(data *CookingData) error {
	f.post++
	return f.postErr
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []platform.Command
	// reply handles a command by its first argument.
	reply map[string]func(cmd platform.Command) error
}

func (r *fakeRunner) Run(ctx context.Context, cmd platform.Command) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	if len(cmd.Args) > 0 {
		if fn, ok := r.reply[cmd.Args[0]]; ok {
			return "", fn(cmd)
		}
	}
	return "", nil
}

func (r *fakeRunner) called(arg string) []platform.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []platform.Command
	for _, c := range r.calls {
		if len(c.Args) > 0 && c.Args[0] == arg {
			out = append(out, c)
		}
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, size int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, b.String())
}

// newCook sets up a project whose build tool writes one binary module.
func newCook(t *testing.T) (*CookingData, *fakeRunner, *fakeTools) {
	t.Helper()
	root := t.TempDir()
	project := filepath.Join(root, "Project")
	writeFile(t, filepath.Join(project, "Content", "Main.scene"), "{}")
	writePNG(t, filepath.Join(project, "Textures", "logo.png"), 8)
	writeFile(t, filepath.Join(project, "Textures", "readme.txt"), "hello")

	cfg := config.Default()
	cfg.Game = config.GameSettings{ProductName: "Demo", CompanyName: "Acme", FirstScene: "Main.scene"}
	cfg.Build.Target = "Game"
	cfg.Build.Platform = "Linux"
	cfg.Build.Architecture = "x64"
	cfg.Build.Configuration = "Development"
	cfg.Build.OutputPath = filepath.Join(root, "Out")
	cfg.Build.CachePath = filepath.Join(root, "Cache")
	cfg.Build.AdditionalAssetFolders = []string{"Textures"}
	cfg.Engine.Root = filepath.Join(root, "Engine")
	cfg.Engine.BuildTool = "build-tool"
	cfg.Runtime.SkipPackaging = true

	tools := &fakeTools{}
	data := NewCookingData(project, cfg, tools)
	runner := &fakeRunner{reply: map[string]func(platform.Command) error{}}
	runner.reply["-build"] = func(cmd platform.Command) error {
		dir := filepath.Dir(data.BuildInfoPath())
		writeFile(t, data.BuildInfoPath(), `{"BinaryModules": [{"Name": "Game", "NativePath": "libGame.so", "ManagedPath": "Game.CSharp.dll"}]}`)
		writeFile(t, filepath.Join(dir, "libGame.so"), "native")
		writeFile(t, filepath.Join(dir, "Game.CSharp.dll"), "managed")
		return nil
	}
	data.Runner = runner
	data.Events = core.NewEventBus()
	return data, runner, tools
}

func stepNames(m *core.Metrics) []string {
	var names []string
	for _, s := range m.Timings() {
		names = append(names, s.Name)
	}
	return names
}

func TestCookRunsEveryStep(t *testing.T) {
	data, runner, tools := newCook(t)

	res := NewCooker().Cook(context.Background(), data)
	if !res.OK() {
		t.Fatalf("cook failed: %v", res.Err)
	}
	want := []string{"Validate", "CompileScripts", "DeployData", "PrecompileAssemblies", "PostProcess"}
	if got := stepNames(res.Metrics); !slices.Equal(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
	if !tools.started || tools.post != 1 {
		t.Errorf("platform tools started=%v post=%d", tools.started, tools.post)
	}

	builds := runner.called("-build")
	if len(builds) != 1 {
		t.Fatalf("build tool ran %d times", len(builds))
	}
	args := strings.Join(builds[0].Args, " ")
	for _, a := range []string{"-buildtargets=Game", "-platform=Linux", "-arch=x64", "-configuration=Development", "-workspace=" + data.ProjectDir} {
		if !strings.Contains(args, a) {
			t.Errorf("build args %q miss %s", args, a)
		}
	}
	if strings.Contains(args, "-BuildBindingsOnly") {
		t.Errorf("bindings-only build without prebuilt engine: %s", args)
	}

	m, err := modules.ReadManifest(filepath.Join(data.DataOutputPath, modules.ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.BinaryModules) != 1 || m.BinaryModules[0].Name != "Game" || m.Name != "Game" {
		t.Errorf("manifest = %+v", m)
	}
	for _, f := range []string{
		filepath.Join(data.NativeCodeOutputPath, "libGame.so"),
		filepath.Join(data.ManagedCodeOutputPath, "Game.CSharp.dll"),
		filepath.Join(data.ContentPath(), "Textures", "logo.dds"),
		filepath.Join(data.ContentPath(), "Textures", "readme.txt"),
	} {
		if !platform.Exists(f) {
			t.Errorf("%s was not deployed", f)
		}
	}
	if !slices.Contains(data.RootAssets, "Textures/logo.png") || !slices.Contains(data.RootAssets, engineRootAssets[0]) {
		t.Errorf("root assets = %v", data.RootAssets)
	}
	if res.SessionID == uuid.Nil || res.SessionID != data.SessionID {
		t.Errorf("session id %s not shared with the cooking data %s", res.SessionID, data.SessionID)
	}
}

func TestCookReusesCachedTextures(t *testing.T) {
	data, _, _ := newCook(t)
	c := NewCooker()
	if res := c.Cook(context.Background(), data); !res.OK() {
		t.Fatal(res.Err)
	}
	dds := filepath.Join(data.ContentPath(), "Textures", "logo.dds")
	first, err := os.ReadFile(dds)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(data.Cache.StepDir(cache.StepTextures))
	if err != nil || len(entries) != 3 {
		t.Fatalf("texture cache holds %d entries (%v), want key, blob and info", len(entries), err)
	}

	if res := c.Cook(context.Background(), data); !res.OK() {
		t.Fatal(res.Err)
	}
	second, err := os.ReadFile(dds)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("cached texture differs from the cooked one")
	}
}

func TestCancelBetweenSteps(t *testing.T) {
	data, runner, tools := newCook(t)
	stale := filepath.Join(data.ContentPath(), "stale.bin")
	writeFile(t, stale, "previous cook")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	data.Events.Register(core.EventStepFinished, t, func(code core.EventCode, sender, listener interface{}, ev core.EventContext) bool {
		if ev.Step == "CompileScripts" {
			cancel()
		}
		return false
	})

	res := NewCooker().Cook(ctx, data)
	if !core.IsKind(res.Err, core.KindCancelled) || !res.Cancelled() {
		t.Fatalf("err = %v, want Cancelled", res.Err)
	}
	if !platform.Exists(stale) {
		t.Errorf("Content was cleared although DeployData never ran")
	}
	if got := stepNames(res.Metrics); !slices.Equal(got, []string{"Validate", "CompileScripts"}) {
		t.Errorf("steps = %v", got)
	}
	if tools.post != 0 {
		t.Errorf("post process ran after cancellation")
	}
	if len(runner.called("-build")) != 1 {
		t.Errorf("build tool should have run once")
	}
}

func TestFirstErrorStopsTheCook(t *testing.T) {
	data, runner, tools := newCook(t)
	stale := filepath.Join(data.ContentPath(), "stale.bin")
	writeFile(t, stale, "previous cook")
	runner.reply["-build"] = func(cmd platform.Command) error {
		return core.NewError(core.KindTooling, "build-tool", &platform.ToolError{CommandLine: cmd.CommandLine(), ExitCode: 3})
	}

	res := NewCooker().Cook(context.Background(), data)
	if !core.IsKind(res.Err, core.KindTooling) {
		t.Fatalf("err = %v, want Tooling", res.Err)
	}
	var te *platform.ToolError
	if !errors.As(res.Err, &te) || te.ExitCode != 3 {
		t.Errorf("tool error not surfaced: %v", res.Err)
	}
	timings := res.Metrics.Timings()
	if len(timings) != 2 || !timings[1].Failed {
		t.Errorf("timings = %+v", timings)
	}
	if !platform.Exists(stale) || tools.post != 0 {
		t.Errorf("later steps ran after a failure")
	}
	if last := res.Log[len(res.Log)-1]; !strings.HasPrefix(last, "error:") {
		t.Errorf("last log line = %q", last)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	data, runner, _ := newCook(t)
	data.Settings.Game.ProductName = " "
	data.Settings.Game.FirstScene = "Missing.scene"

	res := NewCooker().Cook(context.Background(), data)
	if !core.IsKind(res.Err, core.KindValidation) {
		t.Fatalf("err = %v, want Validation", res.Err)
	}
	if !errors.Is(res.Err, ErrMissingProductName) {
		t.Errorf("product name problem not reported: %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "Missing.scene") {
		t.Errorf("first scene problem not reported: %v", res.Err)
	}
	if errors.Is(res.Err, ErrMissingCompanyName) {
		t.Errorf("company name reported although set")
	}
	if len(runner.calls) != 0 {
		t.Errorf("build tool ran after failed validation")
	}
}

func TestShippingBuildNeedsPlatformData(t *testing.T) {
	data, _, _ := newCook(t)
	data.Configuration = platform.ConfigurationRelease

	res := NewCooker().Cook(context.Background(), data)
	if !errors.Is(res.Err, ErrPlatformNotInstalled) {
		t.Fatalf("err = %v, want %v", res.Err, ErrPlatformNotInstalled)
	}
}

func TestEmptyTargetBuildsTheEngine(t *testing.T) {
	data, runner, _ := newCook(t)
	data.Target = ""

	res := NewCooker().Cook(context.Background(), data)
	if !res.OK() {
		t.Fatal(res.Err)
	}
	builds := runner.called("-build")
	if len(builds) != 1 {
		t.Fatalf("build tool ran %d times", len(builds))
	}
	if !slices.Contains(builds[0].Args, "-buildtargets="+EngineTarget) {
		t.Errorf("args = %v", builds[0].Args)
	}
	if builds[0].Dir != data.EngineRoot {
		t.Errorf("build ran in %s, want the engine root", builds[0].Dir)
	}
}

func TestPrebuiltEngineBuildsBindingsOnly(t *testing.T) {
	data, runner, _ := newCook(t)
	if err := os.MkdirAll(prebuiltEngine(data), 0o755); err != nil {
		t.Fatal(err)
	}
	data.CustomDefines = []string{"DEMO", "NO_ANALYTICS"}
	if res := NewCooker().Cook(context.Background(), data); !res.OK() {
		t.Fatal(res.Err)
	}
	args := runner.called("-build")[0].Args
	for _, a := range []string{"-BuildBindingsOnly", "-SkipTargets=" + EngineTarget, "-DDEMO,NO_ANALYTICS"} {
		if !slices.Contains(args, a) {
			t.Errorf("args %v miss %s", args, a)
		}
	}
}

type progressStep struct {
	name string
}

func (s *progressStep) Name() string                     { return s.name }
func (s *progressStep) OnBuildStarted(data *CookingData) {}

func (s *progressStep) Perform(data *CookingData) error {
	return data.StepProgress("half way", 0.5)
}

func TestGlobalProgress(t *testing.T) {
	data := &CookingData{Events: core.NewEventBus()}
	var got []float32
	data.Events.Register(core.EventStepProgress, t, func(code core.EventCode, sender, listener interface{}, ev core.EventContext) bool {
		got = append(got, ev.Progress)
		return true
	})

	res := NewCooker(&progressStep{"a"}, &progressStep{"b"}).Cook(context.Background(), data)
	if !res.OK() {
		t.Fatal(res.Err)
	}
	if !slices.Equal(got, []float32{0.25, 0.75}) {
		t.Errorf("progress = %v, want [0.25 0.75]", got)
	}
}

func TestPrecompileUsesCache(t *testing.T) {
	data, runner, tools := newCook(t)
	tools.aot = dotnet.AOTILC
	runner.reply["-runDotNetAOT"] = func(cmd platform.Command) error {
		for _, a := range cmd.Args {
			if dir, ok := strings.CutPrefix(a, "-intermediate="); ok {
				if platform.Exists(filepath.Join(dir, cache.SummaryFile)) {
					t.Errorf("summary key recorded before the AOT run finished")
				}
				writeFile(t, filepath.Join(dir, "Game.CSharp.so"), "aot")
			}
		}
		return nil
	}
	c, err := cache.Open(data.CachePath)
	if err != nil {
		t.Fatal(err)
	}
	data.Cache = c
	step := NewCooker(&PrecompileAssembliesStep{})

	for i, defines := range [][]string{nil, nil, {"DEMO"}} {
		data.CustomDefines = defines
		if res := step.Cook(context.Background(), data); !res.OK() {
			t.Fatalf("cook %d: %v", i, res.Err)
		}
	}
	if n := len(runner.called("-runDotNetAOT")); n != 2 {
		t.Errorf("AOT ran %d times, want 2", n)
	}
	if !platform.Exists(filepath.Join(data.ManagedCodeOutputPath, "Game.CSharp.so")) {
		t.Errorf("precompiled assembly not deployed")
	}
	if platform.Exists(filepath.Join(data.ManagedCodeOutputPath, cache.SummaryFile)) {
		t.Errorf("cache bookkeeping deployed with the game")
	}
}

func TestPrecompileFailureLeavesNoKey(t *testing.T) {
	data, runner, tools := newCook(t)
	tools.aot = dotnet.AOTILC
	fail := true
	runner.reply["-runDotNetAOT"] = func(cmd platform.Command) error {
		if fail {
			return errors.New("ilc crashed")
		}
		return nil
	}
	c, err := cache.Open(data.CachePath)
	if err != nil {
		t.Fatal(err)
	}
	data.Cache = c
	step := NewCooker(&PrecompileAssembliesStep{})

	if res := step.Cook(context.Background(), data); res.OK() {
		t.Fatal("failed AOT run reported success")
	}
	if platform.Exists(filepath.Join(c.StepDir(dotnet.AOTCacheFolder), cache.SummaryFile)) {
		t.Errorf("summary key kept after a failed run")
	}
	fail = false
	if res := step.Cook(context.Background(), data); !res.OK() {
		t.Fatal(res.Err)
	}
	if n := len(runner.called("-runDotNetAOT")); n != 2 {
		t.Errorf("AOT ran %d times, want 2", n)
	}
}
