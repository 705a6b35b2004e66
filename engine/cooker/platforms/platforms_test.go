package platforms

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/config"
	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

type recordingRunner struct {
	calls []platform.Command
}

func (r *recordingRunner) Run(ctx context.Context, cmd platform.Command) (string, error) {
	r.calls = append(r.calls, cmd)
	return "", nil
}

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func iconPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.NRGBA{A: 0})
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

// newData builds cooking data for p whose environment is env.
func newData(t *testing.T, p platform.Platform, arch platform.Architecture, env map[string]string) (*cooker.CookingData, *recordingRunner) {
	t.Helper()
	root := t.TempDir()
	project := filepath.Join(root, "Project")
	writeTestFile(t, filepath.Join(project, "icon.png"), iconPNG(t))

	cfg := config.Default()
	cfg.Game = config.GameSettings{ProductName: "My Game", CompanyName: "Acme", Version: "1.2.3", Icon: "icon.png"}
	cfg.Build.OutputPath = filepath.Join(root, "Out")
	cfg.Engine.Root = filepath.Join(root, "Engine")
	cfg.Platforms.Android.PackageName = "com.acme.mygame"
	cfg.Platforms.Android.Permissions = []string{"android.permission.INTERNET"}

	tools, err := New(p, arch)
	if err != nil {
		t.Fatal(err)
	}
	setEnv(tools, env)
	data := cooker.NewCookingData(project, cfg, tools)
	data.Target = "Game"
	runner := &recordingRunner{}
	data.Runner = runner
	tools.OnBuildStarted(data)
	return data, runner
}

func setEnv(tools cooker.PlatformTools, env map[string]string) {
	getenv := func(k string) string { return env[k] }
	switch x := tools.(type) {
	case *Windows:
		x.getenv = getenv
	case *Linux:
		x.getenv = getenv
	case *Mac:
		x.getenv = getenv
	case *Android:
		x.getenv = getenv
	case *IOS:
		x.getenv = getenv
	case *UWP:
		x.getenv = getenv
	case *GDK:
		x.getenv = getenv
	}
}

func pngSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	return cfg.Width, cfg.Height
}

func TestExpandTemplate(t *testing.T) {
	got := ExpandTemplate("${ProductName} by ${CompanyName} ${Unknown} $ProductName", map[string]string{
		"ProductName": "Demo",
		"CompanyName": "Acme",
	})
	if want := "Demo by Acme ${Unknown} $ProductName"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewRejectsUnknownPlatform(t *testing.T) {
	_, err := New(platform.PlatformUnknown, platform.ArchX64)
	if !core.IsKind(err, core.KindUnsupported) {
		t.Errorf("err = %v, want Unsupported", err)
	}
}

// managedPE is a PE32+ header with a CLR runtime directory and no sections.
func managedPE(clr bool) []byte {
	b := make([]byte, 0x40+4+20+240)
	copy(b, "MZ")
	binary.LittleEndian.PutUint32(b[0x3c:], 0x40)
	copy(b[0x40:], "PE\x00\x00")
	fh := b[0x44:]
	binary.LittleEndian.PutUint16(fh[0:], 0x8664)
	binary.LittleEndian.PutUint16(fh[16:], 240)
	binary.LittleEndian.PutUint16(fh[18:], 0x2022)
	oh := b[0x44+20:]
	binary.LittleEndian.PutUint16(oh[0:], 0x20b)
	binary.LittleEndian.PutUint32(oh[108:], 16)
	if clr {
		binary.LittleEndian.PutUint32(oh[112+14*8:], 0x2000)
		binary.LittleEndian.PutUint32(oh[112+14*8+4:], 72)
	}
	return b
}

func TestNativeCodeFiles(t *testing.T) {
	dir := t.TempDir()
	managed := filepath.Join(dir, "Game.CSharp.dll")
	native := filepath.Join(dir, "Game.dll")
	garbage := filepath.Join(dir, "Other.dll")
	writeTestFile(t, managed, managedPE(true))
	writeTestFile(t, native, managedPE(false))
	writeTestFile(t, garbage, []byte("not a pe"))

	tests := []struct {
		platform platform.Platform
		path     string
		want     bool
	}{
		{platform.PlatformWindows, managed, false},
		{platform.PlatformWindows, native, true},
		{platform.PlatformWindows, garbage, true},
		{platform.PlatformWindows, "Game.pdb", true},
		{platform.PlatformWindows, "Game.json", false},
		{platform.PlatformUWP, "Game.winmd", true},
		{platform.PlatformGDK, managed, false},
		{platform.PlatformLinux, "libGame.so", true},
		{platform.PlatformLinux, "libmono.so.1", true},
		{platform.PlatformLinux, "Game.CSharp.dll", false},
		{platform.PlatformMac, "libGame.dylib", true},
		{platform.PlatformMac, "Game.CSharp.dll", false},
		{platform.PlatformAndroid, "libGame.so", true},
		{platform.PlatformAndroid, "Game.CSharp.dll", false},
		{platform.PlatformIOS, "libGame.a", true},
	}
	for _, tt := range tests {
		tools, err := New(tt.platform, platform.ArchX64)
		if err != nil {
			t.Fatal(err)
		}
		if got := tools.IsNativeCodeFile(tt.path); got != tt.want {
			t.Errorf("%s IsNativeCodeFile(%s) = %v, want %v", tt.platform, filepath.Base(tt.path), got, tt.want)
		}
	}
}

func TestMacRoutesIntoBundle(t *testing.T) {
	data, _ := newData(t, platform.PlatformMac, platform.ArchARM64, nil)
	contents := filepath.Join(data.OriginalOutputPath, "MyGame.app", "Contents")
	if data.DataOutputPath != filepath.Join(contents, "Resources") ||
		data.NativeCodeOutputPath != filepath.Join(contents, "MacOS") ||
		data.ManagedCodeOutputPath != filepath.Join(contents, "MacOS") {
		t.Errorf("layout = %s %s %s", data.DataOutputPath, data.NativeCodeOutputPath, data.ManagedCodeOutputPath)
	}
}

func TestMacPostProcess(t *testing.T) {
	data, runner := newData(t, platform.PlatformMac, platform.ArchARM64, nil)
	writeTestFile(t, filepath.Join(data.NativeCodeOutputPath, "FlaxGame"), []byte("exe"))

	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	plist, err := os.ReadFile(filepath.Join(data.OriginalOutputPath, "MyGame.app", "Contents", "Info.plist"))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"<string>MyGame</string>", "<string>com.Acme.MyGame</string>", "<string>1.2.3</string>"} {
		if !strings.Contains(string(plist), s) {
			t.Errorf("Info.plist misses %s", s)
		}
	}
	if strings.Contains(string(plist), "${") {
		t.Errorf("Info.plist has unexpanded keys")
	}
	if !platform.Exists(filepath.Join(data.NativeCodeOutputPath, "MyGame")) {
		t.Errorf("executable not renamed")
	}
	if len(runner.calls) != 1 || runner.calls[0].Name != "hdiutil" {
		t.Fatalf("calls = %+v", runner.calls)
	}
	if !slices.Contains(runner.calls[0].Args, filepath.Join(data.OriginalOutputPath, "MyGame.dmg")) {
		t.Errorf("hdiutil args = %v", runner.calls[0].Args)
	}
}

func TestAndroidSkipPackaging(t *testing.T) {
	data, runner := newData(t, platform.PlatformAndroid, platform.ArchARM64, nil)
	data.SkipPackaging = true

	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("packaging ran: %+v", runner.calls)
	}
	if want := filepath.Join(data.OriginalOutputPath, "app", "src", "main", "jniLibs", "arm64-v8a"); data.NativeCodeOutputPath != want {
		t.Errorf("native output = %s, want %s", data.NativeCodeOutputPath, want)
	}

	main := filepath.Join(data.OriginalOutputPath, "app", "src", "main")
	manifest, err := os.ReadFile(filepath.Join(main, "AndroidManifest.xml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{`package="com.acme.mygame"`, `android:versionCode="10203"`, `android:name="android.permission.INTERNET"`, `android:minSdkVersion="24"`} {
		if !strings.Contains(string(manifest), s) {
			t.Errorf("manifest misses %s:\n%s", s, manifest)
		}
	}
	if w, h := pngSize(t, filepath.Join(main, "res", "mipmap-xxxhdpi", "icon.png")); w != 192 || h != 192 {
		t.Errorf("xxxhdpi icon is %dx%d", w, h)
	}
	if w, _ := pngSize(t, filepath.Join(main, "res", "mipmap-mdpi", "icon.png")); w != 48 {
		t.Errorf("mdpi icon is %d wide", w)
	}
}

func TestAndroidPackagingEnvironment(t *testing.T) {
	data, runner := newData(t, platform.PlatformAndroid, platform.ArchARM64, nil)
	if err := data.Tools.OnPostProcess(data); !core.IsKind(err, core.KindValidation) || !strings.Contains(err.Error(), "ANDROID_SDK") {
		t.Fatalf("err = %v, want a Validation error naming ANDROID_SDK", err)
	}

	data, runner = newData(t, platform.PlatformAndroid, platform.ArchARM64, map[string]string{
		"ANDROID_SDK_ROOT": "/sdk",
		"JAVA_HOME":        "/jdk",
	})
	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %+v", runner.calls)
	}
	cmd := runner.calls[0]
	if !strings.HasPrefix(filepath.Base(cmd.Name), "gradlew") || !slices.Equal(cmd.Args, []string{"assembleDebug"}) {
		t.Errorf("command = %s", cmd.CommandLine())
	}
	if !slices.Contains(cmd.Env, "JAVA_HOME=/jdk") || !slices.Contains(cmd.Env, "ANDROID_SDK_ROOT=/sdk") {
		t.Errorf("env = %v", cmd.Env)
	}
}

func TestIOSUsesMonoAOT(t *testing.T) {
	data, runner := newData(t, platform.PlatformIOS, platform.ArchARM64, nil)
	if got := data.Tools.AOTMode().String(); got != "MonoAOTDynamic" {
		t.Errorf("AOT mode = %s", got)
	}
	data.Settings.Platforms.IOS.TeamID = "TEAM42"
	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	opts, err := os.ReadFile(filepath.Join(data.OriginalOutputPath, "ExportOptions.plist"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(opts), "<string>TEAM42</string>") || !strings.Contains(string(opts), "<string>development</string>") {
		t.Errorf("ExportOptions.plist:\n%s", opts)
	}
	if len(runner.calls) != 2 || runner.calls[0].Args[0] != "archive" || runner.calls[1].Args[0] != "-exportArchive" {
		t.Errorf("calls = %+v", runner.calls)
	}
}

func TestGDKNeedsGameDK(t *testing.T) {
	data, _ := newData(t, platform.PlatformGDK, platform.ArchX64, nil)
	if err := data.Tools.OnPostProcess(data); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("err = %v, want Validation", err)
	}

	data, runner := newData(t, platform.PlatformGDK, platform.ArchX64, map[string]string{"GRDKLatest": "/gdk"})
	data.Settings.Platforms.GDK.TitleID = "1234ABCD"
	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	gameConfig, err := os.ReadFile(filepath.Join(data.OriginalOutputPath, "MicrosoftGame.config"))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"<TitleId>1234ABCD</TitleId>", `Version="1.2.3.0"`, ProjectGUID(data).String()} {
		if !strings.Contains(string(gameConfig), s) {
			t.Errorf("MicrosoftGame.config misses %s", s)
		}
	}
	if len(runner.calls) != 2 {
		t.Fatalf("calls = %+v", runner.calls)
	}
	if want := filepath.Join("/gdk", "bin", "makepkg.exe"); runner.calls[0].Name != want || runner.calls[0].Args[0] != "genmap" || runner.calls[1].Args[0] != "pack" {
		t.Errorf("calls = %+v", runner.calls)
	}
}

func TestGDKSkipPackagingWithoutGameDK(t *testing.T) {
	data, runner := newData(t, platform.PlatformGDK, platform.ArchX64, nil)
	data.SkipPackaging = true
	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("packaging ran: %+v", runner.calls)
	}
	if !platform.Exists(filepath.Join(data.OriginalOutputPath, "MicrosoftGame.config")) {
		t.Errorf("MicrosoftGame.config not staged")
	}
}

func TestUWPSkipPackaging(t *testing.T) {
	data, runner := newData(t, platform.PlatformUWP, platform.ArchX64, nil)
	data.SkipPackaging = true
	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("packaging ran")
	}
	manifest, err := os.ReadFile(filepath.Join(data.OriginalOutputPath, "AppxManifest.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(manifest), `Name="Acme.MyGame"`) || !strings.Contains(string(manifest), `Publisher="CN=Acme"`) {
		t.Errorf("manifest:\n%s", manifest)
	}
	if w, _ := pngSize(t, filepath.Join(data.OriginalOutputPath, "Assets", "Square44x44Logo.png")); w != 44 {
		t.Errorf("logo is %d wide", w)
	}
}

func TestWindowsIconFailureIsAWarning(t *testing.T) {
	data, _ := newData(t, platform.PlatformWindows, platform.ArchX64, nil)
	writeTestFile(t, filepath.Join(data.NativeCodeOutputPath, "FlaxGame.exe"), []byte("not an executable"))

	if err := data.Tools.OnPostProcess(data); err != nil {
		t.Fatalf("icon failure should only warn: %v", err)
	}
	exe := filepath.Join(data.NativeCodeOutputPath, "MyGame.exe")
	got, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "not an executable" {
		t.Errorf("executable was modified")
	}
}

func TestProjectGUIDIsStable(t *testing.T) {
	a, _ := newData(t, platform.PlatformUWP, platform.ArchX64, nil)
	b, _ := newData(t, platform.PlatformGDK, platform.ArchX64, nil)
	if ProjectGUID(a) != ProjectGUID(b) {
		t.Errorf("GUID depends on more than company and product")
	}
	if ProjectGUID(a).Version() != 5 {
		t.Errorf("GUID version = %d", ProjectGUID(a).Version())
	}
	b.Settings.Game.ProductName = "Other"
	if ProjectGUID(a) == ProjectGUID(b) {
		t.Errorf("GUID ignores the product name")
	}
}

func TestVersions(t *testing.T) {
	if got := versionCode("1.2.3"); got != "10203" {
		t.Errorf("versionCode = %s", got)
	}
	if got := versionCode(""); got != "1" {
		t.Errorf("versionCode of empty = %s", got)
	}
	if got := fourPartVersion("1.2"); got != "1.2.0.0" {
		t.Errorf("fourPartVersion = %s", got)
	}
}

func TestFileSafeName(t *testing.T) {
	if got := FileSafeName("My Game: Deluxe!"); got != "MyGameDeluxe" {
		t.Errorf("got %q", got)
	}
	if got := FileSafeName("???"); got != "Game" {
		t.Errorf("got %q", got)
	}
}
