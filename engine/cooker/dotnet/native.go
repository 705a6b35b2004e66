package dotnet

import (
	"io/fs"
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

var mobileLibraries = map[platform.Platform][]string{
	platform.PlatformAndroid: {
		"libmonosgen-2.0.so",
		"libSystem.Native.so",
		"libSystem.IO.Compression.Native.so",
		"libSystem.Security.Cryptography.Native.Android.so",
	},
	platform.PlatformIOS: {
		"libmonosgen-2.0.dylib",
		"libSystem.Native.dylib",
		"libSystem.IO.Compression.Native.dylib",
		"libSystem.Net.Security.Native.dylib",
		"libSystem.Security.Cryptography.Native.Apple.dylib",
	},
}

var diagnosticComponents = []string{
	"libmono-component-debugger",
	"libmono-component-diagnostics_tracing",
	"libmono-component-hot_reload",
	"libmono-component-marshal-ilgen",
}

func libraryExt(p platform.Platform) string {
	if p == platform.PlatformIOS {
		return ".dylib"
	}
	return ".so"
}

// findFiles indexes file names below root. The first match wins.
func findFiles(root string) (map[string]string, error) {
	found := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return core.NewPathError(core.KindIO, "stage runtime", path, err)
		}
		if !d.IsDir() {
			if _, ok := found[d.Name()]; !ok {
				found[d.Name()] = path
			}
		}
		return nil
	})
	return found, err
}

// deployNativeLibraries copies the native pieces of the mobile runtime next
// to the game code. Diagnostic components are optional and only shipped
// outside Release.
func deployNativeLibraries(opts *Options, root string) error {
	files, err := findFiles(root)
	if err != nil {
		return err
	}
	for _, name := range mobileLibraries[opts.Platform] {
		src, ok := files[name]
		if !ok {
			return core.Errorf(core.KindIO, "stage runtime", "missing native runtime library %s in %s", name, root)
		}
		if err := platform.CopyFile(src, filepath.Join(opts.NativeOutput, name)); err != nil {
			return err
		}
	}
	if opts.Configuration == platform.ConfigurationRelease {
		return nil
	}
	for _, component := range diagnosticComponents {
		name := component + libraryExt(opts.Platform)
		src, ok := files[name]
		if !ok {
			core.LogWarn("diagnostic component %s not found", name)
			continue
		}
		if err := platform.CopyFile(src, filepath.Join(opts.NativeOutput, name)); err != nil {
			return err
		}
	}
	return nil
}
