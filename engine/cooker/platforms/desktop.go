package platforms

import (
	"debug/pe"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/peicon"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

const engineExecutable = "FlaxGame"

// isManagedAssembly reports whether path is a PE image with a CLR header.
func isManagedAssembly(path string) bool {
	f, err := pe.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	const clrDirectory = pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR
	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	}
	return len(dirs) > clrDirectory && dirs[clrDirectory].VirtualAddress != 0
}

// isWindowsNative is shared by the Windows family.
func isWindowsNative(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".pdb", ".lib":
		return true
	case ".dll":
		return !isManagedAssembly(path)
	}
	return false
}

// Windows cooks a plain folder with the game executable.
type Windows struct {
	base
}

func (w *Windows) IsNativeCodeFile(path string) bool {
	return isWindowsNative(path)
}

func (w *Windows) OnPostProcess(data *cooker.CookingData) error {
	exe, err := renameExecutable(data.NativeCodeOutputPath, engineExecutable+".exe", FileSafeName(data.Settings.Game.ProductName)+".exe")
	if err != nil || exe == "" {
		return err
	}
	if err := data.StepProgress("Updating the executable icon", 0.5); err != nil {
		return err
	}
	icon, err := loadIcon(data)
	if err != nil {
		return err
	}
	if icon == nil {
		return nil
	}
	if err := peicon.UpdateIcon(data.Context(), exe, icon); err != nil {
		if peicon.IsWarning(err) {
			core.LogWarn("cannot set the icon of %s: %s", exe, err)
			return nil
		}
		return err
	}
	return nil
}

// Linux cooks a folder with an ELF executable.
type Linux struct {
	base
}

func (l *Linux) IsNativeCodeFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".so") || strings.Contains(name, ".so.") || filepath.Ext(name) == ""
}

func (l *Linux) OnPostProcess(data *cooker.CookingData) error {
	name := FileSafeName(data.Settings.Game.ProductName)
	exe, err := renameExecutable(data.NativeCodeOutputPath, engineExecutable, name)
	if err != nil {
		return err
	}
	if exe != "" {
		if err := os.Chmod(exe, 0o755); err != nil {
			return core.NewPathError(core.KindIO, "linux post process", exe, err)
		}
	}
	return exportIcons(data, map[string]int{
		filepath.Join(data.DataOutputPath, "Logo.png"): 128,
	})
}

// Mac cooks an application bundle and optionally a disk image.
type Mac struct {
	base
}

func (m *Mac) bundle(data *cooker.CookingData) string {
	return filepath.Join(data.OriginalOutputPath, FileSafeName(productName(data))+".app")
}

// OnBuildStarted routes everything into <Product>.app/Contents.
func (m *Mac) OnBuildStarted(data *cooker.CookingData) {
	contents := filepath.Join(m.bundle(data), "Contents")
	data.DataOutputPath = filepath.Join(contents, "Resources")
	data.NativeCodeOutputPath = filepath.Join(contents, "MacOS")
	data.ManagedCodeOutputPath = filepath.Join(contents, "MacOS")
}

func (m *Mac) IsNativeCodeFile(path string) bool {
	return hasExt(path, ".dylib", ".a") || filepath.Ext(path) == ""
}

func (m *Mac) OnPostProcess(data *cooker.CookingData) error {
	vars := templateVars(data)
	settings := data.Settings.Platforms.Mac
	vars["BundleIdentifier"] = settings.BundleIdentifier
	if vars["BundleIdentifier"] == "" {
		vars["BundleIdentifier"] = "com." + FileSafeName(data.Settings.Game.CompanyName) + "." + vars["Executable"]
	}
	vars["Category"] = settings.Category
	vars["Icon"] = "icon.png"

	exe, err := renameExecutable(data.NativeCodeOutputPath, engineExecutable, vars["Executable"])
	if err != nil {
		return err
	}
	if exe != "" {
		if err := os.Chmod(exe, 0o755); err != nil {
			return core.NewPathError(core.KindIO, "mac post process", exe, err)
		}
	}

	contents := filepath.Join(m.bundle(data), "Contents")
	plist := filepath.Join(data.PlatformDataPath(), "Default.plist")
	if err := expandFile(plist, macInfoPlist, filepath.Join(contents, "Info.plist"), vars); err != nil {
		return err
	}
	if err := exportIcons(data, map[string]int{filepath.Join(data.DataOutputPath, vars["Icon"]): 512}); err != nil {
		return err
	}

	if skipPackaging(data, "disk image") {
		return nil
	}
	if err := data.StepProgress("Creating disk image", 0.6); err != nil {
		return err
	}
	dmg := filepath.Join(data.OriginalOutputPath, vars["Executable"]+".dmg")
	return run(data, "hdiutil", platform.WithArgs("create", "-volname", data.Settings.Game.ProductName,
		"-srcfolder", m.bundle(data), "-ov", "-format", "UDZO", dmg))
}

const macInfoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleDevelopmentRegion</key>
	<string>English</string>
	<key>CFBundleExecutable</key>
	<string>${Executable}</string>
	<key>CFBundleIconFile</key>
	<string>${Icon}</string>
	<key>CFBundleIdentifier</key>
	<string>${BundleIdentifier}</string>
	<key>CFBundleName</key>
	<string>${ProductName}</string>
	<key>CFBundlePackageType</key>
	<string>APPL</string>
	<key>CFBundleShortVersionString</key>
	<string>${Version}</string>
	<key>CFBundleVersion</key>
	<string>${Version}</string>
	<key>LSApplicationCategoryType</key>
	<string>${Category}</string>
	<key>NSHumanReadableCopyright</key>
	<string>${CompanyName}</string>
	<key>NSHighResolutionCapable</key>
	<true/>
</dict>
</plist>
`
