package platforms

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

// Android cooks a Gradle project and builds an APK from it.
type Android struct {
	base
}

func androidABI(a platform.Architecture) string {
	switch a {
	case platform.ArchARM64:
		return "arm64-v8a"
	case platform.ArchARM:
		return "armeabi-v7a"
	case platform.ArchX64:
		return "x86_64"
	case platform.ArchX86:
		return "x86"
	}
	return a.String()
}

func (a *Android) project(data *cooker.CookingData) string {
	return filepath.Join(data.OriginalOutputPath, "app")
}

func (a *Android) OnBuildStarted(data *cooker.CookingData) {
	main := filepath.Join(a.project(data), "src", "main")
	data.DataOutputPath = filepath.Join(main, "assets")
	data.NativeCodeOutputPath = filepath.Join(main, "jniLibs", androidABI(a.arch))
	data.ManagedCodeOutputPath = filepath.Join(main, "assets")
}

func (a *Android) IsNativeCodeFile(path string) bool {
	return hasExt(path, ".so")
}

func (a *Android) OnPostProcess(data *cooker.CookingData) error {
	settings := data.Settings.Platforms.Android
	vars := templateVars(data)
	vars["PackageName"] = settings.PackageName
	if vars["PackageName"] == "" {
		vars["PackageName"] = strings.ToLower("com." + FileSafeName(data.Settings.Game.CompanyName) + "." + vars["Executable"])
	}
	vars["MinSDK"] = strconv.Itoa(settings.MinSDK)
	vars["TargetSDK"] = strconv.Itoa(settings.TargetSDK)
	vars["ABI"] = androidABI(a.arch)
	vars["VersionCode"] = versionCode(vars["Version"])
	var perms strings.Builder
	for _, p := range settings.Permissions {
		fmt.Fprintf(&perms, "    <uses-permission android:name=\"%s\" />\n", p)
	}
	vars["Permissions"] = perms.String()

	if err := deployTemplate(filepath.Join(data.PlatformDataPath(), "Project"), data.OriginalOutputPath, vars); err != nil {
		return err
	}
	main := filepath.Join(a.project(data), "src", "main")
	if err := expandFile(filepath.Join(main, "AndroidManifest.xml"), androidManifest, filepath.Join(main, "AndroidManifest.xml"), vars); err != nil {
		return err
	}
	icons := map[string]int{}
	for dir, size := range map[string]int{"mdpi": 48, "hdpi": 72, "xhdpi": 96, "xxhdpi": 144, "xxxhdpi": 192} {
		icons[filepath.Join(main, "res", "mipmap-"+dir, "icon.png")] = size
	}
	if err := exportIcons(data, icons); err != nil {
		return err
	}

	if skipPackaging(data, "APK packaging") {
		return nil
	}
	sdk, err := a.requireEnv("ANDROID_SDK", "ANDROID_SDK_ROOT")
	if err != nil {
		return err
	}
	java, err := a.requireEnv("JAVA_HOME")
	if err != nil {
		return err
	}
	if err := data.StepProgress("Building APK", 0.6); err != nil {
		return err
	}
	gradle := filepath.Join(data.OriginalOutputPath, "gradlew")
	if platform.Host() == platform.PlatformWindows {
		gradle += ".bat"
	}
	task := "assembleDebug"
	if data.Configuration == platform.ConfigurationRelease {
		task = "assembleRelease"
	}
	return run(data, gradle,
		platform.WithArgs(task),
		platform.WithDir(data.OriginalOutputPath),
		platform.WithEnv("JAVA_HOME="+java, "ANDROID_SDK_ROOT="+sdk, "ANDROID_HOME="+sdk))
}

// versionCode turns major.minor.patch into the integer Android requires.
func versionCode(version string) string {
	code := 0
	parts := strings.SplitN(version, ".", 3)
	for i := 0; i < 3; i++ {
		n := 0
		if i < len(parts) {
			n, _ = strconv.Atoi(parts[i])
		}
		code = code*100 + n
	}
	return strconv.Itoa(max(code, 1))
}

const androidManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="${PackageName}"
    android:versionCode="${VersionCode}"
    android:versionName="${Version}">
    <uses-sdk android:minSdkVersion="${MinSDK}" android:targetSdkVersion="${TargetSDK}" />
${Permissions}    <application android:label="${ProductName}" android:icon="@mipmap/icon" android:hasCode="true">
        <activity android:name="com.anima.GameActivity" android:exported="true">
            <meta-data android:name="android.app.lib_name" android:value="${Executable}" />
            <intent-filter>
                <action android:name="android.intent.action.MAIN" />
                <category android:name="android.intent.category.LAUNCHER" />
            </intent-filter>
        </activity>
    </application>
</manifest>
`

// IOS cooks an Xcode project and archives it into an IPA.
type IOS struct {
	base
}

// AOTMode is Mono AOT, iOS forbids generating code at runtime.
func (i *IOS) AOTMode() dotnet.AOTMode {
	return dotnet.AOTMonoDynamic
}

func (i *IOS) project(data *cooker.CookingData) string {
	return filepath.Join(data.OriginalOutputPath, "XCode")
}

func (i *IOS) OnBuildStarted(data *cooker.CookingData) {
	game := filepath.Join(i.project(data), "Game")
	data.DataOutputPath = filepath.Join(game, "Data")
	data.NativeCodeOutputPath = game
	data.ManagedCodeOutputPath = filepath.Join(game, "Data", "Managed")
}

func (i *IOS) IsNativeCodeFile(path string) bool {
	return hasExt(path, ".dylib", ".a", ".framework")
}

func (i *IOS) OnPostProcess(data *cooker.CookingData) error {
	settings := data.Settings.Platforms.IOS
	vars := templateVars(data)
	vars["BundleIdentifier"] = settings.BundleIdentifier
	if vars["BundleIdentifier"] == "" {
		vars["BundleIdentifier"] = "com." + FileSafeName(data.Settings.Game.CompanyName) + "." + vars["Executable"]
	}
	vars["TeamID"] = settings.TeamID
	vars["ExportMethod"] = settings.ExportMethod

	project := i.project(data)
	if err := deployTemplate(filepath.Join(data.PlatformDataPath(), "Project"), project, vars); err != nil {
		return err
	}
	exportOptions := filepath.Join(data.OriginalOutputPath, "ExportOptions.plist")
	if err := expandFile("", iosExportOptions, exportOptions, vars); err != nil {
		return err
	}
	iconSet := filepath.Join(project, "Game", "Assets.xcassets", "AppIcon.appiconset")
	if err := exportIcons(data, map[string]int{filepath.Join(iconSet, "icon-1024.png"): 1024}); err != nil {
		return err
	}

	if skipPackaging(data, "IPA packaging") {
		return nil
	}
	if err := data.StepProgress("Archiving Xcode project", 0.5); err != nil {
		return err
	}
	archive := filepath.Join(data.OriginalOutputPath, vars["Executable"]+".xcarchive")
	config := "Debug"
	if data.Configuration == platform.ConfigurationRelease {
		config = "Release"
	}
	err := run(data, "xcodebuild", platform.WithArgs("archive",
		"-project", filepath.Join(project, vars["Executable"]+".xcodeproj"),
		"-scheme", vars["Executable"],
		"-configuration", config,
		"-sdk", "iphoneos",
		"-archivePath", archive,
		"DEVELOPMENT_TEAM="+settings.TeamID))
	if err != nil {
		return err
	}
	if err := data.StepProgress("Exporting IPA", 0.8); err != nil {
		return err
	}
	return run(data, "xcodebuild", platform.WithArgs("-exportArchive",
		"-archivePath", archive,
		"-exportOptionsPlist", exportOptions,
		"-exportPath", data.OriginalOutputPath))
}

const iosExportOptions = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>method</key>
	<string>${ExportMethod}</string>
	<key>teamID</key>
	<string>${TeamID}</string>
	<key>compileBitcode</key>
	<false/>
</dict>
</plist>
`
