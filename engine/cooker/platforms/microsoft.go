package platforms

import (
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

// UWP cooks an app package layout and packs it with MakeAppx.
type UWP struct {
	base
}

func (u *UWP) IsNativeCodeFile(path string) bool {
	return isWindowsNative(path) || hasExt(path, ".winmd")
}

func (u *UWP) OnPostProcess(data *cooker.CookingData) error {
	settings := data.Settings.Platforms.UWP
	vars := templateVars(data)
	vars["PublisherName"] = settings.PublisherName
	if vars["PublisherName"] == "" {
		vars["PublisherName"] = "CN=" + data.Settings.Game.CompanyName
	}
	vars["IdentityName"] = FileSafeName(data.Settings.Game.CompanyName) + "." + vars["Executable"]
	vars["AppxVersion"] = fourPartVersion(vars["Version"])

	if _, err := renameExecutable(data.NativeCodeOutputPath, engineExecutable+".exe", vars["Executable"]+".exe"); err != nil {
		return err
	}
	manifest := filepath.Join(data.PlatformDataPath(), "Package.appxmanifest")
	if err := expandFile(manifest, uwpManifest, filepath.Join(data.OriginalOutputPath, "AppxManifest.xml"), vars); err != nil {
		return err
	}
	assets := filepath.Join(data.OriginalOutputPath, "Assets")
	err := exportIcons(data, map[string]int{
		filepath.Join(assets, "Square150x150Logo.png"): 150,
		filepath.Join(assets, "Square44x44Logo.png"):   44,
		filepath.Join(assets, "StoreLogo.png"):         50,
	})
	if err != nil {
		return err
	}

	if skipPackaging(data, "app package") {
		return nil
	}
	if err := data.StepProgress("Packing app package", 0.6); err != nil {
		return err
	}
	appx := filepath.Join(filepath.Dir(data.OriginalOutputPath), vars["Executable"]+".appx")
	if err := run(data, "MakeAppx.exe", platform.WithArgs("pack", "/o", "/d", data.OriginalOutputPath, "/p", appx)); err != nil {
		return err
	}
	if settings.CertificatePath == "" {
		core.LogWarn("no signing certificate set, %s is unsigned", appx)
		return nil
	}
	return run(data, "SignTool.exe", platform.WithArgs("sign", "/fd", "SHA256", "/a", "/f", settings.CertificatePath, appx))
}

// fourPartVersion pads a version to the a.b.c.d form app manifests need.
func fourPartVersion(v string) string {
	parts := 1
	for _, r := range v {
		if r == '.' {
			parts++
		}
	}
	for ; parts < 4; parts++ {
		v += ".0"
	}
	return v
}

const uwpManifest = `<?xml version="1.0" encoding="utf-8"?>
<Package xmlns="http://schemas.microsoft.com/appx/manifest/foundation/windows10"
  xmlns:uap="http://schemas.microsoft.com/appx/manifest/uap/windows10">
  <Identity Name="${IdentityName}" Publisher="${PublisherName}" Version="${AppxVersion}" ProcessorArchitecture="${Architecture}" />
  <Properties>
    <DisplayName>${ProductName}</DisplayName>
    <PublisherDisplayName>${CompanyName}</PublisherDisplayName>
    <Logo>Assets\StoreLogo.png</Logo>
  </Properties>
  <Dependencies>
    <TargetDeviceFamily Name="Windows.Universal" MinVersion="10.0.17763.0" MaxVersionTested="10.0.22621.0" />
  </Dependencies>
  <Resources>
    <Resource Language="en-us" />
  </Resources>
  <Applications>
    <Application Id="App" Executable="${Executable}.exe" EntryPoint="Windows.FullTrustApplication">
      <uap:VisualElements DisplayName="${ProductName}" Description="${ProductName}" BackgroundColor="transparent"
        Square150x150Logo="Assets\Square150x150Logo.png" Square44x44Logo="Assets\Square44x44Logo.png" />
    </Application>
  </Applications>
</Package>
`

// GDK cooks a Microsoft Game Development Kit layout and packs it with
// makepkg.
type GDK struct {
	base
}

func (g *GDK) IsNativeCodeFile(path string) bool {
	return isWindowsNative(path)
}

func (g *GDK) OnPostProcess(data *cooker.CookingData) error {
	settings := data.Settings.Platforms.GDK
	vars := templateVars(data)
	vars["TitleId"] = settings.TitleID
	vars["StoreId"] = settings.StoreID
	vars["Publisher"] = settings.Publisher
	if vars["Publisher"] == "" {
		vars["Publisher"] = "CN=" + data.Settings.Game.CompanyName
	}
	vars["IdentityName"] = FileSafeName(data.Settings.Game.CompanyName) + "." + vars["Executable"]
	vars["GameVersion"] = fourPartVersion(vars["Version"])
	if settings.TitleID == "" {
		core.LogWarn("GDK title id is not set, the package will only run in development sandboxes")
	}

	if _, err := renameExecutable(data.NativeCodeOutputPath, engineExecutable+".exe", vars["Executable"]+".exe"); err != nil {
		return err
	}
	config := filepath.Join(data.PlatformDataPath(), "MicrosoftGame.config")
	if err := expandFile(config, gdkConfig, filepath.Join(data.OriginalOutputPath, "MicrosoftGame.config"), vars); err != nil {
		return err
	}
	err := exportIcons(data, map[string]int{
		filepath.Join(data.OriginalOutputPath, "Assets", "Square150x150Logo.png"): 150,
		filepath.Join(data.OriginalOutputPath, "Assets", "Square44x44Logo.png"):   44,
		filepath.Join(data.OriginalOutputPath, "Assets", "StoreLogo.png"):         100,
		filepath.Join(data.OriginalOutputPath, "Assets", "SplashScreen.png"):      480,
	})
	if err != nil {
		return err
	}

	if skipPackaging(data, "GDK package") {
		return nil
	}
	gdk, err := g.requireEnv("GameDKLatest", "GRDKLatest")
	if err != nil {
		return err
	}
	makepkg := filepath.Join(gdk, "bin", "makepkg.exe")
	layout := filepath.Join(data.OriginalOutputPath, "layout.xml")
	if err := data.StepProgress("Generating package layout", 0.5); err != nil {
		return err
	}
	if err := run(data, makepkg, platform.WithArgs("genmap", "/f", layout, "/d", data.OriginalOutputPath)); err != nil {
		return err
	}
	if err := data.StepProgress("Packing GDK package", 0.7); err != nil {
		return err
	}
	pkg := filepath.Join(filepath.Dir(data.OriginalOutputPath), "Package")
	return run(data, makepkg, platform.WithArgs("pack", "/f", layout, "/d", data.OriginalOutputPath, "/pd", pkg))
}

const gdkConfig = `<?xml version="1.0" encoding="utf-8"?>
<Game configVersion="1">
  <Identity Name="${IdentityName}" Publisher="${Publisher}" Version="${GameVersion}" />
  <ExecutableList>
    <Executable Name="${Executable}.exe" Id="Game" />
  </ExecutableList>
  <TitleId>${TitleId}</TitleId>
  <StoreId>${StoreId}</StoreId>
  <ShellVisuals DefaultDisplayName="${ProductName}" PublisherDisplayName="${CompanyName}"
    StoreLogo="Assets\StoreLogo.png" Square150x150Logo="Assets\Square150x150Logo.png"
    Square44x44Logo="Assets\Square44x44Logo.png" SplashScreenImage="Assets\SplashScreen.png"
    BackgroundColor="#000000" ForegroundText="light" Description="${ProductName}" />
  <MSAAppId>${Guid}</MSAAppId>
</Game>
`
