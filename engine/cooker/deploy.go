package cooker

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/cooker/cache"
	"github.com/spaghettifunk/anima-cooker/engine/cooker/dotnet"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
)

// engineRootAssets are always cooked, whatever the game references.
var engineRootAssets = []string{
	"Engine/DefaultMaterial",
	"Engine/DefaultDeformableMaterial",
	"Engine/DefaultTerrainMaterial",
	"Engine/WhiteMaterial",
	"Engine/Textures/WhiteTexture",
	"Engine/Textures/BlackTexture",
	"Engine/Textures/NormalTexture",
	"Engine/Textures/Splash",
	"Engine/Models/Box",
	"Engine/Models/Sphere",
	"Engine/Models/Quad",
	"Engine/Shaders/GBuffer",
	"Engine/Shaders/Lights",
	"Engine/Shaders/PostProcessing",
	"Engine/Shaders/GUI",
	"Engine/Shaders/Sky",
}

// DeployDataStep clears the cooked content, stages the runtime and cooks
// the root assets.
type DeployDataStep struct{}

func (s *DeployDataStep) Name() string { return "DeployData" }

func (s *DeployDataStep) OnBuildStarted(data *CookingData) {}

func (s *DeployDataStep) Perform(data *CookingData) error {
	if err := data.StepProgress("Cleaning content", 0); err != nil {
		return err
	}
	content := data.ContentPath()
	if err := os.RemoveAll(content); err != nil {
		return core.NewPathError(core.KindIO, "deploy data", content, err)
	}
	if err := os.MkdirAll(content, 0o755); err != nil {
		return core.NewPathError(core.KindIO, "deploy data", content, err)
	}

	if err := data.StepProgress("Deploying runtime", 0.1); err != nil {
		return err
	}
	rt, err := dotnet.Stage(data.Context(), data.RuntimeOptions())
	if err != nil {
		return err
	}
	data.Runtime = rt

	if err := data.StepProgress("Registering root assets", 0.4); err != nil {
		return err
	}
	assets, err := collectAssets(data)
	if err != nil {
		return err
	}
	data.RootAssets = assets

	project := slices.DeleteFunc(slices.Clone(assets), func(a string) bool {
		return strings.HasPrefix(a, "Engine/")
	})
	for i, rel := range project {
		if err := data.StepProgress("Cooking "+rel, 0.4+0.6*float32(i)/float32(len(project))); err != nil {
			return err
		}
		if err := cookAsset(data, rel); err != nil {
			return err
		}
	}
	return data.StepProgress("Data deployed", 1)
}

// collectAssets lists the engine root assets then the project assets of
// the build settings, as slash separated paths relative to the project.
func collectAssets(data *CookingData) ([]string, error) {
	assets := slices.Clone(engineRootAssets)
	seen := make(map[string]struct{})
	add := func(rel string) {
		rel = filepath.ToSlash(filepath.Clean(rel))
		if _, ok := seen[rel]; ok {
			return
		}
		seen[rel] = struct{}{}
		assets = append(assets, rel)
	}

	build := data.Settings.Build
	for _, a := range build.AdditionalAssets {
		if !platform.Exists(filepath.Join(data.ProjectDir, a)) {
			core.LogWarn("additional asset %s does not exist", a)
			continue
		}
		add(a)
	}
	for _, folder := range build.AdditionalAssetFolders {
		root := filepath.Join(data.ProjectDir, folder)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(data.ProjectDir, path)
			if err != nil {
				return err
			}
			add(rel)
			return nil
		})
		if errors.Is(err, fs.ErrNotExist) {
			core.LogWarn("additional asset folder %s does not exist", folder)
			continue
		}
		if err != nil {
			return nil, core.NewPathError(core.KindIO, "collect assets", root, err)
		}
	}
	core.LogInfo("registered %d root asset(s)", len(assets))
	return assets, nil
}

// cookAsset writes one project asset into Content. Textures are imported
// and stored as DDS, anything else is copied.
func cookAsset(data *CookingData, rel string) error {
	src := filepath.Join(data.ProjectDir, filepath.FromSlash(rel))
	if !textures.IsTextureFile(src) {
		return platform.CopyFile(src, filepath.Join(data.ContentPath(), filepath.FromSlash(rel)))
	}
	dst := filepath.Join(data.ContentPath(), filepath.FromSlash(strings.TrimSuffix(rel, filepath.Ext(rel))+".dds"))
	return cookTexture(data, src, rel, dst)
}

// textureEntry describes a cooked texture blob.
type textureEntry struct {
	Source string `cbor:"1,keyasint"`
	Format string `cbor:"2,keyasint"`
	Width  int    `cbor:"3,keyasint"`
	Height int    `cbor:"4,keyasint"`
	Mips   int    `cbor:"5,keyasint"`
}

// textureSettingsKey covers every option that changes cooked texels.
func textureSettingsKey(opts textures.ImportOptions) (string, error) {
	return cache.SummaryKey(opts.Family.String(), opts.Quality.String(), opts.Compress, opts.GenerateMipMaps,
		opts.MaxSize, opts.PreserveAlphaCoverage, opts.AlphaCoverageReference, opts.SRGB)
}

func cookTexture(data *CookingData, src, rel, dst string) error {
	opts := data.TextureOptions()
	if data.Cache == nil {
		blob, _, err := encodeTexture(data, src, opts)
		if err != nil {
			return err
		}
		return writeContent(dst, blob)
	}

	settings, err := textureSettingsKey(opts)
	if err != nil {
		return err
	}
	// Every entry carries its own key.
	upToDate, err := data.Cache.Check(cache.StepTextures, settings)
	if err != nil {
		return err
	}
	if !upToDate {
		if err := data.Cache.Commit(cache.StepTextures, settings); err != nil {
			return err
		}
	}
	info, err := os.Stat(src)
	if err != nil {
		return core.NewPathError(core.KindIO, "cook texture", src, err)
	}
	key, err := cache.SummaryKey(rel, info.Size(), info.ModTime().UnixNano())
	if err != nil {
		return err
	}

	var entry textureEntry
	if err := data.Cache.LoadRecord(cache.StepTextures, key+".info", &entry); err == nil {
		if blob, err := data.Cache.Load(cache.StepTextures, key); err == nil {
			core.LogDebug("%s: cached %s %dx%d", rel, entry.Format, entry.Width, entry.Height)
			return writeContent(dst, blob)
		} else if !errors.Is(err, cache.ErrMiss) {
			return err
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		return err
	}

	blob, tex, err := encodeTexture(data, src, opts)
	if err != nil {
		return err
	}
	if err := data.Cache.Save(cache.StepTextures, key, blob, cache.CompressionAuto); err != nil {
		return err
	}
	entry = textureEntry{Source: rel, Format: tex.Format.String(), Width: tex.Width, Height: tex.Height, Mips: tex.MipLevels()}
	if err := data.Cache.SaveRecord(cache.StepTextures, key+".info", entry); err != nil {
		return err
	}
	core.LogDebug("%s: cooked %s", rel, tex)
	return writeContent(dst, blob)
}

// encodeTexture imports src and returns it as a DDS file.
func encodeTexture(data *CookingData, src string, opts textures.ImportOptions) ([]byte, *textures.TextureData, error) {
	tex, _, err := textures.Import(data.Context(), src, opts)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := textures.EncodeDDS(&buf, tex); err != nil {
		return nil, nil, core.NewPathError(core.KindOf(err), "cook texture", src, err)
	}
	return buf.Bytes(), tex, nil
}

func writeContent(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewPathError(core.KindIO, "write content", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return core.NewPathError(core.KindIO, "write content", path, err)
	}
	return nil
}
