package platforms

import (
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/cooker"
	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// loadIcon decodes the game icon, falling back to the engine logo. It
// returns nil when neither exists.
func loadIcon(data *cooker.CookingData) (*textures.TextureData, error) {
	path := ""
	if icon := data.Settings.Game.Icon; icon != "" {
		path = icon
		if !filepath.IsAbs(path) {
			path = filepath.Join(data.ProjectDir, path)
		}
	} else if logo := filepath.Join(data.EngineRoot, "Source", "Logo.png"); platform.Exists(logo) {
		path = logo
	}
	if path == "" {
		core.LogWarn("no game icon configured")
		return nil, nil
	}
	return textures.Load(path)
}

// exportIcon writes icon resized to size x size, in the container picked
// by the extension of dst.
func exportIcon(data *cooker.CookingData, icon *textures.TextureData, dst string, size int) error {
	opts := textures.DefaultImportOptions()
	opts.Compress = false
	opts.GenerateMipMaps = false
	opts.Resize = true
	opts.SizeX, opts.SizeY = size, size
	opts.InternalFormat = format.R8G8B8A8_UNorm
	out, _, err := textures.Process(data.Context(), icon, opts)
	if err != nil {
		return err
	}
	return textures.Export(data.Context(), dst, out, compress.Options{})
}

// exportIcons writes one icon per entry of sizes, keyed by destination.
func exportIcons(data *cooker.CookingData, sizes map[string]int) error {
	icon, err := loadIcon(data)
	if err != nil || icon == nil {
		return err
	}
	for dst, size := range sizes {
		if err := exportIcon(data, icon, dst, size); err != nil {
			return err
		}
	}
	return nil
}
