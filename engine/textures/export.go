package textures

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// Export writes data to path in the container picked by its extension.
// DDS keeps the data as is. Other containers store the top mip of the
// first slice, decompressed and converted to what the container holds.
func Export(ctx context.Context, path string, data *TextureData, opts compress.Options) error {
	c := ContainerFromPath(path)
	if c == ContainerUnknown || c == ContainerEXR {
		return core.NewPathError(core.KindUnsupported, "texture export", path, fmt.Errorf("cannot write %s files", filepath.Ext(path)))
	}
	if err := data.Validate(); err != nil {
		return core.NewPathError(core.KindOf(err), "texture export", path, err)
	}
	if c != ContainerDDS {
		var err error
		if data, err = exportable(ctx, c, data, opts); err != nil {
			return core.NewPathError(core.KindOf(err), "texture export", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewPathError(core.KindIO, "texture export", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return core.NewPathError(core.KindIO, "texture export", path, err)
	}
	w := bufio.NewWriter(f)
	switch c {
	case ContainerDDS:
		err = EncodeDDS(w, data)
	case ContainerTGA:
		err = EncodeTGA(w, data)
	case ContainerHDR:
		err = EncodeHDR(w, data)
	case ContainerRAW:
		err = EncodeRAW(w, data)
	default:
		err = encodeImage(c, w, data)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return core.NewPathError(core.KindOf(err), "texture export", path, err)
	}
	return nil
}

// exportable reduces data to a single uncompressed surface in the format
// the container stores. Formats without alpha are written opaque.
func exportable(ctx context.Context, c Container, data *TextureData, opts compress.Options) (*TextureData, error) {
	top := &TextureData{Width: data.Width, Height: data.Height, Depth: 1, Format: data.Format,
		Items: []ArrayEntry{{Mips: data.Items[0].Mips[:1]}}}
	top, err := Decompress(ctx, top, opts)
	if err != nil {
		return nil, err
	}

	var target format.PixelFormat
	switch c {
	case ContainerHDR:
		target = format.R32G32B32A32_Float
	case ContainerRAW:
		target = format.R16_UNorm
	default:
		target = format.R8G8B8A8_UNorm
	}
	opaque := !format.HasAlpha(top.Format)
	src := top
	if format.IsSRGB(src.Format) {
		// Keep the stored bytes, containers carry no color space tag.
		src = &TextureData{Width: top.Width, Height: top.Height, Depth: 1, Format: format.ToNonSRGB(top.Format), Items: top.Items}
	}
	out := &TextureData{}
	if err := Convert(ctx, out, src, target, opts); err != nil {
		return nil, err
	}
	if opaque && format.HasAlpha(target) {
		if err := Transform(out, func(c math.Color) math.Color {
			c.A = 1
			return c
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
