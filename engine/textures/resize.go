package textures

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

// Resize scales the top mip of every slice of src to width x height and
// stores the result in dst. When src carried a mip chain, dst gets a
// full chain regenerated from the new top mip.
func Resize(ctx context.Context, dst, src *TextureData, width, height int) error {
	if width <= 0 || height <= 0 {
		return core.Errorf(core.KindValidation, "texture resize", "invalid size %dx%d", width, height)
	}
	if format.IsCompressed(src.Format) {
		return core.Errorf(core.KindUnsupported, "texture resize", "decompress %s before resizing", src.Format)
	}
	s := sampler.Get(src.Format)
	if s == nil {
		return core.Errorf(core.KindUnsupported, "texture resize", "cannot sample %s", src.Format)
	}

	out := NewTextureData(src.Format, width, height, src.ArraySize(), 1)
	for a := range src.Items {
		if err := ctx.Err(); err != nil {
			return core.NewError(core.KindCancelled, "texture resize", err)
		}
		from := src.Mip(a, 0)
		to := out.Mip(a, 0)
		switch src.Format {
		case format.R8G8B8A8_UNorm, format.B8G8R8A8_UNorm:
			resizeRGBA8(from, to, src.Width, src.Height, width, height)
		default:
			resizeSampled(s, format.IsSRGB(src.Format), from, to, src.Width, src.Height, width, height)
		}
	}
	if src.MipLevels() > 1 {
		if err := GenerateMipMaps(out, 0); err != nil {
			return err
		}
	}
	*dst = *out
	return nil
}

func resizeRGBA8(src, dst *TextureMipData, sw, sh, dw, dh int) {
	srcImg := &image.NRGBA{Pix: src.Data, Stride: src.RowPitch, Rect: image.Rect(0, 0, sw, sh)}
	dstImg := &image.NRGBA{Pix: dst.Data, Stride: dst.RowPitch, Rect: image.Rect(0, 0, dw, dh)}
	draw.CatmullRom.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)
}

// resizeSampled filters through the sampler bank. Each destination texel
// averages a grid of bilinear taps covering its footprint, so large
// downscales do not alias. sRGB data is filtered in linear space.
func resizeSampled(s *sampler.Sampler, srgb bool, src, dst *TextureMipData, sw, sh, dw, dh int) {
	taps := func(from, to int) int {
		return max(1, math.DivideAndRoundUp(from, to))
	}
	tx, ty := taps(sw, dw), taps(sh, dh)
	weight := 1 / float32(tx*ty)

	if srgb {
		// Linearize once instead of once per tap.
		linear := make([]byte, sw*sh*16)
		ls := sampler.Get(format.R32G32B32A32_Float)
		for y := 0; y < sh; y++ {
			for x := 0; x < sw; x++ {
				ls.Store(x, y, linear, sw*16, s.SamplePoint(x, y, src.Data, src.RowPitch).SrgbToLinear())
			}
		}
		src = &TextureMipData{RowPitch: sw * 16, Data: linear}
	}
	read := s
	if srgb {
		read = sampler.Get(format.R32G32B32A32_Float)
	}

	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var c math.Color
			for j := 0; j < ty; j++ {
				v := (float32(y) + (float32(j)+0.5)/float32(ty)) / float32(dh)
				for i := 0; i < tx; i++ {
					u := (float32(x) + (float32(i)+0.5)/float32(tx)) / float32(dw)
					c = c.Add(read.SampleLinear(u, v, src.Data, sw, sh, src.RowPitch))
				}
			}
			c = c.Scale(weight)
			if srgb {
				c = c.LinearToSrgb()
			}
			s.Store(x, y, dst.Data, dst.RowPitch, c)
		}
	}
}
