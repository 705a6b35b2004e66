package textures

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// FlipY mirrors every mip vertically in place.
func FlipY(data *TextureData) error {
	if format.IsCompressed(data.Format) {
		return core.Errorf(core.KindUnsupported, "texture flip", "cannot flip compressed %s", data.Format)
	}
	for a := range data.Items {
		for m := range data.Items[a].Mips {
			mip := data.Mip(a, m)
			h := data.MipHeight(m)
			row := make([]byte, mip.RowPitch)
			for y := 0; y < h/2; y++ {
				top := mip.Data[y*mip.RowPitch : (y+1)*mip.RowPitch]
				bottom := mip.Data[(h-1-y)*mip.RowPitch : (h-y)*mip.RowPitch]
				copy(row, top)
				copy(top, bottom)
				copy(bottom, row)
			}
		}
	}
	return nil
}

// FlipX mirrors every mip horizontally in place.
func FlipX(data *TextureData) error {
	if format.IsCompressed(data.Format) {
		return core.Errorf(core.KindUnsupported, "texture flip", "cannot flip compressed %s", data.Format)
	}
	size := format.SizeInBytes(data.Format)
	pixel := make([]byte, size)
	for a := range data.Items {
		for m := range data.Items[a].Mips {
			mip := data.Mip(a, m)
			w, h := data.MipWidth(m), data.MipHeight(m)
			for y := 0; y < h; y++ {
				row := mip.Data[y*mip.RowPitch:]
				for x := 0; x < w/2; x++ {
					l := row[x*size : (x+1)*size]
					r := row[(w-1-x)*size : (w-x)*size]
					copy(pixel, l)
					copy(l, r)
					copy(r, pixel)
				}
			}
		}
	}
	return nil
}

// InvertChannels computes c = 1 - c on the selected channels.
func InvertChannels(data *TextureData, red, green, blue, alpha bool) error {
	if !red && !green && !blue && !alpha {
		return nil
	}
	return Transform(data, func(c math.Color) math.Color {
		if red {
			c.R = 1 - c.R
		}
		if green {
			c.G = 1 - c.G
		}
		if blue {
			c.B = 1 - c.B
		}
		if alpha {
			c.A = 1 - c.A
		}
		return c
	})
}

// ReconstructZ rebuilds the blue channel of a normal map from red and
// green. Unorm data is mapped to [-1, 1] first and back afterwards.
func ReconstructZ(data *TextureData) error {
	unorm := !format.IsFloat(data.Format)
	return Transform(data, func(c math.Color) math.Color {
		x, y := c.R, c.G
		if unorm {
			x, y = x*2-1, y*2-1
		}
		z := math32.Sqrt(max(0, 1-x*x-y*y))
		if unorm {
			z = z*0.5 + 0.5
		}
		c.B = z
		return c
	})
}

// RemoveAlpha forces every texel opaque.
func RemoveAlpha(data *TextureData) error {
	if !format.HasAlpha(data.Format) {
		return nil
	}
	return Transform(data, func(c math.Color) math.Color {
		c.A = 1
		return c
	})
}
