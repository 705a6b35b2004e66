package textures

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

const alphaCoverageIterations = 10

// CanGenerateMipMaps reports whether a full chain can be built for the
// given size. Non power of two textures keep a single mip.
func CanGenerateMipMaps(width, height int) bool {
	return math.IsPowerOfTwo(width) && math.IsPowerOfTwo(height)
}

// GenerateMipMaps rebuilds the mip chain of every slice from its top mip.
// levels <= 0 means a full chain down to 1x1.
func GenerateMipMaps(data *TextureData, levels int) error {
	if format.IsCompressed(data.Format) {
		return core.Errorf(core.KindUnsupported, "mip generation", "cannot filter compressed %s", data.Format)
	}
	s := sampler.Get(data.Format)
	if s == nil {
		return core.Errorf(core.KindUnsupported, "mip generation", "cannot sample %s", data.Format)
	}
	full := math.MipLevelsCount(data.Width, data.Height)
	if levels <= 0 || levels > full {
		levels = full
	}
	for a := range data.Items {
		mips := make([]TextureMipData, levels)
		mips[0] = data.Items[a].Mips[0]
		for m := 1; m < levels; m++ {
			mips[m] = newMip(data.Format, data.MipWidth(m), data.MipHeight(m))
			src, dst := &mips[m-1], &mips[m]
			sw, sh := data.MipWidth(m-1), data.MipHeight(m-1)
			dw, dh := data.MipWidth(m), data.MipHeight(m)
			switch data.Format {
			case format.R32G32B32A32_Float:
				downsampleFloat(src, dst, sw, sh, dw, dh)
			case format.R8G8B8A8_UNorm, format.B8G8R8A8_UNorm:
				downsampleRGBA8(src, dst, sw, sh, dw, dh)
			default:
				downsampleSampled(s, format.IsSRGB(data.Format), src, dst, sw, sh, dw, dh)
			}
		}
		data.Items[a].Mips = mips
	}
	return nil
}

// downsampleFloat is a 2x2 box filter over RGBA32F texels. Odd sizes clamp
// the second tap to the edge.
func downsampleFloat(src, dst *TextureMipData, sw, sh, dw, dh int) {
	s := sampler.Get(format.R32G32B32A32_Float)
	for y := 0; y < dh; y++ {
		y0 := min(y*2, sh-1)
		y1 := min(y*2+1, sh-1)
		for x := 0; x < dw; x++ {
			x0 := min(x*2, sw-1)
			x1 := min(x*2+1, sw-1)
			c := s.SamplePoint(x0, y0, src.Data, src.RowPitch).
				Add(s.SamplePoint(x1, y0, src.Data, src.RowPitch)).
				Add(s.SamplePoint(x0, y1, src.Data, src.RowPitch)).
				Add(s.SamplePoint(x1, y1, src.Data, src.RowPitch)).
				Scale(0.25)
			s.Store(x, y, dst.Data, dst.RowPitch, c)
		}
	}
}

// downsampleRGBA8 is the same 2x2 box filter on 8-bit texels, averaging
// each byte with rounding so the channel order does not matter.
func downsampleRGBA8(src, dst *TextureMipData, sw, sh, dw, dh int) {
	for y := 0; y < dh; y++ {
		r0 := src.Data[min(y*2, sh-1)*src.RowPitch:]
		r1 := src.Data[min(y*2+1, sh-1)*src.RowPitch:]
		out := dst.Data[y*dst.RowPitch:]
		for x := 0; x < dw; x++ {
			x0 := min(x*2, sw-1) * 4
			x1 := min(x*2+1, sw-1) * 4
			for c := 0; c < 4; c++ {
				sum := int(r0[x0+c]) + int(r0[x1+c]) + int(r1[x0+c]) + int(r1[x1+c])
				out[x*4+c] = uint8((sum + 2) / 4)
			}
		}
	}
}

// downsampleSampled is the generic box filter through the sampler bank.
// sRGB data is averaged in linear space.
func downsampleSampled(s *sampler.Sampler, srgb bool, src, dst *TextureMipData, sw, sh, dw, dh int) {
	read := func(x, y int) math.Color {
		c := s.SamplePoint(x, y, src.Data, src.RowPitch)
		if srgb {
			c = c.SrgbToLinear()
		}
		return c
	}
	for y := 0; y < dh; y++ {
		y0 := min(y*2, sh-1)
		y1 := min(y*2+1, sh-1)
		for x := 0; x < dw; x++ {
			x0 := min(x*2, sw-1)
			x1 := min(x*2+1, sw-1)
			c := read(x0, y0).Add(read(x1, y0)).Add(read(x0, y1)).Add(read(x1, y1)).Scale(0.25)
			if srgb {
				c = c.LinearToSrgb()
			}
			s.Store(x, y, dst.Data, dst.RowPitch, c)
		}
	}
}

func alphaCoverage(s *sampler.Sampler, mip *TextureMipData, width, height int, ref, scale float32) float32 {
	covered := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if math.Saturate(s.SamplePoint(x, y, mip.Data, mip.RowPitch).A*scale) > ref {
				covered++
			}
		}
	}
	return float32(covered) / float32(width*height)
}

// PreserveAlphaCoverage scales the alpha of every mip below the top one so
// the fraction of texels passing an alpha test at ref matches the top mip.
func PreserveAlphaCoverage(data *TextureData, ref float32) error {
	if !format.HasAlpha(data.Format) {
		return nil
	}
	s := sampler.Get(data.Format)
	if s == nil {
		return core.Errorf(core.KindUnsupported, "alpha coverage", "cannot sample %s", data.Format)
	}
	for a := range data.Items {
		target := alphaCoverage(s, data.Mip(a, 0), data.Width, data.Height, ref, 1)
		for m := 1; m < data.MipLevels(); m++ {
			mip := data.Mip(a, m)
			w, h := data.MipWidth(m), data.MipHeight(m)

			// Coverage grows with the scale, binary search it.
			lo, hi := float32(0), float32(4)
			best := float32(1)
			bestErr := math32.Abs(alphaCoverage(s, mip, w, h, ref, 1) - target)
			for i := 0; i < alphaCoverageIterations; i++ {
				scale := (lo + hi) / 2
				coverage := alphaCoverage(s, mip, w, h, ref, scale)
				if e := math32.Abs(coverage - target); e < bestErr {
					best, bestErr = scale, e
				}
				if coverage < target {
					lo = scale
				} else {
					hi = scale
				}
			}
			if best == 1 {
				continue
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					c := s.SamplePoint(x, y, mip.Data, mip.RowPitch)
					c.A = math.Saturate(c.A * best)
					s.Store(x, y, mip.Data, mip.RowPitch, c)
				}
			}
		}
	}
	return nil
}
