package textures

import (
	"context"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

// colorSpaceFn returns the per-pixel transfer needed when moving from src
// to dst: float data is linear, sRGB tagged data is gamma encoded. Plain
// 8-bit formats are taken as-is.
func colorSpaceFn(src, dst format.PixelFormat) func(math.Color) math.Color {
	switch {
	case format.IsFloat(src) && format.IsSRGB(dst):
		return math.Color.LinearToSrgb
	case format.IsSRGB(src) && format.IsFloat(dst):
		return math.Color.SrgbToLinear
	}
	return nil
}

// convertSurface rewrites an uncompressed surface pixel by pixel into dst.
func convertSurface(ctx context.Context, src compress.Surface, dst format.PixelFormat) (compress.Surface, error) {
	ss := sampler.Get(src.Format)
	if ss == nil {
		return compress.Surface{}, core.Errorf(core.KindUnsupported, "texture convert", "cannot sample %s", src.Format)
	}
	ds := sampler.Get(dst)
	if ds == nil {
		return compress.Surface{}, core.Errorf(core.KindUnsupported, "texture convert", "cannot write %s", dst)
	}
	transfer := colorSpaceFn(src.Format, dst)
	pitch := src.Width * ds.PixelSize
	out := compress.Surface{Format: dst, Width: src.Width, Height: src.Height, RowPitch: pitch, Data: make([]byte, pitch*src.Height)}
	for y := 0; y < src.Height; y++ {
		if err := ctx.Err(); err != nil {
			return compress.Surface{}, core.NewError(core.KindCancelled, "texture convert", err)
		}
		for x := 0; x < src.Width; x++ {
			c := ss.SamplePoint(x, y, src.Data, src.RowPitch)
			if transfer != nil {
				c = transfer(c)
			}
			ds.Store(x, y, out.Data, pitch, c)
		}
	}
	return out, nil
}

func convertMip(ctx context.Context, s compress.Surface, dst format.PixelFormat, opts compress.Options) (compress.Surface, error) {
	if s.Format == dst {
		return s, nil
	}
	var err error
	if format.IsCompressed(s.Format) {
		// Same data, only the color space tag differs.
		if format.ToNonSRGB(s.Format) == format.ToNonSRGB(dst) {
			s.Format = dst
			return s, nil
		}
		if s, err = compress.Decompress(ctx, s, opts); err != nil {
			return s, err
		}
		if s.Format == dst {
			return s, nil
		}
	}
	if !format.IsCompressed(dst) {
		return convertSurface(ctx, s, dst)
	}
	if colorSpaceFn(s.Format, dst) != nil {
		if s, err = convertSurface(ctx, s, format.FindUncompressed(dst)); err != nil {
			return s, err
		}
	}
	return compress.Compress(ctx, s, dst, opts)
}

// Convert stores src converted to dstFormat into dst, every slice and mip.
// Compressed sources are decoded first; compressed targets are encoded
// with opts.
func Convert(ctx context.Context, dst, src *TextureData, dstFormat format.PixelFormat, opts compress.Options) error {
	if format.IsCompressed(dstFormat) {
		bw, bh := format.BlockSize(dstFormat)
		if format.IsCompressedBC(dstFormat) && (src.Width%bw != 0 || src.Height%bh != 0) {
			return core.Errorf(core.KindCompress, "texture convert", "%dx%d is not a multiple of the %s block size", src.Width, src.Height, dstFormat)
		}
	}
	out := TextureData{Width: src.Width, Height: src.Height, Depth: src.Depth, Format: dstFormat}
	out.Items = make([]ArrayEntry, len(src.Items))
	for a, item := range src.Items {
		out.Items[a].Mips = make([]TextureMipData, len(item.Mips))
		for m := range item.Mips {
			s, err := convertMip(ctx, src.Surface(a, m), dstFormat, opts)
			if err != nil {
				return err
			}
			out.Items[a].Mips[m] = mipFromSurface(s)
		}
	}
	*dst = out
	return nil
}

// Decompress returns data itself when it is not block-compressed,
// otherwise a decoded copy.
func Decompress(ctx context.Context, data *TextureData, opts compress.Options) (*TextureData, error) {
	if !format.IsCompressed(data.Format) {
		return data, nil
	}
	out := &TextureData{}
	if err := Convert(ctx, out, data, compress.DecompressedFormat(data.Format), opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Transform applies fn to every pixel of every slice and mip in place.
func Transform(data *TextureData, fn func(c math.Color) math.Color) error {
	s := sampler.Get(data.Format)
	if s == nil {
		return core.Errorf(core.KindUnsupported, "texture transform", "cannot sample %s", data.Format)
	}
	for a := range data.Items {
		for m := range data.Items[a].Mips {
			mip := data.Mip(a, m)
			w, h := data.MipWidth(m), data.MipHeight(m)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					s.Store(x, y, mip.Data, mip.RowPitch, fn(s.SamplePoint(x, y, mip.Data, mip.RowPitch)))
				}
			}
		}
	}
	return nil
}

// HasAlpha reports whether any texel of the top mip is not fully opaque.
func HasAlpha(ctx context.Context, data *TextureData, opts compress.Options) (bool, error) {
	if !format.HasAlpha(data.Format) || len(data.Items) == 0 {
		return false, nil
	}
	for a := range data.Items {
		s := data.Surface(a, 0)
		if format.IsCompressed(s.Format) {
			var err error
			if s, err = compress.Decompress(ctx, s, opts); err != nil {
				return false, err
			}
		}
		smp := sampler.Get(s.Format)
		if smp == nil {
			return false, core.Errorf(core.KindUnsupported, "texture alpha", "cannot sample %s", s.Format)
		}
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				if smp.SamplePoint(x, y, s.Data, s.RowPitch).A < 1 {
					return true, nil
				}
			}
		}
	}
	return false, nil
}
