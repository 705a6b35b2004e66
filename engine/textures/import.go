package textures

import (
	"context"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// Import loads an image file and processes it with opts. It also reports
// whether the source had any translucent texel.
func Import(ctx context.Context, path string, opts ImportOptions) (*TextureData, bool, error) {
	src, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	data, hasAlpha, err := Process(ctx, src, opts)
	if err != nil {
		return nil, false, core.NewPathError(core.KindOf(err), "texture import", path, err)
	}
	return data, hasAlpha, nil
}

// Process runs the import steps on decoded data: resize, sRGB fixup,
// alpha removal, flips and channel operations, mip generation, alpha
// coverage and the final conversion. src is not modified.
func Process(ctx context.Context, src *TextureData, opts ImportOptions) (*TextureData, bool, error) {
	if err := src.Validate(); err != nil {
		return nil, false, err
	}
	copts := opts.compressOptions()
	hasAlpha, err := HasAlpha(ctx, src, copts)
	if err != nil {
		return nil, false, err
	}
	data := src

	width, height := opts.targetSize(src.Width, src.Height)
	if width != src.Width || height != src.Height {
		if data, err = Decompress(ctx, data, copts); err != nil {
			return nil, false, err
		}
		resized := &TextureData{}
		if err := Resize(ctx, resized, data, width, height); err != nil {
			return nil, false, err
		}
		data = resized
	}

	if format.IsSRGB(data.Format) && !opts.SRGB {
		if data == src {
			data = data.Clone()
		}
		data.Format = format.ToNonSRGB(data.Format)
	}

	texType := opts.resolveType(data.Format, hasAlpha)
	target := opts.InternalFormat
	if target == format.Unknown {
		target = ToPixelFormat(texType, data.Width, data.Height, opts.Compress, opts.Family, opts.Quality)
	}
	if opts.SRGB {
		target = format.ToSRGB(target)
	}

	removeAlpha := texType == TypeColorRGB && format.IsCompressed(target) && hasAlpha
	invert := opts.InvertRed || opts.InvertGreen || opts.InvertBlue || opts.InvertAlpha
	mips := opts.GenerateMipMaps && CanGenerateMipMaps(data.Width, data.Height)
	if mips && data.MipLevels() == math.MipLevelsCount(data.Width, data.Height) && data.MipLevels() > 1 {
		// The source already carries a full chain.
		mips = false
	}
	if removeAlpha || opts.FlipX || opts.FlipY || invert || opts.ReconstructZ || mips {
		if data, err = Decompress(ctx, data, copts); err != nil {
			return nil, false, err
		}
		if data == src {
			data = data.Clone()
		}
	}

	if removeAlpha {
		if err := RemoveAlpha(data); err != nil {
			return nil, false, err
		}
	}
	if opts.FlipY {
		if err := FlipY(data); err != nil {
			return nil, false, err
		}
	}
	if opts.FlipX {
		if err := FlipX(data); err != nil {
			return nil, false, err
		}
	}
	if err := InvertChannels(data, opts.InvertRed, opts.InvertGreen, opts.InvertBlue, opts.InvertAlpha); err != nil {
		return nil, false, err
	}
	if opts.ReconstructZ {
		if err := ReconstructZ(data); err != nil {
			return nil, false, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, false, core.NewError(core.KindCancelled, "texture import", err)
	}

	if mips {
		if err := GenerateMipMaps(data, 0); err != nil {
			return nil, false, err
		}
		if opts.PreserveAlphaCoverage && format.HasAlpha(target) {
			if err := PreserveAlphaCoverage(data, opts.AlphaCoverageReference); err != nil {
				return nil, false, err
			}
		}
	} else if opts.GenerateMipMaps && !CanGenerateMipMaps(data.Width, data.Height) {
		core.LogDebug("skipping mip generation for non power of two %dx%d texture", data.Width, data.Height)
	}

	if data.Format == target {
		return data, hasAlpha, nil
	}
	out := &TextureData{}
	if err := Convert(ctx, out, data, target, copts); err != nil {
		return nil, false, err
	}
	return out, hasAlpha, nil
}
