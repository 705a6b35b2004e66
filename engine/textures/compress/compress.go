// Package compress encodes and decodes GPU block-compressed surfaces.
// BC1 to BC7 run on the CPU (BC6H and BC7 rows can be spread over a
// Device), ASTC goes through the astcenc tool.
package compress

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

// Quality trades encoding time for accuracy.
type Quality uint8

const (
	QualityFast Quality = iota
	QualityMedium
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityFast:
		return "fast"
	case QualityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseQuality maps "fast", "medium" and "high" to a Quality.
func ParseQuality(s string) (Quality, bool) {
	switch s {
	case "fast":
		return QualityFast, true
	case "medium", "":
		return QualityMedium, true
	case "high":
		return QualityHigh, true
	}
	return QualityMedium, false
}

// Options configures a compression call.
type Options struct {
	Quality Quality
	// Device runs BC6H and BC7 block rows in parallel. Nil means serial.
	Device *Device
	// ASTC encodes and decodes ASTC surfaces. Required for ASTC formats.
	ASTC *ASTCEncoder
}

// Surface is one 2D image: a single mip of a single array slice.
type Surface struct {
	Format   format.PixelFormat
	Width    int
	Height   int
	RowPitch int
	Data     []byte
}

type blockCodec struct {
	encode func(b *pixelBlock, out []byte)
	decode func(in []byte, b *pixelBlock) error
	// parallel codecs go through the Device when one is configured.
	parallel bool
}

func noErr(fn func([]byte, *pixelBlock)) func([]byte, *pixelBlock) error {
	return func(in []byte, b *pixelBlock) error {
		fn(in, b)
		return nil
	}
}

func codecFor(f format.PixelFormat) (blockCodec, bool) {
	switch format.ToNonSRGB(f) {
	case format.BC1_UNorm:
		return blockCodec{encode: encodeBC1, decode: noErr(func(in []byte, b *pixelBlock) { decodeBC1(in, b, false) })}, true
	case format.BC2_UNorm:
		return blockCodec{encode: encodeBC2, decode: noErr(decodeBC2)}, true
	case format.BC3_UNorm:
		return blockCodec{encode: encodeBC3, decode: noErr(decodeBC3)}, true
	case format.BC4_UNorm:
		return blockCodec{encode: encodeBC4Block, decode: noErr(decodeBC4Block)}, true
	case format.BC5_UNorm:
		return blockCodec{encode: encodeBC5, decode: noErr(decodeBC5)}, true
	case format.BC6H_Uf16:
		return blockCodec{encode: encodeBC6H, decode: decodeBC6H, parallel: true}, true
	case format.BC7_UNorm:
		return blockCodec{encode: encodeBC7, decode: decodeBC7, parallel: true}, true
	}
	return blockCodec{}, false
}

// Compress encodes an uncompressed surface into dst.
func Compress(ctx context.Context, src Surface, dst format.PixelFormat, opts Options) (Surface, error) {
	if !format.IsCompressed(dst) {
		return Surface{}, core.Errorf(core.KindUnsupported, "compress", "%s is not a compressed format", dst)
	}
	if src.Width <= 0 || src.Height <= 0 {
		return Surface{}, core.Errorf(core.KindCompress, "compress", "invalid surface size %dx%d", src.Width, src.Height)
	}
	s := sampler.Get(src.Format)
	if s == nil {
		return Surface{}, core.Errorf(core.KindUnsupported, "compress", "cannot sample %s", src.Format)
	}
	if format.IsCompressedASTC(dst) {
		if opts.ASTC == nil {
			return Surface{}, core.Errorf(core.KindCompress, "compress", "no ASTC encoder configured for %s", dst)
		}
		return opts.ASTC.Encode(ctx, src, dst, opts.Quality)
	}
	codec, ok := codecFor(dst)
	if !ok {
		return Surface{}, core.Errorf(core.KindUnsupported, "compress", "no encoder for %s", dst)
	}

	rowPitch, slicePitch, lines := format.ComputePitch(dst, src.Width, src.Height)
	out := Surface{Format: dst, Width: src.Width, Height: src.Height, RowPitch: rowPitch, Data: make([]byte, slicePitch)}
	blockBytes := format.SizeInBytes(dst)
	blocksX := rowPitch / blockBytes

	encodeRow := func(by int) error {
		var block pixelBlock
		for bx := 0; bx < blocksX; bx++ {
			for i := range block {
				x := min(bx*4+i%4, src.Width-1)
				y := min(by*4+i/4, src.Height-1)
				block[i] = s.SamplePoint(x, y, src.Data, src.RowPitch)
			}
			if dst == format.BC6H_Uf16 {
				clampHDR(&block)
			}
			codec.encode(&block, out.Data[by*rowPitch+bx*blockBytes:])
		}
		return nil
	}
	if err := runRows(ctx, lines, codec.parallel, opts.Device, encodeRow); err != nil {
		return Surface{}, err
	}
	return out, nil
}

func clampHDR(b *pixelBlock) {
	for i := range b {
		b[i].R = max(b[i].R, 0)
		b[i].G = max(b[i].G, 0)
		b[i].B = max(b[i].B, 0)
	}
}

// DecompressedFormat is the format Decompress produces for f.
func DecompressedFormat(f format.PixelFormat) format.PixelFormat {
	return format.FindUncompressed(f)
}

// Decompress decodes a compressed surface to DecompressedFormat(src.Format).
// The output is tightly packed.
func Decompress(ctx context.Context, src Surface, opts Options) (Surface, error) {
	if !format.IsCompressed(src.Format) {
		return src, nil
	}
	if format.IsCompressedASTC(src.Format) {
		if opts.ASTC == nil {
			return Surface{}, core.Errorf(core.KindCompress, "decompress", "no ASTC decoder configured for %s", src.Format)
		}
		return opts.ASTC.Decode(ctx, src)
	}
	codec, ok := codecFor(src.Format)
	if !ok {
		return Surface{}, core.Errorf(core.KindUnsupported, "decompress", "no decoder for %s", src.Format)
	}
	dstFormat := DecompressedFormat(src.Format)
	s := sampler.Get(dstFormat)
	if s == nil {
		return Surface{}, core.Errorf(core.KindUnsupported, "decompress", "cannot store %s", dstFormat)
	}

	rowPitch, _, lines := format.ComputePitch(src.Format, src.Width, src.Height)
	if src.RowPitch != 0 {
		rowPitch = src.RowPitch
	}
	if len(src.Data) < rowPitch*lines {
		return Surface{}, core.Errorf(core.KindDecode, "decompress", "%s surface %dx%d needs %d bytes, got %d", src.Format, src.Width, src.Height, rowPitch*lines, len(src.Data))
	}
	blockBytes := format.SizeInBytes(src.Format)
	outPitch := src.Width * s.PixelSize
	out := Surface{Format: dstFormat, Width: src.Width, Height: src.Height, RowPitch: outPitch, Data: make([]byte, outPitch*src.Height)}
	blocksX := (src.Width + 3) / 4

	decodeRow := func(by int) error {
		var block pixelBlock
		for bx := 0; bx < blocksX; bx++ {
			if err := codec.decode(src.Data[by*rowPitch+bx*blockBytes:], &block); err != nil {
				return core.NewError(core.KindUnsupported, "decompress", fmt.Errorf("block %d,%d: %w", bx, by, err))
			}
			for i, c := range block {
				x := bx*4 + i%4
				y := by*4 + i/4
				if x < src.Width && y < src.Height {
					s.Store(x, y, out.Data, outPitch, c)
				}
			}
		}
		return nil
	}
	if err := runRows(ctx, lines, codec.parallel, opts.Device, decodeRow); err != nil {
		return Surface{}, err
	}
	return out, nil
}

// runRows calls fn for every block row, on the device when the codec
// allows it, checking for cancellation between rows.
func runRows(ctx context.Context, rows int, parallel bool, device *Device, fn func(row int) error) error {
	if !parallel || device == nil {
		for row := 0; row < rows; row++ {
			if err := ctx.Err(); err != nil {
				return core.NewError(core.KindCancelled, "compress", err)
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil
	}

	futures := make([]*Future, 0, rows)
	for row := 0; row < rows; row++ {
		if err := ctx.Err(); err != nil {
			return core.NewError(core.KindCancelled, "compress", err)
		}
		row := row
		futures = append(futures, device.Submit(func() error { return fn(row) }))
	}
	var first error
	for _, f := range futures {
		if err := f.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
