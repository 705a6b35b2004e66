// Package sampler reads and writes single pixels of uncompressed formats as
// linear float colors, and samples raw surfaces with point or bilinear
// filtering. Compressed formats have no sampler and must be decoded first.
package sampler

import (
	"encoding/binary"
	gomath "math"

	"github.com/chewxy/math32"
	"github.com/x448/float16"

	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// Sampler converts one pixel of Format from and to a Color.
type Sampler struct {
	Format    format.PixelFormat
	PixelSize int
	Read      func(p []byte) math.Color
	Write     func(p []byte, c math.Color)
}

var samplers = map[format.PixelFormat]*Sampler{}

func register(f format.PixelFormat, read func([]byte) math.Color, write func([]byte, math.Color)) {
	samplers[f] = &Sampler{Format: f, PixelSize: format.SizeInBytes(f), Read: read, Write: write}
}

// Get returns the sampler for f or nil when f cannot be sampled.
func Get(f format.PixelFormat) *Sampler {
	return samplers[f]
}

// IsSampleable reports whether f has a sampler.
func IsSampleable(f format.PixelFormat) bool {
	return samplers[f] != nil
}

func unorm8(b byte) float32 { return float32(b) / 255 }

func toUnorm8(v float32) byte {
	return byte(math.Saturate(v)*255 + 0.5)
}

func unorm16(p []byte) float32 { return float32(binary.LittleEndian.Uint16(p)) / 65535 }

func putUnorm16(p []byte, v float32) {
	binary.LittleEndian.PutUint16(p, uint16(math.Saturate(v)*65535+0.5))
}

func half(p []byte) float32 {
	return float16.Frombits(binary.LittleEndian.Uint16(p)).Float32()
}

func putHalf(p []byte, v float32) {
	binary.LittleEndian.PutUint16(p, float16.Fromfloat32(v).Bits())
}

func f32(p []byte) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(p))
}

func putF32(p []byte, v float32) {
	binary.LittleEndian.PutUint32(p, gomath.Float32bits(v))
}

// Small floats share the half-float exponent layout, only the mantissa is
// shorter, so they go through float16 and drop the low mantissa bits.
func smallFloatToHalf(bits uint32, mantissaBits uint) uint16 {
	return uint16(bits << (10 - mantissaBits))
}

func halfToSmallFloat(v float32, mantissaBits uint) uint32 {
	if v <= 0 || math32.IsNaN(v) {
		return 0
	}
	h := uint32(float16.Fromfloat32(v).Bits() & 0x7fff)
	shift := 10 - mantissaBits
	rounded := (h + (1 << (shift - 1))) >> shift
	maxFinite := uint32(0x1e)<<mantissaBits | (1<<mantissaBits - 1)
	if rounded > maxFinite {
		rounded = maxFinite
	}
	return rounded
}

func init() {
	register(format.R32G32B32A32_Float,
		func(p []byte) math.Color { return math.Color{R: f32(p), G: f32(p[4:]), B: f32(p[8:]), A: f32(p[12:])} },
		func(p []byte, c math.Color) { putF32(p, c.R); putF32(p[4:], c.G); putF32(p[8:], c.B); putF32(p[12:], c.A) })
	register(format.R32G32B32_Float,
		func(p []byte) math.Color { return math.Color{R: f32(p), G: f32(p[4:]), B: f32(p[8:]), A: 1} },
		func(p []byte, c math.Color) { putF32(p, c.R); putF32(p[4:], c.G); putF32(p[8:], c.B) })
	register(format.R16G16B16A16_Float,
		func(p []byte) math.Color { return math.Color{R: half(p), G: half(p[2:]), B: half(p[4:]), A: half(p[6:])} },
		func(p []byte, c math.Color) { putHalf(p, c.R); putHalf(p[2:], c.G); putHalf(p[4:], c.B); putHalf(p[6:], c.A) })
	register(format.R16G16B16A16_UNorm,
		func(p []byte) math.Color {
			return math.Color{R: unorm16(p), G: unorm16(p[2:]), B: unorm16(p[4:]), A: unorm16(p[6:])}
		},
		func(p []byte, c math.Color) {
			putUnorm16(p, c.R)
			putUnorm16(p[2:], c.G)
			putUnorm16(p[4:], c.B)
			putUnorm16(p[6:], c.A)
		})
	register(format.R32G32_Float,
		func(p []byte) math.Color { return math.Color{R: f32(p), G: f32(p[4:]), A: 1} },
		func(p []byte, c math.Color) { putF32(p, c.R); putF32(p[4:], c.G) })
	register(format.R16G16_Float,
		func(p []byte) math.Color { return math.Color{R: half(p), G: half(p[2:]), A: 1} },
		func(p []byte, c math.Color) { putHalf(p, c.R); putHalf(p[2:], c.G) })
	register(format.R16G16_UNorm,
		func(p []byte) math.Color { return math.Color{R: unorm16(p), G: unorm16(p[2:]), A: 1} },
		func(p []byte, c math.Color) { putUnorm16(p, c.R); putUnorm16(p[2:], c.G) })
	register(format.R10G10B10A2_UNorm,
		func(p []byte) math.Color {
			v := binary.LittleEndian.Uint32(p)
			return math.Color{
				R: float32(v&0x3ff) / 1023,
				G: float32((v>>10)&0x3ff) / 1023,
				B: float32((v>>20)&0x3ff) / 1023,
				A: float32(v>>30) / 3,
			}
		},
		func(p []byte, c math.Color) {
			r := uint32(math.Saturate(c.R)*1023 + 0.5)
			g := uint32(math.Saturate(c.G)*1023 + 0.5)
			b := uint32(math.Saturate(c.B)*1023 + 0.5)
			a := uint32(math.Saturate(c.A)*3 + 0.5)
			binary.LittleEndian.PutUint32(p, r|g<<10|b<<20|a<<30)
		})
	register(format.R11G11B10_Float,
		func(p []byte) math.Color {
			v := binary.LittleEndian.Uint32(p)
			return math.Color{
				R: float16.Frombits(smallFloatToHalf(v&0x7ff, 6)).Float32(),
				G: float16.Frombits(smallFloatToHalf((v>>11)&0x7ff, 6)).Float32(),
				B: float16.Frombits(smallFloatToHalf(v>>22, 5)).Float32(),
				A: 1,
			}
		},
		func(p []byte, c math.Color) {
			v := halfToSmallFloat(c.R, 6) | halfToSmallFloat(c.G, 6)<<11 | halfToSmallFloat(c.B, 5)<<22
			binary.LittleEndian.PutUint32(p, v)
		})

	rgba8Read := func(p []byte) math.Color {
		return math.Color{R: unorm8(p[0]), G: unorm8(p[1]), B: unorm8(p[2]), A: unorm8(p[3])}
	}
	rgba8Write := func(p []byte, c math.Color) {
		p[0], p[1], p[2], p[3] = toUnorm8(c.R), toUnorm8(c.G), toUnorm8(c.B), toUnorm8(c.A)
	}
	bgra8Read := func(p []byte) math.Color {
		return math.Color{R: unorm8(p[2]), G: unorm8(p[1]), B: unorm8(p[0]), A: unorm8(p[3])}
	}
	bgra8Write := func(p []byte, c math.Color) {
		p[0], p[1], p[2], p[3] = toUnorm8(c.B), toUnorm8(c.G), toUnorm8(c.R), toUnorm8(c.A)
	}
	bgrx8Read := func(p []byte) math.Color {
		return math.Color{R: unorm8(p[2]), G: unorm8(p[1]), B: unorm8(p[0]), A: 1}
	}
	// X is padding, not a channel: reads report opaque alpha and writes
	// store 255, so the source X byte does not survive a round trip.
	bgrx8Write := func(p []byte, c math.Color) {
		p[0], p[1], p[2], p[3] = toUnorm8(c.B), toUnorm8(c.G), toUnorm8(c.R), 255
	}
	register(format.R8G8B8A8_UNorm, rgba8Read, rgba8Write)
	register(format.R8G8B8A8_UNorm_sRGB, rgba8Read, rgba8Write)
	register(format.B8G8R8A8_UNorm, bgra8Read, bgra8Write)
	register(format.B8G8R8A8_UNorm_sRGB, bgra8Read, bgra8Write)
	register(format.B8G8R8X8_UNorm, bgrx8Read, bgrx8Write)
	register(format.B8G8R8X8_UNorm_sRGB, bgrx8Read, bgrx8Write)

	register(format.R8G8_UNorm,
		func(p []byte) math.Color { return math.Color{R: unorm8(p[0]), G: unorm8(p[1]), A: 1} },
		func(p []byte, c math.Color) { p[0], p[1] = toUnorm8(c.R), toUnorm8(c.G) })
	register(format.R32_Float,
		func(p []byte) math.Color { return math.Color{R: f32(p), A: 1} },
		func(p []byte, c math.Color) { putF32(p, c.R) })
	register(format.R16_Float,
		func(p []byte) math.Color { return math.Color{R: half(p), A: 1} },
		func(p []byte, c math.Color) { putHalf(p, c.R) })
	register(format.R16_UNorm,
		func(p []byte) math.Color { return math.Color{R: unorm16(p), A: 1} },
		func(p []byte, c math.Color) { putUnorm16(p, c.R) })
	register(format.R8_UNorm,
		func(p []byte) math.Color { return math.Color{R: unorm8(p[0]), A: 1} },
		func(p []byte, c math.Color) { p[0] = toUnorm8(c.R) })
	register(format.A8_UNorm,
		func(p []byte) math.Color { return math.Color{A: unorm8(p[0])} },
		func(p []byte, c math.Color) { p[0] = toUnorm8(c.A) })
}

// SamplePoint reads the texel at integer coordinates.
func (s *Sampler) SamplePoint(x, y int, data []byte, rowPitch int) math.Color {
	return s.Read(data[y*rowPitch+x*s.PixelSize:])
}

// SamplePointUV reads the texel nearest to uv (in [0, 1]).
func (s *Sampler) SamplePointUV(u, v float32, data []byte, width, height, rowPitch int) math.Color {
	x := math.Clamp(int(u*float32(width)), 0, width-1)
	y := math.Clamp(int(v*float32(height)), 0, height-1)
	return s.SamplePoint(x, y, data, rowPitch)
}

// SampleLinear filters the four texels around uv bilinearly. Texel centers
// sit at half-integer positions, hence the -0.5 offset. Edges are clamped.
func (s *Sampler) SampleLinear(u, v float32, data []byte, width, height, rowPitch int) math.Color {
	fx := u*float32(width) - 0.5
	fy := v*float32(height) - 0.5
	x0f := math32.Floor(fx)
	y0f := math32.Floor(fy)
	tx := fx - x0f
	ty := fy - y0f
	x0 := math.Clamp(int(x0f), 0, width-1)
	y0 := math.Clamp(int(y0f), 0, height-1)
	x1 := math.Clamp(int(x0f)+1, 0, width-1)
	y1 := math.Clamp(int(y0f)+1, 0, height-1)

	c00 := s.SamplePoint(x0, y0, data, rowPitch)
	c10 := s.SamplePoint(x1, y0, data, rowPitch)
	c01 := s.SamplePoint(x0, y1, data, rowPitch)
	c11 := s.SamplePoint(x1, y1, data, rowPitch)
	return c00.Lerp(c10, tx).Lerp(c01.Lerp(c11, tx), ty)
}

// Store writes c at integer coordinates.
func (s *Sampler) Store(x, y int, data []byte, rowPitch int, c math.Color) {
	s.Write(data[y*rowPitch+x*s.PixelSize:], c)
}
