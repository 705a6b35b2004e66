package compress

import (
	"encoding/binary"

	"github.com/spaghettifunk/anima-cooker/engine/math"
)

// pixelBlock is a 4x4 tile in row-major order.
type pixelBlock [16]math.Color

func to565(c vec4) uint16 {
	r := uint16(math.Clamp(c[0]*31+0.5, 0, 31))
	g := uint16(math.Clamp(c[1]*63+0.5, 0, 63))
	b := uint16(math.Clamp(c[2]*31+0.5, 0, 31))
	return r<<11 | g<<5 | b
}

func from565(v uint16) [3]int32 {
	r := int32(v>>11) & 31
	g := int32(v>>5) & 63
	b := int32(v) & 31
	return [3]int32{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

// bc1Palette expands the two endpoints into the four palette entries
// (8-bit per channel, alpha in the fourth slot).
func bc1Palette(c0, c1 uint16, forceFourColors bool) [4][4]int32 {
	a := from565(c0)
	b := from565(c1)
	var p [4][4]int32
	p[0] = [4]int32{a[0], a[1], a[2], 255}
	p[1] = [4]int32{b[0], b[1], b[2], 255}
	if c0 > c1 || forceFourColors {
		for i := 0; i < 3; i++ {
			p[2][i] = (2*a[i] + b[i]) / 3
			p[3][i] = (a[i] + 2*b[i]) / 3
		}
		p[2][3], p[3][3] = 255, 255
	} else {
		for i := 0; i < 3; i++ {
			p[2][i] = (a[i] + b[i]) / 2
		}
		p[2][3] = 255
		p[3] = [4]int32{0, 0, 0, 0}
	}
	return p
}

// encodeBC1 writes an opaque four-color BC1 block into out[0:8].
func encodeBC1(b *pixelBlock, out []byte) {
	points := make([]vec4, 16)
	for i, c := range b {
		points[i] = vec4{math.Saturate(c.R), math.Saturate(c.G), math.Saturate(c.B)}
	}
	e0, e1 := principalEndpoints(points, 3)
	c0 := to565(clampVec(e0, 0, 1))
	c1 := to565(clampVec(e1, 0, 1))
	if c0 < c1 {
		c0, c1 = c1, c0
	}
	var indices uint32
	if c0 != c1 {
		palette := bc1Palette(c0, c1, true)
		for i, p := range points {
			best, bestDist := 0, float32(-1)
			for j := 0; j < 4; j++ {
				pv := vec4{float32(palette[j][0]) / 255, float32(palette[j][1]) / 255, float32(palette[j][2]) / 255}
				if d := distSq(p, pv, 3); bestDist < 0 || d < bestDist {
					best, bestDist = j, d
				}
			}
			indices |= uint32(best) << (2 * i)
		}
	}
	binary.LittleEndian.PutUint16(out[0:], c0)
	binary.LittleEndian.PutUint16(out[2:], c1)
	binary.LittleEndian.PutUint32(out[4:], indices)
}

func decodeBC1(in []byte, b *pixelBlock, forceFourColors bool) {
	c0 := binary.LittleEndian.Uint16(in[0:])
	c1 := binary.LittleEndian.Uint16(in[2:])
	indices := binary.LittleEndian.Uint32(in[4:])
	palette := bc1Palette(c0, c1, forceFourColors)
	for i := range b {
		p := palette[(indices>>(2*i))&3]
		b[i] = math.Color{
			R: float32(p[0]) / 255,
			G: float32(p[1]) / 255,
			B: float32(p[2]) / 255,
			A: float32(p[3]) / 255,
		}
	}
}

// bc4Palette expands two 8-bit endpoints to the eight-entry palette.
func bc4Palette(r0, r1 int32) [8]int32 {
	var p [8]int32
	p[0], p[1] = r0, r1
	if r0 > r1 {
		for i := int32(1); i <= 6; i++ {
			p[i+1] = ((7-i)*r0 + i*r1) / 7
		}
	} else {
		for i := int32(1); i <= 4; i++ {
			p[i+1] = ((5-i)*r0 + i*r1) / 5
		}
		p[6], p[7] = 0, 255
	}
	return p
}

// encodeBC4 compresses one channel of 16 values in [0, 1] into out[0:8].
func encodeBC4(values *[16]float32, out []byte) {
	lo, hi := float32(1), float32(0)
	for _, v := range values {
		v = math.Saturate(v)
		lo = min(lo, v)
		hi = max(hi, v)
	}
	r0 := int32(hi*255 + 0.5)
	r1 := int32(lo*255 + 0.5)
	var bits uint64
	if r0 != r1 {
		palette := bc4Palette(r0, r1)
		for i, v := range values {
			target := int32(math.Saturate(v)*255 + 0.5)
			best, bestDist := 0, int32(1<<30)
			for j, p := range palette {
				d := p - target
				if d < 0 {
					d = -d
				}
				if d < bestDist {
					best, bestDist = j, d
				}
			}
			bits |= uint64(best) << (3 * i)
		}
	}
	out[0] = byte(r0)
	out[1] = byte(r1)
	for i := 0; i < 6; i++ {
		out[2+i] = byte(bits >> (8 * i))
	}
}

func decodeBC4(in []byte, values *[16]float32) {
	palette := bc4Palette(int32(in[0]), int32(in[1]))
	var bits uint64
	for i := 0; i < 6; i++ {
		bits |= uint64(in[2+i]) << (8 * i)
	}
	for i := range values {
		values[i] = float32(palette[(bits>>(3*i))&7]) / 255
	}
}

func encodeBC2(b *pixelBlock, out []byte) {
	var alpha uint64
	for i, c := range b {
		alpha |= uint64(math.Saturate(c.A)*15+0.5) << (4 * i)
	}
	binary.LittleEndian.PutUint64(out[0:], alpha)
	encodeBC1(b, out[8:])
}

func decodeBC2(in []byte, b *pixelBlock) {
	decodeBC1(in[8:], b, true)
	alpha := binary.LittleEndian.Uint64(in[0:])
	for i := range b {
		b[i].A = float32((alpha>>(4*i))&15) / 15
	}
}

func encodeBC3(b *pixelBlock, out []byte) {
	var alpha [16]float32
	for i, c := range b {
		alpha[i] = c.A
	}
	encodeBC4(&alpha, out[0:])
	encodeBC1(b, out[8:])
}

func decodeBC3(in []byte, b *pixelBlock) {
	decodeBC1(in[8:], b, true)
	var alpha [16]float32
	decodeBC4(in[0:], &alpha)
	for i := range b {
		b[i].A = alpha[i]
	}
}

func encodeBC4Block(b *pixelBlock, out []byte) {
	var red [16]float32
	for i, c := range b {
		red[i] = c.R
	}
	encodeBC4(&red, out)
}

func decodeBC4Block(in []byte, b *pixelBlock) {
	var red [16]float32
	decodeBC4(in, &red)
	for i := range b {
		b[i] = math.Color{R: red[i], A: 1}
	}
}

func encodeBC5(b *pixelBlock, out []byte) {
	var red, green [16]float32
	for i, c := range b {
		red[i], green[i] = c.R, c.G
	}
	encodeBC4(&red, out[0:])
	encodeBC4(&green, out[8:])
}

func decodeBC5(in []byte, b *pixelBlock) {
	var red, green [16]float32
	decodeBC4(in[0:], &red)
	decodeBC4(in[8:], &green)
	for i := range b {
		b[i] = math.Color{R: red[i], G: green[i], A: 1}
	}
}
