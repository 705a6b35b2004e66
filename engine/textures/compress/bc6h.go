package compress

import (
	"errors"

	"github.com/x448/float16"

	"github.com/spaghettifunk/anima-cooker/engine/math"
)

const bc6hMode11 = 0x03

var errBC6HMode = errors.New("bc6h block mode is not supported by the decoder")

// BC6H works on half floats scaled by 64/31 so the decoder's final
// (x*31)>>6 step lands back on the half bit pattern.
func halfToBC6H(v float32) float32 {
	if v <= 0 || v != v {
		return 0
	}
	h := float16.Fromfloat32(v).Bits()
	if h > 0x7bff {
		h = 0x7bff
	}
	return float32(h) * 64 / 31
}

func unquantize10(q int32) int32 {
	switch q {
	case 0:
		return 0
	case 1023:
		return 0xffff
	default:
		return (q<<16 + 0x8000) >> 10
	}
}

func quantize10(v float32) int32 {
	return int32(math.Clamp((v-32)/64+0.5, 0, 1023))
}

func finishUnquantize(v int32) uint16 {
	return uint16((v * 31) >> 6)
}

// encodeBC6H writes an unsigned mode 11 block: one region, 10-bit
// endpoints, 4-bit indices.
func encodeBC6H(b *pixelBlock, out []byte) {
	points := make([]vec4, 16)
	for i, c := range b {
		points[i] = vec4{halfToBC6H(c.R), halfToBC6H(c.G), halfToBC6H(c.B)}
	}
	e0, e1 := principalEndpoints(points, 3)
	var q0, q1, u0, u1 [3]int32
	for c := 0; c < 3; c++ {
		q0[c] = quantize10(e0[c])
		q1[c] = quantize10(e1[c])
		u0[c] = unquantize10(q0[c])
		u1[c] = unquantize10(q1[c])
	}
	var indices [16]uint32
	for i, p := range points {
		best, bestDist := 0, float32(-1)
		for j, w := range weights4 {
			var d float32
			for c := 0; c < 3; c++ {
				diff := float32(interpolate(u0[c], u1[c], w)) - p[c]
				d += diff * diff
			}
			if bestDist < 0 || d < bestDist {
				best, bestDist = j, d
			}
		}
		indices[i] = uint32(best)
	}
	if indices[0]&8 != 0 {
		q0, q1 = q1, q0
		for i := range indices {
			indices[i] = 15 - indices[i]
		}
	}

	var w bitWriter
	w.write(bc6hMode11, 5)
	for c := 0; c < 3; c++ {
		w.write(uint32(q0[c]), 10)
	}
	for c := 0; c < 3; c++ {
		w.write(uint32(q1[c]), 10)
	}
	w.write(indices[0], 3)
	for i := 1; i < 16; i++ {
		w.write(indices[i], 4)
	}
	copy(out, w.block[:])
}

func decodeBC6H(in []byte, b *pixelBlock) error {
	r := bitReader{block: in}
	if r.read(5) != bc6hMode11 {
		return errBC6HMode
	}
	var e0, e1 [3]int32
	for c := 0; c < 3; c++ {
		e0[c] = unquantize10(int32(r.read(10)))
	}
	for c := 0; c < 3; c++ {
		e1[c] = unquantize10(int32(r.read(10)))
	}
	for i := range b {
		bitsCount := uint(4)
		if i == 0 {
			bitsCount = 3
		}
		w := weights4[r.read(bitsCount)]
		b[i] = math.Color{
			R: float16.Frombits(finishUnquantize(interpolate(e0[0], e1[0], w))).Float32(),
			G: float16.Frombits(finishUnquantize(interpolate(e0[1], e1[1], w))).Float32(),
			B: float16.Frombits(finishUnquantize(interpolate(e0[2], e1[2], w))).Float32(),
			A: 1,
		}
	}
	return nil
}
