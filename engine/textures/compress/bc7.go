package compress

import (
	"errors"

	"github.com/spaghettifunk/anima-cooker/engine/math"
)

var (
	weights2 = [4]int32{0, 21, 43, 64}
	weights4 = [16]int32{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}
)

var errBC7Mode = errors.New("bc7 block mode is not supported by the decoder")

func interpolate(e0, e1, w int32) int32 {
	return ((64-w)*e0 + w*e1 + 32) >> 6
}

// quantizeWithPBit finds the 7-bit endpoint and shared p-bit that best
// reproduce e (0..255 per channel).
func quantizeWithPBit(e vec4) ([4]uint32, uint32) {
	var bestQ [4]uint32
	var bestP uint32
	bestErr := float32(-1)
	for p := uint32(0); p < 2; p++ {
		var q [4]uint32
		var err float32
		for c := 0; c < 4; c++ {
			v := math.Clamp((e[c]-float32(p))/2+0.5, 0, 127)
			q[c] = uint32(v)
			d := float32(q[c]<<1|p) - e[c]
			err += d * d
		}
		if bestErr < 0 || err < bestErr {
			bestQ, bestP, bestErr = q, p, err
		}
	}
	return bestQ, bestP
}

// encodeBC7 writes a mode 6 block: one subset, RGBA 7.7.7.7 endpoints with
// a p-bit each and 4-bit indices.
func encodeBC7(b *pixelBlock, out []byte) {
	points := make([]vec4, 16)
	for i, c := range b {
		points[i] = vec4{math.Saturate(c.R) * 255, math.Saturate(c.G) * 255, math.Saturate(c.B) * 255, math.Saturate(c.A) * 255}
	}
	e0, e1 := principalEndpoints(points, 4)
	q0, p0 := quantizeWithPBit(clampVec(e0, 0, 255))
	q1, p1 := quantizeWithPBit(clampVec(e1, 0, 255))

	var ep0, ep1 [4]int32
	for c := 0; c < 4; c++ {
		ep0[c] = int32(q0[c]<<1 | p0)
		ep1[c] = int32(q1[c]<<1 | p1)
	}
	var palette [16]vec4
	for i, w := range weights4 {
		for c := 0; c < 4; c++ {
			palette[i][c] = float32(interpolate(ep0[c], ep1[c], w))
		}
	}
	var indices [16]uint32
	for i, p := range points {
		best, bestDist := 0, float32(-1)
		for j := range palette {
			if d := distSq(p, palette[j], 4); bestDist < 0 || d < bestDist {
				best, bestDist = j, d
			}
		}
		indices[i] = uint32(best)
	}
	// The anchor index is stored with its top bit implied zero.
	if indices[0]&8 != 0 {
		q0, q1 = q1, q0
		p0, p1 = p1, p0
		for i := range indices {
			indices[i] = 15 - indices[i]
		}
	}

	var w bitWriter
	w.write(1<<6, 7)
	for c := 0; c < 4; c++ {
		w.write(q0[c], 7)
		w.write(q1[c], 7)
	}
	w.write(p0, 1)
	w.write(p1, 1)
	w.write(indices[0], 3)
	for i := 1; i < 16; i++ {
		w.write(indices[i], 4)
	}
	copy(out, w.block[:])
}

func decodeBC7(in []byte, b *pixelBlock) error {
	r := bitReader{block: in}
	mode := 0
	for mode < 8 && r.read(1) == 0 {
		mode++
	}
	switch mode {
	case 6:
		decodeBC7Mode6(&r, b)
	case 5:
		decodeBC7Mode5(&r, b)
	default:
		return errBC7Mode
	}
	return nil
}

func decodeBC7Mode6(r *bitReader, b *pixelBlock) {
	var e0, e1 [4]int32
	for c := 0; c < 4; c++ {
		e0[c] = int32(r.read(7))
		e1[c] = int32(r.read(7))
	}
	p0 := int32(r.read(1))
	p1 := int32(r.read(1))
	for c := 0; c < 4; c++ {
		e0[c] = e0[c]<<1 | p0
		e1[c] = e1[c]<<1 | p1
	}
	for i := range b {
		bitsCount := uint(4)
		if i == 0 {
			bitsCount = 3
		}
		w := weights4[r.read(bitsCount)]
		b[i] = math.Color{
			R: float32(interpolate(e0[0], e1[0], w)) / 255,
			G: float32(interpolate(e0[1], e1[1], w)) / 255,
			B: float32(interpolate(e0[2], e1[2], w)) / 255,
			A: float32(interpolate(e0[3], e1[3], w)) / 255,
		}
	}
}

func decodeBC7Mode5(r *bitReader, b *pixelBlock) {
	rotation := r.read(2)
	var e0, e1 [4]int32
	for c := 0; c < 3; c++ {
		v0 := int32(r.read(7))
		v1 := int32(r.read(7))
		e0[c] = v0<<1 | v0>>6
		e1[c] = v1<<1 | v1>>6
	}
	e0[3] = int32(r.read(8))
	e1[3] = int32(r.read(8))
	var colorIdx, alphaIdx [16]int32
	for i := range colorIdx {
		if i == 0 {
			colorIdx[i] = int32(r.read(1))
		} else {
			colorIdx[i] = int32(r.read(2))
		}
	}
	for i := range alphaIdx {
		if i == 0 {
			alphaIdx[i] = int32(r.read(1))
		} else {
			alphaIdx[i] = int32(r.read(2))
		}
	}
	for i := range b {
		var px [4]float32
		for c := 0; c < 3; c++ {
			px[c] = float32(interpolate(e0[c], e1[c], weights2[colorIdx[i]])) / 255
		}
		px[3] = float32(interpolate(e0[3], e1[3], weights2[alphaIdx[i]])) / 255
		if rotation != 0 {
			px[3], px[rotation-1] = px[rotation-1], px[3]
		}
		b[i] = math.Color{R: px[0], G: px[1], B: px[2], A: px[3]}
	}
}
