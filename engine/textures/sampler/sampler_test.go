package sampler

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

func TestEveryUncompressedFormatHasSampler(t *testing.T) {
	for _, f := range format.All() {
		if format.IsCompressed(f) {
			if Get(f) != nil {
				t.Errorf("%s is compressed but has a sampler", f)
			}
			continue
		}
		s := Get(f)
		if s == nil {
			t.Errorf("%s has no sampler", f)
			continue
		}
		if s.PixelSize != format.SizeInBytes(f) {
			t.Errorf("%s sampler pixel size %d, want %d", f, s.PixelSize, format.SizeInBytes(f))
		}
	}
}

// unorm formats survive read+write bit for bit on every channel.
func TestUnormRoundTripIsExact(t *testing.T) {
	formats := []format.PixelFormat{
		format.R8G8B8A8_UNorm, format.R8G8B8A8_UNorm_sRGB,
		format.B8G8R8A8_UNorm, format.R8G8_UNorm, format.R8_UNorm, format.A8_UNorm,
		format.R16G16B16A16_UNorm, format.R16G16_UNorm, format.R16_UNorm,
		format.R10G10B10A2_UNorm,
	}
	rng := rand.New(rand.NewSource(1))
	for _, f := range formats {
		s := Get(f)
		src := make([]byte, s.PixelSize)
		dst := make([]byte, s.PixelSize)
		for i := 0; i < 2000; i++ {
			rng.Read(src)
			s.Write(dst, s.Read(src))
			if !bytes.Equal(src, dst) {
				t.Fatalf("%s: round trip of %x produced %x", f, src, dst)
			}
		}
	}
}

func TestEveryByteValueRoundTrips(t *testing.T) {
	s := Get(format.R8_UNorm)
	out := []byte{0}
	for v := 0; v < 256; v++ {
		s.Write(out, s.Read([]byte{byte(v)}))
		if out[0] != byte(v) {
			t.Fatalf("R8 value %d became %d", v, out[0])
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	half := Get(format.R16G16B16A16_Float)
	buf := make([]byte, 8)
	out := make([]byte, 8)
	for i := 0; i < 5000; i++ {
		for c := 0; c < 4; c++ {
			bits := uint16(rng.Intn(1 << 16))
			if bits&0x7c00 == 0x7c00 {
				bits &^= 0x4000 // keep finite
			}
			binary.LittleEndian.PutUint16(buf[c*2:], bits)
		}
		half.Write(out, half.Read(buf))
		if !bytes.Equal(buf, out) {
			t.Fatalf("half round trip %x -> %x", buf, out)
		}
	}

	full := Get(format.R32G32B32A32_Float)
	buf = make([]byte, 16)
	out = make([]byte, 16)
	for i := 0; i < 1000; i++ {
		c := math.Color{R: rng.Float32() * 100, G: -rng.Float32(), B: rng.Float32(), A: 1}
		full.Write(buf, c)
		full.Write(out, full.Read(buf))
		if !bytes.Equal(buf, out) {
			t.Fatalf("float round trip %x -> %x", buf, out)
		}
	}
}

func TestR11G11B10RoundTrip(t *testing.T) {
	s := Get(format.R11G11B10_Float)
	rng := rand.New(rand.NewSource(3))
	buf := make([]byte, 4)
	out := make([]byte, 4)
	for i := 0; i < 5000; i++ {
		r := uint32(rng.Intn(0x7c0)) // exponent below 31
		g := uint32(rng.Intn(0x7c0))
		b := uint32(rng.Intn(0x3e0))
		binary.LittleEndian.PutUint32(buf, r|g<<11|b<<22)
		s.Write(out, s.Read(buf))
		if !bytes.Equal(buf, out) {
			t.Fatalf("r11g11b10 round trip %x -> %x", buf, out)
		}
	}
}

func TestSampleLinear(t *testing.T) {
	s := Get(format.R8G8B8A8_UNorm)
	// 2x1: black | white
	data := []byte{0, 0, 0, 255, 255, 255, 255, 255}

	left := s.SampleLinear(0.25, 0.5, data, 2, 1, 8)
	if left.R != 0 {
		t.Errorf("texel center sample = %v, want 0", left.R)
	}
	mid := s.SampleLinear(0.5, 0.5, data, 2, 1, 8)
	if d := mid.R - 0.5; d > 1e-6 || d < -1e-6 {
		t.Errorf("mid sample = %v, want 0.5", mid.R)
	}
	edge := s.SampleLinear(1, 0.5, data, 2, 1, 8)
	if edge.R != 1 {
		t.Errorf("clamped edge sample = %v, want 1", edge.R)
	}

	p := s.SamplePointUV(0.9, 0.1, data, 2, 1, 8)
	if p.R != 1 {
		t.Errorf("point sample = %v, want 1", p.R)
	}
}

func TestBGRAChannelOrder(t *testing.T) {
	s := Get(format.B8G8R8A8_UNorm)
	p := make([]byte, 4)
	s.Write(p, math.Color{R: 1, G: 0, B: 0, A: 1})
	if !bytes.Equal(p, []byte{0, 0, 255, 255}) {
		t.Fatalf("BGRA write = %v", p)
	}
}

func TestBGRXPaddingIsOpaque(t *testing.T) {
	for _, f := range []format.PixelFormat{format.B8G8R8X8_UNorm, format.B8G8R8X8_UNorm_sRGB} {
		s := Get(f)
		src := []byte{10, 20, 30, 7}
		c := s.Read(src)
		if c.A != 1 {
			t.Errorf("%s: alpha = %v", f, c.A)
		}
		dst := make([]byte, 4)
		s.Write(dst, c)
		if !bytes.Equal(dst, []byte{10, 20, 30, 255}) {
			t.Errorf("%s: round trip of %v produced %v", f, src, dst)
		}
	}
}
