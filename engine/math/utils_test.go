package math

import "testing"

func TestMipLevelsCount(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{1024, 1024, 11},
		{1000, 500, 10},
		{256, 512, 10},
	}
	for _, tt := range tests {
		if got := MipLevelsCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevelsCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []int{1, 2, 4, 512, 1 << 20} {
		if !IsPowerOfTwo(v) {
			t.Errorf("IsPowerOfTwo(%d) = false", v)
		}
	}
	for _, v := range []int{0, 3, 6, 1000, -4} {
		if IsPowerOfTwo(v) {
			t.Errorf("IsPowerOfTwo(%d) = true", v)
		}
	}
}

func TestSrgbRoundTrip(t *testing.T) {
	for i := 0; i <= 255; i++ {
		v := float32(i) / 255
		back := LinearToSrgb(SrgbToLinear(v))
		if d := back - v; d > 1e-4 || d < -1e-4 {
			t.Fatalf("srgb round trip of %v drifted to %v", v, back)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Fatal("Clamp returned a wrong value")
	}
	if RoundUpToPowerOf2(300) != 512 || RoundUpToPowerOf2(1) != 1 {
		t.Fatal("RoundUpToPowerOf2 returned a wrong value")
	}
}
