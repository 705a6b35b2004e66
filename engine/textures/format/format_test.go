package format

import "testing"

func TestSRGBSiblingsRoundTrip(t *testing.T) {
	for _, f := range All() {
		if got := ToSRGB(ToNonSRGB(f)); HasSRGB(f) && IsSRGB(f) && got != f {
			t.Errorf("ToSRGB(ToNonSRGB(%s)) = %s", f, got)
		}
		if got := ToNonSRGB(ToSRGB(f)); HasSRGB(f) && !IsSRGB(f) && got != f {
			t.Errorf("ToNonSRGB(ToSRGB(%s)) = %s", f, got)
		}
		if !HasSRGB(f) {
			if ToSRGB(f) != f || ToNonSRGB(f) != f {
				t.Errorf("%s has no sibling but conversion changed it", f)
			}
		}
	}
}

func TestSiblingSymmetry(t *testing.T) {
	for _, f := range All() {
		if !HasSRGB(f) {
			continue
		}
		s := ToSRGB(f)
		l := ToNonSRGB(f)
		if !IsSRGB(s) || IsSRGB(l) {
			t.Errorf("%s: sRGB=%s linear=%s have inconsistent flags", f, s, l)
		}
		if SizeInBytes(s) != SizeInBytes(l) {
			t.Errorf("%s: siblings differ in size", f)
		}
	}
}

func TestUnknownIsTotal(t *testing.T) {
	bogus := PixelFormat(250)
	if SizeInBytes(bogus) != 0 || IsCompressed(bogus) || HasAlpha(bogus) {
		t.Fatal("unknown format reported properties")
	}
	if bogus.String() != "Unknown" || ToSRGB(bogus) != bogus || FindUncompressed(Unknown) != Unknown {
		t.Fatal("unknown format conversions are not identity")
	}
	if w, h := BlockSize(bogus); w != 0 || h != 0 {
		t.Fatalf("BlockSize(unknown) = %dx%d", w, h)
	}
}

func TestComputePitch(t *testing.T) {
	tests := []struct {
		f          PixelFormat
		w, h       int
		row, lines int
	}{
		{R8G8B8A8_UNorm, 7, 3, 28, 3},
		{BC1_UNorm, 1024, 1024, 2048, 256},
		{BC3_UNorm, 1, 1, 16, 1},
		{BC3_UNorm, 2, 5, 16, 2},
		{BC7_UNorm, 10, 10, 48, 3},
		{ASTC_6x6_UNorm, 64, 64, 176, 11},
		{R32G32B32A32_Float, 2, 2, 32, 2},
	}
	for _, tt := range tests {
		row, slice, lines := ComputePitch(tt.f, tt.w, tt.h)
		if row != tt.row || lines != tt.lines || slice != row*lines {
			t.Errorf("ComputePitch(%s, %d, %d) = %d, %d, %d; want row %d lines %d",
				tt.f, tt.w, tt.h, row, slice, lines, tt.row, tt.lines)
		}
	}
}

func TestFindUncompressed(t *testing.T) {
	tests := map[PixelFormat]PixelFormat{
		BC1_UNorm:           R8G8B8A8_UNorm,
		BC3_UNorm_sRGB:      R8G8B8A8_UNorm_sRGB,
		BC4_UNorm:           R8_UNorm,
		BC5_UNorm:           R8G8_UNorm,
		BC6H_Uf16:           R16G16B16A16_Float,
		ASTC_6x6_UNorm_sRGB: R8G8B8A8_UNorm_sRGB,
		R16_UNorm:           R16_UNorm,
	}
	for in, want := range tests {
		if got := FindUncompressed(in); got != want {
			t.Errorf("FindUncompressed(%s) = %s, want %s", in, got, want)
		}
		if IsCompressed(FindUncompressed(in)) {
			t.Errorf("FindUncompressed(%s) is still compressed", in)
		}
	}
}

func TestParse(t *testing.T) {
	for _, f := range All() {
		if got := Parse(f.String()); got != f {
			t.Errorf("Parse(%q) = %s", f.String(), got)
		}
	}
	if Parse("nope") != Unknown {
		t.Fatal("Parse accepted an unknown name")
	}
}
