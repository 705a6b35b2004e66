// Package format is the registry of GPU pixel formats known to the cooker.
// Every lookup is total: unknown formats answer with zero values or Unknown.
package format

import "strings"

/** @brief Identifies a GPU pixel layout. */
type PixelFormat uint8

const (
	Unknown PixelFormat = iota
	R32G32B32A32_Float
	R32G32B32_Float
	R16G16B16A16_Float
	R16G16B16A16_UNorm
	R32G32_Float
	R16G16_Float
	R16G16_UNorm
	R10G10B10A2_UNorm
	R11G11B10_Float
	R8G8B8A8_UNorm
	R8G8B8A8_UNorm_sRGB
	B8G8R8A8_UNorm
	B8G8R8A8_UNorm_sRGB
	B8G8R8X8_UNorm
	B8G8R8X8_UNorm_sRGB
	R8G8_UNorm
	R32_Float
	R16_Float
	R16_UNorm
	R8_UNorm
	A8_UNorm
	BC1_UNorm
	BC1_UNorm_sRGB
	BC2_UNorm
	BC2_UNorm_sRGB
	BC3_UNorm
	BC3_UNorm_sRGB
	BC4_UNorm
	BC5_UNorm
	BC6H_Uf16
	BC7_UNorm
	BC7_UNorm_sRGB
	ASTC_4x4_UNorm
	ASTC_4x4_UNorm_sRGB
	ASTC_5x5_UNorm
	ASTC_5x5_UNorm_sRGB
	ASTC_6x6_UNorm
	ASTC_6x6_UNorm_sRGB
	ASTC_8x8_UNorm
	ASTC_8x8_UNorm_sRGB
	ASTC_10x10_UNorm
	ASTC_10x10_UNorm_sRGB
	ASTC_12x12_UNorm
	ASTC_12x12_UNorm_sRGB

	formatCount
)

/** @brief The block-compression family of a format. */
type Family uint8

const (
	FamilyNone Family = iota
	FamilyBC
	FamilyASTC
)

func (f Family) String() string {
	switch f {
	case FamilyBC:
		return "BC"
	case FamilyASTC:
		return "ASTC"
	default:
		return "None"
	}
}

// ParseFamily maps "bc" and "astc" (any case) to a Family.
func ParseFamily(s string) (Family, bool) {
	switch strings.ToLower(s) {
	case "bc":
		return FamilyBC, true
	case "astc":
		return FamilyASTC, true
	case "", "none":
		return FamilyNone, true
	}
	return FamilyNone, false
}

/** @brief Static description of one pixel format. */
type info struct {
	/** @brief Display name, matches the constant name. */
	name string
	/** @brief Bytes per pixel for plain formats, bytes per block for compressed ones. */
	size int
	/** @brief Block footprint, 1x1 for plain formats. */
	blockW, blockH int
	/** @brief Number of stored channels. */
	components int
	/** @brief The sRGB/linear counterpart, Unknown when there is none. */
	sibling PixelFormat
	srgb    bool
	family  Family
	alpha   bool
	/** @brief Format to decompress into, the format itself when plain. */
	uncompressed PixelFormat
}

var table = [formatCount]info{
	Unknown:               {name: "Unknown"},
	R32G32B32A32_Float:    {name: "R32G32B32A32_Float", size: 16, blockW: 1, blockH: 1, components: 4, alpha: true},
	R32G32B32_Float:       {name: "R32G32B32_Float", size: 12, blockW: 1, blockH: 1, components: 3},
	R16G16B16A16_Float:    {name: "R16G16B16A16_Float", size: 8, blockW: 1, blockH: 1, components: 4, alpha: true},
	R16G16B16A16_UNorm:    {name: "R16G16B16A16_UNorm", size: 8, blockW: 1, blockH: 1, components: 4, alpha: true},
	R32G32_Float:          {name: "R32G32_Float", size: 8, blockW: 1, blockH: 1, components: 2},
	R16G16_Float:          {name: "R16G16_Float", size: 4, blockW: 1, blockH: 1, components: 2},
	R16G16_UNorm:          {name: "R16G16_UNorm", size: 4, blockW: 1, blockH: 1, components: 2},
	R10G10B10A2_UNorm:     {name: "R10G10B10A2_UNorm", size: 4, blockW: 1, blockH: 1, components: 4, alpha: true},
	R11G11B10_Float:       {name: "R11G11B10_Float", size: 4, blockW: 1, blockH: 1, components: 3},
	R8G8B8A8_UNorm:        {name: "R8G8B8A8_UNorm", size: 4, blockW: 1, blockH: 1, components: 4, alpha: true, sibling: R8G8B8A8_UNorm_sRGB},
	R8G8B8A8_UNorm_sRGB:   {name: "R8G8B8A8_UNorm_sRGB", size: 4, blockW: 1, blockH: 1, components: 4, alpha: true, sibling: R8G8B8A8_UNorm, srgb: true},
	B8G8R8A8_UNorm:        {name: "B8G8R8A8_UNorm", size: 4, blockW: 1, blockH: 1, components: 4, alpha: true, sibling: B8G8R8A8_UNorm_sRGB},
	B8G8R8A8_UNorm_sRGB:   {name: "B8G8R8A8_UNorm_sRGB", size: 4, blockW: 1, blockH: 1, components: 4, alpha: true, sibling: B8G8R8A8_UNorm, srgb: true},
	B8G8R8X8_UNorm:        {name: "B8G8R8X8_UNorm", size: 4, blockW: 1, blockH: 1, components: 4, sibling: B8G8R8X8_UNorm_sRGB},
	B8G8R8X8_UNorm_sRGB:   {name: "B8G8R8X8_UNorm_sRGB", size: 4, blockW: 1, blockH: 1, components: 4, sibling: B8G8R8X8_UNorm, srgb: true},
	R8G8_UNorm:            {name: "R8G8_UNorm", size: 2, blockW: 1, blockH: 1, components: 2},
	R32_Float:             {name: "R32_Float", size: 4, blockW: 1, blockH: 1, components: 1},
	R16_Float:             {name: "R16_Float", size: 2, blockW: 1, blockH: 1, components: 1},
	R16_UNorm:             {name: "R16_UNorm", size: 2, blockW: 1, blockH: 1, components: 1},
	R8_UNorm:              {name: "R8_UNorm", size: 1, blockW: 1, blockH: 1, components: 1},
	A8_UNorm:              {name: "A8_UNorm", size: 1, blockW: 1, blockH: 1, components: 1, alpha: true},
	BC1_UNorm:             {name: "BC1_UNorm", size: 8, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC1_UNorm_sRGB, uncompressed: R8G8B8A8_UNorm},
	BC1_UNorm_sRGB:        {name: "BC1_UNorm_sRGB", size: 8, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC1_UNorm, srgb: true, uncompressed: R8G8B8A8_UNorm_sRGB},
	BC2_UNorm:             {name: "BC2_UNorm", size: 16, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC2_UNorm_sRGB, uncompressed: R8G8B8A8_UNorm},
	BC2_UNorm_sRGB:        {name: "BC2_UNorm_sRGB", size: 16, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC2_UNorm, srgb: true, uncompressed: R8G8B8A8_UNorm_sRGB},
	BC3_UNorm:             {name: "BC3_UNorm", size: 16, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC3_UNorm_sRGB, uncompressed: R8G8B8A8_UNorm},
	BC3_UNorm_sRGB:        {name: "BC3_UNorm_sRGB", size: 16, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC3_UNorm, srgb: true, uncompressed: R8G8B8A8_UNorm_sRGB},
	BC4_UNorm:             {name: "BC4_UNorm", size: 8, blockW: 4, blockH: 4, components: 1, family: FamilyBC, uncompressed: R8_UNorm},
	BC5_UNorm:             {name: "BC5_UNorm", size: 16, blockW: 4, blockH: 4, components: 2, family: FamilyBC, uncompressed: R8G8_UNorm},
	BC6H_Uf16:             {name: "BC6H_Uf16", size: 16, blockW: 4, blockH: 4, components: 3, family: FamilyBC, uncompressed: R16G16B16A16_Float},
	BC7_UNorm:             {name: "BC7_UNorm", size: 16, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC7_UNorm_sRGB, uncompressed: R8G8B8A8_UNorm},
	BC7_UNorm_sRGB:        {name: "BC7_UNorm_sRGB", size: 16, blockW: 4, blockH: 4, components: 4, alpha: true, family: FamilyBC, sibling: BC7_UNorm, srgb: true, uncompressed: R8G8B8A8_UNorm_sRGB},
	ASTC_4x4_UNorm:        astc("ASTC_4x4_UNorm", 4, ASTC_4x4_UNorm_sRGB, false),
	ASTC_4x4_UNorm_sRGB:   astc("ASTC_4x4_UNorm_sRGB", 4, ASTC_4x4_UNorm, true),
	ASTC_5x5_UNorm:        astc("ASTC_5x5_UNorm", 5, ASTC_5x5_UNorm_sRGB, false),
	ASTC_5x5_UNorm_sRGB:   astc("ASTC_5x5_UNorm_sRGB", 5, ASTC_5x5_UNorm, true),
	ASTC_6x6_UNorm:        astc("ASTC_6x6_UNorm", 6, ASTC_6x6_UNorm_sRGB, false),
	ASTC_6x6_UNorm_sRGB:   astc("ASTC_6x6_UNorm_sRGB", 6, ASTC_6x6_UNorm, true),
	ASTC_8x8_UNorm:        astc("ASTC_8x8_UNorm", 8, ASTC_8x8_UNorm_sRGB, false),
	ASTC_8x8_UNorm_sRGB:   astc("ASTC_8x8_UNorm_sRGB", 8, ASTC_8x8_UNorm, true),
	ASTC_10x10_UNorm:      astc("ASTC_10x10_UNorm", 10, ASTC_10x10_UNorm_sRGB, false),
	ASTC_10x10_UNorm_sRGB: astc("ASTC_10x10_UNorm_sRGB", 10, ASTC_10x10_UNorm, true),
	ASTC_12x12_UNorm:      astc("ASTC_12x12_UNorm", 12, ASTC_12x12_UNorm_sRGB, false),
	ASTC_12x12_UNorm_sRGB: astc("ASTC_12x12_UNorm_sRGB", 12, ASTC_12x12_UNorm, true),
}

// Every ASTC block is 128 bits regardless of its footprint.
func astc(name string, block int, sibling PixelFormat, srgb bool) info {
	uncompressed := R8G8B8A8_UNorm
	if srgb {
		uncompressed = R8G8B8A8_UNorm_sRGB
	}
	return info{
		name: name, size: 16, blockW: block, blockH: block, components: 4,
		alpha: true, family: FamilyASTC, sibling: sibling, srgb: srgb,
		uncompressed: uncompressed,
	}
}

func (f PixelFormat) info() *info {
	if f >= formatCount {
		return &table[Unknown]
	}
	return &table[f]
}

func (f PixelFormat) String() string {
	return f.info().name
}

// Parse finds a format by its name, case-insensitive.
func Parse(name string) PixelFormat {
	for i := range table {
		if strings.EqualFold(table[i].name, name) {
			return PixelFormat(i)
		}
	}
	return Unknown
}

// All lists every known format except Unknown.
func All() []PixelFormat {
	out := make([]PixelFormat, 0, formatCount-1)
	for f := PixelFormat(1); f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

// SizeInBytes is the size of one pixel, or of one block for compressed formats.
func SizeInBytes(f PixelFormat) int {
	return f.info().size
}

// BitsPerPixel is the average storage cost of a pixel.
func BitsPerPixel(f PixelFormat) int {
	in := f.info()
	if in.blockW == 0 {
		return 0
	}
	return in.size * 8 / (in.blockW * in.blockH)
}

// BlockSize returns the block footprint, (1, 1) for plain formats and
// (0, 0) for Unknown.
func BlockSize(f PixelFormat) (int, int) {
	in := f.info()
	return in.blockW, in.blockH
}

func ComponentsCount(f PixelFormat) int {
	return f.info().components
}

func IsCompressed(f PixelFormat) bool {
	return f.info().family != FamilyNone
}

func IsCompressedBC(f PixelFormat) bool {
	return f.info().family == FamilyBC
}

func IsCompressedASTC(f PixelFormat) bool {
	return f.info().family == FamilyASTC
}

func CompressionFamily(f PixelFormat) Family {
	return f.info().family
}

func HasAlpha(f PixelFormat) bool {
	return f.info().alpha
}

func IsSRGB(f PixelFormat) bool {
	return f.info().srgb
}

// HasSRGB reports whether the format has an sRGB/linear counterpart.
func HasSRGB(f PixelFormat) bool {
	return f.info().sibling != Unknown
}

// ToSRGB returns the sRGB sibling, or f when there is none.
func ToSRGB(f PixelFormat) PixelFormat {
	in := f.info()
	if in.srgb || in.sibling == Unknown {
		return f
	}
	return in.sibling
}

// ToNonSRGB returns the linear sibling, or f when there is none.
func ToNonSRGB(f PixelFormat) PixelFormat {
	in := f.info()
	if !in.srgb || in.sibling == Unknown {
		return f
	}
	return in.sibling
}

// FindUncompressed returns the plain format a compressed one decodes to.
// Plain formats map to themselves.
func FindUncompressed(f PixelFormat) PixelFormat {
	in := f.info()
	if in.family == FamilyNone {
		return f
	}
	return in.uncompressed
}

// ComputePitch returns the row pitch, the slice pitch and the number of
// rows (block rows for compressed formats) of a width x height surface.
func ComputePitch(f PixelFormat, width, height int) (rowPitch, slicePitch, lines int) {
	in := f.info()
	if in.blockW == 0 || width <= 0 || height <= 0 {
		return 0, 0, 0
	}
	blocksX := (width + in.blockW - 1) / in.blockW
	lines = (height + in.blockH - 1) / in.blockH
	rowPitch = blocksX * in.size
	return rowPitch, rowPitch * lines, lines
}

// IsFloat reports whether f stores floating point (HDR) values.
func IsFloat(f PixelFormat) bool {
	switch f {
	case R32G32B32A32_Float, R32G32B32_Float, R16G16B16A16_Float, R32G32_Float,
		R16G16_Float, R11G11B10_Float, R32_Float, R16_Float, BC6H_Uf16:
		return true
	}
	return false
}
