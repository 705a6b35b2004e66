package textures

import (
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// TextureType describes what the texture holds, which decides its GPU
// format.
type TextureType uint8

const (
	// TypeAuto picks ColorRGBA, ColorRGB or HDR from the source.
	TypeAuto TextureType = iota
	TypeColorRGB
	TypeColorRGBA
	TypeNormalMap
	TypeGrayScale
	TypeHDR
)

var typeNames = []string{"Auto", "ColorRGB", "ColorRGBA", "NormalMap", "GrayScale", "HDR"}

func (t TextureType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// ParseTextureType matches a type name case-insensitively.
func ParseTextureType(s string) (TextureType, bool) {
	for i, n := range typeNames {
		if strings.EqualFold(n, s) {
			return TextureType(i), true
		}
	}
	return TypeAuto, false
}

const DefaultMaxSize = 8192

// ImportOptions controls how a source image becomes a texture.
type ImportOptions struct {
	Type TextureType
	// Compress allows block compression of the result.
	Compress bool
	// SRGB stores the result in the sRGB sibling format.
	SRGB            bool
	GenerateMipMaps bool

	FlipX        bool
	FlipY        bool
	InvertRed    bool
	InvertGreen  bool
	InvertBlue   bool
	InvertAlpha  bool
	ReconstructZ bool

	// Resize uses SizeX and SizeY, otherwise Scale is applied.
	Resize          bool
	KeepAspectRatio bool
	SizeX           int
	SizeY           int
	Scale           float32
	MaxSize         int

	PreserveAlphaCoverage bool
	// AlphaCoverageReference is the alpha test threshold coverage is
	// measured against.
	AlphaCoverageReference float32

	Quality compress.Quality
	// InternalFormat overrides the format picked by ToPixelFormat.
	InternalFormat format.PixelFormat
	// Family is the block compression family the target platform supports.
	Family format.Family

	Device *compress.Device
	ASTC   *compress.ASTCEncoder
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Type:                   TypeAuto,
		Compress:               true,
		GenerateMipMaps:        true,
		Scale:                  1,
		MaxSize:                DefaultMaxSize,
		AlphaCoverageReference: 0.5,
		Quality:                compress.QualityMedium,
		Family:                 format.FamilyBC,
	}
}

func (o *ImportOptions) compressOptions() compress.Options {
	return compress.Options{Quality: o.Quality, Device: o.Device, ASTC: o.ASTC}
}

// targetSize applies the resize options to a width x height source.
func (o *ImportOptions) targetSize(width, height int) (int, int) {
	w, h := width, height
	if o.Resize {
		if o.SizeX > 0 {
			w = o.SizeX
		}
		if o.SizeY > 0 {
			h = o.SizeY
		}
		if o.KeepAspectRatio {
			if width >= height {
				h = w * height / width
			} else {
				w = h * width / height
			}
		}
	} else if o.Scale > 0 && o.Scale != 1 {
		w = int(float32(width)*o.Scale + 0.5)
		h = int(float32(height)*o.Scale + 0.5)
	}
	maxSize := o.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return math.Clamp(w, 1, maxSize), math.Clamp(h, 1, maxSize)
}

func (o *ImportOptions) resolveType(src format.PixelFormat, hasAlpha bool) TextureType {
	if o.Type != TypeAuto {
		return o.Type
	}
	switch {
	case format.IsFloat(src):
		return TypeHDR
	case hasAlpha:
		return TypeColorRGBA
	default:
		return TypeColorRGB
	}
}

// ToPixelFormat maps a texture type to the GPU format used to store it.
// BC formats need both sides to be multiples of 4, otherwise the texture
// stays uncompressed. High quality picks BC7 over BC1 and BC3.
func ToPixelFormat(t TextureType, width, height int, canCompress bool, family format.Family, quality compress.Quality) format.PixelFormat {
	useBC := canCompress && family == format.FamilyBC && width%4 == 0 && height%4 == 0
	useASTC := canCompress && family == format.FamilyASTC

	switch t {
	case TypeColorRGB:
		switch {
		case useBC && quality == compress.QualityHigh:
			return format.BC7_UNorm
		case useBC:
			return format.BC1_UNorm
		case useASTC:
			return format.ASTC_6x6_UNorm
		}
		return format.R8G8B8A8_UNorm
	case TypeColorRGBA, TypeAuto:
		switch {
		case useBC && quality == compress.QualityHigh:
			return format.BC7_UNorm
		case useBC:
			return format.BC3_UNorm
		case useASTC:
			return format.ASTC_6x6_UNorm
		}
		return format.R8G8B8A8_UNorm
	case TypeNormalMap:
		switch {
		case useBC:
			return format.BC5_UNorm
		case useASTC:
			return format.ASTC_6x6_UNorm
		}
		return format.R8G8B8A8_UNorm
	case TypeHDR:
		if useBC {
			return format.BC6H_Uf16
		}
		return format.R16G16B16A16_Float
	case TypeGrayScale:
		if useBC {
			return format.BC4_UNorm
		}
		return format.R8_UNorm
	}
	return format.R8G8B8A8_UNorm
}
