package textures

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

const (
	ddsMagic      = 0x20534444 // "DDS "
	ddsHeaderSize = 124
	ddsPixelSize  = 32
	dx10FourCC    = 0x30315844 // "DX10"

	ddsFlagsCaps        = 0x1
	ddsFlagsHeight      = 0x2
	ddsFlagsWidth       = 0x4
	ddsFlagsPitch       = 0x8
	ddsFlagsPixelFormat = 0x1000
	ddsFlagsMipMapCount = 0x20000
	ddsFlagsLinearSize  = 0x80000

	ddsCapsComplex = 0x8
	ddsCapsTexture = 0x1000
	ddsCapsMipMap  = 0x400000
	ddsCaps2Cube   = 0x200
	ddsCaps2Volume = 0x200000

	ddpfAlphaPixels = 0x1
	ddpfAlpha       = 0x2
	ddpfFourCC      = 0x4
	ddpfRGB         = 0x40
	ddpfLuminance   = 0x20000

	dx10MiscCube     = 0x4
	dx10DimTexture2D = 3
	dx10DimTexture3D = 4
)

// Largest 2D texture and array a decoder accepts, the Direct3D 11 limits.
const (
	MaxTextureSize  = 16384
	MaxTextureArray = 2048
)

var ErrBadDDS = errors.New("not a DDS file")

var dxgiFormats = map[format.PixelFormat]uint32{
	format.R32G32B32A32_Float:    2,
	format.R32G32B32_Float:       6,
	format.R16G16B16A16_Float:    10,
	format.R16G16B16A16_UNorm:    11,
	format.R32G32_Float:          16,
	format.R10G10B10A2_UNorm:     24,
	format.R11G11B10_Float:       26,
	format.R8G8B8A8_UNorm:        28,
	format.R8G8B8A8_UNorm_sRGB:   29,
	format.R16G16_Float:          34,
	format.R16G16_UNorm:          35,
	format.R32_Float:             41,
	format.R8G8_UNorm:            49,
	format.R16_Float:             54,
	format.R16_UNorm:             56,
	format.R8_UNorm:              61,
	format.A8_UNorm:              65,
	format.BC1_UNorm:             71,
	format.BC1_UNorm_sRGB:        72,
	format.BC2_UNorm:             74,
	format.BC2_UNorm_sRGB:        75,
	format.BC3_UNorm:             77,
	format.BC3_UNorm_sRGB:        78,
	format.BC4_UNorm:             80,
	format.BC5_UNorm:             83,
	format.B8G8R8A8_UNorm:        87,
	format.B8G8R8X8_UNorm:        88,
	format.B8G8R8A8_UNorm_sRGB:   91,
	format.B8G8R8X8_UNorm_sRGB:   93,
	format.BC6H_Uf16:             95,
	format.BC7_UNorm:             98,
	format.BC7_UNorm_sRGB:        99,
	format.ASTC_4x4_UNorm:        134,
	format.ASTC_4x4_UNorm_sRGB:   135,
	format.ASTC_5x5_UNorm:        142,
	format.ASTC_5x5_UNorm_sRGB:   143,
	format.ASTC_6x6_UNorm:        150,
	format.ASTC_6x6_UNorm_sRGB:   151,
	format.ASTC_8x8_UNorm:        162,
	format.ASTC_8x8_UNorm_sRGB:   163,
	format.ASTC_10x10_UNorm:      178,
	format.ASTC_10x10_UNorm_sRGB: 179,
	format.ASTC_12x12_UNorm:      186,
	format.ASTC_12x12_UNorm_sRGB: 187,
}

var dxgiToFormat = func() map[uint32]format.PixelFormat {
	m := make(map[uint32]format.PixelFormat, len(dxgiFormats))
	for f, d := range dxgiFormats {
		m[d] = f
	}
	return m
}()

func fourCC(s string) uint32 {
	return binary.LittleEndian.Uint32([]byte(s))
}

type ddsPixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      uint32
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

type ddsHeader struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       ddsPixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

type ddsHeaderDX10 struct {
	DXGIFormat        uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

// legacyFormat maps a pre-DX10 pixel format description.
func legacyFormat(pf ddsPixelFormat) format.PixelFormat {
	if pf.Flags&ddpfFourCC != 0 {
		switch pf.FourCC {
		case fourCC("DXT1"):
			return format.BC1_UNorm
		case fourCC("DXT2"), fourCC("DXT3"):
			return format.BC2_UNorm
		case fourCC("DXT4"), fourCC("DXT5"):
			return format.BC3_UNorm
		case fourCC("ATI1"), fourCC("BC4U"):
			return format.BC4_UNorm
		case fourCC("ATI2"), fourCC("BC5U"):
			return format.BC5_UNorm
		case 36:
			return format.R16G16B16A16_UNorm
		case 111:
			return format.R16_Float
		case 112:
			return format.R16G16_Float
		case 113:
			return format.R16G16B16A16_Float
		case 114:
			return format.R32_Float
		case 115:
			return format.R32G32_Float
		case 116:
			return format.R32G32B32A32_Float
		}
		return format.Unknown
	}
	switch {
	case pf.Flags&ddpfRGB != 0 && pf.RGBBitCount == 32:
		switch {
		case pf.RBitMask == 0xff && pf.GBitMask == 0xff00 && pf.BBitMask == 0xff0000:
			return format.R8G8B8A8_UNorm
		case pf.RBitMask == 0xff0000 && pf.GBitMask == 0xff00 && pf.BBitMask == 0xff:
			if pf.Flags&ddpfAlphaPixels != 0 {
				return format.B8G8R8A8_UNorm
			}
			return format.B8G8R8X8_UNorm
		case pf.RBitMask == 0xffff && pf.GBitMask == 0xffff0000:
			return format.R16G16_UNorm
		case pf.RBitMask == 0x3ff && pf.GBitMask == 0xffc00:
			return format.R10G10B10A2_UNorm
		}
	case pf.Flags&ddpfLuminance != 0 && pf.RGBBitCount == 8:
		return format.R8_UNorm
	case pf.Flags&ddpfLuminance != 0 && pf.RGBBitCount == 16:
		return format.R16_UNorm
	case pf.Flags&ddpfAlpha != 0 && pf.RGBBitCount == 8:
		return format.A8_UNorm
	}
	return format.Unknown
}

// DecodeDDS reads a DDS file with a legacy or DX10 header. Cube maps
// become six array slices.
func DecodeDDS(r io.Reader) (*TextureData, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil || magic != ddsMagic {
		return nil, core.NewError(core.KindDecode, "dds decode", ErrBadDDS)
	}
	var h ddsHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("header: %w", err))
	}
	if h.Size != ddsHeaderSize || h.PixelFormat.Size != ddsPixelSize {
		return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("%w: bad header size", ErrBadDDS))
	}
	if h.Caps2&ddsCaps2Volume != 0 || h.Depth > 1 {
		return nil, core.Errorf(core.KindUnsupported, "dds decode", "volume textures are not supported")
	}

	arraySize := 1
	var f format.PixelFormat
	if h.PixelFormat.Flags&ddpfFourCC != 0 && h.PixelFormat.FourCC == dx10FourCC {
		var dx10 ddsHeaderDX10
		if err := binary.Read(r, binary.LittleEndian, &dx10); err != nil {
			return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("dx10 header: %w", err))
		}
		if dx10.ResourceDimension == dx10DimTexture3D {
			return nil, core.Errorf(core.KindUnsupported, "dds decode", "volume textures are not supported")
		}
		f = dxgiToFormat[dx10.DXGIFormat]
		if f == format.Unknown {
			return nil, core.Errorf(core.KindUnsupported, "dds decode", "DXGI format %d", dx10.DXGIFormat)
		}
		if dx10.ArraySize > MaxTextureArray {
			return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("%w: array size %d", ErrBadDDS, dx10.ArraySize))
		}
		arraySize = int(max(dx10.ArraySize, 1))
		if dx10.MiscFlag&dx10MiscCube != 0 {
			arraySize *= 6
		}
	} else {
		f = legacyFormat(h.PixelFormat)
		if f == format.Unknown {
			return nil, core.Errorf(core.KindUnsupported, "dds decode", "pixel format fourcc=%#x bits=%d", h.PixelFormat.FourCC, h.PixelFormat.RGBBitCount)
		}
		if h.Caps2&ddsCaps2Cube != 0 {
			arraySize = 6
		}
	}

	if h.Width == 0 || h.Height == 0 || h.Width > MaxTextureSize || h.Height > MaxTextureSize {
		return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("%w: size %dx%d", ErrBadDDS, h.Width, h.Height))
	}
	width, height := int(h.Width), int(h.Height)
	mips := int(max(h.MipMapCount, 1))
	if mips > math.MipLevelsCount(width, height) {
		return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("%w: %d mips for %dx%d", ErrBadDDS, h.MipMapCount, width, height))
	}

	data := &TextureData{Width: width, Height: height, Depth: 1, Format: f}
	total := 0
	for m := 0; m < mips; m++ {
		_, slicePitch, _ := format.ComputePitch(f, data.MipWidth(m), data.MipHeight(m))
		total += slicePitch
	}
	total *= arraySize

	// The payload buffer grows with the bytes actually read.
	payload, err := io.ReadAll(io.LimitReader(r, int64(total)))
	if err != nil {
		return nil, core.NewError(core.KindDecode, "dds decode", err)
	}
	if len(payload) < total {
		return nil, core.NewError(core.KindDecode, "dds decode", fmt.Errorf("%w: truncated, %d of %d bytes", ErrBadDDS, len(payload), total))
	}

	data.Items = make([]ArrayEntry, arraySize)
	offset := 0
	for a := range data.Items {
		data.Items[a].Mips = make([]TextureMipData, mips)
		for m := range data.Items[a].Mips {
			rowPitch, slicePitch, lines := format.ComputePitch(f, data.MipWidth(m), data.MipHeight(m))
			end := offset + slicePitch
			data.Items[a].Mips[m] = TextureMipData{
				RowPitch:   rowPitch,
				DepthPitch: slicePitch,
				Lines:      lines,
				Data:       payload[offset:end:end],
			}
			offset = end
		}
	}
	return data, nil
}

// EncodeDDS writes data with a DX10 header, keeping compressed payloads.
func EncodeDDS(w io.Writer, data *TextureData) error {
	dxgi, ok := dxgiFormats[data.Format]
	if !ok {
		return core.Errorf(core.KindUnsupported, "dds encode", "no DXGI format for %s", data.Format)
	}
	rowPitch, slicePitch, _ := format.ComputePitch(data.Format, data.Width, data.Height)
	h := ddsHeader{
		Size:        ddsHeaderSize,
		Flags:       ddsFlagsCaps | ddsFlagsHeight | ddsFlagsWidth | ddsFlagsPixelFormat | ddsFlagsMipMapCount,
		Height:      uint32(data.Height),
		Width:       uint32(data.Width),
		Depth:       1,
		MipMapCount: uint32(data.MipLevels()),
		PixelFormat: ddsPixelFormat{Size: ddsPixelSize, Flags: ddpfFourCC, FourCC: dx10FourCC},
		Caps:        ddsCapsTexture,
	}
	if format.IsCompressed(data.Format) {
		h.Flags |= ddsFlagsLinearSize
		h.PitchOrLinearSize = uint32(slicePitch)
	} else {
		h.Flags |= ddsFlagsPitch
		h.PitchOrLinearSize = uint32(rowPitch)
	}
	if data.MipLevels() > 1 {
		h.Caps |= ddsCapsComplex | ddsCapsMipMap
	}
	dx10 := ddsHeaderDX10{
		DXGIFormat:        dxgi,
		ResourceDimension: dx10DimTexture2D,
		ArraySize:         uint32(data.ArraySize()),
	}

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(ddsMagic))
	binary.Write(&b, binary.LittleEndian, &h)
	binary.Write(&b, binary.LittleEndian, &dx10)
	for a := range data.Items {
		for m := range data.Items[a].Mips {
			mip := data.Mip(a, m)
			b.Write(packedRows(data.Format, data.MipWidth(m), data.MipHeight(m), mip))
		}
	}
	_, err := w.Write(b.Bytes())
	return err
}

// packedRows returns the mip bytes without row padding.
func packedRows(f format.PixelFormat, width, height int, mip *TextureMipData) []byte {
	rowPitch, slicePitch, lines := format.ComputePitch(f, width, height)
	if mip.RowPitch == rowPitch {
		return mip.Data[:slicePitch]
	}
	out := make([]byte, slicePitch)
	for y := 0; y < lines; y++ {
		copy(out[y*rowPitch:(y+1)*rowPitch], mip.Data[y*mip.RowPitch:])
	}
	return out
}
