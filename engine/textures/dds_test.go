package textures

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// ddsBytes builds a DX10 DDS file around the given payload.
func ddsBytes(width, height, mips, dxgi, arraySize, misc uint32, payload []byte) []byte {
	h := ddsHeader{
		Size:        ddsHeaderSize,
		Flags:       ddsFlagsCaps | ddsFlagsHeight | ddsFlagsWidth | ddsFlagsPixelFormat | ddsFlagsMipMapCount,
		Height:      height,
		Width:       width,
		Depth:       1,
		MipMapCount: mips,
		PixelFormat: ddsPixelFormat{Size: ddsPixelSize, Flags: ddpfFourCC, FourCC: dx10FourCC},
		Caps:        ddsCapsTexture,
	}
	dx10 := ddsHeaderDX10{DXGIFormat: dxgi, ResourceDimension: dx10DimTexture2D, MiscFlag: misc, ArraySize: arraySize}
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(ddsMagic))
	binary.Write(&b, binary.LittleEndian, &h)
	binary.Write(&b, binary.LittleEndian, &dx10)
	b.Write(payload)
	return b.Bytes()
}

func TestDecodeDDSRejectsMalformedHeaders(t *testing.T) {
	const rgba, rgba32f = 28, 2
	tests := []struct {
		name string
		file []byte
	}{
		{"huge mip and array counts", ddsBytes(4, 4, 0x7fffffff, rgba, 0x7fffffff, 0, nil)},
		{"huge mip count", ddsBytes(4, 4, 0x7fffffff, rgba, 1, 0, make([]byte, 64))},
		{"too many mips for the size", ddsBytes(4, 4, 4, rgba, 1, 0, make([]byte, 128))},
		{"huge array", ddsBytes(4, 4, 1, rgba, MaxTextureArray+1, 0, make([]byte, 64))},
		{"zero width", ddsBytes(0, 4, 1, rgba, 1, 0, nil)},
		{"oversized width", ddsBytes(1<<20, 4, 1, rgba, 1, 0, nil)},
		{"truncated payload", ddsBytes(4, 4, 1, rgba, 1, 0, make([]byte, 10))},
		{"large cube array without data", ddsBytes(MaxTextureSize, MaxTextureSize, 15, rgba32f, MaxTextureArray, dx10MiscCube, make([]byte, 256))},
		{"missing dx10 header", ddsBytes(4, 4, 1, rgba, 1, 0, nil)[:4+ddsHeaderSize+8]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DecodeDDS(bytes.NewReader(tt.file))
			if err == nil {
				t.Fatalf("decoded %s", data)
			}
			if !core.IsKind(err, core.KindDecode) {
				t.Errorf("err = %v (%s)", err, core.KindOf(err))
			}
		})
	}
}

func TestDecodeDDSMipChain(t *testing.T) {
	payload := make([]byte, 64+16+4)
	for i := range payload {
		payload[i] = byte(i)
	}
	data, err := DecodeDDS(bytes.NewReader(ddsBytes(4, 4, 3, 28, 1, 0, payload)))
	if err != nil {
		t.Fatal(err)
	}
	if data.Format != format.R8G8B8A8_UNorm || data.MipLevels() != 3 || data.ArraySize() != 1 {
		t.Fatalf("got %s", data)
	}
	if !bytes.Equal(data.Mip(0, 2).Data, payload[80:]) || data.Mip(0, 1).RowPitch != 8 {
		t.Errorf("mip 2 = %v, mip 1 pitch %d", data.Mip(0, 2).Data, data.Mip(0, 1).RowPitch)
	}
}
