package textures

import (
	"io"
	"math"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// DecodeRAW reads a headerless square 16-bit heightmap.
func DecodeRAW(r io.Reader) (*TextureData, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, core.NewError(core.KindIO, "raw decode", err)
	}
	size := int(math.Sqrt(float64(len(b) / 2)))
	if size == 0 || size*size*2 != len(b) {
		return nil, core.Errorf(core.KindDecode, "raw decode", "%d bytes is not a square 16-bit heightmap", len(b))
	}
	data := NewTextureData(format.R16_UNorm, size, size, 1, 1)
	copy(data.Mip(0, 0).Data, b)
	return data, nil
}

// EncodeRAW writes the top mip of an R16_UNorm texture without a header.
func EncodeRAW(w io.Writer, data *TextureData) error {
	if data.Format != format.R16_UNorm {
		return core.Errorf(core.KindUnsupported, "raw encode", "expected R16_UNorm, got %s", data.Format)
	}
	_, err := w.Write(packedRows(data.Format, data.Width, data.Height, data.Mip(0, 0)))
	return err
}
