package textures

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

const jpegQuality = 95

// imageDecoders are the containers backed by image.Image codecs.
var imageDecoders = map[Container]func(io.Reader) (image.Image, error){
	ContainerPNG:  png.Decode,
	ContainerJPEG: jpeg.Decode,
	ContainerGIF:  gif.Decode,
	ContainerBMP:  bmp.Decode,
	ContainerTIFF: tiff.Decode,
}

// decodeImage decodes an image.Image container. 16-bit sources keep
// their precision in R16G16B16A16_UNorm, everything else becomes
// R8G8B8A8_UNorm.
func decodeImage(c Container, r io.Reader) (*TextureData, error) {
	img, err := imageDecoders[c](r)
	if err != nil {
		return nil, core.NewError(core.KindDecode, c.String()+" decode", err)
	}
	b := img.Bounds()
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		nrgba := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
		data := NewTextureData(format.R16G16B16A16_UNorm, b.Dx(), b.Dy(), 1, 1)
		mip := data.Mip(0, 0)
		// NRGBA64 is big endian, textures are little endian.
		for i := 0; i+1 < len(nrgba.Pix); i += 2 {
			mip.Data[i], mip.Data[i+1] = nrgba.Pix[i+1], nrgba.Pix[i]
		}
		return data, nil
	}
	data := NewTextureData(format.R8G8B8A8_UNorm, b.Dx(), b.Dy(), 1, 1)
	mip := data.Mip(0, 0)
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		// draw goes through premultiplied colors, only use it when the
		// source is not already straight alpha.
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
		b = nrgba.Bounds()
	}
	for y := 0; y < b.Dy(); y++ {
		copy(mip.Data[y*mip.RowPitch:(y+1)*mip.RowPitch], nrgba.Pix[nrgba.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return data, nil
}

// encodeImage writes the top mip of an R8G8B8A8_UNorm texture.
func encodeImage(c Container, w io.Writer, data *TextureData) error {
	if data.Format != format.R8G8B8A8_UNorm {
		return core.Errorf(core.KindUnsupported, c.String()+" encode", "expected R8G8B8A8_UNorm, got %s", data.Format)
	}
	mip := data.Mip(0, 0)
	img := &image.NRGBA{Pix: mip.Data, Stride: mip.RowPitch, Rect: image.Rect(0, 0, data.Width, data.Height)}
	var err error
	switch c {
	case ContainerPNG:
		err = png.Encode(w, img)
	case ContainerJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case ContainerGIF:
		err = gif.Encode(w, img, nil)
	case ContainerBMP:
		err = bmp.Encode(w, img)
	case ContainerTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return core.Errorf(core.KindUnsupported, "image encode", "container %s", c)
	}
	if err != nil {
		return core.NewError(core.KindIO, c.String()+" encode", err)
	}
	return nil
}
