package textures

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

const (
	tgaTypeTrueColor    = 2
	tgaTypeGray         = 3
	tgaTypeRLETrueColor = 10
	tgaTypeRLEGray      = 11

	tgaOriginRight = 0x10
	tgaOriginTop   = 0x20
)

var ErrBadTGA = errors.New("not a supported TGA file")

type tgaHeader struct {
	IDLength        uint8
	ColorMapType    uint8
	ImageType       uint8
	ColorMapOrigin  uint16
	ColorMapLength  uint16
	ColorMapDepth   uint8
	XOrigin         uint16
	YOrigin         uint16
	Width           uint16
	Height          uint16
	BitsPerPixel    uint8
	ImageDescriptor uint8
}

// DecodeTGA reads 8-bit gray, 24-bit and 32-bit true color TGA files,
// raw or run-length encoded, into R8G8B8A8_UNorm.
func DecodeTGA(r io.Reader) (*TextureData, error) {
	br := bufio.NewReader(r)
	var h tgaHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, core.NewError(core.KindDecode, "tga decode", fmt.Errorf("header: %w", err))
	}
	if h.ColorMapType != 0 {
		return nil, core.NewError(core.KindDecode, "tga decode", fmt.Errorf("%w: color mapped images", ErrBadTGA))
	}
	rle := h.ImageType == tgaTypeRLETrueColor || h.ImageType == tgaTypeRLEGray
	gray := h.ImageType == tgaTypeGray || h.ImageType == tgaTypeRLEGray
	switch {
	case h.ImageType != tgaTypeTrueColor && h.ImageType != tgaTypeRLETrueColor && !gray:
		return nil, core.NewError(core.KindDecode, "tga decode", fmt.Errorf("%w: image type %d", ErrBadTGA, h.ImageType))
	case gray && h.BitsPerPixel != 8, !gray && h.BitsPerPixel != 24 && h.BitsPerPixel != 32:
		return nil, core.NewError(core.KindDecode, "tga decode", fmt.Errorf("%w: %d bits per pixel", ErrBadTGA, h.BitsPerPixel))
	case h.Width == 0 || h.Height == 0:
		return nil, core.NewError(core.KindDecode, "tga decode", fmt.Errorf("%w: empty image", ErrBadTGA))
	case h.Width > MaxTextureSize || h.Height > MaxTextureSize:
		return nil, core.NewError(core.KindDecode, "tga decode", fmt.Errorf("%w: size %dx%d", ErrBadTGA, h.Width, h.Height))
	}
	if _, err := br.Discard(int(h.IDLength)); err != nil {
		return nil, core.NewError(core.KindDecode, "tga decode", err)
	}

	width, height := int(h.Width), int(h.Height)
	bpp := int(h.BitsPerPixel) / 8
	size := width * height * bpp
	var raw []byte
	var err error
	if rle {
		raw, err = readTGARLE(br, size, bpp)
	} else {
		raw, err = io.ReadAll(io.LimitReader(br, int64(size)))
		if err == nil && len(raw) < size {
			err = fmt.Errorf("%w: truncated, %d of %d bytes", ErrBadTGA, len(raw), size)
		}
	}
	if err != nil {
		return nil, core.NewError(core.KindDecode, "tga decode", err)
	}

	data := NewTextureData(format.R8G8B8A8_UNorm, width, height, 1, 1)
	mip := data.Mip(0, 0)
	for y := 0; y < height; y++ {
		srcY := y
		if h.ImageDescriptor&tgaOriginTop == 0 {
			srcY = height - 1 - y
		}
		for x := 0; x < width; x++ {
			srcX := x
			if h.ImageDescriptor&tgaOriginRight != 0 {
				srcX = width - 1 - x
			}
			p := raw[(srcY*width+srcX)*bpp:]
			o := mip.Data[y*mip.RowPitch+x*4:]
			switch bpp {
			case 1:
				o[0], o[1], o[2], o[3] = p[0], p[0], p[0], 255
			case 3:
				o[0], o[1], o[2], o[3] = p[2], p[1], p[0], 255
			default:
				o[0], o[1], o[2], o[3] = p[2], p[1], p[0], p[3]
			}
		}
	}
	return data, nil
}

// readTGARLE expands run-length packets until size bytes are decoded.
func readTGARLE(r *bufio.Reader, size, bpp int) ([]byte, error) {
	out := make([]byte, 0, min(size, 1<<20))
	pixel := make([]byte, bpp)
	for len(out) < size {
		packet, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		count := int(packet&0x7f) + 1
		if len(out)+count*bpp > size {
			return nil, fmt.Errorf("%w: run overflows the image", ErrBadTGA)
		}
		if packet&0x80 != 0 {
			if _, err := io.ReadFull(r, pixel); err != nil {
				return nil, err
			}
			for j := 0; j < count; j++ {
				out = append(out, pixel...)
			}
			continue
		}
		start := len(out)
		out = append(out, make([]byte, count*bpp)...)
		if _, err := io.ReadFull(r, out[start:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeTGA writes the top mip as an uncompressed 32-bit top-down TGA.
func EncodeTGA(w io.Writer, data *TextureData) error {
	if data.Format != format.R8G8B8A8_UNorm {
		return core.Errorf(core.KindUnsupported, "tga encode", "expected R8G8B8A8_UNorm, got %s", data.Format)
	}
	if data.Width > 0xffff || data.Height > 0xffff {
		return core.Errorf(core.KindUnsupported, "tga encode", "%dx%d is too large", data.Width, data.Height)
	}
	h := tgaHeader{
		ImageType:       tgaTypeTrueColor,
		Width:           uint16(data.Width),
		Height:          uint16(data.Height),
		BitsPerPixel:    32,
		ImageDescriptor: tgaOriginTop | 8,
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return err
	}
	mip := data.Mip(0, 0)
	px := make([]byte, 4)
	for y := 0; y < data.Height; y++ {
		row := mip.Data[y*mip.RowPitch:]
		for x := 0; x < data.Width; x++ {
			p := row[x*4:]
			px[0], px[1], px[2], px[3] = p[2], p[1], p[0], p[3]
			if _, err := bw.Write(px); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
