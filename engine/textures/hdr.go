package textures

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

var ErrBadHDR = errors.New("not a Radiance HDR file")

// DecodeHDR reads a Radiance RGBE image (flat or new-style RLE scanlines)
// into R32G32B32A32_Float.
func DecodeHDR(r io.Reader) (*TextureData, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil || (!strings.HasPrefix(line, "#?RADIANCE") && !strings.HasPrefix(line, "#?RGBE")) {
		return nil, core.NewError(core.KindDecode, "hdr decode", ErrBadHDR)
	}
	for {
		line, err = br.ReadString('\n')
		if err != nil {
			return nil, core.NewError(core.KindDecode, "hdr decode", fmt.Errorf("header: %w", err))
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "FORMAT="); ok && v != "32-bit_rle_rgbe" {
			return nil, core.Errorf(core.KindUnsupported, "hdr decode", "pixel format %s", v)
		}
	}
	line, err = br.ReadString('\n')
	if err != nil {
		return nil, core.NewError(core.KindDecode, "hdr decode", fmt.Errorf("resolution: %w", err))
	}
	var width, height int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "-Y %d +X %d", &height, &width); err != nil || width <= 0 || height <= 0 {
		return nil, core.NewError(core.KindDecode, "hdr decode", fmt.Errorf("%w: unsupported resolution line %q", ErrBadHDR, line))
	}

	data := NewTextureData(format.R32G32B32A32_Float, width, height, 1, 1)
	mip := data.Mip(0, 0)
	s := sampler.Get(format.R32G32B32A32_Float)
	scanline := make([]byte, width*4)
	for y := 0; y < height; y++ {
		if err := readHDRScanline(br, scanline, width); err != nil {
			return nil, core.NewError(core.KindDecode, "hdr decode", fmt.Errorf("scanline %d: %w", y, err))
		}
		for x := 0; x < width; x++ {
			s.Store(x, y, mip.Data, mip.RowPitch, rgbeToColor(scanline[x*4:]))
		}
	}
	return data, nil
}

func readHDRScanline(r *bufio.Reader, out []byte, width int) error {
	head, err := r.Peek(4)
	if err != nil {
		return err
	}
	if width < 8 || width > 0x7fff || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		_, err := io.ReadFull(r, out)
		return err
	}
	if int(head[2])<<8|int(head[3]) != width {
		return fmt.Errorf("%w: scanline width mismatch", ErrBadHDR)
	}
	if _, err := r.Discard(4); err != nil {
		return err
	}
	// New RLE stores each of the four components as its own run list.
	for c := 0; c < 4; c++ {
		for x := 0; x < width; {
			count, err := r.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count - 128)
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				if x+n > width {
					return fmt.Errorf("%w: run overflows the scanline", ErrBadHDR)
				}
				for ; n > 0; n-- {
					out[x*4+c] = v
					x++
				}
			} else {
				n := int(count)
				if n == 0 || x+n > width {
					return fmt.Errorf("%w: bad literal run", ErrBadHDR)
				}
				for ; n > 0; n-- {
					v, err := r.ReadByte()
					if err != nil {
						return err
					}
					out[x*4+c] = v
					x++
				}
			}
		}
	}
	return nil
}

func rgbeToColor(p []byte) math.Color {
	if p[3] == 0 {
		return math.Color{A: 1}
	}
	f := math32.Ldexp(1, int(p[3])-(128+8))
	return math.Color{R: float32(p[0]) * f, G: float32(p[1]) * f, B: float32(p[2]) * f, A: 1}
}

func colorToRGBE(c math.Color, p []byte) {
	v := max(c.R, c.G, c.B)
	if v < 1e-32 {
		p[0], p[1], p[2], p[3] = 0, 0, 0, 0
		return
	}
	m, e := math32.Frexp(v)
	scale := m * 256 / v
	p[0] = byte(max(c.R, 0) * scale)
	p[1] = byte(max(c.G, 0) * scale)
	p[2] = byte(max(c.B, 0) * scale)
	p[3] = byte(e + 128)
}

// EncodeHDR writes the top mip as flat RGBE scanlines.
func EncodeHDR(w io.Writer, data *TextureData) error {
	s := sampler.Get(data.Format)
	if s == nil {
		return core.Errorf(core.KindUnsupported, "hdr encode", "cannot sample %s", data.Format)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y %d +X %d\n", data.Height, data.Width)
	mip := data.Mip(0, 0)
	px := make([]byte, 4)
	for y := 0; y < data.Height; y++ {
		for x := 0; x < data.Width; x++ {
			colorToRGBE(s.SamplePoint(x, y, mip.Data, mip.RowPitch), px)
			if _, err := bw.Write(px); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
