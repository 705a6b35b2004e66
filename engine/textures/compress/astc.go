package compress

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

const (
	astcMagic      = 0x5CA1AB13
	astcHeaderSize = 16
)

var ErrBadASTCFile = errors.New("not an .astc file")

// ASTCHeader is the 16-byte header of the .astc container written by
// astcenc.
type ASTCHeader struct {
	BlockX, BlockY, BlockZ int
	SizeX, SizeY, SizeZ    int
}

func putUint24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

// ParseASTC splits an .astc file into its header and block payload.
func ParseASTC(data []byte) (ASTCHeader, []byte, error) {
	if len(data) < astcHeaderSize || binary.LittleEndian.Uint32(data) != astcMagic {
		return ASTCHeader{}, nil, ErrBadASTCFile
	}
	h := ASTCHeader{
		BlockX: int(data[4]), BlockY: int(data[5]), BlockZ: int(data[6]),
		SizeX: uint24(data[7:]), SizeY: uint24(data[10:]), SizeZ: uint24(data[13:]),
	}
	if h.BlockX == 0 || h.BlockY == 0 || h.BlockZ == 0 {
		return ASTCHeader{}, nil, fmt.Errorf("%w: zero block size", ErrBadASTCFile)
	}
	blocks := math.DivideAndRoundUp(h.SizeX, h.BlockX) * math.DivideAndRoundUp(h.SizeY, h.BlockY) * math.DivideAndRoundUp(max(h.SizeZ, 1), h.BlockZ)
	payload := data[astcHeaderSize:]
	if len(payload) < blocks*16 {
		return ASTCHeader{}, nil, fmt.Errorf("%w: truncated payload", ErrBadASTCFile)
	}
	return h, payload[:blocks*16], nil
}

// WriteASTC builds an .astc file around blocks.
func WriteASTC(h ASTCHeader, blocks []byte) []byte {
	out := make([]byte, astcHeaderSize+len(blocks))
	binary.LittleEndian.PutUint32(out, astcMagic)
	out[4], out[5], out[6] = byte(h.BlockX), byte(h.BlockY), byte(max(h.BlockZ, 1))
	putUint24(out[7:], h.SizeX)
	putUint24(out[10:], h.SizeY)
	putUint24(out[13:], max(h.SizeZ, 1))
	copy(out[astcHeaderSize:], blocks)
	return out
}

// ASTCEncoder drives the astcenc command line tool.
type ASTCEncoder struct {
	// Tool is the astcenc executable, "astcenc" when empty.
	Tool   string
	Runner platform.Runner
	// WorkDir holds the intermediate files, os.TempDir() when empty.
	WorkDir string
}

func (e *ASTCEncoder) tool() string {
	if e.Tool == "" {
		return "astcenc"
	}
	return e.Tool
}

func qualityPreset(q Quality) string {
	switch q {
	case QualityFast:
		return "-fast"
	case QualityHigh:
		return "-thorough"
	default:
		return "-medium"
	}
}

func (e *ASTCEncoder) tempDir() (string, error) {
	dir := e.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(dir, "astc-")
}

// Encode compresses src into the ASTC format dst.
func (e *ASTCEncoder) Encode(ctx context.Context, src Surface, dst format.PixelFormat, q Quality) (Surface, error) {
	s := sampler.Get(src.Format)
	if s == nil {
		return Surface{}, core.Errorf(core.KindUnsupported, "astc encode", "cannot sample %s", src.Format)
	}
	dir, err := e.tempDir()
	if err != nil {
		return Surface{}, core.NewError(core.KindIO, "astc encode", err)
	}
	defer os.RemoveAll(dir)

	img := toNRGBA(src, s)
	in := filepath.Join(dir, "in.png")
	if err := writePNG(in, img); err != nil {
		return Surface{}, core.NewPathError(core.KindIO, "astc encode", in, err)
	}

	bw, bh := format.BlockSize(dst)
	mode := "-cl"
	if format.IsSRGB(dst) {
		mode = "-cs"
	}
	out := filepath.Join(dir, "out.astc")
	cmd := platform.NewCommand(e.tool(), platform.WithArgs(mode, in, out, fmt.Sprintf("%dx%d", bw, bh), qualityPreset(q), "-silent"))
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		return Surface{}, core.NewError(core.KindCompress, "astc encode", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return Surface{}, core.NewPathError(core.KindCompress, "astc encode", out, err)
	}
	h, blocks, err := ParseASTC(data)
	if err != nil {
		return Surface{}, core.NewPathError(core.KindCompress, "astc encode", out, err)
	}
	if h.BlockX != bw || h.BlockY != bh || h.SizeX != src.Width || h.SizeY != src.Height {
		return Surface{}, core.Errorf(core.KindCompress, "astc encode", "astcenc produced %dx%d blocks for a %dx%d image", h.BlockX, h.BlockY, h.SizeX, h.SizeY)
	}
	rowPitch, _, _ := format.ComputePitch(dst, src.Width, src.Height)
	return Surface{Format: dst, Width: src.Width, Height: src.Height, RowPitch: rowPitch, Data: blocks}, nil
}

// Decode expands an ASTC surface to RGBA8.
func (e *ASTCEncoder) Decode(ctx context.Context, src Surface) (Surface, error) {
	dir, err := e.tempDir()
	if err != nil {
		return Surface{}, core.NewError(core.KindIO, "astc decode", err)
	}
	defer os.RemoveAll(dir)

	bw, bh := format.BlockSize(src.Format)
	in := filepath.Join(dir, "in.astc")
	file := WriteASTC(ASTCHeader{BlockX: bw, BlockY: bh, BlockZ: 1, SizeX: src.Width, SizeY: src.Height, SizeZ: 1}, src.Data)
	if err := os.WriteFile(in, file, 0o644); err != nil {
		return Surface{}, core.NewPathError(core.KindIO, "astc decode", in, err)
	}
	mode := "-dl"
	if format.IsSRGB(src.Format) {
		mode = "-ds"
	}
	out := filepath.Join(dir, "out.png")
	cmd := platform.NewCommand(e.tool(), platform.WithArgs(mode, in, out, "-silent"))
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		return Surface{}, core.NewError(core.KindCompress, "astc decode", err)
	}
	f, err := os.Open(out)
	if err != nil {
		return Surface{}, core.NewPathError(core.KindCompress, "astc decode", out, err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		return Surface{}, core.NewPathError(core.KindDecode, "astc decode", out, err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, src.Width, src.Height))
	draw.Draw(img, img.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	return Surface{
		Format:   DecompressedFormat(src.Format),
		Width:    src.Width,
		Height:   src.Height,
		RowPitch: img.Stride,
		Data:     img.Pix,
	}, nil
}

func toNRGBA(src Surface, s *sampler.Sampler) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, src.Width, src.Height))
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			c := s.SamplePoint(x, y, src.Data, src.RowPitch)
			o := img.PixOffset(x, y)
			img.Pix[o+0] = unorm8(c.R)
			img.Pix[o+1] = unorm8(c.G)
			img.Pix[o+2] = unorm8(c.B)
			img.Pix[o+3] = unorm8(c.A)
		}
	}
	return img
}

func unorm8(v float32) byte {
	return byte(math.Saturate(v)*255 + 0.5)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
