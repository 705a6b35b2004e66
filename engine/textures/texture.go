// Package textures imports, processes and exports 2D textures: container
// decoding, resizing, mip chains, alpha coverage and conversion to GPU
// formats.
package textures

import (
	"fmt"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

// TextureMipData is one mip level of one array slice.
type TextureMipData struct {
	RowPitch int
	// DepthPitch is always RowPitch * Lines.
	DepthPitch int
	// Lines is the number of rows, block rows for compressed formats.
	Lines int
	Data  []byte
}

// ArrayEntry is one array slice: its mips, finest first.
type ArrayEntry struct {
	Mips []TextureMipData
}

// TextureData is a texture held in memory. Items holds one entry per array
// slice (1 for 2D textures, 6 for cube maps).
type TextureData struct {
	Width  int
	Height int
	Depth  int
	Format format.PixelFormat
	Items  []ArrayEntry
}

func newMip(f format.PixelFormat, width, height int) TextureMipData {
	rowPitch, slicePitch, lines := format.ComputePitch(f, width, height)
	return TextureMipData{
		RowPitch:   rowPitch,
		DepthPitch: slicePitch,
		Lines:      lines,
		Data:       make([]byte, slicePitch),
	}
}

// NewTextureData allocates zeroed storage for a texture.
func NewTextureData(f format.PixelFormat, width, height, arraySize, mipLevels int) *TextureData {
	t := &TextureData{Width: width, Height: height, Depth: 1, Format: f}
	t.Items = make([]ArrayEntry, arraySize)
	for a := range t.Items {
		t.Items[a].Mips = make([]TextureMipData, mipLevels)
		for m := range t.Items[a].Mips {
			t.Items[a].Mips[m] = newMip(f, math.MipSize(width, m), math.MipSize(height, m))
		}
	}
	return t
}

func (t *TextureData) ArraySize() int {
	return len(t.Items)
}

// MipLevels is the number of mips of the first slice.
func (t *TextureData) MipLevels() int {
	if len(t.Items) == 0 {
		return 0
	}
	return len(t.Items[0].Mips)
}

func (t *TextureData) MipWidth(mip int) int {
	return math.MipSize(t.Width, mip)
}

func (t *TextureData) MipHeight(mip int) int {
	return math.MipSize(t.Height, mip)
}

func (t *TextureData) Mip(arrayIndex, mip int) *TextureMipData {
	return &t.Items[arrayIndex].Mips[mip]
}

// Surface views one mip as a compress.Surface. The data is shared.
func (t *TextureData) Surface(arrayIndex, mip int) compress.Surface {
	m := t.Mip(arrayIndex, mip)
	return compress.Surface{
		Format:   t.Format,
		Width:    t.MipWidth(mip),
		Height:   t.MipHeight(mip),
		RowPitch: m.RowPitch,
		Data:     m.Data,
	}
}

func mipFromSurface(s compress.Surface) TextureMipData {
	_, _, lines := format.ComputePitch(s.Format, s.Width, s.Height)
	return TextureMipData{
		RowPitch:   s.RowPitch,
		DepthPitch: s.RowPitch * lines,
		Lines:      lines,
		Data:       s.Data,
	}
}

// Clone deep-copies the texture.
func (t *TextureData) Clone() *TextureData {
	c := *t
	c.Items = make([]ArrayEntry, len(t.Items))
	for a, item := range t.Items {
		c.Items[a].Mips = make([]TextureMipData, len(item.Mips))
		for m, mip := range item.Mips {
			mip.Data = append([]byte(nil), mip.Data...)
			c.Items[a].Mips[m] = mip
		}
	}
	return &c
}

// Validate checks the storage invariants of every mip.
func (t *TextureData) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return core.Errorf(core.KindValidation, "texture", "invalid size %dx%d", t.Width, t.Height)
	}
	if t.Depth > 1 {
		return core.Errorf(core.KindUnsupported, "texture", "volume textures are not supported")
	}
	if len(t.Items) == 0 {
		return core.Errorf(core.KindValidation, "texture", "texture has no array slices")
	}
	for a, item := range t.Items {
		if len(item.Mips) != t.MipLevels() {
			return core.Errorf(core.KindValidation, "texture", "slice %d has %d mips, expected %d", a, len(item.Mips), t.MipLevels())
		}
		for m, mip := range item.Mips {
			if mip.DepthPitch != mip.RowPitch*mip.Lines {
				return core.Errorf(core.KindValidation, "texture", "slice %d mip %d: depth pitch %d != %d*%d", a, m, mip.DepthPitch, mip.RowPitch, mip.Lines)
			}
			rowPitch, _, lines := format.ComputePitch(t.Format, t.MipWidth(m), t.MipHeight(m))
			if format.IsCompressed(t.Format) && (mip.RowPitch != rowPitch || mip.Lines != lines) {
				return core.Errorf(core.KindValidation, "texture", "slice %d mip %d: pitch %d/%d lines, expected %d/%d", a, m, mip.RowPitch, mip.Lines, rowPitch, lines)
			}
			if len(mip.Data) < mip.DepthPitch {
				return core.Errorf(core.KindValidation, "texture", "slice %d mip %d holds %d bytes, needs %d", a, m, len(mip.Data), mip.DepthPitch)
			}
		}
	}
	return nil
}

func (t *TextureData) String() string {
	return fmt.Sprintf("%dx%d %s, %d slice(s), %d mip(s)", t.Width, t.Height, t.Format, t.ArraySize(), t.MipLevels())
}
