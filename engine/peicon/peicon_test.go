package peicon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/format"
)

const (
	sectionFileOffset = 0x200
	sectionRVA        = 0x1000
	iconOffset        = 0x70
)

// buildPE assembles a minimal PE32+ image with a single RT_ICON bitmap of
// the given size and an RT_VERSION entry that must never be followed.
func buildPE(section string, size int, bitCount uint16) []byte {
	icon := Icon{Width: size, Height: size}
	iconBytes := iconHeaderSize + icon.colorSize() + icon.maskSize()
	rsrcSize := iconOffset + iconBytes
	buf := make([]byte, sectionFileOffset+rsrcSize)
	le := binary.LittleEndian

	copy(buf, "MZ")
	le.PutUint32(buf[lfanewOffset:], 0x40)
	copy(buf[0x40:], "PE\x00\x00")

	coff := buf[0x44:]
	le.PutUint16(coff[0:], 0x8664)
	le.PutUint16(coff[2:], 1)
	le.PutUint16(coff[16:], 240)
	le.PutUint16(coff[18:], 0x22)

	opt := buf[0x58:]
	le.PutUint16(opt[0:], 0x20B)
	le.PutUint32(opt[108:], 16)
	le.PutUint32(opt[112+2*8:], sectionRVA)
	le.PutUint32(opt[112+2*8+4:], uint32(rsrcSize))

	sh := buf[0x58+240:]
	copy(sh, section)
	le.PutUint32(sh[8:], uint32(rsrcSize))
	le.PutUint32(sh[12:], sectionRVA)
	le.PutUint32(sh[16:], uint32(rsrcSize))
	le.PutUint32(sh[20:], sectionFileOffset)
	le.PutUint32(sh[36:], 0x40000040)

	rs := buf[sectionFileOffset:]
	// Root: RT_ICON subdirectory plus RT_VERSION pointing at garbage.
	le.PutUint16(rs[14:], 2)
	le.PutUint32(rs[16:], rtIcon)
	le.PutUint32(rs[20:], resourceSubdirectory|0x20)
	le.PutUint32(rs[24:], 16)
	le.PutUint32(rs[28:], 0x60)
	// Name level.
	le.PutUint16(rs[0x20+14:], 1)
	le.PutUint32(rs[0x20+16:], 1)
	le.PutUint32(rs[0x20+20:], resourceSubdirectory|0x38)
	// Language level.
	le.PutUint16(rs[0x38+14:], 1)
	le.PutUint32(rs[0x38+16:], 0x409)
	le.PutUint32(rs[0x38+20:], 0x50)
	// Data entries.
	le.PutUint32(rs[0x50:], sectionRVA+iconOffset)
	le.PutUint32(rs[0x54:], uint32(iconBytes))
	le.PutUint32(rs[0x60:], 0xFFFFFF00)
	le.PutUint32(rs[0x64:], 64)

	hdr := rs[iconOffset:]
	le.PutUint32(hdr[0:], iconHeaderSize)
	le.PutUint32(hdr[4:], uint32(size))
	le.PutUint32(hdr[8:], uint32(size*2))
	le.PutUint16(hdr[12:], 1)
	le.PutUint16(hdr[14:], bitCount)
	return buf
}

func writeExe(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Game.exe")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// sourceTexture is opaque on the right half and green on the bottom half.
func sourceTexture(size int) *textures.TextureData {
	tex := textures.NewTextureData(format.R8G8B8A8_UNorm, size, size, 1, 1)
	mip := tex.Mip(0, 0)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := mip.Data[y*mip.RowPitch+x*4:]
			p[0] = 255
			if y >= size/2 {
				p[1] = 255
			}
			if x >= size/2 {
				p[3] = 255
			}
		}
	}
	return tex
}

func TestUpdateIcon(t *testing.T) {
	exe := buildPE(".rsrc", 256, 32)
	path := writeExe(t, exe)

	icons, err := ReadIcons(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(icons) != 1 || icons[0].Width != 256 || icons[0].Height != 256 || icons[0].Offset != iconOffset {
		t.Fatalf("unexpected icons %+v", icons)
	}

	if err := UpdateIcon(context.Background(), path, sourceTexture(1024)); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(exe) {
		t.Fatalf("file size changed from %d to %d", len(exe), len(got))
	}
	if !bytes.Equal(got[:sectionFileOffset+iconOffset+iconHeaderSize], exe[:sectionFileOffset+iconOffset+iconHeaderSize]) {
		t.Error("headers were modified")
	}

	icon := icons[0]
	color := got[sectionFileOffset+iconOffset+iconHeaderSize:]
	mask := color[icon.colorSize():]
	for y := 0; y < 256; y++ {
		row := 255 - y
		for x := 0; x < 256; x++ {
			p := color[(row*256+x)*4:]
			wantG, wantA := byte(0), byte(0)
			if y >= 128 {
				wantG = 255
			}
			if x >= 128 {
				wantA = 255
			}
			if p[0] != 0 || p[1] != wantG || p[2] != 255 || p[3] != wantA {
				t.Fatalf("pixel %d,%d = %v, want [0 %d 255 %d]", x, y, p[:4], wantG, wantA)
			}
			bit := mask[row*icon.maskStride()+x/8]&(0x80>>(x%8)) != 0
			if bit != (x < 128) {
				t.Fatalf("mask bit at %d,%d = %v", x, y, bit)
			}
		}
	}
}

func TestUpdateIconPreconditions(t *testing.T) {
	notMZ := buildPE(".rsrc", 16, 32)
	copy(notMZ, "ZM")
	noPE := buildPE(".rsrc", 16, 32)
	copy(noPE[0x40:], "NE")

	tests := []struct {
		name string
		exe  []byte
		want error
	}{
		{"missing MZ", notMZ, ErrNotExecutable},
		{"missing PE signature", noPE, ErrNotPE},
		{"no resource section", buildPE(".data", 16, 32), ErrNoResources},
		{"24-bit icons only", buildPE(".rsrc", 16, 24), ErrNoIcons},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeExe(t, tt.exe)
			err := UpdateIcon(context.Background(), path, sourceTexture(32))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !IsWarning(err) {
				t.Error("precondition failure should be a warning")
			}
			got, _ := os.ReadFile(path)
			if !bytes.Equal(got, tt.exe) {
				t.Error("file was modified")
			}
		})
	}
}
