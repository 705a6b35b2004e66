// Package peicon replaces the 32-bit icon bitmaps embedded in the resource
// section of a Windows executable.
package peicon

import (
	"bytes"
	"context"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/math"
	"github.com/spaghettifunk/anima-cooker/engine/textures"
	"github.com/spaghettifunk/anima-cooker/engine/textures/compress"
	"github.com/spaghettifunk/anima-cooker/engine/textures/sampler"
)

const (
	dosMagic       = 0x5A4D
	peSignature    = 0x00004550
	lfanewOffset   = 0x3C
	rtIcon         = 3
	iconHeaderSize = 40

	sectionUninitializedData = 0x00000080
	resourceSubdirectory     = 0x80000000

	alphaMaskThreshold = 0.25
)

var (
	ErrNotExecutable    = errors.New("not an MZ executable")
	ErrNotPE            = errors.New("missing PE signature")
	ErrNoOptionalHeader = errors.New("missing optional header")
	ErrNoResources      = errors.New("no resource section")
	ErrBadResources     = errors.New("malformed resource directory")
	ErrNoIcons          = errors.New("no 32-bit icons found")
)

// IsWarning reports whether err is a precondition failure that leaves the
// executable untouched and should not fail a build.
func IsWarning(err error) bool {
	for _, e := range []error{ErrNotExecutable, ErrNotPE, ErrNoOptionalHeader, ErrNoResources, ErrBadResources, ErrNoIcons} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// bitmapInfoHeader is the DIB header in front of every RT_ICON payload.
// Height counts both the color rows and the AND mask rows.
type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type resourceDirectory struct {
	Characteristics      uint32
	TimeDateStamp        uint32
	MajorVersion         uint16
	MinorVersion         uint16
	NumberOfNamedEntries uint16
	NumberOfIdEntries    uint16
}

type resourceDirectoryEntry struct {
	Name         uint32
	OffsetToData uint32
}

type resourceDataEntry struct {
	OffsetToData uint32
	Size         uint32
	CodePage     uint32
	Reserved     uint32
}

// Icon is one 32-bit icon bitmap found in an executable.
type Icon struct {
	Width  int
	Height int
	// Offset of the bitmap header inside the resource section.
	Offset int
}

// resourceSection is the .rsrc section loaded in memory.
type resourceSection struct {
	fileOffset int64
	rva        uint32
	rootOffset uint32
	data       []byte
}

func readResourceSection(r io.ReaderAt) (*resourceSection, error) {
	var buf [4]byte
	if _, err := r.ReadAt(buf[:2], 0); err != nil || binary.LittleEndian.Uint16(buf[:2]) != dosMagic {
		return nil, ErrNotExecutable
	}
	if _, err := r.ReadAt(buf[:], lfanewOffset); err != nil {
		return nil, ErrNotExecutable
	}
	lfanew := int64(binary.LittleEndian.Uint32(buf[:]))
	if _, err := r.ReadAt(buf[:], lfanew); err != nil || binary.LittleEndian.Uint32(buf[:]) != peSignature {
		return nil, ErrNotPE
	}

	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPE, err)
	}
	if f.FileHeader.SizeOfOptionalHeader == 0 {
		return nil, ErrNoOptionalHeader
	}
	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	default:
		return nil, ErrNoOptionalHeader
	}
	if len(dirs) <= pe.IMAGE_DIRECTORY_ENTRY_RESOURCE {
		return nil, ErrNoResources
	}
	dir := dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]

	for _, s := range f.Sections {
		if s.Name != ".rsrc" || s.Characteristics&sectionUninitializedData != 0 {
			continue
		}
		if dir.VirtualAddress < s.VirtualAddress {
			return nil, ErrBadResources
		}
		data := make([]byte, s.Size)
		if _, err := r.ReadAt(data, int64(s.Offset)); err != nil {
			return nil, core.NewError(core.KindIO, "icon read", err)
		}
		return &resourceSection{
			fileOffset: int64(s.Offset),
			rva:        s.VirtualAddress,
			rootOffset: dir.VirtualAddress - s.VirtualAddress,
			data:       data,
		}, nil
	}
	return nil, ErrNoResources
}

func (s *resourceSection) read(offset uint32, v any) error {
	if int(offset)+binary.Size(v) > len(s.data) {
		return ErrBadResources
	}
	return binary.Read(bytes.NewReader(s.data[offset:]), binary.LittleEndian, v)
}

// icons walks the resource tree. Only RT_ICON is followed at the root,
// named entries are skipped at every level.
func (s *resourceSection) icons() ([]Icon, error) {
	var out []Icon
	var walk func(offset uint32, depth int) error
	walk = func(offset uint32, depth int) error {
		if depth > 3 {
			return ErrBadResources
		}
		var dir resourceDirectory
		if err := s.read(offset, &dir); err != nil {
			return err
		}
		entries := offset + uint32(binary.Size(dir))
		entries += uint32(dir.NumberOfNamedEntries) * 8
		for i := uint32(0); i < uint32(dir.NumberOfIdEntries); i++ {
			var e resourceDirectoryEntry
			if err := s.read(entries+i*8, &e); err != nil {
				return err
			}
			if depth == 0 && e.Name != rtIcon {
				continue
			}
			if e.OffsetToData&resourceSubdirectory != 0 {
				if err := walk(s.rootOffset+e.OffsetToData&^resourceSubdirectory, depth+1); err != nil {
					return err
				}
				continue
			}
			icon, ok, err := s.leaf(s.rootOffset + e.OffsetToData)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, icon)
			}
		}
		return nil
	}
	if err := walk(s.rootOffset, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *resourceSection) leaf(offset uint32) (Icon, bool, error) {
	var entry resourceDataEntry
	if err := s.read(offset, &entry); err != nil {
		return Icon{}, false, err
	}
	if entry.OffsetToData < s.rva {
		return Icon{}, false, ErrBadResources
	}
	at := entry.OffsetToData - s.rva
	var hdr bitmapInfoHeader
	if err := s.read(at, &hdr); err != nil {
		return Icon{}, false, err
	}
	if hdr.Size != iconHeaderSize || hdr.Compression != 0 || hdr.Planes != 1 || hdr.BitCount != 32 {
		return Icon{}, false, nil
	}
	icon := Icon{Width: int(hdr.Width), Height: int(hdr.Height) / 2, Offset: int(at)}
	if icon.Width <= 0 || icon.Height <= 0 {
		return Icon{}, false, nil
	}
	if int(at)+iconHeaderSize+icon.colorSize()+icon.maskSize() > len(s.data) {
		return Icon{}, false, ErrBadResources
	}
	return icon, true, nil
}

func (i Icon) colorSize() int { return i.Width * i.Height * 4 }

func (i Icon) maskStride() int { return (i.Width + 31) / 32 * 4 }

func (i Icon) maskSize() int { return i.maskStride() * i.Height }

// ReadIcons lists the 32-bit icon bitmaps stored in an executable.
func ReadIcons(path string) ([]Icon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "icon read", path, err)
	}
	defer f.Close()
	rs, err := readResourceSection(f)
	if err != nil {
		return nil, err
	}
	return rs.icons()
}

// UpdateIcon overwrites every 32-bit icon of the executable at exePath with
// tex resampled to the icon size. The file size never changes and the file
// is left untouched when any precondition fails.
func UpdateIcon(ctx context.Context, exePath string, tex *textures.TextureData) error {
	f, err := os.OpenFile(exePath, os.O_RDWR, 0)
	if err != nil {
		return core.NewPathError(core.KindIO, "icon update", exePath, err)
	}
	defer f.Close()

	rs, err := readResourceSection(f)
	if err != nil {
		return err
	}
	icons, err := rs.icons()
	if err != nil {
		return err
	}
	if len(icons) == 0 {
		return ErrNoIcons
	}

	src, err := textures.Decompress(ctx, tex, compress.Options{})
	if err != nil {
		return err
	}
	smp := sampler.Get(src.Format)
	if smp == nil {
		return core.Errorf(core.KindUnsupported, "icon update", "cannot sample %s", src.Format)
	}
	top := src.Mip(0, 0)
	for _, icon := range icons {
		writeIcon(rs.data[icon.Offset+iconHeaderSize:], icon, smp, top, src.Width, src.Height)
	}

	if _, err := f.WriteAt(rs.data, rs.fileOffset); err != nil {
		return core.NewPathError(core.KindIO, "icon update", exePath, err)
	}
	core.LogDebug("updated %d icon(s) in %s", len(icons), exePath)
	return nil
}

// writeIcon stores BGRA rows bottom-up followed by the AND mask, where a set
// bit marks a transparent pixel.
func writeIcon(dst []byte, icon Icon, smp *sampler.Sampler, top *textures.TextureMipData, srcW, srcH int) {
	color := dst[:icon.colorSize()]
	mask := dst[icon.colorSize() : icon.colorSize()+icon.maskSize()]
	clear(mask)
	stride := icon.maskStride()
	for y := 0; y < icon.Height; y++ {
		row := icon.Height - 1 - y
		v := (float32(y) + 0.5) / float32(icon.Height)
		for x := 0; x < icon.Width; x++ {
			u := (float32(x) + 0.5) / float32(icon.Width)
			c := smp.SampleLinear(u, v, top.Data, srcW, srcH, top.RowPitch)
			p := color[(row*icon.Width+x)*4:]
			p[0] = unorm8(c.B)
			p[1] = unorm8(c.G)
			p[2] = unorm8(c.R)
			p[3] = unorm8(c.A)
			if c.A < alphaMaskThreshold {
				mask[row*stride+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
}

func unorm8(v float32) byte {
	return byte(math.Saturate(v)*255 + 0.5)
}
