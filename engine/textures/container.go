package textures

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

// Container is an image file format.
type Container uint8

const (
	ContainerUnknown Container = iota
	ContainerDDS
	ContainerTGA
	ContainerPNG
	ContainerBMP
	ContainerGIF
	ContainerTIFF
	ContainerJPEG
	ContainerHDR
	ContainerRAW
	ContainerEXR
)

var containerNames = [...]string{"unknown", "dds", "tga", "png", "bmp", "gif", "tiff", "jpeg", "hdr", "raw", "exr"}

func (c Container) String() string {
	if int(c) < len(containerNames) {
		return containerNames[c]
	}
	return "unknown"
}

// ContainerFromPath picks the container from the file extension.
func ContainerFromPath(path string) Container {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dds":
		return ContainerDDS
	case ".tga":
		return ContainerTGA
	case ".png":
		return ContainerPNG
	case ".bmp":
		return ContainerBMP
	case ".gif":
		return ContainerGIF
	case ".tif", ".tiff":
		return ContainerTIFF
	case ".jpg", ".jpeg":
		return ContainerJPEG
	case ".hdr":
		return ContainerHDR
	case ".raw":
		return ContainerRAW
	case ".exr":
		return ContainerEXR
	}
	return ContainerUnknown
}

// IsTextureFile reports whether path has an importable extension.
func IsTextureFile(path string) bool {
	c := ContainerFromPath(path)
	return c != ContainerUnknown && c != ContainerEXR
}

// Load decodes an image file without any processing.
func Load(path string) (*TextureData, error) {
	c := ContainerFromPath(path)
	switch c {
	case ContainerUnknown:
		return nil, core.NewPathError(core.KindDecode, "texture load", path, fmt.Errorf("unknown extension %q", filepath.Ext(path)))
	case ContainerEXR:
		return nil, core.NewPathError(core.KindUnsupported, "texture load", path, errors.New("OpenEXR is not supported"))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "texture load", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var data *TextureData
	switch c {
	case ContainerDDS:
		data, err = DecodeDDS(r)
	case ContainerTGA:
		data, err = DecodeTGA(r)
	case ContainerHDR:
		data, err = DecodeHDR(r)
	case ContainerRAW:
		data, err = DecodeRAW(r)
	default:
		data, err = decodeImage(c, r)
	}
	if err != nil {
		return nil, core.NewPathError(core.KindOf(err), "texture load", path, err)
	}
	return data, nil
}
