package platform

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

// CopyFile copies src to dst, creating the parent directories of dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return core.NewPathError(core.KindIO, "copy", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return core.NewPathError(core.KindIO, "copy", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return core.NewPathError(core.KindIO, "copy", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return core.NewPathError(core.KindIO, "copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return core.NewPathError(core.KindIO, "copy", dst, err)
	}
	return nil
}

// CopyTree mirrors the files below src into dst. With onlyNewer, files
// whose destination is at least as recent as the source are skipped.
func CopyTree(src, dst string, onlyNewer bool) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return core.NewPathError(core.KindIO, "copy", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return core.NewPathError(core.KindIO, "copy", target, err)
			}
			return nil
		}
		if onlyNewer {
			si, err := d.Info()
			if err != nil {
				return core.NewPathError(core.KindIO, "copy", path, err)
			}
			if di, err := os.Stat(target); err == nil && !si.ModTime().After(di.ModTime()) {
				return nil
			}
		}
		return CopyFile(path, target)
	})
}

// RemoveFiles deletes every file below root with the given extension and
// returns how many were removed.
func RemoveFiles(root, ext string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return core.NewPathError(core.KindIO, "remove", path, err)
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return core.NewPathError(core.KindIO, "remove", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
