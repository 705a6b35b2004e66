package platforms

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

// templateExts are expanded when a project template is deployed, other
// files are copied as they are.
var templateExts = []string{".xml", ".plist", ".json", ".gradle", ".properties", ".config", ".appxmanifest", ".pbxproj", ".txt", ".java", ".kt", ".cs", ".ini", ".xcscheme", ".entitlements"}

// ExpandTemplate replaces every ${Key} of text with vars[Key]. Unknown
// keys are left in place.
func ExpandTemplate(text string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "${"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// expandFile writes the template at src, or fallback when src does not
// exist, expanded into dst.
func expandFile(src, fallback, dst string, vars map[string]string) error {
	text := fallback
	if src != "" {
		data, err := os.ReadFile(src)
		switch {
		case err == nil:
			text = string(data)
		case !os.IsNotExist(err):
			return core.NewPathError(core.KindIO, "expand template", src, err)
		case fallback == "":
			return core.NewPathError(core.KindIO, "expand template", src, err)
		}
	}
	return writeFile(dst, ExpandTemplate(text, vars))
}

// deployTemplate mirrors the template folder src into dst, expanding the
// text files. A missing template folder is not an error.
func deployTemplate(src, dst string, vars map[string]string) error {
	if !platform.Exists(src) {
		core.LogDebug("no project template at %s", src)
		return nil
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return core.NewPathError(core.KindIO, "deploy template", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, ExpandTemplate(rel, vars))
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return core.NewPathError(core.KindIO, "deploy template", target, err)
			}
			return nil
		}
		if !hasExt(path, templateExts...) {
			if err := platform.CopyFile(path, target); err != nil {
				return err
			}
			// Keep scripts such as gradlew runnable.
			if info, err := d.Info(); err == nil && info.Mode()&0o111 != 0 {
				return os.Chmod(target, info.Mode().Perm())
			}
			return nil
		}
		return expandFile(path, "", target, vars)
	})
}
