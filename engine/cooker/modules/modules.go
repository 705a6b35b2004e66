// Package modules follows the build-info files produced by the scripts
// builder, deploys every referenced binary module next to the game and
// writes the merged Game.Build.json manifest.
package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/spaghettifunk/anima-cooker/engine/core"
	"github.com/spaghettifunk/anima-cooker/engine/platform"
)

const (
	ManifestName = "Game.Build.json"

	enginePathToken  = "$(EnginePath)"
	projectPathToken = "$(ProjectPath)"
	buildInfoSuffix  = ".Build.json"
)

var (
	ErrEmptyReference = errors.New("reference has an empty ProjectPath or Path")
	ErrUnnamedModule  = errors.New("binary module without a Name")
)

// Reference points at the build info of another project.
type Reference struct {
	ProjectPath string
	Path        string
}

// BinaryModule is a compiled code unit. After resolution the paths hold
// file names only.
type BinaryModule struct {
	Name        string
	NativePath  string `json:",omitempty"`
	ManagedPath string `json:",omitempty"`
}

// BuildInfo is the on-disk <Target>.Build.json. Comments and trailing
// commas are tolerated.
type BuildInfo struct {
	References    []Reference
	BinaryModules []BinaryModule
}

// Manifest is the merged Game.Build.json shipped with the game.
type Manifest struct {
	Name          string
	Platform      string
	Configuration string
	BinaryModules []BinaryModule
}

// NativeCodeFilter tells native libraries apart from managed assemblies.
type NativeCodeFilter interface {
	IsNativeCodeFile(path string) bool
}

// Resolver walks build infos depth-first. Each file is visited once, so
// cyclic references terminate.
type Resolver struct {
	EnginePath    string
	NativeOutput  string
	ManagedOutput string
	Filter        NativeCodeFilter
	// Release additionally skips debug symbols and XML docs.
	Release bool
	// PreserveMode copies POSIX permission bits from the source files.
	PreserveMode bool

	visited map[string]struct{}
	names   map[string]struct{}
	modules []BinaryModule
}

// ReadBuildInfo parses a build-info file.
func ReadBuildInfo(path string) (*BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "read build info", path, err)
	}
	var info BuildInfo
	if err := json.Unmarshal(jsonc.ToJSON(data), &info); err != nil {
		return nil, core.NewPathError(core.KindIO, "read build info", path, fmt.Errorf("parsing build info: %w", err))
	}
	return &info, nil
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func (r *Resolver) expand(path, projectFolder string) string {
	path = strings.ReplaceAll(path, enginePathToken, r.EnginePath)
	path = strings.ReplaceAll(path, projectPathToken, projectFolder)
	path = filepath.FromSlash(strings.ReplaceAll(path, "\\", "/"))
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectFolder, path)
	}
	return path
}

// fileName strips a module path recorded by any host down to its base name.
func fileName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(filepath.FromSlash(strings.ReplaceAll(path, "\\", "/")))
}

// Deploy processes buildInfoPath and everything it references.
func (r *Resolver) Deploy(buildInfoPath, projectFolder string) error {
	if r.visited == nil {
		r.visited = make(map[string]struct{})
		r.names = make(map[string]struct{})
	}
	key := canonical(buildInfoPath)
	if _, ok := r.visited[key]; ok {
		return nil
	}
	r.visited[key] = struct{}{}

	info, err := ReadBuildInfo(buildInfoPath)
	if err != nil {
		return err
	}
	core.LogDebug("binary modules: %s", buildInfoPath)

	for _, ref := range info.References {
		if ref.ProjectPath == "" || ref.Path == "" {
			return core.NewPathError(core.KindValidation, "deploy binary modules", buildInfoPath, ErrEmptyReference)
		}
		refProject := r.expand(ref.ProjectPath, projectFolder)
		if err := r.Deploy(r.expand(ref.Path, projectFolder), refProject); err != nil {
			return err
		}
	}

	for _, m := range info.BinaryModules {
		if m.Name == "" {
			return core.NewPathError(core.KindValidation, "deploy binary modules", buildInfoPath, ErrUnnamedModule)
		}
		if _, ok := r.names[m.Name]; ok {
			continue
		}
		r.names[m.Name] = struct{}{}
		r.modules = append(r.modules, BinaryModule{
			Name:        m.Name,
			NativePath:  fileName(m.NativePath),
			ManagedPath: fileName(m.ManagedPath),
		})
	}

	return r.deployFiles(filepath.Dir(buildInfoPath))
}

// Modules returns the resolved modules in first-visit order.
func (r *Resolver) Modules() []BinaryModule {
	return r.modules
}

func (r *Resolver) skip(name string) bool {
	if name == ".DS_Store" || strings.HasSuffix(name, buildInfoSuffix) {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".exp", ".ilk", ".lib", ".a":
		return true
	case ".xml", ".pdb":
		return r.Release
	}
	return false
}

func (r *Resolver) deployFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return core.NewPathError(core.KindIO, "deploy binary modules", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || r.skip(e.Name()) {
			continue
		}
		src := filepath.Join(dir, e.Name())
		out := r.ManagedOutput
		if r.Filter != nil && r.Filter.IsNativeCodeFile(src) {
			out = r.NativeOutput
		}
		if err := copyFile(src, filepath.Join(out, e.Name()), r.PreserveMode); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, preserveMode bool) error {
	if err := platform.CopyFile(src, dst); err != nil {
		return err
	}
	if !preserveMode {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return core.NewPathError(core.KindIO, "copy", src, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return core.NewPathError(core.KindIO, "copy", dst, err)
	}
	return nil
}

// WriteManifest writes Game.Build.json into dir.
func (r *Resolver) WriteManifest(dir, name, platform, configuration string) error {
	m := Manifest{
		Name:          name,
		Platform:      platform,
		Configuration: configuration,
		BinaryModules: r.modules,
	}
	if m.BinaryModules == nil {
		m.BinaryModules = []BinaryModule{}
	}
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return core.NewError(core.KindIO, "write manifest", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.NewPathError(core.KindIO, "write manifest", dir, err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return core.NewPathError(core.KindIO, "write manifest", path, err)
	}
	return nil
}

// ReadManifest loads a Game.Build.json.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "read manifest", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.NewPathError(core.KindIO, "read manifest", path, err)
	}
	return &m, nil
}
