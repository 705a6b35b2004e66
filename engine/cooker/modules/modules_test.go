package modules

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

type extFilter struct{}

func (extFilter) IsNativeCodeFile(path string) bool {
	name := filepath.Base(path)
	if strings.Contains(name, "CSharp") {
		return false
	}
	ext := filepath.Ext(name)
	return ext == ".dll" || ext == ".so"
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCyclicReferences(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"A/Binaries/A.Build.json": `{
			// game project
			"References": [
				{"ProjectPath": "$(ProjectPath)/../B", "Path": "$(ProjectPath)/../B/Binaries/B.Build.json"},
			],
			"BinaryModules": [
				{"Name": "Game", "NativePath": "C:\\Build\\Game.dll", "ManagedPath": "Game.CSharp.dll"},
				{"Name": "M", "NativePath": "M.so"},
			],
		}`,
		"A/Binaries/Game.dll":        "native",
		"A/Binaries/Game.CSharp.dll": "managed",
		"A/Binaries/Game.pdb":        "symbols",
		"A/Binaries/Game.lib":        "import lib",
		"B/Binaries/B.Build.json": `{
			"References": [{"ProjectPath": "../A", "Path": "../A/Binaries/A.Build.json"}],
			/* plugin */
			"BinaryModules": [{"Name": "M", "NativePath": "$(ProjectPath)/Binaries/M.so", "ManagedPath": "M.CSharp.dll"}]
		}`,
		"B/Binaries/M.so":          "native",
		"B/Binaries/M.CSharp.dll":  "managed",
		"B/Binaries/M.xml":         "docs",
		"B/Binaries/.DS_Store":     "",
		"B/Binaries/sub/ignore.so": "nested",
	})

	out := filepath.Join(root, "Output")
	r := &Resolver{
		EnginePath:    filepath.Join(root, "Engine"),
		NativeOutput:  filepath.Join(out, "Native"),
		ManagedOutput: filepath.Join(out, "Managed"),
		Filter:        extFilter{},
		Release:       true,
	}
	if err := r.Deploy(filepath.Join(root, "A/Binaries/A.Build.json"), filepath.Join(root, "A")); err != nil {
		t.Fatal(err)
	}

	want := []BinaryModule{
		{Name: "M", NativePath: "M.so", ManagedPath: "M.CSharp.dll"},
		{Name: "Game", NativePath: "Game.dll", ManagedPath: "Game.CSharp.dll"},
	}
	if !reflect.DeepEqual(r.Modules(), want) {
		t.Fatalf("got %+v, want %+v", r.Modules(), want)
	}

	for _, path := range []string{"Native/Game.dll", "Native/M.so", "Managed/Game.CSharp.dll", "Managed/M.CSharp.dll"} {
		if _, err := os.Stat(filepath.Join(out, path)); err != nil {
			t.Errorf("%s not deployed: %v", path, err)
		}
	}
	for _, path := range []string{"Managed/Game.pdb", "Managed/Game.lib", "Managed/M.xml", "Managed/A.Build.json", "Managed/.DS_Store", "Native/ignore.so"} {
		if _, err := os.Stat(filepath.Join(out, path)); err == nil {
			t.Errorf("%s should have been skipped", path)
		}
	}

	if err := r.WriteManifest(out, "Game", "Linux", "Release"); err != nil {
		t.Fatal(err)
	}
	m, err := ReadManifest(filepath.Join(out, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Game" || m.Platform != "Linux" || m.Configuration != "Release" || !reflect.DeepEqual(m.BinaryModules, want) {
		t.Errorf("unexpected manifest %+v", m)
	}
}

func TestDeployErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    core.ErrorKind
	}{
		{"unnamed module", `{"BinaryModules": [{"NativePath": "x.so"}]}`, core.KindValidation},
		{"empty reference", `{"References": [{"ProjectPath": "", "Path": "B.Build.json"}]}`, core.KindValidation},
		{"broken json", `{"References": [`, core.KindIO},
		{"missing reference", `{"References": [{"ProjectPath": "B", "Path": "B/Missing.Build.json"}]}`, core.KindIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, map[string]string{"Game.Build.json": tt.content})
			r := &Resolver{NativeOutput: root, ManagedOutput: root}
			err := r.Deploy(filepath.Join(root, "Game.Build.json"), root)
			if !core.IsKind(err, tt.kind) {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}
