// Package cache keeps per-step build artifacts between cooks. Every step
// owns a directory guarded by a summary key; a key mismatch wipes the
// directory so stale outputs are never reused.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

const (
	// SummaryFile holds the summary key inside every step directory.
	SummaryFile = "summary.key"

	// StepTextures holds cooked texture blobs.
	StepTextures = "Textures"
)

// ErrMiss is returned when an entry is absent, unreadable or was written
// with a different record layout.
var ErrMiss = errors.New("cache miss")

var summaryDomainKey = [32]byte{
	'a', 'n', 'i', 'm', 'a', '.', 'c', 'o', 'o', 'k', 'e', 'r', '.',
	's', 'u', 'm', 'm', 'a', 'r', 'y',
}

// SummaryKey hashes the deterministic CBOR encoding of parts. The same
// inputs always give the same key across runs and machines.
func SummaryKey(parts ...any) (string, error) {
	encoded, err := encMode.Marshal(parts)
	if err != nil {
		return "", core.NewError(core.KindValidation, "cache key", err)
	}
	h, err := blake3.NewKeyed(summaryDomainKey[:])
	if err != nil {
		return "", err
	}
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Cache is a directory of step caches. It assumes a single writer.
type Cache struct {
	dir string
}

// Open creates the cache directory if needed.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewPathError(core.KindIO, "cache open", dir, err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string { return c.dir }

// StepDir is where a step keeps its cached outputs.
func (c *Cache) StepDir(step string) string {
	return filepath.Join(c.dir, step)
}

// Check compares key with the one stored for step. On a match it returns
// true. Otherwise the step directory is wiped and false is returned; the
// caller records key with Commit once the step output is complete.
func (c *Cache) Check(step, key string) (bool, error) {
	dir := c.StepDir(step)
	stored, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err == nil && string(stored) == key {
		return true, nil
	}
	if err == nil {
		core.LogDebug("cache %s: summary key changed, invalidating", step)
	}
	if err := c.Invalidate(step); err != nil {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, core.NewPathError(core.KindIO, "cache check", dir, err)
	}
	return false, nil
}

// Commit records key as the summary of step.
func (c *Cache) Commit(step, key string) error {
	dir := c.StepDir(step)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.NewPathError(core.KindIO, "cache commit", dir, err)
	}
	return writeFile(filepath.Join(dir, SummaryFile), []byte(key))
}

// Invalidate removes every entry of step.
func (c *Cache) Invalidate(step string) error {
	dir := c.StepDir(step)
	if err := os.RemoveAll(dir); err != nil {
		return core.NewPathError(core.KindIO, "cache invalidate", dir, err)
	}
	return nil
}

// InvalidateTextures marks every cooked texture stale.
func (c *Cache) InvalidateTextures() error {
	return c.Invalidate(StepTextures)
}

// Save stores data under step/name compressed with tag.
func (c *Cache) Save(step, name string, data []byte, tag Compression) error {
	blob, _, err := compressBlob(data, tag)
	if err != nil {
		return core.NewError(core.KindCompress, "cache save", err)
	}
	path := filepath.Join(c.StepDir(step), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewPathError(core.KindIO, "cache save", path, err)
	}
	return writeFile(path, blob)
}

// Load returns the data stored under step/name, or ErrMiss.
func (c *Cache) Load(step, name string) ([]byte, error) {
	path := filepath.Join(c.StepDir(step), name)
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "cache load", path, err)
	}
	data, err := decompressBlob(blob)
	if err != nil {
		core.LogWarn("cache %s/%s is corrupt: %s", step, name, err)
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	return data, nil
}

// record wraps a payload with the Go type it was written from.
type record struct {
	Type    string          `cbor:"1,keyasint"`
	Payload cbor.RawMessage `cbor:"2,keyasint"`
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.String()
}

// SaveRecord stores v as CBOR.
func (c *Cache) SaveRecord(step, name string, v any) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return core.NewError(core.KindValidation, "cache record", err)
	}
	data, err := encMode.Marshal(record{Type: typeName(v), Payload: payload})
	if err != nil {
		return core.NewError(core.KindValidation, "cache record", err)
	}
	return c.Save(step, name, data, CompressionAuto)
}

// LoadRecord decodes step/name into v. A record of another type or
// layout invalidates the whole step and reports ErrMiss.
func (c *Cache) LoadRecord(step, name string, v any) error {
	data, err := c.Load(step, name)
	if err != nil {
		return err
	}
	var rec record
	if err := decMode.Unmarshal(data, &rec); err == nil && rec.Type == typeName(v) {
		if err = decMode.Unmarshal(rec.Payload, v); err == nil {
			return nil
		}
	}
	core.LogWarn("cache %s/%s has an outdated layout, invalidating %s", step, name, step)
	if err := c.Invalidate(step); err != nil {
		return err
	}
	return ErrMiss
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return core.NewPathError(core.KindIO, "cache write", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return core.NewPathError(core.KindIO, "cache write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return core.NewPathError(core.KindIO, "cache write", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return core.NewPathError(core.KindIO, "cache write", path, err)
	}
	return nil
}
