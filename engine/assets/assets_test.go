package assets

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

func nextBatch(t *testing.T, w *ContentWatcher) []string {
	t.Helper()
	select {
	case batch, ok := <-w.Changes():
		if !ok {
			t.Fatal("changes closed")
		}
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	return nil
}

func TestWatcherBatchesChanges(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "Output")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var fired []string
	bus := core.NewEventBus()
	bus.Register(core.EventContentChanged, t, func(code core.EventCode, sender, listener interface{}, data core.EventContext) bool {
		mu.Lock()
		fired = append(fired, data.Message)
		mu.Unlock()
		return false
	})

	w, err := NewContentWatcher(root, WithDelay(100*time.Millisecond), WithIgnore(out), WithEvents(bus))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	scene := filepath.Join(root, "Main.scene")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(scene, []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(out, "cooked.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	batch := nextBatch(t, w)
	if !slices.Equal(batch, []string{scene}) {
		t.Errorf("batch = %v, want only %s", batch, scene)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(fired, batch) {
		t.Errorf("events = %v", fired)
	}
}

func TestWatcherFollowsNewFolders(t *testing.T) {
	root := t.TempDir()
	w, err := NewContentWatcher(root, WithDelay(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	dir := filepath.Join(root, "Textures")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	nextBatch(t, w)

	logo := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(logo, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if batch := nextBatch(t, w); !slices.Contains(batch, logo) {
		t.Errorf("batch = %v, want %s", batch, logo)
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := NewContentWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != ErrClosed {
		t.Errorf("second close = %v", err)
	}
	select {
	case _, ok := <-w.Changes():
		if ok {
			t.Errorf("changes still open")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("changes not closed")
	}
}
