// Package assets watches a project for content changes so a cook can be
// repeated when sources are edited.
package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-cooker/engine/containers"
	"github.com/spaghettifunk/anima-cooker/engine/core"
)

const (
	DefaultDelay = 500 * time.Millisecond
	// maxPending bounds the paths kept between two batches.
	maxPending = 1024
)

var ErrClosed = errors.New("content watcher already closed")

type Option func(*ContentWatcher)

// WithDelay sets how long the tree must stay quiet before a batch is sent.
func WithDelay(d time.Duration) Option {
	return func(w *ContentWatcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithIgnore skips changes under the given folders, typically the cook
// output and cache.
func WithIgnore(paths ...string) Option {
	return func(w *ContentWatcher) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			w.ignore = append(w.ignore, filepath.Clean(p))
		}
	}
}

// WithEvents fires EventContentChanged on bus for every batched path.
func WithEvents(bus *core.EventBus) Option {
	return func(w *ContentWatcher) {
		w.events = bus
	}
}

// ContentWatcher reports changed files under a root folder in debounced
// batches.
type ContentWatcher struct {
	root   string
	delay  time.Duration
	ignore []string
	events *core.EventBus

	mutex   sync.Mutex
	pending *containers.RingQueue[string]
	queued  map[string]struct{}

	fsnotify *fsnotify.Watcher
	changes  chan []string
	done     chan struct{}
	closed   sync.Once
}

// NewContentWatcher starts watching root and every folder below it.
func NewContentWatcher(root string, opts ...Option) (*ContentWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "watch", root, err)
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, core.NewPathError(core.KindIO, "watch", root, err)
	}

	w := &ContentWatcher{
		root:     abs,
		delay:    DefaultDelay,
		pending:  containers.NewRingQueue[string](maxPending),
		queued:   make(map[string]struct{}),
		fsnotify: fsWatch,
		changes:  make(chan []string, 1),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	if err := w.watchRecursive(abs, false); err != nil {
		fsWatch.Close()
		return nil, core.NewPathError(core.KindIO, "watch", root, err)
	}
	go w.start()
	return w, nil
}

func (w *ContentWatcher) Root() string { return w.root }

// Changes delivers one batch of changed paths per quiet period. It is
// closed by Close.
func (w *ContentWatcher) Changes() <-chan []string {
	return w.changes
}

func (w *ContentWatcher) Close() error {
	err := ErrClosed
	w.closed.Do(func() {
		close(w.done)
		err = nil
	})
	return err
}

func (w *ContentWatcher) start() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer func() {
		timer.Stop()
		w.fsnotify.Close()
		close(w.changes)
	}()

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if w.handleEvent(e) {
				timer.Reset(w.delay)
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("content watcher: %s", err)

		case <-timer.C:
			batch := w.flush()
			if len(batch) == 0 {
				continue
			}
			for _, p := range batch {
				w.events.Fire(core.EventContentChanged, w, core.EventContext{Message: p})
			}
			select {
			case w.changes <- batch:
			case <-w.done:
				return
			}

		case <-w.done:
			return
		}
	}
}

// handleEvent queues the path of e and reports whether it counts as a
// change.
func (w *ContentWatcher) handleEvent(e fsnotify.Event) bool {
	if w.ignored(e.Name) || e.Op == fsnotify.Chmod {
		return false
	}
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			// Files may land in a new folder before it is watched.
			if err := w.watchRecursive(e.Name, true); err != nil {
				core.LogWarn("cannot watch %s: %s", e.Name, err)
			}
		}
	}
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		// Can't stat a deleted path, a failing Remove just means it was a file.
		_ = w.fsnotify.Remove(e.Name)
	}
	w.queue(e.Name)
	return true
}

func (w *ContentWatcher) queue(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if _, ok := w.queued[path]; ok {
		return
	}
	if w.pending.IsFull() {
		oldest, _ := w.pending.Peek()
		delete(w.queued, oldest)
	}
	w.pending.Push(path)
	w.queued[path] = struct{}{}
}

func (w *ContentWatcher) flush() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	batch := w.pending.Drain()
	clear(w.queued)
	return batch
}

func (w *ContentWatcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// watchRecursive adds all directories under the given one to the watch
// list. Files found in folders that were not watched yet are queued.
func (w *ContentWatcher) watchRecursive(path string, queueFiles bool) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if w.ignored(walkPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.fsnotify.Add(walkPath)
		}
		if queueFiles {
			w.queue(walkPath)
		}
		return nil
	})
}
