// Package watcher reports filesystem changes under the library roots,
// batched once the tree has been quiet for a settle delay.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures the watcher.
type Options struct {
	SettleDelay  time.Duration // default 300ms
	IgnoreHidden bool
	Logger       *slog.Logger
}

func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 300 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// ignored reports whether path is hidden. Directories below a hidden one
// are never watched, so the base name is enough.
func (o *Options) ignored(path string) bool {
	return o.IgnoreHidden && strings.HasPrefix(filepath.Base(path), ".")
}

// Watcher watches directory trees recursively.
type Watcher struct {
	opts Options
	log  *slog.Logger
	fs   *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a Watcher. Call Close when done.
func New(opts Options) (*Watcher, error) {
	opts.setDefaults()
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		opts:    opts,
		log:     opts.Logger,
		fs:      fw,
		pending: map[string]struct{}{},
	}, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", root)
	}
	w.addTree(root)
	return nil
}

func (w *Watcher) addTree(root string) {
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.opts.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.log.Error("failed to add watch", "path", p, "error", err)
			return nil
		}
		w.log.Debug("added watch", "path", p)
		return nil
	})
}

// WatchList returns the directories currently watched, sorted.
func (w *Watcher) WatchList() []string {
	list := w.fs.WatchList()
	slices.Sort(list)
	return list
}

// Run delivers batches of changed paths to onChange until ctx is done.
// A batch is delivered once no event arrived for the settle delay.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	timer := time.NewTimer(w.opts.SettleDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				timer.Reset(w.opts.SettleDelay)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timer.C:
			if paths := w.flush(); len(paths) > 0 {
				onChange(paths)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod || w.opts.ignored(event.Name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
		}
	}

	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()
	return true
}

func (w *Watcher) flush() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	slices.Sort(paths)
	return paths
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
