package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikbrunner/gorg/internal/watcher"
)

func start(t *testing.T, opts watcher.Options, root string) (*watcher.Watcher, <-chan []string) {
	t.Helper()
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 50 * time.Millisecond
	}
	w, err := watcher.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Add(root))

	batches := make(chan []string, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(paths []string) { batches <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, batches
}

// waitFor collects batches until one contains path.
func waitFor(t *testing.T, batches <-chan []string, path string) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case paths := <-batches:
			if slices.Contains(paths, path) {
				return paths
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", path)
			return nil
		}
	}
}

func TestWatcher_ReportsNewFile(t *testing.T) {
	root := t.TempDir()
	_, batches := start(t, watcher.Options{}, root)

	path := filepath.Join(root, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	waitFor(t, batches, path)
}

func TestWatcher_BatchesBurst(t *testing.T) {
	root := t.TempDir()
	_, batches := start(t, watcher.Options{SettleDelay: 200 * time.Millisecond}, root)

	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("y"), 0644))

	paths := waitFor(t, batches, b)
	assert.Contains(t, paths, a)
	assert.True(t, slices.IsSorted(paths))
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, batches := start(t, watcher.Options{}, root)

	dir := filepath.Join(root, "Trip")
	require.NoError(t, os.Mkdir(dir, 0755))
	waitFor(t, batches, dir)
	assert.Contains(t, w.WatchList(), dir)

	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	waitFor(t, batches, path)
}

func TestWatcher_IgnoresHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".thumbs"), 0755))
	w, batches := start(t, watcher.Options{IgnoreHidden: true}, root)

	assert.Equal(t, []string{root}, w.WatchList())

	require.NoError(t, os.WriteFile(filepath.Join(root, ".nomedia"), nil, 0644))
	visible := filepath.Join(root, "a.jpg")
	require.NoError(t, os.WriteFile(visible, []byte("x"), 0644))

	paths := waitFor(t, batches, visible)
	assert.NotContains(t, paths, filepath.Join(root, ".nomedia"))
}

func TestWatcher_AddMissingRoot(t *testing.T) {
	w, err := watcher.New(watcher.Options{})
	require.NoError(t, err)
	defer w.Close()

	err = w.Add(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
