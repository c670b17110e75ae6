// Package mediatest provides an in-memory media.Index for tests.
package mediatest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nikbrunner/gorg/internal/media"
)

// ErrInjected is returned by a failing hook that supplies no error of its own.
var ErrInjected = errors.New("injected failure")

// Index is an in-memory media.Index. The Fail* hooks, when set, are
// consulted before the corresponding call and abort it on a non-nil error.
type Index struct {
	mu     sync.Mutex
	rows   map[string]media.Row
	data   map[string][]byte
	nextID int

	FailQuery  func(sel media.Selection) error
	FailInsert func(row media.NewRow) error
	FailRead   func(id string) error
	FailWrite  func(id string) error
	FailDelete func(id string) error
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		rows: map[string]media.Row{},
		data: map[string][]byte{},
	}
}

// Add inserts a row with content and returns it.
func (x *Index) Add(relativePath, displayName string, content []byte) media.Row {
	x.mu.Lock()
	defer x.mu.Unlock()
	r := x.insertLocked(media.NewRow{DisplayName: displayName, RelativePath: relativePath})
	x.data[r.ID] = slices.Clone(content)
	r.Size = int64(len(content))
	x.rows[r.ID] = r
	return r
}

// Content returns the bytes stored for id.
func (x *Index) Content(id string) ([]byte, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	b, ok := x.data[id]
	return slices.Clone(b), ok
}

// Len returns the number of rows.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.rows)
}

// Paths returns the path of every row, sorted.
func (x *Index) Paths() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	paths := make([]string, 0, len(x.rows))
	for _, r := range x.rows {
		paths = append(paths, r.Path())
	}
	slices.Sort(paths)
	return paths
}

// Query implements media.Index.
func (x *Index) Query(sel media.Selection) ([]media.Row, error) {
	if err := call(x.FailQuery, sel); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	result := []media.Row{}
	for _, r := range x.rows {
		switch {
		case sel.RelativePath != "":
			if r.RelativePath != sel.RelativePath {
				continue
			}
		case sel.RelativePathPrefix != "":
			if !strings.HasPrefix(r.RelativePath, sel.RelativePathPrefix) {
				continue
			}
		}
		result = append(result, r)
	}
	slices.SortFunc(result, func(a, b media.Row) int {
		return strings.Compare(a.Path(), b.Path())
	})
	return result, nil
}

// Get implements media.Index.
func (x *Index) Get(id string) (media.Row, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	r, ok := x.rows[id]
	if !ok {
		return media.Row{}, fmt.Errorf("%s: %w", id, media.ErrNotFound)
	}
	return r, nil
}

// Insert implements media.Index.
func (x *Index) Insert(nr media.NewRow) (media.Row, error) {
	if err := call(x.FailInsert, nr); err != nil {
		return media.Row{}, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.insertLocked(nr), nil
}

func (x *Index) insertLocked(nr media.NewRow) media.Row {
	x.nextID++
	r := media.Row{
		ID:           strconv.Itoa(x.nextID),
		DisplayName:  nr.DisplayName,
		MimeType:     nr.MimeType,
		RelativePath: media.NormalizeDir(nr.RelativePath),
		DateAdded:    time.UnixMilli(int64(x.nextID) * 1000),
	}
	if r.MimeType == "" {
		r.MimeType = media.DefaultMimeType
	}
	x.rows[r.ID] = r
	x.data[r.ID] = nil
	return r
}

// OpenReader implements media.Index.
func (x *Index) OpenReader(id string) (io.ReadCloser, error) {
	if err := call(x.FailRead, id); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.rows[id]; !ok {
		return nil, fmt.Errorf("%s: %w", id, media.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(slices.Clone(x.data[id]))), nil
}

// OpenWriter implements media.Index.
func (x *Index) OpenWriter(id string) (io.WriteCloser, error) {
	if err := call(x.FailWrite, id); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.rows[id]; !ok {
		return nil, fmt.Errorf("%s: %w", id, media.ErrNotFound)
	}
	x.data[id] = nil
	return &writer{x: x, id: id}, nil
}

type writer struct {
	x   *Index
	id  string
	buf bytes.Buffer
}

func (w *writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	w.x.mu.Lock()
	defer w.x.mu.Unlock()
	r, ok := w.x.rows[w.id]
	if !ok {
		return fmt.Errorf("%s: %w", w.id, media.ErrNotFound)
	}
	w.x.data[w.id] = w.buf.Bytes()
	r.Size = int64(w.buf.Len())
	w.x.rows[w.id] = r
	return nil
}

// Delete implements media.Index.
func (x *Index) Delete(id string) error {
	if err := call(x.FailDelete, id); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.rows[id]; !ok {
		return fmt.Errorf("%s: %w", id, media.ErrNotFound)
	}
	delete(x.rows, id)
	delete(x.data, id)
	return nil
}

func call[T any](hook func(T) error, arg T) error {
	if hook == nil {
		return nil
	}
	return hook(arg)
}
