package store

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nikbrunner/gorg/internal/storage"
)

// Folders is the registry of user-declared folder names. A registered name
// shows up in listings even while no photo lives under it.
type Folders struct {
	s   storage.Storage
	log *slog.Logger
}

// NewFolders creates a registry on top of s.
func NewFolders(s storage.Storage, opts Options) *Folders {
	return &Folders{s: s, log: opts.logger()}
}

// Add registers name.
func (f *Folders) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyFolderName
	}
	return f.update("add folder", func(names []string) []string {
		if slices.Contains(names, name) {
			return names
		}
		return append(names, name)
	})
}

// Remove unregisters name. Removing an unknown name is a no-op.
func (f *Folders) Remove(name string) error {
	return f.update("remove folder", func(names []string) []string {
		return slices.DeleteFunc(names, func(n string) bool { return n == name })
	})
}

// Rename replaces oldName with newName. If oldName is not registered,
// newName is simply added.
func (f *Folders) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyFolderName
	}
	return f.update("rename folder", func(names []string) []string {
		names = slices.DeleteFunc(names, func(n string) bool { return n == oldName })
		if slices.Contains(names, newName) {
			return names
		}
		return append(names, newName)
	})
}

// Names returns the registered names, sorted.
func (f *Folders) Names() ([]string, error) {
	mu.Lock()
	defer mu.Unlock()

	names, err := f.s.GetStringSet(storage.KeyFolders)
	if err != nil {
		return nil, fmt.Errorf("read folders: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Contains reports whether name is registered.
func (f *Folders) Contains(name string) bool {
	names, err := f.Names()
	if err != nil {
		f.log.Error("read folders", "error", err)
		return false
	}
	_, found := slices.BinarySearch(names, name)
	return found
}

func (f *Folders) update(op string, apply func([]string) []string) error {
	mu.Lock()
	defer mu.Unlock()

	names, err := f.s.GetStringSet(storage.KeyFolders)
	if err != nil {
		f.log.Error("read folders", "op", op, "error", err)
		return fmt.Errorf("%s: read folders: %w", op, err)
	}

	if err := f.s.PutStringSet(storage.KeyFolders, apply(names)); err != nil {
		f.log.Error("write folders", "op", op, "error", err)
		return fmt.Errorf("%s: write folders: %w", op, err)
	}
	return nil
}
