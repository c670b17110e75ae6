// Package storage persists the application's key-value settings: string
// values and string-set values, the way a platform preferences file does.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
)

// Keys of the persisted values.
const (
	KeyPhotos  = "photos"      // serialized metadata record list
	KeyFolders = "folders_set" // user-declared folder names
)

// Storage defines the interface for persisting settings.
type Storage interface {
	// GetString returns the value for key, or def if absent.
	GetString(key, def string) (string, error)
	PutString(key, value string) error
	// GetStringSet returns the members for key in insertion order; empty if absent.
	GetStringSet(key string) ([]string, error)
	PutStringSet(key string, values []string) error
}

// prefsFile is the on-disk layout of JSONStorage.
type prefsFile struct {
	Strings map[string]string   `json:"strings"`
	Sets    map[string][]string `json:"sets"`
}

// JSONStorage implements Storage using a JSON file.
// Every call reads or rewrites the whole file.
type JSONStorage struct {
	path string
}

// NewJSONStorage creates a new JSONStorage with the given file path.
func NewJSONStorage(path string) *JSONStorage {
	return &JSONStorage{path: path}
}

// Path returns the storage file path.
func (s *JSONStorage) Path() string {
	return s.path
}

// GetString implements Storage.
func (s *JSONStorage) GetString(key, def string) (string, error) {
	f, err := s.load()
	if err != nil {
		return def, err
	}
	v, ok := f.Strings[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

// PutString implements Storage.
func (s *JSONStorage) PutString(key, value string) error {
	f, err := s.load()
	if err != nil {
		return err
	}
	f.Strings[key] = value
	return s.save(f)
}

// GetStringSet implements Storage.
func (s *JSONStorage) GetStringSet(key string) ([]string, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.Sets[key]), nil
}

// PutStringSet implements Storage. Duplicate members are dropped.
func (s *JSONStorage) PutStringSet(key string, values []string) error {
	f, err := s.load()
	if err != nil {
		return err
	}
	f.Sets[key] = dedupe(values)
	return s.save(f)
}

// load reads the file. Returns empty maps if the file doesn't exist.
func (s *JSONStorage) load() (*prefsFile, error) {
	f := &prefsFile{
		Strings: map[string]string{},
		Sets:    map[string][]string{},
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, f); err != nil {
		return nil, err
	}

	// Ensure maps are not nil
	if f.Strings == nil {
		f.Strings = map[string]string{}
	}
	if f.Sets == nil {
		f.Sets = map[string][]string{}
	}

	return f, nil
}

// save writes the file. Creates the directory if it doesn't exist.
func (s *JSONStorage) save(f *prefsFile) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// dedupe keeps the first occurrence of every value.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// OpenStorage opens the backend named by cfg.Backend.
// With no backend configured it prefers SQLite if the database file exists,
// otherwise falls back to JSON.
func OpenStorage(cfg *Config) (Storage, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return NewSQLiteStorage(cfg.PrefsDBPath())
	case BackendJSON:
		return NewJSONStorage(cfg.PrefsJSONPath()), nil
	}

	if _, err := os.Stat(cfg.PrefsDBPath()); err == nil {
		return NewSQLiteStorage(cfg.PrefsDBPath())
	}
	return NewJSONStorage(cfg.PrefsJSONPath()), nil
}
