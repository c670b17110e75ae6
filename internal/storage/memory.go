package storage

import (
	"slices"
	"sync"
)

// MemoryStorage implements Storage in memory. Nothing survives the process.
type MemoryStorage struct {
	mu      sync.Mutex
	strings map[string]string
	sets    map[string][]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		strings: map[string]string{},
		sets:    map[string][]string{},
	}
}

// GetString implements Storage.
func (s *MemoryStorage) GetString(key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.strings[key]; ok {
		return v, nil
	}
	return def, nil
}

// PutString implements Storage.
func (s *MemoryStorage) PutString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strings[key] = value
	return nil
}

// GetStringSet implements Storage.
func (s *MemoryStorage) GetStringSet(key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sets[key]), nil
}

// PutStringSet implements Storage.
func (s *MemoryStorage) PutStringSet(key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[key] = dedupe(values)
	return nil
}
