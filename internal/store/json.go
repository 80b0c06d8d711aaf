package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONStore implements the Store interface using a single JSON file.
// All values are kept in memory and the whole file is rewritten on each Put.
// Values must themselves be valid JSON.
type JSONStore struct {
	path   string
	values map[string]json.RawMessage
	mu     sync.RWMutex
}

// NewJSONStore creates a new JSON file-backed store at the given path.
func NewJSONStore(path string) (Store, error) {
	s := &JSONStore{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load existing data: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	return s, nil
}

// load reads the JSON file and populates the in-memory map.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	values := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	s.values = values
	return nil
}

// save writes the in-memory map to the JSON file.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	// Write to temp file first, then rename (atomic on POSIX)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Get returns the value stored under key.
func (s *JSONStore) Get(key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Put replaces the value stored under key and rewrites the file.
func (s *JSONStore) Put(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid json", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(json.RawMessage, len(value))
	copy(raw, value)
	s.values[key] = raw
	return s.save()
}

// Close releases resources held by the store.
// For JSON store, this is a no-op since we don't hold open file handles.
func (s *JSONStore) Close() error {
	return nil
}
