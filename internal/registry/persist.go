package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caevv/suiteboard/internal/store"
)

// Keys under which each collection is persisted.
const (
	KeySuites     = "testSuites"
	KeyExecutions = "executions"
	KeySchedules  = "schedules"
)

// schemaVersion is written into every envelope. Version 0 is the legacy
// bare-array layout.
const schemaVersion = 1

type envelope struct {
	Version int             `json:"version"`
	Items   json.RawMessage `json:"items"`
}

// StorageReadError reports a persisted collection that could not be loaded.
// The collection starts empty instead.
type StorageReadError struct {
	Key string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Key, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// load decodes the collection stored under key into out. A missing key
// leaves out untouched and returns nil.
func load[T any](st store.Store, key string, out *[]T) error {
	data, err := st.Get(key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return &StorageReadError{Key: key, Err: err}
	}

	items, err := decodeEnvelope(data)
	if err != nil {
		return &StorageReadError{Key: key, Err: err}
	}

	var decoded []T
	if err := json.Unmarshal(items, &decoded); err != nil {
		return &StorageReadError{Key: key, Err: fmt.Errorf("decode items: %w", err)}
	}
	*out = decoded
	return nil
}

func decodeEnvelope(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty value")
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > schemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", env.Version)
	}
	if len(env.Items) == 0 || bytes.Equal(env.Items, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	return env.Items, nil
}

func save[T any](st store.Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	data, err := json.Marshal(envelope{Version: schemaVersion, Items: raw})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", key, err)
	}
	if err := st.Put(key, data); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
