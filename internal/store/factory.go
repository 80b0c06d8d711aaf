package store

import (
	"fmt"
	"strings"
)

// SupportedDrivers lists all available store drivers.
var SupportedDrivers = []string{"bbolt", "json", "sqlite", "memory"}

// NewStore creates a new Store instance based on the specified driver.
// Supported drivers:
//   - "bbolt": BoltDB-backed persistent storage (recommended for production)
//   - "json": JSON file-backed storage (readable, suitable for small deployments)
//   - "sqlite": SQLite-backed storage in a single kv table
//   - "memory": nothing is persisted (tests, demos)
//
// The path parameter specifies where the store data will be persisted and is
// ignored by the memory driver.
func NewStore(driver, path string) (Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))

	if driver == "memory" {
		return NewMemoryStore(), nil
	}
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	switch driver {
	case "bbolt":
		return NewBoltStore(path)
	case "json":
		return NewJSONStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: %v)", driver, SupportedDrivers)
	}
}
