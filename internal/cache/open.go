package cache

import (
	"fmt"
	"strings"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// OpenBackend builds the KV named by backend. dir is used by the file
// backend and dbPath by the sqlite backend.
func OpenBackend(backend, dir, dbPath string) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileKV(dir)
	case BackendSQLite:
		return OpenSQLiteKV(dbPath)
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", backend)
	}
}
