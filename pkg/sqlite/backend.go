// Package sqlite provides the public API for the SQLite settings backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/crudgrid/internal/sqlite"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// Store is a SettingsStore with an explicit attach/detach lifecycle and
// JSONL backup helpers.
type Store interface {
	types.SettingsStore

	// Attach opens the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config types.Config) error

	// Detach flushes pending writes and releases resources. Idempotent.
	Detach() error

	// ExportJSONL writes every record to path and returns the count.
	ExportJSONL(path string) (int, error)

	// ImportJSONL upserts every valid record of path and returns the count.
	ImportJSONL(path string) (int, error)
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".crudgrid-db",
//	})
//	defer store.Detach()
func NewBackend() Store {
	return sqlite.NewBackend()
}
