// Package sqlite provides the public API for the SQLite tablestore backend.
// It exposes constructors for the backend while keeping the implementation
// internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablestore/internal/sqlite"
	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// NewBackend creates a new, unattached SQLite backend.
// A nil logger disables logging.
//
// Example:
//
//	store := sqlite.NewBackend(nil)
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/tablestore",
//	})
//	defer store.Detach()
func NewBackend(logger *zap.SugaredLogger) types.Store {
	return sqlite.NewBackend(logger)
}

// Open creates a backend and attaches it with config.
func Open(config types.Config, logger *zap.SugaredLogger) (types.Store, error) {
	store := sqlite.NewBackend(logger)
	if err := store.Attach(config); err != nil {
		return nil, err
	}
	return store, nil
}
