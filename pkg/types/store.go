package types

import "context"

// Store is the backend-agnostic access point to the entity graph. Callers
// attach to a backend, run operations, and detach when done. Every write is
// atomic: on error nothing it would have written is visible.
type Store interface {
	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	CreateDatabase(ctx context.Context, name string) (*Database, error)
	GetDatabase(ctx context.Context, id string) (*Database, error)
	ListDatabases(ctx context.Context, page Page) ([]*Database, error)
	RenameDatabase(ctx context.Context, id, name string) (*Database, error)
	DeleteDatabase(ctx context.Context, id string) error

	CreateTable(ctx context.Context, databaseID, name string) (*Table, error)
	GetTable(ctx context.Context, id string) (*Table, error)
	ListTables(ctx context.Context, databaseID string, page Page) ([]*Table, error)
	RenameTable(ctx context.Context, id, name string) (*Table, error)
	DeleteTable(ctx context.Context, id string) error

	// CreateColumn adds a column to a table that has no rows yet. The
	// descriptor is normalized before it is stored. Returns
	// ErrColumnsLocked if the table already has rows.
	CreateColumn(ctx context.Context, tableID, name string, info Descriptor) (*Column, error)
	GetColumn(ctx context.Context, id string) (*Column, error)
	ListColumns(ctx context.Context, tableID string) ([]*Column, error)
	DeleteColumn(ctx context.Context, id string) error

	// CreateRow inserts a row with one value per column of the table.
	CreateRow(ctx context.Context, tableID string, values []ValueInput) (*Row, error)
	GetRow(ctx context.Context, id string) (*Row, error)
	// UpdateRow overwrites the values of an existing row in place.
	UpdateRow(ctx context.Context, id string, upd RowUpdate) (*Row, error)
	ListRows(ctx context.Context, tableID string, q RowQuery) ([]*Row, error)
	DeleteRow(ctx context.Context, id string) error
}
