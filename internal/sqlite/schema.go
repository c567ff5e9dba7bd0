package sqlite

// Schema DDL for the entity graph. Deleting a parent cascades to every
// descendant through the foreign keys; uniqueness of names and of the
// (column, row) pair is enforced here rather than in Go.
const (
	createDatabases = `CREATE TABLE IF NOT EXISTS databases (
    database_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);`

	createTables = `CREATE TABLE IF NOT EXISTS tables (
    table_id TEXT PRIMARY KEY,
    database_id TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (database_id, name),
    FOREIGN KEY (database_id) REFERENCES databases(database_id) ON DELETE CASCADE
);`

	createColumns = `CREATE TABLE IF NOT EXISTS columns (
    column_id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    name TEXT NOT NULL,
    info TEXT NOT NULL,
    position INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (table_id, name),
    FOREIGN KEY (table_id) REFERENCES tables(table_id) ON DELETE CASCADE
);`

	createRows = `CREATE TABLE IF NOT EXISTS rows (
    row_id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (table_id) REFERENCES tables(table_id) ON DELETE CASCADE
);`

	createValues = `CREATE TABLE IF NOT EXISTS row_values (
    value_id TEXT PRIMARY KEY,
    row_id TEXT NOT NULL,
    column_id TEXT NOT NULL,
    info TEXT NOT NULL,
    search_key TEXT NOT NULL,
    UNIQUE (column_id, row_id),
    FOREIGN KEY (row_id) REFERENCES rows(row_id) ON DELETE CASCADE,
    FOREIGN KEY (column_id) REFERENCES columns(column_id) ON DELETE CASCADE
);`
)

// Index DDL for common queries.
const (
	idxTablesDatabase  = `CREATE INDEX IF NOT EXISTS idx_tables_database ON tables(database_id);`
	idxColumnsTable    = `CREATE INDEX IF NOT EXISTS idx_columns_table ON columns(table_id, position);`
	idxRowsTable       = `CREATE INDEX IF NOT EXISTS idx_rows_table ON rows(table_id);`
	idxValuesRow       = `CREATE INDEX IF NOT EXISTS idx_row_values_row ON row_values(row_id);`
	idxValuesSearchKey = `CREATE INDEX IF NOT EXISTS idx_row_values_search_key ON row_values(search_key);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createDatabases,
	createTables,
	createColumns,
	createRows,
	createValues,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxTablesDatabase,
	idxColumnsTable,
	idxRowsTable,
	idxValuesRow,
	idxValuesSearchKey,
}
