package sqlite

// Snapshot record structures. Each entity kind is written to its own JSONL
// file, one record per line, with timestamps in RFC 3339 form.

const (
	databasesFile = "databases.jsonl"
	tablesFile    = "tables.jsonl"
	columnsFile   = "columns.jsonl"
	rowsFile      = "rows.jsonl"
	valuesFile    = "values.jsonl"
)

// snapshotFiles lists the snapshot files in load order: every record's
// parent is loaded before it.
var snapshotFiles = []string{databasesFile, tablesFile, columnsFile, rowsFile, valuesFile}

type databaseJSON struct {
	DatabaseID string `json:"database_id"`
	Name       string `json:"name"`
	CreatedAt  string `json:"created_at"`
}

type tableJSON struct {
	TableID    string `json:"table_id"`
	DatabaseID string `json:"database_id"`
	Name       string `json:"name"`
	CreatedAt  string `json:"created_at"`
}

// columnJSON carries the normalized descriptor as a raw document.
type columnJSON struct {
	ColumnID  string `json:"column_id"`
	TableID   string `json:"table_id"`
	Name      string `json:"name"`
	Info      rawDoc `json:"info"`
	Position  int    `json:"position"`
	CreatedAt string `json:"created_at"`
}

type rowJSON struct {
	RowID     string `json:"row_id"`
	TableID   string `json:"table_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// valueJSON carries the stored {"value": ...} document verbatim.
type valueJSON struct {
	ValueID  string `json:"value_id"`
	RowID    string `json:"row_id"`
	ColumnID string `json:"column_id"`
	Info     rawDoc `json:"info"`
}
