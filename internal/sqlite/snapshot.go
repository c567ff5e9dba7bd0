// This file implements JSONL snapshot export and import.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// SnapshotStats counts the records written or loaded by a snapshot.
type SnapshotStats struct {
	Databases int `json:"databases"`
	Tables    int `json:"tables"`
	Columns   int `json:"columns"`
	Rows      int `json:"rows"`
	Values    int `json:"values"`
}

type snapshot struct {
	databases []databaseJSON
	tables    []tableJSON
	columns   []columnJSON
	rows      []rowJSON
	values    []valueJSON
}

func (s *snapshot) stats() SnapshotStats {
	return SnapshotStats{
		Databases: len(s.databases),
		Tables:    len(s.tables),
		Columns:   len(s.columns),
		Rows:      len(s.rows),
		Values:    len(s.values),
	}
}

// Export writes every entity to one JSONL file per kind in dir. Each file is
// replaced atomically.
func (b *Backend) Export(ctx context.Context, dir string) (SnapshotStats, error) {
	var snap snapshot
	err := b.read(ctx, func(q querier) error {
		var err error
		snap, err = readSnapshot(ctx, q)
		return err
	})
	if err != nil {
		return SnapshotStats{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SnapshotStats{}, fmt.Errorf("creating snapshot dir: %w", err)
	}
	files := []struct {
		name    string
		records func() ([]json.RawMessage, error)
	}{
		{databasesFile, func() ([]json.RawMessage, error) { return marshalRecords(snap.databases) }},
		{tablesFile, func() ([]json.RawMessage, error) { return marshalRecords(snap.tables) }},
		{columnsFile, func() ([]json.RawMessage, error) { return marshalRecords(snap.columns) }},
		{rowsFile, func() ([]json.RawMessage, error) { return marshalRecords(snap.rows) }},
		{valuesFile, func() ([]json.RawMessage, error) { return marshalRecords(snap.values) }},
	}
	for _, f := range files {
		records, err := f.records()
		if err != nil {
			return SnapshotStats{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if err := writeJSONL(filepath.Join(dir, f.name), records); err != nil {
			return SnapshotStats{}, err
		}
	}

	stats := snap.stats()
	b.logger.Infow("exported snapshot", "dir", dir, "databases", stats.Databases,
		"tables", stats.Tables, "rows", stats.Rows)
	return stats, nil
}

func readSnapshot(ctx context.Context, q querier) (snapshot, error) {
	var snap snapshot
	err := queryEach(ctx, q, "SELECT database_id, name, created_at FROM databases ORDER BY rowid",
		func(s scanner) error {
			var r databaseJSON
			if err := s.Scan(&r.DatabaseID, &r.Name, &r.CreatedAt); err != nil {
				return err
			}
			snap.databases = append(snap.databases, r)
			return nil
		})
	if err != nil {
		return snap, err
	}
	err = queryEach(ctx, q, "SELECT table_id, database_id, name, created_at FROM tables ORDER BY rowid",
		func(s scanner) error {
			var r tableJSON
			if err := s.Scan(&r.TableID, &r.DatabaseID, &r.Name, &r.CreatedAt); err != nil {
				return err
			}
			snap.tables = append(snap.tables, r)
			return nil
		})
	if err != nil {
		return snap, err
	}
	err = queryEach(ctx, q, "SELECT column_id, table_id, name, info, position, created_at FROM columns ORDER BY rowid",
		func(s scanner) error {
			var r columnJSON
			var info string
			if err := s.Scan(&r.ColumnID, &r.TableID, &r.Name, &info, &r.Position, &r.CreatedAt); err != nil {
				return err
			}
			r.Info = rawDoc(info)
			snap.columns = append(snap.columns, r)
			return nil
		})
	if err != nil {
		return snap, err
	}
	err = queryEach(ctx, q, "SELECT row_id, table_id, created_at, updated_at FROM rows ORDER BY rowid",
		func(s scanner) error {
			var r rowJSON
			if err := s.Scan(&r.RowID, &r.TableID, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return err
			}
			snap.rows = append(snap.rows, r)
			return nil
		})
	if err != nil {
		return snap, err
	}
	err = queryEach(ctx, q, "SELECT value_id, row_id, column_id, info FROM row_values ORDER BY rowid",
		func(s scanner) error {
			var r valueJSON
			var info string
			if err := s.Scan(&r.ValueID, &r.RowID, &r.ColumnID, &info); err != nil {
				return err
			}
			r.Info = rawDoc(info)
			snap.values = append(snap.values, r)
			return nil
		})
	return snap, err
}

// queryEach runs query and calls fn for every result row.
func queryEach(ctx context.Context, q querier, query string, fn func(s scanner) error) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("scanning snapshot: %w", err)
		}
	}
	return rows.Err()
}

// Import loads a snapshot written by Export into an empty store. The whole
// load runs in one transaction: every record is checked with the same rules
// as the API, and any failure leaves the store empty.
func (b *Backend) Import(ctx context.Context, dir string) (SnapshotStats, error) {
	snap, err := loadSnapshot(dir)
	if err != nil {
		return SnapshotStats{}, err
	}

	err = b.write(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM databases").Scan(&n); err != nil {
			return fmt.Errorf("counting databases: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: import requires an empty store", types.ErrInvalidData)
		}
		return insertSnapshot(ctx, tx, &snap)
	})
	if err != nil {
		return SnapshotStats{}, err
	}

	stats := snap.stats()
	b.logger.Infow("imported snapshot", "dir", dir, "databases", stats.Databases,
		"tables", stats.Tables, "rows", stats.Rows)
	return stats, nil
}

func loadSnapshot(dir string) (snapshot, error) {
	var snap snapshot
	raw := make(map[string][]json.RawMessage, len(snapshotFiles))
	for _, name := range snapshotFiles {
		records, err := readJSONL(filepath.Join(dir, name))
		if err != nil {
			return snap, err
		}
		raw[name] = records
	}

	var err error
	if snap.databases, err = unmarshalRecords[databaseJSON](databasesFile, raw[databasesFile]); err != nil {
		return snap, err
	}
	if snap.tables, err = unmarshalRecords[tableJSON](tablesFile, raw[tablesFile]); err != nil {
		return snap, err
	}
	if snap.columns, err = unmarshalRecords[columnJSON](columnsFile, raw[columnsFile]); err != nil {
		return snap, err
	}
	if snap.rows, err = unmarshalRecords[rowJSON](rowsFile, raw[rowsFile]); err != nil {
		return snap, err
	}
	snap.values, err = unmarshalRecords[valueJSON](valuesFile, raw[valuesFile])
	return snap, err
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, snap *snapshot) error {
	for i, r := range snap.databases {
		if err := checkTimes(r.CreatedAt); err != nil {
			return recordErr(databasesFile, i, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO databases (database_id, name, created_at) VALUES (?, ?, ?)",
			r.DatabaseID, r.Name, r.CreatedAt)
		if err != nil {
			return recordErr(databasesFile, i, classify(err))
		}
	}

	for i, r := range snap.tables {
		if err := checkTimes(r.CreatedAt); err != nil {
			return recordErr(tablesFile, i, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO tables (table_id, database_id, name, created_at) VALUES (?, ?, ?, ?)",
			r.TableID, r.DatabaseID, r.Name, r.CreatedAt)
		if err != nil {
			return recordErr(tablesFile, i, classify(err))
		}
	}

	columns := make(map[string]*types.Column, len(snap.columns))
	for i, r := range snap.columns {
		if err := checkTimes(r.CreatedAt); err != nil {
			return recordErr(columnsFile, i, err)
		}
		info, err := types.ParseDescriptor(r.Info)
		if err != nil {
			return recordErr(columnsFile, i, err)
		}
		if info, err = info.Normalize(); err != nil {
			return recordErr(columnsFile, i, types.WithField("info", err))
		}
		encoded, err := json.Marshal(info)
		if err != nil {
			return recordErr(columnsFile, i, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO columns (column_id, table_id, name, info, position, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			r.ColumnID, r.TableID, r.Name, string(encoded), r.Position, r.CreatedAt)
		if err != nil {
			return recordErr(columnsFile, i, classify(err))
		}
		columns[r.ColumnID] = &types.Column{ColumnID: r.ColumnID, TableID: r.TableID, Info: info}
	}

	rowTables := make(map[string]string, len(snap.rows))
	for i, r := range snap.rows {
		if err := checkTimes(r.CreatedAt, r.UpdatedAt); err != nil {
			return recordErr(rowsFile, i, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO rows (row_id, table_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
			r.RowID, r.TableID, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return recordErr(rowsFile, i, classify(err))
		}
		rowTables[r.RowID] = r.TableID
	}

	for i, r := range snap.values {
		col, ok := columns[r.ColumnID]
		if !ok {
			return recordErr(valuesFile, i, types.WithField("column_id", types.ErrNotFound))
		}
		if table, ok := rowTables[r.RowID]; !ok {
			return recordErr(valuesFile, i, types.WithField("row_id", types.ErrNotFound))
		} else if table != col.TableID {
			return recordErr(valuesFile, i, types.WithField("column_id",
				fmt.Errorf("%w: column %s belongs to another table", types.ErrNotFound, r.ColumnID)))
		}

		var info types.ValueInfo
		if err := json.Unmarshal(r.Info, &info); err != nil {
			return recordErr(valuesFile, i, types.WithField("info", err))
		}
		if info.Value == nil {
			return recordErr(valuesFile, i, types.WithField("info.value", types.ErrInvalidData))
		}
		if err := col.ValidateValue(info.Value); err != nil {
			return recordErr(valuesFile, i, types.WithField("info.value", err))
		}
		doc, key, err := encodeValue(info)
		if err != nil {
			return recordErr(valuesFile, i, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO row_values (value_id, row_id, column_id, info, search_key) VALUES (?, ?, ?, ?, ?)",
			r.ValueID, r.RowID, r.ColumnID, doc, key)
		if err != nil {
			return recordErr(valuesFile, i, classify(err))
		}
	}

	return checkRowsComplete(ctx, tx)
}

// checkRowsComplete fails if any row lacks a value for a column of its
// table or has no values at all.
func checkRowsComplete(ctx context.Context, tx *sql.Tx) error {
	var rowID, columnID string
	err := tx.QueryRowContext(ctx, `SELECT r.row_id, c.column_id
FROM rows r JOIN columns c ON c.table_id = r.table_id
LEFT JOIN row_values v ON v.row_id = r.row_id AND v.column_id = c.column_id
WHERE v.value_id IS NULL LIMIT 1`).Scan(&rowID, &columnID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking row values: %w", err)
	}
	if err == nil {
		return fmt.Errorf("%w: row %s has no value for column %s", types.ErrColumnCountMismatch, rowID, columnID)
	}

	err = tx.QueryRowContext(ctx, `SELECT r.row_id FROM rows r
WHERE NOT EXISTS (SELECT 1 FROM row_values v WHERE v.row_id = r.row_id) LIMIT 1`).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking empty rows: %w", err)
	}
	return fmt.Errorf("%w: row %s has no values", types.ErrInvalidData, rowID)
}

func checkTimes(values ...string) error {
	for _, v := range values {
		if _, err := parseTime(v); err != nil {
			return fmt.Errorf("%w: bad timestamp %q", types.ErrInvalidData, v)
		}
	}
	return nil
}

func recordErr(file string, index int, err error) error {
	return fmt.Errorf("%s record %d: %w", file, index+1, err)
}
