// This file implements the row accessors for the SQLite backend. Every row
// write loads the table's columns and runs the row checks from pkg/types in
// the same transaction as the insert or update, so a row is stored whole or
// not at all.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

const selectRow = "SELECT row_id, table_id, created_at, updated_at FROM rows"

// CreateRow inserts a row with one value per column of the table.
func (b *Backend) CreateRow(ctx context.Context, tableID string, values []types.ValueInput) (*types.Row, error) {
	if tableID == "" {
		return nil, types.WithField("table", types.ErrInvalidID)
	}

	ts := now()
	r := &types.Row{
		RowID:     newUUID(),
		TableID:   tableID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, tableID); err != nil {
			return types.WithField("table", err)
		}
		columns, err := fetchColumns(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := types.CheckRowCreate(columns, values); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO rows (row_id, table_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
			r.RowID, r.TableID, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting row: %w", err)
		}
		for i, item := range values {
			if err := insertValue(ctx, tx, r.RowID, item); err != nil {
				return types.WithField(fmt.Sprintf("values[%d]", i), err)
			}
		}

		r.Values, err = fetchValues(ctx, tx, r.RowID)
		return err
	})
	if err != nil {
		b.logger.Debugw("row rejected", "table_id", tableID, "error", err)
		return nil, err
	}
	b.logger.Infow("created row", "row_id", r.RowID, "table_id", tableID)
	return r, nil
}

// GetRow retrieves a row with its values in column order.
func (b *Backend) GetRow(ctx context.Context, id string) (*types.Row, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var r *types.Row
	err := b.read(ctx, func(q querier) error {
		var err error
		r, err = getRow(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRow replaces the values of an existing row. The update must supply
// a value for every column the row has; see types.CheckRowUpdate.
func (b *Backend) UpdateRow(ctx context.Context, id string, upd types.RowUpdate) (*types.Row, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}

	var r *types.Row
	err := b.write(ctx, func(tx *sql.Tx) error {
		current, err := getRow(ctx, tx, id)
		if err != nil {
			return err
		}
		columns, err := fetchColumns(ctx, tx, current.TableID)
		if err != nil {
			return err
		}
		if err := types.CheckRowUpdate(current, columns, upd); err != nil {
			return err
		}

		for i, item := range upd.Values {
			if err := updateValue(ctx, tx, id, item); err != nil {
				return types.WithField(fmt.Sprintf("values[%d]", i), err)
			}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE rows SET updated_at = ? WHERE row_id = ?",
			formatTime(now()), id); err != nil {
			return fmt.Errorf("touching row: %w", err)
		}

		r, err = getRow(ctx, tx, id)
		return err
	})
	if err != nil {
		b.logger.Debugw("row update rejected", "row_id", id, "error", err)
		return nil, err
	}
	b.logger.Infow("updated row", "row_id", id)
	return r, nil
}

// DeleteRow removes a row and its values.
func (b *Backend) DeleteRow(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM rows WHERE row_id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting row: %w", err)
		}
		return requireAffected(res)
	})
	if err == nil {
		b.logger.Infow("deleted row", "row_id", id)
	}
	return err
}

// ListRows returns the rows of a table in creation order. A non-empty
// query.Search keeps only rows holding a value exactly equal to it: string
// values compare by their text, others by their canonical JSON.
func (b *Backend) ListRows(ctx context.Context, tableID string, query types.RowQuery) ([]*types.Row, error) {
	if tableID == "" {
		return nil, types.ErrInvalidID
	}
	var result []*types.Row
	err := b.read(ctx, func(q querier) error {
		if _, err := getTable(ctx, q, tableID); err != nil {
			return err
		}
		var err error
		result, err = fetchRows(ctx, q, tableID, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func getRow(ctx context.Context, q querier, id string) (*types.Row, error) {
	r, err := scanRow(q.QueryRowContext(ctx, selectRow+" WHERE row_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: row %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if r.Values, err = fetchValues(ctx, q, id); err != nil {
		return nil, err
	}
	return r, nil
}

func fetchRows(ctx context.Context, q querier, tableID string, query types.RowQuery) ([]*types.Row, error) {
	stmt := selectRow + " WHERE table_id = ?"
	args := []any{tableID}
	if query.Search != "" {
		stmt += " AND EXISTS (SELECT 1 FROM row_values v WHERE v.row_id = rows.row_id AND v.search_key = ?)"
		args = append(args, query.Search)
	}
	stmt += " ORDER BY rowid" + pageClause(query.Page)

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching rows: %w", err)
	}
	defer rows.Close()

	result := []*types.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	for _, r := range result {
		if r.Values, err = fetchValues(ctx, q, r.RowID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func scanRow(s scanner) (*types.Row, error) {
	var r types.Row
	var createdAt, updatedAt string
	if err := s.Scan(&r.RowID, &r.TableID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing row created_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing row updated_at: %w", err)
	}
	return &r, nil
}

// fetchValues loads a row's values ordered by column position.
func fetchValues(ctx context.Context, q querier, rowID string) ([]*types.Value, error) {
	rows, err := q.QueryContext(ctx, `SELECT v.value_id, v.column_id, v.row_id, v.info
FROM row_values v JOIN columns c ON c.column_id = v.column_id
WHERE v.row_id = ? ORDER BY c.position`, rowID)
	if err != nil {
		return nil, fmt.Errorf("fetching values: %w", err)
	}
	defer rows.Close()

	result := []*types.Value{}
	for rows.Next() {
		var v types.Value
		var info string
		if err := rows.Scan(&v.ValueID, &v.ColumnID, &v.RowID, &info); err != nil {
			return nil, fmt.Errorf("scanning value: %w", err)
		}
		if err := json.Unmarshal([]byte(info), &v.Info); err != nil {
			return nil, fmt.Errorf("parsing value %s info: %w", v.ValueID, err)
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating values: %w", err)
	}
	return result, nil
}

// encodeValue returns the stored info document and search key for a value.
func encodeValue(info types.ValueInfo) (string, string, error) {
	doc, err := json.Marshal(info)
	if err != nil {
		return "", "", fmt.Errorf("encoding value info: %w", err)
	}
	key, err := types.SearchKey(info.Value)
	if err != nil {
		return "", "", err
	}
	return string(doc), key, nil
}

func insertValue(ctx context.Context, tx *sql.Tx, rowID string, item types.ValueInput) error {
	doc, key, err := encodeValue(item.Info)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO row_values (value_id, row_id, column_id, info, search_key) VALUES (?, ?, ?, ?, ?)",
		newUUID(), rowID, item.Column, doc, key)
	if err != nil {
		return scoped("column", fmt.Errorf("inserting value: %w", err))
	}
	return nil
}

func updateValue(ctx context.Context, tx *sql.Tx, rowID string, item types.ValueInput) error {
	doc, key, err := encodeValue(item.Info)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE row_values SET info = ?, search_key = ? WHERE row_id = ? AND column_id = ?",
		doc, key, rowID, item.Column)
	if err != nil {
		return fmt.Errorf("updating value: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return types.WithField("column", fmt.Errorf("%w: column %s", types.ErrUnknownColumnForRow, item.Column))
	}
	return nil
}
