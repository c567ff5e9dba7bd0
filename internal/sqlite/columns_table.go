// This file implements the column accessors for the SQLite backend,
// including the rule that columns may only be added to tables without rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// insertColumnIfEmpty inserts a column only while its table has no rows,
// appending it after the table's existing columns. Zero affected rows means
// a row exists.
const insertColumnIfEmpty = `INSERT INTO columns (column_id, table_id, name, info, position, created_at)
SELECT ?, ?, ?, ?, COALESCE((SELECT MAX(position) FROM columns WHERE table_id = ?), -1) + 1, ?
WHERE NOT EXISTS (SELECT 1 FROM rows WHERE table_id = ?)`

// CreateColumn adds a column to a table. The table must have no rows; this
// is checked before the descriptor, so a table with rows rejects every new
// column with ErrColumnsLocked. The stored descriptor is the normalized one.
func (b *Backend) CreateColumn(ctx context.Context, tableID, name string, info types.Descriptor) (*types.Column, error) {
	if tableID == "" {
		return nil, types.WithField("table", types.ErrInvalidID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.WithField("name", types.ErrInvalidName)
	}

	c := &types.Column{
		ColumnID:  newUUID(),
		Name:      name,
		TableID:   tableID,
		CreatedAt: now(),
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, tableID); err != nil {
			return types.WithField("table", err)
		}
		if err := requireNoRows(ctx, tx, tableID); err != nil {
			return err
		}

		normalized, err := info.Normalize()
		if err != nil {
			return types.WithField("info", err)
		}
		c.Info = normalized
		encoded, err := json.Marshal(normalized)
		if err != nil {
			return fmt.Errorf("encoding column info: %w", err)
		}

		res, err := tx.ExecContext(ctx, insertColumnIfEmpty,
			c.ColumnID, c.TableID, c.Name, string(encoded), tableID, formatTime(c.CreatedAt), tableID)
		if err != nil {
			return scoped("name", fmt.Errorf("inserting column: %w", err))
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("reading affected rows: %w", err)
		} else if n == 0 {
			return types.WithField("table", types.ErrColumnsLocked)
		}

		return tx.QueryRowContext(ctx,
			"SELECT position FROM columns WHERE column_id = ?", c.ColumnID).Scan(&c.Position)
	})
	if err != nil {
		b.logger.Debugw("column rejected", "table_id", tableID, "name", name, "error", err)
		return nil, err
	}
	b.logger.Infow("created column", "column_id", c.ColumnID, "table_id", tableID,
		"name", name, "type", c.Info.Type)
	return c, nil
}

// requireNoRows returns ErrColumnsLocked if the table has any row.
func requireNoRows(ctx context.Context, q querier, tableID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM rows WHERE table_id = ? LIMIT 1", tableID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking table rows: %w", err)
	}
	return types.WithField("table", types.ErrColumnsLocked)
}

// GetColumn retrieves a column by ID.
func (b *Backend) GetColumn(ctx context.Context, id string) (*types.Column, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var c *types.Column
	err := b.read(ctx, func(q querier) error {
		row := q.QueryRowContext(ctx,
			"SELECT column_id, table_id, name, info, position, created_at FROM columns WHERE column_id = ?", id)
		var err error
		c, err = scanColumn(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: column %s", types.ErrNotFound, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListColumns returns the columns of a table in creation order.
func (b *Backend) ListColumns(ctx context.Context, tableID string) ([]*types.Column, error) {
	if tableID == "" {
		return nil, types.ErrInvalidID
	}
	var result []*types.Column
	err := b.read(ctx, func(q querier) error {
		if _, err := getTable(ctx, q, tableID); err != nil {
			return err
		}
		var err error
		result, err = fetchColumns(ctx, q, tableID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteColumn removes a column and, by cascade, its values in every row.
func (b *Backend) DeleteColumn(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM columns WHERE column_id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting column: %w", err)
		}
		return requireAffected(res)
	})
	if err == nil {
		b.logger.Infow("deleted column", "column_id", id)
	}
	return err
}

func fetchColumns(ctx context.Context, q querier, tableID string) ([]*types.Column, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT column_id, table_id, name, info, position, created_at FROM columns WHERE table_id = ? ORDER BY position",
		tableID)
	if err != nil {
		return nil, fmt.Errorf("fetching columns: %w", err)
	}
	defer rows.Close()

	result := []*types.Column{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return result, nil
}

func scanColumn(s scanner) (*types.Column, error) {
	var c types.Column
	var info, createdAt string
	if err := s.Scan(&c.ColumnID, &c.TableID, &c.Name, &info, &c.Position, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning column: %w", err)
	}
	var err error
	if c.Info, err = types.ParseDescriptor([]byte(info)); err != nil {
		return nil, fmt.Errorf("parsing column %s info: %w", c.ColumnID, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing column created_at: %w", err)
	}
	return &c, nil
}
