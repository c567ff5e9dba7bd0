// This file implements the table accessors for the SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// CreateTable creates a table in a database. Names are unique per database.
func (b *Backend) CreateTable(ctx context.Context, databaseID, name string) (*types.Table, error) {
	if databaseID == "" {
		return nil, types.WithField("database", types.ErrInvalidID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.WithField("name", types.ErrInvalidName)
	}

	t := &types.Table{
		TableID:    newUUID(),
		DatabaseID: databaseID,
		Name:       name,
		CreatedAt:  now(),
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		if _, err := getDatabase(ctx, tx, databaseID); err != nil {
			return types.WithField("database", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO tables (table_id, database_id, name, created_at) VALUES (?, ?, ?, ?)",
			t.TableID, t.DatabaseID, t.Name, formatTime(t.CreatedAt),
		)
		if err != nil {
			return scoped("name", fmt.Errorf("inserting table: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Infow("created table", "table_id", t.TableID, "database_id", databaseID, "name", name)
	return t, nil
}

// GetTable retrieves a table with its columns and rows.
func (b *Backend) GetTable(ctx context.Context, id string) (*types.Table, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var t *types.Table
	err := b.read(ctx, func(q querier) error {
		var err error
		if t, err = getTable(ctx, q, id); err != nil {
			return err
		}
		return populateTable(ctx, q, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTables returns the tables of a database in creation order, each with
// its columns and rows. Returns ErrNotFound for an unknown database.
func (b *Backend) ListTables(ctx context.Context, databaseID string, page types.Page) ([]*types.Table, error) {
	if databaseID == "" {
		return nil, types.ErrInvalidID
	}
	var result []*types.Table
	err := b.read(ctx, func(q querier) error {
		if _, err := getDatabase(ctx, q, databaseID); err != nil {
			return err
		}
		var err error
		result, err = fetchTables(ctx, q, databaseID, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RenameTable changes a table's name within its database.
func (b *Backend) RenameTable(ctx context.Context, id, name string) (*types.Table, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.WithField("name", types.ErrInvalidName)
	}

	var t *types.Table
	err := b.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE tables SET name = ? WHERE table_id = ?", name, id)
		if err != nil {
			return scoped("name", fmt.Errorf("renaming table: %w", err))
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		t, err = getTable(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTable removes a table together with its columns, rows, and values.
func (b *Backend) DeleteTable(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM tables WHERE table_id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting table: %w", err)
		}
		return requireAffected(res)
	})
	if err == nil {
		b.logger.Infow("deleted table", "table_id", id)
	}
	return err
}

func getTable(ctx context.Context, q querier, id string) (*types.Table, error) {
	row := q.QueryRowContext(ctx,
		"SELECT table_id, database_id, name, created_at FROM tables WHERE table_id = ?", id)
	t, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: table %s", types.ErrNotFound, id)
	}
	return t, err
}

func scanTable(s scanner) (*types.Table, error) {
	var t types.Table
	var createdAt string
	if err := s.Scan(&t.TableID, &t.DatabaseID, &t.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning table: %w", err)
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing table created_at: %w", err)
	}
	return &t, nil
}

// fetchTables lists the tables of a database, each populated with columns
// and rows.
func fetchTables(ctx context.Context, q querier, databaseID string, page types.Page) ([]*types.Table, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT table_id, database_id, name, created_at FROM tables WHERE database_id = ? ORDER BY rowid"+pageClause(page),
		databaseID)
	if err != nil {
		return nil, fmt.Errorf("fetching tables: %w", err)
	}
	defer rows.Close()

	result := []*types.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}
	rows.Close()

	for _, t := range result {
		if err := populateTable(ctx, q, t); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func populateTable(ctx context.Context, q querier, t *types.Table) error {
	var err error
	if t.Columns, err = fetchColumns(ctx, q, t.TableID); err != nil {
		return err
	}
	t.Rows, err = fetchRows(ctx, q, t.TableID, types.RowQuery{})
	return err
}
