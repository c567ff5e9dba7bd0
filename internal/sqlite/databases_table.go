// This file implements the database accessors for the SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// CreateDatabase creates a database with a unique name.
func (b *Backend) CreateDatabase(ctx context.Context, name string) (*types.Database, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.WithField("name", types.ErrInvalidName)
	}

	d := &types.Database{
		DatabaseID: newUUID(),
		Name:       name,
		CreatedAt:  now(),
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO databases (database_id, name, created_at) VALUES (?, ?, ?)",
			d.DatabaseID, d.Name, formatTime(d.CreatedAt),
		)
		if err != nil {
			return scoped("name", fmt.Errorf("inserting database: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Infow("created database", "database_id", d.DatabaseID, "name", d.Name)
	return d, nil
}

// GetDatabase retrieves a database with its tables.
func (b *Backend) GetDatabase(ctx context.Context, id string) (*types.Database, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var d *types.Database
	err := b.read(ctx, func(q querier) error {
		var err error
		d, err = getDatabase(ctx, q, id)
		if err != nil {
			return err
		}
		d.Tables, err = fetchTables(ctx, q, id, types.Page{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDatabases returns databases in creation order, each with its tables.
func (b *Backend) ListDatabases(ctx context.Context, page types.Page) ([]*types.Database, error) {
	var result []*types.Database
	err := b.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT database_id, name, created_at FROM databases ORDER BY rowid"+pageClause(page))
		if err != nil {
			return fmt.Errorf("fetching databases: %w", err)
		}
		defer rows.Close()

		result = []*types.Database{}
		for rows.Next() {
			d, err := scanDatabase(rows)
			if err != nil {
				return err
			}
			result = append(result, d)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating databases: %w", err)
		}
		rows.Close()

		for _, d := range result {
			if d.Tables, err = fetchTables(ctx, q, d.DatabaseID, types.Page{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RenameDatabase changes a database's name.
func (b *Backend) RenameDatabase(ctx context.Context, id, name string) (*types.Database, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.WithField("name", types.ErrInvalidName)
	}

	var d *types.Database
	err := b.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE databases SET name = ? WHERE database_id = ?", name, id)
		if err != nil {
			return scoped("name", fmt.Errorf("renaming database: %w", err))
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		d, err = getDatabase(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDatabase removes a database; its tables, columns, rows, and values
// are removed by cascade.
func (b *Backend) DeleteDatabase(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	err := b.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM databases WHERE database_id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting database: %w", err)
		}
		return requireAffected(res)
	})
	if err == nil {
		b.logger.Infow("deleted database", "database_id", id)
	}
	return err
}

func getDatabase(ctx context.Context, q querier, id string) (*types.Database, error) {
	row := q.QueryRowContext(ctx,
		"SELECT database_id, name, created_at FROM databases WHERE database_id = ?", id)
	d, err := scanDatabase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: database %s", types.ErrNotFound, id)
	}
	return d, err
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDatabase(s scanner) (*types.Database, error) {
	var d types.Database
	var createdAt string
	if err := s.Scan(&d.DatabaseID, &d.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning database: %w", err)
	}
	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing database created_at: %w", err)
	}
	return &d, nil
}

// requireAffected turns an UPDATE or DELETE that matched nothing into
// ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// pageClause renders LIMIT/OFFSET for page. SQLite requires a LIMIT before
// an OFFSET, so an offset alone uses LIMIT -1.
func pageClause(page types.Page) string {
	switch {
	case page.Limit > 0 && page.Offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit, page.Offset)
	case page.Limit > 0:
		return fmt.Sprintf(" LIMIT %d", page.Limit)
	case page.Offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", page.Offset)
	default:
		return ""
	}
}
