package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

func TestCreateColumnNormalizesDescriptor(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "people")

	tests := []struct {
		name        string
		info        string
		wantDefault any
	}{
		{"int gets built-in default", `{"type": "int"}`, json.Number("0")},
		{"real gets built-in default", `{"type": "real"}`, json.Number("0.0")},
		{"char gets built-in default", `{"type": "char"}`, "_"},
		{"string gets built-in default", `{"type": "string"}`, ""},
		{"email gets built-in default", `{"type": "email"}`, "default@default.com"},
		{"explicit default kept", `{"type": "string", "default": "n/a"}`, "n/a"},
		{"enum defaults to first member", `{"type": "enum", "column_type": "int", "available_values": [3, 5]}`, json.Number("3")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, err := b.CreateColumn(ctx, tbl.TableID, tt.name, descriptor(t, tt.info))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDefault, col.Info.Default)

			got, err := b.GetColumn(ctx, col.ColumnID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDefault, got.Info.Default, "stored descriptor keeps the default")
			assert.Equal(t, col.Info.Type, got.Info.Type)
		})
	}
}

func TestCreateColumnErrors(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "people")

	_, err := b.CreateColumn(ctx, tbl.TableID, "name", descriptor(t, `{"type": "string"}`))
	require.NoError(t, err)

	tests := []struct {
		name      string
		tableID   string
		column    string
		info      string
		wantErr   error
		wantField string
	}{
		{"unknown type", tbl.TableID, "a", `{"type": "date"}`, types.ErrUnsupportedType, "info.type"},
		{"default of wrong type", tbl.TableID, "b", `{"type": "int", "default": "x"}`, types.ErrTypeMismatch, "info.default"},
		{"enum without members", tbl.TableID, "c", `{"type": "enum", "column_type": "string", "available_values": []}`, types.ErrMissingEnumFields, "info"},
		{"enum default outside members", tbl.TableID, "d", `{"type": "enum", "column_type": "string", "available_values": ["a"], "default": "b"}`, types.ErrNotInEnum, "info.default"},
		{"duplicate name", tbl.TableID, "name", `{"type": "int"}`, types.ErrDuplicateName, "name"},
		{"empty name", tbl.TableID, " ", `{"type": "int"}`, types.ErrInvalidName, "name"},
		{"unknown table", "missing", "e", `{"type": "int"}`, types.ErrNotFound, "table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateColumn(ctx, tt.tableID, tt.column, descriptor(t, tt.info))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantField, types.FieldOf(err))
		})
	}
}

func TestCreateColumnLockedOnceTableHasRows(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "people")

	age, err := b.CreateColumn(ctx, tbl.TableID, "age", descriptor(t, `{"type": "int"}`))
	require.NoError(t, err)
	_, err = b.CreateRow(ctx, tbl.TableID, []types.ValueInput{
		{Column: age.ColumnID, Info: types.ValueInfo{Value: 30}},
	})
	require.NoError(t, err)

	_, err = b.CreateColumn(ctx, tbl.TableID, "email", descriptor(t, `{"type": "email"}`))
	assert.ErrorIs(t, err, types.ErrColumnsLocked)

	// A broken descriptor still reports the lock first.
	_, err = b.CreateColumn(ctx, tbl.TableID, "broken", descriptor(t, `{"type": "nope"}`))
	assert.ErrorIs(t, err, types.ErrColumnsLocked)

	cols, err := b.ListColumns(ctx, tbl.TableID)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
}

func TestCreateColumnRacesCreateRow(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "race")
	first, err := b.CreateColumn(ctx, tbl.TableID, "first", descriptor(t, `{"type": "int"}`))
	require.NoError(t, err)

	intColumn := descriptor(t, `{"type": "int"}`)
	const writers = 8
	var wg sync.WaitGroup
	colErrs := make([]error, writers)
	var rowErr error
	var row *types.Row

	wg.Add(writers + 1)
	go func() {
		defer wg.Done()
		row, rowErr = b.CreateRow(ctx, tbl.TableID, []types.ValueInput{
			{Column: first.ColumnID, Info: types.ValueInfo{Value: 1}},
		})
	}()
	for i := range writers {
		go func() {
			defer wg.Done()
			_, colErrs[i] = b.CreateColumn(ctx, tbl.TableID, fmt.Sprintf("c%d", i), intColumn)
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range colErrs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, types.ErrColumnsLocked)
	}

	cols, err := b.ListColumns(ctx, tbl.TableID)
	require.NoError(t, err)
	assert.Len(t, cols, 1+created)

	if rowErr != nil {
		// A column committed first, so the one-value row no longer fits.
		assert.ErrorIs(t, rowErr, types.ErrColumnCountMismatch)
		assert.Positive(t, created)
		return
	}
	// The row committed first: every later column was refused.
	assert.Zero(t, created)
	got, err := b.GetRow(ctx, row.RowID)
	require.NoError(t, err)
	assert.Len(t, got.Values, len(cols))
}

func TestRowWithoutValuesIsRejected(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "empty")

	_, err := b.CreateRow(ctx, tbl.TableID, nil)
	require.ErrorIs(t, err, types.ErrInvalidData)
	assert.Equal(t, "values", types.FieldOf(err))
	assert.Equal(t, 0, countRows(t, b, tbl.TableID))

	// The table stays open for columns.
	_, err = b.CreateColumn(ctx, tbl.TableID, "age", descriptor(t, `{"type": "int"}`))
	assert.NoError(t, err)
}

func TestListColumnsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "people")

	for _, name := range []string{"z", "a", "m"} {
		_, err := b.CreateColumn(ctx, tbl.TableID, name, descriptor(t, `{"type": "string"}`))
		require.NoError(t, err)
	}

	cols, err := b.ListColumns(ctx, tbl.TableID)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"z", "a", "m"}, []string{cols[0].Name, cols[1].Name, cols[2].Name})
	assert.Equal(t, []int{0, 1, 2}, []int{cols[0].Position, cols[1].Position, cols[2].Position})

	_, err = b.ListColumns(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteColumnRemovesValues(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tbl := newTable(t, b, "people")

	age, err := b.CreateColumn(ctx, tbl.TableID, "age", descriptor(t, `{"type": "int"}`))
	require.NoError(t, err)
	name, err := b.CreateColumn(ctx, tbl.TableID, "name", descriptor(t, `{"type": "string"}`))
	require.NoError(t, err)
	row, err := b.CreateRow(ctx, tbl.TableID, []types.ValueInput{
		{Column: age.ColumnID, Info: types.ValueInfo{Value: 30}},
		{Column: name.ColumnID, Info: types.ValueInfo{Value: "ann"}},
	})
	require.NoError(t, err)

	require.NoError(t, b.DeleteColumn(ctx, age.ColumnID))
	assert.ErrorIs(t, b.DeleteColumn(ctx, age.ColumnID), types.ErrNotFound)

	got, err := b.GetRow(ctx, row.RowID)
	require.NoError(t, err)
	require.Len(t, got.Values, 1)
	assert.Equal(t, name.ColumnID, got.Values[0].ColumnID)
}
