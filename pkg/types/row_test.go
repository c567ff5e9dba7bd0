package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testColumns returns an int column "c-age" and an enum column "c-role".
func testColumns(t *testing.T) []*Column {
	t.Helper()
	age, err := mustParse(t, `{"type": "int"}`).Normalize()
	require.NoError(t, err)
	role, err := mustParse(t, `{"type": "enum", "column_type": "string", "available_values": ["user", "admin"]}`).Normalize()
	require.NoError(t, err)
	return []*Column{
		{ColumnID: "c-age", Name: "age", Info: age, TableID: "t-1"},
		{ColumnID: "c-role", Name: "role", Info: role, TableID: "t-1", Position: 1},
	}
}

func item(column string, v any) ValueInput {
	return ValueInput{Column: column, Info: ValueInfo{Value: v}}
}

func TestCheckRowCreate(t *testing.T) {
	tests := []struct {
		name      string
		items     []ValueInput
		wantErr   error
		wantField string
	}{
		{
			name:  "one valid value per column",
			items: []ValueInput{item("c-age", json.Number("30")), item("c-role", "admin")},
		},
		{
			name:  "submission order does not matter",
			items: []ValueInput{item("c-role", "user"), item("c-age", 5)},
		},
		{
			name:      "too few values",
			items:     []ValueInput{item("c-age", json.Number("30"))},
			wantErr:   ErrColumnCountMismatch,
			wantField: "values",
		},
		{
			name:      "too many values",
			items:     []ValueInput{item("c-age", 1), item("c-role", "user"), item("c-role", "admin")},
			wantErr:   ErrColumnCountMismatch,
			wantField: "values",
		},
		{
			name:      "int column rejects real",
			items:     []ValueInput{item("c-age", json.Number("3.5")), item("c-role", "user")},
			wantErr:   ErrTypeMismatch,
			wantField: "values[0].info.value",
		},
		{
			name:      "enum column rejects non-member",
			items:     []ValueInput{item("c-age", 1), item("c-role", "root")},
			wantErr:   ErrNotInEnum,
			wantField: "values[1].info.value",
		},
		{
			name:      "first failing value is reported",
			items:     []ValueInput{item("c-role", "root"), item("c-age", "x")},
			wantErr:   ErrNotInEnum,
			wantField: "values[0].info.value",
		},
		{
			name:      "column from another table",
			items:     []ValueInput{item("c-age", 1), item("c-other", "user")},
			wantErr:   ErrNotFound,
			wantField: "values[1].column",
		},
		{
			name:      "same column twice",
			items:     []ValueInput{item("c-age", 1), item("c-age", 2)},
			wantErr:   ErrDuplicateName,
			wantField: "values[1].column",
		},
		{
			name:      "missing value",
			items:     []ValueInput{item("c-age", nil), item("c-role", "user")},
			wantErr:   ErrInvalidData,
			wantField: "values[0].info.value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRowCreate(testColumns(t), tt.items)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantField, FieldOf(err))
		})
	}
}

func TestCheckRowCreateRejectsEmptyValues(t *testing.T) {
	for _, columns := range [][]*Column{nil, testColumns(t)} {
		err := CheckRowCreate(columns, nil)
		require.ErrorIs(t, err, ErrInvalidData)
		assert.Equal(t, "values", FieldOf(err))

		err = CheckRowCreate(columns, []ValueInput{})
		require.ErrorIs(t, err, ErrInvalidData)
	}
	assert.ErrorIs(t, CheckRowCreate(nil, []ValueInput{item("c-age", 1)}), ErrColumnCountMismatch)
}

func TestCheckRowUpdate(t *testing.T) {
	existing := &Row{
		RowID:   "r-1",
		TableID: "t-1",
		Values: []*Value{
			{ValueID: "v-1", ColumnID: "c-age", RowID: "r-1", Info: ValueInfo{Value: json.Number("30")}},
			{ValueID: "v-2", ColumnID: "c-role", RowID: "r-1", Info: ValueInfo{Value: "user"}},
		},
	}
	tests := []struct {
		name      string
		upd       RowUpdate
		wantErr   error
		wantField string
	}{
		{
			name: "change both values",
			upd:  RowUpdate{TableID: "t-1", Values: []ValueInput{item("c-age", 31), item("c-role", "admin")}},
		},
		{
			name: "table may be omitted",
			upd:  RowUpdate{Values: []ValueInput{item("c-age", 31), item("c-role", "admin")}},
		},
		{
			name:      "empty values",
			upd:       RowUpdate{TableID: "t-1"},
			wantErr:   ErrInvalidData,
			wantField: "values",
		},
		{
			name:      "count mismatch is checked first",
			upd:       RowUpdate{TableID: "t-2", Values: []ValueInput{item("c-age", 31)}},
			wantErr:   ErrColumnCountMismatch,
			wantField: "values",
		},
		{
			name:      "moving to another table",
			upd:       RowUpdate{TableID: "t-2", Values: []ValueInput{item("c-age", 31), item("c-role", "admin")}},
			wantErr:   ErrTableImmutable,
			wantField: "table",
		},
		{
			name:      "column the row never had",
			upd:       RowUpdate{Values: []ValueInput{item("c-age", 31), item("c-new", "admin")}},
			wantErr:   ErrUnknownColumnForRow,
			wantField: "values[1].column",
		},
		{
			name:      "same column twice",
			upd:       RowUpdate{Values: []ValueInput{item("c-role", "user"), item("c-role", "admin")}},
			wantErr:   ErrDuplicateName,
			wantField: "values[1].column",
		},
		{
			name:      "invalid new value",
			upd:       RowUpdate{Values: []ValueInput{item("c-age", "old"), item("c-role", "admin")}},
			wantErr:   ErrTypeMismatch,
			wantField: "values[0].info.value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRowUpdate(existing, testColumns(t), tt.upd)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantField, FieldOf(err))
		})
	}
}

func TestValueInfoDecodingKeepsNumberKinds(t *testing.T) {
	var in struct {
		Values []ValueInput `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"values": [{"column": "c-age", "info": {"value": 5}}, {"column": "c-x", "info": {"value": 5.0}}]}`), &in))
	require.Len(t, in.Values, 2)
	assert.Equal(t, json.Number("5"), in.Values[0].Info.Value)
	assert.Equal(t, json.Number("5.0"), in.Values[1].Info.Value)
	assert.NoError(t, ValidateLiteral(ColumnTypeInt, in.Values[0].Info.Value))
	assert.NoError(t, ValidateLiteral(ColumnTypeReal, in.Values[1].Info.Value))
}
