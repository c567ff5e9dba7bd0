package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Database is a top-level named container of tables.
type Database struct {
	DatabaseID string    `json:"id"`   // UUID v7, generated on creation.
	Name       string    `json:"name"` // Unique across databases.
	CreatedAt  time.Time `json:"created_at"`
	Tables     []*Table  `json:"tables,omitempty"` // Populated by Get and List.
}

// Table is a named container of columns and rows within a database.
// The pair (Name, DatabaseID) is unique.
type Table struct {
	TableID    string    `json:"id"`
	DatabaseID string    `json:"database"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	Columns    []*Column `json:"columns,omitempty"`
	Rows       []*Row    `json:"rows,omitempty"`
}

// Column is a named, typed slot within a table. The pair (Name, TableID)
// is unique and Info never changes after creation.
type Column struct {
	ColumnID  string     `json:"id"`
	Name      string     `json:"name"`
	Info      Descriptor `json:"info"`
	TableID   string     `json:"table"`
	Position  int        `json:"-"` // Creation order within the table.
	CreatedAt time.Time  `json:"created_at"`
}

// ValidateValue checks a candidate value against the column's descriptor.
func (c *Column) ValidateValue(candidate any) error {
	return c.Info.Accepts(candidate)
}

// Row holds one value per column of its table.
type Row struct {
	RowID     string    `json:"id"`
	TableID   string    `json:"table"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Values    []*Value  `json:"values"`
}

// ValueFor returns the row's value for the given column, or nil.
func (r *Row) ValueFor(columnID string) *Value {
	for _, v := range r.Values {
		if v.ColumnID == columnID {
			return v
		}
	}
	return nil
}

// Value is a single datum linking one row to one column. The pair
// (ColumnID, RowID) is unique.
type Value struct {
	ValueID  string    `json:"id"`
	Info     ValueInfo `json:"info"`
	ColumnID string    `json:"column"`
	RowID    string    `json:"row"`
}

// ValueInfo is the document stored with a value: {"value": <literal>}.
type ValueInfo struct {
	Value any `json:"value"`
}

// UnmarshalJSON decodes the document keeping number literals as
// json.Number, so integer and real literals stay distinct.
func (vi *ValueInfo) UnmarshalJSON(data []byte) error {
	raw, err := DecodeLiteral(data)
	if err != nil {
		return err
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: value info must be an object", ErrInvalidData)
	}
	vi.Value = doc["value"]
	return nil
}

// MarshalJSON encodes the document with normalized literals.
func (vi ValueInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value any `json:"value"`
	}{NormalizeLiteral(vi.Value)})
}

// ValueInput is one submitted value of a row create or update request.
type ValueInput struct {
	Column string    `json:"column"`
	Info   ValueInfo `json:"info"`
}

// RowUpdate is the payload of a row update. TableID, when set, must match
// the row's current table.
type RowUpdate struct {
	TableID string       `json:"table"`
	Values  []ValueInput `json:"values"`
}

// Page bounds a listing. A zero Limit returns every remaining entity.
type Page struct {
	Limit  int
	Offset int
}

// RowQuery selects rows of a table. A non-empty Search keeps only rows with
// at least one value exactly equal to it.
type RowQuery struct {
	Search string
	Page   Page
}
