package types

import (
	"fmt"
)

// errNoValues rejects a row write without values. A row is never stored
// empty, since any row locks its table's columns.
var errNoValues = WithField("values", fmt.Errorf("%w: values must not be empty", ErrInvalidData))

// CheckRowCreate verifies that items supply exactly one valid value for each
// of the table's columns. Checks run in submission order and the first
// failure is returned, scoped to the offending field.
func CheckRowCreate(columns []*Column, items []ValueInput) error {
	if len(items) == 0 {
		return errNoValues
	}
	if len(items) != len(columns) {
		return WithField("values", fmt.Errorf("%w: table has %d columns, got %d values",
			ErrColumnCountMismatch, len(columns), len(items)))
	}

	byID := indexColumns(columns)
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		field := fmt.Sprintf("values[%d]", i)
		col, ok := byID[item.Column]
		if !ok {
			return WithField(field+".column",
				fmt.Errorf("%w: column %q does not belong to the table", ErrNotFound, item.Column))
		}
		if seen[item.Column] {
			return WithField(field+".column",
				fmt.Errorf("%w: column %q is given more than once", ErrDuplicateName, item.Column))
		}
		seen[item.Column] = true
		if err := checkItemValue(col, item); err != nil {
			return WithField(field, err)
		}
	}
	return nil
}

// CheckRowUpdate verifies an update against the row's existing values. The
// update may only change values in place: it must name every column the
// row already has, once each, and may not move the row to another table.
func CheckRowUpdate(row *Row, columns []*Column, upd RowUpdate) error {
	if len(upd.Values) == 0 {
		return errNoValues
	}
	if len(upd.Values) != len(columns) {
		return WithField("values", fmt.Errorf("%w: table has %d columns, got %d values",
			ErrColumnCountMismatch, len(columns), len(upd.Values)))
	}
	if upd.TableID != "" && upd.TableID != row.TableID {
		return WithField("table", ErrTableImmutable)
	}

	byID := indexColumns(columns)
	seen := make(map[string]bool, len(upd.Values))
	for i, item := range upd.Values {
		field := fmt.Sprintf("values[%d]", i)
		if row.ValueFor(item.Column) == nil {
			return WithField(field+".column",
				fmt.Errorf("%w: column %q", ErrUnknownColumnForRow, item.Column))
		}
		if seen[item.Column] {
			return WithField(field+".column",
				fmt.Errorf("%w: column %q is given more than once", ErrDuplicateName, item.Column))
		}
		seen[item.Column] = true
		col, ok := byID[item.Column]
		if !ok {
			return WithField(field+".column",
				fmt.Errorf("%w: column %q does not belong to the table", ErrNotFound, item.Column))
		}
		if err := checkItemValue(col, item); err != nil {
			return WithField(field, err)
		}
	}
	return nil
}

func checkItemValue(col *Column, item ValueInput) error {
	if item.Info.Value == nil {
		return WithField("info.value", fmt.Errorf("%w: info should have a value", ErrInvalidData))
	}
	return WithField("info.value", col.ValidateValue(item.Info.Value))
}

func indexColumns(columns []*Column) map[string]*Column {
	byID := make(map[string]*Column, len(columns))
	for _, c := range columns {
		byID[c.ColumnID] = c
	}
	return byID
}
