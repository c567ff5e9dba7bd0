package types

import (
	"errors"
	"fmt"
)

// Descriptor and value validation errors.
var (
	ErrUnsupportedType   = errors.New("unsupported column type")
	ErrMissingDefault    = errors.New("default value is required")
	ErrMissingEnumFields = errors.New("enum columns require column_type and a non-empty available_values")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrNotInEnum         = errors.New("value is not in available_values")
)

// Consistency errors raised by column and row writes.
var (
	ErrColumnsLocked       = errors.New("columns cannot be added to a table that has rows")
	ErrColumnCountMismatch = errors.New("number of columns and values in row mismatch")
	ErrTableImmutable      = errors.New("row cannot be moved to another table")
	ErrUnknownColumnForRow = errors.New("column is not linked to the row")
)

// Entity graph errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicateName = errors.New("unique constraint violation")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidData   = errors.New("invalid entity data")
)

// Store lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// TypeMismatchError reports a literal that does not conform to a primitive
// column type. It matches ErrTypeMismatch under errors.Is.
type TypeMismatchError struct {
	Expected  ColumnType
	Candidate any
	Reason    string // Optional detail, e.g. a range violation.
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("incorrect value %s for type %q", formatLiteral(e.Candidate), e.Expected)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// NotInEnumError reports a candidate missing from an enum column's
// available values. It matches ErrNotInEnum under errors.Is.
type NotInEnumError struct {
	Candidate any
	Available []any
}

func (e *NotInEnumError) Error() string {
	return fmt.Sprintf("value %s for enum column is not in available_values %s",
		formatLiteral(e.Candidate), formatLiteral(e.Available))
}

func (e *NotInEnumError) Unwrap() error { return ErrNotInEnum }

// FieldError scopes an error to the submitted field that caused it, using a
// dotted path such as "values[1].info.value".
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

// WithField wraps err in a FieldError for field. When err already carries a
// field, the two paths are joined so the outermost field comes first.
// Returns nil when err is nil.
func WithField(field string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{Field: field + "." + fe.Field, Err: fe.Err}
	}
	return &FieldError{Field: field, Err: err}
}

// FieldOf returns the field path carried by err, or "" if it has none.
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
