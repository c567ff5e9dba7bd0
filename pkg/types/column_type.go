package types

import (
	"encoding/json"
	"regexp"
	"unicode/utf8"
)

// ColumnType names the kind of values a column accepts. The set is closed:
// five primitive types plus enum, whose members are drawn from one
// primitive type.
type ColumnType string

// Column types.
const (
	ColumnTypeInt    ColumnType = "int"
	ColumnTypeReal   ColumnType = "real"
	ColumnTypeChar   ColumnType = "char"
	ColumnTypeString ColumnType = "string"
	ColumnTypeEmail  ColumnType = "email"
	ColumnTypeEnum   ColumnType = "enum"
)

// emailPattern must match the whole candidate, not a substring of it.
var emailPattern = regexp.MustCompile(`^\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b$`)

// primitive pairs a primitive column type with its literal check and the
// default used when a column is created without one.
type primitive struct {
	accepts  func(v any) bool
	fallback any
}

var primitives = map[ColumnType]primitive{
	ColumnTypeInt: {
		accepts:  isIntegerLiteral,
		fallback: json.Number("0"),
	},
	ColumnTypeReal: {
		accepts:  isRealLiteral,
		fallback: json.Number("0.0"),
	},
	ColumnTypeChar: {
		accepts: func(v any) bool {
			s, ok := v.(string)
			return ok && utf8.RuneCountInString(s) == 1
		},
		fallback: "_",
	},
	ColumnTypeString: {
		accepts: func(v any) bool {
			_, ok := v.(string)
			return ok
		},
		fallback: "",
	},
	ColumnTypeEmail: {
		accepts: func(v any) bool {
			s, ok := v.(string)
			return ok && emailPattern.MatchString(s)
		},
		fallback: "default@default.com",
	},
}

// ColumnTypes lists every column type in declaration order.
var ColumnTypes = []ColumnType{
	ColumnTypeInt,
	ColumnTypeReal,
	ColumnTypeChar,
	ColumnTypeString,
	ColumnTypeEmail,
	ColumnTypeEnum,
}

// IsValid reports whether t is one of the recognized column types.
func (t ColumnType) IsValid() bool {
	return t == ColumnTypeEnum || t.IsPrimitive()
}

// IsPrimitive reports whether t is a recognized non-enum column type.
func (t ColumnType) IsPrimitive() bool {
	_, ok := primitives[t]
	return ok
}

// BuiltinDefault returns the default for a primitive type. The second
// result is false for enum and unrecognized types.
func (t ColumnType) BuiltinDefault() (any, bool) {
	p, ok := primitives[t]
	if !ok {
		return nil, false
	}
	return p.fallback, true
}

// ValidateLiteral checks a single literal against a primitive column type.
// Returns ErrUnsupportedType if t is not primitive and a *TypeMismatchError
// if the candidate does not conform.
func ValidateLiteral(t ColumnType, candidate any) error {
	p, ok := primitives[t]
	if !ok {
		return ErrUnsupportedType
	}
	if !p.accepts(candidate) {
		err := &TypeMismatchError{Expected: t, Candidate: candidate}
		if t == ColumnTypeInt && isOutOfIntRange(candidate) {
			err.Reason = "int values must fit in a signed 64-bit integer"
		}
		return err
	}
	return nil
}
