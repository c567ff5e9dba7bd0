package types

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the type information stored with a column. Its wire form is
//
//	{"type": ..., "default": ..., "column_type": ..., "available_values": [...]}
//
// where column_type and available_values are present only for enum columns.
// A Descriptor is parsed once at the boundary; shape problems found while
// parsing are reported by Validate so that callers can run their own
// preconditions first.
type Descriptor struct {
	Type            ColumnType
	Default         any        // nil when not provided.
	ColumnType      ColumnType // Member type, enum only.
	AvailableValues []any      // Allowed members in order, enum only.

	shapeErr error
}

// descriptorWire is the JSON form of a Descriptor.
type descriptorWire struct {
	Type            ColumnType `json:"type"`
	Default         any        `json:"default,omitempty"`
	ColumnType      ColumnType `json:"column_type,omitempty"`
	AvailableValues []any      `json:"available_values,omitempty"`
}

// ParseDescriptor decodes a column descriptor document. It fails only when
// data is not a JSON object; every other problem surfaces from Validate.
func ParseDescriptor(data []byte) (Descriptor, error) {
	raw, err := DecodeLiteral(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: descriptor is not valid JSON", ErrInvalidData)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: descriptor must be an object", ErrInvalidData)
	}

	var d Descriptor
	d.Type = columnTypeField(doc["type"])
	d.Default = doc["default"]
	d.ColumnType = columnTypeField(doc["column_type"])
	if v, ok := doc["available_values"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			d.shapeErr = WithField("available_values", fmt.Errorf("%w: must be a list", ErrMissingEnumFields))
		}
		d.AvailableValues = list
	}
	return d, nil
}

// columnTypeField reads a type name. Non-string values are kept in their
// JSON text so that they fail as unsupported types rather than vanishing.
func columnTypeField(v any) ColumnType {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return ColumnType(t)
	default:
		return ColumnType(formatLiteral(t))
	}
}

// UnmarshalJSON implements json.Unmarshaler via ParseDescriptor.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDescriptor(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the wire form. Enum-only keys are omitted for other
// types.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	w := descriptorWire{
		Type:    d.Type,
		Default: NormalizeLiteral(d.Default),
	}
	if d.Type == ColumnTypeEnum {
		w.ColumnType = d.ColumnType
		w.AvailableValues = NormalizeLiteral(d.AvailableValues).([]any)
	}
	return json.Marshal(w)
}

// Validate checks the descriptor shape and contents. Non-enum descriptors
// must carry a default conforming to their type. Enum descriptors must name
// a primitive column_type and a non-empty list of members that each conform
// to it; an explicit enum default must be one of the members.
func (d Descriptor) Validate() error {
	if d.shapeErr != nil {
		return d.shapeErr
	}
	if !d.Type.IsValid() {
		return WithField("type", fmt.Errorf("%w: provided type %q is not supported", ErrUnsupportedType, d.Type))
	}

	if d.Type != ColumnTypeEnum {
		if d.Default == nil {
			return WithField("default", ErrMissingDefault)
		}
		return WithField("default", ValidateLiteral(d.Type, d.Default))
	}

	if d.ColumnType == "" || len(d.AvailableValues) == 0 {
		return ErrMissingEnumFields
	}
	if !d.ColumnType.IsPrimitive() {
		return WithField("column_type",
			fmt.Errorf("%w: column type %q is not supported for enum", ErrUnsupportedType, d.ColumnType))
	}
	for i, member := range d.AvailableValues {
		if err := ValidateLiteral(d.ColumnType, member); err != nil {
			return WithField(fmt.Sprintf("available_values[%d]", i), err)
		}
	}
	if d.Default != nil && !containsLiteral(d.AvailableValues, d.Default) {
		return WithField("default", &NotInEnumError{Candidate: d.Default, Available: d.AvailableValues})
	}
	return nil
}

// Normalize validates the descriptor and returns its canonical stored form:
// a missing default is filled from the type's built-in default, or from the
// first available value for enums, and enum-only keys are dropped from
// non-enum descriptors.
func (d Descriptor) Normalize() (Descriptor, error) {
	n := Descriptor{
		Type:     d.Type,
		Default:  NormalizeLiteral(d.Default),
		shapeErr: d.shapeErr,
	}
	if d.Type == ColumnTypeEnum {
		n.ColumnType = d.ColumnType
		if d.AvailableValues != nil {
			n.AvailableValues = NormalizeLiteral(d.AvailableValues).([]any)
		}
		if n.Default == nil && len(n.AvailableValues) > 0 {
			n.Default = n.AvailableValues[0]
		}
	} else if n.Default == nil {
		if fallback, ok := d.Type.BuiltinDefault(); ok {
			n.Default = fallback
		}
	}

	if err := n.Validate(); err != nil {
		return Descriptor{}, err
	}
	return n, nil
}

// Accepts checks a candidate value against the descriptor. Non-enum types
// delegate to ValidateLiteral; enums require exact membership.
func (d Descriptor) Accepts(candidate any) error {
	if d.Type != ColumnTypeEnum {
		return ValidateLiteral(d.Type, candidate)
	}
	if !containsLiteral(d.AvailableValues, candidate) {
		return &NotInEnumError{Candidate: candidate, Available: d.AvailableValues}
	}
	return nil
}

func containsLiteral(list []any, v any) bool {
	for _, member := range list {
		if literalEqual(member, v) {
			return true
		}
	}
	return false
}
