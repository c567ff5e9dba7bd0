package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Literals are the JSON scalars and containers submitted as defaults, enum
// members, and row values. Numbers are carried as json.Number so that the
// integer literal 5 and the real literal 5.0 stay distinct; a number whose
// text has no fraction and no exponent is an integer literal.

// DecodeLiteral decodes a JSON document into a literal, preserving number
// text as json.Number.
func DecodeLiteral(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// NormalizeLiteral converts Go numeric values into json.Number and rewrites
// number text into its canonical spelling, so that literals built in code and
// literals decoded from JSON compare and encode the same way. Floats always
// keep a fractional part. Other values are
// returned unchanged; slices and maps are normalized element-wise.
func NormalizeLiteral(v any) any {
	switch n := v.(type) {
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int8:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int16:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int64:
		return json.Number(strconv.FormatInt(n, 10))
	case uint:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint8:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint16:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint32:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint64:
		return json.Number(strconv.FormatUint(n, 10))
	case float32:
		return floatNumber(float64(n))
	case float64:
		return floatNumber(n)
	case json.Number:
		return canonicalNumber(n)
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = NormalizeLiteral(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = NormalizeLiteral(e)
		}
		return out
	default:
		return v
	}
}

// floatNumber formats f as a real literal. NaN and infinities have no JSON
// form and are left as float64 so that validation rejects them.
func floatNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

// canonicalNumber rewrites number text so that equal numbers are spelled
// the same: 1.50, 1.5e0 and 15e-1 all become 1.5, and 1e2 becomes 100.0.
// Integer text keeps its kind, -0 becomes 0. Text that does not parse is
// returned unchanged and fails validation later.
func canonicalNumber(n json.Number) json.Number {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return n
		}
		return json.Number(strconv.FormatInt(i, 10))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return n
	}
	if c, ok := floatNumber(f).(json.Number); ok {
		return c
	}
	return n
}

// isIntegerLiteral reports whether v is an integral number literal.
func isIntegerLiteral(v any) bool {
	n, ok := NormalizeLiteral(v).(json.Number)
	if !ok {
		return false
	}
	if strings.ContainsAny(n.String(), ".eE") {
		return false
	}
	_, err := strconv.ParseInt(n.String(), 10, 64)
	return err == nil
}

// isOutOfIntRange reports whether v is integer text beyond int64.
func isOutOfIntRange(v any) bool {
	n, ok := NormalizeLiteral(v).(json.Number)
	if !ok || strings.ContainsAny(n.String(), ".eE") {
		return false
	}
	_, err := strconv.ParseInt(n.String(), 10, 64)
	return errors.Is(err, strconv.ErrRange)
}

// isRealLiteral reports whether v is a floating-point number literal.
// Integral literals are not reals even when numerically representable.
func isRealLiteral(v any) bool {
	n, ok := NormalizeLiteral(v).(json.Number)
	if !ok {
		return false
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	return err == nil && !math.IsInf(f, 0)
}

// CanonicalLiteral returns the canonical JSON encoding of v. Two literals
// are equal exactly when their canonical encodings are equal.
func CanonicalLiteral(v any) (string, error) {
	data, err := json.Marshal(NormalizeLiteral(v))
	if err != nil {
		return "", fmt.Errorf("encoding literal: %w", err)
	}
	return string(data), nil
}

// SearchKey returns the text an exact-match search compares against: the
// string itself for string literals and the canonical JSON text otherwise.
func SearchKey(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return CanonicalLiteral(v)
}

// literalEqual compares two literals by canonical encoding.
func literalEqual(a, b any) bool {
	ca, err := CanonicalLiteral(a)
	if err != nil {
		return false
	}
	cb, err := CanonicalLiteral(b)
	if err != nil {
		return false
	}
	return ca == cb
}

// formatLiteral renders v for error messages.
func formatLiteral(v any) string {
	if s, err := CanonicalLiteral(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}
