package entity

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/spuro/spuro/errors"
)

// Kind discriminates the closed set of attribute value types.
// Comparison and sort operators respect the declared kind, never the
// lexical text of a value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// String returns the kind name used in wire formats and error messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name as it appears in sort key specs.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string", "str":
		return KindString, nil
	case "int", "integer", "number":
		return KindInt, nil
	case "bool", "boolean":
		return KindBool, nil
	default:
		return 0, errors.NewInvalidInputf("unknown attribute kind %q", s)
	}
}

// Value is a typed attribute scalar: string, integer, or boolean.
// The zero Value is the empty string.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
}

// String constructs a string-kinded value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int constructs an integer-kinded value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Bool constructs a boolean-kinded value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value's type discriminator.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload; ok is false for non-string kinds.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int returns the integer payload; ok is false for non-integer kinds.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Bool returns the boolean payload; ok is false for non-boolean kinds.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Equal reports type-aware equality. Values of different kinds are never
// equal, regardless of lexical form.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	}
	return false
}

// Display renders the value for human output (CLI tables, logs).
func (v Value) Display() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return json.Marshal(v.i)
	case KindBool:
		return json.Marshal(v.b)
	}
	return nil, errors.AssertionFailedf("value with unknown kind %d", v.kind)
}

// UnmarshalJSON decodes a bare JSON scalar into a typed value.
// Fractional numbers and non-scalar JSON are rejected as invalid input,
// closing the "attribute type mismatch" ambiguity at the boundary.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return errors.NewInvalidInputf("invalid attribute value: %v", err)
	}

	switch t := raw.(type) {
	case string:
		*v = String(t)
	case bool:
		*v = Bool(t)
	case json.Number:
		i, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return errors.NewInvalidInputf("attribute value %s is not an integer", t.String())
		}
		*v = Int(i)
	default:
		return errors.NewInvalidInputf("attribute value must be a string, integer, or boolean")
	}
	return nil
}
