package reconcile

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is a loosely typed JSON scalar as produced by LLM extraction: a
// string, a number, a bool or null. Numbers keep their literal text so that
// "5.0" stays "5.0".
type Value struct {
	raw     string
	set     bool
	literal bool // raw is a JSON literal (number or bool), not a string
}

// Text returns a string Value.
func Text(s string) Value { return Value{raw: s, set: true} }

// Number returns a numeric Value formatted with the shortest representation.
func Number(f float64) Value {
	return Value{raw: strconv.FormatFloat(f, 'f', -1, 64), set: true, literal: true}
}

// Null returns an absent Value.
func Null() Value { return Value{} }

// String returns the raw text; null is "".
func (v Value) String() string { return v.raw }

// IsNull reports whether the value was absent or JSON null.
func (v Value) IsNull() bool { return !v.set }

// Float parses the value with ParseQuantity rules.
func (v Value) Float() (float64, bool) {
	if !v.set {
		return 0, false
	}
	return ParseQuantity(v.raw)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = Value{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value{raw: s, set: true}
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		// nested structures are not scalars; keep their JSON text
		*v = Value{raw: string(b), set: true}
	default:
		*v = Value{raw: string(b), set: true, literal: true}
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	if v.literal {
		return []byte(v.raw), nil
	}
	return json.Marshal(v.raw)
}
