package heater

import (
	"encoding/json"
	"strconv"
)

// ValueKind discriminates Value.
type ValueKind int

const (
	KindBool ValueKind = iota + 1
	KindInt
	KindEnum
)

// Value is a decoded property value. It is comparable with ==.
type Value struct {
	kind ValueKind
	b    bool
	n    int
	s    string
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(n int) Value { return Value{kind: KindInt, n: n} }

// Enum returns an enumerated value such as a mode name.
func Enum(s string) Value { return Value{kind: KindEnum, s: s} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer and whether v holds one.
func (v Value) AsInt() (int, bool) { return v.n, v.kind == KindInt }

// AsEnum returns the enumerated string and whether v holds one.
func (v Value) AsEnum() (string, bool) { return v.s, v.kind == KindEnum }

// Float converts booleans to 1/0 and integers to themselves. Enums have
// no numeric form.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindInt:
		return float64(v.n), true
	default:
		return 0, false
	}
}

// Payload is the wire form used for /set writes: true/false, a decimal
// integer, or a JSON string for enums.
func (v Value) Payload() []byte {
	switch v.kind {
	case KindBool:
		return []byte(strconv.FormatBool(v.b))
	case KindInt:
		return []byte(strconv.Itoa(v.n))
	case KindEnum:
		return []byte(strconv.Quote(v.s))
	default:
		return nil
	}
}

func (v Value) String() string {
	return string(v.Payload())
}

// MarshalJSON emits the bare JSON value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.n)
	case KindEnum:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}
