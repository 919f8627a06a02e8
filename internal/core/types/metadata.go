package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind is the scalar type held by a Value
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a string, number or bool. The zero value is the empty string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string form of any value
func (v Value) Str() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Num returns the number and whether v holds one
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool and whether v holds one
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) String() string { return v.Str() }

// Equal compares kind and payload
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return v.str == o.str
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("metadata: empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 'n':
		return fmt.Errorf("metadata: null is not a value")
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("metadata: unsupported value %s", data)
		}
		*v = Number(n)
	}
	return nil
}

// Metadata is an unordered bag of backend specific extras
type Metadata map[string]Value

// Clone returns an independent copy
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both bags hold the same pairs
func (m Metadata) Equal(o Metadata) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Encode serializes the bag to its wire format
func (m Metadata) Encode() ([]byte, error) {
	if m == nil {
		m = Metadata{}
	}
	return json.Marshal(map[string]Value(m))
}

// DecodeMetadata parses the wire format produced by Encode
func DecodeMetadata(data []byte) (Metadata, error) {
	var m map[string]Value
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return Metadata(m), nil
}
