package models

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Field is one JSON member of a request body in one of three states:
// absent, explicit null, or a raw value whose type is checked on access.
type Field struct {
	set bool
	raw json.RawMessage
}

// UnmarshalJSON is only invoked when the member exists in the object, so it
// records presence. Type checking is left to the accessors.
func (f *Field) UnmarshalJSON(data []byte) error {
	f.set = true
	f.raw = append(f.raw[:0], data...)
	return nil
}

// MarshalJSON writes the raw value back, or null when absent.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.set {
		return jsonNull, nil
	}
	return f.raw, nil
}

// FieldOf builds a present field holding v.
func FieldOf(v any) Field {
	raw, err := json.Marshal(v)
	if err != nil {
		return Field{}
	}
	return Field{set: true, raw: raw}
}

// NullField builds a present field holding an explicit null.
func NullField() Field {
	return Field{set: true, raw: jsonNull}
}

func (f Field) Present() bool { return f.set }

func (f Field) IsNull() bool {
	return f.set && bytes.Equal(bytes.TrimSpace(f.raw), jsonNull)
}

// AsString reports the value when it is a JSON string.
func (f Field) AsString() (string, bool) {
	if !f.set || f.IsNull() || !startsWith(f.raw, '"') {
		return "", false
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsNumber reports the value when it is a JSON number.
func (f Field) AsNumber() (float64, bool) {
	if !f.set || f.IsNull() || startsWith(f.raw, '"') {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(f.raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// AsBool reports the value when it is a JSON boolean.
func (f Field) AsBool() (bool, bool) {
	if !f.set || f.IsNull() {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(f.raw, &b); err != nil {
		return false, false
	}
	return b, true
}

func startsWith(raw []byte, c byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == c
}
