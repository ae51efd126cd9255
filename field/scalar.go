package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ScalarType tags the dynamic type carried by a Scalar.
type ScalarType int

const (
	ScalarNull ScalarType = iota
	ScalarString
	ScalarNumber
	ScalarBool
	ScalarList
)

// Scalar is one untrusted value from a model response: a string, number,
// boolean, null, or a flat list of those (used by multi-selects).
type Scalar struct {
	typ  ScalarType
	str  string
	num  float64
	b    bool
	list []Scalar
}

func Null() Scalar { return Scalar{typ: ScalarNull} }
func String(s string) Scalar { return Scalar{typ: ScalarString, str: s} }
func Number(f float64) Scalar { return Scalar{typ: ScalarNumber, num: f} }
func Bool(b bool) Scalar { return Scalar{typ: ScalarBool, b: b} }
func List(items ...Scalar) Scalar { return Scalar{typ: ScalarList, list: items} }

// Type returns the dynamic type.
func (s Scalar) Type() ScalarType { return s.typ }

// IsNull reports whether the scalar is JSON null.
func (s Scalar) IsNull() bool { return s.typ == ScalarNull }

// Bool returns the boolean payload and whether the scalar is a boolean.
func (s Scalar) Bool() (bool, bool) { return s.b, s.typ == ScalarBool }

// Number returns the numeric payload and whether the scalar is a number.
func (s Scalar) Number() (float64, bool) { return s.num, s.typ == ScalarNumber }

// Items returns the list elements, or the scalar itself as a one-element
// list when it is not a list. Null yields nil.
func (s Scalar) Items() []Scalar {
	switch s.typ {
	case ScalarList:
		return s.list
	case ScalarNull:
		return nil
	}
	return []Scalar{s}
}

// String stringifies the scalar. Null becomes the empty string, lists are
// joined with ", ".
func (s Scalar) String() string {
	switch s.typ {
	case ScalarString:
		return s.str
	case ScalarNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.b)
	case ScalarList:
		parts := make([]string, 0, len(s.list))
		for _, item := range s.list {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Empty reports whether the scalar carries no usable value: null, a blank
// string, or an empty list.
func (s Scalar) Empty() bool {
	switch s.typ {
	case ScalarNull:
		return true
	case ScalarString:
		return strings.TrimSpace(s.str) == ""
	case ScalarList:
		return len(s.list) == 0
	}
	return false
}

// MarshalJSON encodes the scalar as its natural JSON value.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.typ {
	case ScalarString:
		return json.Marshal(s.str)
	case ScalarNumber:
		return json.Marshal(s.num)
	case ScalarBool:
		return json.Marshal(s.b)
	case ScalarList:
		if s.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a JSON value. Nested objects are kept as their raw
// JSON text so a stray structure still reaches the coercer as a string.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("field: empty scalar")
	}
	switch data[0] {
	case 'n':
		*s = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("field: scalar: %w", err)
		}
		*s = Bool(b)
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("field: scalar: %w", err)
		}
		*s = String(str)
	case '[':
		var items []Scalar
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("field: scalar list: %w", err)
		}
		*s = List(items...)
	case '{':
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err != nil {
			return fmt.Errorf("field: scalar object: %w", err)
		}
		*s = String(compact.String())
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("field: scalar number: %w", err)
		}
		*s = Number(f)
	}
	return nil
}
