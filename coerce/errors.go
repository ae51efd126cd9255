package coerce

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/formfill/field"
)

// Sentinel kinds, matched with errors.Is against an *Error.
var (
	ErrNoOptionMatch        = errors.New("coerce: no option matches")
	ErrUnsupportedFieldType = errors.New("coerce: field type cannot be filled")
)

// Error is a coercion failure for one field.
type Error struct {
	Kind  error // ErrNoOptionMatch or ErrUnsupportedFieldType
	Field string
	Type  field.Kind
	Input string
}

func (e *Error) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%v: field %q (%s)", e.Kind, e.Field, e.Type)
	}
	return fmt.Sprintf("%v: field %q (%s), input %q", e.Kind, e.Field, e.Type, e.Input)
}

func (e *Error) Unwrap() error { return e.Kind }

func noMatch(d field.Descriptor, input string) error {
	return &Error{Kind: ErrNoOptionMatch, Field: d.ID, Type: d.Kind, Input: input}
}
