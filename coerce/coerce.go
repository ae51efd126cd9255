// Package coerce converts one untrusted scalar into a value that is legal
// for a given form control. Every function is pure; the only side effect is
// a debug log line when an unknown kind falls back to text.
package coerce

import (
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hazyhaar/formfill/field"
)

var logger atomic.Pointer[slog.Logger]

// SetLogger sets the logger used for fallback diagnostics.
func SetLogger(l *slog.Logger) { logger.Store(l) }

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Coerce converts v into the representation required by d.Kind.
func Coerce(v field.Scalar, d field.Descriptor) (field.Value, error) {
	switch d.Kind {
	case field.KindText, field.KindEmail, field.KindTel, field.KindURL,
		field.KindPassword, field.KindTextarea:
		return field.TextValue(v.String()), nil

	case field.KindNumber, field.KindRange:
		return field.TextValue(Number(v)), nil

	case field.KindCheckbox:
		return field.CheckedValue(Checkbox(v)), nil

	case field.KindRadio:
		if !d.Grouped() {
			return field.CheckedValue(Checkbox(v)), nil
		}
		opt, ok := MatchRadio(v.String(), d.Options)
		if !ok {
			return field.Value{}, noMatch(d, v.String())
		}
		return field.OptionValue(opt), nil

	case field.KindSelectSingle:
		opt, ok := MatchOption(v.String(), d.Options)
		if !ok {
			return field.Value{}, noMatch(d, v.String())
		}
		return field.OptionValue(opt), nil

	case field.KindSelectMultiple:
		return coerceMultiple(v, d)

	case field.KindDate, field.KindDatetime, field.KindTime:
		return field.TextValue(v.String()), nil

	case field.KindFile:
		return field.Value{}, &Error{Kind: ErrUnsupportedFieldType, Field: d.ID, Type: d.Kind}

	case field.KindUnknown:
		log().Debug("coerce: unknown kind, using text", "field", d.ID)
		return field.TextValue(v.String()), nil
	}

	log().Debug("coerce: unrecognised kind, using text", "field", d.ID, "kind", string(d.Kind))
	return field.TextValue(v.String()), nil
}

// Number parses v as a float and formats it canonically. Unparsable input
// yields the empty string, which clears the control.
func Number(v field.Scalar) string {
	if f, ok := v.Number(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strings.TrimSpace(v.String())
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var truthy = map[string]bool{
	"true":    true,
	"yes":     true,
	"1":       true,
	"on":      true,
	"checked": true,
}

// Checkbox coerces v to a boolean. Booleans pass through; strings are true
// when they are one of true, yes, 1, on, checked (any case).
func Checkbox(v field.Scalar) bool {
	if b, ok := v.Bool(); ok {
		return b
	}
	return truthy[strings.ToLower(strings.TrimSpace(v.String()))]
}

// coerceMultiple matches every requested item. A comma-separated string is
// split unless it names one option exactly.
func coerceMultiple(v field.Scalar, d field.Descriptor) (field.Value, error) {
	items := v.Items()
	if s := v.String(); v.Type() == field.ScalarString && strings.Contains(s, ",") {
		if opt, ok := exactOption(s, d.Options); ok {
			return field.OptionValue(opt), nil
		}
		items = nil
		for _, part := range strings.Split(v.String(), ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, field.String(part))
			}
		}
	}
	if len(items) == 0 {
		return field.Value{}, noMatch(d, v.String())
	}

	var selected []field.Option
	seen := make(map[string]bool)
	for _, item := range items {
		opt, ok := MatchOption(item.String(), d.Options)
		if !ok {
			return field.Value{}, noMatch(d, item.String())
		}
		if seen[opt.Value] {
			continue
		}
		seen[opt.Value] = true
		selected = append(selected, opt)
	}
	return field.OptionValue(selected...), nil
}

func exactOption(input string, options []field.Option) (field.Option, bool) {
	for _, o := range options {
		if o.Value == input {
			return o, true
		}
	}
	return matchExactText(strings.ToLower(strings.TrimSpace(input)), options)
}
