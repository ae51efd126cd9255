package field

import "strings"

// Kind classifies a form control. The set is closed: every switch over Kind
// in this module is expected to cover all values, with KindUnknown handled
// explicitly rather than through a silent default.
type Kind string

const (
	KindText           Kind = "text"
	KindEmail          Kind = "email"
	KindTel            Kind = "tel"
	KindURL            Kind = "url"
	KindPassword       Kind = "password"
	KindNumber         Kind = "number"
	KindRange          Kind = "range"
	KindTextarea       Kind = "textarea"
	KindSelectSingle   Kind = "select-single"
	KindSelectMultiple Kind = "select-multiple"
	KindCheckbox       Kind = "checkbox"
	KindRadio          Kind = "radio"
	KindDate           Kind = "date"
	KindDatetime       Kind = "datetime"
	KindTime           Kind = "time"
	KindFile           Kind = "file"
	KindUnknown        Kind = "unknown"
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{
	KindText, KindEmail, KindTel, KindURL, KindPassword, KindNumber, KindRange,
	KindTextarea, KindSelectSingle, KindSelectMultiple, KindCheckbox, KindRadio,
	KindDate, KindDatetime, KindTime, KindFile, KindUnknown,
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// TextLike reports whether values are written as a plain string property
// and followed by input/change/blur.
func (k Kind) TextLike() bool {
	switch k {
	case KindText, KindEmail, KindTel, KindURL, KindPassword, KindTextarea,
		KindNumber, KindRange, KindDate, KindDatetime, KindTime, KindUnknown:
		return true
	}
	return false
}

// Enumerated reports whether the kind carries an option list.
func (k Kind) Enumerated() bool {
	return k == KindSelectSingle || k == KindSelectMultiple || k == KindRadio
}

// ParseKind maps an element tag and its type attribute to a Kind.
// multiple is only consulted for <select>.
func ParseKind(tag, typ string, multiple bool) Kind {
	tag = strings.ToLower(strings.TrimSpace(tag))
	typ = strings.ToLower(strings.TrimSpace(typ))

	switch tag {
	case "textarea":
		return KindTextarea
	case "select":
		if multiple {
			return KindSelectMultiple
		}
		return KindSelectSingle
	case "input":
	default:
		return KindUnknown
	}

	switch typ {
	case "", "text", "search":
		return KindText
	case "email":
		return KindEmail
	case "tel":
		return KindTel
	case "url":
		return KindURL
	case "password":
		return KindPassword
	case "number":
		return KindNumber
	case "range":
		return KindRange
	case "checkbox":
		return KindCheckbox
	case "radio":
		return KindRadio
	case "date", "month", "week":
		return KindDate
	case "datetime", "datetime-local":
		return KindDatetime
	case "time":
		return KindTime
	case "file":
		return KindFile
	}
	return KindUnknown
}
