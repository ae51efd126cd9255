// Package field defines the data contract shared by the coercer, the
// reconciler and the filler: detected form controls, model responses,
// per-field mappings and the aggregate fill report.
//
// A Descriptor is created fresh on every scrape pass and is read-only to the
// rest of the module. Nothing in this package holds state between passes.
package field

import (
	"fmt"
	"strings"
)

// Option is one entry of a select list or one member of a radio group.
type Option struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected,omitempty"`
}

// Descriptor describes one detected form control.
type Descriptor struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	Label        string   `json:"label,omitempty"`
	Placeholder  string   `json:"placeholder,omitempty"`
	Name         string   `json:"name,omitempty"`
	HTMLID       string   `json:"html_id,omitempty"` // raw DOM id when the scraper synthesised ID
	Class        string   `json:"class,omitempty"`
	Required     bool     `json:"required,omitempty"`
	Disabled     bool     `json:"disabled,omitempty"`
	ReadOnly     bool     `json:"readonly,omitempty"`
	CurrentValue string   `json:"current_value,omitempty"`
	Options      []Option `json:"options,omitempty"`
}

// DisplayName is the label, falling back to placeholder, name and id.
func (d Descriptor) DisplayName() string {
	for _, s := range []string{d.Label, d.Placeholder, d.Name, d.ID} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Grouped reports whether a radio descriptor stands for a whole group.
func (d Descriptor) Grouped() bool {
	return d.Kind == KindRadio && len(d.Options) > 0
}

// Validate checks the invariants of one extraction pass: ids are non-empty
// and unique, kinds are known, and option lists are present exactly on
// enumerated kinds. An isolated radio button (no options) is accepted.
func Validate(descs []Descriptor) error {
	if len(descs) == 0 {
		return ErrNoDescriptors
	}
	seen := make(map[string]bool, len(descs))
	for i, d := range descs {
		if d.ID == "" {
			return fmt.Errorf("field: descriptor %d: empty id", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("field: descriptor %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
		if !d.Kind.Valid() {
			return fmt.Errorf("field: descriptor %q: unknown kind %q", d.ID, d.Kind)
		}
		switch {
		case d.Kind == KindSelectSingle || d.Kind == KindSelectMultiple:
			if len(d.Options) == 0 {
				return fmt.Errorf("field: descriptor %q: %s without options", d.ID, d.Kind)
			}
		case d.Kind == KindRadio:
		case len(d.Options) > 0:
			return fmt.Errorf("field: descriptor %q: options on %s", d.ID, d.Kind)
		}
	}
	return nil
}

// Value is a coerced value, legal for the kind it was coerced against.
// Exactly one of the three shapes is populated: Text for text-like kinds,
// Checked for checkboxes and isolated radios, Options for selects and radio
// groups.
type Value struct {
	Text    string   `json:"text,omitempty"`
	Checked *bool    `json:"checked,omitempty"`
	Options []Option `json:"options,omitempty"`
}

// TextValue builds a text Value.
func TextValue(s string) Value { return Value{Text: s} }

// CheckedValue builds a boolean Value.
func CheckedValue(b bool) Value { return Value{Checked: &b} }

// OptionValue builds an option Value.
func OptionValue(opts ...Option) Value { return Value{Options: opts} }

// Scalar converts the value back to the scalar that would produce it again
// under coercion.
func (v Value) Scalar() Scalar {
	switch {
	case v.Checked != nil:
		return Bool(*v.Checked)
	case len(v.Options) == 1:
		return String(v.Options[0].Value)
	case len(v.Options) > 1:
		items := make([]Scalar, len(v.Options))
		for i, o := range v.Options {
			items[i] = String(o.Value)
		}
		return List(items...)
	}
	return String(v.Text)
}

// OptionValues returns the option values of an option Value.
func (v Value) OptionValues() []string {
	out := make([]string, len(v.Options))
	for i, o := range v.Options {
		out[i] = o.Value
	}
	return out
}

// String renders the value for logs and reports.
func (v Value) String() string {
	return v.Scalar().String()
}

// Status is the reconciler's verdict for one descriptor.
type Status string

const (
	Mapped   Status = "mapped"
	Unmapped Status = "unmapped"
	Skipped  Status = "skipped"
)

// MatchMethod records which tier of the match cascade produced the value.
// It is kept for diagnostics only.
type MatchMethod string

const (
	MatchDirectID      MatchMethod = "direct_id"
	MatchNameAttribute MatchMethod = "name_attribute"
	MatchHTMLID        MatchMethod = "html_id"
	MatchLabelExact    MatchMethod = "label_exact"
	MatchLabelFuzzy    MatchMethod = "label_fuzzy"
	MatchCommonAlias   MatchMethod = "common_alias"
	MatchNone          MatchMethod = "none"
)

// Mapping is the reconciler output for one descriptor. When Status is
// Mapped, Resolved is non-nil and legal for Descriptor.Kind.
type Mapping struct {
	Descriptor Descriptor  `json:"descriptor"`
	Key        string      `json:"key,omitempty"`
	Raw        *Scalar     `json:"raw,omitempty"`
	Resolved   *Value      `json:"resolved,omitempty"`
	Status     Status      `json:"status"`
	Method     MatchMethod `json:"method"`
	Reason     string      `json:"reason,omitempty"`
}
