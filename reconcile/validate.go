package reconcile

import (
	"fmt"

	"github.com/hazyhaar/formfill/field"
)

// Summary reports how a set of mappings fares before filling. Valid is false
// when a required field has no value.
type Summary struct {
	Valid            bool     `json:"valid"`
	Total            int      `json:"total"`
	Mapped           int      `json:"mapped"`
	Unmapped         int      `json:"unmapped"`
	Skipped          int      `json:"skipped"`
	RequiredUnmapped int      `json:"required_unmapped"`
	CriticalErrors   []string `json:"critical_errors"`
	Warnings         []string `json:"warnings"`
}

// Validate summarises mappings. It never blocks filling; callers decide what
// to do with an invalid summary.
func Validate(mappings []field.Mapping) Summary {
	s := Summary{Total: len(mappings), CriticalErrors: []string{}, Warnings: []string{}}
	for _, m := range mappings {
		switch m.Status {
		case field.Mapped:
			s.Mapped++
			continue
		case field.Unmapped:
			s.Unmapped++
		case field.Skipped:
			s.Skipped++
		}

		name := m.Descriptor.Label
		if name == "" {
			name = m.Descriptor.ID
		}
		if m.Descriptor.Required {
			s.RequiredUnmapped++
			s.CriticalErrors = append(s.CriticalErrors, fmt.Sprintf("required field %q has no value", name))
			continue
		}
		if m.Status == field.Unmapped && m.Method != field.MatchNone {
			s.Warnings = append(s.Warnings, fmt.Sprintf("field %q: %s", name, m.Reason))
		}
	}
	s.Valid = len(s.CriticalErrors) == 0
	return s
}
