package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/formfill/field"
)

// MatchOption runs the option cascade: exact value, case-insensitive exact
// text, then for a numeric input the nearest numeric option, then
// case-insensitive containment. Empty input never matches.
func MatchOption(input string, options []field.Option) (field.Option, bool) {
	in := strings.TrimSpace(input)
	if in == "" {
		return field.Option{}, false
	}
	for _, o := range options {
		if o.Value == input {
			return o, true
		}
	}
	lower := strings.ToLower(in)
	if opt, ok := matchExactText(lower, options); ok {
		return opt, true
	}
	if target, err := strconv.ParseFloat(in, 64); err == nil {
		if opt, ok := NearestNumeric(target, options); ok {
			return opt, true
		}
	}
	return matchContains(lower, options)
}

// matchContains looks for in inside option text, then for option text
// inside in ("Canada, eh" selects "Canada"). in is already lowercased.
func matchContains(in string, options []field.Option) (field.Option, bool) {
	for _, o := range options {
		if strings.Contains(strings.ToLower(optionText(o)), in) {
			return o, true
		}
	}
	for _, o := range options {
		text := strings.ToLower(strings.TrimSpace(optionText(o)))
		if len(text) >= 2 && strings.Contains(in, text) {
			return o, true
		}
	}
	return field.Option{}, false
}

func matchExactText(in string, options []field.Option) (field.Option, bool) {
	for _, o := range options {
		if strings.ToLower(strings.TrimSpace(optionText(o))) == in {
			return o, true
		}
	}
	return field.Option{}, false
}

// MatchRadio selects a radio group member: exact value, then label text
// containing the input case-insensitively.
func MatchRadio(input string, options []field.Option) (field.Option, bool) {
	if strings.TrimSpace(input) == "" {
		return field.Option{}, false
	}
	for _, o := range options {
		if o.Value == input {
			return o, true
		}
	}
	in := strings.ToLower(strings.TrimSpace(input))
	for _, o := range options {
		if strings.Contains(strings.ToLower(optionText(o)), in) {
			return o, true
		}
	}
	return field.Option{}, false
}

var numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// NearestNumeric picks the option whose leading number (from its value, else
// its text) is closest to target. Ties go to the first option. Options
// without a number are ignored.
func NearestNumeric(target float64, options []field.Option) (field.Option, bool) {
	best := -1
	bestDiff := math.Inf(1)
	for i, o := range options {
		n, ok := optionNumber(o)
		if !ok {
			continue
		}
		if d := math.Abs(n - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	if best < 0 {
		return field.Option{}, false
	}
	return options[best], true
}

func optionNumber(o field.Option) (float64, bool) {
	for _, s := range []string{o.Value, o.Text} {
		m := numberRe.FindString(s)
		if m == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

func optionText(o field.Option) string {
	if o.Text != "" {
		return o.Text
	}
	return o.Value
}
