package coerce

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazyhaar/formfill/field"
)

var countries = []field.Option{
	{Value: "US", Text: "United States"},
	{Value: "CA", Text: "Canada"},
}

func selectDesc(opts []field.Option) field.Descriptor {
	return field.Descriptor{ID: "country", Kind: field.KindSelectSingle, Options: opts}
}

func TestCheckbox_TruthSet(t *testing.T) {
	// WHAT: Only the truth set checks a box, case-insensitive and trimmed.
	// WHY: Anything vaguely positive must not tick a consent box.
	for _, s := range []string{"true", "Yes", "1", "on", "CHECKED", " TRUE ", "yEs"} {
		if !Checkbox(field.String(s)) {
			t.Errorf("Checkbox(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"false", "no", "0", "off", "", "y", "truthy", "checked please"} {
		if Checkbox(field.String(s)) {
			t.Errorf("Checkbox(%q) = true, want false", s)
		}
	}
	if !Checkbox(field.Bool(true)) || Checkbox(field.Bool(false)) {
		t.Error("native booleans must pass through")
	}
	if !Checkbox(field.Number(1)) {
		t.Error("number 1 should be true")
	}
	if Checkbox(field.Null()) {
		t.Error("null should be false")
	}
}

func TestSelect_ExactValueFirst(t *testing.T) {
	opts := []field.Option{
		{Value: "CA", Text: "US and Canada"},
		{Value: "US", Text: "United States"},
	}
	v, err := Coerce(field.String("US"), selectDesc(opts))
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues(); len(got) != 1 || got[0] != "US" {
		t.Fatalf("got %v, want [US]", got)
	}
}

func TestSelect_Tiers(t *testing.T) {
	// WHAT: Value, then text, then containment are tried in order.
	// WHY: The earliest tier wins when several would match.
	cases := []struct {
		input string
		want  string
	}{
		{"US", "US"},
		{"canada", "CA"},
		{"UNITED STATES", "US"},
		{"Canada, eh", "CA"},
		{"United", "US"},
		{"Kanada", ""},
	}
	for _, tc := range cases {
		v, err := Coerce(field.String(tc.input), selectDesc(countries))
		if tc.want == "" {
			if !errors.Is(err, ErrNoOptionMatch) {
				t.Errorf("%q: err = %v, want ErrNoOptionMatch", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.input, err)
			continue
		}
		if got := v.OptionValues()[0]; got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSelect_ContainmentOfInput(t *testing.T) {
	// The input is looked for inside option text, so "Canada" is found in
	// a longer caption.
	opts := []field.Option{
		{Value: "us", Text: "United States of America"},
		{Value: "ca", Text: "Canada, eh"},
	}
	v, err := Coerce(field.String("Canada"), selectDesc(opts))
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues()[0]; got != "ca" {
		t.Fatalf("got %q, want ca", got)
	}
}

func TestSelect_NoMatchTypo(t *testing.T) {
	// WHAT: A misspelled option yields NoOptionMatch.
	// WHY: Guessing a wrong option is worse than leaving it empty.
	_, err := Coerce(field.String("Kanada"), selectDesc(countries))
	if !errors.Is(err, ErrNoOptionMatch) {
		t.Fatalf("err = %v, want ErrNoOptionMatch", err)
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err is %T, want *Error", err)
	}
	if ce.Field != "country" || ce.Input != "Kanada" {
		t.Errorf("error = %+v", ce)
	}
}

func TestSelect_EmptyInputNeverMatches(t *testing.T) {
	opts := []field.Option{{Value: "", Text: "Choose..."}, {Value: "a", Text: "A"}}
	for _, in := range []field.Scalar{field.String(""), field.String("  "), field.Null()} {
		if _, err := Coerce(in, selectDesc(opts)); !errors.Is(err, ErrNoOptionMatch) {
			t.Errorf("input %q: err = %v, want ErrNoOptionMatch", in.String(), err)
		}
	}
}

func TestSelect_NumericNearest(t *testing.T) {
	// WHAT: A number picks the option with the nearest leading number.
	// WHY: Experience dropdowns list ranges, models answer with a count.
	opts := []field.Option{{Value: "0-1"}, {Value: "2-3"}, {Value: "4-5"}, {Value: "5+"}}
	d := field.Descriptor{ID: "years", Kind: field.KindSelectSingle, Options: opts}

	v, err := Coerce(field.Number(4.4), d)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues()[0]; got != "4-5" {
		t.Fatalf("4.4 -> %q, want 4-5", got)
	}

	v, err = Coerce(field.String("10"), d)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues()[0]; got != "5+" {
		t.Fatalf("10 -> %q, want 5+", got)
	}
}

func TestSelect_NumericBeatsContainment(t *testing.T) {
	// WHAT: a bare number picks the numerically nearest option, not one whose
	// text merely contains the digit.
	// WHY: "0" sits inside "6-10 years" and "5" inside "4-5"; containment
	// would pick the wrong range.
	years := field.Descriptor{ID: "years", Kind: field.KindSelectSingle, Options: []field.Option{
		{Value: "a", Text: "1-2 years"},
		{Value: "b", Text: "3-5 years"},
		{Value: "c", Text: "6-10 years"},
		{Value: "d", Text: "10+ years"},
	}}
	v, err := Coerce(field.String("0"), years)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues()[0]; got != "a" {
		t.Errorf("0 -> %q, want a (1-2 years)", got)
	}

	short := field.Descriptor{ID: "exp", Kind: field.KindSelectSingle, Options: []field.Option{
		{Value: "0-1"}, {Value: "2-3"}, {Value: "4-5"}, {Value: "5+"},
	}}
	v, err = Coerce(field.String("5"), short)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues()[0]; got != "5+" {
		t.Errorf("5 -> %q, want 5+", got)
	}
}

func TestNearestNumeric_TieGoesFirst(t *testing.T) {
	opts := []field.Option{{Value: "x", Text: "2 years"}, {Value: "y", Text: "4 years"}, {Value: "none", Text: "Other"}}
	got, ok := NearestNumeric(3, opts)
	if !ok || got.Value != "x" {
		t.Fatalf("got %+v %v, want x", got, ok)
	}
	if _, ok := NearestNumeric(3, []field.Option{{Value: "n/a", Text: "Other"}}); ok {
		t.Fatal("options without numbers must not match")
	}
}

func TestSelectMultiple(t *testing.T) {
	opts := []field.Option{
		{Value: "go", Text: "Go"},
		{Value: "py", Text: "Python"},
		{Value: "rs", Text: "Rust"},
	}
	d := field.Descriptor{ID: "langs", Kind: field.KindSelectMultiple, Options: opts}

	v, err := Coerce(field.List(field.String("go"), field.String("rust")), d)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues(); len(got) != 2 || got[0] != "go" || got[1] != "rs" {
		t.Fatalf("list: got %v", got)
	}

	v, err = Coerce(field.String("Python, Go"), d)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.OptionValues(); len(got) != 2 || got[0] != "py" || got[1] != "go" {
		t.Fatalf("comma: got %v", got)
	}

	if _, err := Coerce(field.String("Go, Cobol"), d); !errors.Is(err, ErrNoOptionMatch) {
		t.Fatalf("partial failure: err = %v, want ErrNoOptionMatch", err)
	}
}

func TestRadio(t *testing.T) {
	// WHAT: Radio groups match by value, then by label containment.
	// WHY: Radio labels are usually longer than the answer.
	group := field.Descriptor{
		ID:   "relocate",
		Kind: field.KindRadio,
		Options: []field.Option{
			{Value: "y", Text: "Yes, I can relocate"},
			{Value: "n", Text: "No"},
		},
	}
	v, err := Coerce(field.String("n"), group)
	if err != nil || v.OptionValues()[0] != "n" {
		t.Fatalf("exact value: %v %v", v, err)
	}
	v, err = Coerce(field.String("yes"), group)
	if err != nil || v.OptionValues()[0] != "y" {
		t.Fatalf("label containment: %v %v", v, err)
	}
	if _, err := Coerce(field.String("maybe"), group); !errors.Is(err, ErrNoOptionMatch) {
		t.Fatalf("err = %v, want ErrNoOptionMatch", err)
	}

	single := field.Descriptor{ID: "agree", Kind: field.KindRadio}
	v, err = Coerce(field.String("on"), single)
	if err != nil || v.Checked == nil || !*v.Checked {
		t.Fatalf("isolated radio: %v %v", v, err)
	}
}

func TestNumber(t *testing.T) {
	// WHAT: Numbers are normalised and garbage clears to empty.
	// WHY: Typing text into a number input breaks validation.
	cases := []struct {
		in   field.Scalar
		want string
	}{
		{field.String("42"), "42"},
		{field.String(" 3.50 "), "3.5"},
		{field.Number(7), "7"},
		{field.String("five"), ""},
		{field.Null(), ""},
	}
	for _, tc := range cases {
		v, err := Coerce(tc.in, field.Descriptor{ID: "n", Kind: field.KindNumber})
		if err != nil {
			t.Fatal(err)
		}
		if v.Text != tc.want {
			t.Errorf("%q -> %q, want %q", tc.in.String(), v.Text, tc.want)
		}
	}
}

func TestFile_AlwaysUnsupported(t *testing.T) {
	d := field.Descriptor{ID: "resume", Kind: field.KindFile}
	for _, in := range []field.Scalar{field.String("cv.pdf"), field.Null(), field.Bool(true), field.Number(1), field.String("")} {
		_, err := Coerce(in, d)
		if !errors.Is(err, ErrUnsupportedFieldType) {
			t.Errorf("%q: err = %v, want ErrUnsupportedFieldType", in.String(), err)
		}
	}
}

func TestTextAndDatesStringify(t *testing.T) {
	for _, k := range []field.Kind{field.KindText, field.KindEmail, field.KindTextarea, field.KindDate, field.KindTime, field.KindUnknown} {
		v, err := Coerce(field.String("2024-13-45"), field.Descriptor{ID: "x", Kind: k})
		if err != nil || v.Text != "2024-13-45" {
			t.Errorf("%s: %+v %v", k, v, err)
		}
	}
	v, _ := Coerce(field.Null(), field.Descriptor{ID: "x", Kind: field.KindText})
	if v.Text != "" {
		t.Errorf("null -> %q, want empty", v.Text)
	}
}

// Coercing an already-coerced value must give the same value back.
func TestCoerce_FixedPoint(t *testing.T) {
	// WHAT: Coercing an already coerced value changes nothing.
	// WHY: The second deterministic pass re-coerces resolved values.
	descs := []struct {
		d  field.Descriptor
		in field.Scalar
	}{
		{field.Descriptor{ID: "t", Kind: field.KindText}, field.String("Igor")},
		{field.Descriptor{ID: "n", Kind: field.KindNumber}, field.String("4.20")},
		{field.Descriptor{ID: "n2", Kind: field.KindRange}, field.String("abc")},
		{field.Descriptor{ID: "c", Kind: field.KindCheckbox}, field.String("Yes")},
		{selectDesc(countries), field.String("canada")},
		{field.Descriptor{ID: "y", Kind: field.KindSelectSingle, Options: []field.Option{{Value: "0-1"}, {Value: "2-3"}}}, field.Number(2.2)},
		{field.Descriptor{ID: "m", Kind: field.KindSelectMultiple, Options: countries}, field.String("US, Canada")},
		{field.Descriptor{ID: "r", Kind: field.KindRadio, Options: countries}, field.String("united")},
		{field.Descriptor{ID: "d", Kind: field.KindDate}, field.String("2024-01-02")},
	}
	for _, tc := range descs {
		first, err := Coerce(tc.in, tc.d)
		if err != nil {
			t.Fatalf("%s: %v", tc.d.ID, err)
		}
		second, err := Coerce(first.Scalar(), tc.d)
		if err != nil {
			t.Fatalf("%s: recoerce: %v", tc.d.ID, err)
		}
		if first.String() != second.String() {
			t.Errorf("%s: %q then %q", tc.d.ID, first.String(), second.String())
		}
	}
}

func TestSetLogger_UnknownKind(t *testing.T) {
	// WHAT: the text fallback for an unknown kind is logged on the logger
	// given to SetLogger.
	// WHY: the service routes these diagnostics to its own JSON handler.
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	v, err := Coerce(field.String("x"), field.Descriptor{ID: "odd", Kind: field.KindUnknown})
	if err != nil || v.Text != "x" {
		t.Fatalf("got %+v %v", v, err)
	}
	if !strings.Contains(buf.String(), "field=odd") {
		t.Errorf("log = %q", buf.String())
	}
}
