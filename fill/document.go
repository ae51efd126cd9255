package fill

import (
	"context"

	"github.com/hazyhaar/formfill/field"
)

// Document is the live page the filler writes into. Lookups return a nil
// Element (or an empty slice) with a nil error when nothing matches; an
// error means the document itself could not be queried.
type Document interface {
	ElementByID(ctx context.Context, id string) (Element, error)
	ElementsByName(ctx context.Context, name string) ([]Element, error)
	ElementsByClass(ctx context.Context, class string) ([]Element, error)
	// Controls returns every input, select and textarea in document order.
	Controls(ctx context.Context) ([]Element, error)
}

// Info is a snapshot of a control's state.
type Info struct {
	Tag      string
	Type     string
	ID       string
	Name     string
	Value    string
	Label    string
	Checked  bool
	Disabled bool
	ReadOnly bool
	Visible  bool
	Multiple bool
	Selected []string // values of selected options
	Options  []field.Option
}

// Fillable reports whether the control accepts input.
func (i Info) Fillable() bool {
	return !i.Disabled && !i.ReadOnly && i.Visible
}

// Technique selects how synthetic events are built.
type Technique int

const (
	// EventConstructor uses new Event(type, {bubbles: true}).
	EventConstructor Technique = iota
	// LegacyCreateEvent uses document.createEvent + initEvent.
	LegacyCreateEvent
)

func (t Technique) String() string {
	switch t {
	case EventConstructor:
		return "constructor"
	case LegacyCreateEvent:
		return "legacy"
	}
	return "unknown"
}

// Element is one control of a Document.
type Element interface {
	Info(ctx context.Context) (Info, error)
	// SetValue assigns the value property.
	SetValue(ctx context.Context, v string) error
	SetChecked(ctx context.Context, checked bool) error
	// SelectOptions selects exactly the options whose value is listed.
	SelectOptions(ctx context.Context, values []string) error
	// SelectByText selects the first option whose text equals text
	// (case-insensitive), or contains it when partial is set.
	SelectByText(ctx context.Context, text string, partial bool) (bool, error)
	Dispatch(ctx context.Context, event string, t Technique) error
	// RawSetValue assigns the value property with no side effects.
	RawSetValue(ctx context.Context, v string) error
}
