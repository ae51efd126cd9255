// Package fill applies reconciled mappings to a live document and reports a
// per-field outcome. One field's failure never stops the pass.
package fill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hazyhaar/formfill/field"
)

// DefaultDelay is the pause between two fields.
const DefaultDelay = 50 * time.Millisecond

// Reasons recorded on outcomes.
const (
	ReasonNotFound    = "Element not found"
	ReasonNotFillable = "Not fillable"
)

var errNotApplied = errors.New("value did not stick")

// Filler writes values into one Document. Build one per fill pass.
type Filler struct {
	doc    Document
	delay  time.Duration
	logger *slog.Logger
}

// Option configures a Filler.
type Option func(*Filler)

// WithDelay sets the pause between fields. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(f *Filler) { f.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filler) { f.logger = l }
}

// New creates a Filler for doc.
func New(doc Document, opts ...Option) *Filler {
	f := &Filler{doc: doc, delay: DefaultDelay}
	for _, o := range opts {
		o(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fill applies every mapped value in order and returns the report. Mappings
// that are not Mapped are reported as skipped with their reason. Fields are
// processed one at a time with a pause between writes so the page can settle.
func (f *Filler) Fill(ctx context.Context, mappings []field.Mapping) field.Report {
	outcomes := make([]field.Outcome, 0, len(mappings))
	touched := false
	for _, m := range mappings {
		d := m.Descriptor
		out := field.Outcome{ID: d.ID, Label: d.DisplayName(), Kind: d.Kind}

		if m.Status != field.Mapped || m.Resolved == nil {
			out.Status, out.Reason = field.FillSkipped, skipReason(m)
			outcomes = append(outcomes, out)
			continue
		}

		if touched && f.delay > 0 {
			time.Sleep(f.delay)
		}
		touched = true

		out.Status, out.Reason = f.fillOne(ctx, d, *m.Resolved)
		f.logger.Debug("fill: field", "field", d.ID, "status", out.Status, "reason", out.Reason)
		outcomes = append(outcomes, out)
	}

	rep := field.NewReport(outcomes)
	f.logger.Info("fill: pass done",
		"filled", rep.Filled, "failed", rep.Failed, "skipped", rep.Skipped, "success_rate", rep.SuccessRate)
	return rep
}

func skipReason(m field.Mapping) string {
	reason := m.Reason
	if reason == "" {
		reason = string(m.Status)
	}
	if m.Status == field.Unmapped {
		return "unmapped: " + reason
	}
	return reason
}

// fillOne isolates a single field: lookup, fillability, apply. A panic or an
// apply error degrades to a raw value assignment on the located element.
func (f *Filler) fillOne(ctx context.Context, d field.Descriptor, v field.Value) (status field.FillStatus, reason string) {
	if d.Kind == field.KindFile {
		return field.FillSkipped, "unsupported field type"
	}

	var el Element
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic: %v", r)
			if el == nil {
				status, reason = field.Failed, cause.Error()
				return
			}
			status, reason = f.degrade(ctx, d, el, v, cause)
		}
	}()

	el, err := f.locate(ctx, d, v)
	if err != nil {
		return field.Failed, err.Error()
	}
	if el == nil {
		return field.Failed, ReasonNotFound
	}

	info, err := el.Info(ctx)
	if err != nil {
		return f.degrade(ctx, d, el, v, err)
	}
	if !info.Fillable() {
		return field.FillSkipped, ReasonNotFillable
	}

	if err := f.apply(ctx, d, el, v); err != nil {
		if errors.Is(err, errNotApplied) {
			return field.Failed, err.Error()
		}
		return f.degrade(ctx, d, el, v, err)
	}
	return field.Filled, ""
}

// degrade sets the raw value property with no events.
func (f *Filler) degrade(ctx context.Context, d field.Descriptor, el Element, v field.Value, cause error) (field.FillStatus, string) {
	f.logger.Warn("fill: degrading to raw value", "field", d.ID, "error", cause)
	if err := rawSet(ctx, el, v.String()); err != nil {
		return field.Failed, cause.Error()
	}
	return field.Filled, "raw value set without events: " + cause.Error()
}

func rawSet(ctx context.Context, el Element, s string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return el.RawSetValue(ctx, s)
}

// locate finds the live control: id, name, class, then label scan.
func (f *Filler) locate(ctx context.Context, d field.Descriptor, v field.Value) (Element, error) {
	if d.Grouped() && d.Name != "" {
		if el, err := f.radioMember(ctx, d, v); el != nil || err != nil {
			return el, err
		}
	}

	for _, id := range []string{d.ID, d.HTMLID} {
		if id == "" {
			continue
		}
		el, err := f.doc.ElementByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fill: lookup id %q: %w", id, err)
		}
		if el != nil {
			return el, nil
		}
	}

	if d.Name != "" {
		els, err := f.doc.ElementsByName(ctx, d.Name)
		if err != nil {
			return nil, fmt.Errorf("fill: lookup name %q: %w", d.Name, err)
		}
		if len(els) > 0 {
			return els[0], nil
		}
	}

	if d.Class != "" {
		els, err := f.doc.ElementsByClass(ctx, d.Class)
		if err != nil {
			return nil, fmt.Errorf("fill: lookup class %q: %w", d.Class, err)
		}
		if len(els) > 0 {
			return els[0], nil
		}
	}

	if label := strings.ToLower(strings.TrimSpace(d.Label)); label != "" {
		els, err := f.doc.Controls(ctx)
		if err != nil {
			return nil, fmt.Errorf("fill: scan controls: %w", err)
		}
		for _, el := range els {
			info, err := el.Info(ctx)
			if err != nil {
				continue
			}
			if info.Label != "" && strings.Contains(strings.ToLower(info.Label), label) {
				return el, nil
			}
		}
	}
	return nil, nil
}

// radioMember picks the group member whose value is the resolved option.
func (f *Filler) radioMember(ctx context.Context, d field.Descriptor, v field.Value) (Element, error) {
	if len(v.Options) == 0 {
		return nil, nil
	}
	els, err := f.doc.ElementsByName(ctx, d.Name)
	if err != nil {
		return nil, fmt.Errorf("fill: lookup name %q: %w", d.Name, err)
	}
	want := v.Options[0].Value
	for _, el := range els {
		info, err := el.Info(ctx)
		if err == nil && info.Value == want {
			return el, nil
		}
	}
	return nil, nil
}

func (f *Filler) apply(ctx context.Context, d field.Descriptor, el Element, v field.Value) error {
	switch d.Kind {
	case field.KindText, field.KindEmail, field.KindTel, field.KindURL, field.KindPassword,
		field.KindNumber, field.KindRange, field.KindTextarea,
		field.KindDate, field.KindDatetime, field.KindTime:
		return f.applyText(ctx, el, v.Text)

	case field.KindCheckbox:
		return f.applyChecked(ctx, el, v)

	case field.KindRadio:
		if v.Checked != nil {
			return f.applyChecked(ctx, el, v)
		}
		return f.applyRadio(ctx, d, el, v)

	case field.KindSelectSingle, field.KindSelectMultiple:
		return f.applySelect(ctx, el, v)

	case field.KindFile:
		return errors.New("unsupported field type")

	case field.KindUnknown:
		f.logger.Debug("fill: unknown kind, writing text", "field", d.ID)
		return f.applyText(ctx, el, v.String())
	}
	f.logger.Debug("fill: unrecognised kind, writing text", "field", d.ID, "kind", string(d.Kind))
	return f.applyText(ctx, el, v.String())
}

func (f *Filler) applyText(ctx context.Context, el Element, s string) error {
	if err := el.SetValue(ctx, s); err != nil {
		return err
	}
	f.notify(ctx, el, "input", "change", "blur")
	return nil
}

func (f *Filler) applyChecked(ctx context.Context, el Element, v field.Value) error {
	want := v.Checked != nil && *v.Checked
	if err := el.SetChecked(ctx, want); err != nil {
		return err
	}
	f.notify(ctx, el, "change")
	return nil
}

// applyRadio checks the located member when it carries the resolved value,
// then verifies it stuck. Otherwise the named group is searched again by
// exact then partial label text. An unnamed radio has no group to search.
func (f *Filler) applyRadio(ctx context.Context, d field.Descriptor, el Element, v field.Value) error {
	opt := v.Options[0]
	if info, err := el.Info(ctx); err == nil && info.Value == opt.Value {
		if err := el.SetChecked(ctx, true); err != nil {
			return err
		}
		f.notify(ctx, el, "change")
		if after, err := el.Info(ctx); err == nil && after.Checked {
			return nil
		}
	}

	text := opt.Text
	if text == "" {
		text = opt.Value
	}
	if d.Name == "" {
		return errNotApplied
	}
	members, err := f.doc.ElementsByName(ctx, d.Name)
	if err != nil || len(members) == 0 {
		return errNotApplied
	}
	for _, partial := range []bool{false, true} {
		for _, m := range members {
			info, err := m.Info(ctx)
			if err != nil || info.Type != "radio" || !labelMatches(info, text, partial) {
				continue
			}
			if err := m.SetChecked(ctx, true); err != nil {
				continue
			}
			f.notify(ctx, m, "change")
			if after, err := m.Info(ctx); err == nil && after.Checked {
				return nil
			}
		}
	}
	return errNotApplied
}

func labelMatches(info Info, text string, partial bool) bool {
	l := strings.ToLower(strings.TrimSpace(info.Label))
	t := strings.ToLower(strings.TrimSpace(text))
	if l == "" || t == "" {
		return false
	}
	if partial {
		return strings.Contains(l, t)
	}
	return l == t
}

// applySelect selects by value, then verifies. If the page did not keep the
// selection, each option is retried by exact then partial text.
func (f *Filler) applySelect(ctx context.Context, el Element, v field.Value) error {
	want := v.OptionValues()
	if err := el.SelectOptions(ctx, want); err != nil {
		return err
	}
	f.notify(ctx, el, "change")
	if selected(ctx, el, want) {
		return nil
	}

	for _, opt := range v.Options {
		text := opt.Text
		if text == "" {
			text = opt.Value
		}
		ok, err := el.SelectByText(ctx, text, false)
		if err == nil && !ok {
			ok, err = el.SelectByText(ctx, text, true)
		}
		if err != nil {
			return err
		}
		if !ok {
			return errNotApplied
		}
	}
	f.notify(ctx, el, "change")
	if !selected(ctx, el, want) {
		return errNotApplied
	}
	return nil
}

func selected(ctx context.Context, el Element, want []string) bool {
	info, err := el.Info(ctx)
	if err != nil {
		return false
	}
	for _, w := range want {
		if !slices.Contains(info.Selected, w) {
			return false
		}
	}
	return true
}

// notify dispatches events in order. When both techniques fail for an event
// the remaining events are dropped; the value stays set.
func (f *Filler) notify(ctx context.Context, el Element, events ...string) {
	for _, ev := range events {
		err := dispatch(ctx, el, ev, EventConstructor)
		if err == nil {
			continue
		}
		f.logger.Debug("fill: event constructor failed", "event", ev, "error", err)
		if err = dispatch(ctx, el, ev, LegacyCreateEvent); err == nil {
			continue
		}
		f.logger.Warn("fill: events not dispatched", "event", ev, "error", err)
		return
	}
}

func dispatch(ctx context.Context, el Element, ev string, t Technique) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return el.Dispatch(ctx, ev, t)
}
