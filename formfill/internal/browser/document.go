package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/fill"
)

// Document is a fill.Document over a live Chrome page.
type Document struct {
	page *rod.Page
}

var _ fill.Document = (*Document)(nil)

// NewDocument wraps page.
func NewDocument(page *rod.Page) *Document {
	return &Document{page: page}
}

func (d *Document) query(ctx context.Context, js string, args ...any) ([]fill.Element, error) {
	els, err := d.page.Context(ctx).ElementsByJS(rod.Eval(js, args...))
	if err != nil {
		return nil, fmt.Errorf("browser: query: %w", err)
	}
	out := make([]fill.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out, nil
}

func (d *Document) ElementByID(ctx context.Context, id string) (fill.Element, error) {
	els, err := d.query(ctx, `(id) => { const e = document.getElementById(id); return e ? [e] : []; }`, id)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (d *Document) ElementsByName(ctx context.Context, name string) ([]fill.Element, error) {
	return d.query(ctx, `(n) => Array.from(document.getElementsByName(n))`, name)
}

func (d *Document) ElementsByClass(ctx context.Context, class string) ([]fill.Element, error) {
	return d.query(ctx, `(c) => Array.from(document.getElementsByClassName(c))`, class)
}

func (d *Document) Controls(ctx context.Context) ([]fill.Element, error) {
	return d.query(ctx, `() => Array.from(document.querySelectorAll('input, select, textarea'))`)
}

// Element is one control of a live page.
type Element struct {
	el *rod.Element
}

const infoJS = `function () {
  const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const textOf = (n) => {
    if (!n) return '';
    const copy = n.cloneNode(true);
    copy.querySelectorAll('select, textarea, script, style').forEach((x) => x.remove());
    return clean(copy.textContent);
  };
  let label = '';
  if (this.id) {
    label = textOf(document.querySelector('label[for="' + CSS.escape(this.id) + '"]'));
  }
  if (!label) label = textOf(this.closest('label'));
  if (!label) label = clean(this.getAttribute('aria-label'));

  const type = (this.getAttribute('type') || '').toLowerCase();
  const style = getComputedStyle(this);
  const info = {
    tag: this.tagName.toLowerCase(),
    type: type,
    id: this.id || '',
    name: this.getAttribute('name') || '',
    value: this.value || '',
    label: label,
    checked: !!this.checked,
    disabled: this.matches(':disabled'),
    readonly: this.hasAttribute('readonly'),
    visible: style.display !== 'none' && style.visibility !== 'hidden' && this.getClientRects().length > 0,
    multiple: !!this.multiple,
    selected: [],
    options: [],
  };
  if (info.tag === 'select') {
    for (const o of this.options) {
      info.options.push({ value: o.value, text: clean(o.text), selected: o.selected });
      if (o.selected) info.selected.push(o.value);
    }
  }
  return JSON.stringify(info);
}`

type info struct {
	Tag      string         `json:"tag"`
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Value    string         `json:"value"`
	Label    string         `json:"label"`
	Checked  bool           `json:"checked"`
	Disabled bool           `json:"disabled"`
	ReadOnly bool           `json:"readonly"`
	Visible  bool           `json:"visible"`
	Multiple bool           `json:"multiple"`
	Selected []string       `json:"selected"`
	Options  []field.Option `json:"options"`
}

func (e *Element) Info(ctx context.Context) (fill.Info, error) {
	res, err := e.el.Context(ctx).Eval(infoJS)
	if err != nil {
		return fill.Info{}, fmt.Errorf("browser: info: %w", err)
	}
	var i info
	if err := json.Unmarshal([]byte(res.Value.Str()), &i); err != nil {
		return fill.Info{}, fmt.Errorf("browser: info decode: %w", err)
	}
	return fill.Info{
		Tag: i.Tag, Type: i.Type, ID: i.ID, Name: i.Name, Value: i.Value, Label: i.Label,
		Checked: i.Checked, Disabled: i.Disabled, ReadOnly: i.ReadOnly, Visible: i.Visible,
		Multiple: i.Multiple, Selected: i.Selected, Options: i.Options,
	}, nil
}

// SetValue goes through the prototype setter so that frameworks tracking
// the value property see the change.
func (e *Element) SetValue(ctx context.Context, v string) error {
	return e.call(ctx, "set value", `function (v) {
  const proto = this instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
    : this instanceof HTMLSelectElement ? HTMLSelectElement.prototype
    : HTMLInputElement.prototype;
  const d = Object.getOwnPropertyDescriptor(proto, 'value');
  if (d && d.set) { d.set.call(this, v); } else { this.value = v; }
}`, v)
}

func (e *Element) SetChecked(ctx context.Context, checked bool) error {
	return e.call(ctx, "set checked", `function (b) {
  const t = (this.type || '').toLowerCase();
  if (t !== 'checkbox' && t !== 'radio') throw new Error('not checkable: ' + t);
  const d = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'checked');
  d.set.call(this, b);
}`, checked)
}

func (e *Element) SelectOptions(ctx context.Context, values []string) error {
	return e.call(ctx, "select options", `function (vals) {
  if (!(this instanceof HTMLSelectElement)) throw new Error('not a select');
  for (const o of this.options) {
    o.selected = this.multiple ? vals.includes(o.value) : o.value === vals[0];
  }
}`, values)
}

func (e *Element) SelectByText(ctx context.Context, text string, partial bool) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`function (t, partial) {
  if (!(this instanceof HTMLSelectElement)) throw new Error('not a select');
  t = t.trim().toLowerCase();
  if (!t) return false;
  for (const o of this.options) {
    const x = o.text.replace(/\s+/g, ' ').trim().toLowerCase();
    if (x === t || (partial && x.includes(t))) {
      o.selected = true;
      return true;
    }
  }
  return false;
}`, text, partial)
	if err != nil {
		return false, fmt.Errorf("browser: select by text: %w", err)
	}
	return res.Value.Bool(), nil
}

func (e *Element) Dispatch(ctx context.Context, event string, t fill.Technique) error {
	js := `function (type) { this.dispatchEvent(new Event(type, { bubbles: true })); }`
	if t == fill.LegacyCreateEvent {
		js = `function (type) {
  const ev = document.createEvent('HTMLEvents');
  ev.initEvent(type, true, true);
  this.dispatchEvent(ev);
}`
	}
	return e.call(ctx, "dispatch "+event, js, event)
}

func (e *Element) RawSetValue(ctx context.Context, v string) error {
	return e.call(ctx, "raw set", `function (v) { this.value = v; }`, v)
}

func (e *Element) call(ctx context.Context, op, js string, args ...any) error {
	if _, err := e.el.Context(ctx).Eval(js, args...); err != nil {
		return fmt.Errorf("browser: %s: %w", op, err)
	}
	return nil
}
