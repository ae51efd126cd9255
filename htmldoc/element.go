package htmldoc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/fill"
)

// Element is one control of a Document.
type Element struct {
	doc *Document
	n   *html.Node
}

// Info implements fill.Element.
func (e *Element) Info(_ context.Context) (fill.Info, error) {
	n := e.n
	info := fill.Info{
		Tag:      n.Data,
		Type:     strings.ToLower(getAttr(n, "type")),
		ID:       getAttr(n, "id"),
		Name:     getAttr(n, "name"),
		Label:    labelFor(e.doc.root, n),
		Checked:  hasAttr(n, "checked"),
		Disabled: disabled(n),
		ReadOnly: hasAttr(n, "readonly"),
		Visible:  visible(n),
		Multiple: hasAttr(n, "multiple"),
	}
	switch n.DataAtom {
	case atom.Textarea:
		info.Value = textContent(n)
	case atom.Select:
		info.Options = options(n)
		for _, o := range info.Options {
			if o.Selected {
				info.Selected = append(info.Selected, o.Value)
			}
		}
		if len(info.Selected) > 0 {
			info.Value = info.Selected[0]
		}
	default:
		info.Value = getAttr(n, "value")
		if info.Type == "checkbox" || info.Type == "radio" {
			if !hasAttr(n, "value") {
				info.Value = "on"
			}
		}
	}
	return info, nil
}

// SetValue implements fill.Element.
func (e *Element) SetValue(ctx context.Context, v string) error {
	switch e.n.DataAtom {
	case atom.Select:
		return e.SelectOptions(ctx, []string{v})
	case atom.Textarea:
		setText(e.n, v)
		return nil
	}
	setAttr(e.n, "value", v)
	return nil
}

// SetChecked implements fill.Element. Checking a radio unchecks the other
// members of its group.
func (e *Element) SetChecked(_ context.Context, checked bool) error {
	typ := strings.ToLower(getAttr(e.n, "type"))
	if e.n.DataAtom != atom.Input || (typ != "checkbox" && typ != "radio") {
		return fmt.Errorf("htmldoc: %s is not checkable", describe(e.n))
	}
	if !checked {
		removeAttr(e.n, "checked")
		return nil
	}
	if name := getAttr(e.n, "name"); typ == "radio" && name != "" {
		for _, m := range e.doc.controls() {
			if m != e.n && getAttr(m, "name") == name && strings.EqualFold(getAttr(m, "type"), "radio") {
				removeAttr(m, "checked")
			}
		}
	}
	setAttr(e.n, "checked", "")
	return nil
}

// SelectOptions implements fill.Element. A single select keeps only the
// first requested value.
func (e *Element) SelectOptions(_ context.Context, values []string) error {
	if e.n.DataAtom != atom.Select {
		return fmt.Errorf("htmldoc: %s is not a select", describe(e.n))
	}
	if !hasAttr(e.n, "multiple") && len(values) > 1 {
		values = values[:1]
	}
	for _, o := range optionNodes(e.n) {
		if contains(values, optionValue(o)) {
			setAttr(o, "selected", "")
		} else {
			removeAttr(o, "selected")
		}
	}
	return nil
}

// SelectByText implements fill.Element.
func (e *Element) SelectByText(_ context.Context, text string, partial bool) (bool, error) {
	if e.n.DataAtom != atom.Select {
		return false, fmt.Errorf("htmldoc: %s is not a select", describe(e.n))
	}
	want := strings.ToLower(strings.TrimSpace(text))
	if want == "" {
		return false, nil
	}
	opts := optionNodes(e.n)
	for _, o := range opts {
		got := strings.ToLower(textContent(o))
		if got == want || (partial && strings.Contains(got, want)) {
			if !hasAttr(e.n, "multiple") {
				for _, other := range opts {
					removeAttr(other, "selected")
				}
			}
			setAttr(o, "selected", "")
			return true, nil
		}
	}
	return false, nil
}

// Dispatch implements fill.Element by recording the event.
func (e *Element) Dispatch(_ context.Context, event string, t fill.Technique) error {
	if e.doc.refuse[t] {
		return fmt.Errorf("htmldoc: %s events refused", t)
	}
	target := getAttr(e.n, "id")
	if target == "" {
		target = getAttr(e.n, "name")
	}
	e.doc.events = append(e.doc.events, Event{Target: target, Type: event, Technique: t})
	return nil
}

// RawSetValue implements fill.Element.
func (e *Element) RawSetValue(_ context.Context, v string) error {
	if e.n.DataAtom == atom.Textarea {
		setText(e.n, v)
		return nil
	}
	setAttr(e.n, "value", v)
	return nil
}

func describe(n *html.Node) string {
	if id := getAttr(n, "id"); id != "" {
		return n.Data + "#" + id
	}
	if name := getAttr(n, "name"); name != "" {
		return n.Data + "[name=" + name + "]"
	}
	return n.Data
}

func setText(n *html.Node, s string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

func optionNodes(sel *html.Node) []*html.Node {
	var out []*html.Node
	walk(sel, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			out = append(out, n)
		}
		return true
	})
	return out
}

func optionValue(o *html.Node) string {
	if hasAttr(o, "value") {
		return getAttr(o, "value")
	}
	return textContent(o)
}

func options(sel *html.Node) []field.Option {
	nodes := optionNodes(sel)
	out := make([]field.Option, 0, len(nodes))
	for _, o := range nodes {
		out = append(out, field.Option{
			Value:    optionValue(o),
			Text:     textContent(o),
			Selected: hasAttr(o, "selected"),
		})
	}
	return out
}

// textContent joins the trimmed text nodes of a subtree. Script, style and
// the contents of nested controls are skipped.
func textContent(n *html.Node) string {
	var parts []string
	var rec func(*html.Node, bool)
	rec = func(c *html.Node, top bool) {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		if c.Type == html.ElementNode && !top {
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Select, atom.Textarea:
				return
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			rec(k, false)
		}
	}
	rec(n, true)
	return strings.Join(parts, " ")
}

// labelFor finds a caption: <label for=id>, an enclosing <label>, then
// aria-label.
func labelFor(root, n *html.Node) string {
	if id := getAttr(n, "id"); id != "" {
		var text string
		walk(root, func(l *html.Node) bool {
			if l.Type == html.ElementNode && l.DataAtom == atom.Label && getAttr(l, "for") == id {
				text = textContent(l)
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			if text := textContent(p); text != "" {
				return text
			}
			break
		}
	}
	return strings.TrimSpace(getAttr(n, "aria-label"))
}

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
}

func hasHiddenStyle(n *html.Node) bool {
	style := getAttr(n, "style")
	if style == "" {
		return false
	}
	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return true
		}
	}
	return false
}

// visible approximates a rendered box: not type=hidden, and neither the
// element nor an ancestor is hidden by attribute or inline style.
func visible(n *html.Node) bool {
	if strings.EqualFold(getAttr(n, "type"), "hidden") {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if hasAttr(p, "hidden") || hasHiddenStyle(p) {
			return false
		}
	}
	return true
}

// disabled covers the attribute and a disabled enclosing fieldset.
func disabled(n *html.Node) bool {
	if hasAttr(n, "disabled") {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Fieldset && hasAttr(p, "disabled") {
			return true
		}
	}
	return false
}
