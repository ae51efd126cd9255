// Package htmldoc is a static fill.Document over a parsed HTML tree. It
// mutates attributes the way a browser mutates properties and records every
// dispatched event, which makes dry runs and tests possible without Chrome.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/formfill/fill"
)

// Event is one synthetic event dispatched on an element.
type Event struct {
	Target    string // id, else name, of the element
	Type      string
	Technique fill.Technique
}

// Document wraps a parsed HTML tree.
type Document struct {
	root   *html.Node
	events []Event
	refuse map[fill.Technique]bool
}

// Option configures a Document.
type Option func(*Document)

// RefuseTechnique makes Dispatch fail for t, the way some pages forbid event
// constructors.
func RefuseTechnique(t fill.Technique) Option {
	return func(d *Document) { d.refuse[t] = true }
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	d := &Document{root: root, refuse: make(map[fill.Technique]bool)}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Events returns the events dispatched so far, in order.
func (d *Document) Events() []Event {
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Render writes the current tree.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// ElementByID implements fill.Document.
func (d *Document) ElementByID(_ context.Context, id string) (fill.Element, error) {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if isControl(n) && getAttr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, nil
	}
	return d.element(found), nil
}

// ElementsByName implements fill.Document.
func (d *Document) ElementsByName(_ context.Context, name string) ([]fill.Element, error) {
	return d.collect(func(n *html.Node) bool { return getAttr(n, "name") == name }), nil
}

// ElementsByClass implements fill.Document. Every class token of class must
// be present on the element.
func (d *Document) ElementsByClass(_ context.Context, class string) ([]fill.Element, error) {
	want := strings.Fields(class)
	if len(want) == 0 {
		return nil, nil
	}
	return d.collect(func(n *html.Node) bool {
		have := strings.Fields(getAttr(n, "class"))
		for _, w := range want {
			if !contains(have, w) {
				return false
			}
		}
		return true
	}), nil
}

// Controls implements fill.Document.
func (d *Document) Controls(_ context.Context) ([]fill.Element, error) {
	return d.collect(func(*html.Node) bool { return true }), nil
}

func (d *Document) collect(keep func(*html.Node) bool) []fill.Element {
	var out []fill.Element
	for _, n := range d.controls() {
		if keep(n) {
			out = append(out, d.element(n))
		}
	}
	return out
}

func (d *Document) controls() []*html.Node {
	var out []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if isControl(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func (d *Document) element(n *html.Node) *Element {
	return &Element{doc: d, n: n}
}

func isControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea:
		return true
	}
	return false
}

// walk visits n and its descendants depth-first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
