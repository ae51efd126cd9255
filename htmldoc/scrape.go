package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/formfill/field"
)

var skipTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"reset":  true,
	"image":  true,
}

// Descriptors scrapes the form controls of the document. Named radio buttons
// collapse into one descriptor per group whose options are the members.
// Ids come from the id attribute, then the name, then a position counter,
// and are made unique.
func (d *Document) Descriptors() []field.Descriptor {
	var out []field.Descriptor
	groups := make(map[string]int)
	used := make(map[string]bool)

	unique := func(base string, pos int) string {
		if base == "" {
			base = fmt.Sprintf("field_%d", pos)
		}
		id := base
		for i := 2; used[id]; i++ {
			id = fmt.Sprintf("%s_%d", base, i)
		}
		used[id] = true
		return id
	}

	for pos, n := range d.controls() {
		typ := strings.ToLower(getAttr(n, "type"))
		if n.DataAtom == atom.Input && skipTypes[typ] {
			continue
		}
		kind := field.ParseKind(n.Data, typ, hasAttr(n, "multiple"))
		name := getAttr(n, "name")
		htmlID := getAttr(n, "id")

		if kind == field.KindRadio && name != "" {
			opt := field.Option{Value: "on", Text: labelFor(d.root, n), Selected: hasAttr(n, "checked")}
			if hasAttr(n, "value") {
				opt.Value = getAttr(n, "value")
			}
			if i, ok := groups[name]; ok {
				g := &out[i]
				g.Options = append(g.Options, opt)
				g.Required = g.Required || required(n)
				if opt.Selected {
					g.CurrentValue = opt.Value
				}
				continue
			}
			desc := field.Descriptor{
				ID:       unique(name, pos),
				Kind:     kind,
				Label:    groupLabel(n, name),
				Name:     name,
				Class:    getAttr(n, "class"),
				Required: required(n),
				Disabled: disabled(n),
				Options:  []field.Option{opt},
			}
			if opt.Selected {
				desc.CurrentValue = opt.Value
			}
			groups[name] = len(out)
			out = append(out, desc)
			continue
		}

		desc := field.Descriptor{
			Kind:        kind,
			Label:       labelFor(d.root, n),
			Placeholder: getAttr(n, "placeholder"),
			Name:        name,
			HTMLID:      htmlID,
			Class:       getAttr(n, "class"),
			Required:    required(n),
			Disabled:    disabled(n),
			ReadOnly:    hasAttr(n, "readonly"),
		}
		switch n.DataAtom {
		case atom.Select:
			desc.Options = options(n)
			if len(desc.Options) == 0 {
				continue
			}
			for _, o := range desc.Options {
				if o.Selected {
					desc.CurrentValue = o.Value
					break
				}
			}
		case atom.Textarea:
			desc.CurrentValue = textContent(n)
		default:
			desc.CurrentValue = getAttr(n, "value")
		}
		base := htmlID
		if base == "" {
			base = name
		}
		desc.ID = unique(base, pos)
		out = append(out, desc)
	}
	return out
}

func required(n *html.Node) bool {
	return hasAttr(n, "required") || getAttr(n, "aria-required") == "true"
}

// groupLabel is the legend of the enclosing fieldset, else the aria-label of
// an enclosing radiogroup, else the group name.
func groupLabel(n *html.Node, name string) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if p.DataAtom == atom.Fieldset {
			for c := p.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == atom.Legend {
					if text := textContent(c); text != "" {
						return text
					}
				}
			}
		}
		if getAttr(p, "role") == "radiogroup" {
			if l := strings.TrimSpace(getAttr(p, "aria-label")); l != "" {
				return l
			}
		}
	}
	return name
}
