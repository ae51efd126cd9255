package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/formfill/field"
)

//go:embed scrape.js
var scrapeJS string

var skipTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"reset":  true,
	"image":  true,
}

// control is one raw control as reported by scrape.js.
type control struct {
	Tag         string         `json:"tag"`
	Type        string         `json:"type"`
	Multiple    bool           `json:"multiple"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Class       string         `json:"class"`
	Label       string         `json:"label"`
	GroupLabel  string         `json:"group_label"`
	Placeholder string         `json:"placeholder"`
	Required    bool           `json:"required"`
	Disabled    bool           `json:"disabled"`
	ReadOnly    bool           `json:"readonly"`
	Value       string         `json:"value"`
	Checked     bool           `json:"checked"`
	Options     []field.Option `json:"options"`
}

// Scrape runs the scraper in page and returns the descriptors of its form
// controls.
func Scrape(ctx context.Context, page *rod.Page) ([]field.Descriptor, error) {
	res, err := page.Context(ctx).Eval(scrapeJS)
	if err != nil {
		return nil, fmt.Errorf("browser: scrape: %w", err)
	}
	var controls []control
	if err := json.Unmarshal([]byte(res.Value.Str()), &controls); err != nil {
		return nil, fmt.Errorf("browser: scrape decode: %w", err)
	}
	return descriptors(controls), nil
}

// descriptors turns raw controls into descriptors. Named radios collapse
// into one descriptor per group; ids come from the id attribute, then the
// name, then the position, and are made unique.
func descriptors(controls []control) []field.Descriptor {
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

	for pos, c := range controls {
		if c.Tag == "input" && skipTypes[c.Type] {
			continue
		}
		kind := field.ParseKind(c.Tag, c.Type, c.Multiple)

		if kind == field.KindRadio && c.Name != "" {
			opt := field.Option{Value: c.Value, Text: c.Label, Selected: c.Checked}
			if i, ok := groups[c.Name]; ok {
				g := &out[i]
				g.Options = append(g.Options, opt)
				g.Required = g.Required || c.Required
				if opt.Selected {
					g.CurrentValue = opt.Value
				}
				continue
			}
			label := c.GroupLabel
			if label == "" {
				label = c.Name
			}
			d := field.Descriptor{
				ID:       unique(c.Name, pos),
				Kind:     kind,
				Label:    label,
				Name:     c.Name,
				Class:    c.Class,
				Required: c.Required,
				Disabled: c.Disabled,
				Options:  []field.Option{opt},
			}
			if opt.Selected {
				d.CurrentValue = opt.Value
			}
			groups[c.Name] = len(out)
			out = append(out, d)
			continue
		}

		if kind == field.KindSelectSingle || kind == field.KindSelectMultiple {
			if len(c.Options) == 0 {
				continue
			}
		} else {
			c.Options = nil
		}
		base := c.ID
		if base == "" {
			base = c.Name
		}
		out = append(out, field.Descriptor{
			ID:           unique(base, pos),
			Kind:         kind,
			Label:        c.Label,
			Placeholder:  c.Placeholder,
			Name:         c.Name,
			HTMLID:       c.ID,
			Class:        c.Class,
			Required:     c.Required,
			Disabled:     c.Disabled,
			ReadOnly:     c.ReadOnly,
			CurrentValue: c.Value,
			Options:      c.Options,
		})
	}
	return out
}
