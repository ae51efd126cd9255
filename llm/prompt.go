package llm

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/hazyhaar/formfill/field"
)

// Request is everything the model sees for one fill pass.
type Request struct {
	Descriptors  []field.Descriptor `json:"descriptors"`
	Resume       string             `json:"resume,omitempty"`
	Profile      map[string]string  `json:"profile,omitempty"`
	Instructions string             `json:"instructions,omitempty"`
}

// promptField is the compact field shape sent to the model.
type promptField struct {
	ID          string   `json:"id"`
	Kind        string   `json:"type"`
	Label       string   `json:"label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
}

const instructions = `You fill job application forms on behalf of the candidate described below.
Answer with ONE JSON object and nothing else: no prose, no markdown fences.
Use each field "id" as the key. Values are strings, numbers, booleans or null.
For fields with "options", answer with one of the listed option values.
For checkboxes answer true or false. Use null when the candidate data does not
answer the question. Never invent contact details.`

// BuildPrompt renders the request as a single prompt.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(instructions)

	if s := strings.TrimSpace(req.Instructions); s != "" {
		b.WriteString("\n\nAdditional instructions:\n")
		b.WriteString(s)
	}

	if s := strings.TrimSpace(req.Resume); s != "" {
		b.WriteString("\n\n[RESUME]\n")
		b.WriteString(s)
	}

	if len(req.Profile) > 0 {
		keys := make([]string, 0, len(req.Profile))
		for k := range req.Profile {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n\n[PROFILE]\n")
		for _, k := range keys {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(req.Profile[k])
			b.WriteByte('\n')
		}
	}

	fields := make([]promptField, 0, len(req.Descriptors))
	for _, d := range req.Descriptors {
		if d.Disabled || d.ReadOnly || d.Kind == field.KindFile {
			continue
		}
		pf := promptField{
			ID:          d.ID,
			Kind:        string(d.Kind),
			Label:       d.Label,
			Placeholder: d.Placeholder,
			Required:    d.Required,
		}
		for _, o := range d.Options {
			if o.Value == "" {
				continue
			}
			if o.Text != "" && o.Text != o.Value {
				pf.Options = append(pf.Options, o.Value+" ("+o.Text+")")
			} else {
				pf.Options = append(pf.Options, o.Value)
			}
		}
		fields = append(fields, pf)
	}
	js, _ := json.MarshalIndent(fields, "", "  ")
	b.WriteString("\n\n[FIELDS]\n")
	b.Write(js)
	b.WriteByte('\n')
	return b.String()
}
