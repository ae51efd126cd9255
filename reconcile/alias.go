package reconcile

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Alias ties a concept to the labels that evoke it and the response keys
// that may carry its value.
//
// Triggers are matched as substrings of the normalized field label. Labels
// must equal the normalized field label entirely; use them for short words
// such as "name" that would otherwise match "company name".
type Alias struct {
	Concept  string   `yaml:"concept"`
	Triggers []string `yaml:"triggers"`
	Labels   []string `yaml:"labels,omitempty"`
	Keys     []string `yaml:"keys"`
}

// AliasTable is an ordered list of aliases. Earlier entries win.
type AliasTable struct {
	entries []Alias
}

// NewAliasTable builds a table from entries, merging duplicates by concept.
func NewAliasTable(entries ...Alias) *AliasTable {
	t := &AliasTable{}
	for _, e := range entries {
		t.Add(e)
	}
	return t
}

// DefaultAliases returns the built-in table. The contents are a starting
// point; callers extend it with Add or LoadAliasFile.
func DefaultAliases() *AliasTable {
	return NewAliasTable(
		Alias{Concept: "first_name", Triggers: []string{"first name", "given name", "forename", "prenom"},
			Keys: []string{"firstname", "first_name", "fname", "given_name", "givenname", "name"}},
		Alias{Concept: "last_name", Triggers: []string{"last name", "surname", "family name", "nom de famille"},
			Keys: []string{"lastname", "last_name", "lname", "surname", "family_name", "familyname"}},
		Alias{Concept: "full_name", Triggers: []string{"full name", "your name", "legal name"}, Labels: []string{"name", "nom"},
			Keys: []string{"name", "fullname", "full_name", "your_name"}},
		Alias{Concept: "email", Triggers: []string{"email", "e mail", "courriel"},
			Keys: []string{"email", "email_address", "emailaddress", "mail", "e_mail"}},
		Alias{Concept: "phone", Triggers: []string{"phone", "mobile", "telephone"},
			Keys: []string{"phone", "phone_number", "phonenumber", "telephone", "tel", "mobile", "cell"}},
		Alias{Concept: "address", Triggers: []string{"address", "street"},
			Keys: []string{"address", "street", "street_address", "address_line1", "adresse"}},
		Alias{Concept: "city", Triggers: []string{"current city", "city of residence", "town"}, Labels: []string{"city", "ville"},
			Keys: []string{"city", "town", "locality"}},
		Alias{Concept: "postal_code", Triggers: []string{"postal", "zip", "postcode", "code postal"},
			Keys: []string{"postal_code", "postalcode", "zip", "zip_code", "zipcode", "postcode"}},
		Alias{Concept: "country", Triggers: []string{"country"}, Labels: []string{"pays"},
			Keys: []string{"country", "country_name", "nation"}},
		Alias{Concept: "linkedin", Triggers: []string{"linkedin"},
			Keys: []string{"linkedin", "linkedin_url", "linkedin_profile"}},
		Alias{Concept: "website", Triggers: []string{"website", "portfolio", "personal site", "homepage"},
			Keys: []string{"website", "portfolio", "url", "personal_website", "homepage"}},
		Alias{Concept: "experience", Triggers: []string{"experience", "years of"},
			Keys: []string{"experience", "years_experience", "years_of_experience", "experience_years", "yoe"}},
		Alias{Concept: "salary", Triggers: []string{"salary", "compensation", "pay expectation", "remuneration"},
			Keys: []string{"salary", "expected_salary", "salary_expectation", "desired_salary", "compensation"}},
		Alias{Concept: "notice_period", Triggers: []string{"notice period", "availability", "start date"},
			Keys: []string{"notice_period", "noticeperiod", "availability", "start_date"}},
	)
}

// Add appends an alias. If the concept already exists its triggers, labels
// and keys are merged into the existing entry, which keeps its position.
func (t *AliasTable) Add(a Alias) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Concept != a.Concept {
			continue
		}
		e.Triggers = mergeStrings(e.Triggers, a.Triggers)
		e.Labels = mergeStrings(e.Labels, a.Labels)
		e.Keys = mergeStrings(e.Keys, a.Keys)
		return
	}
	t.entries = append(t.entries, Alias{
		Concept:  a.Concept,
		Triggers: slices.Clone(a.Triggers),
		Labels:   slices.Clone(a.Labels),
		Keys:     slices.Clone(a.Keys),
	})
}

// Entries returns a copy of the table.
func (t *AliasTable) Entries() []Alias {
	return slices.Clone(t.entries)
}

// Keys returns the normalized response keys acceptable for a normalized
// label, in table order. It returns nil when no alias is evoked.
func (t *AliasTable) Keys(label string) []string {
	if t == nil || label == "" {
		return nil
	}
	var out []string
	for _, e := range t.entries {
		if !e.evoked(label) {
			continue
		}
		for _, k := range e.Keys {
			if nk := Normalize(k); nk != "" && !slices.Contains(out, nk) {
				out = append(out, nk)
			}
		}
	}
	return out
}

func (a Alias) evoked(label string) bool {
	for _, l := range a.Labels {
		if Normalize(l) == label {
			return true
		}
	}
	for _, trig := range a.Triggers {
		if nt := Normalize(trig); nt != "" && strings.Contains(label, nt) {
			return true
		}
	}
	return false
}

type aliasFile struct {
	Aliases []Alias `yaml:"aliases"`
}

// LoadAliasFile merges the aliases of a YAML file into t:
//
//	aliases:
//	  - concept: github
//	    triggers: [github]
//	    keys: [github, github_url]
func (t *AliasTable) LoadAliasFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reconcile: read alias file: %w", err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("reconcile: parse alias file %s: %w", path, err)
	}
	for i, a := range f.Aliases {
		if a.Concept == "" {
			return fmt.Errorf("reconcile: alias file %s: entry %d has no concept", path, i)
		}
		t.Add(a)
	}
	return nil
}

func mergeStrings(dst, src []string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
