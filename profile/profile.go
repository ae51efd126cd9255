// Package profile stores the candidate data a fill pass draws from: a
// résumé as markdown text plus a flat map of well-known fields.
package profile

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when a profile id does not exist.
var ErrNotFound = errors.New("profile: not found")

// Profile is one candidate.
type Profile struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Resume    string            `json:"resume" yaml:"resume"`
	Fields    map[string]string `json:"fields" yaml:"fields"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"-"`
}

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe    = regexp.MustCompile(`\+?\d[\d ().\-]{7,}\d`)
	linkedinRe = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9_\-%]+/?`)
	githubRe   = regexp.MustCompile(`(?i)(?:https?://)?github\.com/[A-Za-z0-9_\-]+/?`)
	urlRe      = regexp.MustCompile(`(?i)https?://[^\s)>\]]+`)
)

// ExtractFields pulls contact details out of free text: email, phone,
// linkedin, github and the first other URL as website.
func ExtractFields(text string) map[string]string {
	out := make(map[string]string)
	if m := emailRe.FindString(text); m != "" {
		out["email"] = m
	}
	for _, m := range phoneRe.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		// Dates such as 2019-2023 are not phone numbers.
		if digits >= 9 && digits <= 15 {
			out["phone"] = strings.TrimSpace(m)
			break
		}
	}
	if m := linkedinRe.FindString(text); m != "" {
		out["linkedin"] = withScheme(m)
	}
	if m := githubRe.FindString(text); m != "" {
		out["github"] = withScheme(m)
	}
	for _, m := range urlRe.FindAllString(text, -1) {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "linkedin.com") || strings.Contains(lower, "github.com") {
			continue
		}
		out["website"] = strings.TrimRight(m, ".,;")
		break
	}
	return out
}

func withScheme(u string) string {
	if strings.HasPrefix(strings.ToLower(u), "http") {
		return u
	}
	return "https://" + u
}

// merge copies src into dst without overwriting existing keys.
func merge(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
