package formfill

import (
	"time"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/formfill/internal/sink"
	"github.com/hazyhaar/formfill/profile"
	"github.com/hazyhaar/formfill/reconcile"
)

// Pass carries everything about one fill attempt, from the scraped fields
// to the report. A new Pass is built for every attempt and nothing in it is
// shared with other passes.
type Pass struct {
	ID           string             `json:"id"`
	URL          string             `json:"url,omitempty"`
	ProfileID    string             `json:"profile_id,omitempty"`
	Provider     string             `json:"provider,omitempty"`
	Descriptors  []field.Descriptor `json:"descriptors"`
	Response     field.Response     `json:"response"`
	Mappings     []field.Mapping    `json:"mappings"`
	Summary      reconcile.Summary  `json:"summary"`
	Report       *field.Report      `json:"report,omitempty"`
	UsedFallback bool               `json:"used_fallback"`
	ModelError   string             `json:"model_error,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`

	Profile *profile.Profile `json:"-"`
}

func (p *Pass) event() sink.Event {
	ev := sink.Event{
		PassID:       p.ID,
		URL:          p.URL,
		ProfileID:    p.ProfileID,
		Provider:     p.Provider,
		UsedFallback: p.UsedFallback,
		Warnings:     p.Summary.Warnings,
		Errors:       p.Summary.CriticalErrors,
		At:           p.FinishedAt,
	}
	if p.Report != nil {
		ev.Report = *p.Report
	}
	return ev
}
