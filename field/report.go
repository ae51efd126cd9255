package field

import "math"

// FillStatus is the result of applying one mapping to the live document.
type FillStatus string

const (
	Filled FillStatus = "filled"
	Failed FillStatus = "failed"
	// FillSkipped is the outcome for fields that were not attempted.
	FillSkipped FillStatus = "skipped"
)

// Outcome is the per-field fill result. Reason is set for Failed and
// FillSkipped, and for Filled when the value was applied in degraded mode.
type Outcome struct {
	ID     string     `json:"id"`
	Label  string     `json:"label,omitempty"`
	Kind   Kind       `json:"kind"`
	Status FillStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Summary is the short form of an outcome shown in user-facing lists.
type Summary struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Kind   Kind   `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Report aggregates the outcomes of one fill pass.
type Report struct {
	Filled      int       `json:"filled"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	SuccessRate int       `json:"success_rate"` // percent, 0..100
	PerField    []Outcome `json:"per_field"`

	FilledFields  []Summary `json:"filled_fields"`
	FailedFields  []Summary `json:"failed_fields"`
	SkippedFields []Summary `json:"skipped_fields"`
}

// NewReport aggregates outcomes, preserving their order.
func NewReport(outcomes []Outcome) Report {
	r := Report{
		PerField:      outcomes,
		FilledFields:  []Summary{},
		FailedFields:  []Summary{},
		SkippedFields: []Summary{},
	}
	if r.PerField == nil {
		r.PerField = []Outcome{}
	}
	for _, o := range outcomes {
		s := Summary{ID: o.ID, Label: o.Label}
		switch o.Status {
		case Filled:
			r.Filled++
			s.Kind = o.Kind
			r.FilledFields = append(r.FilledFields, s)
		case Failed:
			r.Failed++
			s.Reason = o.Reason
			r.FailedFields = append(r.FailedFields, s)
		default:
			r.Skipped++
			s.Reason = o.Reason
			r.SkippedFields = append(r.SkippedFields, s)
		}
	}
	r.SuccessRate = SuccessRate(r.Filled, r.Failed)
	return r
}

// Total returns the number of attempted fields.
func (r Report) Total() int { return r.Filled + r.Failed + r.Skipped }

// SuccessRate is round(100 * filled / (filled + failed)), or 0 when nothing
// was filled or failed.
func SuccessRate(filled, failed int) int {
	den := filled + failed
	if den == 0 {
		return 0
	}
	return int(math.Round(100 * float64(filled) / float64(den)))
}
