// Package sink defines output backends for fill pass reports.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hazyhaar/formfill/field"
)

// Event is the record of one finished fill pass.
type Event struct {
	PassID       string       `json:"pass_id"`
	URL          string       `json:"url,omitempty"`
	ProfileID    string       `json:"profile_id,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	UsedFallback bool         `json:"used_fallback"`
	Warnings     []string     `json:"warnings,omitempty"`
	Errors       []string     `json:"errors,omitempty"`
	Report       field.Report `json:"report"`
	At           time.Time    `json:"at"`
}

// Sink delivers pass events to a backend (stdout, webhook, in-process
// callback, history database).
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// envelope is the wire shape shared by the stdout and webhook sinks.
type envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// encode renders ev as one JSON line.
func encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(envelope{Type: "pass", Data: ev})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
