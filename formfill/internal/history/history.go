// Package history records finished fill passes in SQLite. A Store is also
// a sink, so it is wired next to the stdout and webhook backends.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/formfill/internal/sink"
	"github.com/hazyhaar/formfill/internal/dbopen"
)

// ErrNotFound is returned when a pass id is unknown.
var ErrNotFound = errors.New("history: pass not found")

// Schema creates the passes table.
const Schema = `
CREATE TABLE IF NOT EXISTS passes (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL DEFAULT '',
	profile_id    TEXT NOT NULL DEFAULT '',
	provider      TEXT NOT NULL DEFAULT '',
	used_fallback INTEGER NOT NULL DEFAULT 0,
	filled        INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	skipped       INTEGER NOT NULL,
	success_rate  INTEGER NOT NULL,
	event         TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passes_created ON passes(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_passes_profile ON passes(profile_id, created_at DESC);
`

// Store persists pass events.
type Store struct {
	db *sql.DB
}

var _ sink.Sink = (*Store)(nil)

// Open opens the history database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, Schema)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an open database, creating the table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Send records ev. Recording the same pass twice keeps the latest event.
func (s *Store) Send(ctx context.Context, ev sink.Event) error {
	if ev.PassID == "" {
		return fmt.Errorf("history: event without pass id")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("history: marshal %s: %w", ev.PassID, err)
	}
	r := ev.Report
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO passes
				(id, url, profile_id, provider, used_fallback, filled, failed, skipped, success_rate, event, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.PassID, ev.URL, ev.ProfileID, ev.Provider, ev.UsedFallback,
			r.Filled, r.Failed, r.Skipped, r.SuccessRate, string(data), ev.At.UnixMilli())
		if err != nil {
			return fmt.Errorf("history: insert %s: %w", ev.PassID, err)
		}
		return nil
	})
}

// Get loads one pass.
func (s *Store) Get(ctx context.Context, id string) (*sink.Event, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT event FROM passes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pass %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("history: get %s: %w", id, err)
	}
	var ev sink.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("history: decode %s: %w", id, err)
	}
	return &ev, nil
}

// List returns the most recent passes first. A non-empty profileID keeps
// only that profile's passes. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, profileID string, limit int) ([]sink.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT event FROM passes ORDER BY created_at DESC, id DESC LIMIT ?`
	args := []any{limit}
	if profileID != "" {
		q = `SELECT event FROM passes WHERE profile_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
		args = []any{profileID, limit}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []sink.Event
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		var ev sink.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("history: list decode: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats aggregates every recorded pass.
type Stats struct {
	Passes      int `json:"passes"`
	Fallbacks   int `json:"fallbacks"`
	Filled      int `json:"filled"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	SuccessRate int `json:"success_rate"`
}

// Stats sums filled, failed and skipped counts over all passes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(used_fallback), 0),
		       COALESCE(SUM(filled), 0), COALESCE(SUM(failed), 0), COALESCE(SUM(skipped), 0)
		FROM passes`).Scan(&st.Passes, &st.Fallbacks, &st.Filled, &st.Failed, &st.Skipped)
	if err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	st.SuccessRate = field.SuccessRate(st.Filled, st.Failed)
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
