package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/formfill/internal/dbopen"
)

// Schema creates the profiles table.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	resume     TEXT NOT NULL DEFAULT '',
	fields     TEXT NOT NULL DEFAULT '{}',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_updated ON profiles(updated_at DESC);
`

// Store persists profiles in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the profile database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, Schema)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an open database, creating the table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("profile: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces p. An empty ID is assigned a new UUIDv7.
func (s *Store) Save(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("profile: new id: %w", err)
		}
		p.ID = id.String()
	}
	if p.Name == "" {
		return fmt.Errorf("profile: save %s: empty name", p.ID)
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return fmt.Errorf("profile: marshal fields: %w", err)
	}
	p.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (id, name, resume, fields, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				resume = excluded.resume,
				fields = excluded.fields,
				updated_at = excluded.updated_at`,
			p.ID, p.Name, p.Resume, string(fields), p.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("profile: save %s: %w", p.ID, err)
		}
		return nil
	})
}

// Get loads one profile.
func (s *Store) Get(ctx context.Context, id string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, resume, fields, updated_at FROM profiles WHERE id = ?`, id)
	p, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", id, err)
	}
	return p, nil
}

// List returns all profiles, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, resume, fields, updated_at FROM profiles ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("profile: list: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Delete removes a profile.
func (s *Store) Delete(ctx context.Context, id string) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("profile: delete %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (*Profile, error) {
	var p Profile
	var fields string
	var updated int64
	if err := r.Scan(&p.ID, &p.Name, &p.Resume, &fields, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &p.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", p.ID, err)
	}
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return &p, nil
}
