package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpen_Pragmas(t *testing.T) {
	// WHAT: Foreign keys and the busy timeout are set on open.
	// WHY: History and profiles are written from concurrent passes.
	db := Memory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}
	var busy int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if busy != 10000 {
		t.Fatalf("busy_timeout = %d", busy)
	}
}

func TestOpen_CreatesDirAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "x.db")
	db, err := Open(path, `CREATE TABLE t (v TEXT)`)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO t VALUES ('a')`); err != nil {
		t.Fatal(err)
	}
	var mode string
	db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if mode != "wal" {
		t.Fatalf("journal_mode = %q", mode)
	}
}

func TestRunTx(t *testing.T) {
	// WHAT: RunTx commits on success and rolls back on error.
	// WHY: A failed save must leave no partial profile.
	db := Memory(t, `CREATE TABLE t (v TEXT)`)
	ctx := context.Background()

	err := RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t VALUES ('kept')`)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = RunTx(ctx, db, func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO t VALUES ('rolled back')`)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n)
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestIsBusy(t *testing.T) {
	if IsBusy(nil) || IsBusy(errors.New("other")) {
		t.Fatal("false positives")
	}
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("busy not detected")
	}
}
