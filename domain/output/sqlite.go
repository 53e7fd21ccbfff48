package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	regions    INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS measurements (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq    INTEGER NOT NULL,
	prev   TEXT NOT NULL,
	cur    TEXT NOT NULL,
	roi    INTEGER NOT NULL,
	count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq, roi)
);`

// SQLite records every run in a database so measurements of many runs can be
// queried together. One row per (pair, ROI). The whole run is one
// transaction, committed on Close.
type SQLite struct {
	db    *sql.DB
	tx    *sql.Tx
	stmt  *sql.Stmt
	runID string
	now   func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path for run runID.
func OpenSQLite(path, runID string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("output: schema %s: %w", path, err)
	}
	return &SQLite{db: db, runID: runID, now: time.Now}, nil
}

func (s *SQLite) WriteHeader(regions int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("output: begin: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO runs (id, regions, created_at) VALUES (?, ?, ?)`,
		s.runID, regions, s.now().UTC().Format(time.RFC3339)); err != nil {
		tx.Rollback()
		return fmt.Errorf("output: insert run: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO measurements (run_id, seq, prev, cur, roi, count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("output: prepare: %w", err)
	}
	s.tx, s.stmt = tx, stmt
	return nil
}

func (s *SQLite) WriteRecord(rec Record) error {
	if s.stmt == nil {
		return fmt.Errorf("output: record before header")
	}
	for roi, v := range rec.Counts {
		if _, err := s.stmt.Exec(s.runID, rec.Seq, rec.Prev, rec.Cur, roi, v); err != nil {
			return fmt.Errorf("output: insert pair %d roi %d: %w", rec.Seq, roi, err)
		}
	}
	return nil
}

// Close commits rows written so far and closes the database.
func (s *SQLite) Close() error {
	var err error
	if s.tx != nil {
		s.stmt.Close()
		err = s.tx.Commit()
		s.tx, s.stmt = nil, nil
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
