// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package journal persists an append-only record of login attempts.
//
// The journal is an audit artifact, not a session store: session
// verification never consults it, so sessions stay stateless. Passwords are
// never written, and failure records never say which credential field was
// wrong.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// Outcome classifies a login attempt.
type Outcome string

const (
	// OutcomeSuccess is a successful login.
	OutcomeSuccess Outcome = "success"
	// OutcomeBadCredentials is a credential mismatch.
	OutcomeBadCredentials Outcome = "bad_credentials"
	// OutcomeBadInput is a request with missing fields.
	OutcomeBadInput Outcome = "bad_input"
	// OutcomeMisconfigured is an attempt against a server with no reference
	// credentials configured.
	OutcomeMisconfigured Outcome = "misconfigured"
	// OutcomeError is an unexpected server-side failure.
	OutcomeError Outcome = "error"
)

// Record is one journaled login attempt.
type Record struct {
	ID       int64
	At       time.Time
	ClientIP string
	Username string
	Outcome  Outcome
}

// =============================================================================
// JOURNAL
// =============================================================================

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

// schema is the journal database schema, applied on open.
const schema = `
CREATE TABLE IF NOT EXISTS login_attempts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        INTEGER NOT NULL,
	client_ip TEXT NOT NULL,
	username  TEXT NOT NULL,
	outcome   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_at ON login_attempts(at);
`

// Journal is an append-only login-attempt log backed by SQLite.
// Safe for concurrent use.
type Journal struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (creating if necessary) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// Single writer: modernc.org/sqlite serializes anyway, and one
	// connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append records one login attempt. A zero At is filled with the current
// time.
func (j *Journal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	at := r.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := j.db.Exec(
		"INSERT INTO login_attempts (at, client_ip, username, outcome) VALUES (?, ?, ?, ?)",
		at.Unix(), r.ClientIP, r.Username, string(r.Outcome),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal record: %w", err)
	}
	return nil
}

// Recent returns up to n most recent records, newest first.
func (j *Journal) Recent(n int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.Query(
		"SELECT id, at, client_ip, username, outcome FROM login_attempts ORDER BY at DESC, id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var at int64
		var outcome string
		if err := rows.Scan(&r.ID, &at, &r.ClientIP, &r.Username, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan journal record: %w", err)
		}
		r.At = time.Unix(at, 0)
		r.Outcome = Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountSince returns the number of attempts recorded at or after t.
func (j *Journal) CountSince(t time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	var count int
	err := j.db.QueryRow(
		"SELECT COUNT(*) FROM login_attempts WHERE at >= ?", t.Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal records: %w", err)
	}
	return count, nil
}

// Prune deletes records older than the cutoff and returns how many were
// removed.
func (j *Journal) Prune(olderThan time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	result, err := j.db.Exec("DELETE FROM login_attempts WHERE at < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		log.Printf("JOURNAL_PRUNED | removed=%d cutoff=%s", n, olderThan.Format(time.RFC3339))
	}
	return n, nil
}

// Close closes the journal database. Idempotent.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
