// Package runlog persists per-phase run records in a SQLite ledger. The
// ledger is best-effort bookkeeping: the pipeline records outcomes after
// each phase and warns (but continues) if a write fails.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lakereorg/internal/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job         TEXT NOT NULL,
	phase       TEXT NOT NULL,
	status      TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	created     INTEGER NOT NULL DEFAULT 0,
	processed   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);`

// Record is one phase outcome.
type Record struct {
	Job        string
	Phase      string
	Status     string
	Stats      stats.Stats
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger is a handle to the run history database. A nil *Ledger is valid
// and ignores every call, so callers can wire it unconditionally.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("runlog: path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Append writes one phase record.
func (l *Ledger) Append(ctx context.Context, rec Record) error {
	if l == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs
			(job, phase, status, total, created, processed, skipped, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Job, rec.Phase, rec.Status,
		rec.Stats.Total, rec.Stats.Created, rec.Stats.Processed, rec.Stats.Skipped, rec.Stats.Failed,
		rec.Error,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("runlog: insert: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Record, error) {
	if l == nil {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT job, phase, status, total, created, processed, skipped, failed, error, started_at, finished_at
		FROM pipeline_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var started, finished string
		if err := rows.Scan(&rec.Job, &rec.Phase, &rec.Status,
			&rec.Stats.Total, &rec.Stats.Created, &rec.Stats.Processed,
			&rec.Stats.Skipped, &rec.Stats.Failed,
			&rec.Error, &started, &finished); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}
