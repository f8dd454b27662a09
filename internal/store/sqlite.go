// Package store keeps a SQLite ledger of scan runs and their batches. The
// spreadsheet remains the source of truth for per-row state; the ledger
// exists for run history and progress reporting, so its failures never stop
// a run.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Run is one invocation of the analyzer over an input sheet.
type Run struct {
	ID        string
	Input     string
	Status    string
	Stats     map[string]int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Batch is one scheduler batch within a run.
type Batch struct {
	ID         string
	RunID      string
	Phase      string
	Pool       int
	Completed  int
	Failed     int
	DurationMs int64
	CreatedAt  time.Time
}

// Ledger implements the run ledger on modernc.org/sqlite.
type Ledger struct {
	db *sql.DB
}

// Open opens the ledger database and configures WAL mode.
func Open(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Ledger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_batches (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	phase       TEXT NOT NULL,
	pool        INTEGER NOT NULL,
	completed   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_batches_run_id ON run_batches(run_id);
`

// Migrate applies the schema.
func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// CreateRun records the start of a run over the given input sheet.
func (l *Ledger) CreateRun(ctx context.Context, input string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, input, RunStatusRunning, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Input: input, Status: RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

// RecordBatch appends one batch's outcome to the run.
func (l *Ledger) RecordBatch(ctx context.Context, b Batch) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO run_batches (id, run_id, phase, pool, completed, failed, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), b.RunID, b.Phase, b.Pool, b.Completed, b.Failed, b.DurationMs, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert batch for run %s", b.RunID)
}

// FinishRun marks a run terminal and stores its final tallies.
func (l *Ledger) FinishRun(ctx context.Context, runID, status string, stats map[string]int) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		status, string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// LatestRun returns the most recent run, or nil when the ledger is empty.
func (l *Ledger) LatestRun(ctx context.Context) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, input, status, stats, created_at, updated_at FROM runs
		 ORDER BY created_at DESC LIMIT 1`,
	)

	var r Run
	var statsJSON sql.NullString
	err := row.Scan(&r.ID, &r.Input, &r.Status, &statsJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if statsJSON.Valid {
		if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	return &r, nil
}

// RunBatches returns a run's batches in execution order.
func (l *Ledger) RunBatches(ctx context.Context, runID string) ([]Batch, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, phase, pool, completed, failed, duration_ms, created_at
		 FROM run_batches WHERE run_id = ? ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.RunID, &b.Phase, &b.Pool, &b.Completed, &b.Failed, &b.DurationMs, &b.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}
