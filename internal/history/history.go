// Package history keeps a SQLite log of copy runs.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded invocation of a copy.
type Run struct {
	ID              string
	JobID           string
	SourceRoot      string
	DestinationRoot string
	ManifestPath    string
	StartedAt       time.Time
	FinishedAt      time.Time // zero while running
	Status          string
	ChunksCopied    int64
	BytesCopied     int64
	Error           string
}

// Outcome is what Finish records about a run.
type Outcome struct {
	Err          error
	ChunksCopied int64
	BytesCopied  int64
}

// DB is a run history database.
type DB struct {
	db   *sql.DB
	path string
}

// DefaultPath returns $XDG_STATE_HOME/ferry/history.db, falling back to
// ~/.local/state/ferry/history.db.
func DefaultPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ferry", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ferry-history.db")
	}
	return filepath.Join(home, ".local", "state", "ferry", "history.db")
}

// Open opens (or creates) the history database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	h := &DB{db: db, path: path}
	if err := h.init(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *DB) init() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id               TEXT PRIMARY KEY,
			job_id           TEXT NOT NULL,
			source_root      TEXT NOT NULL,
			destination_root TEXT NOT NULL,
			manifest_path    TEXT NOT NULL,
			started_at       INTEGER NOT NULL,
			finished_at      INTEGER,
			status           TEXT NOT NULL,
			chunks_copied    INTEGER NOT NULL DEFAULT 0,
			bytes_copied     INTEGER NOT NULL DEFAULT 0,
			error            TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS runs_started ON runs (started_at);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Start records a new running run and returns its id.
func (h *DB) Start(jobID, sourceRoot, destinationRoot, manifestPath string) (string, error) {
	id := uuid.NewString()
	_, err := h.db.Exec(
		`INSERT INTO runs (id, job_id, source_root, destination_root, manifest_path, started_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, jobID, sourceRoot, destinationRoot, manifestPath, time.Now().UnixNano(), StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Finish records the outcome of the run with the given id.
func (h *DB) Finish(id string, o Outcome) error {
	status, msg := StatusSucceeded, ""
	if o.Err != nil {
		status, msg = StatusFailed, o.Err.Error()
	}
	res, err := h.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, chunks_copied = ?, bytes_copied = ?, error = ?
		 WHERE id = ?`,
		time.Now().UnixNano(), status, o.ChunksCopied, o.BytesCopied, msg, id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return fmt.Errorf("update run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (h *DB) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.Query(
		`SELECT id, job_id, source_root, destination_root, manifest_path, started_at,
		        finished_at, status, chunks_copied, bytes_copied, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.SourceRoot, &r.DestinationRoot, &r.ManifestPath,
			&started, &finished, &r.Status, &r.ChunksCopied, &r.BytesCopied, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

// Duration is how long a finished run took, or zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Close closes the database.
func (h *DB) Close() error {
	return h.db.Close()
}

// Path returns the path to the history database file.
func (h *DB) Path() string {
	return h.path
}

// IsNotFound reports whether err came from finishing an unknown run.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
