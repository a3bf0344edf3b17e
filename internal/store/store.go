// Package store is the single source of truth for jobs, runs, and
// configuration. All job-state transitions flow through it; workers and
// the CLI never write job rows directly.
//
// Grounded on the teacher's internal/database/worker.go (the RETURNING-based
// atomic claim) and internal/storage/sqlLite.go (schema/CRUD shape), with
// the teacher's own duplicate "storage" package folded into this one.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Pranav1703/queuectl/internal/logging"
	"github.com/Pranav1703/queuectl/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	command      TEXT NOT NULL,
	state        TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_retries  INTEGER NOT NULL DEFAULT 3,
	priority     INTEGER NOT NULL DEFAULT 100,
	timeout_secs INTEGER,
	run_at       TEXT,
	next_run_at  TEXT NOT NULL,
	worker_name  TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	last_error   TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_state_priority_created
ON jobs(state, priority, created_at);

CREATE TABLE IF NOT EXISTS job_runs (
	job_id       TEXT NOT NULL,
	attempt      INTEGER NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	duration_ms  INTEGER NOT NULL,
	exit_code    INTEGER NOT NULL,
	stdout_bytes INTEGER NOT NULL,
	stderr_bytes INTEGER NOT NULL,
	worker_name  TEXT NOT NULL,
	outcome      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_runs_job_id ON job_runs(job_id);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is a durable, SQLite-backed job and config store.
type Store struct {
	db      *sql.DB
	logsDir string
	log     logging.Logger
}

// Open opens (creating if needed) the SQLite database at dbPath and ensures
// the schema exists. logsDir is where LogPathsFor resolves per-job log
// files (it is not created here).
func Open(dbPath, logsDir string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Noop()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, model.WrapStorage("open database", err)
	}
	// SQLite allows only one writer; a single shared connection keeps every
	// write serialized through the driver instead of fighting SQLITE_BUSY
	// across a pool of connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, model.WrapStorage("ping database", err)
	}
	s := &Store{db: db, logsDir: logsDir, log: log}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return model.WrapStorage("apply schema", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogPathsFor returns the deterministic stdout/stderr log paths for a job
// id. It does not create the files.
func (s *Store) LogPathsFor(id string) (stdout, stderr string) {
	return filepath.Join(s.logsDir, fmt.Sprintf("%s.stdout.log", id)),
		filepath.Join(s.logsDir, fmt.Sprintf("%s.stderr.log", id))
}
