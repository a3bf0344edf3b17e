package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Pranav1703/queuectl/internal/logging"
	"github.com/Pranav1703/queuectl/internal/model"
)

// timeLayout is second-resolution per spec.md §6 ("All timestamps are
// ISO-8601 UTC with second resolution"). Every scheduling column is TEXT and
// compared lexically (ClaimNext, MoveFailedToPending, ORDER BY created_at),
// so the layout must be fixed-width: time.RFC3339Nano trims trailing
// fractional zeros, which makes lexical order diverge from chronological
// order for timestamps landing in the same second. time.RFC3339 is fixed
// width for a UTC time (always ends "Z"), matching BTreeMap-PromptPipe's
// convention for persisted timestamps.
const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullInt(v int) sql.NullInt64 {
	if v <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

type jobRow struct {
	id, command, state              string
	attempts, maxRetries, priority   int
	timeoutSecs                      sql.NullInt64
	nextRunAt, createdAt, updatedAt  string
	workerName, lastError            sql.NullString
}

func scanJob(row rowScanner) (*model.Job, error) {
	var r jobRow
	var runAt sql.NullString
	if err := row.Scan(
		&r.id, &r.command, &r.state, &r.attempts, &r.maxRetries, &r.priority,
		&r.timeoutSecs, &runAt, &r.nextRunAt, &r.workerName, &r.createdAt, &r.updatedAt, &r.lastError,
	); err != nil {
		return nil, err
	}

	j := &model.Job{
		ID:         r.id,
		Command:    r.command,
		State:      r.state,
		Attempts:   r.attempts,
		MaxRetries: r.maxRetries,
		Priority:   r.priority,
	}
	if r.timeoutSecs.Valid {
		j.TimeoutSecs = int(r.timeoutSecs.Int64)
	}
	if runAt.Valid {
		t, err := parseTime(runAt.String)
		if err != nil {
			return nil, err
		}
		j.RunAt = &t
	}
	if t, err := parseTime(r.nextRunAt); err == nil {
		j.NextRunAt = t
	}
	if t, err := parseTime(r.createdAt); err == nil {
		j.CreatedAt = t
	}
	if t, err := parseTime(r.updatedAt); err == nil {
		j.UpdatedAt = t
	}
	if r.workerName.Valid {
		j.WorkerName = r.workerName.String
	}
	if r.lastError.Valid {
		j.LastError = r.lastError.String
	}
	return j, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const jobColumns = `id, command, state, attempts, max_retries, priority, timeout_secs, run_at, next_run_at, worker_name, created_at, updated_at, last_error`

// Enqueue inserts a new job. Fails with AlreadyExists if id collides.
func (s *Store) Enqueue(spec model.Spec) (*model.Job, error) {
	if spec.ID == "" || spec.Command == "" {
		return nil, model.NewInvalidInput("job id and command are required")
	}

	now := time.Now().UTC()
	j := &model.Job{
		ID:         spec.ID,
		Command:    spec.Command,
		State:      model.StatePending,
		Attempts:   0,
		Priority:   100,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      spec.RunAt,
	}
	if spec.Priority != nil {
		j.Priority = *spec.Priority
	}
	if spec.TimeoutSecs > 0 {
		j.TimeoutSecs = spec.TimeoutSecs
	}
	if spec.MaxRetries != nil {
		j.MaxRetries = *spec.MaxRetries
	} else {
		j.MaxRetries = s.Config().MaxRetries()
	}
	if spec.RunAt != nil {
		j.NextRunAt = *spec.RunAt
	} else {
		j.NextRunAt = now
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.Command, j.State, j.Attempts, j.MaxRetries, j.Priority,
		nullInt(j.TimeoutSecs), nullTime(j.RunAt), formatTime(j.NextRunAt), nullString(j.WorkerName),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt), nullString(j.LastError),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.NewAlreadyExists(fmt.Sprintf("job %q already exists", j.ID))
		}
		return nil, model.WrapStorage("enqueue job", err)
	}
	s.log.Info("job enqueued", logging.Field{Key: "id", Val: j.ID}, logging.Field{Key: "priority", Val: j.Priority})
	return j, nil
}

// Get returns a single job by id, or NotFound.
func (s *Store) Get(id string) (*model.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.NewNotFound(fmt.Sprintf("job %q not found", id))
		}
		return nil, model.WrapStorage("get job", err)
	}
	return j, nil
}

// List returns jobs, optionally filtered by state, ordered by
// (priority ASC, created_at ASC). limit <= 0 means unbounded.
func (s *Store) List(state string, limit int) ([]*model.Job, error) {
	var rows *sql.Rows
	var err error
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if state != "" {
		if !validState(state) {
			return nil, model.NewInvalidInput(fmt.Sprintf("unknown state %q", state))
		}
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY priority ASC, created_at ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err = s.db.Query(query, args...)
	if err != nil {
		return nil, model.WrapStorage("list jobs", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, model.WrapStorage("scan job row", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapStorage("iterate job rows", err)
	}
	return out, nil
}

func validState(s string) bool {
	switch s {
	case model.StatePending, model.StateProcessing, model.StateCompleted, model.StateFailed, model.StateDead:
		return true
	}
	return false
}

// ClaimNext atomically selects the single highest-priority eligible pending
// job (state='pending' AND next_run_at <= now), flips it to processing, and
// returns it. Returns (nil, nil) when no eligible row exists. The entire
// select-and-mutate is one UPDATE ... RETURNING statement so concurrent
// callers can never be handed the same row.
func (s *Store) ClaimNext(workerName string, now time.Time) (*model.Job, error) {
	row := s.db.QueryRow(`
		UPDATE jobs
		SET state = ?, worker_name = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE state = ? AND next_run_at <= ?
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING `+jobColumns,
		model.StateProcessing, workerName, formatTime(now),
		model.StatePending, formatTime(now),
	)
	j, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, model.WrapStorage("claim next job", err)
	}
	s.log.Debug("job claimed", logging.Field{Key: "id", Val: j.ID}, logging.Field{Key: "worker", Val: workerName})
	return j, nil
}

// Complete transitions processing -> completed, appends a success JobRun,
// clears worker_name/last_error, and increments attempts.
func (s *Store) Complete(id string, run model.JobRun) error {
	now := time.Now().UTC()
	run.Outcome = model.OutcomeSuccess
	if err := s.RecordRun(run); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE jobs
		SET state = ?, worker_name = NULL, last_error = NULL, updated_at = ?, attempts = attempts + 1
		WHERE id = ? AND state = ?`,
		model.StateCompleted, formatTime(now), id, model.StateProcessing,
	)
	if err != nil {
		return model.WrapStorage("complete job", err)
	}
	return expectOneRow(res, id, "complete")
}

// RescheduleOrDead is called on failure/timeout of a processing job:
// attempts is incremented, the JobRun appended, last_error set, then the
// job moves to failed (with backoff-scheduled next_run_at) or dead.
func (s *Store) RescheduleOrDead(id string, run model.JobRun, cfg *Config) error {
	if err := s.RecordRun(run); err != nil {
		return err
	}

	job, err := s.Get(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	attempts := job.Attempts + 1
	lastError := run.Outcome
	if run.ExitCode != 0 {
		lastError = fmt.Sprintf("exit:%d", run.ExitCode)
	}
	if run.Outcome == model.OutcomeTimeout {
		lastError = "timeout"
	}

	var res sql.Result
	if attempts > job.MaxRetries {
		res, err = s.db.Exec(`
			UPDATE jobs
			SET state = ?, attempts = ?, worker_name = NULL, last_error = ?, updated_at = ?
			WHERE id = ? AND state = ?`,
			model.StateDead, attempts, lastError, formatTime(now), id, model.StateProcessing,
		)
	} else {
		base := cfg.BackoffBase()
		delaySecs := pow(base, float64(attempts-1))
		nextRun := now.Add(time.Duration(delaySecs * float64(time.Second)))
		res, err = s.db.Exec(`
			UPDATE jobs
			SET state = ?, attempts = ?, worker_name = NULL, last_error = ?, next_run_at = ?, updated_at = ?
			WHERE id = ? AND state = ?`,
			model.StateFailed, attempts, lastError, formatTime(nextRun), formatTime(now), id, model.StateProcessing,
		)
	}
	if err != nil {
		return model.WrapStorage("reschedule or dead job", err)
	}
	return expectOneRow(res, id, "reschedule-or-dead")
}

// MoveFailedToPending promotes every failed job whose next_run_at has
// elapsed back to pending. Single statement, idempotent.
func (s *Store) MoveFailedToPending(now time.Time) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE jobs
		SET state = ?, updated_at = ?
		WHERE state = ? AND next_run_at <= ?`,
		model.StatePending, formatTime(now), model.StateFailed, formatTime(now),
	)
	if err != nil {
		return 0, model.WrapStorage("move failed to pending", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// IncrementAttempts is reserved for explicit bookkeeping outside the normal
// success/failure path.
func (s *Store) IncrementAttempts(id string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE jobs SET attempts = attempts + 1, updated_at = ? WHERE id = ?`, formatTime(now), id)
	if err != nil {
		return model.WrapStorage("increment attempts", err)
	}
	return expectOneRow(res, id, "increment-attempts")
}

// RetryFromDLQ transitions dead -> pending, resetting attempts/last_error
// and scheduling immediate eligibility.
func (s *Store) RetryFromDLQ(id string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE jobs
		SET state = ?, attempts = 0, last_error = NULL, next_run_at = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		model.StatePending, formatTime(now), formatTime(now), id, model.StateDead,
	)
	if err != nil {
		return model.WrapStorage("retry from dlq", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.WrapStorage("retry from dlq", err)
	}
	if n == 0 {
		if _, getErr := s.Get(id); getErr != nil {
			return getErr
		}
		return model.NewInvalidState(fmt.Sprintf("job %q is not dead", id))
	}
	return nil
}

// Stats returns counts for every state, including zero counts.
func (s *Store) Stats() (map[string]int, error) {
	out := map[string]int{
		model.StatePending:    0,
		model.StateProcessing: 0,
		model.StateCompleted:  0,
		model.StateFailed:     0,
		model.StateDead:       0,
	}
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, model.WrapStorage("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, model.WrapStorage("scan stats row", err)
		}
		out[state] = count
	}
	return out, rows.Err()
}

// RecordRun appends a JobRun. Callable directly for observability, and used
// internally by Complete/RescheduleOrDead.
func (s *Store) RecordRun(run model.JobRun) error {
	_, err := s.db.Exec(`
		INSERT INTO job_runs (job_id, attempt, started_at, finished_at, duration_ms, exit_code, stdout_bytes, stderr_bytes, worker_name, outcome)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.JobID, run.Attempt, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.DurationMS,
		run.ExitCode, run.StdoutBytes, run.StderrBytes, run.WorkerName, run.Outcome,
	)
	if err != nil {
		return model.WrapStorage("record run", err)
	}
	return nil
}

func expectOneRow(res sql.Result, id, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return model.WrapStorage(op, err)
	}
	if n == 0 {
		return model.NewInvalidState(fmt.Sprintf("job %q not in expected state for %s", id, op))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

func pow(base, exp float64) float64 {
	return math.Pow(base, exp)
}
