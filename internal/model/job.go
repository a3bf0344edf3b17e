// Package model holds the types shared by the store, worker, and supervisor.
package model

import "time"

// Job states. A job moves through these via the store's
// ClaimNext/Complete/RescheduleOrDead/MoveFailedToPending/RetryFromDLQ.
const (
	StatePending    = "pending"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
	StateDead       = "dead"
)

// JobRun outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Job is a durable record of a command to run and its scheduling metadata.
type Job struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	State       string     `json:"state"`
	Attempts    int        `json:"attempts"`
	MaxRetries  int        `json:"max_retries"`
	Priority    int        `json:"priority"`
	TimeoutSecs int        `json:"timeout_secs,omitempty"`
	RunAt       *time.Time `json:"run_at,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	WorkerName  string     `json:"worker_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastError   string     `json:"last_error,omitempty"`
}

// JobRun is an append-only record of one execution attempt.
type JobRun struct {
	JobID       string    `json:"job_id"`
	Attempt     int       `json:"attempt"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMS  int64     `json:"duration_ms"`
	ExitCode    int       `json:"exit_code"`
	StdoutBytes int64     `json:"stdout_bytes"`
	StderrBytes int64     `json:"stderr_bytes"`
	WorkerName  string    `json:"worker_name"`
	Outcome     string    `json:"outcome"`
}

// Spec is what a caller passes to Enqueue; server-assigned fields (State,
// Attempts, timestamps, WorkerName) are ignored on input.
type Spec struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	MaxRetries  *int       `json:"max_retries,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	TimeoutSecs int        `json:"timeout_secs,omitempty"`
	RunAt       *time.Time `json:"run_at,omitempty"`
}
