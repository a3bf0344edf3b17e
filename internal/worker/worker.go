// Package worker implements the execution loop described in spec.md §4.2:
// claim a job, run its command under the platform shell, capture output,
// and report the outcome back to the store.
//
// Grounded on the teacher's internal/worker/worker.go, generalized to honor
// per-job timeouts (original_source/core/worker.py's subprocess.run(...,
// timeout=...) equivalent, which the teacher's Go port dropped) and to run
// as a dedicated OS process rather than an in-process goroutine (§4.3/§9).
package worker

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Pranav1703/queuectl/internal/logging"
	"github.com/Pranav1703/queuectl/internal/model"
	"github.com/Pranav1703/queuectl/internal/store"
)

// Worker is one execution unit identified by a unique Name.
type Worker struct {
	Name  string
	store *store.Store
	log   logging.Logger
}

func New(name string, s *store.Store, log logging.Logger) *Worker {
	if log == nil {
		log = logging.Noop()
	}
	return &Worker{Name: name, store: s, log: log}
}

// Run polls for jobs and executes them until ctx is canceled. A job already
// in flight is always finished (success, failure, or timeout) before Run
// returns, satisfying the graceful-shutdown requirement of spec.md §4.2
// step 7.
func (w *Worker) Run(ctx context.Context, pollInterval time.Duration) {
	w.log.Info("worker starting", logging.Field{Key: "name", Val: w.Name})
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", logging.Field{Key: "name", Val: w.Name})
			return
		default:
		}

		claimed, err := w.processOne(ctx)
		if err != nil {
			w.log.Error("worker poll error", logging.Field{Key: "name", Val: w.Name}, logging.Field{Key: "error", Val: err.Error()})
		}
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", logging.Field{Key: "name", Val: w.Name})
			return
		case <-time.After(pollInterval):
		}
	}
}

// processOne claims and executes at most one job. It returns claimed=true
// whenever a job was claimed, regardless of outcome, so the caller can
// avoid sleeping between busy polls.
func (w *Worker) processOne(ctx context.Context) (claimed bool, err error) {
	job, err := w.store.ClaimNext(w.Name, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.execute(ctx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *model.Job) {
	stdoutPath, stderrPath := w.store.LogPathsFor(job.ID)
	if err := os.MkdirAll(filepath.Dir(stdoutPath), 0755); err != nil {
		w.log.Error("create logs directory", logging.Field{Key: "job", Val: job.ID}, logging.Field{Key: "error", Val: err.Error()})
		return
	}
	outFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		w.log.Error("open stdout log", logging.Field{Key: "job", Val: job.ID}, logging.Field{Key: "error", Val: err.Error()})
		return
	}
	defer outFile.Close()
	errFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		w.log.Error("open stderr log", logging.Field{Key: "job", Val: job.ID}, logging.Field{Key: "error", Val: err.Error()})
		return
	}
	defer errFile.Close()

	timeout := time.Duration(job.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(w.store.Config().DefaultTimeoutSecs()) * time.Second
	}

	// Only the job's own timeout ends the command; canceling ctx (worker
	// shutdown) lets the in-flight job run to completion.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", job.Command)
	cmd.Stdout = outFile
	cmd.Stderr = errFile
	setProcessGroup(cmd)
	// On timeout, kill the whole process group while the shell is still
	// running, so anything it forked goes down with it.
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}

	started := time.Now().UTC()
	w.log.Info("job starting", logging.Field{Key: "job", Val: job.ID}, logging.Field{Key: "worker", Val: w.Name})

	runErr := cmd.Run()
	finished := time.Now().UTC()

	timedOut := runCtx.Err() == context.DeadlineExceeded

	exitCode := exitCodeOf(runErr)
	outcome := model.OutcomeSuccess
	switch {
	case timedOut:
		outcome = model.OutcomeTimeout
		if exitCode == 0 {
			exitCode = 124
		}
	case runErr != nil || exitCode != 0:
		outcome = model.OutcomeFailure
	}

	run := model.JobRun{
		JobID:       job.ID,
		Attempt:     job.Attempts + 1,
		StartedAt:   started,
		FinishedAt:  finished,
		DurationMS:  finished.Sub(started).Milliseconds(),
		ExitCode:    exitCode,
		StdoutBytes: fileSize(outFile),
		StderrBytes: fileSize(errFile),
		WorkerName:  w.Name,
		Outcome:     outcome,
	}

	w.report(job.ID, run)
}

// report saves the outcome, retrying a bounded number of times with a short
// backoff per spec.md §7's propagation policy: losing a run record is
// preferable to losing forward progress.
func (w *Worker) report(jobID string, run model.JobRun) {
	const maxAttempts = 3
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if run.Outcome == model.OutcomeSuccess {
			err = w.storeComplete(jobID, run)
		} else {
			err = w.storeRescheduleOrDead(jobID, run)
		}
		if err == nil {
			return
		}
		if model.Kind(err) != model.KindStorageError {
			break
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		w.log.Error("failed to report job outcome", logging.Field{Key: "job", Val: jobID}, logging.Field{Key: "error", Val: err.Error()})
	}
}

func (w *Worker) storeComplete(jobID string, run model.JobRun) error {
	return w.store.Complete(jobID, run)
}

func (w *Worker) storeRescheduleOrDead(jobID string, run model.JobRun) error {
	return w.store.RescheduleOrDead(jobID, run, w.store.Config())
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}

func fileSize(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}
