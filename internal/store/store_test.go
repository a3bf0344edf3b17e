package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Pranav1703/queuectl/internal/model"
)

func TestMain(m *testing.M) {
	defer goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "queuectl.db"), filepath.Join(dir, "logs"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue(model.Spec{ID: "a", Command: "echo ok"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.State != model.StatePending || job.Priority != 100 || job.Attempts != 0 {
		t.Fatalf("unexpected defaults: %+v", job)
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "a" || got.Command != "echo ok" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEnqueueDuplicateIDIsAlreadyExists(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Enqueue(model.Spec{ID: "dup", Command: "echo 1"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	_, err := s.Enqueue(model.Spec{ID: "dup", Command: "echo 2"})
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestClaimNextRespectsPriorityThenCreatedAt(t *testing.T) {
	s := newTestStore(t)
	p100 := 100
	p10 := 10
	mustEnqueue(t, s, "x", p100)
	time.Sleep(2 * time.Millisecond)
	mustEnqueue(t, s, "y", p10)
	time.Sleep(2 * time.Millisecond)
	mustEnqueue(t, s, "z", p100)

	order := []string{}
	for i := 0; i < 3; i++ {
		job, err := s.ClaimNext("w1", time.Now().UTC())
		if err != nil {
			t.Fatalf("ClaimNext: %v", err)
		}
		if job == nil {
			t.Fatalf("expected a job at step %d", i)
		}
		order = append(order, job.ID)
	}
	if order[0] != "y" || order[1] != "x" || order[2] != "z" {
		t.Fatalf("unexpected claim order: %v", order)
	}

	if job, err := s.ClaimNext("w1", time.Now().UTC()); err != nil || job != nil {
		t.Fatalf("expected no more jobs, got job=%v err=%v", job, err)
	}
}

func mustEnqueue(t *testing.T, s *Store, id string, priority int) {
	t.Helper()
	if _, err := s.Enqueue(model.Spec{ID: id, Command: "echo " + id, Priority: &priority}); err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
}

// TestClaimNextIsExclusiveUnderConcurrency exercises testable property #1:
// every job is observed by exactly one concurrent caller.
func TestClaimNextIsExclusiveUnderConcurrency(t *testing.T) {
	s := newTestStore(t)
	const n = 25
	for i := 0; i < n; i++ {
		mustEnqueue(t, s, idFor(i), 100)
	}

	var claimed int64
	var wg sync.WaitGroup
	seen := make(map[string]int)
	var mu sync.Mutex

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			name := idFor(worker) + "-worker"
			for {
				job, err := s.ClaimNext(name, time.Now().UTC())
				if err != nil {
					t.Errorf("ClaimNext: %v", err)
					return
				}
				if job == nil {
					return
				}
				atomic.AddInt64(&claimed, 1)
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if int(claimed) != n {
		t.Fatalf("expected %d claims, got %d", n, claimed)
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("job %s claimed %d times", id, count)
		}
	}
}

func idFor(i int) string {
	return "job-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestCompleteTransitionsToCompletedAndIncrementsAttempts(t *testing.T) {
	s := newTestStore(t)
	mustEnqueue(t, s, "ok", 100)
	job, err := s.ClaimNext("w", time.Now().UTC())
	if err != nil || job == nil {
		t.Fatalf("claim: %v %v", job, err)
	}

	run := model.JobRun{JobID: job.ID, Attempt: 1, StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), ExitCode: 0, WorkerName: "w"}
	if err := s.Complete(job.ID, run); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != model.StateCompleted || got.Attempts != 1 || got.WorkerName != "" {
		t.Fatalf("unexpected job after complete: %+v", got)
	}
}

// TestRescheduleOrDeadRetriesThenDies mirrors spec.md §8 scenario 2: with
// max_retries=2 a chronically failing job takes 3 failed attempts
// (attempts>max_retries) before landing in dead.
func TestRescheduleOrDeadRetriesThenDies(t *testing.T) {
	s := newTestStore(t)
	maxRetries := 2
	if _, err := s.Enqueue(model.Spec{ID: "flaky", Command: "false", MaxRetries: &maxRetries}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		forceNextRunNow(t, s, "flaky")
		if _, err := s.MoveFailedToPending(time.Now().UTC()); err != nil {
			t.Fatalf("MoveFailedToPending: %v", err)
		}
		job, err := s.ClaimNext("w", time.Now().UTC())
		if err != nil || job == nil {
			t.Fatalf("expected claimable job at attempt %d: %v %v", attempt, job, err)
		}
		run := model.JobRun{JobID: job.ID, Attempt: attempt, StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), ExitCode: 1, WorkerName: "w", Outcome: model.OutcomeFailure}
		if err := s.RescheduleOrDead(job.ID, run, s.Config()); err != nil {
			t.Fatalf("RescheduleOrDead: %v", err)
		}

		got, err := s.Get("flaky")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if attempt <= maxRetries {
			if got.State != model.StateFailed {
				t.Fatalf("attempt %d: expected failed, got %s", attempt, got.State)
			}
		} else {
			if got.State != model.StateDead || got.Attempts != maxRetries+1 {
				t.Fatalf("expected dead with attempts=%d, got %+v", maxRetries+1, got)
			}
		}
	}
}

func forceNextRunNow(t *testing.T, s *Store, id string) {
	t.Helper()
	if _, err := s.db.Exec(`UPDATE jobs SET next_run_at = ? WHERE id = ?`, formatTime(time.Now().UTC()), id); err != nil {
		t.Fatalf("force next_run_at: %v", err)
	}
}

func TestMoveFailedToPendingIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	maxRetries := 5
	if _, err := s.Enqueue(model.Spec{ID: "j", Command: "false", MaxRetries: &maxRetries}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, _ := s.ClaimNext("w", time.Now().UTC())
	run := model.JobRun{JobID: job.ID, Attempt: 1, StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), ExitCode: 1, Outcome: model.OutcomeFailure, WorkerName: "w"}
	if err := s.RescheduleOrDead(job.ID, run, s.Config()); err != nil {
		t.Fatalf("RescheduleOrDead: %v", err)
	}
	forceNextRunNow(t, s, "j")

	n1, err := s.MoveFailedToPending(time.Now().UTC())
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	n2, err := s.MoveFailedToPending(time.Now().UTC())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n1 != 1 || n2 != 0 {
		t.Fatalf("expected 1 then 0 rows moved, got %d then %d", n1, n2)
	}
}

func TestRetryFromDLQRequiresDeadState(t *testing.T) {
	s := newTestStore(t)
	mustEnqueue(t, s, "pending-job", 100)
	if err := s.RetryFromDLQ("pending-job"); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}

	maxRetries := 0
	if _, err := s.Enqueue(model.Spec{ID: "doomed", Command: "false", MaxRetries: &maxRetries}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, _ := s.ClaimNext("w", time.Now().UTC())
	run := model.JobRun{JobID: job.ID, Attempt: 1, StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), ExitCode: 1, Outcome: model.OutcomeFailure, WorkerName: "w"}
	if err := s.RescheduleOrDead(job.ID, run, s.Config()); err != nil {
		t.Fatalf("RescheduleOrDead: %v", err)
	}
	got, _ := s.Get("doomed")
	if got.State != model.StateDead {
		t.Fatalf("expected dead, got %s", got.State)
	}

	if err := s.RetryFromDLQ("doomed"); err != nil {
		t.Fatalf("RetryFromDLQ: %v", err)
	}
	got, _ = s.Get("doomed")
	if got.State != model.StatePending || got.Attempts != 0 {
		t.Fatalf("expected reset pending job, got %+v", got)
	}
}

func TestStatsIncludesZeroCounts(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	for _, state := range []string{model.StatePending, model.StateProcessing, model.StateCompleted, model.StateFailed, model.StateDead} {
		if _, ok := stats[state]; !ok {
			t.Fatalf("missing zero count for state %s", state)
		}
	}
}

func TestWorkerNameInvariant(t *testing.T) {
	s := newTestStore(t)
	mustEnqueue(t, s, "inv", 100)
	job, err := s.ClaimNext("w", time.Now().UTC())
	if err != nil || job == nil {
		t.Fatalf("claim: %v %v", job, err)
	}
	if job.WorkerName == "" {
		t.Fatalf("processing job must carry a worker_name")
	}

	run := model.JobRun{JobID: job.ID, Attempt: 1, StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), ExitCode: 0, WorkerName: "w"}
	if err := s.Complete(job.ID, run); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WorkerName != "" {
		t.Fatalf("completed job must not carry a worker_name")
	}
}

func TestUpdatedAtNeverDecreases(t *testing.T) {
	s := newTestStore(t)
	mustEnqueue(t, s, "mono", 100)
	job, _ := s.Get("mono")
	prev := job.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	claimed, err := s.ClaimNext("w", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if claimed.UpdatedAt.Before(prev) {
		t.Fatalf("updated_at went backwards: %v -> %v", prev, claimed.UpdatedAt)
	}
}
