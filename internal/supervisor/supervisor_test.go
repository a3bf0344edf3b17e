package supervisor

import (
	"os/exec"
	"testing"
	"time"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	return New(dir, nil, nil)
}

func TestPidFileRoundTrip(t *testing.T) {
	sv := newTestSupervisor(t)
	if err := sv.writePidFile([]int{111, 222, 333}); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}
	pids, err := sv.ReadPids()
	if err != nil {
		t.Fatalf("ReadPids: %v", err)
	}
	if len(pids) != 3 || pids[0] != 111 || pids[1] != 222 || pids[2] != 333 {
		t.Fatalf("unexpected pids: %v", pids)
	}
}

func TestReadPidsWithNoFileReturnsEmpty(t *testing.T) {
	sv := newTestSupervisor(t)
	pids, err := sv.ReadPids()
	if err != nil {
		t.Fatalf("ReadPids: %v", err)
	}
	if len(pids) != 0 {
		t.Fatalf("expected no pids, got %v", pids)
	}
}

func TestIsRunningReflectsLiveProcesses(t *testing.T) {
	sv := newTestSupervisor(t)

	// A short-lived real child process to exercise anyAlive/isAlive against
	// an actual pid rather than a guessed one.
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot spawn child process in this sandbox: %v", err)
	}
	defer cmd.Process.Kill()

	if err := sv.writePidFile([]int{cmd.Process.Pid}); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}

	running, err := sv.IsRunning()
	if err != nil {
		t.Fatalf("IsRunning: %v", err)
	}
	if !running {
		t.Fatalf("expected IsRunning to report the live child")
	}

	cmd.Process.Kill()
	cmd.Wait()
	time.Sleep(50 * time.Millisecond)

	running, err = sv.IsRunning()
	if err != nil {
		t.Fatalf("IsRunning: %v", err)
	}
	if running {
		t.Fatalf("expected IsRunning to report no live workers after kill")
	}
}

func TestWorkerRunSubcommandNameIsStable(t *testing.T) {
	if WorkerRunSubcommand != "__worker-run" {
		t.Fatalf("unexpected subcommand name: %s", WorkerRunSubcommand)
	}
}
