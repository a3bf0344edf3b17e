// Package lockfile provides directory-based locking so that two
// supervisors never point at the same data_dir at once (spec.md §9:
// "data_dir is process-wide state ... detect a live pid file on startup and
// refuse to start a second supervisor").
//
// Adapted from BTreeMap-PromptPipe/internal/lockfile, which locks a state
// directory for the same reason using a flock-based advisory lock that is
// released automatically when the holding process exits, gracefully or
// not.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const LockFileName = "queuectl.lock"

// Lock represents an acquired advisory lock on a data directory.
type Lock struct {
	file     *os.File
	path     string
	acquired bool
}

// Acquire takes an exclusive, non-blocking lock on dataDir. If another
// live process already holds it, a *LockError is returned describing the
// conflicting pid.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dataDir, err)
	}
	lockPath := filepath.Join(dataDir, LockFileName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		existing := readExistingPid(lockPath)
		file.Close()
		return nil, &LockError{LockPath: lockPath, ExistingPid: existing, Cause: err}
	}

	if err := file.Truncate(0); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("truncate lock file %s: %w", lockPath, err)
	}
	if _, err := file.WriteString(fmt.Sprintf("pid=%d\n", os.Getpid())); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("write lock file %s: %w", lockPath, err)
	}

	return &Lock{file: file, path: lockPath, acquired: true}, nil
}

// Release releases the lock and removes the lock file. Safe to call more
// than once.
func (l *Lock) Release() error {
	if !l.acquired || l.file == nil {
		return nil
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	err := os.Remove(l.path)
	l.acquired = false
	l.file = nil
	return err
}

// LockError is returned when another live process already holds the lock.
type LockError struct {
	LockPath    string
	ExistingPid string
	Cause       error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another queuectl supervisor already owns data directory (lock: %s)", e.LockPath)
	if e.ExistingPid != "" {
		msg += fmt.Sprintf(", held by %s", e.ExistingPid)
	}
	return msg
}

func (e *LockError) Unwrap() error { return e.Cause }

func readExistingPid(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
