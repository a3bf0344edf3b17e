package lockfile

import "testing"

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Re-acquiring after release must succeed.
	lock2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	defer lock2.Release()
}

func TestSecondAcquireFailsWhileHeld(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	_, err = Acquire(dir)
	if err == nil {
		t.Fatalf("expected second acquire to fail while the first holds the lock")
	}
	var lockErr *LockError
	if le, ok := err.(*LockError); ok {
		lockErr = le
	}
	if lockErr == nil {
		t.Fatalf("expected *LockError, got %T: %v", err, err)
	}
}
