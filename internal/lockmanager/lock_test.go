package lockmanager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestTryAcquirePreventsDoubleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.lock")

	first, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release()

	_, err = TryAcquire(path)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	second, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	defer second.Release()
}

func TestRunOnceReleasesOnCompletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.lock")

	ran := false
	if err := RunOnce(path, func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !ran {
		t.Fatalf("expected fn to run")
	}

	lock, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("expected lock free after RunOnce returns: %v", err)
	}
	lock.Release()
}

func TestRunOnceReturnsErrLockedWhenContended(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.lock")

	held, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release()

	err = RunOnce(path, func() error {
		t.Fatalf("fn must not run when lock is contended")
		return nil
	})
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestRunDaemonRunsUntilContextCanceled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.lock")

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	err := RunDaemon(ctx, path, time.Millisecond, func() error {
		runs++
		if runs == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runs < 3 {
		t.Fatalf("expected at least 3 runs before cancellation, got %d", runs)
	}
}

func TestRunDaemonStopsOnNonLockError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.lock")

	boom := errors.New("boom")
	err := RunDaemon(context.Background(), path, time.Millisecond, func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn's error to propagate, got %v", err)
	}
}
