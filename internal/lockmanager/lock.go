// Package lockmanager guards a run of the sync engine against overlapping
// invocations against the same root directory, via an exclusive advisory
// lock on a sentinel file.
package lockmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by TryAcquire when another process already holds
// the lock.
var ErrLocked = errors.New("lockmanager: lock already held by another process")

// Lock wraps an exclusive, non-blocking file lock on a sentinel path.
type Lock struct {
	flock *flock.Flock
	path  string
}

// TryAcquire attempts to take an exclusive lock on path without blocking.
// It returns ErrLocked, not an error wrapping it, when the lock is held
// elsewhere, so callers can distinguish contention from I/O failure with a
// plain equality check.
func TryAcquire(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{flock: fl, path: path}, nil
}

// Release unlocks the file. Safe to call once; repeated calls are no-ops.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}

// Path returns the underlying lock file path.
func (l *Lock) Path() string {
	return l.path
}

// RunOnce acquires the lock, runs fn, and releases the lock regardless of
// fn's outcome. Returns ErrLocked if another run already holds it.
func RunOnce(path string, fn func() error) error {
	lock, err := TryAcquire(path)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// RunDaemon runs RunOnce against path at each interval until ctx is
// canceled or fn returns an error other than ErrLocked. Lock contention is
// expected whenever a run overruns its own interval and never stops the
// loop, matching the long-running "run_once_with_lock then sleep" daemon
// shape.
func RunDaemon(ctx context.Context, path string, interval time.Duration, fn func() error) error {
	for {
		if err := RunOnce(path, fn); err != nil && err != ErrLocked {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
