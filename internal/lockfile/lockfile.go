// Package lockfile guards against running two amp proxies at once.
//
// Two instances watching the same directories would each propagate the
// same writes, so the process takes a cross-platform advisory lock
// (gofrs/flock) before starting.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a cross-process file lock.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// DefaultPath returns the default lock file location (~/.amp/amp.lock).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amp", "amp.lock")
	}
	return filepath.Join(home, ".amp", "amp.lock")
}

// New creates a lock for the given path. The lock is not held until
// TryAcquire succeeds.
func New(path string) *Lock {
	return &Lock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryAcquire attempts to take the lock without blocking.
// Returns false when another process holds it.
func (l *Lock) TryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Release releases the lock. Safe to call multiple times or on a lock
// that was never acquired.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.locked = false
	return nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Held reports whether this process currently holds the lock.
func (l *Lock) Held() bool {
	return l.locked
}
