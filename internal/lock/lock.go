// Package lock provides the per-repository mutual exclusion for merge runs.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// FileName is the lock file created under the state directory
const FileName = "merge.lock"

// RepoLock is an exclusive advisory file lock. The operating system drops
// it when the process exits, so a crash never leaves the repository locked.
type RepoLock struct {
	path string
	fl   *flock.Flock
}

// New creates a lock stored at <stateDir>/merge.lock
func New(stateDir string) *RepoLock {
	path := filepath.Join(stateDir, FileName)
	return &RepoLock{path: path, fl: flock.New(path)}
}

// Path returns the lock file path
func (l *RepoLock) Path() string {
	return l.path
}

// Acquire takes the lock without waiting. It returns ErrRepoBusy when another
// process holds it.
func (l *RepoLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.path, err)
	}
	if !locked {
		return mgerrors.ErrRepoBusy
	}
	return nil
}

// Locked reports whether this RepoLock currently holds the lock
func (l *RepoLock) Locked() bool {
	return l.fl.Locked()
}

// Release gives the lock up. Releasing an unheld lock is a no-op.
func (l *RepoLock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return nil
}
