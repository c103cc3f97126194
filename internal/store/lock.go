package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// LockFileName is the name of the lock file inside the data directory.
const LockFileName = "issuesync.lock"

// DirLock guards a data directory against a second writer process.
// The store and the search index both assume a single writer.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for dir. The lock file is <dir>/issuesync.lock.
func NewDirLock(dir string) *DirLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &DirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock takes the lock without blocking. It fails with ErrCodeStoreLocked
// when another process holds it.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return serrors.New(serrors.ErrCodeStoreLocked, "data directory is in use by another process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("stop the other issuesync process or wait for it to finish")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked DirLock is a no-op.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path of the lock file.
func (l *DirLock) Path() string {
	return l.path
}
