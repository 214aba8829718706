// flock.go provides cross-process file locking.
// Used to serialize read-modify-write cycles on shared JSON state
// (worktree registry, team state) across concurrent hook and CLI processes.

package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock provides cross-process file locking.
// Unlike sync.Mutex which only works within a process, FileLock ensures
// mutual exclusion across multiple processes on the same machine.
type FileLock struct {
	path string
	fl   *flock.Flock
}

// NewFileLock creates a new file lock for the given path.
// The lock file will be created if it doesn't exist.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires an exclusive lock on the file.
// This blocks until the lock is acquired.
// The caller must call Unlock when done.
func (l *FileLock) Lock() error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	fl := flock.New(l.path)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	l.fl = fl
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's already held.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}
	fl := flock.New(l.path)
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return false, nil
	}
	l.fl = fl
	return true, nil
}

// Unlock releases the lock.
// Safe to call even if not locked.
func (l *FileLock) Unlock() error {
	if l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		l.fl = nil
		return fmt.Errorf("releasing lock: %w", err)
	}
	l.fl = nil
	return nil
}

// WithLock executes a function while holding the lock.
// Convenience wrapper that handles Lock/Unlock automatically.
func (l *FileLock) WithLock(fn func() error) error {
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}

func (l *FileLock) ensureDir() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	return nil
}
