// Package filelock provides cross-process file locking and atomic writes
// for the durable stores, which share their data directory with other
// overseer processes (CLI commands, a supervising service).
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock coordinates exclusive access to a resource via an on-disk lock file.
type Lock struct {
	fl   *flock.Flock
	path string
}

// New creates a lock backed by the lock file at path. The file is created
// on first acquisition.
func New(path string) *Lock {
	return &Lock{fl: flock.New(path), path: path}
}

// Acquire blocks until the exclusive lock is held.
func (l *Lock) Acquire() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return nil
}

// TryAcquire attempts a non-blocking acquisition and reports success.
func (l *Lock) TryAcquire() (bool, error) {
	held, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock %s: %w", l.path, err)
	}
	return held, nil
}

// Release gives up the lock.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// WithLock runs fn while holding the exclusive lock at lockPath. The lock
// is released before returning; an fn error wins over a release error.
func WithLock(lockPath string, fn func() error) error {
	lock := New(lockPath)
	if err := lock.Acquire(); err != nil {
		return err
	}
	fnErr := fn()
	if relErr := lock.Release(); fnErr == nil && relErr != nil {
		return relErr
	}
	return fnErr
}

// AtomicWrite writes data to path through a temp file in the same directory
// followed by a rename, so readers never observe a partial record. The
// parent directory is created if absent.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	// Rename is atomic within a filesystem; the temp file lives next to the
	// target to guarantee both are on the same one.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	tmp = nil
	return nil
}
