package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileLock is an exclusive advisory lock held on a lock file.
type FileLock struct {
	f        *os.File
	borrowed bool
}

// Lock opens (creating if needed) the lock file at path and blocks until an
// exclusive lock is held.
func Lock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &FileLock{f: f}, nil
}

// LockOpen blocks until an exclusive lock on the open file f is held.
// Unlock releases the lock but leaves f open.
func LockOpen(f *os.File) (*FileLock, error) {
	if err := lockFile(f); err != nil {
		return nil, fmt.Errorf("flock %s: %w", f.Name(), err)
	}
	return &FileLock{f: f, borrowed: true}, nil
}

// Unlock releases the lock and closes a lock file opened by Lock.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	if !l.borrowed {
		if cerr := l.f.Close(); err == nil {
			err = cerr
		}
	}
	l.f = nil
	return err
}
