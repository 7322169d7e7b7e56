// Package lock provides the exclusive advisory lock that guarantees a single
// writer per campaign directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FileName is the lock file created inside each campaign directory.
const FileName = ".lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("campaign is locked by another process")

// File is a held flock on a campaign directory.
type File struct {
	f    *os.File
	path string
}

// Acquire takes an exclusive, non-blocking lock on dir/.lock. The calling
// process's pid is written into the file for operators.
func Acquire(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	return &File{f: f, path: path}, nil
}

// Path returns the lock file path.
func (l *File) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call more than once.
func (l *File) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
