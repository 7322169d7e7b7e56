// Package atomicfile replaces files so that readers only ever observe the
// complete previous content or the complete new content.
//
// A write goes to a temp file in the destination directory, is flushed with
// fdatasync, renamed over the destination and followed by an fsync of the
// directory so the rename itself survives a crash.
package atomicfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// TempPrefix marks temp artifacts so crash leftovers can be found and removed.
const TempPrefix = ".tmp-"

// Options tunes a single write.
type Options struct {
	// Perm is the mode of the final file. Zero means 0644.
	Perm os.FileMode

	// BeforeRename runs after the temp file is durable and before it replaces
	// the destination. Returning an error aborts the write and removes the temp
	// file, leaving the destination untouched.
	BeforeRename func(tmpPath string) error
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, opts Options) error {
	return Write(path, bytes.NewReader(data), opts)
}

// Write atomically replaces path with everything read from r.
func Write(path string, r io.Reader, opts Options) error {
	perm := opts.Perm
	if perm == 0 {
		perm = 0644
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, TempPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return fmt.Errorf("setting temp file mode: %w", err)
	}

	if err := unix.Fdatasync(int(tmpFile.Fd())); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if opts.BeforeRename != nil {
		if err := opts.BeforeRename(tmpPath); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true

	if err := SyncDir(dir); err != nil {
		return err
	}
	return nil
}

// SyncDir fsyncs a directory so that entries created or renamed in it are
// durable.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening directory for sync: %w", err)
	}
	defer d.Close()

	if err := unix.Fsync(int(d.Fd())); err != nil {
		return fmt.Errorf("syncing directory: %w", err)
	}
	return nil
}

// CleanTemp removes temp artifacts for base left in dir by interrupted
// writes. It returns the removed paths.
func CleanTemp(dir, base string) ([]string, error) {
	pattern := filepath.Join(dir, TempPrefix+base+"-*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing temp files: %w", err)
	}

	removed := make([]string, 0, len(matches))
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing temp file %s: %w", m, err)
		}
		removed = append(removed, m)
	}
	return removed, nil
}
