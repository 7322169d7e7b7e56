// Package ledger is the append-only log of committed events. Each record is
// one JSON line; records are only ever appended, except by an explicit
// Rewrite that keeps a backup of what it replaced.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"turnkeep/internal/atomicfile"
	"turnkeep/internal/turn"
)

// FileName is the append log inside a campaign directory.
const FileName = "events.ndjson"

// backupLayout names backups so that repeated rewrites never collide.
const backupLayout = "20060102T150405.000000000Z"

// maxLineSize bounds a single record when reading the log back.
const maxLineSize = 16 << 20

// FileLog appends committed events to events.ndjson.
type FileLog struct {
	path  string
	clock turn.Clock
}

// NewFileLog creates a log in the campaign directory dir.
func NewFileLog(dir string, clock turn.Clock) *FileLog {
	return &FileLog{path: filepath.Join(dir, FileName), clock: clock}
}

// Path returns the log file path.
func (l *FileLog) Path() string {
	return l.path
}

// Append writes records in one write and fdatasyncs before returning. The
// revert func truncates the log back to its size before the append.
func (l *FileLog) Append(records []turn.LogRecord) (func() error, error) {
	data, err := encode(records)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat event log: %w", err)
	}
	size := info.Size()

	revert := func() error {
		if err := os.Truncate(l.path, size); err != nil {
			return fmt.Errorf("truncating event log: %w", err)
		}
		return nil
	}

	if len(data) == 0 {
		return revert, nil
	}

	if _, err := f.Write(data); err != nil {
		revert()
		return nil, fmt.Errorf("appending to event log: %w", err)
	}
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		revert()
		return nil, fmt.Errorf("syncing event log: %w", err)
	}
	if size == 0 {
		if err := atomicfile.SyncDir(filepath.Dir(l.path)); err != nil {
			revert()
			return nil, err
		}
	}
	return revert, nil
}

// ReadAll returns every record in the log. A missing log is empty.
func (l *FileLog) ReadAll() ([]turn.LogRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []turn.LogRecord{}, nil
		}
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()
	return decode(f)
}

// Rewrite atomically replaces the log with records. The previous content is
// copied to a timestamped backup next to the log first.
func (l *FileLog) Rewrite(records []turn.LogRecord) (string, error) {
	data, err := encode(records)
	if err != nil {
		return "", err
	}

	var backup string
	old, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return "", fmt.Errorf("reading event log: %w", err)
	default:
		backup = fmt.Sprintf("%s.%s.bak", l.path, l.clock.Now().UTC().Format(backupLayout))
		if err := atomicfile.WriteFile(backup, old, atomicfile.Options{Perm: 0444}); err != nil {
			return "", fmt.Errorf("writing event log backup: %w", err)
		}
	}

	if err := atomicfile.WriteFile(l.path, data, atomicfile.Options{}); err != nil {
		return backup, fmt.Errorf("rewriting event log: %w", err)
	}
	return backup, nil
}

// MemoryLog keeps the log in memory. Safe for concurrent use.
type MemoryLog struct {
	mu      sync.Mutex
	records []turn.LogRecord
	backups [][]turn.LogRecord
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(records []turn.LogRecord) (func() error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := len(l.records)
	l.records = append(l.records, records...)
	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if len(l.records) > size {
			l.records = l.records[:size]
		}
		return nil
	}, nil
}

func (l *MemoryLog) ReadAll() ([]turn.LogRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]turn.LogRecord{}, l.records...), nil
}

func (l *MemoryLog) Rewrite(records []turn.LogRecord) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backups = append(l.backups, l.records)
	l.records = append([]turn.LogRecord{}, records...)
	return fmt.Sprintf("memory:backup-%d", len(l.backups)), nil
}

// Truncate drops records past n, as a crash between log append and
// database commit would leave the log short of the store.
func (l *MemoryLog) Truncate(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < len(l.records) {
		l.records = l.records[:n]
	}
}

func encode(records []turn.LogRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding log record %s: %w", r.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func decode(r io.Reader) ([]turn.LogRecord, error) {
	records := []turn.LogRecord{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec turn.LogRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, turn.WrapError(turn.CodeCorruption, "log", err, "event log line %d is not a valid record", line).
				WithDetails(map[string]any{"line": line})
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	return records, nil
}

var (
	_ turn.EventLog = (*FileLog)(nil)
	_ turn.EventLog = (*MemoryLog)(nil)
)
