// Package snapshot publishes the single live materialization of campaign
// state. Publication replaces the artifact atomically, so a reader sees
// either the previous snapshot or the new one in full.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"turnkeep/internal/atomicfile"
	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

// FileName is the live snapshot inside a campaign directory.
const FileName = "snapshot.json"

// FileWriter publishes snapshot.json with temp-write, fdatasync, rename and
// directory fsync.
type FileWriter struct {
	dir        string
	renameHook func(tmpPath string) error
}

// Option configures a FileWriter.
type Option func(*FileWriter)

// WithRenameHook installs a function that runs after the temp artifact is
// durable and before it replaces the live snapshot. An error from the hook
// abandons the publish.
func WithRenameHook(fn func(tmpPath string) error) Option {
	return func(w *FileWriter) { w.renameHook = fn }
}

// NewFileWriter creates a writer for the campaign directory dir.
func NewFileWriter(dir string, opts ...Option) *FileWriter {
	w := &FileWriter{dir: dir}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the live snapshot path.
func (w *FileWriter) Path() string {
	return filepath.Join(w.dir, FileName)
}

// Publish atomically replaces the live snapshot.
func (w *FileWriter) Publish(snap *turn.Snapshot) (string, error) {
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}
	if err := atomicfile.WriteFile(w.Path(), data, atomicfile.Options{BeforeRename: w.renameHook}); err != nil {
		return "", fmt.Errorf("publishing snapshot: %w", err)
	}
	return FileName, nil
}

// Read returns the live snapshot, or nil if none has been published.
func (w *FileWriter) Read() (*turn.Snapshot, error) {
	data, err := os.ReadFile(w.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return Decode(data)
}

// CleanTemp removes temp artifacts left by an interrupted Publish.
func (w *FileWriter) CleanTemp() ([]string, error) {
	return atomicfile.CleanTemp(w.dir, FileName)
}

// MemoryWriter keeps the live snapshot in memory. Safe for concurrent use.
type MemoryWriter struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) Publish(snap *turn.Snapshot) (string, error) {
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	w.data = data
	w.mu.Unlock()
	return FileName, nil
}

func (w *MemoryWriter) Read() (*turn.Snapshot, error) {
	w.mu.RLock()
	data := w.data
	w.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	return Decode(data)
}

func (w *MemoryWriter) CleanTemp() ([]string, error) {
	return nil, nil
}

// Encode renders snap as indented JSON, the form written to disk and archived.
func Encode(snap *turn.Snapshot) ([]byte, error) {
	if snap.State == nil {
		snap.State = state.New()
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot and checks that its state matches its checksum.
func Decode(data []byte) (*turn.Snapshot, error) {
	var snap turn.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, turn.WrapError(turn.CodeCorruption, "snapshot", err, "snapshot is not valid JSON")
	}
	if snap.State == nil {
		snap.State = state.New()
	}

	if !state.ValidChecksum(snap.Checksum) {
		return nil, turn.NewError(turn.CodeCorruption, "snapshot", "snapshot checksum has unknown algorithm").
			WithDetails(map[string]any{"expected": snap.Checksum, "algorithm": "unknown"})
	}

	canonical, err := state.Encode(snap.State)
	if err != nil {
		return nil, err
	}
	if actual := state.Checksum(canonical); actual != snap.Checksum {
		return nil, turn.NewError(turn.CodeCorruption, "snapshot", "snapshot checksum mismatch").
			WithDetails(map[string]any{"expected": snap.Checksum, "actual": actual})
	}
	return &snap, nil
}

var (
	_ turn.SnapshotWriter = (*FileWriter)(nil)
	_ turn.SnapshotWriter = (*MemoryWriter)(nil)
)
