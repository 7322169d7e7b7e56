// Package checkpoint stores the immutable state copies taken when a turn
// begins. A checkpoint is the canonical serialization of the full campaign
// state; its checksum is kept on the turn row and rechecked before the
// checkpoint is trusted for commit or rollback.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"turnkeep/internal/atomicfile"
	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

// Dir is the checkpoint directory inside a campaign directory.
const Dir = "checkpoints"

// FileStore keeps checkpoints as files under <campaign>/checkpoints/.
type FileStore struct {
	root  string
	clock turn.Clock
}

// NewFileStore creates a FileStore for the campaign directory root.
func NewFileStore(root string, clock turn.Clock) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &FileStore{root: root, clock: clock}, nil
}

// RefFor returns the ref of a turn's checkpoint.
func RefFor(turnNumber int64) string {
	return fmt.Sprintf("%s/turn-%06d.json", Dir, turnNumber)
}

// Create serializes st, writes it durably and returns its reference.
func (s *FileStore) Create(campaignID string, turnNumber int64, st state.State) (turn.Checkpoint, error) {
	data, err := state.Encode(st)
	if err != nil {
		return turn.Checkpoint{}, err
	}

	ref := RefFor(turnNumber)
	if err := atomicfile.WriteFile(s.path(ref), data, atomicfile.Options{Perm: 0444}); err != nil {
		return turn.Checkpoint{}, fmt.Errorf("writing checkpoint for campaign %s turn %d: %w", campaignID, turnNumber, err)
	}

	return turn.Checkpoint{
		Ref:       ref,
		Checksum:  state.Checksum(data),
		CreatedAt: s.clock.Now(),
	}, nil
}

// Verify recomputes the artifact's checksum.
func (s *FileStore) Verify(cp turn.Checkpoint) error {
	_, err := s.read(cp)
	return err
}

// Load verifies the checkpoint and returns its state.
func (s *FileStore) Load(cp turn.Checkpoint) (state.State, error) {
	data, err := s.read(cp)
	if err != nil {
		return nil, err
	}
	st, err := state.Decode(data)
	if err != nil {
		return nil, turn.WrapError(turn.CodeCorruption, "checkpoint", err, "checkpoint %s is not valid state", cp.Ref)
	}
	return st, nil
}

// Delete removes the artifact. Deleting a missing checkpoint is not an error.
func (s *FileStore) Delete(cp turn.Checkpoint) error {
	if err := os.Remove(s.path(cp.Ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting checkpoint %s: %w", cp.Ref, err)
	}
	return nil
}

// Path returns the filesystem path of a checkpoint.
func (s *FileStore) Path(cp turn.Checkpoint) string {
	return s.path(cp.Ref)
}

func (s *FileStore) read(cp turn.Checkpoint) ([]byte, error) {
	data, err := os.ReadFile(s.path(cp.Ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, turn.NewError(turn.CodeCorruption, "checkpoint", "checkpoint %s is missing", cp.Ref).
				WithDetails(map[string]any{"ref": cp.Ref})
		}
		return nil, fmt.Errorf("reading checkpoint %s: %w", cp.Ref, err)
	}
	return data, verifyChecksum(cp, data)
}

func (s *FileStore) path(ref string) string {
	// Refs are relative to the campaign directory and never escape it.
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		clean = filepath.Join(Dir, filepath.Base(clean))
	}
	return filepath.Join(s.root, clean)
}

func verifyChecksum(cp turn.Checkpoint, data []byte) error {
	if !state.ValidChecksum(cp.Checksum) {
		return turn.NewError(turn.CodeCorruption, "checkpoint", "checkpoint %s has a checksum of unknown algorithm", cp.Ref).
			WithDetails(map[string]any{"ref": cp.Ref, "expected": cp.Checksum, "algorithm": "unknown"})
	}
	actual := state.Checksum(data)
	if actual != cp.Checksum {
		return turn.NewError(turn.CodeCorruption, "checkpoint", "checkpoint %s checksum mismatch", cp.Ref).
			WithDetails(map[string]any{"ref": cp.Ref, "expected": cp.Checksum, "actual": actual})
	}
	return nil
}

var _ turn.CheckpointStore = (*FileStore)(nil)
