package checkpoint

import (
	"sync"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

// MemoryStore keeps checkpoints in memory. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	clock turn.Clock
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(clock turn.Clock) *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), clock: clock}
}

func (s *MemoryStore) Create(campaignID string, turnNumber int64, st state.State) (turn.Checkpoint, error) {
	data, err := state.Encode(st)
	if err != nil {
		return turn.Checkpoint{}, err
	}

	ref := campaignID + "/" + RefFor(turnNumber)
	s.mu.Lock()
	s.data[ref] = data
	s.mu.Unlock()

	return turn.Checkpoint{Ref: ref, Checksum: state.Checksum(data), CreatedAt: s.clock.Now()}, nil
}

func (s *MemoryStore) Verify(cp turn.Checkpoint) error {
	_, err := s.read(cp)
	return err
}

func (s *MemoryStore) Load(cp turn.Checkpoint) (state.State, error) {
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

func (s *MemoryStore) Delete(cp turn.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, cp.Ref)
	return nil
}

// Len returns the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) read(cp turn.Checkpoint) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.data[cp.Ref]
	s.mu.RUnlock()
	if !ok {
		return nil, turn.NewError(turn.CodeCorruption, "checkpoint", "checkpoint %s is missing", cp.Ref)
	}
	return data, verifyChecksum(cp, data)
}

var _ turn.CheckpointStore = (*MemoryStore)(nil)
