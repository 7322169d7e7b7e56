package campaign

import (
	"context"
	"sort"
	"sync"

	"turnkeep/internal/checkpoint"
	"turnkeep/internal/database"
	"turnkeep/internal/ledger"
	"turnkeep/internal/snapshot"
	"turnkeep/internal/turn"
)

// MemoryOpener keeps every campaign in memory for the life of the process.
// Release leaves the artifacts in place so a campaign can be reopened.
type MemoryOpener struct {
	mu        sync.Mutex
	clock     turn.Clock
	campaigns map[string]*turn.Artifacts
}

func NewMemoryOpener(clock turn.Clock) *MemoryOpener {
	return &MemoryOpener{clock: clock, campaigns: make(map[string]*turn.Artifacts)}
}

func (o *MemoryOpener) Open(ctx context.Context, campaignID string) (*turn.Artifacts, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.campaigns[campaignID]
	if !ok {
		return nil, turn.NewError(turn.CodeNotFound, "open", "campaign %s not found", campaignID)
	}
	return a, nil
}

func (o *MemoryOpener) Create(ctx context.Context, campaignID string) (*turn.Artifacts, error) {
	if err := ValidateID(campaignID); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.campaigns[campaignID]; ok {
		return nil, turn.NewError(turn.CodeConflict, "create", "campaign %s already exists", campaignID)
	}

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		return nil, err
	}
	a := &turn.Artifacts{
		Store:       store,
		Checkpoints: checkpoint.NewMemoryStore(o.clock),
		Snapshots:   snapshot.NewMemoryWriter(),
		Log:         ledger.NewMemoryLog(),
		Release:     func() error { return nil },
	}
	o.campaigns[campaignID] = a
	return a, nil
}

// List returns the ids of the campaigns created so far, sorted.
func (o *MemoryOpener) List() ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.campaigns))
	for id := range o.campaigns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Artifacts returns the artifacts of a created campaign, for tests that
// tamper with them directly.
func (o *MemoryOpener) Artifacts(campaignID string) (*turn.Artifacts, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.campaigns[campaignID]
	return a, ok
}

// Close closes every in-memory store.
func (o *MemoryOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, a := range o.campaigns {
		a.Store.Close()
		delete(o.campaigns, id)
	}
	return nil
}

var _ turn.Opener = (*MemoryOpener)(nil)
