package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"turnkeep/internal/campaign"
	"turnkeep/internal/commands"
	"turnkeep/internal/config"
	"turnkeep/internal/turn"
)

// TestManager bundles a manager with the collaborators tests poke at.
type TestManager struct {
	*turn.Manager
	Commands *commands.Registry
	Clock    *StubClock
	IDs      *StubIDGenerator
}

func newTestManager(t *testing.T, opener turn.Opener, opts ...turn.Option) *TestManager {
	t.Helper()
	clock := FixedClock()
	ids := NewStubIDGenerator()
	reg := commands.Default(ids)
	m := turn.NewManager(opener, reg, turn.NewNopLogger(), clock, ids, opts...)
	t.Cleanup(func() {
		m.Close()
	})
	return &TestManager{Manager: m, Commands: reg, Clock: clock, IDs: ids}
}

// NewMemoryManager creates a manager whose campaigns live in memory. The
// returned opener exposes each campaign's artifacts.
func NewMemoryManager(t *testing.T, opts ...turn.Option) (*TestManager, *campaign.MemoryOpener) {
	t.Helper()
	opener := campaign.NewMemoryOpener(FixedClock())
	t.Cleanup(func() {
		opener.Close()
	})
	return newTestManager(t, opener, opts...), opener
}

// NewDirManager creates a manager whose campaigns live under dataDir, with
// the same on-disk layout as production.
func NewDirManager(t *testing.T, dataDir string, openerOpts []campaign.Option, opts ...turn.Option) (*TestManager, *campaign.DirOpener) {
	t.Helper()
	opener := campaign.NewDirOpener(config.NewConfig(dataDir), FixedClock(), openerOpts...)
	return newTestManager(t, opener, opts...), opener
}

// Exec validates payload, builds the command's mutation and applies it
// inside the turn.
func (m *TestManager) Exec(ctx context.Context, h *turn.Handle, command, payload string) (string, error) {
	raw := json.RawMessage(payload)
	mutate, err := m.Commands.Mutation(command, raw)
	if err != nil {
		return "", err
	}
	return m.Apply(ctx, h, command, raw, mutate)
}

// MustExec is Exec that fails the test on error.
func (m *TestManager) MustExec(t *testing.T, h *turn.Handle, command, payload string) string {
	t.Helper()
	id, err := m.Exec(context.Background(), h, command, payload)
	if err != nil {
		t.Fatalf("%s %s: %v", command, payload, err)
	}
	return id
}
