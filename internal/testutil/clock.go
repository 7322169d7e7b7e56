package testutil

import (
	"fmt"
	"sync"
	"time"

	"turnkeep/internal/turn"
)

// SessionStart is where every FixedClock starts.
var SessionStart = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a turn.Clock that only moves when a test advances it.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// FixedClock returns a StubClock stopped at SessionStart.
func FixedClock() *StubClock {
	return &StubClock{now: SessionStart}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *StubClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// StubIDGenerator is a turn.IDGenerator issuing "id-1", "id-2", and so on.
type StubIDGenerator struct {
	mu   sync.Mutex
	last int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return fmt.Sprintf("id-%d", g.last)
}

// Skip burns n ids, so a generator in a restarted manager does not reissue
// ids already stored by the previous one.
func (g *StubIDGenerator) Skip(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last += n
}

var (
	_ turn.Clock       = (*StubClock)(nil)
	_ turn.IDGenerator = (*StubIDGenerator)(nil)
)
