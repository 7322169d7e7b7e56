package campaign

import (
	"turnkeep/internal/config"
	"turnkeep/internal/turn"
)

// Lister is implemented by openers that can enumerate their campaigns.
type Lister interface {
	List() ([]string, error)
}

var (
	_ Lister = (*DirOpener)(nil)
	_ Lister = (*MemoryOpener)(nil)
)

// NewOpenerFromConfig creates the opener for cfg. A memory database keeps
// the whole campaign in memory; anything else lives under data_dir.
func NewOpenerFromConfig(cfg *config.Config, clock turn.Clock, opts ...Option) turn.Opener {
	if cfg.Database.Type == "memory" {
		return NewMemoryOpener(clock)
	}
	return NewDirOpener(cfg, clock, opts...)
}
