package database

import (
	"fmt"
	"path/filepath"

	"turnkeep/internal/config"
)

// FileName is the campaign store inside a campaign directory.
const FileName = "campaign.db"

// NewStoreFromConfig opens the campaign store for the campaign directory dir
// based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig, dir string) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if dir == "" {
			return nil, fmt.Errorf("campaign directory required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(dir, FileName))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
