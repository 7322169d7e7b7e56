package vault

import (
	"context"
	"fmt"

	"turnkeep/internal/archive"
	"turnkeep/internal/config"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (archive.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		v, err := NewS3Vault(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}

// Select returns the configured vault called name, or the first one when
// name is empty.
func Select(vaults []config.VaultConfig, name string) (config.VaultConfig, error) {
	if len(vaults) == 0 {
		return config.VaultConfig{}, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return vaults[0], nil
	}
	for _, v := range vaults {
		if v.Name == name {
			return v, nil
		}
	}
	return config.VaultConfig{}, fmt.Errorf("vault %q not configured", name)
}
