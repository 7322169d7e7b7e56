package testutil

import (
	"turnkeep/internal/archive"
	"turnkeep/internal/encryption"
	"turnkeep/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewTestEncryptor creates a deterministic encryptor for testing.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// NewTestArchive creates an archive service backed by v and the test
// encryptor.
func NewTestArchive(v archive.Vault) *archive.Service {
	return archive.NewService(v, NewTestEncryptor(), FixedClock(), nil)
}
