package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"turnkeep/internal/archive"
)

// MemoryVault is an in-memory implementation of archive.Vault, useful for
// tests. Safe for concurrent use.
type MemoryVault struct {
	name            string
	content         map[string][]byte // checksum -> content
	manifests       map[string][]byte // campaign id -> manifest
	manifestVersion map[string]int64
	mu              sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:            name,
		content:         make(map[string][]byte),
		manifests:       make(map[string][]byte),
		manifestVersion: make(map[string]int64),
	}
}

// Name returns the configured vault name.
func (m *MemoryVault) Name() string { return m.name }

// PutContent stores content identified by its checksum.
func (m *MemoryVault) PutContent(_ context.Context, checksum string, r io.Reader, size int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[checksum] = data
	return nil
}

// GetContent retrieves content by checksum.
func (m *MemoryVault) GetContent(_ context.Context, checksum string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[checksum]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("content %s: %w", checksum, archive.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// PutManifest stores a campaign manifest with its version.
func (m *MemoryVault) PutManifest(_ context.Context, campaignID string, r io.Reader, size int64, version int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[campaignID] = data
	m.manifestVersion[campaignID] = version
	return nil
}

// GetManifest retrieves a campaign manifest.
func (m *MemoryVault) GetManifest(_ context.Context, campaignID string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.manifests[campaignID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("manifest for campaign %s: %w", campaignID, archive.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// GetManifestVersion returns 0 if no manifest has been stored.
func (m *MemoryVault) GetManifestVersion(_ context.Context, campaignID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifestVersion[campaignID], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Corrupt replaces stored content, standing in for bit rot at the backend.
func (m *MemoryVault) Corrupt(checksum string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[checksum] = data
}

// readSized reads r fully and checks it produced exactly size bytes.
func readSized(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

var _ archive.Vault = (*MemoryVault)(nil)
