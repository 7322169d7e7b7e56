package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"turnkeep/internal/snapshot"
	"turnkeep/internal/turn"
)

// Service pushes published snapshots to a vault and verifies them.
type Service struct {
	vault     Vault
	encryptor Encryptor
	clock     turn.Clock
	logger    turn.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(v Vault, enc Encryptor, clock turn.Clock, logger turn.Logger) *Service {
	if logger == nil {
		logger = turn.NewNopLogger()
	}
	return &Service{vault: v, encryptor: enc, clock: clock, logger: logger}
}

// PushResult describes a Push.
type PushResult struct {
	Entry Entry `json:"entry"`
	// Uploaded is false when the snapshot was already the latest archived
	// entry.
	Uploaded bool `json:"uploaded"`
}

// Push archives snap unless it is already the campaign's latest entry.
func (s *Service) Push(ctx context.Context, snap *turn.Snapshot) (*PushResult, error) {
	const op = "archive.push"
	if snap == nil {
		return nil, turn.NewError(turn.CodeNotFound, op, "campaign has no published snapshot")
	}

	m, err := s.manifest(ctx, snap.CampaignID)
	if err != nil {
		return nil, err
	}
	if latest := m.Latest(); latest != nil && latest.SnapshotChecksum == snap.Checksum && latest.TurnNumber == snap.TurnNumber {
		s.logger.Debug("snapshot already archived", "campaign_id", snap.CampaignID, "turn_number", snap.TurnNumber)
		return &PushResult{Entry: *latest}, nil
	}

	plain, err := snapshot.Encode(snap)
	if err != nil {
		return nil, err
	}
	var cipher bytes.Buffer
	if err := s.encryptor.Encrypt(bytes.NewReader(plain), &cipher); err != nil {
		return nil, turn.WrapError(turn.CodeIO, op, err, "encrypting snapshot")
	}
	sum := contentChecksum(cipher.Bytes())
	size := int64(cipher.Len())

	if err := s.vault.PutContent(ctx, sum, bytes.NewReader(cipher.Bytes()), size); err != nil {
		return nil, turn.WrapError(turn.CodeIO, op, err, "uploading snapshot")
	}

	entry := Entry{
		TurnID:           snap.TurnID,
		TurnNumber:       snap.TurnNumber,
		SnapshotChecksum: snap.Checksum,
		ContentChecksum:  sum,
		Size:             size,
		ArchivedAt:       s.clock.Now(),
	}
	m.Entries = append(m.Entries, entry)
	if err := storeManifest(ctx, s.vault, m); err != nil {
		return nil, turn.WrapError(turn.CodeIO, op, err, "updating manifest")
	}

	s.logger.Info("snapshot archived",
		"campaign_id", snap.CampaignID,
		"turn_number", snap.TurnNumber,
		"content_checksum", sum,
		"size", size)
	return &PushResult{Entry: entry, Uploaded: true}, nil
}

// List returns the campaign's manifest.
func (s *Service) List(ctx context.Context, campaignID string) (*Manifest, error) {
	return s.manifest(ctx, campaignID)
}

// Verify downloads an archived snapshot, decrypts it and checks both the
// ciphertext checksum and the snapshot's own state checksum. turnNumber 0
// selects the latest entry.
func (s *Service) Verify(ctx context.Context, campaignID string, turnNumber int64, dc DecryptionContext) (*Entry, error) {
	const op = "archive.verify"

	m, err := s.manifest(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	entry := m.Latest()
	if turnNumber != 0 {
		entry = nil
		for i := len(m.Entries) - 1; i >= 0; i-- {
			if m.Entries[i].TurnNumber == turnNumber {
				entry = &m.Entries[i]
				break
			}
		}
	}
	if entry == nil {
		return nil, turn.NewError(turn.CodeNotFound, op, "no archived snapshot").
			WithDetails(map[string]any{"campaign_id": campaignID, "turn_number": turnNumber})
	}

	var cipher bytes.Buffer
	if err := s.vault.GetContent(ctx, entry.ContentChecksum, &cipher); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, turn.WrapError(turn.CodeCorruption, op, err, "archived content is missing").
				WithDetails(map[string]any{"content_checksum": entry.ContentChecksum})
		}
		return nil, turn.WrapError(turn.CodeIO, op, err, "downloading snapshot")
	}
	if actual := contentChecksum(cipher.Bytes()); actual != entry.ContentChecksum {
		return nil, turn.NewError(turn.CodeCorruption, op, "archived content checksum mismatch").
			WithDetails(map[string]any{"expected": entry.ContentChecksum, "actual": actual})
	}

	var plain bytes.Buffer
	if err := dc.Decrypt(bytes.NewReader(cipher.Bytes()), &plain); err != nil {
		return nil, turn.WrapError(turn.CodeCorruption, op, err, "decrypting snapshot")
	}
	snap, err := snapshot.Decode(plain.Bytes())
	if err != nil {
		return nil, err
	}
	if snap.Checksum != entry.SnapshotChecksum || snap.CampaignID != campaignID {
		return nil, turn.NewError(turn.CodeCorruption, op, "archived snapshot does not match manifest").
			WithDetails(map[string]any{
				"expected": entry.SnapshotChecksum,
				"actual":   snap.Checksum,
			})
	}

	s.logger.Info("archived snapshot verified", "campaign_id", campaignID, "turn_number", entry.TurnNumber)
	return entry, nil
}

// manifest loads a campaign's manifest and checks it against the version
// the vault recorded with it.
func (s *Service) manifest(ctx context.Context, campaignID string) (*Manifest, error) {
	m, err := loadManifest(ctx, s.vault, campaignID)
	if err != nil {
		return nil, turn.WrapError(turn.CodeIO, "archive.manifest", err, "reading manifest")
	}
	version, err := s.vault.GetManifestVersion(ctx, campaignID)
	if err != nil {
		return nil, turn.WrapError(turn.CodeIO, "archive.manifest", err, "reading manifest version")
	}
	if version != int64(len(m.Entries)) {
		return nil, turn.NewError(turn.CodeCorruption, "archive.manifest", "manifest version mismatch").
			WithDetails(map[string]any{"version": version, "entries": len(m.Entries)})
	}
	return m, nil
}

// contentChecksum returns the SHA-256 hex digest vault content is keyed by.
func contentChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

