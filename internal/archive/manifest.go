package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry records one archived snapshot.
type Entry struct {
	TurnID           string    `json:"turn_id,omitempty"`
	TurnNumber       int64     `json:"turn_number"`
	SnapshotChecksum string    `json:"snapshot_checksum"`
	ContentChecksum  string    `json:"content_checksum"`
	Size             int64     `json:"size"`
	ArchivedAt       time.Time `json:"archived_at"`
}

// Manifest lists a campaign's archived snapshots, oldest first.
type Manifest struct {
	CampaignID string  `json:"campaign_id"`
	Entries    []Entry `json:"entries"`
}

// Latest returns the newest entry, or nil if nothing was archived.
func (m *Manifest) Latest() *Entry {
	if len(m.Entries) == 0 {
		return nil
	}
	return &m.Entries[len(m.Entries)-1]
}

// loadManifest fetches a campaign's manifest. A campaign with nothing
// archived yet gets an empty manifest.
func loadManifest(ctx context.Context, v Vault, campaignID string) (*Manifest, error) {
	var buf bytes.Buffer
	if err := v.GetManifest(ctx, campaignID, &buf); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Manifest{CampaignID: campaignID}, nil
		}
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

func storeManifest(ctx context.Context, v Vault, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	version := int64(len(m.Entries))
	if err := v.PutManifest(ctx, m.CampaignID, bytes.NewReader(data), int64(len(data)), version); err != nil {
		return fmt.Errorf("storing manifest: %w", err)
	}
	return nil
}
