package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"turnkeep/internal/state"
)

// CommandUndo is the event command recorded by compensating undo turns.
const CommandUndo = "turn_undo"

// CampaignInfo describes a loaded campaign.
type CampaignInfo struct {
	Campaign        *Campaign       `json:"campaign"`
	Counts          *Counts         `json:"counts"`
	OpenTurn        *Turn           `json:"open_turn,omitempty"`
	LatestCommitted *Turn           `json:"latest_committed_turn,omitempty"`
	Branches        []*Branch       `json:"branches"`
	Recovery        *RecoveryReport `json:"recovery"`
	StoreBackupPath string          `json:"store_backup_path,omitempty"`
}

// StatusReport is a cheap view of where a campaign stands.
type StatusReport struct {
	CampaignID          string     `json:"campaign_id"`
	OpenTurn            *Turn      `json:"open_turn,omitempty"`
	LatestCommitted     *Turn      `json:"latest_committed_turn,omitempty"`
	SnapshotTurnNumber  int64      `json:"snapshot_turn_number"`
	SnapshotChecksum    string     `json:"snapshot_checksum,omitempty"`
	SnapshotPublishedAt *time.Time `json:"snapshot_published_at,omitempty"`
}

// CreateCampaign initializes a new campaign store and publishes its empty
// initial snapshot. An empty id is replaced with a generated one.
func (m *Manager) CreateCampaign(ctx context.Context, id, name string) (c *Campaign, err error) {
	if id == "" {
		id = m.idgen.New()
	}
	ctx, span := m.startSpan(ctx, "turn.CreateCampaign", id)
	defer func() { endSpan(span, err) }()

	c = &Campaign{ID: id, Name: name, CreatedAt: m.clock.Now()}
	if err := m.createCampaign(ctx, c, state.New()); err != nil {
		return nil, err
	}
	m.logger.Info("campaign created", "campaign", id, "name", name)
	return c, nil
}

func (m *Manager) createCampaign(ctx context.Context, c *Campaign, initial state.State) error {
	a, err := m.opener.Create(ctx, c.ID)
	if err != nil {
		return asCoded("create", err, "creating campaign store")
	}

	fail := func(err error) error {
		if a.Release != nil {
			a.Release()
		}
		return err
	}

	if err := a.Store.Migrate(); err != nil {
		return fail(WrapError(CodeMigration, "create", err, "migrating campaign store"))
	}
	if err := a.Store.CreateCampaign(ctx, c); err != nil {
		return fail(asCoded("create", err, "persisting campaign"))
	}
	if len(initial) > 0 {
		if err := a.Store.ReplaceState(ctx, c.ID, initial); err != nil {
			return fail(asCoded("create", err, "seeding state"))
		}
	}
	if err := m.republish(ctx, a, c.ID, initial); err != nil {
		return fail(WrapError(CodeIO, "create", err, "publishing initial snapshot"))
	}

	m.register(c.ID, a)
	return nil
}

// LoadCampaign brings the campaign store to the current schema, runs
// recovery and reports where the campaign stands.
func (m *Manager) LoadCampaign(ctx context.Context, campaignID string) (info *CampaignInfo, err error) {
	ctx, span := m.startSpan(ctx, "turn.LoadCampaign", campaignID)
	defer func() { endSpan(span, err) }()

	var backup string
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		if a.Store.CheckMigrations() != nil {
			var err error
			if backup, err = m.backupStore(a, campaignID); err != nil {
				return err
			}
		}
		if err := a.Store.Migrate(); err != nil {
			return WrapError(CodeMigration, "load", err, "migrating campaign store")
		}

		c, err := a.Store.GetCampaign(ctx, campaignID)
		if err != nil {
			return asCoded("load", err, "loading campaign")
		}
		if c == nil {
			return NewError(CodeNotFound, "load", "campaign %s not found", campaignID)
		}

		report, err := m.recoverLocked(ctx, a, campaignID)
		if err != nil {
			return err
		}

		counts, err := a.Store.Counts(ctx, campaignID)
		if err != nil {
			return asCoded("load", err, "counting rows")
		}
		open, err := a.Store.GetOpenTurn(ctx, campaignID)
		if err != nil {
			return asCoded("load", err, "checking for open turn")
		}
		latest, err := a.Store.LatestCommittedTurn(ctx, campaignID)
		if err != nil {
			return asCoded("load", err, "loading latest turn")
		}
		branches, err := a.Store.ListBranches(ctx, campaignID)
		if err != nil {
			return asCoded("load", err, "listing branches")
		}

		info = &CampaignInfo{
			Campaign:        c,
			Counts:          counts,
			OpenTurn:        open,
			LatestCommitted: latest,
			Branches:        branches,
			Recovery:        report,
			StoreBackupPath: backup,
		}
		return nil
	})
	return info, err
}

// backupStore copies a file-backed store aside before it is migrated.
func (m *Manager) backupStore(a *Artifacts, campaignID string) (string, error) {
	path := a.Store.Path()
	if path == "" || path == ":memory:" {
		return "", nil
	}
	dest := path + ".pre-migrate-" + m.clock.Now().UTC().Format("20060102T150405Z")
	if err := a.Store.BackupTo(dest); err != nil {
		return "", WrapError(CodeIO, "load", err, "backing up store before migration")
	}
	m.logger.Info("store backed up before migration", "campaign", campaignID, "backup", dest)
	return dest, nil
}

// Status reports the open turn, the latest committed turn and the live
// snapshot position.
func (m *Manager) Status(ctx context.Context, campaignID string) (r *StatusReport, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		r = &StatusReport{CampaignID: campaignID}

		r.OpenTurn, err = a.Store.GetOpenTurn(ctx, campaignID)
		if err != nil {
			return asCoded("status", err, "checking for open turn")
		}
		r.LatestCommitted, err = a.Store.LatestCommittedTurn(ctx, campaignID)
		if err != nil {
			return asCoded("status", err, "loading latest turn")
		}

		snap, err := a.Snapshots.Read()
		if err != nil {
			return asCoded("status", err, "reading snapshot")
		}
		if snap != nil {
			r.SnapshotTurnNumber = snap.TurnNumber
			r.SnapshotChecksum = snap.Checksum
			published := snap.PublishedAt
			r.SnapshotPublishedAt = &published
		}
		return nil
	})
	return r, err
}

// Snapshot returns the live published snapshot, or nil if none exists.
func (m *Manager) Snapshot(ctx context.Context, campaignID string) (snap *Snapshot, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		snap, err = a.Snapshots.Read()
		if err != nil {
			return asCoded("snapshot", err, "reading snapshot")
		}
		return nil
	})
	return snap, err
}

// Undo reverts the most recent committed turn that is neither an undo nor
// already undone, by committing a new compensating turn that restores that
// turn's checkpoint. Repeated undos walk back through history, which is
// never rewritten.
func (m *Manager) Undo(ctx context.Context, campaignID, summary string) (*CommitResult, error) {
	var target *Turn
	var restored state.State

	err := m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		last, err := m.undoTarget(ctx, a, campaignID)
		if err != nil {
			return err
		}
		if last == nil {
			return NewError(CodeNotFound, "undo", "campaign %s has no committed turn to undo", campaignID)
		}
		if last.CheckpointPruned {
			return NewError(CodeValidation, "undo", "checkpoint of turn %d has been pruned", last.Number)
		}
		restored, err = a.Checkpoints.Load(last.Checkpoint)
		if err != nil {
			return asCoded("undo", err, "loading checkpoint")
		}
		target = last
		return nil
	})
	if err != nil {
		return nil, err
	}

	h, err := m.Begin(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"undone_turn_id":     target.ID,
		"undone_turn_number": target.Number,
	})
	if err != nil {
		m.abandon(ctx, h)
		return nil, WrapError(CodeIO, "undo", err, "encoding undo payload")
	}

	_, err = m.Apply(ctx, h, CommandUndo, payload, func(tx StateTx) error {
		return tx.Replace(restored)
	})
	if err != nil {
		m.abandon(ctx, h)
		return nil, err
	}

	if summary == "" {
		summary = fmt.Sprintf("undo turn %d", target.Number)
	}
	res, err := m.Commit(ctx, h, summary)
	if err != nil {
		m.abandon(ctx, h)
		return nil, err
	}
	m.logger.Info("turn undone", "campaign", campaignID, "undone", target.Number, "turn", res.TurnNumber)
	return res, nil
}

// undoTarget returns the newest committed turn that Undo may revert, or nil.
func (m *Manager) undoTarget(ctx context.Context, a *Artifacts, campaignID string) (*Turn, error) {
	records, err := a.Store.CommittedLog(ctx, campaignID)
	if err != nil {
		return nil, asCoded("undo", err, "reading committed events")
	}
	undoTurns := make(map[string]bool)
	undone := make(map[string]bool)
	for _, r := range records {
		if r.Command != CommandUndo {
			continue
		}
		undoTurns[r.TurnID] = true
		var p struct {
			UndoneTurnID string `json:"undone_turn_id"`
		}
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, WrapError(CodeCorruption, "undo", err, "decoding undo event %s", r.ID)
		}
		undone[p.UndoneTurnID] = true
	}

	turns, err := a.Store.ListTurns(ctx, campaignID)
	if err != nil {
		return nil, asCoded("undo", err, "listing turns")
	}
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Status == StatusCommitted && !undoTurns[t.ID] && !undone[t.ID] {
			return t, nil
		}
	}
	return nil, nil
}

// abandon rolls back a turn the manager opened on the caller's behalf.
func (m *Manager) abandon(ctx context.Context, h *Handle) {
	if _, err := m.Rollback(ctx, h); err != nil {
		m.logger.Error("rolling back abandoned turn", "campaign", h.CampaignID, "turn", h.TurnNumber, "error", err)
	}
}

// Branch forks a child campaign from the source campaign's live state. The
// turn open at the time (or the latest committed turn) is recorded as the
// branch point and can no longer be rolled back.
func (m *Manager) Branch(ctx context.Context, sourceID, childID, name string) (child *Campaign, err error) {
	if childID == "" {
		childID = m.idgen.New()
	}
	ctx, span := m.startSpan(ctx, "turn.Branch", sourceID)
	defer func() { endSpan(span, err) }()

	err = m.withCampaign(ctx, sourceID, func(a *Artifacts) error {
		src, err := a.Store.GetCampaign(ctx, sourceID)
		if err != nil {
			return asCoded("branch", err, "loading source campaign")
		}
		if src == nil {
			return NewError(CodeNotFound, "branch", "campaign %s not found", sourceID)
		}

		live, err := a.Store.LoadState(ctx, sourceID)
		if err != nil {
			return asCoded("branch", err, "loading live state")
		}

		var point *Turn
		point, err = a.Store.GetOpenTurn(ctx, sourceID)
		if err != nil {
			return asCoded("branch", err, "checking for open turn")
		}
		if point == nil {
			point, err = a.Store.LatestCommittedTurn(ctx, sourceID)
			if err != nil {
				return asCoded("branch", err, "loading latest turn")
			}
		}

		now := m.clock.Now()
		b := &Branch{ID: m.idgen.New(), ChildCampaignID: childID, CreatedAt: now}
		if point != nil {
			b.SourceTurnID = point.ID
			b.SourceTurnNumber = point.Number
		}

		if name == "" {
			name = src.Name
		}
		child = &Campaign{
			ID:               childID,
			Name:             name,
			CreatedAt:        now,
			ParentCampaignID: sourceID,
			BranchTurnNumber: b.SourceTurnNumber,
		}
		if err := m.createCampaign(ctx, child, live); err != nil {
			return err
		}

		if err := a.Store.CreateBranch(ctx, sourceID, b); err != nil {
			return asCoded("branch", err, "recording branch")
		}
		m.logger.Info("campaign branched", "campaign", sourceID, "child", childID, "turn", b.SourceTurnNumber)
		return nil
	})
	return child, err
}
