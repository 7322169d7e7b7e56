package turn

import (
	"context"
)

// DecisionAwaitingResume marks an open turn found at load time. The caller
// must commit or roll it back; recovery never resolves it silently.
const DecisionAwaitingResume = "awaiting_resume_decision"

const paritySampleSize = 5

// OpenTurnStatus describes an open turn discovered during recovery.
type OpenTurnStatus struct {
	TurnID          string `json:"turn_id"`
	TurnNumber      int64  `json:"turn_number"`
	Decision        string `json:"decision"`
	CheckpointValid bool   `json:"checkpoint_valid"`
	CheckpointError string `json:"checkpoint_error,omitempty"`
	// SnapshotAhead is set when the live snapshot was already published for
	// this turn, meaning a commit was interrupted after publishing.
	SnapshotAhead bool `json:"snapshot_ahead"`
}

// LogParity compares committed events in the store against the log file.
type LogParity struct {
	OK                 bool     `json:"ok"`
	DBCount            int      `json:"db_count"`
	FileCount          int      `json:"file_count"`
	FirstMismatchIndex int      `json:"first_mismatch_index"`
	OnlyInDBSample     []string `json:"only_in_db_sample"`
	OnlyInFileSample   []string `json:"only_in_file_sample"`
}

// RecoveryReport is what Recover found and fixed.
type RecoveryReport struct {
	CampaignID          string          `json:"campaign_id"`
	RemovedTempFiles    []string        `json:"removed_temp_files"`
	LogParity           LogParity       `json:"log_parity"`
	LogRepaired         bool            `json:"log_repaired"`
	LogBackupPath       string          `json:"log_backup_path,omitempty"`
	SnapshotRepublished bool            `json:"snapshot_republished"`
	OpenTurn            *OpenTurnStatus `json:"open_turn,omitempty"`
}

// ValidationReport is a read-only integrity check of a campaign.
type ValidationReport struct {
	CampaignID            string          `json:"campaign_id"`
	OK                    bool            `json:"ok"`
	SchemaError           string          `json:"schema_error,omitempty"`
	SchemaStatus          map[string]any  `json:"schema_status,omitempty"`
	LogParity             LogParity       `json:"log_parity"`
	CommittedWithoutDiff  []string        `json:"committed_without_diff"`
	RolledBackWithFlushed []string        `json:"rolled_back_with_flushed_events"`
	SnapshotOK            bool            `json:"snapshot_ok"`
	SnapshotError         string          `json:"snapshot_error,omitempty"`
	OpenTurn              *OpenTurnStatus `json:"open_turn,omitempty"`
}

// RepairReport is returned by RepairLog.
type RepairReport struct {
	CampaignID  string    `json:"campaign_id"`
	DryRun      bool      `json:"dry_run"`
	Before      LogParity `json:"before"`
	Rewritten   bool      `json:"rewritten"`
	RecordCount int       `json:"record_count"`
	BackupPath  string    `json:"backup_path,omitempty"`
}

// Recover brings a campaign back to a consistent state after a crash:
// stale snapshot temp files are removed, the append log is rebuilt from the
// store if they disagree, and a snapshot that lags the store is republished.
// An open turn is reported, not resolved.
func (m *Manager) Recover(ctx context.Context, campaignID string) (report *RecoveryReport, err error) {
	ctx, span := m.startSpan(ctx, "turn.Recover", campaignID)
	defer func() { endSpan(span, err) }()

	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		report, err = m.recoverLocked(ctx, a, campaignID)
		return err
	})
	return report, err
}

func (m *Manager) recoverLocked(ctx context.Context, a *Artifacts, campaignID string) (*RecoveryReport, error) {
	report := &RecoveryReport{CampaignID: campaignID}

	removed, err := a.Snapshots.CleanTemp()
	if err != nil {
		return nil, WrapError(CodeIO, "recover", err, "removing snapshot temp files")
	}
	report.RemovedTempFiles = removed
	if len(removed) > 0 {
		m.logger.Warn("removed interrupted snapshot writes", "campaign", campaignID, "count", len(removed))
	}

	parity, records, err := m.checkParity(ctx, a, campaignID)
	if err != nil {
		return nil, err
	}
	report.LogParity = parity
	if !parity.OK {
		backup, err := a.Log.Rewrite(records)
		if err != nil {
			return nil, WrapError(CodeIO, "recover", err, "rewriting event log")
		}
		report.LogRepaired = true
		report.LogBackupPath = backup
		m.logger.Warn("event log repaired from store", "campaign", campaignID,
			"db_count", parity.DBCount, "file_count", parity.FileCount, "backup", backup)
	}

	open, err := a.Store.GetOpenTurn(ctx, campaignID)
	if err != nil {
		return nil, asCoded("recover", err, "checking for open turn")
	}

	snap, snapErr := a.Snapshots.Read()
	if open != nil {
		report.OpenTurn = m.openTurnStatus(a, open, snap)
		m.logger.Warn("open turn awaiting resume decision", "campaign", campaignID,
			"turn", open.Number, "checkpoint_valid", report.OpenTurn.CheckpointValid)
		return report, nil
	}

	latest, err := a.Store.LatestCommittedTurn(ctx, campaignID)
	if err != nil {
		return nil, asCoded("recover", err, "loading latest turn")
	}
	var wantID string
	var wantNumber int64
	if latest != nil {
		wantID, wantNumber = latest.ID, latest.Number
	}
	if snapErr != nil || snap == nil || snap.TurnID != wantID || snap.TurnNumber != wantNumber {
		live, err := a.Store.LoadState(ctx, campaignID)
		if err != nil {
			return nil, asCoded("recover", err, "loading live state")
		}
		if err := m.republish(ctx, a, campaignID, live); err != nil {
			return nil, WrapError(CodeIO, "recover", err, "republishing snapshot")
		}
		report.SnapshotRepublished = true
		m.logger.Warn("snapshot republished from store", "campaign", campaignID, "turn", wantNumber)
	}

	return report, nil
}

// Validate checks the campaign's invariants without changing anything.
func (m *Manager) Validate(ctx context.Context, campaignID string) (report *ValidationReport, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		report = &ValidationReport{CampaignID: campaignID}

		if err := a.Store.CheckMigrations(); err != nil {
			report.SchemaError = err.Error()
			report.SchemaStatus = DetailsOf(err)
			// Nothing below is meaningful against an unknown schema.
			return nil
		}

		parity, _, err := m.checkParity(ctx, a, campaignID)
		if err != nil {
			return err
		}
		report.LogParity = parity

		report.CommittedWithoutDiff, err = a.Store.CommittedTurnsWithoutDiff(ctx, campaignID)
		if err != nil {
			return asCoded("validate", err, "checking diffs")
		}
		report.RolledBackWithFlushed, err = a.Store.RolledBackTurnsWithFlushedEvents(ctx, campaignID)
		if err != nil {
			return asCoded("validate", err, "checking rolled back events")
		}

		snap, snapErr := a.Snapshots.Read()
		switch {
		case snapErr != nil:
			report.SnapshotError = snapErr.Error()
		case snap == nil:
			report.SnapshotError = "no snapshot published"
		default:
			report.SnapshotOK = true
		}

		open, err := a.Store.GetOpenTurn(ctx, campaignID)
		if err != nil {
			return asCoded("validate", err, "checking for open turn")
		}
		if open != nil {
			report.OpenTurn = m.openTurnStatus(a, open, snap)
		}

		report.OK = parity.OK &&
			len(report.CommittedWithoutDiff) == 0 &&
			len(report.RolledBackWithFlushed) == 0 &&
			report.SnapshotOK &&
			(report.OpenTurn == nil || report.OpenTurn.CheckpointValid)
		return nil
	})
	return report, err
}

// RepairLog rebuilds the append log from committed events in the store. A
// dry run only reports parity.
func (m *Manager) RepairLog(ctx context.Context, campaignID string, dryRun bool) (report *RepairReport, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		parity, records, err := m.checkParity(ctx, a, campaignID)
		if err != nil {
			return err
		}
		report = &RepairReport{
			CampaignID:  campaignID,
			DryRun:      dryRun,
			Before:      parity,
			RecordCount: len(records),
		}
		if dryRun {
			return nil
		}

		backup, err := a.Log.Rewrite(records)
		if err != nil {
			return WrapError(CodeIO, "repair-log", err, "rewriting event log")
		}
		report.Rewritten = true
		report.BackupPath = backup
		m.logger.Info("event log rewritten", "campaign", campaignID, "records", len(records), "backup", backup)
		return nil
	})
	return report, err
}

// dropUncommitted removes records of the open turn t from the event log.
// They are only there if an earlier commit died between appending to the
// log and committing the store.
func (m *Manager) dropUncommitted(a *Artifacts, t *Turn, op string) error {
	records, err := a.Log.ReadAll()
	if err != nil {
		return WrapError(CodeIO, op, err, "reading event log")
	}
	kept := make([]LogRecord, 0, len(records))
	for _, r := range records {
		if r.TurnID != t.ID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	backup, err := a.Log.Rewrite(kept)
	if err != nil {
		return WrapError(CodeIO, op, err, "removing uncommitted records from event log")
	}
	m.logger.Warn("removed uncommitted records from event log", "campaign", t.CampaignID,
		"turn", t.Number, "dropped", len(records)-len(kept), "backup", backup)
	return nil
}

func (m *Manager) openTurnStatus(a *Artifacts, open *Turn, snap *Snapshot) *OpenTurnStatus {
	status := &OpenTurnStatus{
		TurnID:     open.ID,
		TurnNumber: open.Number,
		Decision:   DecisionAwaitingResume,
	}
	if err := a.Checkpoints.Verify(open.Checkpoint); err != nil {
		status.CheckpointError = err.Error()
	} else {
		status.CheckpointValid = true
	}
	if snap != nil && snap.TurnID == open.ID {
		status.SnapshotAhead = true
	}
	return status
}

// checkParity compares the committed events in the store with the log and
// returns the store's records in log order.
func (m *Manager) checkParity(ctx context.Context, a *Artifacts, campaignID string) (LogParity, []LogRecord, error) {
	dbRecords, err := a.Store.CommittedLog(ctx, campaignID)
	if err != nil {
		return LogParity{}, nil, asCoded("parity", err, "reading committed events")
	}
	fileRecords, err := a.Log.ReadAll()
	if err != nil {
		return LogParity{}, nil, WrapError(CodeIO, "parity", err, "reading event log")
	}

	p := LogParity{
		DBCount:            len(dbRecords),
		FileCount:          len(fileRecords),
		FirstMismatchIndex: -1,
		OnlyInDBSample:     []string{},
		OnlyInFileSample:   []string{},
	}

	n := min(len(dbRecords), len(fileRecords))
	for i := 0; i < n; i++ {
		if dbRecords[i].ID != fileRecords[i].ID {
			p.FirstMismatchIndex = i
			break
		}
	}
	if p.FirstMismatchIndex == -1 && len(dbRecords) != len(fileRecords) {
		p.FirstMismatchIndex = n
	}

	inFile := make(map[string]bool, len(fileRecords))
	for _, r := range fileRecords {
		inFile[r.ID] = true
	}
	inDB := make(map[string]bool, len(dbRecords))
	for _, r := range dbRecords {
		inDB[r.ID] = true
		if !inFile[r.ID] && len(p.OnlyInDBSample) < paritySampleSize {
			p.OnlyInDBSample = append(p.OnlyInDBSample, r.ID)
		}
	}
	for _, r := range fileRecords {
		if !inDB[r.ID] && len(p.OnlyInFileSample) < paritySampleSize {
			p.OnlyInFileSample = append(p.OnlyInFileSample, r.ID)
		}
	}

	p.OK = p.FirstMismatchIndex == -1
	return p, dbRecords, nil
}
