package turn

import (
	"encoding/json"
	"time"

	"turnkeep/internal/diff"
	"turnkeep/internal/state"
)

// Status is the lifecycle state of a turn.
type Status string

const (
	StatusOpen       Status = "open"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Terminal reports whether the turn can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusRolledBack
}

// Stage is the lifecycle state of a staged event.
type Stage string

const (
	StageStaged    Stage = "staged"
	StageCommitted Stage = "committed"
	StageDiscarded Stage = "discarded"
)

// Campaign is the top-level unit owning a turn sequence and its state.
type Campaign struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
	ParentCampaignID string    `json:"parent_campaign_id,omitempty"`
	BranchTurnNumber int64     `json:"branch_turn_number,omitempty"`
}

// Checkpoint references the state captured when a turn began.
type Checkpoint struct {
	Ref       string    `json:"ref"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one begin/commit/rollback bracket.
type Turn struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Number     int64      `json:"number"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Checkpoint Checkpoint `json:"checkpoint"`

	// CheckpointPruned is set once the checkpoint artifact has been deleted.
	CheckpointPruned bool `json:"checkpoint_pruned,omitempty"`
}

// StagedEvent is a mutation recorded while its turn was open.
type StagedEvent struct {
	ID           string          `json:"id"`
	CampaignID   string          `json:"campaign_id"`
	TurnID       string          `json:"turn_id"`
	Seq          int64           `json:"seq"`
	Command      string          `json:"command"`
	Payload      json.RawMessage `json:"payload"`
	Stage        Stage           `json:"stage"`
	FlushedToLog bool            `json:"flushed_to_log"`
	CreatedAt    time.Time       `json:"created_at"`
	DiscardedAt  *time.Time      `json:"discarded_at,omitempty"`
}

// TurnDiff is the persisted change-set of a committed turn.
type TurnDiff struct {
	ID         string     `json:"id"`
	TurnID     string     `json:"turn_id"`
	TurnNumber int64      `json:"turn_number"`
	Diff       *diff.Diff `json:"diff"`
	Summary    []string   `json:"summary"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Snapshot is the published materialization of campaign state.
type Snapshot struct {
	CampaignID  string      `json:"campaign_id"`
	TurnID      string      `json:"turn_id,omitempty"`
	TurnNumber  int64       `json:"turn_number"`
	PublishedAt time.Time   `json:"published_at"`
	Checksum    string      `json:"checksum"`
	State       state.State `json:"state"`
}

// LogRecord is one committed event in the append-only log.
type LogRecord struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	TurnID     string          `json:"turn_id"`
	TurnNumber int64           `json:"turn_number"`
	Seq        int64           `json:"seq"`
	Command    string          `json:"command"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Branch records that a child campaign was forked from this campaign.
type Branch struct {
	ID               string    `json:"id"`
	ChildCampaignID  string    `json:"child_campaign_id"`
	SourceTurnID     string    `json:"source_turn_id,omitempty"`
	SourceTurnNumber int64     `json:"source_turn_number"`
	CreatedAt        time.Time `json:"created_at"`
}

// Handle identifies an open turn. It is passed explicitly to every call
// that operates on the turn.
type Handle struct {
	CampaignID string     `json:"campaign_id"`
	TurnID     string     `json:"turn_id"`
	TurnNumber int64      `json:"turn_number"`
	Checkpoint Checkpoint `json:"checkpoint"`
}

// CommitResult is returned by Commit.
type CommitResult struct {
	TurnID      string     `json:"turn_id"`
	TurnNumber  int64      `json:"turn_number"`
	Checksum    string     `json:"checksum"`
	Diff        *diff.Diff `json:"diff"`
	Summary     []string   `json:"diff_summary"`
	SnapshotRef string     `json:"snapshot_ref"`
}

// RollbackResult is returned by Rollback.
type RollbackResult struct {
	TurnID     string `json:"turn_id"`
	TurnNumber int64  `json:"turn_number"`
	Discarded  int    `json:"discarded_events"`
}

// Counts summarizes the rows of a campaign store.
type Counts struct {
	Turns      int64            `json:"turns"`
	Committed  int64            `json:"committed"`
	RolledBack int64            `json:"rolled_back"`
	Events     int64            `json:"events"`
	Entities   map[string]int64 `json:"entities"`
}
