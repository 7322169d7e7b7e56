package turn

import (
	"context"
	"encoding/json"
	"time"

	"turnkeep/internal/state"
)

// StateTx is the live materialized state as seen from inside the storage
// transaction that stages an event. Writes become visible to later commands
// in the same turn.
type StateTx interface {
	Get(kind, id string) (state.Entity, bool, error)
	Put(kind, id string, e state.Entity) error
	Delete(kind, id string) error
	IDs(kind string) ([]string, error)

	// Replace overwrites the entire campaign state.
	Replace(st state.State) error
}

// Mutation changes live state as part of staging an event.
type Mutation func(tx StateTx) error

// CommitParams carries everything the store persists when a turn commits.
type CommitParams struct {
	TurnID  string
	EndedAt time.Time
	Summary string
	Diff    *TurnDiff
}

// RollbackParams carries everything the store persists when a turn rolls
// back.
type RollbackParams struct {
	TurnID     string
	CampaignID string
	EndedAt    time.Time
	Restore    state.State
}

// Store is the relational campaign store: materialized state plus turn,
// event, diff and branch bookkeeping. Lookups return (nil, nil) when the
// row does not exist.
type Store interface {
	// Migrate brings the store to the latest schema version.
	Migrate() error
	// CheckMigrations reports an error unless the schema is current.
	CheckMigrations() error

	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)

	// InsertTurn persists a new open turn. It fails with a conflict error if
	// the campaign already has an open turn or the number is taken.
	InsertTurn(ctx context.Context, t *Turn) error
	GetTurn(ctx context.Context, turnID string) (*Turn, error)
	GetOpenTurn(ctx context.Context, campaignID string) (*Turn, error)
	LatestCommittedTurn(ctx context.Context, campaignID string) (*Turn, error)
	MaxTurnNumber(ctx context.Context, campaignID string) (int64, error)
	ListTurns(ctx context.Context, campaignID string) ([]*Turn, error)
	MarkCheckpointPruned(ctx context.Context, turnID string) error

	// StageEvent runs mutate against live state and inserts ev in one
	// transaction, assigning ev.Seq. It fails with no_active_turn unless the
	// event's turn is open.
	StageEvent(ctx context.Context, ev *StagedEvent, mutate Mutation) error
	ListEvents(ctx context.Context, turnID string) ([]*StagedEvent, error)
	// CommittedLog returns committed events in log order.
	CommittedLog(ctx context.Context, campaignID string) ([]LogRecord, error)

	LoadState(ctx context.Context, campaignID string) (state.State, error)
	ReplaceState(ctx context.Context, campaignID string, st state.State) error

	// CommitTurn promotes staged events, stores the diff and marks the turn
	// committed in one transaction.
	CommitTurn(ctx context.Context, p CommitParams) error
	// RollbackTurn restores state, discards staged events and marks the turn
	// rolled back in one transaction.
	RollbackTurn(ctx context.Context, p RollbackParams) (discarded int, err error)

	GetDiff(ctx context.Context, turnID string) (*TurnDiff, error)
	RecentDiffs(ctx context.Context, campaignID string, limit int) ([]*TurnDiff, error)
	CommittedTurnsWithoutDiff(ctx context.Context, campaignID string) ([]string, error)
	RolledBackTurnsWithFlushedEvents(ctx context.Context, campaignID string) ([]string, error)

	CreateBranch(ctx context.Context, campaignID string, b *Branch) error
	BranchesFromTurn(ctx context.Context, turnID string) ([]*Branch, error)
	ListBranches(ctx context.Context, campaignID string) ([]*Branch, error)

	Counts(ctx context.Context, campaignID string) (*Counts, error)
	// Path is the store's file, or ":memory:".
	Path() string
	BackupTo(destPath string) error
	Close() error
}

// CheckpointStore persists immutable copies of campaign state.
type CheckpointStore interface {
	Create(campaignID string, turnNumber int64, st state.State) (Checkpoint, error)
	// Verify fails with a corruption error if the artifact is missing or its
	// checksum no longer matches.
	Verify(cp Checkpoint) error
	// Load verifies and returns the checkpointed state.
	Load(cp Checkpoint) (state.State, error)
	Delete(cp Checkpoint) error
}

// SnapshotWriter publishes the single live snapshot.
type SnapshotWriter interface {
	Publish(snap *Snapshot) (ref string, err error)
	// Read returns the live snapshot, or (nil, nil) if none was published.
	Read() (*Snapshot, error)
	// CleanTemp removes temp artifacts left by an interrupted publish.
	CleanTemp() ([]string, error)
}

// EventLog is the append-only log of committed events.
type EventLog interface {
	// Append durably writes records in order. The returned revert undoes the
	// append if a later commit step fails.
	Append(records []LogRecord) (revert func() error, err error)
	ReadAll() ([]LogRecord, error)
	// Rewrite replaces the log with records, keeping a backup of the old
	// content. It returns the backup path.
	Rewrite(records []LogRecord) (backupPath string, err error)
}

// PayloadValidator checks a command payload against its registered schema.
type PayloadValidator interface {
	Validate(command string, payload json.RawMessage) error
}

// Artifacts is the bundle of per-campaign durable components.
type Artifacts struct {
	Store       Store
	Checkpoints CheckpointStore
	Snapshots   SnapshotWriter
	Log         EventLog

	// Release closes the store and drops the campaign lock.
	Release func() error
}

// Opener locates or creates the artifacts of a campaign.
type Opener interface {
	// Open returns an existing campaign's artifacts, failing with not_found
	// if the campaign does not exist.
	Open(ctx context.Context, campaignID string) (*Artifacts, error)
	// Create initializes a new campaign's artifacts, failing with conflict if
	// the campaign already exists.
	Create(ctx context.Context, campaignID string) (*Artifacts, error)
}
