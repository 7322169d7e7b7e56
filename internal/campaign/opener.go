// Package campaign locates campaign directories and assembles the durable
// artifacts the turn manager works on.
//
// On disk a campaign is one directory:
//
//	<data_dir>/campaigns/<campaign_id>/
//	    campaign.db           relational store
//	    events.ndjson         append-only log of committed events
//	    snapshot.json         live snapshot
//	    checkpoints/          one checkpoint per turn
//	    .lock                 single-writer lock
package campaign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"turnkeep/internal/checkpoint"
	"turnkeep/internal/config"
	"turnkeep/internal/database"
	"turnkeep/internal/ledger"
	"turnkeep/internal/lock"
	"turnkeep/internal/snapshot"
	"turnkeep/internal/turn"
)

// Dir is the directory under data_dir holding all campaigns.
const Dir = "campaigns"

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateID rejects ids that cannot be used as a directory name.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return turn.NewError(turn.CodeValidation, "campaign", "invalid campaign id %q", id)
	}
	return nil
}

// DirOpener opens campaigns stored under <data_dir>/campaigns.
type DirOpener struct {
	root         string
	database     config.DatabaseConfig
	checkpoints  config.CheckpointConfig
	clock        turn.Clock
	snapshotOpts []snapshot.Option
}

// Option configures a DirOpener.
type Option func(*DirOpener)

// WithSnapshotOptions passes options to every snapshot writer the opener
// creates.
func WithSnapshotOptions(opts ...snapshot.Option) Option {
	return func(o *DirOpener) { o.snapshotOpts = append(o.snapshotOpts, opts...) }
}

// NewDirOpener creates an opener for the campaigns under cfg.DataDir.
func NewDirOpener(cfg *config.Config, clock turn.Clock, opts ...Option) *DirOpener {
	o := &DirOpener{
		root:        filepath.Join(cfg.DataDir, Dir),
		database:    cfg.Database,
		checkpoints: cfg.Checkpoints,
		clock:       clock,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Path returns the directory of a campaign.
func (o *DirOpener) Path(campaignID string) string {
	return filepath.Join(o.root, campaignID)
}

// List returns the ids of all campaign directories, sorted.
func (o *DirOpener) List() ([]string, error) {
	entries, err := os.ReadDir(o.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && validID.MatchString(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (o *DirOpener) Open(ctx context.Context, campaignID string) (*turn.Artifacts, error) {
	if err := ValidateID(campaignID); err != nil {
		return nil, err
	}
	dir := o.Path(campaignID)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, turn.NewError(turn.CodeNotFound, "open", "campaign %s not found", campaignID)
		}
		return nil, fmt.Errorf("checking campaign directory: %w", err)
	}
	if !info.IsDir() {
		return nil, turn.NewError(turn.CodeCorruption, "open", "campaign path %s is not a directory", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, database.FileName)); err != nil && o.database.Type == "sqlite" {
		if errors.Is(err, os.ErrNotExist) {
			return nil, turn.NewError(turn.CodeNotFound, "open", "campaign %s has no store", campaignID)
		}
		return nil, fmt.Errorf("checking campaign store: %w", err)
	}
	return o.assemble(dir)
}

func (o *DirOpener) Create(ctx context.Context, campaignID string) (*turn.Artifacts, error) {
	if err := ValidateID(campaignID); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(o.root, 0755); err != nil {
		return nil, fmt.Errorf("creating campaigns directory: %w", err)
	}
	dir := o.Path(campaignID)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, turn.NewError(turn.CodeConflict, "create", "campaign %s already exists", campaignID)
		}
		return nil, fmt.Errorf("creating campaign directory: %w", err)
	}
	a, err := o.assemble(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return a, nil
}

// assemble takes the campaign lock and opens every artifact in dir.
func (o *DirOpener) assemble(dir string) (*turn.Artifacts, error) {
	lk, err := lock.Acquire(dir)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, turn.WrapError(turn.CodeConflict, "open", err, "campaign is in use")
		}
		return nil, err
	}

	store, err := database.NewStoreFromConfig(o.database, dir)
	if err != nil {
		lk.Release()
		return nil, err
	}

	var checkpoints turn.CheckpointStore
	switch o.checkpoints.Type {
	case "memory":
		checkpoints = checkpoint.NewMemoryStore(o.clock)
	case "filesystem", "":
		checkpoints, err = checkpoint.NewFileStore(dir, o.clock)
		if err != nil {
			store.Close()
			lk.Release()
			return nil, err
		}
	default:
		store.Close()
		lk.Release()
		return nil, fmt.Errorf("unknown checkpoint type: %s", o.checkpoints.Type)
	}

	return &turn.Artifacts{
		Store:       store,
		Checkpoints: checkpoints,
		Snapshots:   snapshot.NewFileWriter(dir, o.snapshotOpts...),
		Log:         ledger.NewFileLog(dir, o.clock),
		Release: func() error {
			return errors.Join(store.Close(), lk.Release())
		},
	}, nil
}

var _ turn.Opener = (*DirOpener)(nil)
