package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"turnkeep/internal/database/migrations"
	"turnkeep/internal/database/sqlc"
	"turnkeep/internal/diff"
	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

// Schema is the current schema, for tests that skip migrations.
//
//go:embed sqlc/schema.sql
var Schema string

// SQLiteStore implements turn.Store on a per-campaign SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
}

// NewSQLiteStore opens a campaign store. path can be a file path or
// ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db:      db,
		queries: sqlc.New(db),
		path:    path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: a campaign has a single writer, and every connection
	// to ":memory:" would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Schema operations

func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations fails with a migration error carrying the current and
// latest schema versions unless the store is current.
func (s *SQLiteStore) CheckMigrations() error {
	err := migrations.CheckDBMigrationStatus(s.db)
	if err == nil {
		return nil
	}
	coded := turn.WrapError(turn.CodeMigration, "schema", err, "schema is not current")
	if st, serr := migrations.GetStatus(s.db); serr == nil {
		coded.WithDetails(map[string]any{"current": st.Current, "latest": st.Latest, "dirty": st.Dirty})
	}
	return coded
}

// Campaign operations

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *turn.Campaign) error {
	params := sqlc.InsertCampaignParams{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
	}
	if c.ParentCampaignID != "" {
		params.ParentCampaignID = sql.NullString{String: c.ParentCampaignID, Valid: true}
		params.BranchTurnNumber = sql.NullInt64{Int64: c.BranchTurnNumber, Valid: true}
	}
	if err := s.queries.InsertCampaign(ctx, params); err != nil {
		if isUniqueViolation(err) {
			return turn.WrapError(turn.CodeConflict, "create", err, "campaign %s already exists", c.ID)
		}
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*turn.Campaign, error) {
	row, err := s.queries.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding campaign: %w", err)
	}
	return &turn.Campaign{
		ID:               row.ID,
		Name:             row.Name,
		CreatedAt:        row.CreatedAt,
		ParentCampaignID: row.ParentCampaignID.String,
		BranchTurnNumber: row.BranchTurnNumber.Int64,
	}, nil
}

// Turn operations

func (s *SQLiteStore) InsertTurn(ctx context.Context, t *turn.Turn) error {
	err := s.queries.InsertTurn(ctx, sqlc.InsertTurnParams{
		ID:                  t.ID,
		CampaignID:          t.CampaignID,
		Number:              t.Number,
		Status:              string(t.Status),
		StartedAt:           t.StartedAt,
		Summary:             t.Summary,
		CheckpointRef:       t.Checkpoint.Ref,
		CheckpointChecksum:  t.Checkpoint.Checksum,
		CheckpointCreatedAt: t.Checkpoint.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return turn.WrapError(turn.CodeConflict, "begin", err, "campaign %s already has an open turn or turn %d", t.CampaignID, t.Number)
		}
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTurn(ctx context.Context, turnID string) (*turn.Turn, error) {
	return optionalTurn(s.queries.GetTurn(ctx, turnID))
}

func (s *SQLiteStore) GetOpenTurn(ctx context.Context, campaignID string) (*turn.Turn, error) {
	return optionalTurn(s.queries.GetOpenTurn(ctx, campaignID))
}

func (s *SQLiteStore) LatestCommittedTurn(ctx context.Context, campaignID string) (*turn.Turn, error) {
	return optionalTurn(s.queries.GetLatestCommittedTurn(ctx, campaignID))
}

func (s *SQLiteStore) MaxTurnNumber(ctx context.Context, campaignID string) (int64, error) {
	n, err := s.queries.GetMaxTurnNumber(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("getting max turn number: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, campaignID string) ([]*turn.Turn, error) {
	rows, err := s.queries.ListTurns(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	result := make([]*turn.Turn, len(rows))
	for i := range rows {
		result[i] = toTurn(rows[i])
	}
	return result, nil
}

func (s *SQLiteStore) MarkCheckpointPruned(ctx context.Context, turnID string) error {
	if err := s.queries.MarkCheckpointPruned(ctx, turnID); err != nil {
		return fmt.Errorf("marking checkpoint pruned: %w", err)
	}
	return nil
}

// Event operations

// StageEvent runs mutate and records the event in one transaction. The turn
// is re-read inside the transaction so a concurrent commit cannot slip
// between the status check and the insert.
func (s *SQLiteStore) StageEvent(ctx context.Context, ev *turn.StagedEvent, mutate turn.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	t, err := qtx.GetTurn(ctx, ev.TurnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return turn.NewError(turn.CodeNoActiveTurn, "record", "turn %s not found", ev.TurnID)
		}
		return fmt.Errorf("loading turn: %w", err)
	}
	if t.Status != string(turn.StatusOpen) || t.CampaignID != ev.CampaignID {
		return turn.NewError(turn.CodeNoActiveTurn, "record", "turn %d is %s", t.Number, t.Status).
			WithDetails(map[string]any{"turn_id": t.ID, "status": t.Status})
	}

	seq, err := qtx.NextEventSeq(ctx, ev.TurnID)
	if err != nil {
		return fmt.Errorf("allocating event sequence: %w", err)
	}

	if mutate != nil {
		if err := mutate(&stateTx{ctx: ctx, q: qtx, campaignID: ev.CampaignID}); err != nil {
			return err
		}
	}

	err = qtx.InsertEvent(ctx, sqlc.InsertEventParams{
		ID:           ev.ID,
		CampaignID:   ev.CampaignID,
		TurnID:       ev.TurnID,
		Seq:          seq,
		Command:      ev.Command,
		Payload:      string(ev.Payload),
		Stage:        string(turn.StageStaged),
		FlushedToLog: false,
		CreatedAt:    ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	ev.Seq = seq
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, turnID string) ([]*turn.StagedEvent, error) {
	rows, err := s.queries.ListEventsByTurn(ctx, turnID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	result := make([]*turn.StagedEvent, len(rows))
	for i, r := range rows {
		ev := &turn.StagedEvent{
			ID:           r.ID,
			CampaignID:   r.CampaignID,
			TurnID:       r.TurnID,
			Seq:          r.Seq,
			Command:      r.Command,
			Payload:      json.RawMessage(r.Payload),
			Stage:        turn.Stage(r.Stage),
			FlushedToLog: r.FlushedToLog,
			CreatedAt:    r.CreatedAt,
		}
		if r.DiscardedAt.Valid {
			at := r.DiscardedAt.Time
			ev.DiscardedAt = &at
		}
		result[i] = ev
	}
	return result, nil
}

func (s *SQLiteStore) CommittedLog(ctx context.Context, campaignID string) ([]turn.LogRecord, error) {
	rows, err := s.queries.ListCommittedEvents(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing committed events: %w", err)
	}
	result := make([]turn.LogRecord, len(rows))
	for i, r := range rows {
		result[i] = turn.LogRecord{
			ID:         r.ID,
			CampaignID: r.CampaignID,
			TurnID:     r.TurnID,
			TurnNumber: r.TurnNumber,
			Seq:        r.Seq,
			Command:    r.Command,
			Payload:    json.RawMessage(r.Payload),
			Timestamp:  r.CreatedAt,
		}
	}
	return result, nil
}

// State operations

func (s *SQLiteStore) LoadState(ctx context.Context, campaignID string) (state.State, error) {
	rows, err := s.queries.ListEntities(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	st := state.New()
	for _, r := range rows {
		e, err := decodeEntity(r.Body)
		if err != nil {
			return nil, fmt.Errorf("entity %s/%s: %w", r.Kind, r.EntityID, err)
		}
		st.Put(r.Kind, r.EntityID, e)
	}
	return st, nil
}

func (s *SQLiteStore) ReplaceState(ctx context.Context, campaignID string, st state.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stx := &stateTx{ctx: ctx, q: s.queries.WithTx(tx), campaignID: campaignID}
	if err := stx.Replace(st); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Turn completion

// CommitTurn promotes the staged events, stores the diff and closes the
// turn. Nothing is visible unless all three succeed.
func (s *SQLiteStore) CommitTurn(ctx context.Context, p turn.CommitParams) error {
	if p.Diff == nil || p.Diff.Diff == nil {
		return turn.NewError(turn.CodeValidation, "commit", "turn %s has no diff", p.TurnID)
	}
	diffJSON, err := p.Diff.Diff.Marshal()
	if err != nil {
		return fmt.Errorf("encoding diff: %w", err)
	}
	summary := p.Diff.Summary
	if summary == nil {
		summary = []string{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding diff summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	if _, err := qtx.CommitStagedEvents(ctx, p.TurnID); err != nil {
		return fmt.Errorf("promoting staged events: %w", err)
	}

	err = qtx.InsertTurnDiff(ctx, sqlc.InsertTurnDiffParams{
		ID:         p.Diff.ID,
		TurnID:     p.TurnID,
		TurnNumber: p.Diff.TurnNumber,
		Diff:       string(diffJSON),
		Summary:    string(summaryJSON),
		CreatedAt:  p.Diff.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return turn.WrapError(turn.CodeConflict, "commit", err, "turn %s already has a diff", p.TurnID)
		}
		return fmt.Errorf("inserting turn diff: %w", err)
	}

	n, err := qtx.FinishTurn(ctx, sqlc.FinishTurnParams{
		Status:  string(turn.StatusCommitted),
		EndedAt: sql.NullTime{Time: p.EndedAt, Valid: true},
		Summary: p.Summary,
		ID:      p.TurnID,
	})
	if err != nil {
		return fmt.Errorf("marking turn committed: %w", err)
	}
	if n == 0 {
		return turn.NewError(turn.CodeNoActiveTurn, "commit", "turn %s is not open", p.TurnID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RollbackTurn restores the checkpointed state, discards the staged events
// and closes the turn in one transaction.
func (s *SQLiteStore) RollbackTurn(ctx context.Context, p turn.RollbackParams) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	stx := &stateTx{ctx: ctx, q: qtx, campaignID: p.CampaignID}
	if err := stx.Replace(p.Restore); err != nil {
		return 0, err
	}

	discarded, err := qtx.DiscardStagedEvents(ctx, sqlc.DiscardStagedEventsParams{
		DiscardedAt: sql.NullTime{Time: p.EndedAt, Valid: true},
		TurnID:      p.TurnID,
	})
	if err != nil {
		return 0, fmt.Errorf("discarding staged events: %w", err)
	}

	n, err := qtx.FinishTurn(ctx, sqlc.FinishTurnParams{
		Status:  string(turn.StatusRolledBack),
		EndedAt: sql.NullTime{Time: p.EndedAt, Valid: true},
		ID:      p.TurnID,
	})
	if err != nil {
		return 0, fmt.Errorf("marking turn rolled back: %w", err)
	}
	if n == 0 {
		return 0, turn.NewError(turn.CodeNoActiveTurn, "rollback", "turn %s is not open", p.TurnID)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return int(discarded), nil
}

// Diff operations

func (s *SQLiteStore) GetDiff(ctx context.Context, turnID string) (*turn.TurnDiff, error) {
	row, err := s.queries.GetTurnDiff(ctx, turnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding turn diff: %w", err)
	}
	return toTurnDiff(row)
}

func (s *SQLiteStore) RecentDiffs(ctx context.Context, campaignID string, limit int) ([]*turn.TurnDiff, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.queries.ListRecentTurnDiffs(ctx, sqlc.ListRecentTurnDiffsParams{
		CampaignID: campaignID,
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing turn diffs: %w", err)
	}
	result := make([]*turn.TurnDiff, 0, len(rows))
	for _, r := range rows {
		td, err := toTurnDiff(r)
		if err != nil {
			return nil, err
		}
		result = append(result, td)
	}
	return result, nil
}

func (s *SQLiteStore) CommittedTurnsWithoutDiff(ctx context.Context, campaignID string) ([]string, error) {
	ids, err := s.queries.ListCommittedTurnsWithoutDiff(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("checking committed turns: %w", err)
	}
	return nonNil(ids), nil
}

func (s *SQLiteStore) RolledBackTurnsWithFlushedEvents(ctx context.Context, campaignID string) ([]string, error) {
	ids, err := s.queries.ListRolledBackTurnsWithLiveEvents(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("checking rolled back turns: %w", err)
	}
	return nonNil(ids), nil
}

// Branch operations

func (s *SQLiteStore) CreateBranch(ctx context.Context, campaignID string, b *turn.Branch) error {
	params := sqlc.InsertBranchParams{
		ID:               b.ID,
		CampaignID:       campaignID,
		ChildCampaignID:  b.ChildCampaignID,
		SourceTurnNumber: b.SourceTurnNumber,
		CreatedAt:        b.CreatedAt,
	}
	if b.SourceTurnID != "" {
		params.SourceTurnID = sql.NullString{String: b.SourceTurnID, Valid: true}
	}
	if err := s.queries.InsertBranch(ctx, params); err != nil {
		if isUniqueViolation(err) {
			return turn.WrapError(turn.CodeConflict, "branch", err, "branch %s already recorded", b.ChildCampaignID)
		}
		return fmt.Errorf("inserting branch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BranchesFromTurn(ctx context.Context, turnID string) ([]*turn.Branch, error) {
	rows, err := s.queries.ListBranchesBySourceTurn(ctx, sql.NullString{String: turnID, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return toBranches(rows), nil
}

func (s *SQLiteStore) ListBranches(ctx context.Context, campaignID string) ([]*turn.Branch, error) {
	rows, err := s.queries.ListBranches(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return toBranches(rows), nil
}

// Maintenance

func (s *SQLiteStore) Counts(ctx context.Context, campaignID string) (*turn.Counts, error) {
	c := &turn.Counts{Entities: make(map[string]int64)}

	byStatus, err := s.queries.CountTurnsByStatus(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("counting turns: %w", err)
	}
	for _, r := range byStatus {
		c.Turns += r.Count
		switch turn.Status(r.Status) {
		case turn.StatusCommitted:
			c.Committed = r.Count
		case turn.StatusRolledBack:
			c.RolledBack = r.Count
		}
	}

	c.Events, err = s.queries.CountEvents(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	byKind, err := s.queries.CountEntitiesByKind(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("counting entities: %w", err)
	}
	for _, r := range byKind {
		c.Entities[r.Kind] = r.Count
	}
	return c, nil
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// stateTx is live state seen through an open transaction.
type stateTx struct {
	ctx        context.Context
	q          *sqlc.Queries
	campaignID string
}

func (t *stateTx) Get(kind, id string) (state.Entity, bool, error) {
	body, err := t.q.GetEntity(t.ctx, sqlc.GetEntityParams{CampaignID: t.campaignID, Kind: kind, EntityID: id})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("finding entity %s/%s: %w", kind, id, err)
	}
	e, err := decodeEntity(body)
	if err != nil {
		return nil, false, fmt.Errorf("entity %s/%s: %w", kind, id, err)
	}
	return e, true, nil
}

func (t *stateTx) Put(kind, id string, e state.Entity) error {
	if kind == "" || id == "" {
		return turn.NewError(turn.CodeValidation, "state", "entity kind and id are required")
	}
	if e == nil {
		e = state.Entity{}
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entity %s/%s: %w", kind, id, err)
	}
	err = t.q.UpsertEntity(t.ctx, sqlc.UpsertEntityParams{
		CampaignID: t.campaignID,
		Kind:       kind,
		EntityID:   id,
		Body:       string(body),
	})
	if err != nil {
		return fmt.Errorf("writing entity %s/%s: %w", kind, id, err)
	}
	return nil
}

func (t *stateTx) Delete(kind, id string) error {
	err := t.q.DeleteEntity(t.ctx, sqlc.DeleteEntityParams{CampaignID: t.campaignID, Kind: kind, EntityID: id})
	if err != nil {
		return fmt.Errorf("deleting entity %s/%s: %w", kind, id, err)
	}
	return nil
}

func (t *stateTx) IDs(kind string) ([]string, error) {
	ids, err := t.q.ListEntityIDs(t.ctx, sqlc.ListEntityIDsParams{CampaignID: t.campaignID, Kind: kind})
	if err != nil {
		return nil, fmt.Errorf("listing %s entities: %w", kind, err)
	}
	return nonNil(ids), nil
}

func (t *stateTx) Replace(st state.State) error {
	if err := t.q.DeleteEntities(t.ctx, t.campaignID); err != nil {
		return fmt.Errorf("clearing entities: %w", err)
	}
	for _, kind := range st.Kinds() {
		for _, id := range st.IDs(kind) {
			e, _ := st.Get(kind, id)
			if err := t.Put(kind, id, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Conversions

func optionalTurn(row sqlc.Turn, err error) (*turn.Turn, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding turn: %w", err)
	}
	return toTurn(row), nil
}

func toTurn(row sqlc.Turn) *turn.Turn {
	t := &turn.Turn{
		ID:         row.ID,
		CampaignID: row.CampaignID,
		Number:     row.Number,
		Status:     turn.Status(row.Status),
		StartedAt:  row.StartedAt,
		Summary:    row.Summary,
		Checkpoint: turn.Checkpoint{
			Ref:       row.CheckpointRef,
			Checksum:  row.CheckpointChecksum,
			CreatedAt: row.CheckpointCreatedAt,
		},
		CheckpointPruned: row.CheckpointPruned,
	}
	if row.EndedAt.Valid {
		ended := row.EndedAt.Time
		t.EndedAt = &ended
	}
	return t
}

func toTurnDiff(row sqlc.TurnDiff) (*turn.TurnDiff, error) {
	d, err := diff.Unmarshal([]byte(row.Diff))
	if err != nil {
		return nil, turn.WrapError(turn.CodeCorruption, "diff", err, "stored diff of turn %d is unreadable", row.TurnNumber)
	}
	var summary []string
	if err := json.Unmarshal([]byte(row.Summary), &summary); err != nil {
		return nil, turn.WrapError(turn.CodeCorruption, "diff", err, "stored summary of turn %d is unreadable", row.TurnNumber)
	}
	return &turn.TurnDiff{
		ID:         row.ID,
		TurnID:     row.TurnID,
		TurnNumber: row.TurnNumber,
		Diff:       d,
		Summary:    nonNil(summary),
		CreatedAt:  row.CreatedAt,
	}, nil
}

func toBranches(rows []sqlc.Branch) []*turn.Branch {
	result := make([]*turn.Branch, len(rows))
	for i, r := range rows {
		result[i] = &turn.Branch{
			ID:               r.ID,
			ChildCampaignID:  r.ChildCampaignID,
			SourceTurnID:     r.SourceTurnID.String,
			SourceTurnNumber: r.SourceTurnNumber,
			CreatedAt:        r.CreatedAt,
		}
	}
	return result
}

func decodeEntity(body string) (state.Entity, error) {
	var e state.Entity
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, fmt.Errorf("decoding entity: %w", err)
	}
	if e == nil {
		e = state.Entity{}
	}
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Compile-time check that SQLiteStore implements turn.Store
var _ turn.Store = (*SQLiteStore)(nil)
