package database

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"turnkeep/internal/diff"
	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// newTestStore creates a new in-memory store with schema applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		s.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// seedCampaign creates campaign c1 with an open turn t1.
func seedCampaign(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateCampaign(ctx, &turn.Campaign{ID: "c1", Name: "Ashfall", CreatedAt: testTime}); err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}
	insertTurn(t, s, "t1", 1)
}

func insertTurn(t *testing.T, s *SQLiteStore, id string, number int64) {
	t.Helper()
	err := s.InsertTurn(context.Background(), &turn.Turn{
		ID:         id,
		CampaignID: "c1",
		Number:     number,
		Status:     turn.StatusOpen,
		StartedAt:  testTime,
		Checkpoint: turn.Checkpoint{Ref: "checkpoints/" + id + ".json", Checksum: "xxh64:0000000000000000", CreatedAt: testTime},
	})
	if err != nil {
		t.Fatalf("InsertTurn(%s) error = %v", id, err)
	}
}

func putNPC(id string, hp float64) turn.Mutation {
	return func(tx turn.StateTx) error {
		return tx.Put("npc", id, state.Entity{"name": id, "hp": hp})
	}
}

func stage(t *testing.T, s *SQLiteStore, id, turnID string, mutate turn.Mutation) *turn.StagedEvent {
	t.Helper()
	ev := &turn.StagedEvent{
		ID:         id,
		CampaignID: "c1",
		TurnID:     turnID,
		Command:    "npc_create",
		Payload:    json.RawMessage(`{}`),
		CreatedAt:  testTime,
	}
	if err := s.StageEvent(context.Background(), ev, mutate); err != nil {
		t.Fatalf("StageEvent(%s) error = %v", id, err)
	}
	return ev
}

func testDiff(id, turnID string, number int64) *turn.TurnDiff {
	return &turn.TurnDiff{ID: id, TurnID: turnID, TurnNumber: number, Diff: diff.Empty(), CreatedAt: testTime}
}

func TestSQLiteStore_Campaign(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("missing campaign", func(t *testing.T) {
		got, err := s.GetCampaign(ctx, "nope")
		if err != nil {
			t.Fatalf("GetCampaign() error = %v", err)
		}
		if got != nil {
			t.Errorf("GetCampaign() = %+v, want nil", got)
		}
	})

	t.Run("create and get", func(t *testing.T) {
		c := &turn.Campaign{ID: "c1", Name: "Ashfall", CreatedAt: testTime, ParentCampaignID: "c0", BranchTurnNumber: 4}
		if err := s.CreateCampaign(ctx, c); err != nil {
			t.Fatalf("CreateCampaign() error = %v", err)
		}
		got, err := s.GetCampaign(ctx, "c1")
		if err != nil {
			t.Fatalf("GetCampaign() error = %v", err)
		}
		if got.Name != "Ashfall" || got.ParentCampaignID != "c0" || got.BranchTurnNumber != 4 {
			t.Errorf("GetCampaign() = %+v", got)
		}
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		err := s.CreateCampaign(ctx, &turn.Campaign{ID: "c1", Name: "Again", CreatedAt: testTime})
		if !errors.Is(err, turn.ErrConflict) {
			t.Errorf("CreateCampaign() error = %v, want conflict", err)
		}
	})
}

func TestSQLiteStore_InsertTurn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCampaign(t, s)

	t.Run("second open turn is a conflict", func(t *testing.T) {
		err := s.InsertTurn(ctx, &turn.Turn{ID: "t2", CampaignID: "c1", Number: 2, Status: turn.StatusOpen, StartedAt: testTime})
		if !errors.Is(err, turn.ErrConflict) {
			t.Errorf("InsertTurn() error = %v, want conflict", err)
		}
	})

	t.Run("open turn lookup", func(t *testing.T) {
		got, err := s.GetOpenTurn(ctx, "c1")
		if err != nil {
			t.Fatalf("GetOpenTurn() error = %v", err)
		}
		if got == nil || got.ID != "t1" || got.Status != turn.StatusOpen {
			t.Errorf("GetOpenTurn() = %+v, want t1 open", got)
		}
		if got.Checkpoint.Ref != "checkpoints/t1.json" {
			t.Errorf("Checkpoint.Ref = %q", got.Checkpoint.Ref)
		}
	})

	t.Run("max turn number", func(t *testing.T) {
		n, err := s.MaxTurnNumber(ctx, "c1")
		if err != nil {
			t.Fatalf("MaxTurnNumber() error = %v", err)
		}
		if n != 1 {
			t.Errorf("MaxTurnNumber() = %d, want 1", n)
		}
	})
}

func TestSQLiteStore_StageEvent(t *testing.T) {
	t.Run("assigns sequence and applies mutation", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()
		seedCampaign(t, s)

		first := stage(t, s, "e1", "t1", putNPC("mara", 10))
		second := stage(t, s, "e2", "t1", func(tx turn.StateTx) error {
			e, ok, err := tx.Get("npc", "mara")
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("earlier write not visible")
			}
			e["hp"] = e["hp"].(float64) - 3
			return tx.Put("npc", "mara", e)
		})

		if first.Seq != 1 || second.Seq != 2 {
			t.Errorf("Seq = %d, %d, want 1, 2", first.Seq, second.Seq)
		}

		st, err := s.LoadState(ctx, "c1")
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		e, ok := st.Get("npc", "mara")
		if !ok || e["hp"] != float64(7) {
			t.Errorf("npc/mara = %v, want hp 7", e)
		}

		events, err := s.ListEvents(ctx, "t1")
		if err != nil {
			t.Fatalf("ListEvents() error = %v", err)
		}
		if len(events) != 2 || events[0].Stage != turn.StageStaged {
			t.Errorf("ListEvents() = %+v, want 2 staged events", events)
		}
	})

	t.Run("failed mutation leaves no trace", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()
		seedCampaign(t, s)

		ev := &turn.StagedEvent{ID: "e1", CampaignID: "c1", TurnID: "t1", Command: "npc_create", Payload: json.RawMessage(`{}`), CreatedAt: testTime}
		boom := errors.New("boom")
		err := s.StageEvent(ctx, ev, func(tx turn.StateTx) error {
			if err := tx.Put("npc", "mara", state.Entity{"hp": 10.0}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("StageEvent() error = %v, want boom", err)
		}

		st, err := s.LoadState(ctx, "c1")
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if st.Count("npc") != 0 {
			t.Errorf("npc count = %d, want 0", st.Count("npc"))
		}
		events, _ := s.ListEvents(ctx, "t1")
		if len(events) != 0 {
			t.Errorf("ListEvents() = %d events, want 0", len(events))
		}
	})

	t.Run("turn not open", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()
		seedCampaign(t, s)

		if err := s.CommitTurn(ctx, turn.CommitParams{TurnID: "t1", EndedAt: testTime, Diff: testDiff("d1", "t1", 1)}); err != nil {
			t.Fatalf("CommitTurn() error = %v", err)
		}

		ev := &turn.StagedEvent{ID: "e1", CampaignID: "c1", TurnID: "t1", Command: "npc_create", Payload: json.RawMessage(`{}`), CreatedAt: testTime}
		if err := s.StageEvent(ctx, ev, nil); !errors.Is(err, turn.ErrNoActiveTurn) {
			t.Errorf("StageEvent() error = %v, want no_active_turn", err)
		}
	})

	t.Run("unknown turn", func(t *testing.T) {
		s := newTestStore(t)
		seedCampaign(t, s)

		ev := &turn.StagedEvent{ID: "e1", CampaignID: "c1", TurnID: "missing", Command: "npc_create", Payload: json.RawMessage(`{}`), CreatedAt: testTime}
		if err := s.StageEvent(context.Background(), ev, nil); !errors.Is(err, turn.ErrNoActiveTurn) {
			t.Errorf("StageEvent() error = %v, want no_active_turn", err)
		}
	})
}

func TestSQLiteStore_CommitTurn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCampaign(t, s)

	stage(t, s, "e1", "t1", putNPC("mara", 10))
	stage(t, s, "e2", "t1", putNPC("brin", 4))

	after := state.New()
	after.Put("npc", "mara", state.Entity{"name": "mara", "hp": 10.0})
	d := &turn.TurnDiff{
		ID:         "d1",
		TurnID:     "t1",
		TurnNumber: 1,
		Diff:       diff.Compute(state.New(), after),
		Summary:    []string{"npc mara created"},
		CreatedAt:  testTime,
	}
	if err := s.CommitTurn(ctx, turn.CommitParams{TurnID: "t1", EndedAt: testTime, Summary: "arrival", Diff: d}); err != nil {
		t.Fatalf("CommitTurn() error = %v", err)
	}

	got, err := s.GetTurn(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTurn() error = %v", err)
	}
	if got.Status != turn.StatusCommitted || got.EndedAt == nil || got.Summary != "arrival" {
		t.Errorf("GetTurn() = %+v, want committed with summary", got)
	}

	log, err := s.CommittedLog(ctx, "c1")
	if err != nil {
		t.Fatalf("CommittedLog() error = %v", err)
	}
	if len(log) != 2 || log[0].ID != "e1" || log[1].Seq != 2 || log[0].TurnNumber != 1 {
		t.Errorf("CommittedLog() = %+v", log)
	}

	stored, err := s.GetDiff(ctx, "t1")
	if err != nil {
		t.Fatalf("GetDiff() error = %v", err)
	}
	if stored == nil || stored.Diff.Len() != d.Diff.Len() || len(stored.Summary) != 1 {
		t.Errorf("GetDiff() = %+v", stored)
	}

	latest, err := s.LatestCommittedTurn(ctx, "c1")
	if err != nil || latest == nil || latest.ID != "t1" {
		t.Errorf("LatestCommittedTurn() = %+v, %v", latest, err)
	}

	t.Run("commit twice fails", func(t *testing.T) {
		err := s.CommitTurn(ctx, turn.CommitParams{TurnID: "t1", EndedAt: testTime, Diff: testDiff("d2", "t1", 1)})
		if err == nil {
			t.Fatal("CommitTurn() on committed turn should fail")
		}
	})

	t.Run("missing diff is a validation error", func(t *testing.T) {
		err := s.CommitTurn(ctx, turn.CommitParams{TurnID: "t1", EndedAt: testTime})
		if !errors.Is(err, turn.ErrValidation) {
			t.Errorf("CommitTurn() error = %v, want validation", err)
		}
	})

	t.Run("committed turns have diffs", func(t *testing.T) {
		ids, err := s.CommittedTurnsWithoutDiff(ctx, "c1")
		if err != nil {
			t.Fatalf("CommittedTurnsWithoutDiff() error = %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("CommittedTurnsWithoutDiff() = %v, want none", ids)
		}
	})
}

func TestSQLiteStore_RollbackTurn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCampaign(t, s)

	restore := state.New()
	restore.Put("world", "main", state.Entity{"weather": "rain"})
	if err := s.ReplaceState(ctx, "c1", restore); err != nil {
		t.Fatalf("ReplaceState() error = %v", err)
	}

	stage(t, s, "e1", "t1", putNPC("mara", 10))
	stage(t, s, "e2", "t1", func(tx turn.StateTx) error { return tx.Delete("world", "main") })

	discarded, err := s.RollbackTurn(ctx, turn.RollbackParams{TurnID: "t1", CampaignID: "c1", EndedAt: testTime, Restore: restore})
	if err != nil {
		t.Fatalf("RollbackTurn() error = %v", err)
	}
	if discarded != 2 {
		t.Errorf("RollbackTurn() discarded = %d, want 2", discarded)
	}

	st, err := s.LoadState(ctx, "c1")
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	want, _ := state.Encode(restore)
	gotBytes, _ := state.Encode(st)
	if string(gotBytes) != string(want) {
		t.Errorf("state after rollback = %s, want %s", gotBytes, want)
	}

	events, _ := s.ListEvents(ctx, "t1")
	for _, ev := range events {
		if ev.Stage != turn.StageDiscarded || ev.DiscardedAt == nil {
			t.Errorf("event %s stage = %s, want discarded", ev.ID, ev.Stage)
		}
	}

	if _, err := s.RollbackTurn(ctx, turn.RollbackParams{TurnID: "t1", CampaignID: "c1", EndedAt: testTime, Restore: restore}); !errors.Is(err, turn.ErrNoActiveTurn) {
		t.Errorf("second RollbackTurn() error = %v, want no_active_turn", err)
	}

	log, _ := s.CommittedLog(ctx, "c1")
	if len(log) != 0 {
		t.Errorf("CommittedLog() = %d records, want 0", len(log))
	}
}

func TestSQLiteStore_Branches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCampaign(t, s)

	b := &turn.Branch{ID: "b1", ChildCampaignID: "c2", SourceTurnID: "t1", SourceTurnNumber: 1, CreatedAt: testTime}
	if err := s.CreateBranch(ctx, "c1", b); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if err := s.CreateBranch(ctx, "c1", &turn.Branch{ID: "b2", ChildCampaignID: "c2", CreatedAt: testTime}); !errors.Is(err, turn.ErrConflict) {
		t.Errorf("duplicate CreateBranch() error = %v, want conflict", err)
	}

	fromTurn, err := s.BranchesFromTurn(ctx, "t1")
	if err != nil {
		t.Fatalf("BranchesFromTurn() error = %v", err)
	}
	if len(fromTurn) != 1 || fromTurn[0].ChildCampaignID != "c2" {
		t.Errorf("BranchesFromTurn() = %+v", fromTurn)
	}

	all, err := s.ListBranches(ctx, "c1")
	if err != nil {
		t.Fatalf("ListBranches() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListBranches() = %d, want 1", len(all))
	}
}

func TestSQLiteStore_Counts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCampaign(t, s)

	stage(t, s, "e1", "t1", putNPC("mara", 10))
	if err := s.CommitTurn(ctx, turn.CommitParams{TurnID: "t1", EndedAt: testTime, Diff: testDiff("d1", "t1", 1)}); err != nil {
		t.Fatalf("CommitTurn() error = %v", err)
	}
	insertTurn(t, s, "t2", 2)
	if _, err := s.RollbackTurn(ctx, turn.RollbackParams{TurnID: "t2", CampaignID: "c1", EndedAt: testTime, Restore: state.New()}); err != nil {
		t.Fatalf("RollbackTurn() error = %v", err)
	}

	c, err := s.Counts(ctx, "c1")
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if c.Turns != 2 || c.Committed != 1 || c.RolledBack != 1 || c.Events != 1 {
		t.Errorf("Counts() = %+v", c)
	}
}

func TestSQLiteStore_BackupTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCampaign(t, s)
	stage(t, s, "e1", "t1", putNPC("mara", 10))

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := s.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	backup, err := NewSQLiteStore(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer backup.Close()

	st, err := backup.LoadState(ctx, "c1")
	if err != nil {
		t.Fatalf("LoadState() on backup error = %v", err)
	}
	if _, ok := st.Get("npc", "mara"); !ok {
		t.Error("backup is missing npc/mara")
	}
}
