package turn_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"turnkeep/internal/campaign"
	"turnkeep/internal/checkpoint"
	"turnkeep/internal/commands"
	"turnkeep/internal/ledger"
	"turnkeep/internal/state"
	"turnkeep/internal/testutil"
	"turnkeep/internal/turn"
)

const campaignID = "ashfall"

// newCampaign creates a campaign whose world already holds a wounded-able
// raider, as if seeded before play started.
func newCampaign(t *testing.T, opts ...turn.Option) (*testutil.TestManager, *campaign.MemoryOpener) {
	t.Helper()
	ctx := context.Background()
	m, opener := testutil.NewMemoryManager(t, opts...)
	if _, err := m.CreateCampaign(ctx, campaignID, "Ashfall"); err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}

	st := state.New()
	st.Put("npc", "npc_raider", state.Entity{"name": "Raider", "max_hp": 16, "current_hp": 16})
	st.Put("pc", "pc_hero", state.Entity{"name": "Hero", "max_hp": 20, "current_hp": 20})
	if err := artifacts(t, opener).Store.ReplaceState(ctx, campaignID, st); err != nil {
		t.Fatalf("ReplaceState() error = %v", err)
	}
	return m, opener
}

func artifacts(t *testing.T, opener *campaign.MemoryOpener) *turn.Artifacts {
	t.Helper()
	a, ok := opener.Artifacts(campaignID)
	if !ok {
		t.Fatalf("campaign %s has no artifacts", campaignID)
	}
	return a
}

func begin(t *testing.T, m *testutil.TestManager) *turn.Handle {
	t.Helper()
	h, err := m.Begin(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return h
}

func commit(t *testing.T, m *testutil.TestManager, h *turn.Handle) *turn.CommitResult {
	t.Helper()
	res, err := m.Commit(context.Background(), h, "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return res
}

func encodedState(t *testing.T, st state.State) string {
	t.Helper()
	data, err := state.Encode(st)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return string(data)
}

func raiderHP(t *testing.T, st state.State) any {
	t.Helper()
	e, ok := st.Get("npc", "npc_raider")
	if !ok {
		t.Fatal("npc_raider missing")
	}
	return e["current_hp"]
}

func TestManager_Commit_RecordsHPDelta(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	h := begin(t, m)
	if h.TurnNumber != 1 {
		t.Fatalf("TurnNumber = %d, want 1", h.TurnNumber)
	}
	m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -5}`)
	res := commit(t, m, h)

	var found bool
	for _, c := range res.Diff.HPResourcesChanged {
		if c.Kind == "npc" && c.Entity == "npc_raider" && c.Field == "current_hp" {
			found = true
			if c.Delta == nil || *c.Delta != -5 {
				t.Errorf("delta = %v, want -5", c.Delta)
			}
		}
	}
	if !found {
		t.Fatalf("hp_resources_changed = %+v, want npc_raider current_hp", res.Diff.HPResourcesChanged)
	}
	if len(res.Summary) != 1 || res.Summary[0] != "npc npc_raider HP 11/16 (-5)" {
		t.Errorf("Summary = %q", res.Summary)
	}

	snap, err := m.Snapshot(ctx, campaignID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.TurnNumber != 1 || snap.Checksum != res.Checksum {
		t.Errorf("snapshot = turn %d %s, want turn 1 %s", snap.TurnNumber, snap.Checksum, res.Checksum)
	}
	if hp := raiderHP(t, snap.State); hp != float64(11) {
		t.Errorf("snapshot current_hp = %v, want 11", hp)
	}
}

func TestManager_Rollback_RestoresCommittedState(t *testing.T) {
	ctx := context.Background()
	m, opener := newCampaign(t)

	h1 := begin(t, m)
	m.MustExec(t, h1, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -5}`)
	commit(t, m, h1)
	snap, err := m.Snapshot(ctx, campaignID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	h2 := begin(t, m)
	eventID := m.MustExec(t, h2, commands.CommandItemGrant,
		`{"owner_type": "npc", "owner_id": "npc_raider", "item_name": "Rusty Key"}`)

	res, err := m.Rollback(ctx, h2)
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if res.TurnNumber != 2 || res.Discarded != 1 {
		t.Errorf("Rollback() = %+v, want turn 2 with 1 discarded", res)
	}

	live, err := m.State(ctx, campaignID)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if got, want := encodedState(t, live), encodedState(t, snap.State); got != want {
		t.Errorf("state after rollback =\n%s\nwant\n%s", got, want)
	}

	a := artifacts(t, opener)
	events, err := a.Store.ListEvents(ctx, h2.TurnID)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Stage != turn.StageDiscarded || events[0].FlushedToLog {
		t.Errorf("events = %+v, want one discarded, unflushed event", events)
	}

	records, err := a.Log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	for _, r := range records {
		if r.ID == eventID {
			t.Errorf("discarded event %s found in log", eventID)
		}
	}

	if _, err := m.Diff(ctx, campaignID, h2.TurnID); !errors.Is(err, turn.ErrNotFound) {
		t.Errorf("Diff() of rolled back turn error = %v, want not_found", err)
	}
}

func TestManager_Begin_Conflict(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	h := begin(t, m)
	_, err := m.Begin(ctx, campaignID)
	if !errors.Is(err, turn.ErrConflict) {
		t.Fatalf("second Begin() error = %v, want conflict", err)
	}
	if turn.DetailsOf(err)["open_turn_id"] != h.TurnID {
		t.Errorf("details = %v", turn.DetailsOf(err))
	}
}

func TestManager_Begin_Concurrent(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.Begin(ctx, campaignID)
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, turn.ErrConflict):
			conflicts++
		default:
			t.Errorf("Begin() unexpected error = %v", err)
		}
	}
	if ok != 1 || conflicts != callers-1 {
		t.Errorf("ok = %d, conflicts = %d, want 1 and %d", ok, conflicts, callers-1)
	}
}

func TestManager_Record_NoActiveTurn(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	h := begin(t, m)
	commit(t, m, h)

	_, err := m.Exec(ctx, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -1}`)
	if !errors.Is(err, turn.ErrNoActiveTurn) {
		t.Errorf("Exec() after commit error = %v, want no_active_turn", err)
	}
	if _, err := m.Commit(ctx, h, ""); !errors.Is(err, turn.ErrNoActiveTurn) {
		t.Errorf("second Commit() error = %v, want no_active_turn", err)
	}
	if _, err := m.Rollback(ctx, h); !errors.Is(err, turn.ErrValidation) {
		t.Errorf("Rollback() of committed turn error = %v, want validation", err)
	}
	if _, err := m.Record(ctx, nil, commands.CommandNote, nil); !errors.Is(err, turn.ErrNoActiveTurn) {
		t.Errorf("Record() without handle error = %v, want no_active_turn", err)
	}
}

func TestManager_Record_Validation(t *testing.T) {
	ctx := context.Background()
	m, opener := newCampaign(t)
	h := begin(t, m)

	tests := []struct {
		name    string
		command string
		payload string
		want    error
	}{
		{"unknown command", "fireball", `{}`, turn.ErrValidationFailed},
		{"schema violation", commands.CommandNPCUpdate, `{"npc_id": "npc_raider"}`, turn.ErrValidationFailed},
		{"missing npc", commands.CommandNPCUpdate, `{"npc_id": "npc_ghost", "hp_delta": 1}`, turn.ErrNotFound},
		{"overdrawn", commands.CommandCurrencyAdjust, `{"owner_type": "pc", "owner_id": "pc_hero", "gp": -5}`, turn.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Record(ctx, h, tt.command, json.RawMessage(tt.payload)); tt.want == turn.ErrValidationFailed && !errors.Is(err, tt.want) {
				t.Errorf("Record() error = %v, want %v", err, tt.want)
			}
			if _, err := m.Exec(ctx, h, tt.command, tt.payload); !errors.Is(err, tt.want) {
				t.Errorf("Exec() error = %v, want %v", err, tt.want)
			}
		})
	}

	events, err := artifacts(t, opener).Store.ListEvents(ctx, h.TurnID)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("rejected commands staged %d events", len(events))
	}
	status, err := m.Status(ctx, campaignID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.OpenTurn == nil || status.OpenTurn.ID != h.TurnID {
		t.Errorf("OpenTurn = %+v, want %s still open", status.OpenTurn, h.TurnID)
	}
}

func TestManager_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)
	h := begin(t, m)

	m.MustExec(t, h, commands.CommandNPCCreate, `{"id": "npc_scout", "name": "Scout", "max_hp": 8}`)
	m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_scout", "hp_delta": -3}`)

	live, err := m.State(ctx, campaignID)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	e, ok := live.Get("npc", "npc_scout")
	if !ok || e["current_hp"] != float64(5) {
		t.Errorf("npc_scout = %v, want current_hp 5", e)
	}
}

func TestManager_Diff_Idempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	h := begin(t, m)
	m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -5, "attitude": "hostile"}`)
	commit(t, m, h)

	first, err := m.Diff(ctx, campaignID, h.TurnID)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	second, err := m.Diff(ctx, campaignID, h.TurnID)
	if err != nil {
		t.Fatalf("second Diff() error = %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("Diff() not idempotent:\n%s\n%s", a, b)
	}

	latest, err := m.LatestDiff(ctx, campaignID)
	if err != nil {
		t.Fatalf("LatestDiff() error = %v", err)
	}
	if latest.TurnID != h.TurnID {
		t.Errorf("LatestDiff().TurnID = %s, want %s", latest.TurnID, h.TurnID)
	}

	if _, err := m.Diff(ctx, campaignID, "no-such-turn"); !errors.Is(err, turn.ErrNotFound) {
		t.Errorf("Diff() unknown turn error = %v, want not_found", err)
	}
}

// failingCommitStore fails every CommitTurn.
type failingCommitStore struct {
	turn.Store
	err error
}

func (s *failingCommitStore) CommitTurn(context.Context, turn.CommitParams) error {
	return s.err
}

// unreadableSnapshots publishes normally but cannot read the live snapshot.
type unreadableSnapshots struct {
	turn.SnapshotWriter
}

func (unreadableSnapshots) Read() (*turn.Snapshot, error) {
	return nil, errors.New("snapshot unreadable")
}

func TestManager_Commit_StoreFailsAfterPublish(t *testing.T) {
	tests := []struct {
		name       string
		unreadable bool
	}{
		{"previous snapshot restored", false},
		{"previous snapshot unreadable", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, opener := newCampaign(t)

			h := begin(t, m)
			m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -2}`)
			commit(t, m, h)

			a := artifacts(t, opener)
			live := a.Snapshots
			before, err := live.Read()
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			logBefore, err := a.Log.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}

			errDisk := errors.New("disk full")
			a.Store = &failingCommitStore{Store: a.Store, err: errDisk}
			if tt.unreadable {
				a.Snapshots = unreadableSnapshots{SnapshotWriter: live}
			}

			h = begin(t, m)
			m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -3}`)
			_, err = m.Commit(ctx, h, "")
			if !errors.Is(err, errDisk) || turn.CodeOf(err) != turn.CodeIO {
				t.Fatalf("Commit() error = %v, want io error wrapping disk full", err)
			}

			after, err := live.Read()
			if err != nil {
				t.Fatalf("Read() after failed commit error = %v", err)
			}
			if after.Checksum != before.Checksum || after.TurnNumber != before.TurnNumber {
				t.Errorf("snapshot = turn %d %s, want turn %d %s",
					after.TurnNumber, after.Checksum, before.TurnNumber, before.Checksum)
			}

			logAfter, err := a.Log.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if len(logAfter) != len(logBefore) {
				t.Errorf("log records = %d, want %d", len(logAfter), len(logBefore))
			}

			open, err := a.Store.GetOpenTurn(ctx, campaignID)
			if err != nil {
				t.Fatalf("GetOpenTurn() error = %v", err)
			}
			if open == nil || open.ID != h.TurnID {
				t.Errorf("open turn = %+v, want %s still open", open, h.TurnID)
			}
		})
	}
}

func TestManager_RecentDiffs(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	var committedAt []time.Time
	for range 3 {
		h := begin(t, m)
		m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -1}`)
		committedAt = append(committedAt, m.Clock.Advance(time.Minute))
		commit(t, m, h)
	}

	diffs, err := m.RecentDiffs(ctx, campaignID, 2)
	if err != nil {
		t.Fatalf("RecentDiffs() error = %v", err)
	}
	if len(diffs) != 2 || diffs[0].TurnNumber != 3 || diffs[1].TurnNumber != 2 {
		t.Fatalf("RecentDiffs() turns = %v, want [3 2]", turnNumbers(diffs))
	}
	if !diffs[0].CreatedAt.Equal(committedAt[2]) || !diffs[1].CreatedAt.Equal(committedAt[1]) {
		t.Errorf("RecentDiffs() created at %v, %v, want %v, %v",
			diffs[0].CreatedAt, diffs[1].CreatedAt, committedAt[2], committedAt[1])
	}
}

func turnNumbers(diffs []*turn.TurnDiff) []int64 {
	out := make([]int64, len(diffs))
	for i, d := range diffs {
		out[i] = d.TurnNumber
	}
	return out
}

func TestManager_Undo(t *testing.T) {
	ctx := context.Background()
	m, opener := newCampaign(t)

	if _, err := m.Undo(ctx, campaignID, ""); !errors.Is(err, turn.ErrNotFound) {
		t.Fatalf("Undo() with no turns error = %v, want not_found", err)
	}

	h := begin(t, m)
	m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -5}`)
	commit(t, m, h)

	res, err := m.Undo(ctx, campaignID, "")
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if res.TurnNumber != 2 {
		t.Errorf("undo TurnNumber = %d, want 2", res.TurnNumber)
	}

	live, err := m.State(ctx, campaignID)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if hp := raiderHP(t, live); hp != float64(16) {
		t.Errorf("current_hp after undo = %v, want 16", hp)
	}

	records, err := artifacts(t, opener).Log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	last := records[len(records)-1]
	if last.Command != turn.CommandUndo || last.TurnNumber != 2 {
		t.Errorf("last log record = %s turn %d, want %s turn 2", last.Command, last.TurnNumber, turn.CommandUndo)
	}
	var payload map[string]any
	if err := json.Unmarshal(last.Payload, &payload); err != nil {
		t.Fatalf("undo payload: %v", err)
	}
	if payload["undone_turn_id"] != h.TurnID {
		t.Errorf("undo payload = %v", payload)
	}

	status, err := m.Status(ctx, campaignID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.OpenTurn != nil {
		t.Errorf("undo left turn %d open", status.OpenTurn.Number)
	}
}

func TestManager_Undo_Chained(t *testing.T) {
	ctx := context.Background()
	m, opener := newCampaign(t)

	for _, delta := range []int{-2, -3} {
		h := begin(t, m)
		m.MustExec(t, h, commands.CommandNPCUpdate, fmt.Sprintf(`{"npc_id": "npc_raider", "hp_delta": %d}`, delta))
		commit(t, m, h)
	}

	hpAfterUndo := func() any {
		t.Helper()
		if _, err := m.Undo(ctx, campaignID, ""); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		live, err := m.State(ctx, campaignID)
		if err != nil {
			t.Fatalf("State() error = %v", err)
		}
		return raiderHP(t, live)
	}
	if hp := hpAfterUndo(); hp != float64(14) {
		t.Errorf("current_hp after first undo = %v, want 14", hp)
	}
	if hp := hpAfterUndo(); hp != float64(16) {
		t.Errorf("current_hp after second undo = %v, want 16", hp)
	}
	if _, err := m.Undo(ctx, campaignID, ""); !errors.Is(err, turn.ErrNotFound) {
		t.Errorf("third Undo() error = %v, want not_found", err)
	}

	records, err := artifacts(t, opener).Log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	var undone []float64
	for _, r := range records {
		if r.Command != turn.CommandUndo {
			continue
		}
		var p struct {
			Number float64 `json:"undone_turn_number"`
		}
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			t.Fatalf("undo payload: %v", err)
		}
		undone = append(undone, p.Number)
	}
	if len(undone) != 2 || undone[0] != 2 || undone[1] != 1 {
		t.Errorf("undone turn numbers = %v, want [2 1]", undone)
	}

	report, err := m.Validate(ctx, campaignID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !report.LogParity.OK {
		t.Errorf("log parity after chained undo = %+v", report.LogParity)
	}
}

func TestManager_Branch(t *testing.T) {
	ctx := context.Background()
	m, _ := newCampaign(t)

	h := begin(t, m)
	m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -5}`)

	child, err := m.Branch(ctx, campaignID, "ashfall-what-if", "")
	if err != nil {
		t.Fatalf("Branch() error = %v", err)
	}
	if child.ParentCampaignID != campaignID || child.BranchTurnNumber != 1 || child.Name != "Ashfall" {
		t.Errorf("child = %+v", child)
	}

	childState, err := m.State(ctx, child.ID)
	if err != nil {
		t.Fatalf("State(child) error = %v", err)
	}
	if hp := raiderHP(t, childState); hp != float64(11) {
		t.Errorf("child current_hp = %v, want 11", hp)
	}

	_, err = m.Rollback(ctx, h)
	if !errors.Is(err, turn.ErrValidation) {
		t.Fatalf("Rollback() of branched turn error = %v, want validation", err)
	}
	if _, err := m.Commit(ctx, h, ""); err != nil {
		t.Fatalf("Commit() of branched turn error = %v", err)
	}

	info, err := m.LoadCampaign(ctx, campaignID)
	if err != nil {
		t.Fatalf("LoadCampaign() error = %v", err)
	}
	if len(info.Branches) != 1 || info.Branches[0].ChildCampaignID != child.ID {
		t.Errorf("Branches = %+v", info.Branches)
	}

	if _, err := m.Branch(ctx, campaignID, child.ID, ""); !errors.Is(err, turn.ErrConflict) {
		t.Errorf("Branch() onto existing child error = %v, want conflict", err)
	}
}

func TestManager_RecoverRepairsLog(t *testing.T) {
	ctx := context.Background()
	m, opener := newCampaign(t)

	h := begin(t, m)
	m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -5}`)
	m.MustExec(t, h, commands.CommandNote, `{"text": "the raider flees"}`)
	commit(t, m, h)

	mem, ok := artifacts(t, opener).Log.(*ledger.MemoryLog)
	if !ok {
		t.Fatal("memory campaign does not use a MemoryLog")
	}
	mem.Truncate(1)

	report, err := m.Validate(ctx, campaignID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	p := report.LogParity
	if report.OK || p.OK || p.DBCount != 2 || p.FileCount != 1 || p.FirstMismatchIndex != 1 || len(p.OnlyInDBSample) != 1 {
		t.Errorf("Validate() = ok %v parity %+v", report.OK, p)
	}

	dry, err := m.RepairLog(ctx, campaignID, true)
	if err != nil {
		t.Fatalf("RepairLog(dry run) error = %v", err)
	}
	if dry.Rewritten || dry.RecordCount != 2 {
		t.Errorf("RepairLog(dry run) = %+v", dry)
	}

	rec, err := m.Recover(ctx, campaignID)
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if !rec.LogRepaired || rec.LogBackupPath == "" {
		t.Errorf("Recover() = %+v, want log repaired with backup", rec)
	}

	report, err = m.Validate(ctx, campaignID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !report.OK {
		t.Errorf("Validate() after recovery = %+v", report)
	}
}

func TestManager_PruneCheckpoints(t *testing.T) {
	ctx := context.Background()
	m, opener := newCampaign(t, turn.WithCheckpointRetention(1))

	for range 3 {
		h := begin(t, m)
		m.MustExec(t, h, commands.CommandNPCUpdate, `{"npc_id": "npc_raider", "hp_delta": -1}`)
		commit(t, m, h)
	}
	h := begin(t, m)
	if _, err := m.Rollback(ctx, h); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	cps, ok := artifacts(t, opener).Checkpoints.(*checkpoint.MemoryStore)
	if !ok {
		t.Fatal("memory campaign does not use a checkpoint.MemoryStore")
	}
	if cps.Len() != 1 {
		t.Errorf("checkpoints kept = %d, want 1", cps.Len())
	}

	turns, err := artifacts(t, opener).Store.ListTurns(ctx, campaignID)
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	for _, tr := range turns {
		wantPruned := tr.Number != 3
		if tr.CheckpointPruned != wantPruned {
			t.Errorf("turn %d CheckpointPruned = %v, want %v", tr.Number, tr.CheckpointPruned, wantPruned)
		}
	}

	if _, err := m.Undo(ctx, campaignID, ""); err != nil {
		t.Errorf("Undo() of retained turn error = %v", err)
	}
}

func TestManager_Begin_SchemaBehind(t *testing.T) {
	ctx := context.Background()
	m, opener := testutil.NewMemoryManager(t)

	if _, err := opener.Create(ctx, "unmigrated"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := m.Begin(ctx, "unmigrated")
	if !errors.Is(err, turn.ErrMigration) {
		t.Errorf("Begin() error = %v, want migration", err)
	}
	if _, ok := turn.DetailsOf(err)["latest"]; !ok {
		t.Errorf("Begin() details = %v, want schema versions", turn.DetailsOf(err))
	}

	report, err := m.Validate(ctx, "unmigrated")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if report.OK || report.SchemaError == "" {
		t.Errorf("Validate() = %+v, want schema error", report)
	}
	if report.SchemaStatus["current"] != uint(0) || report.SchemaStatus["latest"] == uint(0) {
		t.Errorf("SchemaStatus = %v, want current 0 behind latest", report.SchemaStatus)
	}
}

func TestManager_UnknownCampaign(t *testing.T) {
	m, _ := testutil.NewMemoryManager(t)
	if _, err := m.Begin(context.Background(), "nowhere"); !errors.Is(err, turn.ErrNotFound) {
		t.Errorf("Begin() error = %v, want not_found", err)
	}
	if _, err := m.CreateCampaign(context.Background(), "bad id!", ""); !errors.Is(err, turn.ErrValidation) {
		t.Errorf("CreateCampaign() error = %v, want validation", err)
	}
}
