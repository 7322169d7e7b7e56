package commands_test

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"testing"

	"turnkeep/internal/commands"
	"turnkeep/internal/state"
	"turnkeep/internal/testutil"
	"turnkeep/internal/turn"
)

// memTx is live state held in a map.
type memTx struct {
	st state.State
}

func newTx() *memTx {
	return &memTx{st: state.New()}
}

func (t *memTx) Get(kind, id string) (state.Entity, bool, error) {
	e, ok := t.st.Get(kind, id)
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(e), true, nil
}

func (t *memTx) Put(kind, id string, e state.Entity) error {
	t.st.Put(kind, id, e)
	return nil
}

func (t *memTx) Delete(kind, id string) error {
	t.st.Delete(kind, id)
	return nil
}

func (t *memTx) IDs(kind string) ([]string, error) {
	return t.st.IDs(kind), nil
}

func (t *memTx) Replace(st state.State) error {
	t.st = st
	return nil
}

func run(t *testing.T, r *commands.Registry, tx *memTx, command, payload string) error {
	t.Helper()
	m, err := r.Mutation(command, json.RawMessage(payload))
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	return m(tx)
}

func mustRun(t *testing.T, r *commands.Registry, tx *memTx, command, payload string) {
	t.Helper()
	if err := run(t, r, tx, command, payload); err != nil {
		t.Fatalf("%s %s: %v", command, payload, err)
	}
}

func entity(t *testing.T, tx *memTx, kind, id string) state.Entity {
	t.Helper()
	e, ok := tx.st.Get(kind, id)
	if !ok {
		t.Fatalf("%s/%s missing", kind, id)
	}
	return e
}

func registry() *commands.Registry {
	return commands.Default(testutil.NewStubIDGenerator())
}

func TestDefault_Names(t *testing.T) {
	names := registry().Names()
	for _, want := range []string{"world_set", "npc_update", "item_grant", "quest_update", "clock_tick", turn.CommandUndo} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() = %v, missing %s", names, want)
		}
	}
	if !slices.IsSorted(names) {
		t.Errorf("Names() not sorted: %v", names)
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := registry()
	tests := []struct {
		name    string
		command string
		payload string
		ok      bool
	}{
		{"valid", "npc_update", `{"npc_id":"npc_raider","hp_delta":-6}`, true},
		{"unknown command", "summon_dragon", `{}`, false},
		{"not json", "npc_update", `{"npc_id":`, false},
		{"missing required", "npc_update", `{"hp_delta":-6}`, false},
		{"wrong type", "npc_update", `{"npc_id":"npc_raider","hp_delta":"six"}`, false},
		{"unknown field", "npc_update", `{"npc_id":"npc_raider","mood":"grim"}`, false},
		{"nothing to change", "npc_update", `{"npc_id":"npc_raider"}`, false},
		{"undo payload", turn.CommandUndo, `{"undone_turn_id":"t1","undone_turn_number":3}`, true},
		{"bad owner type", "item_grant", `{"owner_type":"dog","owner_id":"x","item_name":"Rope"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.command, json.RawMessage(tt.payload))
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, turn.ErrValidationFailed) {
				t.Errorf("Validate() error = %v, want validation_failed", err)
			}
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register("ping", `{"type":"object"}`, nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("ping", `{"type":"object"}`, nil); err == nil {
		t.Error("duplicate Register() should fail")
	}
	if err := r.Register("broken", `{"type": 12}`, nil); err == nil {
		t.Error("Register() with invalid schema should fail")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "ping" {
		t.Errorf("Names() = %v, want [ping]", names)
	}
}

func TestNPCUpdate_ClampsHP(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "npc_create", `{"id":"npc_raider","name":"Raider","max_hp":16}`)

	mustRun(t, r, tx, "npc_update", `{"npc_id":"npc_raider","hp_delta":-6}`)
	if got := entity(t, tx, "npc", "npc_raider")["current_hp"]; got != float64(10) {
		t.Errorf("current_hp = %v, want 10", got)
	}

	mustRun(t, r, tx, "npc_update", `{"npc_id":"npc_raider","hp_delta":-50}`)
	if got := entity(t, tx, "npc", "npc_raider")["current_hp"]; got != float64(0) {
		t.Errorf("current_hp = %v, want 0", got)
	}

	mustRun(t, r, tx, "npc_update", `{"npc_id":"npc_raider","hp_delta":99}`)
	if got := entity(t, tx, "npc", "npc_raider")["current_hp"]; got != float64(16) {
		t.Errorf("current_hp = %v, want 16", got)
	}

	err := run(t, r, tx, "npc_update", `{"npc_id":"npc_ghost","hp_delta":-1}`)
	if !errors.Is(err, turn.ErrNotFound) {
		t.Errorf("npc_update on missing npc error = %v, want not_found", err)
	}
}

func TestNPCCreate_Conflict(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "npc_create", `{"id":"npc_mayor","name":"Mayor"}`)
	if err := run(t, r, tx, "npc_create", `{"id":"npc_mayor","name":"Mayor"}`); !errors.Is(err, turn.ErrConflict) {
		t.Errorf("npc_create error = %v, want conflict", err)
	}

	mustRun(t, r, tx, "npc_create", `{"name":"Nameless"}`)
	if tx.st.Count("npc") != 2 {
		t.Errorf("npc count = %d, want 2", tx.st.Count("npc"))
	}
}

func TestItemGrant(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "pc_upsert", `{"id":"pc_hero","name":"Arin Vale","max_hp":24}`)

	t.Run("stackable grants join", func(t *testing.T) {
		mustRun(t, r, tx, "item_grant", `{"owner_type":"pc","owner_id":"pc_hero","item_name":"Torch","quantity":2}`)
		mustRun(t, r, tx, "item_grant", `{"owner_type":"pc","owner_id":"pc_hero","item_name":"Torch","quantity":3}`)
		if tx.st.Count("item") != 1 {
			t.Fatalf("item count = %d, want 1", tx.st.Count("item"))
		}
		id := tx.st.IDs("item")[0]
		if got := entity(t, tx, "item", id)["quantity"]; got != float64(5) {
			t.Errorf("quantity = %v, want 5", got)
		}
	})

	t.Run("explicit id", func(t *testing.T) {
		mustRun(t, r, tx, "item_grant", `{"owner_type":"pc","owner_id":"pc_hero","item_id":"item_fiber","item_name":"Trace Fiber","stackable":false}`)
		if got := entity(t, tx, "item", "item_fiber")["item_name"]; got != "Trace Fiber" {
			t.Errorf("item_name = %v", got)
		}
	})

	t.Run("missing owner", func(t *testing.T) {
		err := run(t, r, tx, "item_grant", `{"owner_type":"npc","owner_id":"npc_ghost","item_name":"Rope"}`)
		if !errors.Is(err, turn.ErrNotFound) {
			t.Errorf("item_grant error = %v, want not_found", err)
		}
	})

	t.Run("consume", func(t *testing.T) {
		if err := run(t, r, tx, "item_consume", `{"item_id":"item_fiber","quantity":2}`); !errors.Is(err, turn.ErrValidation) {
			t.Errorf("item_consume over quantity error = %v, want validation", err)
		}
		mustRun(t, r, tx, "item_consume", `{"item_id":"item_fiber"}`)
		if _, ok := tx.st.Get("item", "item_fiber"); ok {
			t.Error("item_fiber should be gone after consuming the last one")
		}
	})
}

func TestCurrencyAdjust(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "pc_upsert", `{"id":"pc_hero","name":"Arin Vale"}`)

	mustRun(t, r, tx, "currency_adjust", `{"owner_type":"pc","owner_id":"pc_hero","gp":10,"sp":4}`)
	mustRun(t, r, tx, "currency_adjust", `{"owner_type":"pc","owner_id":"pc_hero","gp":-3}`)

	purse := entity(t, tx, "currency", "pc:pc_hero")
	if purse["gp"] != float64(7) || purse["sp"] != float64(4) {
		t.Errorf("purse = %v, want gp 7 sp 4", purse)
	}

	err := run(t, r, tx, "currency_adjust", `{"owner_type":"pc","owner_id":"pc_hero","gp":-8}`)
	if !errors.Is(err, turn.ErrValidation) {
		t.Errorf("overspend error = %v, want validation", err)
	}
}

func TestRelationshipAdjust(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "pc_upsert", `{"id":"pc_hero","name":"Arin Vale"}`)
	mustRun(t, r, tx, "npc_create", `{"id":"npc_mayor","name":"Mayor"}`)

	payload := `{"source_type":"pc","source_id":"pc_hero","target_type":"npc","target_id":"npc_mayor","trust_delta":1,"reputation_delta":2}`
	mustRun(t, r, tx, "relationship_adjust", payload)
	mustRun(t, r, tx, "relationship_adjust", payload)

	rel := entity(t, tx, "relationship", commands.RelationshipID("pc_hero", "npc_mayor"))
	if rel["trust"] != float64(2) || rel["reputation"] != float64(4) {
		t.Errorf("relationship = %v, want trust 2 reputation 4", rel)
	}
}

func TestQuestUpdate(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "quest_add", `{"id":"quest_alpha","title":"Alpha","objectives":[{"id":"obj_shared","description":"Alpha objective","status":"open"}]}`)
	mustRun(t, r, tx, "quest_add", `{"id":"quest_beta","title":"Beta"}`)

	t.Run("normalizes statuses", func(t *testing.T) {
		mustRun(t, r, tx, "quest_update", `{"quest_id":"quest_beta","status":"complete","objective_updates":[{"id":"obj_witness","description":"Interview the witness.","status":"completed"}]}`)
		if got := entity(t, tx, "quest", "quest_beta")["status"]; got != "completed" {
			t.Errorf("quest status = %v, want completed", got)
		}
		if got := entity(t, tx, "objective", "obj_witness")["status"]; got != "complete" {
			t.Errorf("objective status = %v, want complete", got)
		}
	})

	t.Run("invalid objective status", func(t *testing.T) {
		err := run(t, r, tx, "quest_update", `{"quest_id":"quest_beta","objective_updates":[{"id":"obj_bad","status":"nonsense"}]}`)
		if !errors.Is(err, turn.ErrValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
		if turn.DetailsOf(err)["reason"] != "invalid_objective_status" {
			t.Errorf("details = %v", turn.DetailsOf(err))
		}
	})

	t.Run("objective of another quest", func(t *testing.T) {
		err := run(t, r, tx, "quest_update", `{"quest_id":"quest_beta","objective_updates":[{"id":"obj_shared","description":"reuse"}]}`)
		if !errors.Is(err, turn.ErrConflict) {
			t.Fatalf("error = %v, want conflict", err)
		}
		d := turn.DetailsOf(err)
		if d["objective_id"] != "obj_shared" || d["quest_id"] != "quest_beta" || d["existing_quest_id"] != "quest_alpha" {
			t.Errorf("details = %v", d)
		}
	})
}

func TestCampaignSeed(t *testing.T) {
	r := registry()

	t.Run("needs three npcs", func(t *testing.T) {
		err := run(t, r, newTx(), "campaign_seed", `{"player_characters":[{"id":"pc_x","name":"Solo","max_hp":10}],"npcs":[{"name":"Only One"}]}`)
		if !errors.Is(err, turn.ErrValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
		if turn.DetailsOf(err)["reason"] != "seed_requires_three_npcs" {
			t.Errorf("details = %v", turn.DetailsOf(err))
		}
	})

	t.Run("populates state", func(t *testing.T) {
		tx := newTx()
		mustRun(t, r, tx, "campaign_seed", `{
			"locations":[{"id":"loc_start","name":"Larkspur","region":"Greenmarch"}],
			"player_characters":[{"id":"pc_hero","name":"Arin Vale","max_hp":24,"location_id":"loc_start"}],
			"npcs":[{"name":"N1"},{"name":"N2"},{"id":"npc_mayor","name":"Mayor","max_hp":11}],
			"world_state":{"world_time":"08:00","weather":"mist"},
			"hooks":["Find who stole the Ashen Crown"]
		}`)
		if tx.st.Count("npc") != 3 || tx.st.Count("pc") != 1 || tx.st.Count("rumor") != 1 {
			t.Errorf("counts npc=%d pc=%d rumor=%d", tx.st.Count("npc"), tx.st.Count("pc"), tx.st.Count("rumor"))
		}
		if got := entity(t, tx, "pc", "pc_hero")["current_hp"]; got != 24 {
			t.Errorf("pc current_hp = %v, want 24", got)
		}
		if got := entity(t, tx, "world", commands.WorldID)["weather"]; got != "mist" {
			t.Errorf("weather = %v, want mist", got)
		}
	})
}

func TestClockTick(t *testing.T) {
	r := registry()
	tx := newTx()

	if err := run(t, r, tx, "clock_tick", `{"clock_id":"clock_doom"}`); !errors.Is(err, turn.ErrNotFound) {
		t.Errorf("tick on missing clock error = %v, want not_found", err)
	}

	mustRun(t, r, tx, "clock_tick", `{"clock_id":"clock_doom","name":"Doom","segments":4,"ticks":3}`)
	mustRun(t, r, tx, "clock_tick", `{"clock_id":"clock_doom","ticks":5}`)

	c := entity(t, tx, "clock", "clock_doom")
	if c["filled"] != float64(4) || c["complete"] != true {
		t.Errorf("clock = %v, want filled 4 complete", c)
	}
}

func TestWorldSet(t *testing.T) {
	r := registry()
	tx := newTx()
	mustRun(t, r, tx, "world_set", `{"world_state":{"world_time":"08:00","weather":"mist"}}`)
	mustRun(t, r, tx, "world_set", `{"world_state":{"world_time":"09:00","weather":null}}`)

	w := entity(t, tx, "world", commands.WorldID)
	if w["world_time"] != "09:00" {
		t.Errorf("world_time = %v, want 09:00", w["world_time"])
	}
	if _, ok := w["weather"]; ok {
		t.Errorf("weather should be removed, got %v", w["weather"])
	}
}
