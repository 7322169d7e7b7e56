package commands

import (
	"encoding/json"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

const pcUpsertSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"class": {"type": "string"},
		"level": {"type": "integer", "minimum": 1},
		"max_hp": {"type": "integer", "minimum": 1},
		"current_hp": {"type": "integer", "minimum": 0},
		"ac": {"type": "integer"},
		"location_id": {"type": "string"},
		"initiative_mod": {"type": "integer"}
	},
	"additionalProperties": false
}`

type pcPayload struct {
	ID            string  `json:"id"`
	Name          *string `json:"name"`
	Class         *string `json:"class"`
	Level         *int    `json:"level"`
	MaxHP         *int    `json:"max_hp"`
	CurrentHP     *int    `json:"current_hp"`
	AC            *int    `json:"ac"`
	LocationID    *string `json:"location_id"`
	InitiativeMod *int    `json:"initiative_mod"`
}

func (p *pcPayload) apply(e state.Entity) {
	setIf(e, "name", p.Name)
	setIf(e, "class", p.Class)
	setIf(e, "level", p.Level)
	setIf(e, "max_hp", p.MaxHP)
	setIf(e, "current_hp", p.CurrentHP)
	setIf(e, "ac", p.AC)
	setIf(e, "location_id", p.LocationID)
	setIf(e, "initiative_mod", p.InitiativeMod)
	if _, ok := e["current_hp"]; !ok && p.MaxHP != nil {
		e["current_hp"] = *p.MaxHP
	}
}

// pcUpsert creates a player character or updates the given fields. A new
// character needs a name.
func pcUpsert(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[pcPayload](payload)
	if err != nil {
		return nil, err
	}
	return func(tx turn.StateTx) error {
		e, ok, err := tx.Get("pc", p.ID)
		if err != nil {
			return err
		}
		if !ok {
			if p.Name == nil {
				return rejected("name_required", "new pc %s needs a name", p.ID)
			}
			e = state.Entity{}
		}
		p.apply(e)
		if num(e, "max_hp") > 0 && num(e, "current_hp") > num(e, "max_hp") {
			e["current_hp"] = e["max_hp"]
		}
		return tx.Put("pc", p.ID, e)
	}, nil
}

const npcCreateSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"location_id": {"type": "string"},
		"max_hp": {"type": "integer", "minimum": 1},
		"current_hp": {"type": "integer", "minimum": 0},
		"ac": {"type": "integer"},
		"attitude": {"type": "string"}
	},
	"additionalProperties": false
}`

type npcPayload struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	LocationID *string `json:"location_id"`
	MaxHP      *int    `json:"max_hp"`
	CurrentHP  *int    `json:"current_hp"`
	AC         *int    `json:"ac"`
	Attitude   *string `json:"attitude"`
}

func (p *npcPayload) entity() state.Entity {
	e := state.Entity{"name": p.Name}
	setIf(e, "location_id", p.LocationID)
	setIf(e, "max_hp", p.MaxHP)
	setIf(e, "current_hp", p.CurrentHP)
	setIf(e, "ac", p.AC)
	setIf(e, "attitude", p.Attitude)
	if p.CurrentHP == nil && p.MaxHP != nil {
		e["current_hp"] = *p.MaxHP
	}
	return e
}

// npcCreate adds a new NPC. The id is generated when the payload has none;
// an existing id is a conflict.
func npcCreate(idgen turn.IDGenerator) Handler {
	return func(payload json.RawMessage) (turn.Mutation, error) {
		p, err := decode[npcPayload](payload)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = "npc_" + idgen.New()
		}
		return func(tx turn.StateTx) error {
			return createNPC(tx, p)
		}, nil
	}
}

func createNPC(tx turn.StateTx, p *npcPayload) error {
	_, exists, err := tx.Get("npc", p.ID)
	if err != nil {
		return err
	}
	if exists {
		return turn.NewError(turn.CodeConflict, "record", "npc %s already exists", p.ID).
			WithDetails(map[string]any{"npc_id": p.ID})
	}
	return tx.Put("npc", p.ID, p.entity())
}

const npcUpdateSchema = `{
	"type": "object",
	"required": ["npc_id"],
	"minProperties": 2,
	"properties": {
		"npc_id": {"type": "string", "minLength": 1},
		"hp_delta": {"type": "integer"},
		"max_hp": {"type": "integer", "minimum": 1},
		"location_id": {"type": "string"},
		"attitude": {"type": "string"},
		"conditions": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

type npcUpdatePayload struct {
	NPCID      string    `json:"npc_id"`
	HPDelta    *int      `json:"hp_delta"`
	MaxHP      *int      `json:"max_hp"`
	LocationID *string   `json:"location_id"`
	Attitude   *string   `json:"attitude"`
	Conditions *[]string `json:"conditions"`
}

// npcUpdate changes an NPC. HP moves by hp_delta and stays within
// [0, max_hp].
func npcUpdate(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[npcUpdatePayload](payload)
	if err != nil {
		return nil, err
	}
	return func(tx turn.StateTx) error {
		e, err := mustGet(tx, "npc", p.NPCID)
		if err != nil {
			return err
		}
		setIf(e, "max_hp", p.MaxHP)
		setIf(e, "location_id", p.LocationID)
		setIf(e, "attitude", p.Attitude)
		setIf(e, "conditions", p.Conditions)
		if p.HPDelta != nil {
			hp := num(e, "current_hp") + float64(*p.HPDelta)
			if maxHP := num(e, "max_hp"); maxHP > 0 {
				hp = clamp(hp, 0, maxHP)
			} else if hp < 0 {
				hp = 0
			}
			e["current_hp"] = hp
		}
		return tx.Put("npc", p.NPCID, e)
	}, nil
}

const campaignSeedSchema = `{
	"type": "object",
	"required": ["player_characters", "npcs"],
	"properties": {
		"locations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"region": {"type": "string"}
				}
			}
		},
		"player_characters": {"type": "array", "minItems": 1, "items": ` + pcUpsertSchema + `},
		"npcs": {"type": "array", "items": ` + npcCreateSchema + `},
		"world_state": ` + worldFieldsSchema + `,
		"hooks": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

// MinSeedNPCs is how many NPCs a campaign seed must introduce.
const MinSeedNPCs = 3

type seedLocation struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Region *string `json:"region"`
}

type seedPayload struct {
	Locations        []seedLocation `json:"locations"`
	PlayerCharacters []pcPayload    `json:"player_characters"`
	NPCs             []npcPayload   `json:"npcs"`
	WorldState       map[string]any `json:"world_state"`
	Hooks            []string       `json:"hooks"`
}

// campaignSeed populates a fresh campaign: locations, player characters,
// at least three NPCs, the world and the opening hooks as rumors.
func campaignSeed(idgen turn.IDGenerator) Handler {
	return func(payload json.RawMessage) (turn.Mutation, error) {
		p, err := decode[seedPayload](payload)
		if err != nil {
			return nil, err
		}
		if len(p.NPCs) < MinSeedNPCs {
			return nil, turn.NewError(turn.CodeValidation, "record", "a seed needs at least %d npcs, got %d", MinSeedNPCs, len(p.NPCs)).
				WithDetails(map[string]any{"reason": "seed_requires_three_npcs", "npc_count": len(p.NPCs)})
		}
		for i := range p.NPCs {
			if p.NPCs[i].ID == "" {
				p.NPCs[i].ID = "npc_" + idgen.New()
			}
		}
		hookIDs := make([]string, len(p.Hooks))
		for i := range p.Hooks {
			hookIDs[i] = "rumor_" + idgen.New()
		}

		return func(tx turn.StateTx) error {
			for _, loc := range p.Locations {
				e := state.Entity{"name": loc.Name}
				setIf(e, "region", loc.Region)
				if err := tx.Put("location", loc.ID, e); err != nil {
					return err
				}
			}
			for i := range p.PlayerCharacters {
				pc := &p.PlayerCharacters[i]
				if pc.Name == nil {
					return rejected("name_required", "pc %s needs a name", pc.ID)
				}
				e := state.Entity{}
				pc.apply(e)
				if err := tx.Put("pc", pc.ID, e); err != nil {
					return err
				}
			}
			for i := range p.NPCs {
				if err := createNPC(tx, &p.NPCs[i]); err != nil {
					return err
				}
			}
			if len(p.WorldState) > 0 {
				if err := mergeWorld(tx, p.WorldState); err != nil {
					return err
				}
			}
			for i, hook := range p.Hooks {
				if err := tx.Put("rumor", hookIDs[i], state.Entity{"text": hook, "hook": true}); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}
}
