package commands

import (
	"encoding/json"
	"sort"
	"strings"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

var questStatuses = map[string]string{
	"open":        "open",
	"active":      "active",
	"in_progress": "active",
	"completed":   "completed",
	"complete":    "completed",
	"done":        "completed",
	"failed":      "failed",
	"abandoned":   "abandoned",
}

var objectiveStatuses = map[string]string{
	"open":      "open",
	"pending":   "open",
	"complete":  "complete",
	"completed": "complete",
	"done":      "complete",
	"failed":    "failed",
}

// NormalizeQuestStatus maps a quest status or one of its aliases to the
// stored form.
func NormalizeQuestStatus(s string) (string, bool) {
	v, ok := questStatuses[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// NormalizeObjectiveStatus maps an objective status or one of its aliases
// to the stored form.
func NormalizeObjectiveStatus(s string) (string, bool) {
	v, ok := objectiveStatuses[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

const objectiveSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"status": {"type": "string"},
		"order_index": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

const questAddSchema = `{
	"type": "object",
	"required": ["id", "title"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"status": {"type": "string"},
		"giver_npc_id": {"type": "string"},
		"objectives": {"type": "array", "items": ` + objectiveSchema + `}
	},
	"additionalProperties": false
}`

type objectivePayload struct {
	ID          string  `json:"id"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	OrderIndex  *int    `json:"order_index"`
}

type questAddPayload struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description *string            `json:"description"`
	Status      *string            `json:"status"`
	GiverNPCID  *string            `json:"giver_npc_id"`
	Objectives  []objectivePayload `json:"objectives"`
}

// questAdd creates a quest and its objectives.
func questAdd(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[questAddPayload](payload)
	if err != nil {
		return nil, err
	}
	status := "open"
	if p.Status != nil {
		var ok bool
		if status, ok = NormalizeQuestStatus(*p.Status); !ok {
			return nil, invalidStatus("invalid_quest_status", *p.Status)
		}
	}
	return func(tx turn.StateTx) error {
		_, exists, err := tx.Get("quest", p.ID)
		if err != nil {
			return err
		}
		if exists {
			return turn.NewError(turn.CodeConflict, "record", "quest %s already exists", p.ID).
				WithDetails(map[string]any{"quest_id": p.ID})
		}
		if p.GiverNPCID != nil {
			if _, err := mustGet(tx, "npc", *p.GiverNPCID); err != nil {
				return err
			}
		}
		q := state.Entity{"title": p.Title, "status": status}
		setIf(q, "description", p.Description)
		setIf(q, "giver_npc_id", p.GiverNPCID)
		if err := tx.Put("quest", p.ID, q); err != nil {
			return err
		}
		for i := range p.Objectives {
			if err := upsertObjective(tx, p.ID, &p.Objectives[i], i); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

const questUpdateSchema = `{
	"type": "object",
	"required": ["quest_id"],
	"minProperties": 2,
	"properties": {
		"quest_id": {"type": "string", "minLength": 1},
		"status": {"type": "string"},
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"objective_updates": {"type": "array", "items": ` + objectiveSchema + `}
	},
	"additionalProperties": false
}`

type questUpdatePayload struct {
	QuestID          string             `json:"quest_id"`
	Status           *string            `json:"status"`
	Title            *string            `json:"title"`
	Description      *string            `json:"description"`
	ObjectiveUpdates []objectivePayload `json:"objective_updates"`
}

// questUpdate changes a quest's fields and upserts objectives. An objective
// id already used by another quest is a conflict.
func questUpdate(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[questUpdatePayload](payload)
	if err != nil {
		return nil, err
	}
	var status string
	if p.Status != nil {
		var ok bool
		if status, ok = NormalizeQuestStatus(*p.Status); !ok {
			return nil, invalidStatus("invalid_quest_status", *p.Status)
		}
	}
	for _, o := range p.ObjectiveUpdates {
		if o.Status != nil {
			if _, ok := NormalizeObjectiveStatus(*o.Status); !ok {
				return nil, invalidStatus("invalid_objective_status", *o.Status)
			}
		}
	}

	return func(tx turn.StateTx) error {
		q, err := mustGet(tx, "quest", p.QuestID)
		if err != nil {
			return err
		}
		if status != "" {
			q["status"] = status
		}
		setIf(q, "title", p.Title)
		setIf(q, "description", p.Description)
		if err := tx.Put("quest", p.QuestID, q); err != nil {
			return err
		}

		next, err := nextObjectiveIndex(tx, p.QuestID)
		if err != nil {
			return err
		}
		for i := range p.ObjectiveUpdates {
			if err := upsertObjective(tx, p.QuestID, &p.ObjectiveUpdates[i], next+i); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func upsertObjective(tx turn.StateTx, questID string, o *objectivePayload, defaultIndex int) error {
	e, ok, err := tx.Get("objective", o.ID)
	if err != nil {
		return err
	}
	if ok && e["quest_id"] != questID {
		return turn.NewError(turn.CodeConflict, "record", "objective %s belongs to quest %v", o.ID, e["quest_id"]).
			WithDetails(map[string]any{
				"reason":            "objective_id_conflict",
				"objective_id":      o.ID,
				"quest_id":          questID,
				"existing_quest_id": e["quest_id"],
			})
	}
	if !ok {
		e = state.Entity{"quest_id": questID, "status": "open", "order_index": defaultIndex}
	}
	setIf(e, "description", o.Description)
	setIf(e, "order_index", o.OrderIndex)
	if o.Status != nil {
		s, valid := NormalizeObjectiveStatus(*o.Status)
		if !valid {
			return invalidStatus("invalid_objective_status", *o.Status)
		}
		e["status"] = s
	}
	return tx.Put("objective", o.ID, e)
}

func nextObjectiveIndex(tx turn.StateTx, questID string) (int, error) {
	ids, err := tx.IDs("objective")
	if err != nil {
		return 0, err
	}
	next := 0
	for _, id := range ids {
		e, ok, err := tx.Get("objective", id)
		if err != nil {
			return 0, err
		}
		if ok && e["quest_id"] == questID {
			if i := int(num(e, "order_index")) + 1; i > next {
				next = i
			}
		}
	}
	return next, nil
}

func invalidStatus(reason, status string) error {
	valid := make([]string, 0)
	table := questStatuses
	if reason == "invalid_objective_status" {
		table = objectiveStatuses
	}
	seen := map[string]bool{}
	for _, v := range table {
		if !seen[v] {
			seen[v] = true
			valid = append(valid, v)
		}
	}
	sort.Strings(valid)
	return turn.NewError(turn.CodeValidation, "record", "unknown status %q", status).
		WithDetails(map[string]any{"reason": reason, "status": status, "valid": valid})
}

const rumorAddSchema = `{
	"type": "object",
	"required": ["text"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"text": {"type": "string", "minLength": 1},
		"source_npc_id": {"type": "string"},
		"quest_id": {"type": "string"},
		"truth": {"type": "boolean"},
		"visibility": {"enum": ["public", "hidden"]}
	},
	"additionalProperties": false
}`

type rumorPayload struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	SourceNPCID *string `json:"source_npc_id"`
	QuestID     *string `json:"quest_id"`
	Truth       *bool   `json:"truth"`
	Visibility  *string `json:"visibility"`
}

// rumorAdd records a rumor, linked to the NPC spreading it and the quest it
// hints at when given.
func rumorAdd(idgen turn.IDGenerator) Handler {
	return func(payload json.RawMessage) (turn.Mutation, error) {
		p, err := decode[rumorPayload](payload)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = "rumor_" + idgen.New()
		}
		return func(tx turn.StateTx) error {
			if p.SourceNPCID != nil {
				if _, err := mustGet(tx, "npc", *p.SourceNPCID); err != nil {
					return err
				}
			}
			if p.QuestID != nil {
				if _, err := mustGet(tx, "quest", *p.QuestID); err != nil {
					return err
				}
			}
			e := state.Entity{"text": p.Text, "visibility": "public"}
			setIf(e, "source_npc_id", p.SourceNPCID)
			setIf(e, "quest_id", p.QuestID)
			setIf(e, "truth", p.Truth)
			setIf(e, "visibility", p.Visibility)
			return tx.Put("rumor", p.ID, e)
		}, nil
	}
}

const clockTickSchema = `{
	"type": "object",
	"required": ["clock_id"],
	"properties": {
		"clock_id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"segments": {"type": "integer", "minimum": 1},
		"ticks": {"type": "integer"}
	},
	"additionalProperties": false
}`

type clockPayload struct {
	ClockID  string  `json:"clock_id"`
	Name     *string `json:"name"`
	Segments *int    `json:"segments"`
	Ticks    *int    `json:"ticks"`
}

// clockTick advances a progress clock, creating it when segments are given.
// Filled segments stay within [0, segments].
func clockTick(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[clockPayload](payload)
	if err != nil {
		return nil, err
	}
	ticks := 1
	if p.Ticks != nil {
		ticks = *p.Ticks
	}
	return func(tx turn.StateTx) error {
		e, ok, err := tx.Get("clock", p.ClockID)
		if err != nil {
			return err
		}
		if !ok {
			if p.Segments == nil {
				return turn.NewError(turn.CodeNotFound, "record", "clock %s not found and no segments given", p.ClockID).
					WithDetails(map[string]any{"kind": "clock", "id": p.ClockID})
			}
			e = state.Entity{"name": p.ClockID, "filled": 0}
		}
		setIf(e, "name", p.Name)
		setIf(e, "segments", p.Segments)
		filled := clamp(num(e, "filled")+float64(ticks), 0, num(e, "segments"))
		e["filled"] = filled
		e["complete"] = filled >= num(e, "segments")
		return tx.Put("clock", p.ClockID, e)
	}, nil
}
