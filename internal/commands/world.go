package commands

import (
	"encoding/json"
	"sort"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

// WorldID is the id of the single world entity.
const WorldID = "world"

const worldFieldsSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
}`

const worldSetSchema = `{
	"type": "object",
	"required": ["world_state"],
	"properties": {
		"world_state": ` + worldFieldsSchema + `
	},
	"additionalProperties": false
}`

type worldSetPayload struct {
	WorldState map[string]any `json:"world_state"`
}

// worldSet merges fields into the world entity. A null value removes the
// field.
func worldSet(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[worldSetPayload](payload)
	if err != nil {
		return nil, err
	}
	return func(tx turn.StateTx) error {
		return mergeWorld(tx, p.WorldState)
	}, nil
}

func mergeWorld(tx turn.StateTx, fields map[string]any) error {
	w, ok, err := tx.Get("world", WorldID)
	if err != nil {
		return err
	}
	if !ok {
		w = state.Entity{}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fields[k] == nil {
			delete(w, k)
			continue
		}
		w[k] = fields[k]
	}
	return tx.Put("world", WorldID, w)
}
