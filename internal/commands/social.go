package commands

import (
	"encoding/json"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

const relationshipAdjustSchema = `{
	"type": "object",
	"required": ["source_type", "source_id", "target_type", "target_id"],
	"minProperties": 5,
	"properties": {
		"source_type": {"enum": ["pc", "npc", "faction"]},
		"source_id": {"type": "string", "minLength": 1},
		"target_type": {"enum": ["pc", "npc", "faction"]},
		"target_id": {"type": "string", "minLength": 1},
		"trust_delta": {"type": "integer"},
		"fear_delta": {"type": "integer"},
		"debt_delta": {"type": "integer"},
		"reputation_delta": {"type": "integer"},
		"attitude": {"type": "string"}
	},
	"additionalProperties": false
}`

type relationshipPayload struct {
	SourceType      string  `json:"source_type"`
	SourceID        string  `json:"source_id"`
	TargetType      string  `json:"target_type"`
	TargetID        string  `json:"target_id"`
	TrustDelta      int     `json:"trust_delta"`
	FearDelta       int     `json:"fear_delta"`
	DebtDelta       int     `json:"debt_delta"`
	ReputationDelta int     `json:"reputation_delta"`
	Attitude        *string `json:"attitude"`
}

// RelationshipID is the entity id of the directed relationship between two
// actors.
func RelationshipID(sourceID, targetID string) string {
	return sourceID + "->" + targetID
}

// relationshipAdjust moves the scores of a directed relationship, creating
// it at zero if needed. Factions need not exist as entities.
func relationshipAdjust(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[relationshipPayload](payload)
	if err != nil {
		return nil, err
	}
	return func(tx turn.StateTx) error {
		for _, end := range [][2]string{{p.SourceType, p.SourceID}, {p.TargetType, p.TargetID}} {
			if end[0] == "faction" {
				continue
			}
			if _, err := mustGet(tx, end[0], end[1]); err != nil {
				return err
			}
		}

		id := RelationshipID(p.SourceID, p.TargetID)
		e, ok, err := tx.Get("relationship", id)
		if err != nil {
			return err
		}
		if !ok {
			e = state.Entity{
				"source_type": p.SourceType,
				"source_id":   p.SourceID,
				"target_type": p.TargetType,
				"target_id":   p.TargetID,
				"trust":       0,
				"fear":        0,
				"debt":        0,
				"reputation":  0,
			}
		}
		e["trust"] = num(e, "trust") + float64(p.TrustDelta)
		e["fear"] = num(e, "fear") + float64(p.FearDelta)
		e["debt"] = num(e, "debt") + float64(p.DebtDelta)
		e["reputation"] = num(e, "reputation") + float64(p.ReputationDelta)
		setIf(e, "attitude", p.Attitude)
		return tx.Put("relationship", id, e)
	}, nil
}
