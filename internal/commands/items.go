package commands

import (
	"encoding/json"

	"turnkeep/internal/state"
	"turnkeep/internal/turn"
)

const ownerProps = `
		"owner_type": {"enum": ["pc", "npc"]},
		"owner_id": {"type": "string", "minLength": 1}`

const itemGrantSchema = `{
	"type": "object",
	"required": ["owner_type", "owner_id", "item_name"],
	"properties": {` + ownerProps + `,
		"item_id": {"type": "string", "minLength": 1},
		"item_name": {"type": "string", "minLength": 1},
		"quantity": {"type": "integer", "minimum": 1},
		"stackable": {"type": "boolean"},
		"notes": {"type": "string"}
	},
	"additionalProperties": false
}`

type itemGrantPayload struct {
	OwnerType string  `json:"owner_type"`
	OwnerID   string  `json:"owner_id"`
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	Quantity  *int    `json:"quantity"`
	Stackable *bool   `json:"stackable"`
	Notes     *string `json:"notes"`
}

// itemGrant gives an owner an item. A stackable item without an explicit
// id joins the owner's existing stack of the same name.
func itemGrant(idgen turn.IDGenerator) Handler {
	return func(payload json.RawMessage) (turn.Mutation, error) {
		p, err := decode[itemGrantPayload](payload)
		if err != nil {
			return nil, err
		}
		qty := 1
		if p.Quantity != nil {
			qty = *p.Quantity
		}
		stackable := p.Stackable == nil || *p.Stackable
		newID := p.ItemID
		if newID == "" {
			newID = "item_" + idgen.New()
		}

		return func(tx turn.StateTx) error {
			if _, err := mustGet(tx, p.OwnerType, p.OwnerID); err != nil {
				return err
			}

			if p.ItemID != "" {
				e, ok, err := tx.Get("item", p.ItemID)
				if err != nil {
					return err
				}
				if ok {
					if e["owner_type"] != p.OwnerType || e["owner_id"] != p.OwnerID {
						return turn.NewError(turn.CodeConflict, "record", "item %s belongs to another owner", p.ItemID).
							WithDetails(map[string]any{"item_id": p.ItemID, "owner_id": e["owner_id"]})
					}
					e["quantity"] = num(e, "quantity") + float64(qty)
					return tx.Put("item", p.ItemID, e)
				}
			} else if stackable {
				id, e, err := findStack(tx, p.OwnerType, p.OwnerID, p.ItemName)
				if err != nil {
					return err
				}
				if e != nil {
					e["quantity"] = num(e, "quantity") + float64(qty)
					return tx.Put("item", id, e)
				}
			}

			e := state.Entity{
				"owner_type": p.OwnerType,
				"owner_id":   p.OwnerID,
				"item_name":  p.ItemName,
				"quantity":   qty,
				"stackable":  stackable,
			}
			setIf(e, "notes", p.Notes)
			return tx.Put("item", newID, e)
		}, nil
	}
}

func findStack(tx turn.StateTx, ownerType, ownerID, name string) (string, state.Entity, error) {
	ids, err := tx.IDs("item")
	if err != nil {
		return "", nil, err
	}
	for _, id := range ids {
		e, ok, err := tx.Get("item", id)
		if err != nil {
			return "", nil, err
		}
		if ok && e["owner_type"] == ownerType && e["owner_id"] == ownerID && e["item_name"] == name && e["stackable"] == true {
			return id, e, nil
		}
	}
	return "", nil, nil
}

const itemConsumeSchema = `{
	"type": "object",
	"required": ["item_id"],
	"properties": {
		"item_id": {"type": "string", "minLength": 1},
		"quantity": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

type itemConsumePayload struct {
	ItemID   string `json:"item_id"`
	Quantity *int   `json:"quantity"`
}

// itemConsume uses up some of an item. The item is removed when none is
// left.
func itemConsume(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[itemConsumePayload](payload)
	if err != nil {
		return nil, err
	}
	qty := 1
	if p.Quantity != nil {
		qty = *p.Quantity
	}
	return func(tx turn.StateTx) error {
		e, err := mustGet(tx, "item", p.ItemID)
		if err != nil {
			return err
		}
		have := num(e, "quantity")
		if have < float64(qty) {
			return turn.NewError(turn.CodeValidation, "record", "item %s has %v, cannot consume %d", p.ItemID, have, qty).
				WithDetails(map[string]any{"reason": "insufficient_quantity", "available": have, "requested": qty})
		}
		if left := have - float64(qty); left > 0 {
			e["quantity"] = left
			return tx.Put("item", p.ItemID, e)
		}
		return tx.Delete("item", p.ItemID)
	}, nil
}

var coinFields = []string{"cp", "sp", "ep", "gp", "pp"}

const currencyAdjustSchema = `{
	"type": "object",
	"required": ["owner_type", "owner_id"],
	"minProperties": 3,
	"properties": {` + ownerProps + `,
		"cp": {"type": "integer"},
		"sp": {"type": "integer"},
		"ep": {"type": "integer"},
		"gp": {"type": "integer"},
		"pp": {"type": "integer"}
	},
	"additionalProperties": false
}`

type currencyAdjustPayload struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	CP        int    `json:"cp"`
	SP        int    `json:"sp"`
	EP        int    `json:"ep"`
	GP        int    `json:"gp"`
	PP        int    `json:"pp"`
}

func (p *currencyAdjustPayload) deltas() map[string]int {
	return map[string]int{"cp": p.CP, "sp": p.SP, "ep": p.EP, "gp": p.GP, "pp": p.PP}
}

// currencyAdjust adds signed amounts to an owner's purse. No denomination
// may go negative.
func currencyAdjust(payload json.RawMessage) (turn.Mutation, error) {
	p, err := decode[currencyAdjustPayload](payload)
	if err != nil {
		return nil, err
	}
	return func(tx turn.StateTx) error {
		if _, err := mustGet(tx, p.OwnerType, p.OwnerID); err != nil {
			return err
		}
		id := ownerKey(p.OwnerType, p.OwnerID)
		purse, ok, err := tx.Get("currency", id)
		if err != nil {
			return err
		}
		if !ok {
			purse = state.Entity{"owner_type": p.OwnerType, "owner_id": p.OwnerID}
		}
		deltas := p.deltas()
		for _, coin := range coinFields {
			if deltas[coin] == 0 {
				continue
			}
			v := num(purse, coin) + float64(deltas[coin])
			if v < 0 {
				return turn.NewError(turn.CodeValidation, "record", "%s would have %v %s", p.OwnerID, v, coin).
					WithDetails(map[string]any{"reason": "insufficient_funds", "denomination": coin})
			}
			purse[coin] = v
		}
		return tx.Put("currency", id, purse)
	}, nil
}
