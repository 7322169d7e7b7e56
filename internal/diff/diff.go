// Package diff computes the structured change-set between two full campaign
// states.
//
// The result only describes net effect: a field touched several times
// within a turn appears once, and unchanged fields never appear. Changes are
// grouped into fixed player-facing categories and every category is always
// present so that serialized diffs are byte-identical for identical inputs.
package diff

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"

	"turnkeep/internal/state"
)

// Op describes what happened to a field.
type Op string

const (
	OpAdded   Op = "added"
	OpRemoved Op = "removed"
	OpChanged Op = "changed"
)

// Change is one field-level difference. Field is empty only for entities that
// carry no fields at all.
type Change struct {
	Kind   string   `json:"kind"`
	Entity string   `json:"entity"`
	Field  string   `json:"field,omitempty"`
	Op     Op       `json:"op"`
	Before any      `json:"before,omitempty"`
	After  any      `json:"after,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
}

// Diff groups changes by category. Field order here is the serialized
// category order.
type Diff struct {
	TimeAdvanced           []Change `json:"time_advanced"`
	LocationChange         []Change `json:"location_change"`
	HPResourcesChanged     []Change `json:"hp_resources_changed"`
	InventoryCurrency      []Change `json:"inventory_currency_changed"`
	RelationshipReputation []Change `json:"relationship_reputation_changed"`
	QuestRumorClock        []Change `json:"quest_rumor_clock_updates"`
	OtherChanges           []Change `json:"other_changes"`
}

// Empty returns a Diff with every category present and empty.
func Empty() *Diff {
	return &Diff{
		TimeAdvanced:           []Change{},
		LocationChange:         []Change{},
		HPResourcesChanged:     []Change{},
		InventoryCurrency:      []Change{},
		RelationshipReputation: []Change{},
		QuestRumorClock:        []Change{},
		OtherChanges:           []Change{},
	}
}

// Len returns the total number of changes.
func (d *Diff) Len() int {
	n := 0
	for _, c := range d.categories() {
		n += len(*c.changes)
	}
	return n
}

// All returns every change in category order.
func (d *Diff) All() []Change {
	out := make([]Change, 0, d.Len())
	for _, c := range d.categories() {
		out = append(out, *c.changes...)
	}
	return out
}

// Marshal returns the canonical serialized form.
func (d *Diff) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal parses a serialized diff, filling in missing categories.
func Unmarshal(data []byte) (*Diff, error) {
	d := Empty()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, err
	}
	for _, c := range d.categories() {
		if *c.changes == nil {
			*c.changes = []Change{}
		}
	}
	return d, nil
}

// Compute returns the diff from before to after. Neither input is modified.
func Compute(before, after state.State) *Diff {
	d := Empty()

	for _, kind := range unionKinds(before, after) {
		for _, id := range unionIDs(before, after, kind) {
			b, inBefore := before.Get(kind, id)
			a, inAfter := after.Get(kind, id)

			if len(b) == 0 && len(a) == 0 {
				switch {
				case inAfter && !inBefore:
					d.add(Change{Kind: kind, Entity: id, Op: OpAdded})
				case inBefore && !inAfter:
					d.add(Change{Kind: kind, Entity: id, Op: OpRemoved})
				}
				continue
			}

			for _, field := range unionFields(b, a) {
				bv, hasB := b[field]
				av, hasA := a[field]

				switch {
				case hasA && !hasB:
					d.add(Change{Kind: kind, Entity: id, Field: field, Op: OpAdded, After: av})
				case hasB && !hasA:
					d.add(Change{Kind: kind, Entity: id, Field: field, Op: OpRemoved, Before: bv})
				case !equal(bv, av):
					c := Change{Kind: kind, Entity: id, Field: field, Op: OpChanged, Before: bv, After: av}
					if bn, ok := exact(bv); ok {
						if an, ok := exact(av); ok {
							delta, _ := new(big.Rat).Sub(an, bn).Float64()
							c.Delta = &delta
						}
					}
					d.add(c)
				}
			}
		}
	}

	return d
}

func (d *Diff) add(c Change) {
	cat := Categorize(c.Kind, c.Field)
	for _, entry := range d.categories() {
		if entry.category == cat {
			*entry.changes = append(*entry.changes, c)
			return
		}
	}
}

type categoryEntry struct {
	category Category
	changes  *[]Change
}

func (d *Diff) categories() []categoryEntry {
	return []categoryEntry{
		{CategoryTime, &d.TimeAdvanced},
		{CategoryLocation, &d.LocationChange},
		{CategoryHPResources, &d.HPResourcesChanged},
		{CategoryInventory, &d.InventoryCurrency},
		{CategoryRelationship, &d.RelationshipReputation},
		{CategoryQuestRumorClock, &d.QuestRumorClock},
		{CategoryOther, &d.OtherChanges},
	}
}

func equal(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// exact returns v as the decimal it was written as, so deltas of fractional
// or large values carry no binary rounding error.
func exact(v any) (*big.Rat, bool) {
	var lit string
	switch n := v.(type) {
	case float64:
		lit = strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		lit = strconv.FormatFloat(float64(n), 'g', -1, 32)
	case int:
		return new(big.Rat).SetInt64(int64(n)), true
	case int64:
		return new(big.Rat).SetInt64(n), true
	case json.Number:
		lit = n.String()
	default:
		return nil, false
	}
	r, ok := new(big.Rat).SetString(lit)
	return r, ok
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
