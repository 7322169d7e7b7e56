package diff

import (
	"sort"

	"turnkeep/internal/state"
)

// Category is a player-facing change grouping.
type Category string

const (
	CategoryTime            Category = "time_advanced"
	CategoryLocation        Category = "location_change"
	CategoryHPResources     Category = "hp_resources_changed"
	CategoryInventory       Category = "inventory_currency_changed"
	CategoryRelationship    Category = "relationship_reputation_changed"
	CategoryQuestRumorClock Category = "quest_rumor_clock_updates"
	CategoryOther           Category = "other_changes"
)

var actorResourceFields = map[string]bool{
	"current_hp":  true,
	"max_hp":      true,
	"temp_hp":     true,
	"spell_slots": true,
	"xp":          true,
	"level":       true,
	"conditions":  true,
}

var locationFields = map[string]bool{
	"location_id": true,
	"region":      true,
}

var socialFields = map[string]bool{
	"trust":      true,
	"fear":       true,
	"debt":       true,
	"reputation": true,
	"attitude":   true,
}

var questKinds = map[string]bool{
	"quest":     true,
	"objective": true,
	"rumor":     true,
	"secret":    true,
	"clock":     true,
}

// Categorize places a (kind, field) pair in its category.
func Categorize(kind, field string) Category {
	switch kind {
	case "world":
		if locationFields[field] {
			return CategoryLocation
		}
		return CategoryTime
	case "pc", "npc":
		switch {
		case actorResourceFields[field]:
			return CategoryHPResources
		case locationFields[field]:
			return CategoryLocation
		case field == "gold":
			return CategoryInventory
		case socialFields[field]:
			return CategoryRelationship
		}
		return CategoryOther
	case "item", "currency":
		return CategoryInventory
	case "relationship":
		return CategoryRelationship
	case "faction":
		if socialFields[field] {
			return CategoryRelationship
		}
		return CategoryOther
	}
	if questKinds[kind] {
		return CategoryQuestRumorClock
	}
	return CategoryOther
}

func unionKinds(a, b state.State) []string {
	seen := make(map[string]bool)
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	return sortedKeys(seen)
}

func unionIDs(a, b state.State, kind string) []string {
	seen := make(map[string]bool)
	for id := range a[kind] {
		seen[id] = true
	}
	for id := range b[kind] {
		seen[id] = true
	}
	return sortedKeys(seen)
}

func unionFields(a, b state.Entity) []string {
	seen := make(map[string]bool)
	for f := range a {
		seen[f] = true
	}
	for f := range b {
		seen[f] = true
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
