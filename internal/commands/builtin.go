package commands

import "turnkeep/internal/turn"

// Builtin command names.
const (
	CommandCampaignSeed       = "campaign_seed"
	CommandWorldSet           = "world_set"
	CommandPCUpsert           = "pc_upsert"
	CommandNPCCreate          = "npc_create"
	CommandNPCUpdate          = "npc_update"
	CommandItemGrant          = "item_grant"
	CommandItemConsume        = "item_consume"
	CommandCurrencyAdjust     = "currency_adjust"
	CommandRelationshipAdjust = "relationship_adjust"
	CommandQuestAdd           = "quest_add"
	CommandQuestUpdate        = "quest_update"
	CommandRumorAdd           = "rumor_add"
	CommandClockTick          = "clock_tick"
	CommandNote               = "note"
)

// Default returns a registry with every builtin command. idgen names
// entities whose payload leaves the id out.
func Default(idgen turn.IDGenerator) *Registry {
	r := NewRegistry()
	r.MustRegister(CommandCampaignSeed, campaignSeedSchema, campaignSeed(idgen))
	r.MustRegister(CommandWorldSet, worldSetSchema, worldSet)
	r.MustRegister(CommandPCUpsert, pcUpsertSchema, pcUpsert)
	r.MustRegister(CommandNPCCreate, npcCreateSchema, npcCreate(idgen))
	r.MustRegister(CommandNPCUpdate, npcUpdateSchema, npcUpdate)
	r.MustRegister(CommandItemGrant, itemGrantSchema, itemGrant(idgen))
	r.MustRegister(CommandItemConsume, itemConsumeSchema, itemConsume)
	r.MustRegister(CommandCurrencyAdjust, currencyAdjustSchema, currencyAdjust)
	r.MustRegister(CommandRelationshipAdjust, relationshipAdjustSchema, relationshipAdjust)
	r.MustRegister(CommandQuestAdd, questAddSchema, questAdd)
	r.MustRegister(CommandQuestUpdate, questUpdateSchema, questUpdate)
	r.MustRegister(CommandRumorAdd, rumorAddSchema, rumorAdd(idgen))
	r.MustRegister(CommandClockTick, clockTickSchema, clockTick)
	r.MustRegister(CommandNote, noteSchema, nil)
	r.MustRegister(turn.CommandUndo, undoSchema, nil)
	return r
}

const undoSchema = `{
	"type": "object",
	"required": ["undone_turn_id", "undone_turn_number"],
	"properties": {
		"undone_turn_id": {"type": "string", "minLength": 1},
		"undone_turn_number": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

const noteSchema = `{
	"type": "object",
	"required": ["text"],
	"properties": {
		"text": {"type": "string", "minLength": 1},
		"visibility": {"enum": ["public", "hidden"]}
	},
	"additionalProperties": false
}`
