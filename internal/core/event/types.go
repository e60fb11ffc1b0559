package event

import "github.com/BarzinL/IsoTalia/internal/core/ecs"

// Kind names an event on the wire and in logs.
type Kind string

const (
	KindEntityMoved       Kind = "ENTITY_MOVED"
	KindActionRejected    Kind = "ACTION_REJECTED"
	KindCombatStarted     Kind = "COMBAT_STARTED"
	KindTurnChanged       Kind = "TURN_CHANGED"
	KindCombatEnded       Kind = "COMBAT_ENDED"
	KindCombatantJoined   Kind = "COMBATANT_JOINED"
	KindCombatantRemoved  Kind = "COMBATANT_REMOVED"
	KindEntityDamaged     Kind = "ENTITY_DAMAGED"
	KindEntityDefeated    Kind = "ENTITY_DEFEATED"
	KindEntityWaited      Kind = "ENTITY_WAITED"
	KindTileDug           Kind = "TILE_DUG"
	KindInventoryChanged  Kind = "INVENTORY_CHANGED"
	KindTierChanged       Kind = "TIER_CHANGED"
	KindEntityQuarantined Kind = "ENTITY_QUARANTINED"
)

type EntityMoved struct {
	Entity ecs.EntityID `json:"entity"`
	X      int32        `json:"x"`
	Y      int32        `json:"y"`
}

func (EntityMoved) Kind() Kind { return KindEntityMoved }

type ActionRejected struct {
	Entity ecs.EntityID `json:"entity"`
	Action string       `json:"action"`
	Reason string       `json:"reason"`
}

func (ActionRejected) Kind() Kind { return KindActionRejected }

type CombatStarted struct {
	InstanceID uint64         `json:"instance_id"`
	Combatants []ecs.EntityID `json:"combatants"`
}

func (CombatStarted) Kind() Kind { return KindCombatStarted }

type TurnChanged struct {
	InstanceID uint64       `json:"instance_id"`
	Entity     ecs.EntityID `json:"entity"`
	TurnNumber uint32       `json:"turn_number"`
}

func (TurnChanged) Kind() Kind { return KindTurnChanged }

type CombatEnded struct {
	InstanceID uint64 `json:"instance_id"`
	Outcome    string `json:"outcome"`
}

func (CombatEnded) Kind() Kind { return KindCombatEnded }

type CombatantJoined struct {
	InstanceID uint64       `json:"instance_id"`
	Entity     ecs.EntityID `json:"entity"`
	Position   int          `json:"position"`
}

func (CombatantJoined) Kind() Kind { return KindCombatantJoined }

type CombatantRemoved struct {
	InstanceID uint64       `json:"instance_id"`
	Entity     ecs.EntityID `json:"entity"`
	Reason     string       `json:"reason"`
}

func (CombatantRemoved) Kind() Kind { return KindCombatantRemoved }

type EntityDamaged struct {
	Attacker ecs.EntityID `json:"attacker"`
	Target   ecs.EntityID `json:"target"`
	Amount   int32        `json:"amount"`
	Hit      bool         `json:"hit"`
	HP       int32        `json:"hp"`
}

func (EntityDamaged) Kind() Kind { return KindEntityDamaged }

type EntityDefeated struct {
	Entity ecs.EntityID `json:"entity"`
	By     ecs.EntityID `json:"by"`
}

func (EntityDefeated) Kind() Kind { return KindEntityDefeated }

type EntityWaited struct {
	Entity ecs.EntityID `json:"entity"`
}

func (EntityWaited) Kind() Kind { return KindEntityWaited }

type TileDug struct {
	Entity    ecs.EntityID `json:"entity"`
	X         int32        `json:"x"`
	Y         int32        `json:"y"`
	Resources []string     `json:"resources"`
	ToolBroke bool         `json:"tool_broke"`
}

func (TileDug) Kind() Kind { return KindTileDug }

type InventoryChanged struct {
	Entity ecs.EntityID `json:"entity"`
	Items  []string     `json:"items"`
}

func (InventoryChanged) Kind() Kind { return KindInventoryChanged }

type TierChanged struct {
	Entity ecs.EntityID `json:"entity"`
	From   string       `json:"from"`
	To     string       `json:"to"`
}

func (TierChanged) Kind() Kind { return KindTierChanged }

type EntityQuarantined struct {
	Entity ecs.EntityID `json:"entity"`
	Cause  string       `json:"cause"`
}

func (EntityQuarantined) Kind() Kind { return KindEntityQuarantined }
