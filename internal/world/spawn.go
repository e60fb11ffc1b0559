package world

import (
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/data"
)

// APDefaults fill template AP fields left at zero.
type APDefaults struct {
	Maximum   int
	RegenRate int
}

// Spawn creates an entity from tmpl at (x,y) with full AP and HP. It starts
// at TierTemplate until the scheduler tiers it.
func (s *State) Spawn(tmpl *data.ActorTemplate, x, y int32, def APDefaults) ecs.EntityID {
	id := s.ECS.CreateEntity()

	s.Identity.Set(id, &Identity{Template: tmpl.ID, Name: tmpl.Name})
	s.SetPosition(id, x, y)

	apMax, regen := tmpl.APMaximum, tmpl.APRegenRate
	if apMax == 0 {
		apMax = def.Maximum
	}
	if regen == 0 {
		regen = def.RegenRate
	}
	ap := NewActionPoints(apMax, regen)
	s.AP.Set(id, &ap)

	hp := tmpl.HP
	if hp < 1 {
		hp = 1
	}
	s.Health.Set(id, &Health{Current: hp, Maximum: hp})
	s.Mobility.Set(id, &Mobility{CanSwim: tmpl.CanSwim, CanFly: tmpl.CanFly})
	s.Factions.Set(id, &Faction{Team: tmpl.Team})
	s.Status.Set(id, &Status{})
	s.Tiers.Set(id, &Tiered{Tier: TierTemplate})

	if tmpl.InventoryCapacity > 0 {
		s.Inventory.Set(id, &Inventory{Capacity: tmpl.InventoryCapacity})
	}
	if tmpl.Tool != nil {
		s.Tools.Set(id, &Tool{
			Kind:          tmpl.Tool.Kind,
			Power:         tmpl.Tool.Power,
			Durability:    tmpl.Tool.Durability,
			MaxDurability: tmpl.Tool.Durability,
		})
	}
	if tmpl.AttackDamage > 0 {
		rng := tmpl.AttackRange
		if rng < 1 {
			rng = 1
		}
		s.Attacks.Set(id, &Attack{Damage: tmpl.AttackDamage, Range: rng})
	}
	if tmpl.Wanders {
		s.Wander.Set(id, &Wander{})
	}
	if tmpl.Controlled {
		s.Controlled.Set(id, &Controlled{})
	}
	return id
}
