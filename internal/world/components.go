package world

import (
	"github.com/BarzinL/IsoTalia/internal/core/clock"
)

// Position is a tile coordinate.
type Position struct {
	X int32
	Y int32
}

// Identity records which template an entity was spawned from.
type Identity struct {
	Template string
	Name     string
}

type Health struct {
	Current int32
	Maximum int32
}

func (h *Health) Alive() bool { return h.Current > 0 }

// Damage lowers Current, flooring at zero, and returns the HP actually lost.
func (h *Health) Damage(amount int32) int32 {
	if amount <= 0 {
		return 0
	}
	if amount > h.Current {
		amount = h.Current
	}
	h.Current -= amount
	return amount
}

// Heal raises Current up to Maximum and returns the HP restored.
func (h *Health) Heal(amount int32) int32 {
	if amount <= 0 || h.Current <= 0 {
		return 0
	}
	if room := h.Maximum - h.Current; amount > room {
		amount = room
	}
	h.Current += amount
	return amount
}

// Mobility lists movement capabilities beyond walking.
type Mobility struct {
	CanSwim bool
	CanFly  bool
}

type Inventory struct {
	Capacity int
	Items    []string
}

// Add appends item if there is room.
func (inv *Inventory) Add(item string) bool {
	if len(inv.Items) >= inv.Capacity {
		return false
	}
	inv.Items = append(inv.Items, item)
	return true
}

func (inv *Inventory) Remove(item string) bool {
	for i, it := range inv.Items {
		if it == item {
			inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the item list safe to hand to subscribers.
func (inv *Inventory) Snapshot() []string {
	out := make([]string, len(inv.Items))
	copy(out, inv.Items)
	return out
}

type Tool struct {
	Kind          string
	Power         int
	Durability    int
	MaxDurability int
}

func (t *Tool) Broken() bool { return t.Durability <= 0 }

// Use wears the tool by one point and reports whether it still works.
func (t *Tool) Use() bool {
	if t.Durability > 0 {
		t.Durability--
	}
	return t.Durability > 0
}

// Faction decides hostility. Entities with an empty Team are neutral.
type Faction struct {
	Team string
}

// Hostile reports whether two factions fight each other.
func (f Faction) Hostile(other Faction) bool {
	return f.Team != "" && other.Team != "" && f.Team != other.Team
}

type Attack struct {
	Damage int32
	Range  int32
}

// Effect is an end-of-turn status. Positive Magnitude heals, negative harms.
type Effect struct {
	Kind      string
	Magnitude int32
	Turns     int
}

type Status struct {
	Effects []Effect
}

// Apply adds an effect, refreshing an existing one of the same kind.
func (s *Status) Apply(e Effect) {
	for i := range s.Effects {
		if s.Effects[i].Kind == e.Kind {
			s.Effects[i] = e
			return
		}
	}
	s.Effects = append(s.Effects, e)
}

// Tick applies one turn of every effect and returns the net HP delta.
// Expired effects are dropped.
func (s *Status) Tick() int32 {
	var delta int32
	kept := s.Effects[:0]
	for _, e := range s.Effects {
		delta += e.Magnitude
		e.Turns--
		if e.Turns > 0 {
			kept = append(kept, e)
		}
	}
	s.Effects = kept
	return delta
}

// Wander gives non-controlled actors a heading to drift along.
type Wander struct {
	Dir      Direction
	Steps    int         // steps left before picking a new heading
	NextStep clock.Ticks // coarse tiers step no sooner than this
}

// Controlled marks an entity driven by a player or network client. Controlled
// entities are points of interest for the tier scheduler.
type Controlled struct {
	Session uint64
}

// Quarantined entities are excluded from all active processing after a defect.
type Quarantined struct {
	Cause string
	At    clock.Ticks
}

// Tier is the simulation fidelity assigned by the scheduler.
type Tier uint8

const (
	TierFull Tier = iota
	TierSimplified
	TierAbstract
	TierTemplate
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierSimplified:
		return "simplified"
	case TierAbstract:
		return "abstract"
	case TierTemplate:
		return "template"
	}
	return "unknown"
}

// Projection accumulates state a Template-tier entity would have reached,
// applied to concrete components on promotion.
type Projection struct {
	Ticks  clock.Ticks // simulated time not yet reflected in ActionPoints
	DX, DY int32       // displacement not yet reflected in Position
}

func (p Projection) Empty() bool { return p.Ticks == 0 && p.DX == 0 && p.DY == 0 }

// Tiered is the scheduler's per-entity bookkeeping. Only the scheduler writes it.
type Tiered struct {
	Tier       Tier
	NextDue    clock.Ticks
	LastUpdate clock.Ticks
	Explored   clock.Ticks // scheduler's exploration tick count as of LastUpdate
	Projection Projection
}
