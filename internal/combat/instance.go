package combat

import (
	"fmt"

	"github.com/BarzinL/IsoTalia/internal/core/ecs"
)

// State is a combat instance's position in the turn state machine.
type State uint8

const (
	StateIdle State = iota
	StateForming
	StateTurnActive
	StateResolving
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateForming:
		return "forming"
	case StateTurnActive:
		return "turn_active"
	case StateResolving:
		return "resolving"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Combatant is one entry of the turn order.
type Combatant struct {
	Entity     ecs.EntityID
	Initiative int
	Team       string
}

// before reports whether c takes its turn ahead of o: higher initiative
// first, lower EntityID breaking ties.
func (c Combatant) before(o Combatant) bool {
	if c.Initiative != o.Initiative {
		return c.Initiative > o.Initiative
	}
	return c.Entity < o.Entity
}

// Instance is one turn-based encounter. Combatants is always a duplicate-free
// ordering; Current indexes the entity whose turn it is.
type Instance struct {
	ID         uint64
	Combatants []Combatant
	Current    int
	TurnNumber uint32
	State      State
	Outcome    string
}

func (in *Instance) Active() bool {
	return in.State != StateEnded && in.State != StateIdle
}

// CurrentEntity returns the active combatant, or zero if none.
func (in *Instance) CurrentEntity() ecs.EntityID {
	if in.Current < 0 || in.Current >= len(in.Combatants) {
		return 0
	}
	return in.Combatants[in.Current].Entity
}

// Members returns the entities in turn order.
func (in *Instance) Members() []ecs.EntityID {
	out := make([]ecs.EntityID, len(in.Combatants))
	for i, c := range in.Combatants {
		out[i] = c.Entity
	}
	return out
}

func (in *Instance) indexOf(id ecs.EntityID) int {
	for i, c := range in.Combatants {
		if c.Entity == id {
			return i
		}
	}
	return -1
}

// insertionIndex is where c belongs under the ordering rule.
func (in *Instance) insertionIndex(c Combatant) int {
	for i, o := range in.Combatants {
		if c.before(o) {
			return i
		}
	}
	return len(in.Combatants)
}

// teams returns the distinct teams still represented.
func (in *Instance) teams() map[string]struct{} {
	out := make(map[string]struct{}, 2)
	for _, c := range in.Combatants {
		out[c.Team] = struct{}{}
	}
	return out
}

// validate detects broken invariants.
func (in *Instance) validate() error {
	if len(in.Combatants) > 0 && (in.Current < 0 || in.Current >= len(in.Combatants)) {
		return fmt.Errorf("current index %d out of range [0,%d)", in.Current, len(in.Combatants))
	}
	seen := make(map[ecs.EntityID]struct{}, len(in.Combatants))
	for _, c := range in.Combatants {
		if _, dup := seen[c.Entity]; dup {
			return fmt.Errorf("entity %v listed twice", c.Entity)
		}
		seen[c.Entity] = struct{}{}
	}
	return nil
}
