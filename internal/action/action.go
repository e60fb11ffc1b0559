// Package action validates and executes time-costed state mutations.
package action

import (
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// Action is a fully resolved, validated-or-rejected unit of work. The set of
// variants is closed; code switches on the concrete type.
type Action interface {
	Actor() ecs.EntityID
	Name() string
	action()
}

// Move steps the actor onto an adjacent tile.
type Move struct {
	Entity ecs.EntityID
	To     world.Position
}

// Interact digs the adjacent tile At with the actor's tool.
type Interact struct {
	Entity ecs.EntityID
	At     world.Position
}

type Attack struct {
	Entity ecs.EntityID
	Target ecs.EntityID
}

// EndTurn yields the remainder of a combat turn.
type EndTurn struct {
	Entity ecs.EntityID
}

// Wait spends AP without effect.
type Wait struct {
	Entity ecs.EntityID
}

func (a Move) Actor() ecs.EntityID     { return a.Entity }
func (a Interact) Actor() ecs.EntityID { return a.Entity }
func (a Attack) Actor() ecs.EntityID   { return a.Entity }
func (a EndTurn) Actor() ecs.EntityID  { return a.Entity }
func (a Wait) Actor() ecs.EntityID     { return a.Entity }

func (Move) Name() string     { return "move" }
func (Interact) Name() string { return "interact" }
func (Attack) Name() string   { return "attack" }
func (EndTurn) Name() string  { return "end_turn" }
func (Wait) Name() string     { return "wait" }

func (Move) action()     {}
func (Interact) action() {}
func (Attack) action()   {}
func (EndTurn) action()  {}
func (Wait) action()     {}

// Costs maps each variant to its AP cost.
type Costs struct {
	Move     int
	Interact int
	Attack   int
	Wait     int
}

// Of returns the AP cost of a. EndTurn is free.
func (c Costs) Of(a Action) int {
	switch a.(type) {
	case Move:
		return c.Move
	case Interact:
		return c.Interact
	case Attack:
		return c.Attack
	case Wait:
		return c.Wait
	}
	return 0
}

// Cheapest returns the lowest positive cost. An entity holding less AP than
// this can do nothing but end its turn.
func (c Costs) Cheapest() int {
	lowest := 0
	for _, v := range []int{c.Move, c.Interact, c.Attack, c.Wait} {
		if v > 0 && (lowest == 0 || v < lowest) {
			lowest = v
		}
	}
	return lowest
}
