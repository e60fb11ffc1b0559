package command

import (
	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// View is the read-only world access ToAction needs.
type View interface {
	Alive(ecs.EntityID) bool
	PositionOf(ecs.EntityID) (world.Position, bool)
}

// ToAction resolves a command against current state. It is pure: false means
// the command is dropped without a rejection (unknown kind, removed actor,
// missing position or payload).
func ToAction(cmd Command, view View) (action.Action, bool) {
	if !view.Alive(cmd.Actor) {
		return nil, false
	}
	switch cmd.Kind {
	case KindMove:
		pos, ok := view.PositionOf(cmd.Actor)
		if !ok {
			return nil, false
		}
		to, ok := stepFrom(pos, cmd.Payload)
		if !ok {
			return nil, false
		}
		return action.Move{Entity: cmd.Actor, To: to}, true

	case KindInteract:
		pos, ok := view.PositionOf(cmd.Actor)
		if !ok {
			return nil, false
		}
		at := world.Position{X: pos.X, Y: pos.Y - 1} // facing north by default
		switch p := cmd.Payload.(type) {
		case Step:
			dx, dy := p.Dir.Delta()
			at = world.Position{X: pos.X + dx, Y: pos.Y + dy}
		case Target:
			at = world.Position{X: p.X, Y: p.Y}
		}
		return action.Interact{Entity: cmd.Actor, At: at}, true

	case KindAttack:
		v, ok := cmd.Payload.(Victim)
		if !ok {
			return nil, false
		}
		return action.Attack{Entity: cmd.Actor, Target: v.Entity}, true

	case KindEndTurn:
		return action.EndTurn{Entity: cmd.Actor}, true

	case KindWait:
		return action.Wait{Entity: cmd.Actor}, true
	}
	return nil, false
}

// stepFrom resolves a movement payload to the adjacent destination tile.
// A Target payload yields the first grid step toward it.
func stepFrom(pos world.Position, p Payload) (world.Position, bool) {
	var dir world.Direction
	switch p := p.(type) {
	case Step:
		dir = p.Dir
	case Target:
		dir = world.StepToward(pos.X, pos.Y, p.X, p.Y)
	}
	if dir == world.DirNone {
		return pos, false
	}
	dx, dy := dir.Delta()
	return world.Position{X: pos.X + dx, Y: pos.Y + dy}, true
}
