// Package command holds device-independent intents and the ordered intake
// queue that feeds them to the simulation.
package command

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

var ErrUnknownKind = errors.New("unknown command kind")

// Kind is the closed set of commands an input source may issue.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindMove
	KindInteract
	KindAttack
	KindEndTurn
	KindWait
)

var kindNames = map[Kind]string{
	KindMove:     "move",
	KindInteract: "interact",
	KindAttack:   "attack",
	KindEndTurn:  "end_turn",
	KindWait:     "wait",
}

var kindByName = map[string]Kind{
	"move":     KindMove,
	"interact": KindInteract,
	"dig":      KindInteract,
	"attack":   KindAttack,
	"end_turn": KindEndTurn,
	"endturn":  KindEndTurn,
	"wait":     KindWait,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind resolves a wire type name regardless of case. Compound names
// such as "move_north" yield the kind plus the embedded direction.
func ParseKind(s string) (Kind, world.Direction) {
	name := cases.Fold().String(strings.TrimSpace(s))
	if k, ok := kindByName[name]; ok {
		return k, world.DirNone
	}
	if rest, ok := strings.CutPrefix(name, "move_"); ok {
		if d := world.ParseDirection(rest); d != world.DirNone {
			return KindMove, d
		}
	}
	return KindUnknown, world.DirNone
}

// Payload is the closed set of command arguments.
type Payload interface {
	payload()
}

// Step is a compass direction relative to the actor.
type Step struct {
	Dir world.Direction
}

// Target is an absolute tile, typically a click position.
type Target struct {
	X int32
	Y int32
}

// Victim names another entity.
type Victim struct {
	Entity ecs.EntityID
}

func (Step) payload()   {}
func (Target) payload() {}
func (Victim) payload() {}

// Command is an abstract intent from a player, AI or network source.
// Seq is stamped by the Queue and fixes processing order.
type Command struct {
	Kind    Kind
	Actor   ecs.EntityID
	Payload Payload
	Seq     uint64
}
