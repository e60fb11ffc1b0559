package command

import (
	"encoding/json"
	"fmt"

	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// wireCommand is the JSON shape network clients send:
//
//	{"type":"move","actor_id":4294967297,"payload":{"direction":"north"}}
type wireCommand struct {
	Type    string          `json:"type"`
	ActorID uint64          `json:"actor_id"`
	Payload json.RawMessage `json:"payload"`
	Version int             `json:"version,omitempty"`
}

type wirePayload struct {
	Direction string  `json:"direction"`
	X         *int32  `json:"x"`
	Y         *int32  `json:"y"`
	Target    *uint64 `json:"target"`
}

// Decode parses one wire command. The version field is accepted and ignored.
func Decode(raw []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	kind, dir := ParseKind(w.Type)
	if kind == KindUnknown {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}
	cmd := Command{Kind: kind, Actor: ecs.EntityID(w.ActorID)}

	var p wirePayload
	if len(w.Payload) > 0 && string(w.Payload) != "null" {
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return Command{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
	}
	switch {
	case dir != world.DirNone:
		cmd.Payload = Step{Dir: dir}
	case p.Target != nil:
		cmd.Payload = Victim{Entity: ecs.EntityID(*p.Target)}
	case p.X != nil && p.Y != nil:
		cmd.Payload = Target{X: *p.X, Y: *p.Y}
	case p.Direction != "":
		d := world.ParseDirection(p.Direction)
		if d == world.DirNone {
			return Command{}, fmt.Errorf("decode %s payload: bad direction %q", kind, p.Direction)
		}
		cmd.Payload = Step{Dir: d}
	}
	return cmd, nil
}

// Encode renders cmd in the wire shape Decode accepts. The journal stores
// commands this way so a replay goes through the same decoder as live input.
func Encode(cmd Command) ([]byte, error) {
	var p wirePayload
	switch pl := cmd.Payload.(type) {
	case nil:
	case Step:
		p.Direction = pl.Dir.String()
	case Target:
		p.X, p.Y = &pl.X, &pl.Y
	case Victim:
		id := uint64(pl.Entity)
		p.Target = &id
	default:
		return nil, fmt.Errorf("encode %s: unsupported payload %T", cmd.Kind, cmd.Payload)
	}
	w := struct {
		Type    string      `json:"type"`
		ActorID uint64      `json:"actor_id"`
		Payload wirePayload `json:"payload"`
	}{cmd.Kind.String(), uint64(cmd.Actor), p}
	return json.Marshal(w)
}
