package scheduler

import (
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// searchRadius bounds the ring search for a standable tile near a projected position.
const searchRadius = 8

// catchUp reconciles projected state into concrete components before an
// entity is promoted to Full or Simplified. It returns false, leaving the
// projection intact, when the entity's own chunk is not resident yet.
func (s *Scheduler) catchUp(id ecs.EntityID, t *world.Tiered, now clock.Ticks) bool {
	pos, ok := s.state.PositionOf(id)
	if !ok {
		return false
	}
	if !s.state.IsLoaded(pos.X, pos.Y) {
		if s.chunks != nil {
			s.chunks.Request(s.state.ChunkOf(pos.X, pos.Y))
		}
		return false
	}

	proj := t.Projection
	if proj.DX != 0 || proj.DY != 0 {
		var mob world.Mobility
		if m, ok := s.state.Mobility.Get(id); ok {
			mob = *m
		}
		dest := pos
		if spot, ok := s.nearestPassable(pos.X+proj.DX, pos.Y+proj.DY, mob); ok {
			dest = spot
		}
		if dest != pos {
			s.state.SetPosition(id, dest.X, dest.Y)
			s.bus.Publish(event.EntityMoved{Entity: id, X: dest.X, Y: dest.Y})
		}
	}

	pct := 100
	if t.Tier == world.TierTemplate && s.scaler != nil {
		ctx := scripting.RegenContext{Tier: t.Tier.String()}
		if h, ok := s.state.Health.Get(id); ok {
			ctx.HP, ctx.MaxHP = h.Current, h.Maximum
		}
		pct = s.scaler.RegenScale(ctx)
	}
	s.regen(id, proj.Ticks+s.pending(t), pct)

	t.Projection = world.Projection{}
	t.LastUpdate, t.Explored = now, s.explored
	return true
}

// nearestPassable searches rings of growing radius around (x,y) for a
// loaded tile the mover can stand on. Within a ring, rows are scanned top to
// bottom and left to right.
func (s *Scheduler) nearestPassable(x, y int32, mob world.Mobility) (world.Position, bool) {
	for r := int32(0); r <= searchRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				if s.state.Passable(x+dx, y+dy, mob) {
					return world.Position{X: x + dx, Y: y + dy}, true
				}
			}
		}
	}
	return world.Position{}, false
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
