package scheduler

import (
	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// update runs the tier's behavior. It returns false when the entity was
// skipped and should be retried next step.
func (s *Scheduler) update(id ecs.EntityID, t *world.Tiered, pos world.Position, now clock.Ticks) bool {
	switch t.Tier {
	case world.TierFull, world.TierSimplified:
		if !s.state.IsLoaded(pos.X, pos.Y) {
			if s.chunks != nil {
				s.chunks.Request(s.state.ChunkOf(pos.X, pos.Y))
			}
			return false
		}
		s.regen(id, s.pending(t), 100)
		if t.Tier == world.TierFull {
			s.updateFull(id, pos)
		} else {
			s.updateSimplified(id, pos, now)
		}
	case world.TierAbstract:
		s.regen(id, s.pending(t), 100)
		s.updateAbstract(id, t, pos, now)
	case world.TierTemplate:
		s.updateTemplate(id, t, now)
	}
	return true
}

func (s *Scheduler) regen(id ecs.EntityID, ticks clock.Ticks, pct int) {
	if ticks == 0 || pct <= 0 {
		return
	}
	ap, ok := s.state.AP.Get(id)
	if !ok {
		return
	}
	if pct < 100 {
		ticks = ticks * clock.Ticks(pct) / 100
	}
	ap.Regenerate(ticks, s.clock.TicksPerSecond())
}

// heading returns the wanderer's direction, picking a fresh one when the
// current leg is used up.
func (s *Scheduler) heading(w *world.Wander) world.Direction {
	if w.Steps <= 0 || w.Dir == world.DirNone {
		w.Dir = world.Direction(s.rng.IntN(8) + 1)
		w.Steps = s.rng.IntN(6) + 3
	}
	return w.Dir
}

// wanderer returns the Wander component of an AI-driven, non-combat entity.
func (s *Scheduler) wanderer(id ecs.EntityID) (*world.Wander, bool) {
	if s.state.Controlled.Has(id) || s.combat.InCombat(id) {
		return nil, false
	}
	return s.state.Wander.Get(id)
}

// stepsDue counts coarse steps owed since the wanderer last stepped.
func (s *Scheduler) stepsDue(id ecs.EntityID, w *world.Wander, now clock.Ticks) int {
	ap, _ := s.state.AP.Get(id)
	per := s.ticksPerMove(ap)
	if w.NextStep == 0 {
		w.NextStep = now + per
		return 0
	}
	if now < w.NextStep {
		return 0
	}
	n := 1 + (now-w.NextStep)/per
	w.NextStep += n * per
	return int(n)
}

// updateFull drives AI through the validated pipeline: wanderers submit
// moves and non-controlled combatants take their turn.
func (s *Scheduler) updateFull(id ecs.EntityID, pos world.Position) {
	if s.actor == nil {
		return
	}
	if member, current := s.combat.TurnState(id); member {
		if current && !s.state.Controlled.Has(id) {
			s.fight(id, pos)
		}
		return
	}
	w, ok := s.wanderer(id)
	if !ok {
		return
	}
	ap, ok := s.state.AP.Get(id)
	if !ok || !ap.CanAfford(s.costs.Move) {
		return
	}
	dx, dy := s.heading(w).Delta()
	out, err := s.actor.Process(action.Move{Entity: id, To: world.Position{X: pos.X + dx, Y: pos.Y + dy}})
	if err != nil || !out.Success {
		w.Steps = 0
		return
	}
	w.Steps--
}

// fight plays one action of an AI combatant's turn: attack a hostile in
// range, close distance, or yield.
func (s *Scheduler) fight(id ecs.EntityID, pos world.Position) {
	target, dist, found := s.nearestFoe(id, pos)
	ap, _ := s.state.AP.Get(id)
	atk, canAttack := s.state.Attacks.Get(id)

	var a action.Action = action.EndTurn{Entity: id}
	switch {
	case !found || ap == nil:
	case canAttack && dist <= atk.Range && ap.CanAfford(s.costs.Attack):
		a = action.Attack{Entity: id, Target: target}
	case ap.CanAfford(s.costs.Move) && (!canAttack || dist > atk.Range):
		tp, _ := s.state.PositionOf(target)
		dx, dy := world.StepToward(pos.X, pos.Y, tp.X, tp.Y).Delta()
		a = action.Move{Entity: id, To: world.Position{X: pos.X + dx, Y: pos.Y + dy}}
	}
	out, err := s.actor.Process(a)
	if err == nil && !out.Success {
		if _, isEnd := a.(action.EndTurn); !isEnd {
			_, _ = s.actor.Process(action.EndTurn{Entity: id})
		}
	}
}

// nearestFoe finds the closest hostile combatant within reach; ties go to
// the lower ID.
func (s *Scheduler) nearestFoe(id ecs.EntityID, pos world.Position) (ecs.EntityID, int32, bool) {
	var best ecs.EntityID
	bestD := int32(-1)
	for _, other := range s.state.Nearby(pos.X, pos.Y, s.cfg.CombatReach) {
		if other == id || !s.combat.InCombat(other) || !s.state.Hostile(id, other) {
			continue
		}
		d, ok := s.state.Distance(id, other)
		if ok && (bestD < 0 || d < bestD) {
			best, bestD = other, d
		}
	}
	return best, bestD, bestD >= 0
}

// updateSimplified steps wanderers directly with only static-geometry checks.
func (s *Scheduler) updateSimplified(id ecs.EntityID, pos world.Position, now clock.Ticks) {
	w, ok := s.wanderer(id)
	if !ok || s.stepsDue(id, w, now) == 0 {
		return
	}
	s.walk(id, w, nil, pos, 1)
}

// updateAbstract applies all steps owed since the last coarse update at once.
// Outside resident chunks the steps go into the projection instead.
func (s *Scheduler) updateAbstract(id ecs.EntityID, t *world.Tiered, pos world.Position, now clock.Ticks) {
	w, ok := s.wanderer(id)
	if !ok {
		return
	}
	n := s.stepsDue(id, w, now)
	if n == 0 {
		return
	}
	if !s.state.IsLoaded(pos.X, pos.Y) {
		s.project(w, t, n)
		return
	}
	s.walk(id, w, t, pos, n)
}

// walk moves up to n steps along the heading, stopping at the first tile the
// mover cannot stand on, and emits one ENTITY_MOVED for the net displacement.
// With a non-nil t, steps that would leave the resident chunks are projected.
func (s *Scheduler) walk(id ecs.EntityID, w *world.Wander, t *world.Tiered, pos world.Position, n int) {
	var mob world.Mobility
	if m, ok := s.state.Mobility.Get(id); ok {
		mob = *m
	}
	cur := pos
	for i := 0; i < n; i++ {
		dx, dy := s.heading(w).Delta()
		next := world.Position{X: cur.X + dx, Y: cur.Y + dy}
		if t != nil && !s.state.IsLoaded(next.X, next.Y) {
			s.project(w, t, n-i)
			break
		}
		if !s.state.Passable(next.X, next.Y, mob) {
			w.Steps = 0
			break
		}
		cur = next
		w.Steps--
	}
	if cur != pos {
		s.state.SetPosition(id, cur.X, cur.Y)
		s.bus.Publish(event.EntityMoved{Entity: id, X: cur.X, Y: cur.Y})
	}
}

// updateTemplate accumulates a projection without touching Position or AP.
func (s *Scheduler) updateTemplate(id ecs.EntityID, t *world.Tiered, now clock.Ticks) {
	t.Projection.Ticks += s.pending(t)
	w, ok := s.wanderer(id)
	if !ok {
		return
	}
	s.project(w, t, s.stepsDue(id, w, now))
}

// project folds n steps along the heading into t's displacement, clamped to
// half a chunk per axis. Catch-up applies it on promotion.
func (s *Scheduler) project(w *world.Wander, t *world.Tiered, n int) {
	limit := s.state.ChunkSize / 2
	for ; n > 0; n-- {
		dx, dy := s.heading(w).Delta()
		w.Steps--
		t.Projection.DX = clamp(t.Projection.DX+dx, limit)
		t.Projection.DY = clamp(t.Projection.DY+dy, limit)
	}
}

func clamp(v, limit int32) int32 {
	switch {
	case v > limit:
		return limit
	case v < -limit:
		return -limit
	}
	return v
}
