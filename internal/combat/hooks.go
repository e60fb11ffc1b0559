package combat

import (
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// ActionExecuted implements action.TurnObserver. It removes defeated
// targets, pulls attack participants into combat and ends the actor's turn
// on EndTurn or AP exhaustion.
func (m *Manager) ActionExecuted(a action.Action) {
	switch a := a.(type) {
	case action.Attack:
		if m.InCombat(a.Target) && m.defeated(a.Target) {
			_ = m.Remove(a.Target, ReasonDefeated)
		} else if !m.defeated(a.Target) {
			m.Engage(a.Entity, a.Target)
		}
	case action.EndTurn:
		if err := m.EndTurn(a.Entity); err != nil {
			m.log.Debug("end turn ignored", zap.Error(err))
		}
		return
	}
	m.endIfExhausted(a.Actor())
}

// Quarantined implements action.TurnObserver.
func (m *Manager) Quarantined(e ecs.EntityID) {
	if m.InCombat(e) {
		_ = m.Remove(e, ReasonQuarantined)
	}
}

// endIfExhausted ends e's turn when it can no longer afford any action.
func (m *Manager) endIfExhausted(e ecs.EntityID) {
	in, ok := m.InstanceOf(e)
	if !ok || in.State != StateTurnActive || in.CurrentEntity() != e {
		return
	}
	ap, ok := m.state.AP.Get(e)
	if !ok || ap.Current < m.costs.Cheapest() {
		m.endTurn(in)
	}
}

// Engage starts or extends combat between two hostile entities.
func (m *Manager) Engage(a, b ecs.EntityID) {
	if !m.state.Hostile(a, b) {
		return
	}
	ia, inA := m.membership[a]
	ib, inB := m.membership[b]
	var err error
	switch {
	case inA && inB:
		return
	case inA:
		err = m.Join(ia, b)
	case inB:
		err = m.Join(ib, a)
	default:
		_, err = m.Start(a, b)
	}
	if err != nil {
		m.log.Debug("engage failed",
			zap.Stringer("a", a),
			zap.Stringer("b", b),
			zap.Error(err),
		)
	}
}

// Detect engages every Full-tier entity with each hostile inside DetectRadius.
// Entities are visited in ascending ID order.
func (m *Manager) Detect() {
	if m.cfg.DetectRadius <= 0 {
		return
	}
	m.state.Tiers.Each(func(id ecs.EntityID, t *world.Tiered) {
		if t.Tier != world.TierFull || !m.eligible(id) {
			return
		}
		pos, ok := m.state.PositionOf(id)
		if !ok {
			return
		}
		for _, other := range m.state.Nearby(pos.X, pos.Y, m.cfg.DetectRadius) {
			if other != id && m.eligible(other) && m.state.Hostile(id, other) {
				m.Engage(id, other)
			}
		}
	})
}

// Tick is the per-step safety net: members destroyed outside the pipeline
// are removed and exhausted current combatants yield their turn.
func (m *Manager) Tick() {
	for _, in := range m.Active() {
		for _, c := range append([]Combatant(nil), in.Combatants...) {
			if !in.Active() {
				break
			}
			if m.defeated(c.Entity) {
				_ = m.Remove(c.Entity, ReasonDefeated)
			}
		}
		if !in.Active() {
			continue
		}
		m.check(in)
		if in.Active() {
			m.endIfExhausted(in.CurrentEntity())
		}
	}
}
