package system

import (
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	coresys "github.com/BarzinL/IsoTalia/internal/core/system"
)

// Combat is the part of the combat manager driven once per tick.
type Combat interface {
	Detect()
	Tick()
}

// CombatSystem starts combat between hostiles that come within detection
// range and settles turn bookkeeping. Phase 2 (Update).
type CombatSystem struct {
	combat Combat
}

func NewCombatSystem(c Combat) *CombatSystem {
	return &CombatSystem{combat: c}
}

func (s *CombatSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *CombatSystem) Update(clock.Ticks) {
	s.combat.Detect()
	s.combat.Tick()
}
