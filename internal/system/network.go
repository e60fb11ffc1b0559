package system

import (
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	coresys "github.com/BarzinL/IsoTalia/internal/core/system"
)

// Sessions is the network hub as seen by the tick loop.
type Sessions interface {
	Accept()
	Flush()
}

// SessionSystem admits new clients and forgets closed ones before commands
// are drained. Phase 0 (Input), registered ahead of InputSystem.
type SessionSystem struct {
	hub Sessions
}

func NewSessionSystem(hub Sessions) *SessionSystem {
	return &SessionSystem{hub: hub}
}

func (s *SessionSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *SessionSystem) Update(clock.Ticks) {
	s.hub.Accept()
}

// OutputSystem flushes every session's buffered events once per tick.
// Phase 4 (Output).
type OutputSystem struct {
	hub Sessions
}

func NewOutputSystem(hub Sessions) *OutputSystem {
	return &OutputSystem{hub: hub}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(clock.Ticks) {
	s.hub.Flush()
}
