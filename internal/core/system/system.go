package system

import "github.com/BarzinL/IsoTalia/internal/core/clock"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain the command intake through the action pipeline
	PhasePreUpdate               // 1: chunk readiness
	PhaseUpdate                  // 2: combat detection, turn bookkeeping
	PhasePostUpdate              // 3: tiering, regen, catch-up
	PhaseOutput                  // 4: flush client buffers
	PhasePersist                 // 5: journal + chunk saves
	PhaseCleanup                 // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every tick system implements. now is the tick
// being simulated.
type System interface {
	Phase() Phase
	Update(now clock.Ticks)
}
