// Package system holds the per-tick systems that drive the simulation. Each
// system belongs to one phase; the runner executes phases in order.
package system

import (
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	coresys "github.com/BarzinL/IsoTalia/internal/core/system"
)

// Processor runs one action through validation and execution.
type Processor interface {
	Process(a action.Action) (action.Outcome, error)
}

// Journal records every drained command before it is resolved.
type Journal interface {
	Record(now clock.Ticks, cmd command.Command)
}

// InputSystem drains the command intake in arrival order and feeds each
// command through the action pipeline. Phase 0 (Input).
type InputSystem struct {
	queue      *command.Queue
	view       command.View
	proc       Processor
	journal    Journal
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(queue *command.Queue, view command.View, proc Processor, journal Journal, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		queue:      queue,
		view:       view,
		proc:       proc,
		journal:    journal,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(now clock.Ticks) {
	for _, cmd := range s.queue.Drain(s.maxPerTick) {
		if s.journal != nil {
			s.journal.Record(now, cmd)
		}
		a, ok := command.ToAction(cmd, s.view)
		if !ok {
			s.log.Debug("command dropped",
				zap.Stringer("kind", cmd.Kind),
				zap.Stringer("actor", cmd.Actor),
				zap.Uint64("seq", cmd.Seq),
			)
			continue
		}
		// Rejections are published by the pipeline; defects are logged there.
		_, _ = s.proc.Process(a)
	}
}
