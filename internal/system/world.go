package system

import (
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	coresys "github.com/BarzinL/IsoTalia/internal/core/system"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// ChunkPoller installs chunks finished by the background loaders.
type ChunkPoller interface {
	Poll() int
}

// ChunkSystem makes finished chunk loads resident. Phase 1 (PreUpdate).
type ChunkSystem struct {
	chunks ChunkPoller
}

func NewChunkSystem(chunks ChunkPoller) *ChunkSystem {
	return &ChunkSystem{chunks: chunks}
}

func (s *ChunkSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *ChunkSystem) Update(clock.Ticks) {
	s.chunks.Poll()
}

// Stepper advances tiered entities.
type Stepper interface {
	Step(now clock.Ticks)
}

// SchedulerSystem runs tiering, regeneration, catch-up and AI.
// Phase 3 (PostUpdate).
type SchedulerSystem struct {
	sched Stepper
}

func NewSchedulerSystem(sched Stepper) *SchedulerSystem {
	return &SchedulerSystem{sched: sched}
}

func (s *SchedulerSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *SchedulerSystem) Update(now clock.Ticks) {
	s.sched.Step(now)
}

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	state *world.State
	log   *zap.Logger
}

func NewCleanupSystem(state *world.State, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{state: state, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(now clock.Ticks) {
	if gone := s.state.Flush(); len(gone) > 0 {
		s.log.Debug("entities destroyed", zap.Int("count", len(gone)), zap.Uint64("tick", uint64(now)))
	}
}
