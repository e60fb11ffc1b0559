package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	coresys "github.com/BarzinL/IsoTalia/internal/core/system"
)

// JournalFlusher writes buffered journal entries.
type JournalFlusher interface {
	Flush(ctx context.Context) error
}

// ChunkSaver queues saves of modified resident chunks.
type ChunkSaver interface {
	SaveModified() int
}

// PersistenceSystem periodically flushes the command journal and queues saves
// of modified chunks. Phase 5 (Persist).
type PersistenceSystem struct {
	journal   JournalFlusher
	chunks    ChunkSaver
	log       *zap.Logger
	tickCount int
	interval  int // flush every N ticks
}

func NewPersistenceSystem(journal JournalFlusher, chunks ChunkSaver, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		journal:  journal,
		chunks:   chunks,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(clock.Ticks) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.FlushAll()
}

// FlushAll persists immediately. Called at shutdown as well.
func (s *PersistenceSystem) FlushAll() {
	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.journal.Flush(ctx); err != nil {
			s.log.Error("journal flush failed", zap.Error(err))
		}
		cancel()
	}
	if s.chunks != nil {
		if n := s.chunks.SaveModified(); n > 0 {
			s.log.Debug("chunk saves queued", zap.Int("count", n))
		}
	}
}
