// Package replay records the external command stream of a run and folds the
// emitted events into a digest, so two runs can be compared for determinism.
package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
)

// Entry is one journaled command. Seq is the intake sequence number.
type Entry struct {
	Tick    clock.Ticks
	Seq     uint64
	Command command.Command
}

// JournalStore persists journal batches for a run.
type JournalStore interface {
	AppendJournal(ctx context.Context, run uuid.UUID, entries []Entry) error
}

// Recorder buffers drained commands and hands them to a JournalStore in
// batches. Used from the tick goroutine only.
type Recorder struct {
	run   uuid.UUID
	store JournalStore
	buf   []Entry
	log   *zap.Logger
}

func NewRecorder(run uuid.UUID, store JournalStore, log *zap.Logger) *Recorder {
	return &Recorder{run: run, store: store, log: log}
}

func (r *Recorder) Run() uuid.UUID { return r.run }

func (r *Recorder) Record(now clock.Ticks, cmd command.Command) {
	r.buf = append(r.buf, Entry{Tick: now, Seq: cmd.Seq, Command: cmd})
}

// Buffered returns the number of entries not yet flushed.
func (r *Recorder) Buffered() int { return len(r.buf) }

// Flush writes all buffered entries. On failure the buffer is kept and the
// next Flush retries it.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.buf) == 0 {
		return nil
	}
	if err := r.store.AppendJournal(ctx, r.run, r.buf); err != nil {
		return fmt.Errorf("flush journal (%d entries): %w", len(r.buf), err)
	}
	r.log.Debug("journal flushed", zap.Int("entries", len(r.buf)))
	r.buf = r.buf[:0]
	return nil
}

// MemoryJournal is an in-process JournalStore.
type MemoryJournal struct {
	mu   sync.Mutex
	runs map[uuid.UUID][]Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{runs: make(map[uuid.UUID][]Entry)}
}

func (j *MemoryJournal) AppendJournal(_ context.Context, run uuid.UUID, entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs[run] = append(j.runs[run], entries...)
	return nil
}

// Entries returns a copy of everything journaled for run.
func (j *MemoryJournal) Entries(run uuid.UUID) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.runs[run]))
	copy(out, j.runs[run])
	return out
}

// Script groups journal entries by the tick they were drained on.
type Script struct {
	byTick map[clock.Ticks][]command.Command
	last   clock.Ticks
}

func NewScript(entries []Entry) *Script {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Tick != sorted[j].Tick {
			return sorted[i].Tick < sorted[j].Tick
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	s := &Script{byTick: make(map[clock.Ticks][]command.Command)}
	for _, e := range sorted {
		s.byTick[e.Tick] = append(s.byTick[e.Tick], e.Command)
		s.last = max(s.last, e.Tick)
	}
	return s
}

// At returns the commands drained on tick t, in their original order.
func (s *Script) At(t clock.Ticks) []command.Command { return s.byTick[t] }

// Last is the final tick that carries a command.
func (s *Script) Last() clock.Ticks { return s.last }
