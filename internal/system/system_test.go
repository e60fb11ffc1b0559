package system

import (
	"context"
	"testing"

	"github.com/pixil98/go-testutil"
	"go.uber.org/zap/zaptest"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

type fakeView map[ecs.EntityID]world.Position

func (v fakeView) Alive(id ecs.EntityID) bool { _, ok := v[id]; return ok }
func (v fakeView) PositionOf(id ecs.EntityID) (world.Position, bool) {
	p, ok := v[id]
	return p, ok
}

type fakeProc struct{ got []action.Action }

func (p *fakeProc) Process(a action.Action) (action.Outcome, error) {
	p.got = append(p.got, a)
	return action.Outcome{Success: true}, nil
}

type fakeJournal struct{ seqs []uint64 }

func (j *fakeJournal) Record(_ clock.Ticks, cmd command.Command) { j.seqs = append(j.seqs, cmd.Seq) }

func TestInputSystemDrainsInOrder(t *testing.T) {
	q := command.NewQueue()
	view := fakeView{1: {X: 0, Y: 0}, 2: {X: 5, Y: 5}}
	proc := &fakeProc{}
	journal := &fakeJournal{}
	sys := NewInputSystem(q, view, proc, journal, 2, zaptest.NewLogger(t))

	q.Push(command.Command{Kind: command.KindMove, Actor: 1, Payload: command.Step{Dir: world.East}})
	q.Push(command.Command{Kind: command.KindWait, Actor: 99}) // unknown actor
	q.Push(command.Command{Kind: command.KindEndTurn, Actor: 2})

	sys.Update(1)
	testutil.AssertEqual(t, "journaled", len(journal.seqs), 2)
	testutil.AssertEqual(t, "processed", len(proc.got), 1)
	testutil.AssertEqual(t, "move", proc.got[0], action.Action(action.Move{Entity: 1, To: world.Position{X: 1, Y: 0}}))
	testutil.AssertEqual(t, "left in queue", q.Len(), 1)

	sys.Update(2)
	testutil.AssertEqual(t, "journaled", len(journal.seqs), 3)
	testutil.AssertEqual(t, "third seq", journal.seqs[2], uint64(3))
	testutil.AssertEqual(t, "end turn", proc.got[1], action.Action(action.EndTurn{Entity: 2}))
}

type countingFlusher struct{ flushes int }

func (c *countingFlusher) Flush(context.Context) error { c.flushes++; return nil }

type countingSaver struct{ calls int }

func (c *countingSaver) SaveModified() int { c.calls++; return 0 }

func TestPersistenceSystemInterval(t *testing.T) {
	j := &countingFlusher{}
	c := &countingSaver{}
	sys := NewPersistenceSystem(j, c, 3, zaptest.NewLogger(t))
	for tick := clock.Ticks(1); tick <= 7; tick++ {
		sys.Update(tick)
	}
	testutil.AssertEqual(t, "journal flushes", j.flushes, 2)
	testutil.AssertEqual(t, "chunk passes", c.calls, 2)

	sys.FlushAll()
	testutil.AssertEqual(t, "forced", j.flushes, 3)
}
