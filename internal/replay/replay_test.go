package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-testutil"
	"go.uber.org/zap/zaptest"

	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/event"
)

type flakyJournal struct {
	fail bool
	got  []Entry
}

func (f *flakyJournal) AppendJournal(_ context.Context, _ uuid.UUID, entries []Entry) error {
	if f.fail {
		return errors.New("database unavailable")
	}
	f.got = append(f.got, entries...)
	return nil
}

func TestRecorderRetriesFailedFlush(t *testing.T) {
	store := &flakyJournal{fail: true}
	r := NewRecorder(uuid.New(), store, zaptest.NewLogger(t))

	r.Record(3, command.Command{Kind: command.KindWait, Actor: 1, Seq: 1})
	r.Record(3, command.Command{Kind: command.KindEndTurn, Actor: 1, Seq: 2})

	if err := r.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	testutil.AssertEqual(t, "kept", r.Buffered(), 2)

	store.fail = false
	if err := r.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, "buffered", r.Buffered(), 0)
	testutil.AssertEqual(t, "stored", len(store.got), 2)
	testutil.AssertEqual(t, "first seq", store.got[0].Seq, uint64(1))
}

func TestMemoryJournalSeparatesRuns(t *testing.T) {
	j := NewMemoryJournal()
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()
	_ = j.AppendJournal(ctx, a, []Entry{{Tick: 1, Seq: 1}})
	_ = j.AppendJournal(ctx, b, []Entry{{Tick: 1, Seq: 1}, {Tick: 2, Seq: 2}})

	testutil.AssertEqual(t, "run a", len(j.Entries(a)), 1)
	testutil.AssertEqual(t, "run b", len(j.Entries(b)), 2)
}

func TestScriptOrdersByTickThenSeq(t *testing.T) {
	s := NewScript([]Entry{
		{Tick: 5, Seq: 4, Command: command.Command{Kind: command.KindWait}},
		{Tick: 2, Seq: 2, Command: command.Command{Kind: command.KindMove}},
		{Tick: 5, Seq: 3, Command: command.Command{Kind: command.KindAttack}},
	})
	testutil.AssertEqual(t, "last", s.Last(), clock.Ticks(5))
	testutil.AssertEqual(t, "tick 2", len(s.At(2)), 1)
	testutil.AssertEqual(t, "empty tick", len(s.At(3)), 0)
	at5 := s.At(5)
	testutil.AssertEqual(t, "tick 5 count", len(at5), 2)
	testutil.AssertEqual(t, "tick 5 first", at5[0].Kind, command.KindAttack)
}

func TestDigestTracksEventStream(t *testing.T) {
	run := func(moves ...int32) string {
		bus := event.NewBus()
		clk := clock.New(50 * time.Millisecond)
		d := NewDigest(bus, clk, zaptest.NewLogger(t))
		defer d.Close()
		for _, x := range moves {
			clk.Advance(1)
			bus.Publish(event.EntityMoved{Entity: 1, X: x, Y: 0})
		}
		testutil.AssertEqual(t, "events", d.Events(), len(moves))
		return d.Sum()
	}

	testutil.AssertEqual(t, "same stream", run(1, 2, 3), run(1, 2, 3))
	if run(1, 2, 3) == run(1, 3, 2) {
		t.Error("reordered stream produced the same digest")
	}
	testutil.AssertEqual(t, "digest length", len(run()), 64)
}
