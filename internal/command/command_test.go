package command

import (
	"errors"
	"sync"
	"testing"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/world"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		expKind Kind
		expDir  world.Direction
	}{
		{"move", KindMove, world.DirNone},
		{"MOVE", KindMove, world.DirNone},
		{"Move", KindMove, world.DirNone},
		{"move_southwest", KindMove, world.SouthWest},
		{"MOVE_NORTH", KindMove, world.North},
		{"dig", KindInteract, world.DirNone},
		{"End_Turn", KindEndTurn, world.DirNone},
		{" wait ", KindWait, world.DirNone},
		{"move_up", KindUnknown, world.DirNone},
		{"teleport", KindUnknown, world.DirNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, d := ParseKind(tt.in)
			if k != tt.expKind || d != tt.expDir {
				t.Errorf("ParseKind(%q) = %v,%v, want %v,%v", tt.in, k, d, tt.expKind, tt.expDir)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		exp     Command
		wantErr error
	}{
		{
			name: "direction payload",
			raw:  `{"type":"Move","actor_id":7,"payload":{"direction":"north"},"version":2}`,
			exp:  Command{Kind: KindMove, Actor: 7, Payload: Step{Dir: world.North}},
		},
		{
			name: "compound type",
			raw:  `{"type":"move_east","actor_id":7}`,
			exp:  Command{Kind: KindMove, Actor: 7, Payload: Step{Dir: world.East}},
		},
		{
			name: "click target",
			raw:  `{"type":"move","actor_id":7,"payload":{"x":10,"y":-4}}`,
			exp:  Command{Kind: KindMove, Actor: 7, Payload: Target{X: 10, Y: -4}},
		},
		{
			name: "victim",
			raw:  `{"type":"attack","actor_id":7,"payload":{"target":9}}`,
			exp:  Command{Kind: KindAttack, Actor: 7, Payload: Victim{Entity: 9}},
		},
		{
			name: "no payload",
			raw:  `{"type":"END_TURN","actor_id":7,"payload":null}`,
			exp:  Command{Kind: KindEndTurn, Actor: 7},
		},
		{
			name:    "unknown kind",
			raw:     `{"type":"fly","actor_id":7}`,
			wantErr: ErrUnknownKind,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.exp {
				t.Errorf("Decode = %+v, want %+v", got, tt.exp)
			}
		})
	}

	for _, bad := range []string{`{`, `{"type":"move","payload":{"direction":"up"}}`, `{"type":"move","payload":[1]}`} {
		if _, err := Decode([]byte(bad)); err == nil {
			t.Errorf("Decode(%s) succeeded, want error", bad)
		}
	}
}

func TestQueueDrainKeepsArrivalOrder(t *testing.T) {
	q := NewQueue()
	for i := 1; i <= 5; i++ {
		q.Push(Command{Kind: KindWait, Actor: ecs.EntityID(i)})
	}
	first := q.Drain(3)
	if len(first) != 3 {
		t.Fatalf("Drain(3) returned %d", len(first))
	}
	rest := q.Drain(0)
	all := append(first, rest...)
	for i, c := range all {
		if c.Actor != ecs.EntityID(i+1) || c.Seq != uint64(i+1) {
			t.Errorf("cmd %d = actor %v seq %d", i, c.Actor, c.Seq)
		}
	}
	if q.Len() != 0 || q.Drain(1) != nil {
		t.Error("queue not empty")
	}
}

func TestQueueConcurrentPushStampsUniqueSeq(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(Command{Kind: KindWait})
			}
		}()
	}
	wg.Wait()
	cmds := q.Drain(0)
	if len(cmds) != 800 {
		t.Fatalf("drained %d, want 800", len(cmds))
	}
	for i := 1; i < len(cmds); i++ {
		if cmds[i].Seq <= cmds[i-1].Seq {
			t.Fatalf("seq not increasing at %d: %d after %d", i, cmds[i].Seq, cmds[i-1].Seq)
		}
	}
}

type fakeView map[ecs.EntityID]world.Position

func (v fakeView) Alive(id ecs.EntityID) bool { _, ok := v[id]; return ok }
func (v fakeView) PositionOf(id ecs.EntityID) (world.Position, bool) {
	p, ok := v[id]
	return p, ok
}

func TestToAction(t *testing.T) {
	view := fakeView{1: {X: 5, Y: 5}}
	tests := []struct {
		name  string
		cmd   Command
		exp   action.Action
		expOK bool
	}{
		{"step", Command{Kind: KindMove, Actor: 1, Payload: Step{Dir: world.SouthEast}}, action.Move{Entity: 1, To: world.Position{X: 6, Y: 6}}, true},
		{"click far", Command{Kind: KindMove, Actor: 1, Payload: Target{X: 5, Y: 0}}, action.Move{Entity: 1, To: world.Position{X: 5, Y: 4}}, true},
		{"click self", Command{Kind: KindMove, Actor: 1, Payload: Target{X: 5, Y: 5}}, nil, false},
		{"move no payload", Command{Kind: KindMove, Actor: 1}, nil, false},
		{"dig default north", Command{Kind: KindInteract, Actor: 1}, action.Interact{Entity: 1, At: world.Position{X: 5, Y: 4}}, true},
		{"dig west", Command{Kind: KindInteract, Actor: 1, Payload: Step{Dir: world.West}}, action.Interact{Entity: 1, At: world.Position{X: 4, Y: 5}}, true},
		{"attack", Command{Kind: KindAttack, Actor: 1, Payload: Victim{Entity: 2}}, action.Attack{Entity: 1, Target: 2}, true},
		{"attack no victim", Command{Kind: KindAttack, Actor: 1}, nil, false},
		{"end turn", Command{Kind: KindEndTurn, Actor: 1}, action.EndTurn{Entity: 1}, true},
		{"removed actor", Command{Kind: KindWait, Actor: 3}, nil, false},
		{"unknown kind", Command{Kind: KindUnknown, Actor: 1}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToAction(tt.cmd, view)
			if ok != tt.expOK || got != tt.exp {
				t.Errorf("ToAction = %#v,%v, want %#v,%v", got, ok, tt.exp, tt.expOK)
			}
		})
	}
}

func TestEncodeFeedsDecode(t *testing.T) {
	cmds := []Command{
		{Kind: KindMove, Actor: 9, Payload: Step{Dir: world.SouthWest}},
		{Kind: KindMove, Actor: 9, Payload: Target{X: -4, Y: 12}},
		{Kind: KindInteract, Actor: 9, Payload: Step{Dir: world.East}},
		{Kind: KindAttack, Actor: 9, Payload: Victim{Entity: 1<<32 | 3}},
		{Kind: KindEndTurn, Actor: 9},
		{Kind: KindWait, Actor: 9},
	}
	for _, cmd := range cmds {
		raw, err := Encode(cmd)
		if err != nil {
			t.Fatalf("encode %s: %v", cmd.Kind, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if got.Kind != cmd.Kind || got.Actor != cmd.Actor || got.Payload != cmd.Payload {
			t.Errorf("decode(encode(%+v)) = %+v", cmd, got)
		}
	}
}
