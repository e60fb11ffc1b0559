package combat

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/world"
)

var testCosts = action.Costs{Move: 60, Interact: 90, Attack: 120, Wait: 30}

// hpInitiative makes initiative = 1 + HP when the die has one face.
type hpInitiative struct{}

func (hpInitiative) InitiativeBonus(ctx scripting.InitiativeContext) int { return int(ctx.HP) }

type fixedAttack struct{ damage int32 }

func (f fixedAttack) CalcAttack(ctx scripting.AttackContext) scripting.AttackResult {
	return scripting.AttackResult{IsHit: true, Damage: f.damage}
}

type harness struct {
	t      *testing.T
	state  *world.State
	clock  *clock.Clock
	bus    *event.Bus
	mgr    *Manager
	pipe   *action.Pipeline
	events []event.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := &harness{
		t:     t,
		state: world.NewState(data.DefaultTerrain(), 64),
		clock: clock.New(50 * time.Millisecond),
		bus:   event.NewBus(),
	}
	h.state.InstallChunk(world.NewChunk(world.ChunkCoord{}, 64, h.state.Terrain.Fill()))
	h.mgr = NewManager(h.state, h.clock, h.bus, testCosts,
		Config{DetectRadius: 6, FleeRadius: 20, InitiativeDie: 1}, hpInitiative{}, 1, log)
	h.pipe = action.NewPipeline(h.state, h.clock, h.bus, testCosts, fixedAttack{damage: 5}, 1, log)
	h.pipe.SetTurnObserver(h.mgr)
	h.bus.SubscribeAll(func(ev event.Event) { h.events = append(h.events, ev) })
	return h
}

func (h *harness) spawn(team string, hp int32, x, y int32) ecs.EntityID {
	tmpl := &data.ActorTemplate{ID: team, Team: team, HP: hp, AttackDamage: 5, AttackRange: 1}
	return h.state.Spawn(tmpl, x, y, world.APDefaults{Maximum: 240, RegenRate: 60})
}

func (h *harness) setTier(id ecs.EntityID, tier world.Tier) {
	t, _ := h.state.Tiers.Get(id)
	t.Tier = tier
}

func (h *harness) kinds() []event.Kind {
	out := make([]event.Kind, len(h.events))
	for i, ev := range h.events {
		out[i] = ev.Kind()
	}
	return out
}

func (h *harness) invariants(in *Instance) {
	h.t.Helper()
	if err := in.validate(); err != nil {
		h.t.Fatalf("instance invariant: %v", err)
	}
	for _, c := range in.Combatants {
		if id := h.mgr.membership[c.Entity]; id != in.ID {
			h.t.Fatalf("membership[%v] = %d, want %d", c.Entity, id, in.ID)
		}
	}
}

func members(in *Instance) []ecs.EntityID { return in.Members() }

func equalIDs(a, b []ecs.EntityID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStartOrdersByInitiativeThenID(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	c := h.spawn("survivors", 30, 5, 6)

	ap, _ := h.state.AP.Get(b)
	ap.Current = 7

	in, err := h.mgr.Start(a, b, c)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if want := []ecs.EntityID{b, c, a}; !equalIDs(members(in), want) {
		t.Errorf("order = %v, want %v", members(in), want)
	}
	if h.clock.Mode() != clock.Combat {
		t.Errorf("mode = %v, want combat", h.clock.Mode())
	}
	if ap.Current != 240 {
		t.Errorf("first combatant AP = %d, want reset to 240", ap.Current)
	}
	tc, ok := h.events[len(h.events)-1].(event.TurnChanged)
	if !ok || tc.Entity != b || tc.TurnNumber != 1 {
		t.Errorf("last event = %#v, want TURN_CHANGED for %v turn 1", h.events[len(h.events)-1], b)
	}
	if _, err := h.mgr.Start(a, h.spawn("raiders", 1, 9, 9)); !errors.Is(err, ErrAlreadyInCombat) {
		t.Errorf("second Start err = %v, want ErrAlreadyInCombat", err)
	}
	h.invariants(in)
}

func TestStartRejectsSingleTeam(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("raiders", 10, 1, 1)
	b := h.spawn("raiders", 10, 2, 1)
	if _, err := h.mgr.Start(a, b); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("err = %v, want ErrNotEligible", err)
	}
	if h.mgr.InCombat(a) || h.clock.Mode() != clock.Exploration {
		t.Error("failed Start left state behind")
	}
}

func TestJoinKeepsActiveCombatant(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	in, err := h.mgr.Start(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.EndTurn(b); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if in.CurrentEntity() != a || in.Current != 1 {
		t.Fatalf("current = %v@%d, want %v@1", in.CurrentEntity(), in.Current, a)
	}

	fast := h.spawn("raiders", 50, 7, 5)
	apFast, _ := h.state.AP.Get(fast)
	apFast.Current = 3
	if err := h.mgr.Join(in.ID, fast); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if want := []ecs.EntityID{fast, b, a}; !equalIDs(members(in), want) {
		t.Errorf("order = %v, want %v", members(in), want)
	}
	if in.CurrentEntity() != a || in.Current != 2 {
		t.Errorf("current = %v@%d, want %v@2", in.CurrentEntity(), in.Current, a)
	}
	if apFast.Current != 3 {
		t.Errorf("joiner AP reset early: %d", apFast.Current)
	}

	slow := h.spawn("raiders", 1, 8, 5)
	if err := h.mgr.Join(in.ID, slow); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if in.CurrentEntity() != a || in.Current != 2 {
		t.Errorf("current after slow join = %v@%d, want %v@2", in.CurrentEntity(), in.Current, a)
	}

	// Next turn goes to slow (index 3), then wraps to fast with a new round.
	if err := h.mgr.EndTurn(a); err != nil {
		t.Fatal(err)
	}
	if in.CurrentEntity() != slow {
		t.Errorf("current = %v, want %v", in.CurrentEntity(), slow)
	}
	if err := h.mgr.EndTurn(slow); err != nil {
		t.Fatal(err)
	}
	if in.CurrentEntity() != fast || in.TurnNumber != 2 {
		t.Errorf("current = %v turn %d, want %v turn 2", in.CurrentEntity(), in.TurnNumber, fast)
	}
	if apFast.Current != 240 {
		t.Errorf("joiner AP = %d at own turn, want 240", apFast.Current)
	}
	h.invariants(in)

	if err := h.mgr.Join(99, h.spawn("raiders", 1, 1, 1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Join unknown err = %v", err)
	}
}

func TestRemoveCurrentStartsNextTurnAndEnds(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	c := h.spawn("raiders", 20, 7, 5)
	in, err := h.mgr.Start(a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.Remove(b, ReasonLeft); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if in.CurrentEntity() != c {
		t.Errorf("current = %v, want %v", in.CurrentEntity(), c)
	}
	if h.mgr.InCombat(b) {
		t.Error("removed entity still indexed")
	}

	h.events = nil
	if err := h.mgr.Remove(a, ReasonLeft); err != nil {
		t.Fatal(err)
	}
	if in.Active() || in.Outcome != "raiders" {
		t.Errorf("state = %v outcome %q, want ended by raiders", in.State, in.Outcome)
	}
	if h.clock.Mode() != clock.Exploration {
		t.Error("clock still in combat mode")
	}
	if h.mgr.InCombat(c) {
		t.Error("membership not cleared on end")
	}
	want := []event.Kind{event.KindCombatantRemoved, event.KindCombatEnded}
	if got := h.kinds(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestFledMemberRemovedAtTurnEnd(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	in, err := h.mgr.Start(a, b)
	if err != nil {
		t.Fatal(err)
	}
	h.state.SetPosition(a, 40, 40)
	if err := h.mgr.EndTurn(b); err != nil {
		t.Fatal(err)
	}
	if in.Active() {
		t.Fatalf("combat still active after flight")
	}
	if in.Outcome != "raiders" && in.Outcome != "survivors" {
		t.Errorf("outcome = %q", in.Outcome)
	}
}

func TestBleedingDefeatsAtTurnEnd(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	in, err := h.mgr.Start(a, b)
	if err != nil {
		t.Fatal(err)
	}
	st, _ := h.state.Status.Get(b)
	st.Apply(world.Effect{Kind: "bleeding", Magnitude: -100, Turns: 2})
	if err := h.mgr.EndTurn(b); err != nil {
		t.Fatal(err)
	}
	if in.Active() || in.Outcome != "survivors" {
		t.Errorf("outcome = %q active=%v, want survivors", in.Outcome, in.Active())
	}
	if !h.state.ECS.PendingDestruction(b) {
		t.Error("defeated entity not marked for destruction")
	}
}

func TestAttackStartsCombat(t *testing.T) {
	h := newHarness(t)
	player := h.spawn("survivors", 10, 5, 5)
	raider := h.spawn("raiders", 30, 6, 5)

	out, err := h.pipe.Process(action.Attack{Entity: player, Target: raider})
	if err != nil || !out.Success {
		t.Fatalf("Process = %+v, %v", out, err)
	}
	in, ok := h.mgr.InstanceOf(player)
	if !ok {
		t.Fatal("attack did not start combat")
	}
	if h.clock.Mode() != clock.Combat {
		t.Error("mode not combat")
	}
	if in.CurrentEntity() != raider {
		t.Errorf("first turn = %v, want higher initiative %v", in.CurrentEntity(), raider)
	}

	// The player may no longer act out of turn.
	out, _ = h.pipe.Process(action.Wait{Entity: player})
	if out.Success || out.Reason != action.ReasonNotYourTurn {
		t.Errorf("out-of-turn Wait = %+v", out)
	}
}

func TestAPExhaustionEndsTurn(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 100, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	in, err := h.mgr.Start(a, b)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if out, err := h.pipe.Process(action.Attack{Entity: a, Target: b}); err != nil || !out.Success {
			t.Fatalf("attack %d = %+v, %v", i, out, err)
		}
	}
	if in.CurrentEntity() != b {
		t.Errorf("current = %v after exhaustion, want %v", in.CurrentEntity(), b)
	}
	if out, _ := h.pipe.Process(action.EndTurn{Entity: a}); out.Reason != action.ReasonNotYourTurn {
		t.Errorf("EndTurn out of turn = %+v", out)
	}
	if out, _ := h.pipe.Process(action.EndTurn{Entity: b}); !out.Success {
		t.Errorf("EndTurn = %+v", out)
	}
	if in.CurrentEntity() != a || in.TurnNumber != 2 {
		t.Errorf("current = %v turn %d, want %v turn 2", in.CurrentEntity(), in.TurnNumber, a)
	}
}

func TestCombatTerminates(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 12, 5, 5)
	b := h.spawn("raiders", 9, 6, 5)
	if _, err := h.mgr.Start(a, b); err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 100 && h.mgr.InCombat(a) && h.mgr.InCombat(b); step++ {
		in, _ := h.mgr.InstanceOf(a)
		cur := in.CurrentEntity()
		other := a
		if cur == a {
			other = b
		}
		if _, err := h.pipe.Process(action.Attack{Entity: cur, Target: other}); err != nil {
			t.Fatal(err)
		}
	}
	if len(h.mgr.Active()) != 0 {
		t.Fatal("combat did not terminate")
	}
	var ended *event.CombatEnded
	for _, ev := range h.events {
		if e, ok := ev.(event.CombatEnded); ok {
			ended = &e
		}
	}
	if ended == nil || ended.Outcome != "survivors" {
		t.Errorf("CombatEnded = %+v, want survivors", ended)
	}
}

func TestRandomJoinRemoveKeepsPermutation(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewPCG(7, 7))
	var pool []ecs.EntityID
	for i := 0; i < 12; i++ {
		team := "raiders"
		if i%2 == 0 {
			team = "survivors"
		}
		pool = append(pool, h.spawn(team, int32(rng.IntN(20)+1), int32(10+i), 10))
	}
	in, err := h.mgr.Start(pool[0], pool[1])
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 300 && in.Active(); step++ {
		e := pool[rng.IntN(len(pool))]
		switch rng.IntN(3) {
		case 0:
			_ = h.mgr.Join(in.ID, e)
		case 1:
			if len(in.Combatants) > 2 {
				_ = h.mgr.Remove(e, ReasonLeft)
			}
		case 2:
			_ = h.mgr.EndTurn(in.CurrentEntity())
		}
		if !in.Active() {
			break
		}
		h.invariants(in)
		if len(in.Combatants) != len(h.mgr.membership) {
			t.Fatalf("step %d: %d combatants, %d indexed", step, len(in.Combatants), len(h.mgr.membership))
		}
		for i := 1; i < len(in.Combatants); i++ {
			if in.Combatants[i].before(in.Combatants[i-1]) {
				t.Fatalf("step %d: order broken at %d", step, i)
			}
		}
	}
}

func TestDefectAbortsInstance(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	in, err := h.mgr.Start(a, b)
	if err != nil {
		t.Fatal(err)
	}
	in.Current = 7
	h.mgr.Tick()
	if in.Active() || in.Outcome != OutcomeAborted {
		t.Errorf("outcome = %q active=%v, want aborted", in.Outcome, in.Active())
	}
	if h.mgr.InCombat(a) || h.clock.Mode() != clock.Exploration {
		t.Error("aborted instance not torn down")
	}
}

func TestDetectEngagesFullTierHostiles(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 10, 5)
	far := h.spawn("raiders", 30, 30, 30)
	h.setTier(a, world.TierFull)
	h.setTier(b, world.TierFull)
	h.mgr.Detect()
	in, ok := h.mgr.InstanceOf(a)
	if !ok {
		t.Fatal("no combat after detection")
	}
	if !equalIDs(members(in), []ecs.EntityID{b, a}) {
		t.Errorf("members = %v", members(in))
	}
	if h.mgr.InCombat(far) {
		t.Error("distant raider engaged")
	}
}

func TestDetectIgnoresUntieredEntities(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("ash", 10, 3000, 3000)
	b := h.spawn("bone", 10, 3002, 3000)
	h.mgr.Detect()
	if h.mgr.InCombat(a) || h.mgr.InCombat(b) {
		t.Error("template-tier hostiles engaged")
	}
	if h.clock.Mode() != clock.Exploration {
		t.Errorf("mode = %v, want exploration", h.clock.Mode())
	}
}

func TestQuarantinedMemberRemoved(t *testing.T) {
	h := newHarness(t)
	a := h.spawn("survivors", 10, 5, 5)
	b := h.spawn("raiders", 30, 6, 5)
	c := h.spawn("survivors", 5, 4, 5)
	in, err := h.mgr.Start(a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	h.state.Quarantine(c, "test", 0)
	h.mgr.Quarantined(c)
	if h.mgr.InCombat(c) {
		t.Error("quarantined entity still in combat")
	}
	h.invariants(in)
}
