package sim

import (
	"context"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
	"go.uber.org/zap/zaptest"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/config"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/replay"
	"github.com/BarzinL/IsoTalia/internal/world"
)

var testActors = []data.ActorTemplate{
	{
		ID: "survivor", Name: "Survivor", Team: "survivors", HP: 50,
		AttackDamage: 4, AttackRange: 1, InventoryCapacity: 10, Controlled: true,
		Tool: &data.ToolTemplate{Kind: "shovel", Power: 2, Durability: 20},
	},
	{ID: "raider", Name: "Raider", Team: "raiders", HP: 12, AttackDamage: 2, AttackRange: 1},
	{ID: "scavenger", Name: "Scavenger", HP: 8, Wanders: true},
	{ID: "ash_cultist", Name: "Ash Cultist", Team: "ash", HP: 10, AttackDamage: 2, AttackRange: 1},
	{ID: "bone_picker", Name: "Bone Picker", Team: "bone", HP: 10, AttackDamage: 2, AttackRange: 1},
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Scheduler.LoadWorkers = 0
	cfg.Scheduler.KeepRadius = 1
	cfg.Simulation.JournalFlushTicks = 10
	return cfg
}

func newTestSim(t *testing.T, cfg *config.Config) *Simulation {
	t.Helper()
	return newTestSimWith(t, cfg, Deps{})
}

func newTestSimWith(t *testing.T, cfg *config.Config, deps Deps) *Simulation {
	t.Helper()
	deps.Actors = data.NewActorTable(testActors)
	s, err := New(cfg, deps, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	if err := s.LoadAround(16, 16, 1, 5*time.Second); err != nil {
		t.Fatal(err)
	}
	return s
}

func spawn(t *testing.T, s *Simulation, tmpl string, x, y int32) ecs.EntityID {
	t.Helper()
	id, err := s.Spawn(tmpl, x, y)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func apOf(s *Simulation, id ecs.EntityID) int {
	ap, _ := s.State.AP.Get(id)
	return ap.Current
}

func move(id ecs.EntityID, d world.Direction) command.Command {
	return command.Command{Kind: command.KindMove, Actor: id, Payload: command.Step{Dir: d}}
}

// The default pool is 240 AP regenerating 60 AP/s at 20 ticks/s, so 3 AP per
// tick, and a move costs 60.
func TestRateLimitTrace(t *testing.T) {
	s := newTestSim(t, testConfig())
	hero := spawn(t, s, "survivor", 2, 2)

	var spent []int
	var rejected []event.ActionRejected
	rejectAP := -1
	event.Subscribe(s.Bus, func(ev event.EntityMoved) { spent = append(spent, apOf(s, ev.Entity)) })
	event.Subscribe(s.Bus, func(ev event.ActionRejected) {
		rejected = append(rejected, ev)
		rejectAP = apOf(s, ev.Entity)
	})

	for i := 0; i < 5; i++ {
		s.Submit(move(hero, world.East))
		s.Step()
	}

	testutil.AssertEqual(t, "moves", len(spent), 4)
	for i, exp := range []int{180, 123, 66, 9} {
		testutil.AssertEqual(t, "ap after move", spent[i], exp)
	}
	testutil.AssertEqual(t, "rejections", len(rejected), 1)
	testutil.AssertEqual(t, "reason", rejected[0].Reason, string(action.ReasonInsufficientAP))
	testutil.AssertEqual(t, "ap at rejection", rejectAP, 12)
	pos, _ := s.State.PositionOf(hero)
	testutil.AssertEqual(t, "x", pos.X, int32(6))
}

func TestExplorationMoveAndDig(t *testing.T) {
	s := newTestSim(t, testConfig())
	hero := spawn(t, s, "survivor", 12, 11)

	var kinds []event.Kind
	s.Bus.SubscribeAll(func(ev event.Event) { kinds = append(kinds, ev.Kind()) })

	// Rubble row at y=10 blocks the way north.
	s.Submit(move(hero, world.North))
	s.Step()
	testutil.AssertEqual(t, "rejected", kinds[0], event.KindActionRejected)
	testutil.AssertEqual(t, "no AP spent", apOf(s, hero), 240)

	s.Submit(command.Command{Kind: command.KindInteract, Actor: hero})
	s.Step()
	tile, _ := s.State.TileAt(12, 10)
	testutil.AssertEqual(t, "dug", tile.ID, "wasteland_dirt")
	testutil.AssertEqual(t, "ap after dig", apOf(s, hero), 240-90+3)
	inv, _ := s.State.Inventory.Get(hero)
	if len(inv.Snapshot()) == 0 {
		t.Error("dig produced no resources")
	}

	s.Submit(move(hero, world.North))
	s.Step()
	pos, _ := s.State.PositionOf(hero)
	testutil.AssertEqual(t, "y", pos.Y, int32(10))
	testutil.AssertEqual(t, "mode", s.Clock.Mode(), clock.Exploration)
}

func TestIdempotentRejection(t *testing.T) {
	s := newTestSim(t, testConfig())
	hero := spawn(t, s, "survivor", 12, 11)
	var reasons []string
	event.Subscribe(s.Bus, func(ev event.ActionRejected) { reasons = append(reasons, ev.Reason) })

	for i := 0; i < 2; i++ {
		s.Submit(move(hero, world.North))
		s.Step()
		pos, _ := s.State.PositionOf(hero)
		testutil.AssertEqual(t, "x", pos.X, int32(12))
		testutil.AssertEqual(t, "y", pos.Y, int32(11))
		testutil.AssertEqual(t, "ap", apOf(s, hero), 240)
	}
	testutil.AssertEqual(t, "rejections", len(reasons), 2)
	testutil.AssertEqual(t, "same reason", reasons[0], reasons[1])
	testutil.AssertEqual(t, "reason", reasons[0], string(action.ReasonBlocked))
}

func TestCombatStartScenario(t *testing.T) {
	s := newTestSim(t, testConfig())
	hero := spawn(t, s, "survivor", 5, 5)
	raider := spawn(t, s, "raider", 8, 5)

	var started []event.CombatStarted
	event.Subscribe(s.Bus, func(ev event.CombatStarted) { started = append(started, ev) })

	s.Step()
	testutil.AssertEqual(t, "combat started", len(started), 1)
	testutil.AssertEqual(t, "members", len(started[0].Combatants), 2)
	testutil.AssertEqual(t, "mode", s.Clock.Mode(), clock.Combat)
	testutil.AssertEqual(t, "hero in combat", s.Combat.InCombat(hero), true)
	testutil.AssertEqual(t, "raider in combat", s.Combat.InCombat(raider), true)

	// The raider plays its turn out; then the survivor holds the turn with
	// a full pool that neither regenerates nor drains while idle.
	for i := 0; i < 10; i++ {
		s.Step()
	}
	member, current := s.Combat.TurnState(hero)
	testutil.AssertEqual(t, "member", member, true)
	testutil.AssertEqual(t, "hero current", current, true)
	testutil.AssertEqual(t, "hero ap", apOf(s, hero), 240)
	for i := 0; i < 5; i++ {
		s.Step()
	}
	testutil.AssertEqual(t, "hero ap while idle", apOf(s, hero), 240)

	s.Submit(command.Command{Kind: command.KindEndTurn, Actor: hero})
	s.Step()
	_, current = s.Combat.TurnState(hero)
	if current && s.Combat.InCombat(raider) {
		t.Error("end turn did not pass the turn")
	}
}

func TestSpawnAllIsSeeded(t *testing.T) {
	entries := []data.SpawnEntry{{Actor: "scavenger", X: 16, Y: 16, Count: 5, Spread: 6}}
	positions := func() []world.Position {
		s := newTestSim(t, testConfig())
		n, err := s.SpawnAll(entries)
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, "spawned", n, 5)
		var out []world.Position
		for _, id := range s.State.Positions.IDs() {
			p, _ := s.State.PositionOf(id)
			out = append(out, p)
		}
		return out
	}
	a, b := positions(), positions()
	for i := range a {
		testutil.AssertEqual(t, "position", a[i], b[i])
	}

	s := newTestSim(t, testConfig())
	if _, err := s.SpawnAll([]data.SpawnEntry{{Actor: "ghoul", Count: 1}}); err == nil {
		t.Error("expected unknown template error")
	}
}

func TestReplayReproducesDigest(t *testing.T) {
	const ticks = 60
	setup := func(journal replay.JournalStore) (*Simulation, ecs.EntityID) {
		s := newTestSimWith(t, testConfig(), Deps{Journal: journal})
		hero := spawn(t, s, "survivor", 4, 4)
		if _, err := s.SpawnAll([]data.SpawnEntry{
			{Actor: "scavenger", X: 16, Y: 16, Count: 6, Spread: 8},
			{Actor: "raider", X: 14, Y: 4, Count: 1},
		}); err != nil {
			t.Fatal(err)
		}
		return s, hero
	}

	journal := replay.NewMemoryJournal()
	live, hero := setup(journal)
	dirs := []world.Direction{world.East, world.East, world.South, world.East, world.NorthEast}
	for i := 0; i < ticks; i++ {
		if i%3 == 0 {
			live.Submit(move(hero, dirs[(i/3)%len(dirs)]))
		}
		if i%7 == 0 {
			live.Submit(command.Command{Kind: command.KindEndTurn, Actor: hero})
		}
		live.Step()
	}
	if err := live.Recorder.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries := journal.Entries(live.Recorder.Run())
	testutil.AssertEqual(t, "journaled", len(entries), 20+9)
	if live.Digest.Events() == 0 {
		t.Fatal("live run emitted no events")
	}

	replayed, _ := setup(nil)
	replayed.Play(replay.NewScript(entries), ticks)

	testutil.AssertEqual(t, "events", replayed.Digest.Events(), live.Digest.Events())
	testutil.AssertEqual(t, "digest", replayed.Digest.Sum(), live.Digest.Sum())
}

func TestDistantHostilesDoNotStartCombat(t *testing.T) {
	s := newTestSim(t, testConfig())
	spawn(t, s, "survivor", 5, 5)
	a := spawn(t, s, "ash_cultist", 3000, 3000)
	b := spawn(t, s, "bone_picker", 3002, 3000)

	tier, _ := s.State.Tiers.Get(a)
	testutil.AssertEqual(t, "tier at spawn", tier.Tier, world.TierTemplate)

	for i := 0; i < 5; i++ {
		s.Step()
	}
	testutil.AssertEqual(t, "ash in combat", s.Combat.InCombat(a), false)
	testutil.AssertEqual(t, "bone in combat", s.Combat.InCombat(b), false)
	testutil.AssertEqual(t, "instances", len(s.Combat.Active()), 0)
	testutil.AssertEqual(t, "mode", s.Clock.Mode(), clock.Exploration)
}

func TestWandererBeyondResidentChunksKeepsMoving(t *testing.T) {
	s := newTestSim(t, testConfig())
	spawn(t, s, "survivor", 16, 16)
	far := spawn(t, s, "scavenger", 136, 16)

	for i := 0; i < 2000; i++ {
		s.Step()
	}
	tier, _ := s.State.Tiers.Get(far)
	testutil.AssertEqual(t, "tier", tier.Tier, world.TierAbstract)
	testutil.AssertEqual(t, "chunk resident", s.State.IsLoaded(136, 16), false)
	if tier.Projection.DX == 0 && tier.Projection.DY == 0 {
		t.Error("abstract wanderer outside resident chunks never moved")
	}
}
