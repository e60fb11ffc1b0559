// Package sim assembles the simulation: state, clock, bus, action pipeline,
// combat manager, tier scheduler, chunk manager and the tick systems that
// drive them.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/chunk"
	"github.com/BarzinL/IsoTalia/internal/combat"
	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/config"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	coresys "github.com/BarzinL/IsoTalia/internal/core/system"
	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/net"
	"github.com/BarzinL/IsoTalia/internal/replay"
	"github.com/BarzinL/IsoTalia/internal/scheduler"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/system"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// Deps are the collaborators a Simulation is built from. Nil fields get
// in-memory defaults.
type Deps struct {
	Terrain    *data.TerrainTable
	Actors     *data.ActorTable
	Scripts    *scripting.Engine
	ChunkStore chunk.Store
	Generator  chunk.Generator
	Journal    replay.JournalStore
	Run        uuid.UUID
	Sessions   net.Source     // nil runs without a client hub
	Queue      *command.Queue // shared with the network intake when set
}

// Simulation is one authoritative world. Everything except Submit belongs to
// the goroutine that calls Step.
type Simulation struct {
	Config    *config.Config
	Clock     *clock.Clock
	Bus       *event.Bus
	State     *world.State
	Queue     *command.Queue
	Pipeline  *action.Pipeline
	Combat    *combat.Manager
	Scheduler *scheduler.Scheduler
	Chunks    *chunk.Manager
	Recorder  *replay.Recorder // nil when journaling is disabled
	Digest    *replay.Digest
	Hub       *net.Hub // nil without sessions

	actors      *data.ActorTable
	scripts     *scripting.Engine
	ownScripts  bool
	runner      *coresys.Runner
	persistence *system.PersistenceSystem
	rng         *rand.Rand
	log         *zap.Logger
}

func New(cfg *config.Config, deps Deps, log *zap.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim config: %w", err)
	}
	if deps.Terrain == nil {
		deps.Terrain = data.DefaultTerrain()
	}
	if deps.Actors == nil {
		deps.Actors = data.NewActorTable(nil)
	}
	seed := cfg.Simulation.Seed

	s := &Simulation{
		Config:  cfg,
		Clock:   clock.New(cfg.Simulation.TickRate),
		Bus:     event.NewBus(),
		State:   world.NewState(deps.Terrain, cfg.Scheduler.ChunkSize),
		Queue:   deps.Queue,
		actors:  deps.Actors,
		scripts: deps.Scripts,
		runner:  coresys.NewRunner(),
		rng:     rand.New(rand.NewPCG(uint64(seed), 0x5ea7)),
		log:     log,
	}
	if s.Queue == nil {
		s.Queue = command.NewQueue()
	}
	if s.scripts == nil {
		eng, err := scripting.NewEngineFromSource(log)
		if err != nil {
			return nil, err
		}
		s.scripts, s.ownScripts = eng, true
	}

	costs := action.Costs{
		Move:     cfg.Costs.Move,
		Interact: cfg.Costs.Interact,
		Attack:   cfg.Costs.Attack,
		Wait:     cfg.Costs.Wait,
	}
	s.Pipeline = action.NewPipeline(s.State, s.Clock, s.Bus, costs, s.scripts, seed, log.Named("action"))
	s.Combat = combat.NewManager(s.State, s.Clock, s.Bus, costs, combat.Config{
		DetectRadius:  cfg.Combat.DetectRadius,
		FleeRadius:    cfg.Combat.FleeRadius,
		InitiativeDie: cfg.Combat.InitiativeDie,
	}, s.scripts, seed, log.Named("combat"))
	s.Pipeline.SetTurnObserver(s.Combat)

	store := deps.ChunkStore
	if store == nil {
		store = chunk.NewMemoryStore()
	}
	gen := deps.Generator
	if gen == nil {
		gen = chunk.NewWastelandGenerator(deps.Terrain, seed)
	}
	s.Chunks = chunk.NewManager(s.State, store, gen, cfg.Scheduler.LoadWorkers, log.Named("chunk"))

	sc := cfg.Scheduler
	sched, err := scheduler.New(scheduler.Config{
		Bands: scheduler.Bands{
			{Enter: sc.FullEnter, Exit: sc.FullExit},
			{Enter: sc.SimplifiedEnter, Exit: sc.SimplifiedExit},
			{Enter: sc.AbstractEnter, Exit: sc.AbstractExit},
		},
		AbstractInterval: clock.Ticks(sc.AbstractInterval),
		TemplateInterval: clock.Ticks(sc.TemplateInterval),
		KeepRadius:       sc.KeepRadius,
	}, s.State, s.Clock, s.Bus, s.Pipeline, costs, s.Combat, s.Chunks, s.scripts, seed, log.Named("scheduler"))
	if err != nil {
		s.Chunks.Stop(context.Background())
		return nil, err
	}
	s.Scheduler = sched

	var (
		journal system.Journal
		flusher system.JournalFlusher
	)
	if cfg.Simulation.JournalEnabled {
		js := deps.Journal
		if js == nil {
			js = replay.NewMemoryJournal()
		}
		run := deps.Run
		if run == uuid.Nil {
			run = uuid.New()
		}
		s.Recorder = replay.NewRecorder(run, js, log.Named("journal"))
		journal, flusher = s.Recorder, s.Recorder
	}
	s.Digest = replay.NewDigest(s.Bus, s.Clock, log)

	if deps.Sessions != nil {
		s.Hub = net.NewHub(s.State, deps.Sessions, s.Bus, s.Clock, log.Named("hub"))
		s.runner.Register(system.NewSessionSystem(s.Hub))
	}
	s.runner.Register(system.NewInputSystem(s.Queue, s.State, s.Pipeline, journal, cfg.Simulation.MaxCommandsPerTick, log.Named("input")))
	s.runner.Register(system.NewChunkSystem(s.Chunks))
	s.runner.Register(system.NewCombatSystem(s.Combat))
	s.runner.Register(system.NewSchedulerSystem(s.Scheduler))
	if s.Hub != nil {
		s.runner.Register(system.NewOutputSystem(s.Hub))
	}
	s.persistence = system.NewPersistenceSystem(flusher, s.Chunks, cfg.Simulation.JournalFlushTicks, log.Named("persist"))
	s.runner.Register(s.persistence)
	s.runner.Register(system.NewCleanupSystem(s.State, log))

	log.Info("simulation ready",
		zap.Int64("seed", seed),
		zap.Int("tps", s.Clock.TicksPerSecond()),
		zap.Int("terrain_types", deps.Terrain.Count()),
		zap.Int("actor_templates", deps.Actors.Count()),
	)
	return s, nil
}

// Submit enqueues a command for the next step. Safe from any goroutine.
func (s *Simulation) Submit(cmd command.Command) uint64 {
	return s.Queue.Push(cmd)
}

// Step advances time by one tick and runs every system once.
func (s *Simulation) Step() clock.Ticks {
	now := s.Clock.Advance(1)
	s.runner.Tick(now)
	return now
}

// Spawn places one actor from a template.
func (s *Simulation) Spawn(templateID string, x, y int32) (ecs.EntityID, error) {
	tmpl := s.actors.Get(templateID)
	if tmpl == nil {
		return 0, fmt.Errorf("unknown actor template %q", templateID)
	}
	id := s.State.Spawn(tmpl, x, y, world.APDefaults{
		Maximum:   s.Config.ActionPoints.Maximum,
		RegenRate: s.Config.ActionPoints.RegenRate,
	})
	s.Scheduler.Admit(id)
	return id, nil
}

// SpawnAll places every spawn entry, scattering each within its spread.
// Placement is seeded, so the same config always yields the same world.
func (s *Simulation) SpawnAll(entries []data.SpawnEntry) (int, error) {
	n := 0
	for _, e := range entries {
		count := max(e.Count, 1)
		for i := 0; i < count; i++ {
			x, y := e.X, e.Y
			if e.Spread > 0 {
				x += s.rng.Int32N(2*e.Spread+1) - e.Spread
				y += s.rng.Int32N(2*e.Spread+1) - e.Spread
			}
			if _, err := s.Spawn(e.Actor, x, y); err != nil {
				return n, err
			}
			n++
		}
	}
	s.log.Info("actors spawned", zap.Int("count", n))
	return n, nil
}

// LoadAround makes every chunk within radius chunks of tile (x,y) resident,
// polling until done or timeout.
func (s *Simulation) LoadAround(x, y, radius int32, timeout time.Duration) error {
	center := s.State.ChunkOf(x, y)
	var want []world.ChunkCoord
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			want = append(want, world.ChunkCoord{X: center.X + dx, Y: center.Y + dy})
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		for _, c := range want {
			s.Chunks.Request(c)
		}
		s.Chunks.Poll()
		missing := 0
		for _, c := range want {
			if !s.Chunks.IsLoaded(c) {
				missing++
			}
		}
		if missing == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d chunks around %d,%d still loading after %s", missing, x, y, timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

// Play replays a journal script: before each step, the commands recorded for
// that tick are submitted in their original order.
func (s *Simulation) Play(script *replay.Script, through clock.Ticks) {
	for s.Clock.Now() < through {
		for _, cmd := range script.At(s.Clock.Now() + 1) {
			s.Submit(cmd)
		}
		s.Step()
	}
}

// Close persists pending work and stops background workers.
func (s *Simulation) Close(ctx context.Context) error {
	s.persistence.FlushAll()
	if s.Hub != nil {
		s.Hub.Close()
	}
	err := s.Chunks.Stop(ctx)
	s.Digest.Close()
	if s.ownScripts {
		s.scripts.Close()
	}
	return err
}
