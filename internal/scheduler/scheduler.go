package scheduler

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// Chunks is the chunk manager as seen by the scheduler.
type Chunks interface {
	// Request asks for coord to be loaded without blocking.
	Request(world.ChunkCoord)
	// Retain unloads every resident chunk not in keep.
	Retain(keep map[world.ChunkCoord]struct{})
}

// Combat is the combat manager as seen by the scheduler.
type Combat interface {
	InCombat(ecs.EntityID) bool
	TurnState(ecs.EntityID) (member, current bool)
}

// Actor submits AI actions through the validated pipeline.
type Actor interface {
	Process(action.Action) (action.Outcome, error)
}

// RegenScaler scales projected regen for coarse tiers.
type RegenScaler interface {
	RegenScale(scripting.RegenContext) int
}

type Config struct {
	Bands            Bands
	AbstractInterval clock.Ticks
	TemplateInterval clock.Ticks
	KeepRadius       int32 // chunks kept resident around each point of interest
	CombatReach      int32 // tiles an AI combatant searches for a hostile
}

// Scheduler is the sole writer of Tiered components. Tick goroutine only.
type Scheduler struct {
	cfg    Config
	state  *world.State
	clock  *clock.Clock
	bus    *event.Bus
	actor  Actor
	costs  action.Costs
	combat Combat
	chunks Chunks
	scaler RegenScaler
	rng    *rand.Rand
	log    *zap.Logger

	pois []world.Position

	// explored counts ticks stepped in Exploration mode; an entity is owed
	// regen for the difference from its Tiered.Explored mark.
	explored clock.Ticks
	lastStep clock.Ticks
}

func New(cfg Config, state *world.State, clk *clock.Clock, bus *event.Bus, actor Actor, costs action.Costs, combat Combat, chunks Chunks, scaler RegenScaler, seed int64, log *zap.Logger) (*Scheduler, error) {
	if err := cfg.Bands.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	if cfg.AbstractInterval < 1 {
		cfg.AbstractInterval = 1
	}
	if cfg.TemplateInterval < cfg.AbstractInterval {
		cfg.TemplateInterval = cfg.AbstractInterval
	}
	if cfg.CombatReach < 1 {
		cfg.CombatReach = cfg.Bands[world.TierFull].Exit
	}
	return &Scheduler{
		cfg:    cfg,
		state:  state,
		clock:  clk,
		bus:    bus,
		actor:  actor,
		costs:  costs,
		combat: combat,
		chunks: chunks,
		scaler: scaler,
		rng:    rand.New(rand.NewPCG(uint64(seed), 0x71e5)),
		log:    log,
	}, nil
}

// interval returns the cadence of tier t.
func (s *Scheduler) interval(t world.Tier) clock.Ticks {
	switch t {
	case world.TierAbstract:
		return s.cfg.AbstractInterval
	case world.TierTemplate:
		return s.cfg.TemplateInterval
	}
	return 1
}

// ticksPerMove is how long regen takes to fund one move; coarse tiers step
// at this pace so their movement matches what the AP economy allows.
func (s *Scheduler) ticksPerMove(ap *world.ActionPoints) clock.Ticks {
	if ap == nil || ap.RegenRate <= 0 || s.costs.Move <= 0 {
		return math.MaxUint32
	}
	n := clock.Ticks(s.costs.Move*s.clock.TicksPerSecond()) / clock.Ticks(ap.RegenRate)
	if n < 1 {
		n = 1
	}
	return n
}

// Step runs one scheduling pass: collect points of interest, keep their
// chunks resident, re-tier every entity and run whatever tier updates are due.
func (s *Scheduler) Step(now clock.Ticks) {
	if now > s.lastStep {
		if s.clock.Mode() == clock.Exploration {
			s.explored += now - s.lastStep
		}
		s.lastStep = now
	}
	s.collectPOIs()
	s.retainChunks()

	s.state.Tiers.Each(func(id ecs.EntityID, t *world.Tiered) {
		if !s.state.Active(id) {
			return
		}
		pos, ok := s.state.PositionOf(id)
		if !ok {
			return
		}
		s.retier(id, t, pos, now)
		if now < t.NextDue {
			return
		}
		if !s.update(id, t, pos, now) {
			return
		}
		t.LastUpdate, t.Explored = now, s.explored
		t.NextDue = now + s.interval(t.Tier)
	})
}

// Admit gives a freshly spawned entity its first tier from the current
// points of interest. Its regen is owed from now on.
func (s *Scheduler) Admit(id ecs.EntityID) {
	t, ok := s.state.Tiers.Get(id)
	if !ok {
		return
	}
	pos, ok := s.state.PositionOf(id)
	if !ok {
		return
	}
	now := s.clock.Now()
	t.LastUpdate, t.Explored = now, s.explored
	t.Projection = world.Projection{}

	s.collectPOIs()
	next := s.cfg.Bands.Next(t.Tier, s.distance(pos))
	if next != t.Tier {
		s.setTier(id, t, next, now)
	}
}

func (s *Scheduler) collectPOIs() {
	s.pois = s.pois[:0]
	s.state.Positions.Each(func(id ecs.EntityID, p *world.Position) {
		if !s.state.Active(id) {
			return
		}
		if s.state.Controlled.Has(id) || s.combat.InCombat(id) {
			s.pois = append(s.pois, *p)
		}
	})
}

// distance returns the Chebyshev distance to the nearest point of interest.
func (s *Scheduler) distance(pos world.Position) int32 {
	best := int32(math.MaxInt32)
	for _, p := range s.pois {
		if d := world.Chebyshev(pos.X, pos.Y, p.X, p.Y); d < best {
			best = d
		}
	}
	return best
}

func (s *Scheduler) retainChunks() {
	if s.chunks == nil {
		return
	}
	keep := make(map[world.ChunkCoord]struct{})
	r := s.cfg.KeepRadius
	for _, p := range s.pois {
		c := s.state.ChunkOf(p.X, p.Y)
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				coord := world.ChunkCoord{X: c.X + dx, Y: c.Y + dy}
				keep[coord] = struct{}{}
				if _, ok := s.state.Chunk(coord); !ok {
					s.chunks.Request(coord)
				}
			}
		}
	}
	s.chunks.Retain(keep)
}

// retier applies the band decision. Combat members are pinned to Full.
// Promotion into Full or Simplified waits until catch-up succeeds.
func (s *Scheduler) retier(id ecs.EntityID, t *world.Tiered, pos world.Position, now clock.Ticks) {
	next := s.cfg.Bands.Next(t.Tier, s.distance(pos))
	if s.combat.InCombat(id) {
		next = world.TierFull
	}
	if next == t.Tier {
		return
	}
	if next <= world.TierSimplified && t.Tier >= world.TierAbstract {
		if !s.catchUp(id, t, now) {
			return
		}
	}
	s.setTier(id, t, next, now)
}

func (s *Scheduler) setTier(id ecs.EntityID, t *world.Tiered, next world.Tier, now clock.Ticks) {
	from := t.Tier
	t.Tier = next
	t.NextDue = now
	s.log.Debug("tier changed",
		zap.Stringer("entity", id),
		zap.Stringer("from", from),
		zap.Stringer("to", next),
	)
	s.bus.Publish(event.TierChanged{Entity: id, From: from.String(), To: next.String()})
}

// pending returns exploration ticks since t's last update. Mode is sampled
// on every step, so combat inside a coarse interval is never credited.
func (s *Scheduler) pending(t *world.Tiered) clock.Ticks {
	if s.explored <= t.Explored {
		return 0
	}
	return s.explored - t.Explored
}
