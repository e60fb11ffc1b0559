package combat

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/action"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/world"
)

var (
	ErrNotFound        = errors.New("combat instance not found")
	ErrAlreadyInCombat = errors.New("entity already in combat")
	ErrNotEligible     = errors.New("entity cannot enter combat")
	ErrNotCurrent      = errors.New("entity is not the active combatant")
)

// Removal reasons carried by COMBATANT_REMOVED.
const (
	ReasonDefeated    = "defeated"
	ReasonFled        = "fled"
	ReasonQuarantined = "quarantined"
	ReasonLeft        = "left"
)

// Outcomes besides a winning team name.
const (
	OutcomeDraw    = "draw"
	OutcomeAborted = "aborted"
)

// Initiative supplies the scripted initiative bonus. *scripting.Engine satisfies it.
type Initiative interface {
	InitiativeBonus(scripting.InitiativeContext) int
}

type Config struct {
	DetectRadius  int32
	FleeRadius    int32
	InitiativeDie int
}

// Manager owns every combat instance and the entity→instance membership
// index. It is the only writer of membership. Tick goroutine only.
type Manager struct {
	state      *world.State
	clock      *clock.Clock
	bus        *event.Bus
	costs      action.Costs
	cfg        Config
	initiative Initiative
	rng        *rand.Rand
	log        *zap.Logger

	instances  map[uint64]*Instance
	membership map[ecs.EntityID]uint64
	nextID     uint64
}

func NewManager(state *world.State, clk *clock.Clock, bus *event.Bus, costs action.Costs, cfg Config, initiative Initiative, seed int64, log *zap.Logger) *Manager {
	if cfg.InitiativeDie < 1 {
		cfg.InitiativeDie = 20
	}
	return &Manager{
		state:      state,
		clock:      clk,
		bus:        bus,
		costs:      costs,
		cfg:        cfg,
		initiative: initiative,
		rng:        rand.New(rand.NewPCG(uint64(seed), 0xc0ba7)),
		log:        log,
		instances:  make(map[uint64]*Instance),
		membership: make(map[ecs.EntityID]uint64),
	}
}

// Instance returns an active instance by ID.
func (m *Manager) Instance(id uint64) (*Instance, bool) {
	in, ok := m.instances[id]
	return in, ok
}

// InstanceOf returns the instance e belongs to.
func (m *Manager) InstanceOf(e ecs.EntityID) (*Instance, bool) {
	id, ok := m.membership[e]
	if !ok {
		return nil, false
	}
	return m.Instance(id)
}

// Active returns active instances in ascending ID order.
func (m *Manager) Active() []*Instance {
	out := make([]*Instance, 0, len(m.instances))
	for _, in := range m.instances {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InCombat reports whether e is a member of any instance.
func (m *Manager) InCombat(e ecs.EntityID) bool {
	_, ok := m.membership[e]
	return ok
}

// TurnState implements action.TurnObserver.
func (m *Manager) TurnState(e ecs.EntityID) (member, current bool) {
	in, ok := m.InstanceOf(e)
	if !ok {
		return false, false
	}
	return true, in.State == StateTurnActive && in.CurrentEntity() == e
}

func (m *Manager) eligible(e ecs.EntityID) bool {
	if !m.state.Active(e) {
		return false
	}
	h, ok := m.state.Health.Get(e)
	return ok && h.Alive() && m.state.Team(e) != ""
}

func (m *Manager) roll(e ecs.EntityID) Combatant {
	c := Combatant{Entity: e, Team: m.state.Team(e)}
	ctx := scripting.InitiativeContext{Team: c.Team}
	if h, ok := m.state.Health.Get(e); ok {
		ctx.HP, ctx.MaxHP = h.Current, h.Maximum
	}
	if ap, ok := m.state.AP.Get(e); ok {
		ctx.APMaximum = ap.Maximum
	}
	c.Initiative = m.rng.IntN(m.cfg.InitiativeDie) + 1
	if m.initiative != nil {
		c.Initiative += m.initiative.InitiativeBonus(ctx)
	}
	return c
}

// Start forms a new instance from members, rolls initiative once, switches the
// clock to combat mode and begins the first turn.
func (m *Manager) Start(members ...ecs.EntityID) (*Instance, error) {
	seen := make(map[ecs.EntityID]struct{}, len(members))
	var list []Combatant
	for _, e := range members {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if m.InCombat(e) {
			return nil, fmt.Errorf("start: %w: %v", ErrAlreadyInCombat, e)
		}
		if !m.eligible(e) {
			return nil, fmt.Errorf("start: %w: %v", ErrNotEligible, e)
		}
		list = append(list, Combatant{Entity: e})
	}
	if len(list) < 2 {
		return nil, fmt.Errorf("start: %w: need two combatants", ErrNotEligible)
	}
	// Roll in ascending ID order so the RNG draw sequence is reproducible.
	sort.Slice(list, func(i, j int) bool { return list[i].Entity < list[j].Entity })
	for i := range list {
		list[i] = m.roll(list[i].Entity)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].before(list[j]) })

	m.nextID++
	in := &Instance{
		ID:         m.nextID,
		Combatants: list,
		TurnNumber: 1,
		State:      StateForming,
	}
	if len(in.teams()) < 2 {
		m.nextID--
		return nil, fmt.Errorf("start: %w: combatants share a team", ErrNotEligible)
	}
	m.instances[in.ID] = in
	for _, c := range list {
		m.membership[c.Entity] = in.ID
	}
	m.clock.SetMode(clock.Combat)

	m.log.Info("combat started",
		zap.Uint64("instance", in.ID),
		zap.Int("combatants", len(list)),
		zap.Uint64("tick", uint64(m.clock.Now())),
	)
	m.bus.Publish(event.CombatStarted{InstanceID: in.ID, Combatants: in.Members()})
	m.beginTurn(in)
	return in, nil
}

// Join inserts e into a running instance at the place its initiative puts it.
// The active combatant is unchanged; e's AP resets when its turn comes.
func (m *Manager) Join(instanceID uint64, e ecs.EntityID) error {
	in, ok := m.instances[instanceID]
	if !ok {
		return fmt.Errorf("join %d: %w", instanceID, ErrNotFound)
	}
	if m.InCombat(e) {
		return fmt.Errorf("join %d: %w: %v", instanceID, ErrAlreadyInCombat, e)
	}
	if !m.eligible(e) {
		return fmt.Errorf("join %d: %w: %v", instanceID, ErrNotEligible, e)
	}
	c := m.roll(e)
	idx := in.insertionIndex(c)
	in.Combatants = append(in.Combatants, Combatant{})
	copy(in.Combatants[idx+1:], in.Combatants[idx:])
	in.Combatants[idx] = c
	if idx <= in.Current {
		in.Current++
	}
	m.membership[e] = in.ID

	m.log.Debug("combatant joined",
		zap.Uint64("instance", in.ID),
		zap.Stringer("entity", e),
		zap.Int("position", idx),
	)
	m.bus.Publish(event.CombatantJoined{InstanceID: in.ID, Entity: e, Position: idx})
	m.check(in)
	return nil
}

// Remove takes e out of its instance immediately. If e was the active
// combatant the next turn begins at once.
func (m *Manager) Remove(e ecs.EntityID, reason string) error {
	in, ok := m.InstanceOf(e)
	if !ok {
		return fmt.Errorf("remove %v: %w", e, ErrNotFound)
	}
	wasCurrent := m.detach(in, e, reason)
	if m.finishIfDecided(in) {
		return nil
	}
	if wasCurrent {
		m.wrap(in)
		m.beginTurn(in)
	}
	m.check(in)
	return nil
}

// EndTurn ends e's turn explicitly.
func (m *Manager) EndTurn(e ecs.EntityID) error {
	in, ok := m.InstanceOf(e)
	if !ok {
		return fmt.Errorf("end turn %v: %w", e, ErrNotFound)
	}
	if in.State != StateTurnActive || in.CurrentEntity() != e {
		return fmt.Errorf("end turn %v: %w", e, ErrNotCurrent)
	}
	m.endTurn(in)
	return nil
}

// detach removes e from in's order and the membership index, keeping
// Current on the same combatant. Returns whether e was the current one, in
// which case Current now indexes its successor (possibly len).
func (m *Manager) detach(in *Instance, e ecs.EntityID, reason string) bool {
	idx := in.indexOf(e)
	delete(m.membership, e)
	if idx < 0 {
		return false
	}
	in.Combatants = append(in.Combatants[:idx], in.Combatants[idx+1:]...)
	wasCurrent := idx == in.Current
	if idx < in.Current {
		in.Current--
	}
	m.log.Debug("combatant removed",
		zap.Uint64("instance", in.ID),
		zap.Stringer("entity", e),
		zap.String("reason", reason),
	)
	m.bus.Publish(event.CombatantRemoved{InstanceID: in.ID, Entity: e, Reason: reason})
	return wasCurrent
}

// wrap moves Current back to the start of the order once it passes the end,
// counting a new round.
func (m *Manager) wrap(in *Instance) {
	if in.Current >= len(in.Combatants) {
		in.Current = 0
		in.TurnNumber++
	}
}

func (m *Manager) beginTurn(in *Instance) {
	in.State = StateTurnActive
	e := in.CurrentEntity()
	if ap, ok := m.state.AP.Get(e); ok {
		ap.ResetToMax()
	}
	m.bus.Publish(event.TurnChanged{InstanceID: in.ID, Entity: e, TurnNumber: in.TurnNumber})
}

// endTurn resolves the current turn: status effects on the ending combatant,
// removal of defeated and fled members, then advance to the next live one.
func (m *Manager) endTurn(in *Instance) {
	in.State = StateResolving
	ending := in.CurrentEntity()
	m.tickStatus(ending)

	currentGone := false
	for _, c := range append([]Combatant(nil), in.Combatants...) {
		if m.defeated(c.Entity) && m.detach(in, c.Entity, ReasonDefeated) {
			currentGone = true
		}
	}
	for _, c := range append([]Combatant(nil), in.Combatants...) {
		if m.fled(in, c.Entity) && m.detach(in, c.Entity, ReasonFled) {
			currentGone = true
		}
	}
	if m.finishIfDecided(in) {
		return
	}
	if !currentGone {
		in.Current++
	}
	m.wrap(in)
	m.beginTurn(in)
	m.check(in)
}

func (m *Manager) tickStatus(e ecs.EntityID) {
	st, ok := m.state.Status.Get(e)
	if !ok || len(st.Effects) == 0 {
		return
	}
	h, ok := m.state.Health.Get(e)
	if !ok {
		return
	}
	delta := st.Tick()
	switch {
	case delta < 0:
		lost := h.Damage(-delta)
		m.bus.Publish(event.EntityDamaged{Target: e, Amount: lost, Hit: true, HP: h.Current})
		if !h.Alive() {
			m.state.ECS.MarkForDestruction(e)
			m.bus.Publish(event.EntityDefeated{Entity: e})
		}
	case delta > 0:
		h.Heal(delta)
	}
}

func (m *Manager) defeated(e ecs.EntityID) bool {
	if !m.state.Alive(e) {
		return true
	}
	h, ok := m.state.Health.Get(e)
	return !ok || !h.Alive()
}

// fled reports whether e is beyond FleeRadius of every hostile member.
func (m *Manager) fled(in *Instance, e ecs.EntityID) bool {
	if m.cfg.FleeRadius <= 0 {
		return false
	}
	hostiles := 0
	for _, c := range in.Combatants {
		if c.Entity == e || !m.state.Hostile(e, c.Entity) {
			continue
		}
		hostiles++
		d, ok := m.state.Distance(e, c.Entity)
		if !ok || d <= m.cfg.FleeRadius {
			return false
		}
	}
	return hostiles > 0
}

// finishIfDecided ends in when fewer than two teams remain.
func (m *Manager) finishIfDecided(in *Instance) bool {
	teams := in.teams()
	if len(teams) >= 2 {
		return false
	}
	outcome := OutcomeDraw
	for t := range teams {
		if t != "" {
			outcome = t
		}
	}
	m.finish(in, outcome)
	return true
}

func (m *Manager) finish(in *Instance, outcome string) {
	in.State = StateEnded
	in.Outcome = outcome
	for _, c := range in.Combatants {
		if m.membership[c.Entity] == in.ID {
			delete(m.membership, c.Entity)
		}
	}
	delete(m.instances, in.ID)

	m.log.Info("combat ended",
		zap.Uint64("instance", in.ID),
		zap.String("outcome", outcome),
		zap.Uint32("turns", in.TurnNumber),
	)
	m.bus.Publish(event.CombatEnded{InstanceID: in.ID, Outcome: outcome})
	if len(m.instances) == 0 {
		m.clock.SetMode(clock.Exploration)
	}
}

// check tears an instance down when its invariants no longer hold.
func (m *Manager) check(in *Instance) {
	if !in.Active() {
		return
	}
	err := in.validate()
	if err == nil {
		for _, c := range in.Combatants {
			if id := m.membership[c.Entity]; id != in.ID {
				err = fmt.Errorf("entity %v indexed to instance %d", c.Entity, id)
				break
			}
		}
	}
	if err != nil {
		m.abort(in, err)
	}
}

// abort tears down a defective instance.
func (m *Manager) abort(in *Instance, cause error) {
	m.log.Error("combat instance defect",
		zap.Uint64("instance", in.ID),
		zap.Uint64("tick", uint64(m.clock.Now())),
		zap.Error(cause),
	)
	m.finish(in, OutcomeAborted)
}
