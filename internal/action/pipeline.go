package action

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// bleedTurns is how long a bleeding status from a critical hit lasts.
const bleedTurns = 3

// TurnObserver is told about combat-relevant pipeline activity. The combat
// manager implements it; the pipeline never imports combat.
type TurnObserver interface {
	// TurnState reports whether id belongs to a combat instance and, if so,
	// whether it is that instance's current combatant.
	TurnState(id ecs.EntityID) (member, current bool)
	// ActionExecuted is called after every successful execution.
	ActionExecuted(a Action)
	// Quarantined is called after id was quarantined for a defect.
	Quarantined(id ecs.EntityID)
}

// Formulas resolves attacks. *scripting.Engine satisfies it.
type Formulas interface {
	CalcAttack(scripting.AttackContext) scripting.AttackResult
}

type noCombat struct{}

func (noCombat) TurnState(ecs.EntityID) (bool, bool) { return false, false }
func (noCombat) ActionExecuted(Action)               {}
func (noCombat) Quarantined(ecs.EntityID)            {}

// Pipeline is the only writer of ActionPoints outside regen and turn resets.
// Accessed only from the tick goroutine.
type Pipeline struct {
	state    *world.State
	clock    *clock.Clock
	bus      *event.Bus
	costs    Costs
	formulas Formulas
	turns    TurnObserver
	rng      *rand.Rand
	log      *zap.Logger
	busy     bool
}

func NewPipeline(state *world.State, clk *clock.Clock, bus *event.Bus, costs Costs, formulas Formulas, seed int64, log *zap.Logger) *Pipeline {
	return &Pipeline{
		state:    state,
		clock:    clk,
		bus:      bus,
		costs:    costs,
		formulas: formulas,
		turns:    noCombat{},
		rng:      rand.New(rand.NewPCG(uint64(seed), 0x1507a11a)),
		log:      log,
	}
}

// SetTurnObserver installs the combat hook. nil restores the no-combat default.
func (p *Pipeline) SetTurnObserver(o TurnObserver) {
	if o == nil {
		o = noCombat{}
	}
	p.turns = o
}

func (p *Pipeline) Costs() Costs { return p.costs }

// Validate runs the ordered checks without side effects: eligibility, then
// AP, then action-specific legality. The first failure wins.
func (p *Pipeline) Validate(a Action) Outcome {
	id := a.Actor()
	if !p.state.Alive(id) {
		return reject(ReasonNoActor)
	}
	if p.state.Quarantined.Has(id) {
		return reject(ReasonQuarantined)
	}
	member, current := p.turns.TurnState(id)
	if member && !current {
		return reject(ReasonNotYourTurn)
	}
	if _, isEnd := a.(EndTurn); isEnd && !member {
		return reject(ReasonWrongMode)
	}

	ap, hasAP := p.state.AP.Get(id)
	if !hasAP {
		return reject(ReasonNoActor)
	}
	if !ap.CanAfford(p.costs.Of(a)) {
		return reject(ReasonInsufficientAP)
	}

	switch a := a.(type) {
	case Move:
		return p.validateMove(a)
	case Interact:
		return p.validateInteract(a)
	case Attack:
		return p.validateAttack(a)
	case EndTurn, Wait:
		return accepted
	}
	return reject(ReasonInvalidTarget)
}

func (p *Pipeline) validateMove(a Move) Outcome {
	pos, ok := p.state.PositionOf(a.Entity)
	if !ok {
		return reject(ReasonNoActor)
	}
	if world.Chebyshev(pos.X, pos.Y, a.To.X, a.To.Y) != 1 {
		return reject(ReasonNotAdjacent)
	}
	if !p.state.IsLoaded(a.To.X, a.To.Y) {
		return reject(ReasonNotLoaded)
	}
	if !p.state.CanMoveTo(a.Entity, a.To.X, a.To.Y) {
		return reject(ReasonBlocked)
	}
	return accepted
}

func (p *Pipeline) validateInteract(a Interact) Outcome {
	pos, ok := p.state.PositionOf(a.Entity)
	if !ok {
		return reject(ReasonNoActor)
	}
	if world.Chebyshev(pos.X, pos.Y, a.At.X, a.At.Y) != 1 {
		return reject(ReasonNotAdjacent)
	}
	tool, ok := p.state.Tools.Get(a.Entity)
	if !ok {
		return reject(ReasonNoTool)
	}
	if tool.Broken() {
		return reject(ReasonToolBroken)
	}
	tile, loaded := p.state.TileAt(a.At.X, a.At.Y)
	if !loaded {
		return reject(ReasonNotLoaded)
	}
	if tile == nil || tile.Hardness <= 0 {
		return reject(ReasonNotDiggable)
	}
	return accepted
}

func (p *Pipeline) validateAttack(a Attack) Outcome {
	atk, ok := p.state.Attacks.Get(a.Entity)
	if !ok {
		return reject(ReasonCannotAttack)
	}
	if a.Target == a.Entity || !p.state.Active(a.Target) || !p.state.Health.Has(a.Target) {
		return reject(ReasonInvalidTarget)
	}
	if !p.state.Hostile(a.Entity, a.Target) {
		return reject(ReasonNotHostile)
	}
	d, ok := p.state.Distance(a.Entity, a.Target)
	if !ok {
		return reject(ReasonInvalidTarget)
	}
	if d > atk.Range {
		return reject(ReasonOutOfRange)
	}
	return accepted
}

func defect(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDefect, fmt.Sprintf(format, args...))
}

// Execute applies a validated action: spends AP, mutates state, emits events
// and notifies the turn observer. Any inconsistency is a defect.
func (p *Pipeline) Execute(a Action) error {
	ap, ok := p.state.AP.Get(a.Actor())
	if !ok {
		return defect("%s: actor %v has no action points", a.Name(), a.Actor())
	}
	cost := p.costs.Of(a)

	var err error
	switch a := a.(type) {
	case Move:
		err = p.execMove(a, ap, cost)
	case Interact:
		err = p.execInteract(a, ap, cost)
	case Attack:
		err = p.execAttack(a, ap, cost)
	case Wait:
		if !ap.Spend(cost) {
			return defect("wait: spend %d with %d AP", cost, ap.Current)
		}
		p.bus.Publish(event.EntityWaited{Entity: a.Entity})
	case EndTurn:
	default:
		err = defect("unknown action %T", a)
	}
	if err != nil {
		return err
	}
	p.turns.ActionExecuted(a)
	return nil
}

func (p *Pipeline) execMove(a Move, ap *world.ActionPoints, cost int) error {
	if !p.state.Positions.Has(a.Entity) {
		return defect("move: actor %v has no position", a.Entity)
	}
	if !ap.Spend(cost) {
		return defect("move: spend %d with %d AP", cost, ap.Current)
	}
	p.state.SetPosition(a.Entity, a.To.X, a.To.Y)
	p.bus.Publish(event.EntityMoved{Entity: a.Entity, X: a.To.X, Y: a.To.Y})
	return nil
}

func (p *Pipeline) execInteract(a Interact, ap *world.ActionPoints, cost int) error {
	tool, ok := p.state.Tools.Get(a.Entity)
	if !ok {
		return defect("interact: actor %v lost its tool", a.Entity)
	}
	if !p.state.IsLoaded(a.At.X, a.At.Y) {
		return defect("interact: chunk for (%d,%d) unloaded after validation", a.At.X, a.At.Y)
	}
	if !ap.Spend(cost) {
		return defect("interact: spend %d with %d AP", cost, ap.Current)
	}
	dug, _ := p.state.Dig(a.At.X, a.At.Y)
	stillWorks := tool.Use()

	var drops []string
	if dug != nil {
		drops = append(drops, dug.Drops...)
	}
	if inv, ok := p.state.Inventory.Get(a.Entity); ok && len(drops) > 0 {
		added := 0
		for _, item := range drops {
			if inv.Add(item) {
				added++
			}
		}
		if added > 0 {
			p.bus.Publish(event.InventoryChanged{Entity: a.Entity, Items: inv.Snapshot()})
		}
	}
	p.bus.Publish(event.TileDug{
		Entity:    a.Entity,
		X:         a.At.X,
		Y:         a.At.Y,
		Resources: drops,
		ToolBroke: !stillWorks,
	})
	return nil
}

func (p *Pipeline) execAttack(a Attack, ap *world.ActionPoints, cost int) error {
	atk, ok := p.state.Attacks.Get(a.Entity)
	if !ok {
		return defect("attack: actor %v has no attack", a.Entity)
	}
	hp, ok := p.state.Health.Get(a.Target)
	if !ok {
		return defect("attack: target %v has no health", a.Target)
	}
	dist, ok := p.state.Distance(a.Entity, a.Target)
	if !ok {
		return defect("attack: %v or %v has no position", a.Entity, a.Target)
	}
	var attackerHP int32
	if h, ok := p.state.Health.Get(a.Entity); ok {
		attackerHP = h.Current
	}
	res := p.formulas.CalcAttack(scripting.AttackContext{
		AttackerDamage: atk.Damage,
		AttackerHP:     attackerHP,
		TargetHP:       hp.Current,
		TargetMaxHP:    hp.Maximum,
		Distance:       dist,
		Roll:           p.rng.IntN(100) + 1,
	})
	if !ap.Spend(cost) {
		return defect("attack: spend %d with %d AP", cost, ap.Current)
	}

	dealt := hp.Damage(res.Damage)
	if res.Bleed > 0 && hp.Alive() {
		if st, ok := p.state.Status.Get(a.Target); ok {
			st.Apply(world.Effect{Kind: "bleeding", Magnitude: -res.Bleed, Turns: bleedTurns})
		}
	}
	p.bus.Publish(event.EntityDamaged{
		Attacker: a.Entity,
		Target:   a.Target,
		Amount:   dealt,
		Hit:      res.IsHit,
		HP:       hp.Current,
	})
	if !hp.Alive() {
		p.state.ECS.MarkForDestruction(a.Target)
		p.bus.Publish(event.EntityDefeated{Entity: a.Target, By: a.Entity})
	}
	return nil
}

// Process validates then executes a back to back. Rejections publish
// ACTION_REJECTED and return a failed Outcome with a nil error. Defects
// quarantine the actor and return an error wrapping ErrDefect.
func (p *Pipeline) Process(a Action) (out Outcome, err error) {
	if p.busy || p.bus.Dispatching() {
		p.log.Error("re-entrant action rejected",
			zap.String("action", a.Name()),
			zap.Stringer("actor", a.Actor()),
		)
		return reject(ReasonReentrant), ErrReentrant
	}
	p.busy = true
	defer func() { p.busy = false }()

	defer func() {
		if rec := recover(); rec != nil {
			err = defect("panic in %s: %v", a.Name(), rec)
			out = reject(ReasonDefect)
			p.quarantine(a, err)
		}
	}()

	out = p.Validate(a)
	if !out.Success {
		p.log.Debug("action rejected",
			zap.String("action", a.Name()),
			zap.Stringer("actor", a.Actor()),
			zap.String("reason", string(out.Reason)),
		)
		p.bus.Publish(event.ActionRejected{Entity: a.Actor(), Action: a.Name(), Reason: string(out.Reason)})
		return out, nil
	}
	if err := p.Execute(a); err != nil {
		p.quarantine(a, err)
		return reject(ReasonDefect), err
	}
	return out, nil
}

func (p *Pipeline) quarantine(a Action, cause error) {
	id := a.Actor()
	p.log.Error("action defect",
		zap.String("action", a.Name()),
		zap.Stringer("actor", id),
		zap.Uint64("tick", uint64(p.clock.Now())),
		zap.Error(cause),
	)
	p.state.Quarantine(id, cause.Error(), p.clock.Now())
	p.bus.Publish(event.EntityQuarantined{Entity: id, Cause: cause.Error()})
	p.turns.Quarantined(id)
}
