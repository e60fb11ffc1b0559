package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the tunable game formulas.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// Missing directories are skipped, so an empty scripts dir yields pure Go fallbacks.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, sub := range []string{"core", "combat"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromSource builds an engine from inline chunks. Used by tests and tools.
func NewEngineFromSource(log *zap.Logger, sources ...string) (*Engine, error) {
	e := newEngine(log)
	for i, src := range sources {
		if err := e.vm.DoString(src); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load chunk %d: %w", i, err)
		}
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	// Formulas receive their randomness from Go so replays stay deterministic.
	if m, ok := vm.GetGlobal("math").(*lua.LTable); ok {
		m.RawSetString("random", lua.LNil)
		m.RawSetString("randomseed", lua.LNil)
	}
	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global Lua function is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// InitiativeContext describes a combatant entering combat.
type InitiativeContext struct {
	HP        int32
	MaxHP     int32
	APMaximum int
	Team      string
}

// InitiativeBonus calls initiative_bonus(ctx). Missing function yields 0.
func (e *Engine) InitiativeBonus(ctx InitiativeContext) int {
	if !e.Has("initiative_bonus") {
		return 0
	}
	t := e.vm.NewTable()
	t.RawSetString("hp", lua.LNumber(ctx.HP))
	t.RawSetString("max_hp", lua.LNumber(ctx.MaxHP))
	t.RawSetString("ap_max", lua.LNumber(ctx.APMaximum))
	t.RawSetString("team", lua.LString(ctx.Team))

	ret, ok := e.call("initiative_bonus", t)
	if !ok {
		return 0
	}
	return int(lua.LVAsNumber(ret))
}

// AttackContext holds pre-packed data for one attack resolution. Roll is a
// uniform integer in [1,100] drawn by the caller's seeded RNG.
type AttackContext struct {
	AttackerDamage int32
	AttackerHP     int32
	TargetHP       int32
	TargetMaxHP    int32
	Distance       int32
	Roll           int
}

// AttackResult is returned by calc_attack. Bleed > 0 applies a bleeding
// status dealing that much damage per turn.
type AttackResult struct {
	IsHit  bool
	Damage int32
	Bleed  int32
}

// fallbackAttack always hits for the attacker's base damage.
func fallbackAttack(ctx AttackContext) AttackResult {
	return AttackResult{IsHit: true, Damage: ctx.AttackerDamage}
}

// CalcAttack calls the Lua calc_attack function.
func (e *Engine) CalcAttack(ctx AttackContext) AttackResult {
	if !e.Has("calc_attack") {
		return fallbackAttack(ctx)
	}
	t := e.vm.NewTable()

	atk := e.vm.NewTable()
	atk.RawSetString("damage", lua.LNumber(ctx.AttackerDamage))
	atk.RawSetString("hp", lua.LNumber(ctx.AttackerHP))
	t.RawSetString("attacker", atk)

	tgt := e.vm.NewTable()
	tgt.RawSetString("hp", lua.LNumber(ctx.TargetHP))
	tgt.RawSetString("max_hp", lua.LNumber(ctx.TargetMaxHP))
	t.RawSetString("target", tgt)

	t.RawSetString("distance", lua.LNumber(ctx.Distance))
	t.RawSetString("roll", lua.LNumber(ctx.Roll))

	ret, ok := e.call("calc_attack", t)
	if !ok {
		return fallbackAttack(ctx)
	}
	rt, ok := ret.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_attack returned non-table")
		return fallbackAttack(ctx)
	}
	res := AttackResult{
		IsHit:  lua.LVAsBool(rt.RawGetString("is_hit")),
		Damage: int32(lInt(rt, "damage")),
		Bleed:  int32(lInt(rt, "bleed")),
	}
	if res.Damage < 0 {
		res.Damage = 0
	}
	if !res.IsHit {
		res.Damage, res.Bleed = 0, 0
	}
	return res
}

// RegenContext feeds regen_scale for coarse-tier projections.
type RegenContext struct {
	Tier  string
	HP    int32
	MaxHP int32
}

// RegenScale returns the percentage of nominal AP regen a projected entity
// receives. Missing function or bad values yield 100.
func (e *Engine) RegenScale(ctx RegenContext) int {
	if !e.Has("regen_scale") {
		return 100
	}
	t := e.vm.NewTable()
	t.RawSetString("tier", lua.LString(ctx.Tier))
	t.RawSetString("hp", lua.LNumber(ctx.HP))
	t.RawSetString("max_hp", lua.LNumber(ctx.MaxHP))

	ret, ok := e.call("regen_scale", t)
	if !ok {
		return 100
	}
	pct := int(lua.LVAsNumber(ret))
	if pct < 0 || pct > 100 {
		e.log.Warn("regen_scale out of range", zap.Int("pct", pct))
		return 100
	}
	return pct
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// call invokes a global function with protected mode and one return value.
func (e *Engine) call(name string, args ...lua.LValue) (lua.LValue, bool) {
	fn := e.vm.GetGlobal(name)
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return lua.LNil, false
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	return ret, true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
