package world

import "github.com/BarzinL/IsoTalia/internal/core/clock"

// ActionPoints is the per-entity action economy. Current stays within
// [0, Maximum] after every call; RegenRate is AP per simulated second.
// Spend, Regenerate and ResetToMax are the only mutators.
type ActionPoints struct {
	Current   int
	Maximum   int
	RegenRate int

	carry int // RegenRate·ticks not yet converted into whole AP
}

// NewActionPoints returns a full pool.
func NewActionPoints(maximum, regenRate int) ActionPoints {
	if maximum < 1 {
		maximum = 1
	}
	if regenRate < 0 {
		regenRate = 0
	}
	return ActionPoints{Current: maximum, Maximum: maximum, RegenRate: regenRate}
}

func (ap *ActionPoints) CanAfford(cost int) bool {
	return cost >= 0 && ap.Current >= cost
}

// Spend deducts cost. Returns false without mutating if unaffordable.
func (ap *ActionPoints) Spend(cost int) bool {
	if !ap.CanAfford(cost) {
		return false
	}
	ap.Current -= cost
	return true
}

// Regenerate adds RegenRate·delta/ticksPerSecond AP, carrying the fractional
// remainder into the next call, capped at Maximum. Returns the AP gained.
// Callers only invoke it in exploration mode.
func (ap *ActionPoints) Regenerate(delta clock.Ticks, ticksPerSecond int) int {
	if ap.RegenRate <= 0 || delta == 0 || ticksPerSecond < 1 {
		return 0
	}
	need := ap.Maximum - ap.Current
	if need <= 0 {
		ap.carry = 0
		return 0
	}
	tps := int64(ticksPerSecond)
	// Ticks sufficient to refill completely; beyond this the product could overflow.
	full := (int64(need)*tps)/int64(ap.RegenRate) + 1
	if int64(delta) >= full {
		ap.Current = ap.Maximum
		ap.carry = 0
		return need
	}
	total := int64(ap.carry) + int64(ap.RegenRate)*int64(delta)
	gain := int(total / tps)
	ap.carry = int(total % tps)
	if gain >= need {
		gain = need
		ap.carry = 0
	}
	ap.Current += gain
	return gain
}

// ResetToMax refills the pool at the start of a combat turn.
func (ap *ActionPoints) ResetToMax() {
	ap.Current = ap.Maximum
	ap.carry = 0
}
