// Package clock holds the simulation's discrete time source. All costs and
// regeneration rates are expressed in ticks; wall-clock frame time never
// enters simulation math.
package clock

import (
	"fmt"
	"time"
)

// Ticks counts simulation steps since start.
type Ticks uint64

// Mode selects the AP regeneration policy for the whole simulation.
type Mode uint8

const (
	Exploration Mode = iota
	Combat
)

func (m Mode) String() string {
	switch m {
	case Exploration:
		return "exploration"
	case Combat:
		return "combat"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Clock is the GameTime record. Ticks never decrease; mode switches are
// instantaneous and global. Accessed only from the tick goroutine.
type Clock struct {
	ticks          Ticks
	mode           Mode
	ticksPerSecond int
}

// New returns a clock whose tick length is tickRate.
func New(tickRate time.Duration) *Clock {
	tps := int(time.Second / tickRate)
	if tps < 1 {
		tps = 1
	}
	return &Clock{ticksPerSecond: tps}
}

func (c *Clock) Now() Ticks          { return c.ticks }
func (c *Clock) Mode() Mode          { return c.mode }
func (c *Clock) TicksPerSecond() int { return c.ticksPerSecond }

// Advance moves time forward by n ticks and returns the new time.
func (c *Clock) Advance(n Ticks) Ticks {
	c.ticks += n
	return c.ticks
}

// SetMode switches the global mode. Returns true if the mode changed.
func (c *Clock) SetMode(m Mode) bool {
	if c.mode == m {
		return false
	}
	c.mode = m
	return true
}

// Seconds converts a tick span to seconds of simulated time.
func (c *Clock) Seconds(n Ticks) float64 {
	return float64(n) / float64(c.ticksPerSecond)
}
