// Package scheduler assigns each entity a simulation tier by distance to the
// nearest point of interest and drives per-tier update cadence.
package scheduler

import (
	"fmt"

	"github.com/BarzinL/IsoTalia/internal/world"
)

// Band bounds one tier. An entity enters the tier from farther away once its
// distance is at most Enter and leaves it outward only beyond Exit.
type Band struct {
	Enter int32
	Exit  int32
}

// Bands holds the Full, Simplified and Abstract bands. Anything farther than
// the Abstract band is Template.
type Bands [3]Band

// Validate checks Enter < Exit within each band and that each band starts
// beyond the previous one's Exit.
func (b Bands) Validate() error {
	for k, band := range b {
		if band.Enter < 0 || band.Enter >= band.Exit {
			return fmt.Errorf("%s band: enter %d must be below exit %d", world.Tier(k), band.Enter, band.Exit)
		}
		if k > 0 && band.Enter <= b[k-1].Exit {
			return fmt.Errorf("%s band: enter %d must exceed %s exit %d",
				world.Tier(k), band.Enter, world.Tier(k-1), b[k-1].Exit)
		}
	}
	return nil
}

// Next returns the tier for an entity currently at cur whose nearest point
// of interest is d tiles away. It promotes only when d is within a closer
// tier's Enter radius and demotes only once d exceeds cur's Exit radius, so
// an entity moving inside the gap between the two never changes tier.
func (b Bands) Next(cur world.Tier, d int32) world.Tier {
	for k := world.TierFull; k < cur && int(k) < len(b); k++ {
		if d <= b[k].Enter {
			return k
		}
	}
	if int(cur) >= len(b) || d <= b[cur].Exit {
		return cur
	}
	for k := cur + 1; int(k) < len(b); k++ {
		if d <= b[k].Exit {
			return k
		}
	}
	return world.TierTemplate
}
