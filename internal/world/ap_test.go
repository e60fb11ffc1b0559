package world

import (
	"math/rand/v2"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
)

func TestActionPointsSpend(t *testing.T) {
	tests := map[string]struct {
		current int
		cost    int
		expOK   bool
		expLeft int
	}{
		"affordable":     {current: 100, cost: 60, expOK: true, expLeft: 40},
		"exact":          {current: 60, cost: 60, expOK: true, expLeft: 0},
		"insufficient":   {current: 59, cost: 60, expOK: false, expLeft: 59},
		"free action":    {current: 0, cost: 0, expOK: true, expLeft: 0},
		"negative cost":  {current: 10, cost: -5, expOK: false, expLeft: 10},
		"empty, nonzero": {current: 0, cost: 1, expOK: false, expLeft: 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ap := NewActionPoints(240, 60)
			ap.Current = tt.current
			testutil.AssertEqual(t, "ok", ap.Spend(tt.cost), tt.expOK)
			testutil.AssertEqual(t, "current", ap.Current, tt.expLeft)
		})
	}
}

func TestActionPointsRegenerateCarriesRemainder(t *testing.T) {
	// 7 AP/s at 20 ticks/s is 0.35 AP per tick.
	ap := NewActionPoints(100, 7)
	ap.Current = 0
	total := 0
	for i := 0; i < 20; i++ {
		total += ap.Regenerate(1, 20)
	}
	testutil.AssertEqual(t, "gained over one second", total, 7)
	testutil.AssertEqual(t, "current", ap.Current, 7)
}

func TestActionPointsRegenerateCaps(t *testing.T) {
	ap := NewActionPoints(240, 60)
	ap.Current = 230
	gained := ap.Regenerate(100, 20)
	testutil.AssertEqual(t, "gained", gained, 10)
	testutil.AssertEqual(t, "current", ap.Current, 240)

	ap.Current = 0
	ap.Regenerate(clock.Ticks(1)<<62, 20)
	testutil.AssertEqual(t, "huge delta", ap.Current, 240)
}

func TestActionPointsRateLimitTrace(t *testing.T) {
	// One move per 50ms tick against 240 max, 60/s regen, 60 per move.
	ap := NewActionPoints(240, 60)
	want := []int{180, 123, 66, 9}
	for i, exp := range want {
		if !ap.Spend(60) {
			t.Fatalf("move %d rejected at %d AP", i+1, ap.Current)
		}
		testutil.AssertEqual(t, "after move", ap.Current, exp)
		ap.Regenerate(1, 20)
	}
	testutil.AssertEqual(t, "before 5th", ap.Current, 12)
	if ap.CanAfford(60) {
		t.Fatalf("5th move should be unaffordable")
	}
}

func TestActionPointsResetToMax(t *testing.T) {
	ap := NewActionPoints(50, 10)
	ap.Spend(45)
	ap.Regenerate(1, 20) // leaves a carry
	ap.ResetToMax()
	testutil.AssertEqual(t, "current", ap.Current, 50)
	testutil.AssertEqual(t, "carry", ap.carry, 0)
}

func TestActionPointsStayInBoundsUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 3))
	for pool := 0; pool < 50; pool++ {
		ap := NewActionPoints(rng.IntN(500)-10, rng.IntN(200)-5)
		tps := rng.IntN(60) + 1
		for step := 0; step < 400; step++ {
			var op string
			switch rng.IntN(4) {
			case 0, 1:
				op = "spend"
				ap.Spend(rng.IntN(ap.Maximum+40) - 20)
			case 2:
				op = "regenerate"
				ap.Regenerate(clock.Ticks(rng.Int64N(1<<rng.IntN(41))), tps)
			case 3:
				op = "reset"
				ap.ResetToMax()
			}
			if ap.Current < 0 || ap.Current > ap.Maximum {
				t.Fatalf("pool %d step %d after %s: current %d outside [0, %d]",
					pool, step, op, ap.Current, ap.Maximum)
			}
		}
	}
}
