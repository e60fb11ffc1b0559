package chunk

import (
	"math/rand/v2"

	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// Generator produces a chunk that has never been saved.
type Generator interface {
	Generate(coord world.ChunkCoord, size int32) *world.Chunk
}

type rect struct {
	x0, y0, x1, y1 int32 // half-open
	terrain        string
}

// landmarks is the hand-built starting area around the origin.
var landmarks = []rect{
	{10, 10, 15, 11, "rubble"},
	{20, 20, 30, 25, "cracked_pavement"},
	{15, 15, 18, 18, "toxic_water"},
}

// WastelandGenerator scatters rubble walls, pavement patches and toxic pools
// over dirt. Output depends only on the seed and the chunk coordinate.
type WastelandGenerator struct {
	terrain *data.TerrainTable
	seed    uint64
}

func NewWastelandGenerator(terrain *data.TerrainTable, seed int64) *WastelandGenerator {
	return &WastelandGenerator{terrain: terrain, seed: uint64(seed)}
}

func (g *WastelandGenerator) Generate(coord world.ChunkCoord, size int32) *world.Chunk {
	c := world.NewChunk(coord, size, g.terrain.Fill())
	ox, oy := coord.X*size, coord.Y*size

	if coord == (world.ChunkCoord{}) {
		for _, r := range landmarks {
			g.paint(c, r, ox, oy)
		}
		c.Modified = false
		return c
	}

	rng := rand.New(rand.NewPCG(g.seed, uint64(uint32(coord.X))<<32|uint64(uint32(coord.Y))))
	features := rng.IntN(4)
	for i := 0; i < features; i++ {
		x := ox + rng.Int32N(size)
		y := oy + rng.Int32N(size)
		var r rect
		switch rng.IntN(3) {
		case 0:
			r = rect{x, y, x + 3 + rng.Int32N(6), y + 1, "rubble"}
		case 1:
			r = rect{x, y, x + 4 + rng.Int32N(8), y + 3 + rng.Int32N(4), "cracked_pavement"}
		default:
			r = rect{x, y, x + 2 + rng.Int32N(3), y + 2 + rng.Int32N(3), "toxic_water"}
		}
		g.paint(c, r, ox, oy)
	}
	c.Modified = false
	return c
}

// paint fills the part of r that lies inside c.
func (g *WastelandGenerator) paint(c *world.Chunk, r rect, ox, oy int32) {
	id, ok := g.terrain.Lookup(r.terrain)
	if !ok {
		return
	}
	for y := max(r.y0, oy); y < min(r.y1, oy+c.Size); y++ {
		for x := max(r.x0, ox); x < min(r.x1, ox+c.Size); x++ {
			c.SetTile(x, y, id)
		}
	}
}
