package world

import (
	"sort"

	"github.com/BarzinL/IsoTalia/internal/core/ecs"
)

// AOIGrid buckets entities into square cells so radius queries (hostile
// detection, points of interest) only scan nearby cells.
// Accessed only from the tick goroutine; no locks.
type AOIGrid struct {
	cellSize int32
	cells    map[cellKey]map[ecs.EntityID]struct{}
	index    map[ecs.EntityID]cellKey
}

type cellKey struct {
	cx int32
	cy int32
}

func NewAOIGrid(cellSize int32) *AOIGrid {
	if cellSize < 1 {
		cellSize = 16
	}
	return &AOIGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[ecs.EntityID]struct{}),
		index:    make(map[ecs.EntityID]cellKey),
	}
}

func floorDiv(v, size int32) int32 {
	if v < 0 {
		return (v - size + 1) / size
	}
	return v / size
}

func (g *AOIGrid) key(x, y int32) cellKey {
	return cellKey{cx: floorDiv(x, g.cellSize), cy: floorDiv(y, g.cellSize)}
}

// Update places id at (x,y), moving it between cells if needed.
func (g *AOIGrid) Update(id ecs.EntityID, x, y int32) {
	k := g.key(x, y)
	if old, ok := g.index[id]; ok {
		if old == k {
			return
		}
		g.drop(id, old)
	}
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
	g.index[id] = k
}

// Remove takes id out of the grid. Unknown IDs are ignored.
func (g *AOIGrid) Remove(id ecs.EntityID) {
	if k, ok := g.index[id]; ok {
		g.drop(id, k)
	}
}

func (g *AOIGrid) drop(id ecs.EntityID, k cellKey) {
	delete(g.index, id)
	if cell := g.cells[k]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Candidates returns every entity in cells overlapping the square of the
// given radius around (x,y), sorted by ID. Callers filter by exact distance.
func (g *AOIGrid) Candidates(x, y, radius int32) []ecs.EntityID {
	lo := g.key(x-radius, y-radius)
	hi := g.key(x+radius, y+radius)
	var out []ecs.EntityID
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cy := lo.cy; cy <= hi.cy; cy++ {
			for id := range g.cells[cellKey{cx, cy}] {
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *AOIGrid) Len() int { return len(g.index) }
