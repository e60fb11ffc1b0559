package world

import (
	"sort"

	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/data"
)

// ChunkCoord addresses a square block of tiles.
type ChunkCoord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// ChunkOf returns the chunk containing tile (x,y).
func ChunkOf(x, y, size int32) ChunkCoord {
	return ChunkCoord{X: floorDiv(x, size), Y: floorDiv(y, size)}
}

// Chebyshev distance between chunk coordinates.
func (c ChunkCoord) Distance(o ChunkCoord) int32 {
	return Chebyshev(c.X, c.Y, o.X, o.Y)
}

// Chunk is a spatial partition of the tile map. Tiles is row-major Size×Size.
// Entities lists residents in ascending ID order and is maintained by State.
type Chunk struct {
	Coord    ChunkCoord
	Size     int32
	Tiles    []data.TileID
	Entities []ecs.EntityID
	Loaded   bool
	Modified bool
}

// NewChunk returns a chunk filled with one terrain.
func NewChunk(coord ChunkCoord, size int32, fill data.TileID) *Chunk {
	tiles := make([]data.TileID, size*size)
	for i := range tiles {
		tiles[i] = fill
	}
	return &Chunk{Coord: coord, Size: size, Tiles: tiles}
}

func (c *Chunk) local(x, y int32) int {
	lx := x - c.Coord.X*c.Size
	ly := y - c.Coord.Y*c.Size
	return int(ly*c.Size + lx)
}

// Tile returns the terrain at world tile (x,y), which must lie in this chunk.
func (c *Chunk) Tile(x, y int32) data.TileID {
	return c.Tiles[c.local(x, y)]
}

// SetTile replaces terrain at world tile (x,y) and marks the chunk modified.
func (c *Chunk) SetTile(x, y int32, id data.TileID) {
	c.Tiles[c.local(x, y)] = id
	c.Modified = true
}

func (c *Chunk) addEntity(id ecs.EntityID) {
	i := sort.Search(len(c.Entities), func(i int) bool { return c.Entities[i] >= id })
	if i < len(c.Entities) && c.Entities[i] == id {
		return
	}
	c.Entities = append(c.Entities, 0)
	copy(c.Entities[i+1:], c.Entities[i:])
	c.Entities[i] = id
}

func (c *Chunk) removeEntity(id ecs.EntityID) {
	i := sort.Search(len(c.Entities), func(i int) bool { return c.Entities[i] >= id })
	if i < len(c.Entities) && c.Entities[i] == id {
		c.Entities = append(c.Entities[:i], c.Entities[i+1:]...)
	}
}
