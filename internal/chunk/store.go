package chunk

import (
	"context"
	"sync"

	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// Store persists chunk tiles. Implementations must be safe for concurrent use
// by the load workers.
type Store interface {
	// LoadChunk returns found=false when coord was never saved.
	LoadChunk(ctx context.Context, coord world.ChunkCoord, size int32) (c *world.Chunk, found bool, err error)
	SaveChunk(ctx context.Context, c *world.Chunk) error
}

// MemoryStore keeps chunks in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	tiles map[world.ChunkCoord][]data.TileID
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tiles: make(map[world.ChunkCoord][]data.TileID)}
}

func (s *MemoryStore) LoadChunk(_ context.Context, coord world.ChunkCoord, size int32) (*world.Chunk, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiles, ok := s.tiles[coord]
	if !ok || len(tiles) != int(size*size) {
		return nil, false, nil
	}
	c := &world.Chunk{Coord: coord, Size: size, Tiles: make([]data.TileID, len(tiles))}
	copy(c.Tiles, tiles)
	return c, true, nil
}

func (s *MemoryStore) SaveChunk(_ context.Context, c *world.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiles := make([]data.TileID, len(c.Tiles))
	copy(tiles, c.Tiles)
	s.tiles[c.Coord] = tiles
	s.saves++
	return nil
}

// Saves returns how many SaveChunk calls succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
