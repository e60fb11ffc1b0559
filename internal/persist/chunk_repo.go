package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// ChunkRepo stores chunk tiles, one row per chunk, one byte per tile.
type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// LoadChunk returns found=false when the chunk was never saved or was saved
// with a different chunk size.
func (r *ChunkRepo) LoadChunk(ctx context.Context, coord world.ChunkCoord, size int32) (*world.Chunk, bool, error) {
	var (
		stored int32
		raw    []byte
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT size, tiles FROM chunks WHERE cx = $1 AND cy = $2`,
		coord.X, coord.Y,
	).Scan(&stored, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query chunk: %w", err)
	}
	if stored != size || len(raw) != int(size*size) {
		r.db.log.Warn("ignoring chunk saved with another size")
		return nil, false, nil
	}
	c := &world.Chunk{Coord: coord, Size: size, Tiles: make([]data.TileID, len(raw))}
	for i, b := range raw {
		c.Tiles[i] = data.TileID(b)
	}
	return c, true, nil
}

func (r *ChunkRepo) SaveChunk(ctx context.Context, c *world.Chunk) error {
	raw := make([]byte, len(c.Tiles))
	for i, t := range c.Tiles {
		raw[i] = byte(t)
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO chunks (cx, cy, size, tiles, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (cx, cy) DO UPDATE
		 SET size = EXCLUDED.size, tiles = EXCLUDED.tiles, updated_at = now()`,
		c.Coord.X, c.Coord.Y, c.Size, raw,
	)
	if err != nil {
		return fmt.Errorf("save chunk %d,%d: %w", c.Coord.X, c.Coord.Y, err)
	}
	return nil
}
