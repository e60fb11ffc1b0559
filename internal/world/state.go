package world

import (
	"sort"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/data"
)

// State holds every entity, component store and loaded chunk.
// Accessed only from the tick goroutine; no locks needed.
type State struct {
	ECS *ecs.World

	Identity    *ecs.Store[Identity]
	Positions   *ecs.Store[Position]
	AP          *ecs.Store[ActionPoints]
	Health      *ecs.Store[Health]
	Mobility    *ecs.Store[Mobility]
	Inventory   *ecs.Store[Inventory]
	Tools       *ecs.Store[Tool]
	Factions    *ecs.Store[Faction]
	Attacks     *ecs.Store[Attack]
	Status      *ecs.Store[Status]
	Wander      *ecs.Store[Wander]
	Controlled  *ecs.Store[Controlled]
	Quarantined *ecs.Store[Quarantined]
	Tiers       *ecs.Store[Tiered]

	Terrain   *data.TerrainTable
	ChunkSize int32

	chunks    map[ChunkCoord]*Chunk
	residents map[ChunkCoord]map[ecs.EntityID]struct{}
	where     map[ecs.EntityID]ChunkCoord
	grid      *AOIGrid
}

func NewState(terrain *data.TerrainTable, chunkSize int32) *State {
	if chunkSize < 1 {
		chunkSize = 32
	}
	w := ecs.NewWorld()
	r := w.Registry()
	return &State{
		ECS:         w,
		Identity:    ecs.Track[Identity](r),
		Positions:   ecs.Track[Position](r),
		AP:          ecs.Track[ActionPoints](r),
		Health:      ecs.Track[Health](r),
		Mobility:    ecs.Track[Mobility](r),
		Inventory:   ecs.Track[Inventory](r),
		Tools:       ecs.Track[Tool](r),
		Factions:    ecs.Track[Faction](r),
		Attacks:     ecs.Track[Attack](r),
		Status:      ecs.Track[Status](r),
		Wander:      ecs.Track[Wander](r),
		Controlled:  ecs.Track[Controlled](r),
		Quarantined: ecs.Track[Quarantined](r),
		Tiers:       ecs.Track[Tiered](r),
		Terrain:     terrain,
		ChunkSize:   chunkSize,
		chunks:      make(map[ChunkCoord]*Chunk),
		residents:   make(map[ChunkCoord]map[ecs.EntityID]struct{}),
		where:       make(map[ecs.EntityID]ChunkCoord),
		grid:        NewAOIGrid(chunkSize / 2),
	}
}

// Alive reports whether id exists and is not queued for destruction.
func (s *State) Alive(id ecs.EntityID) bool {
	return s.ECS.Alive(id) && !s.ECS.PendingDestruction(id)
}

// Active reports whether id may take part in simulation processing.
func (s *State) Active(id ecs.EntityID) bool {
	return s.Alive(id) && !s.Quarantined.Has(id)
}

// Quarantine excludes id from all active processing.
func (s *State) Quarantine(id ecs.EntityID, cause string, now clock.Ticks) {
	if !s.ECS.Alive(id) || s.Quarantined.Has(id) {
		return
	}
	s.Quarantined.Set(id, &Quarantined{Cause: cause, At: now})
}

// PositionOf returns id's tile position.
func (s *State) PositionOf(id ecs.EntityID) (Position, bool) {
	p, ok := s.Positions.Get(id)
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// SetPosition moves id to (x,y), keeping the AOI grid and chunk residency in step.
func (s *State) SetPosition(id ecs.EntityID, x, y int32) {
	p, ok := s.Positions.Get(id)
	if !ok {
		p = &Position{}
		s.Positions.Set(id, p)
	}
	p.X, p.Y = x, y
	s.grid.Update(id, x, y)

	coord := ChunkOf(x, y, s.ChunkSize)
	if old, ok := s.where[id]; ok {
		if old == coord {
			return
		}
		s.unreside(id, old)
	}
	s.where[id] = coord
	set := s.residents[coord]
	if set == nil {
		set = make(map[ecs.EntityID]struct{})
		s.residents[coord] = set
	}
	set[id] = struct{}{}
	if c := s.chunks[coord]; c != nil {
		c.addEntity(id)
	}
}

func (s *State) unreside(id ecs.EntityID, coord ChunkCoord) {
	delete(s.where, id)
	if set := s.residents[coord]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(s.residents, coord)
		}
	}
	if c := s.chunks[coord]; c != nil {
		c.removeEntity(id)
	}
}

// Flush destroys every entity queued for destruction and detaches it from
// the spatial indexes. Returns the destroyed IDs in marking order.
func (s *State) Flush() []ecs.EntityID {
	ids := s.ECS.FlushDestroyQueue()
	for _, id := range ids {
		s.grid.Remove(id)
		if coord, ok := s.where[id]; ok {
			s.unreside(id, coord)
		}
	}
	return ids
}

// --- chunks ---

// ChunkOf returns the chunk coordinate containing tile (x,y).
func (s *State) ChunkOf(x, y int32) ChunkCoord {
	return ChunkOf(x, y, s.ChunkSize)
}

// Chunk returns a loaded chunk.
func (s *State) Chunk(coord ChunkCoord) (*Chunk, bool) {
	c, ok := s.chunks[coord]
	return c, ok
}

// InstallChunk makes c resident and attaches entities already positioned in it.
func (s *State) InstallChunk(c *Chunk) {
	c.Loaded = true
	c.Entities = c.Entities[:0]
	for id := range s.residents[c.Coord] {
		c.Entities = append(c.Entities, id)
	}
	sort.Slice(c.Entities, func(i, j int) bool { return c.Entities[i] < c.Entities[j] })
	s.chunks[c.Coord] = c
}

// RemoveChunk evicts a chunk. The caller decides whether to persist it.
func (s *State) RemoveChunk(coord ChunkCoord) (*Chunk, bool) {
	c, ok := s.chunks[coord]
	if !ok {
		return nil, false
	}
	delete(s.chunks, coord)
	c.Loaded = false
	return c, true
}

// LoadedChunks returns resident chunk coordinates in (Y, X) order.
func (s *State) LoadedChunks() []ChunkCoord {
	out := make([]ChunkCoord, 0, len(s.chunks))
	for c := range s.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// IsLoaded reports whether the chunk holding tile (x,y) is resident.
func (s *State) IsLoaded(x, y int32) bool {
	_, ok := s.chunks[s.ChunkOf(x, y)]
	return ok
}

// --- tile queries ---

// TileAt returns the terrain at (x,y). ok is false when its chunk is not loaded.
func (s *State) TileAt(x, y int32) (*data.TerrainType, bool) {
	c, ok := s.chunks[s.ChunkOf(x, y)]
	if !ok {
		return nil, false
	}
	return s.Terrain.Get(c.Tile(x, y)), true
}

// Passable reports whether a mover with mob may stand on (x,y).
func (s *State) Passable(x, y int32, mob Mobility) bool {
	t, ok := s.TileAt(x, y)
	if !ok || t == nil {
		return false
	}
	switch {
	case t.Walkable:
		return true
	case mob.CanFly:
		return true
	case t.Liquid:
		return mob.CanSwim
	}
	return false
}

// CanMoveTo is the world legality query used by the action layer.
func (s *State) CanMoveTo(id ecs.EntityID, x, y int32) bool {
	if !s.Active(id) {
		return false
	}
	var mob Mobility
	if m, ok := s.Mobility.Get(id); ok {
		mob = *m
	}
	return s.Passable(x, y, mob)
}

// Dig replaces the tile at (x,y) with the dug-out terrain and returns the
// terrain that was removed.
func (s *State) Dig(x, y int32) (*data.TerrainType, bool) {
	c, ok := s.chunks[s.ChunkOf(x, y)]
	if !ok {
		return nil, false
	}
	before := s.Terrain.Get(c.Tile(x, y))
	c.SetTile(x, y, s.Terrain.DugTo())
	return before, true
}

// --- spatial queries ---

// Nearby returns live entities within Chebyshev radius of (x,y), ascending by ID.
func (s *State) Nearby(x, y, radius int32) []ecs.EntityID {
	cands := s.grid.Candidates(x, y, radius)
	out := cands[:0]
	for _, id := range cands {
		p, ok := s.Positions.Get(id)
		if !ok || !s.Alive(id) {
			continue
		}
		if Chebyshev(x, y, p.X, p.Y) <= radius {
			out = append(out, id)
		}
	}
	return out
}

// Hostile reports whether a and b are on opposing teams.
func (s *State) Hostile(a, b ecs.EntityID) bool {
	fa, ok := s.Factions.Get(a)
	if !ok {
		return false
	}
	fb, ok := s.Factions.Get(b)
	if !ok {
		return false
	}
	return fa.Hostile(*fb)
}

// Team returns id's faction team, or "" when neutral.
func (s *State) Team(id ecs.EntityID) string {
	if f, ok := s.Factions.Get(id); ok {
		return f.Team
	}
	return ""
}

// Distance is the Chebyshev distance between two positioned entities.
func (s *State) Distance(a, b ecs.EntityID) (int32, bool) {
	pa, ok := s.Positions.Get(a)
	if !ok {
		return 0, false
	}
	pb, ok := s.Positions.Get(b)
	if !ok {
		return 0, false
	}
	return Chebyshev(pa.X, pa.Y, pb.X, pb.Y), true
}
