package chunk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BarzinL/IsoTalia/internal/data"
	"github.com/BarzinL/IsoTalia/internal/world"
	"go.uber.org/zap"
)

const (
	jobQueueSize = 1024
	ioTimeout    = 5 * time.Second
)

type jobKind int

const (
	jobLoad jobKind = iota
	jobSave
)

type job struct {
	kind  jobKind
	coord world.ChunkCoord
	snap  *world.Chunk // save only
	gen   uint64
}

type result struct {
	job
	chunk *world.Chunk
	err   error
}

// Manager loads, generates and saves chunks on a worker pool. Request, Retain,
// Poll and SaveModified belong to the tick goroutine; only the job and result
// channels are shared with workers. With zero workers all I/O runs inline on
// the tick goroutine, which makes chunk availability reproducible for replays.
type Manager struct {
	state *world.State
	store Store
	gen   Generator
	log   *zap.Logger

	jobs    chan job
	results chan result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	pending map[world.ChunkCoord]struct{}
	// unsaved holds evicted chunks whose save has not been confirmed, so a
	// reload is served from memory rather than a stale store row.
	unsaved map[world.ChunkCoord]*world.Chunk
	saveGen map[world.ChunkCoord]uint64
	ready   []*world.Chunk
	nextGen uint64
	inline  bool
}

func NewManager(state *world.State, store Store, gen Generator, workers int, log *zap.Logger) *Manager {
	if workers < 0 {
		workers = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		state:   state,
		store:   store,
		gen:     gen,
		log:     log,
		jobs:    make(chan job, jobQueueSize),
		results: make(chan result, jobQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[world.ChunkCoord]struct{}),
		unsaved: make(map[world.ChunkCoord]*world.Chunk),
		saveGen: make(map[world.ChunkCoord]uint64),
		inline:  workers == 0,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
	return m
}

func (m *Manager) work() {
	defer m.wg.Done()
	for j := range m.jobs {
		r := m.run(j)
		select {
		case m.results <- r:
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) run(j job) result {
	r := result{job: j}
	ctx, cancel := context.WithTimeout(m.ctx, ioTimeout)
	defer cancel()
	switch j.kind {
	case jobLoad:
		r.chunk, r.err = m.load(ctx, j.coord)
	case jobSave:
		r.err = m.store.SaveChunk(ctx, j.snap)
	}
	return r
}

func (m *Manager) load(ctx context.Context, coord world.ChunkCoord) (*world.Chunk, error) {
	c, found, err := m.store.LoadChunk(ctx, coord, m.state.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("load chunk %d,%d: %w", coord.X, coord.Y, err)
	}
	if found {
		return c, nil
	}
	return m.gen.Generate(coord, m.state.ChunkSize), nil
}

// Request schedules coord for loading. It never blocks; a request that cannot
// be queued is dropped and will be repeated by the caller on a later tick.
func (m *Manager) Request(coord world.ChunkCoord) {
	if _, ok := m.state.Chunk(coord); ok {
		return
	}
	if _, ok := m.pending[coord]; ok {
		return
	}
	if snap, ok := m.unsaved[coord]; ok {
		m.pending[coord] = struct{}{}
		m.ready = append(m.ready, cloneChunk(snap, true))
		return
	}
	if m.inline {
		m.pending[coord] = struct{}{}
		m.settle(m.run(job{kind: jobLoad, coord: coord}))
		return
	}
	select {
	case m.jobs <- job{kind: jobLoad, coord: coord}:
		m.pending[coord] = struct{}{}
	default:
		m.log.Debug("chunk job queue full", zap.Int32("x", coord.X), zap.Int32("y", coord.Y))
	}
}

// Pending reports whether coord has an outstanding load.
func (m *Manager) Pending(coord world.ChunkCoord) bool {
	_, ok := m.pending[coord]
	return ok
}

func (m *Manager) IsLoaded(coord world.ChunkCoord) bool {
	_, ok := m.state.Chunk(coord)
	return ok
}

// Poll installs every finished load and settles finished saves. It returns
// the number of chunks installed.
func (m *Manager) Poll() int {
	installed := 0
	for _, c := range m.ready {
		if m.install(c) {
			installed++
		}
	}
	m.ready = m.ready[:0]
	for {
		select {
		case r := <-m.results:
			if m.settle(r) {
				installed++
			}
		default:
			return installed
		}
	}
}

func (m *Manager) settle(r result) bool {
	switch r.kind {
	case jobLoad:
		if r.err != nil {
			delete(m.pending, r.coord)
			m.log.Error("chunk load failed", zap.Error(r.err))
			return false
		}
		// A save of this coord may have been queued while the load ran.
		if snap, ok := m.unsaved[r.coord]; ok {
			return m.install(cloneChunk(snap, true))
		}
		return m.install(r.chunk)
	case jobSave:
		if r.err != nil {
			m.log.Error("chunk save failed",
				zap.Int32("x", r.coord.X), zap.Int32("y", r.coord.Y), zap.Error(r.err))
			return false
		}
		if m.saveGen[r.coord] == r.gen {
			delete(m.unsaved, r.coord)
			delete(m.saveGen, r.coord)
		}
	}
	return false
}

func (m *Manager) install(c *world.Chunk) bool {
	delete(m.pending, c.Coord)
	if _, ok := m.state.Chunk(c.Coord); ok {
		return false
	}
	m.state.InstallChunk(c)
	return true
}

// Retain unloads every resident chunk not in keep. Modified chunks are saved
// asynchronously.
func (m *Manager) Retain(keep map[world.ChunkCoord]struct{}) {
	for _, coord := range m.state.LoadedChunks() {
		if _, ok := keep[coord]; ok {
			continue
		}
		c, _ := m.state.RemoveChunk(coord)
		if c.Modified {
			m.save(c)
		}
	}
}

// SaveModified queues a save of every resident modified chunk and clears the
// modified flag.
func (m *Manager) SaveModified() int {
	n := 0
	for _, coord := range m.state.LoadedChunks() {
		c, _ := m.state.Chunk(coord)
		if !c.Modified {
			continue
		}
		c.Modified = false
		m.save(c)
		n++
	}
	return n
}

func (m *Manager) save(c *world.Chunk) {
	m.nextGen++
	snap := cloneChunk(c, false)
	m.unsaved[c.Coord] = snap
	m.saveGen[c.Coord] = m.nextGen
	j := job{kind: jobSave, coord: c.Coord, snap: snap, gen: m.nextGen}
	if m.inline {
		m.settle(m.run(j))
		return
	}
	select {
	case m.jobs <- j:
	default:
		// Stays in unsaved; Flush writes it at shutdown.
		m.log.Warn("chunk job queue full, save deferred", zap.Int32("x", c.Coord.X), zap.Int32("y", c.Coord.Y))
	}
}

// Stop shuts the worker pool down and synchronously writes every chunk that is
// modified or still awaiting a save confirmation.
func (m *Manager) Stop(ctx context.Context) error {
	close(m.jobs)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	// Workers block on a full results channel, so keep settling while they
	// finish the queue.
	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case r := <-m.results:
			m.settle(r)
		case <-ctx.Done():
			m.cancel()
			<-done
			waiting = false
		}
	}
	m.drainResults()
	m.cancel()
	return m.flush(ctx)
}

func (m *Manager) drainResults() {
	for {
		select {
		case r := <-m.results:
			m.settle(r)
		default:
			return
		}
	}
}

func (m *Manager) flush(ctx context.Context) error {
	var firstErr error
	write := func(c *world.Chunk) {
		if err := m.store.SaveChunk(ctx, c); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush chunk %d,%d: %w", c.Coord.X, c.Coord.Y, err)
		}
	}
	for _, coord := range m.state.LoadedChunks() {
		if c, _ := m.state.Chunk(coord); c.Modified {
			write(c)
			c.Modified = false
			delete(m.unsaved, coord)
		}
	}
	for _, snap := range m.unsaved {
		write(snap)
	}
	clear(m.unsaved)
	return firstErr
}

func cloneChunk(c *world.Chunk, modified bool) *world.Chunk {
	tiles := make([]data.TileID, len(c.Tiles))
	copy(tiles, c.Tiles)
	return &world.Chunk{Coord: c.Coord, Size: c.Size, Tiles: tiles, Modified: modified}
}
