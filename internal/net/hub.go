package net

import (
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/core/event"
	"github.com/BarzinL/IsoTalia/internal/world"
)

// Source delivers sessions awaiting admission and IDs of closed ones.
type Source interface {
	NewSessions() <-chan *Session
	DeadSessions() <-chan uint64
}

// Hub owns admitted sessions on the tick goroutine. It binds each session to
// a controlled actor and fans bus events out to every session.
type Hub struct {
	state    *world.State
	src      Source
	clk      *clock.Clock
	sessions map[uint64]*Session
	unsub    event.Unsubscribe
	log      *zap.Logger
}

func NewHub(state *world.State, src Source, bus *event.Bus, clk *clock.Clock, log *zap.Logger) *Hub {
	h := &Hub{
		state:    state,
		src:      src,
		clk:      clk,
		sessions: make(map[uint64]*Session),
		log:      log,
	}
	h.unsub = bus.SubscribeAll(h.broadcast)
	return h
}

// Accept admits new sessions and forgets closed ones.
func (h *Hub) Accept() {
	for {
		select {
		case s := <-h.src.NewSessions():
			h.admit(s)
		case id := <-h.src.DeadSessions():
			h.drop(id)
		default:
			return
		}
	}
}

func (h *Hub) admit(s *Session) {
	ctl, ok := h.state.Controlled.Get(s.Actor)
	switch {
	case !h.state.Alive(s.Actor) || !ok:
		s.Reject("actor is not controllable")
		return
	case ctl.Session != 0:
		s.Reject("actor already has a session")
		return
	}
	ctl.Session = s.ID
	h.sessions[s.ID] = s
	s.Start()
	h.log.Info("session bound", zap.Uint64("session", s.ID), zap.Uint64("actor", uint64(s.Actor)))
}

func (h *Hub) drop(id uint64) {
	s, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	if ctl, ok := h.state.Controlled.Get(s.Actor); ok && ctl.Session == id {
		ctl.Session = 0
	}
	h.log.Info("session closed", zap.Uint64("session", id))
}

// SessionOf returns the session bound to actor.
func (h *Hub) SessionOf(actor ecs.EntityID) (*Session, bool) {
	ctl, ok := h.state.Controlled.Get(actor)
	if !ok || ctl.Session == 0 {
		return nil, false
	}
	s, ok := h.sessions[ctl.Session]
	return s, ok
}

func (h *Hub) Len() int { return len(h.sessions) }

func (h *Hub) broadcast(ev event.Event) {
	if len(h.sessions) == 0 {
		return
	}
	b, err := event.Marshal(ev, uint64(h.clk.Now()))
	if err != nil {
		h.log.Error("hub: marshal event", zap.String("kind", string(ev.Kind())), zap.Error(err))
		return
	}
	for _, s := range h.sessions {
		s.Send(b)
	}
}

// Flush hands every session's buffered events to its writer.
func (h *Hub) Flush() {
	for _, s := range h.sessions {
		s.FlushOutput()
	}
}

// Close disconnects every session and detaches from the bus.
func (h *Hub) Close() {
	h.unsub()
	for id, s := range h.sessions {
		s.Close()
		h.drop(id)
	}
}
