// Package net ingests commands from WebSocket clients and streams simulation
// events back to them.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/config"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
)

// Intake receives decoded commands. *command.Queue satisfies it.
type Intake interface {
	Push(cmd command.Command) uint64
}

// Server upgrades HTTP requests to WebSocket sessions. New and dead sessions
// are handed to the tick goroutine through channels.
type Server struct {
	cfg      config.NetworkConfig
	intake   Intake
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64
	http     *http.Server
	listener net.Listener
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, intake Intake, log *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		intake: intake,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		log:      log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handle)
	s.http = &http.Server{Handler: mux}
	return s
}

// Handler exposes the upgrade endpoint, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.BindAddress, err)
	}
	s.listener = ln
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("websocket server stopped", zap.Error(err))
		}
	}()
	s.log.Info("websocket server listening", zap.String("addr", ln.Addr().String()), zap.String("path", s.cfg.Path))
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	actor, err := strconv.ParseUint(r.URL.Query().Get("actor"), 10, 64)
	if err != nil || actor == 0 {
		http.Error(w, "missing or invalid actor", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := newSession(conn, id, ecs.EntityID(actor), s.cfg, s.intake, s.notifyDead, s.log)
	select {
	case s.newConns <- sess:
		s.log.Info("client connected", zap.Uint64("session", id), zap.Uint64("actor", actor), zap.String("ip", sess.IP))
	default:
		s.log.Warn("connection queue full, rejecting client")
		sess.Reject("server busy")
	}
}

// NewSessions returns the channel of sessions awaiting admission.
func (s *Server) NewSessions() <-chan *Session { return s.newConns }

// DeadSessions returns the channel of closed session IDs.
func (s *Server) DeadSessions() <-chan uint64 { return s.deadCh }

func (s *Server) notifyDead(id uint64) {
	select {
	case s.deadCh <- id:
	default:
	}
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections. Hijacked WebSocket connections are
// closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
