package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/config"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
)

// Session is one client connection bound to a single actor. Network I/O runs
// in dedicated goroutines; outBuf is touched only by the tick goroutine.
type Session struct {
	ID    uint64
	Actor ecs.EntityID
	IP    string

	conn     *websocket.Conn
	cfg      config.NetworkConfig
	intake   Intake
	onClose  func(uint64)
	OutQueue chan []byte

	outBuf [][]byte

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// readLoop only
	cmdCount   int
	cmdResetAt int64

	log *zap.Logger
}

func newSession(conn *websocket.Conn, id uint64, actor ecs.EntityID, cfg config.NetworkConfig, intake Intake, onClose func(uint64), log *zap.Logger) *Session {
	return &Session{
		ID:       id,
		Actor:    actor,
		IP:       conn.RemoteAddr().String(),
		conn:     conn,
		cfg:      cfg,
		intake:   intake,
		onClose:  onClose,
		OutQueue: make(chan []byte, cfg.OutQueueSize),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id), zap.Uint64("actor", uint64(actor))),
	}
}

// Start launches the reader and writer goroutines. Called once the hub has
// admitted the session.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Reject tells the client why it was refused and closes the connection.
func (s *Session) Reject(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.Close()
}

// Send buffers a message until the next FlushOutput. Tick goroutine only.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// FlushOutput hands buffered messages to the writer. A full OutQueue
// disconnects the session.
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, disconnecting slow client")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func (s *Session) readLoop() {
	defer s.Close()

	if s.cfg.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	s.extendRead()
	s.conn.SetPongHandler(func(string) error {
		s.extendRead()
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		s.extendRead()

		if s.overLimit() {
			s.log.Warn("command rate exceeded, disconnecting", zap.Int("per_sec", s.cmdCount))
			return
		}

		cmd, err := command.Decode(raw)
		if err != nil {
			s.log.Debug("dropping undecodable command", zap.Error(err))
			continue
		}
		if cmd.Actor == 0 {
			cmd.Actor = s.Actor
		}
		if cmd.Actor != s.Actor {
			s.log.Warn("dropping command for another actor", zap.Uint64("named", uint64(cmd.Actor)))
			continue
		}
		s.intake.Push(cmd)
	}
}

func (s *Session) extendRead() {
	if s.cfg.ReadTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
}

func (s *Session) overLimit() bool {
	if s.cfg.CommandsPerSec <= 0 {
		return false
	}
	now := time.Now().Unix()
	if now != s.cmdResetAt {
		s.cmdCount = 0
		s.cmdResetAt = now
	}
	s.cmdCount++
	return s.cmdCount > s.cfg.CommandsPerSec
}

func (s *Session) writeLoop() {
	defer s.Close()

	period := s.cfg.ReadTimeout * 9 / 10
	if period <= 0 {
		period = 50 * time.Second
	}
	ping := time.NewTicker(period)
	defer ping.Stop()

	for {
		select {
		case data := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
