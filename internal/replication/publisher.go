package replication

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/event"
)

// Publisher forwards every bus event to NATS as JSON on
// "<subject>.<kind>", with the kind lower-cased.
type Publisher struct {
	conn    *nats.Conn
	subject string
	clk     *clock.Clock
	log     *zap.Logger
	unsub   event.Unsubscribe
	failed  int
}

func Connect(url, subject string, bus *event.Bus, clk *clock.Clock, log *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("isotalia-sim"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	p := &Publisher{conn: conn, subject: subject, clk: clk, log: log}
	p.unsub = bus.SubscribeAll(p.forward)
	return p, nil
}

// Subject returns the subject an event kind is published on.
func (p *Publisher) Subject(k event.Kind) string {
	return p.subject + "." + strings.ToLower(string(k))
}

func (p *Publisher) forward(ev event.Event) {
	b, err := event.Marshal(ev, uint64(p.clk.Now()))
	if err != nil {
		p.log.Error("replication: marshal event", zap.String("kind", string(ev.Kind())), zap.Error(err))
		return
	}
	// Publish only buffers; it never waits on the network.
	if err := p.conn.Publish(p.Subject(ev.Kind()), b); err != nil {
		p.failed++
		if p.failed == 1 || p.failed%1000 == 0 {
			p.log.Warn("replication publish failed", zap.Int("failures", p.failed), zap.Error(err))
		}
	}
}

// Close detaches from the bus and drains buffered messages.
func (p *Publisher) Close(timeout time.Duration) {
	p.unsub()
	if err := p.conn.FlushTimeout(timeout); err != nil {
		p.log.Warn("replication flush", zap.Error(err))
	}
	p.conn.Close()
}
