package replication

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-testutil"
	"go.uber.org/zap/zaptest"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/event"
)

func TestPublisherForwardsEvents(t *testing.T) {
	log := zaptest.NewLogger(t)
	srv, err := NewEmbeddedServer(log, WithPort(server.RANDOM_PORT), WithStartTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()

	sub, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 4)
	if _, err := sub.ChanSubscribe("test.events.>", msgs); err != nil {
		t.Fatal(err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatal(err)
	}

	bus := event.NewBus()
	clk := clock.New(50 * time.Millisecond)
	clk.Advance(12)
	pub, err := Connect(srv.ClientURL(), "test.events", bus, clk, log)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close(time.Second)

	bus.Publish(event.EntityMoved{Entity: 3, X: 4, Y: 5})

	select {
	case m := <-msgs:
		testutil.AssertEqual(t, "subject", m.Subject, "test.events.entity_moved")
		var env struct {
			Kind    string `json:"kind"`
			Tick    uint64 `json:"tick"`
			Payload struct {
				X int32 `json:"x"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(m.Data, &env); err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, "kind", env.Kind, "ENTITY_MOVED")
		testutil.AssertEqual(t, "tick", env.Tick, uint64(12))
		testutil.AssertEqual(t, "x", env.Payload.X, int32(4))
	case <-time.After(3 * time.Second):
		t.Fatal("no message received")
	}
}
