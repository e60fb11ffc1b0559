package replay

import (
	"encoding/hex"
	"hash"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/event"
)

// Digest folds every published event, stamped with its tick, into a running
// BLAKE2b-256 hash.
type Digest struct {
	h      hash.Hash
	clk    *clock.Clock
	events int
	log    *zap.Logger
	unsub  event.Unsubscribe
}

func NewDigest(bus *event.Bus, clk *clock.Clock, log *zap.Logger) *Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // only fails for oversized keys
	}
	d := &Digest{h: h, clk: clk, log: log}
	d.unsub = bus.SubscribeAll(d.observe)
	return d
}

func (d *Digest) observe(ev event.Event) {
	b, err := event.Marshal(ev, uint64(d.clk.Now()))
	if err != nil {
		d.log.Error("digest: marshal event", zap.String("kind", string(ev.Kind())), zap.Error(err))
		return
	}
	d.h.Write(b)
	d.h.Write([]byte{'\n'})
	d.events++
}

// Sum returns the hex digest of everything observed so far.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

func (d *Digest) Events() int { return d.events }

func (d *Digest) Close() { d.unsub() }
