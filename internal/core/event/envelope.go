package event

import "encoding/json"

// Envelope is the serialized form of an event for clients and replication.
type Envelope struct {
	Kind    Kind   `json:"kind"`
	Tick    uint64 `json:"tick"`
	Payload Event  `json:"payload"`
}

// Marshal encodes ev with the tick it was emitted on.
func Marshal(ev Event, tick uint64) ([]byte, error) {
	return json.Marshal(Envelope{Kind: ev.Kind(), Tick: tick, Payload: ev})
}
