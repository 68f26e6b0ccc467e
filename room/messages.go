package room

import (
	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/protocol"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

// Conn is a push viewer (a browser WebSocket). Send may block; each viewer
// gets its own sending goroutine.
type Conn interface {
	Send([]byte) error
	Close() error
}

// Relay receives win/reset events for the external visualization. Both
// methods must return without blocking.
type Relay interface {
	Winner(player int)
	Reset()
}

// Join: a viewer connected
type Join struct {
	Conn  Conn
	Reply chan<- JoinResult
}

type JoinResult struct {
	ViewerID string
}

// Leave: issued on disconnect
type Leave struct {
	ViewerID string
}

// SerialEvent: one parsed firmware line
type SerialEvent struct {
	Event sensor.Event
}

// SerialChange: reader connected or lost the port
type SerialChange struct {
	Connected bool
	Port      string
}

// ManualPulse: keyboard/HTTP pulse for a player
type ManualPulse struct {
	Player int
	Reply  chan<- PulseReply
}

type PulseReply struct {
	Result game.PulseResult
	Err    error
}

// Start asks for ready -> active; Reply gets nil or *game.StartRejected.
type Start struct {
	Reply chan<- error
}

type Reset struct {
	Reply chan<- struct{}
}

type Snapshot struct {
	Reply chan<- protocol.State
}

// SetRates pushes edited gain/decay rates into the running game.
type SetRates struct {
	Gain  float64
	Decay float64
}
