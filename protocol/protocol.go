package protocol

import (
	"encoding/json"
)

// WebSocket envelope types pushed to the browser.
const (
	MsgState  = "state"
	MsgWinner = "winner"
	MsgReset  = "reset"
	MsgSerial = "serial"
)

// BroadcastHz is the default state push rate to viewers.
const BroadcastHz = 10

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"` // raw payload bytes
}
