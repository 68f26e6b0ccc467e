package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

type Encoding string

const (
	JSON  Encoding = "json"
	Lines Encoding = "lines"
	OSC   Encoding = "osc"
)

const (
	TypeWinner = "winner"
	TypeReset  = "reset"

	OSCPrefix = "/bikejj/"
)

func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case JSON, Lines, OSC:
		return e, nil
	case "":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown udp encoding %q (want json, lines or osc)", s)
	}
}

// Message is what the visualization sink receives. Reset carries player 0.
type Message struct {
	Type      string  `json:"type"`
	PlayerID  int     `json:"player_id"`
	Timestamp float64 `json:"timestamp"` // unix seconds
}

// Encode renders m for the wire.
//
//	json:  {"type":"winner","player_id":3,"timestamp":1700000000.25}
//	lines: winner 3 1700000000
//	osc:   /bikejj/winner ,ii 3 1700000000
func Encode(enc Encoding, m Message) ([]byte, error) {
	switch enc {
	case JSON:
		return json.Marshal(m)
	case Lines:
		return []byte(fmt.Sprintf("%s %d %d", m.Type, m.PlayerID, int64(m.Timestamp))), nil
	case OSC:
		msg := osc.NewMessage(OSCPrefix+m.Type, int32(m.PlayerID), int32(m.Timestamp))
		return msg.MarshalBinary()
	default:
		return nil, fmt.Errorf("encode: unknown encoding %q", enc)
	}
}
