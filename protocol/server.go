package protocol

import (
	"github.com/felipebrito/neoenergia-bike/config"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

type State struct {
	Tick            int              `json:"tick"`
	Phase           string           `json:"phase"`
	Active          bool             `json:"game_active"`
	CanStart        bool             `json:"game_can_start"`
	ReadyCount      int              `json:"ready_count"`
	SerialConnected bool             `json:"serial_connected"`
	SerialPort      string           `json:"serial_port,omitempty"`
	LastWinner      int              `json:"last_winner,omitempty"`
	Players         []PlayerSnapshot `json:"players"`
}

type PlayerSnapshot struct {
	ID         int     `json:"id"`
	Energy     float64 `json:"energy"`
	Pedaling   bool    `json:"is_pedaling"`
	Pulses     int     `json:"pedal_count"`
	Ready      bool    `json:"ready"`
	Inactivity int     `json:"inactivity_count"`
	Wins       int     `json:"wins"`
}

// Winner is pushed once per win, before the reset snapshot.
type Winner struct {
	PlayerID int `json:"player_id"`
}

type Reset struct {
	PlayerID int `json:"player_id"`
}

type SerialStatus struct {
	Connected bool   `json:"connected"`
	Port      string `json:"current_port"`
	Baud      int    `json:"baudrate,omitempty"`
}

type SerialPorts struct {
	Ports     []sensor.PortInfo `json:"ports"`
	Port      string            `json:"current_port"`
	Connected bool              `json:"connected"`
}

type StartResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	ReadyCount   int    `json:"ready_count"`
	PlayersReady []bool `json:"players_ready,omitempty"`
}

type PedalResponse struct {
	Success bool    `json:"success"`
	Energy  float64 `json:"energy"`
	Winner  int     `json:"winner,omitempty"`
	Message string  `json:"message,omitempty"`
}

type ConfigResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Config  config.GameConfig `json:"config"`
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
