package protocol

import "github.com/felipebrito/neoenergia-bike/config"

// request bodies coming in from the browser.

type PedalRequest struct {
	Player int `json:"player"`
}

type ChangePortRequest struct {
	Port string `json:"port"`
}

type ConfigRequest = config.GameConfigUpdate
