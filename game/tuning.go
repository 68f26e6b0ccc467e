package game

import "time"

const (
	MaxEnergy = 100.0

	DefaultGainPerPulse   = 1.5 // % per accepted pulse
	DefaultDecayPerSecond = 2.5 // % per second while idle
	DefaultTick           = 100 * time.Millisecond
	DefaultIdleTimeout    = 2 * time.Second
)

// Tuning carries the rates the ledger and the decay step read. Gain and
// decay come from the persisted game config; the rest from process settings.
type Tuning struct {
	GainPerPulse        float64
	DecayPerSecond      float64
	Tick                time.Duration
	IdleTimeout         time.Duration
	Debounce            time.Duration // 0 disables
	DecayRequiresActive bool
}

func DefaultTuning() Tuning {
	return Tuning{
		GainPerPulse:   DefaultGainPerPulse,
		DecayPerSecond: DefaultDecayPerSecond,
		Tick:           DefaultTick,
		IdleTimeout:    DefaultIdleTimeout,
	}
}
