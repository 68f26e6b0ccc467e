package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEnergyGain  = 1.5
	DefaultEnergyDecay = 2.5
	DefaultLEDStrobe   = 200

	MinEnergyGain  = 0.1
	MaxEnergyGain  = 10.0
	MinEnergyDecay = 0.1
	MaxEnergyDecay = 20.0
	MinLEDStrobe   = 50
	MaxLEDStrobe   = 2000
)

// GameConfig is the persisted tuning record. Field names match the file the
// installation has always written.
type GameConfig struct {
	EnergyGainRate  float64 `json:"energy_gain_rate"`
	EnergyDecayRate float64 `json:"energy_decay_rate"`
	LEDStrobeRate   int     `json:"led_strobe_rate"`
}

// GameConfigUpdate is a partial update; nil fields are left alone.
type GameConfigUpdate struct {
	EnergyGainRate  *float64 `json:"energy_gain_rate,omitempty"`
	EnergyDecayRate *float64 `json:"energy_decay_rate,omitempty"`
	LEDStrobeRate   *int     `json:"led_strobe_rate,omitempty"`
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		EnergyGainRate:  DefaultEnergyGain,
		EnergyDecayRate: DefaultEnergyDecay,
		LEDStrobeRate:   DefaultLEDStrobe,
	}
}

// Clamped forces every field into its safe range.
func (c GameConfig) Clamped() GameConfig {
	c.EnergyGainRate = clampFloat(c.EnergyGainRate, MinEnergyGain, MaxEnergyGain)
	c.EnergyDecayRate = clampFloat(c.EnergyDecayRate, MinEnergyDecay, MaxEnergyDecay)
	c.LEDStrobeRate = max(MinLEDStrobe, min(MaxLEDStrobe, c.LEDStrobeRate))
	return c
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	return max(lo, min(hi, v))
}

// GameStore guards the in-memory config and its file.
type GameStore struct {
	path string
	mu   sync.RWMutex
	cfg  GameConfig
}

// LoadGameStore never fails: a missing, unreadable or malformed file yields
// defaults, which are then written back so a valid file exists.
func LoadGameStore(path string) *GameStore {
	s := &GameStore{path: path, cfg: DefaultGameConfig()}

	cfg, err := readGameConfig(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("file", path).Msg("no game config, writing defaults")
	case err != nil:
		log.Warn().Err(err).Str("file", path).Msg("game config unusable, falling back to defaults")
	default:
		s.cfg = cfg
		log.Info().
			Float64("gain", cfg.EnergyGainRate).
			Float64("decay", cfg.EnergyDecayRate).
			Int("strobe_ms", cfg.LEDStrobeRate).
			Msg("game config loaded")
		if saveErr := s.save(); saveErr != nil {
			log.Warn().Err(saveErr).Msg("could not rewrite clamped game config")
		}
		return s
	}

	if err := s.save(); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("could not write default game config")
	}
	return s
}

func readGameConfig(path string) (GameConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return GameConfig{}, err
	}
	cfg := DefaultGameConfig()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return GameConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg.Clamped(), nil
}

func (s *GameStore) Get() GameConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies u, clamps, and persists. The in-memory config is updated
// even if the write fails; the error is returned for the caller to report.
func (s *GameStore) Update(u GameConfigUpdate) (GameConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	if u.EnergyGainRate != nil {
		next.EnergyGainRate = *u.EnergyGainRate
	}
	if u.EnergyDecayRate != nil {
		next.EnergyDecayRate = *u.EnergyDecayRate
	}
	if u.LEDStrobeRate != nil {
		next.LEDStrobeRate = *u.LEDStrobeRate
	}
	s.cfg = next.Clamped()
	if err := s.saveLocked(); err != nil {
		return s.cfg, err
	}
	log.Info().
		Float64("gain", s.cfg.EnergyGainRate).
		Float64("decay", s.cfg.EnergyDecayRate).
		Int("strobe_ms", s.cfg.LEDStrobeRate).
		Msg("game config saved")
	return s.cfg, nil
}

func (s *GameStore) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *GameStore) saveLocked() error {
	return writeJSON(s.path, s.cfg)
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
