package game

import (
	"errors"
	"fmt"
	"time"
)

var ErrBadPlayer = errors.New("player must be between 1 and 4")

type PulseResult struct {
	Player     int
	Energy     float64 // energy after the pulse, before any win reset
	Winner     int     // 0 unless this pulse won the game
	FirstPulse bool
	Regressed  bool // firmware counter went backwards
	Debounced  bool
}

// ApplyPulse records one pedal detection. seq is the firmware counter and is
// stored as reported, even when it goes backwards. A pulse that brings the
// player to MaxEnergy wins: the winner is recorded and every slot is reset.
func ApplyPulse(s *State, t Tuning, player, seq int, now time.Time) (PulseResult, error) {
	if !ValidPlayer(player) {
		return PulseResult{}, fmt.Errorf("pulse for player %d: %w", player, ErrBadPlayer)
	}
	sl := s.slot(player)
	res := PulseResult{Player: player}

	if t.Debounce > 0 && !sl.LastPulse.IsZero() && now.Sub(sl.LastPulse) < t.Debounce {
		sl.Pedaling = true
		res.Energy = sl.Energy
		res.Debounced = true
		return res, nil
	}

	res.Regressed = seq < sl.Pulses
	sl.Pulses = seq
	sl.Pedaling = true
	sl.LastPulse = now
	sl.Inactivity = 0

	if !sl.Ready {
		sl.Ready = true
		res.FirstPulse = true
		s.refreshCanStart()
	}

	if sl.Energy < MaxEnergy {
		sl.Energy = min(MaxEnergy, sl.Energy+t.GainPerPulse)
	}
	res.Energy = sl.Energy

	if sl.Energy >= MaxEnergy {
		res.Winner = player
		win(s, player)
	}
	return res, nil
}

// ApplyManualPulse is the keyboard path: same rules as a firmware pulse with
// the counter advanced locally.
func ApplyManualPulse(s *State, t Tuning, player int, now time.Time) (PulseResult, error) {
	if !ValidPlayer(player) {
		return PulseResult{}, fmt.Errorf("manual pulse for player %d: %w", player, ErrBadPlayer)
	}
	return ApplyPulse(s, t, player, s.slot(player).Pulses+1, now)
}

// ApplyStateChange handles the firmware's explicit pedaling on/off signal.
// Energy is untouched; only Decay lowers it.
func ApplyStateChange(s *State, player int, pedaling bool, now time.Time) error {
	if !ValidPlayer(player) {
		return fmt.Errorf("state change for player %d: %w", player, ErrBadPlayer)
	}
	sl := s.slot(player)
	if pedaling {
		sl.Pedaling = true
		sl.LastPulse = now
		sl.Inactivity = 0
		return nil
	}
	sl.Pedaling = false
	sl.Inactivity++
	return nil
}

// SyncCount overwrites the pulse counter from a firmware total line.
func SyncCount(s *State, player, total int) error {
	if !ValidPlayer(player) {
		return fmt.Errorf("count for player %d: %w", player, ErrBadPlayer)
	}
	s.slot(player).Pulses = total
	return nil
}
