package game

import "time"

// Decay is one scheduler tick. Pedaling players that have been quiet longer
// than the idle timeout are switched off first, then every idle player loses
// DecayPerSecond scaled to the tick length, floored at zero. It returns the
// players whose pedaling flag timed out on this tick.
func Decay(s *State, t Tuning, now time.Time) []int {
	if t.DecayRequiresActive && !s.Active {
		return nil
	}

	var timedOut []int
	step := t.DecayPerSecond * t.Tick.Seconds()
	for i := range s.Slots {
		sl := &s.Slots[i]
		if sl.Pedaling && now.Sub(sl.LastPulse) > t.IdleTimeout {
			sl.Pedaling = false
			timedOut = append(timedOut, i+1)
		}
		if sl.Pedaling || sl.Energy <= 0 {
			continue
		}
		sl.Energy = max(0, sl.Energy-step)
	}
	return timedOut
}
