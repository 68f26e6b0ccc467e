package game

import "time"

// Internal truth authoritative game state

const NumPlayers = 4

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseReady
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseActive:
		return "active"
	default:
		return "idle"
	}
}

type State struct {
	Active     bool
	CanStart   bool
	Slots      [NumPlayers]Slot
	LastWinner int
	Wins       [NumPlayers]int
}

type Slot struct {
	Energy     float64
	Pedaling   bool
	LastPulse  time.Time
	Pulses     int
	Ready      bool
	Inactivity int
}

// Phase derives the state machine position from the flags.
func (s *State) Phase() Phase {
	switch {
	case s.Active:
		return PhaseActive
	case s.CanStart:
		return PhaseReady
	default:
		return PhaseIdle
	}
}

func (s *State) ReadyCount() int {
	n := 0
	for i := range s.Slots {
		if s.Slots[i].Ready {
			n++
		}
	}
	return n
}

func (s *State) PlayersReady() [NumPlayers]bool {
	var out [NumPlayers]bool
	for i := range s.Slots {
		out[i] = s.Slots[i].Ready
	}
	return out
}

// ValidPlayer reports whether id is a 1-based player number.
func ValidPlayer(id int) bool {
	return id >= 1 && id <= NumPlayers
}

func (s *State) slot(player int) *Slot {
	return &s.Slots[player-1]
}

func (s *State) refreshCanStart() {
	s.CanStart = s.ReadyCount() == NumPlayers
}

func (s *State) clearSlots() {
	for i := range s.Slots {
		s.Slots[i] = Slot{}
	}
	s.CanStart = false
}
