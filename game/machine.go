package game

import (
	"errors"
	"fmt"
)

var ErrNotReady = errors.New("not all players are ready")

// StartRejected is returned by Start when the ready gate is closed.
type StartRejected struct {
	ReadyCount   int
	PlayersReady [NumPlayers]bool
}

func (e *StartRejected) Error() string {
	return fmt.Sprintf("cannot start: only %d/%d players ready", e.ReadyCount, NumPlayers)
}

func (e *StartRejected) Unwrap() error { return ErrNotReady }

// Start moves ready -> active. Slots are zeroed so the race begins level.
func Start(s *State) error {
	if !s.CanStart {
		return &StartRejected{ReadyCount: s.ReadyCount(), PlayersReady: s.PlayersReady()}
	}
	s.clearSlots()
	s.Active = true
	return nil
}

// Reset returns to idle from any phase. Calling it twice is the same as once.
func Reset(s *State) {
	s.clearSlots()
	s.Active = false
}

func win(s *State, player int) {
	s.LastWinner = player
	s.Wins[player-1]++
	Reset(s)
}
