package network

import (
	"sync"

	"golang.org/x/time/rate"
)

// pedalLimits keeps one token bucket per player for the manual pulse route.
type pedalLimits struct {
	mu       sync.Mutex
	perSec   float64
	limiters map[int]*rate.Limiter
}

func newPedalLimits(perSec float64) *pedalLimits {
	return &pedalLimits{perSec: perSec, limiters: make(map[int]*rate.Limiter)}
}

func (p *pedalLimits) allow(player int) bool {
	if p.perSec <= 0 {
		return true
	}
	p.mu.Lock()
	l, ok := p.limiters[player]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.perSec), max(1, int(p.perSec)))
		p.limiters[player] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
