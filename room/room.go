package room

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/protocol"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

// Room owns the game state. Every read and write happens on the Run
// goroutine, so a snapshot can never observe a half-applied event.
type Room struct {
	Inbox          chan any
	tuning         game.Tuning
	broadcastEvery int
	state          game.State
	tick           int
	clients        map[string]*viewer
	nextID         int
	relay          Relay
	now            func() time.Time
	quit           chan struct{}

	serialConnected bool
	serialPort      string
}

func New(tuning game.Tuning, broadcastHz int, relay Relay) *Room {
	if tuning.Tick <= 0 {
		tuning.Tick = game.DefaultTick
	}
	if broadcastHz <= 0 {
		broadcastHz = protocol.BroadcastHz
	}
	ticksPerSecond := int(time.Second / tuning.Tick)
	broadcastEvery := max(1, ticksPerSecond/broadcastHz)
	if relay == nil {
		relay = nopRelay{}
	}
	return &Room{
		Inbox:          make(chan any, 256),
		tuning:         tuning,
		broadcastEvery: broadcastEvery,
		clients:        make(map[string]*viewer),
		nextID:         1,
		relay:          relay,
		now:            time.Now,
		quit:           make(chan struct{}),
	}
}

func (r *Room) Stop() {
	close(r.quit)
}

func (r *Room) Run() {
	ticker := time.NewTicker(r.tuning.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			r.closeViewers()
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
		case <-ticker.C:
			r.step()
		}
	}
}

func (r *Room) step() {
	r.tick++
	for _, p := range game.Decay(&r.state, r.tuning, r.now()) {
		log.Debug().Int("player", p).Dur("idle", r.tuning.IdleTimeout).Msg("pedaling timed out")
	}
	if r.tick%r.broadcastEvery == 0 {
		r.broadcastState()
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		viewerID := fmt.Sprintf("v%d", r.nextID)
		r.nextID++
		v := newViewer(c.Conn)
		r.clients[viewerID] = v
		r.sendStateTo(v)
		c.Reply <- JoinResult{ViewerID: viewerID}
	case Leave:
		r.removeViewer(c.ViewerID)
	case SerialEvent:
		r.applySerial(c.Event)
	case SerialChange:
		r.serialConnected = c.Connected
		r.serialPort = c.Port
		r.broadcast(protocol.MsgSerial, protocol.SerialStatus{Connected: c.Connected, Port: c.Port})
	case ManualPulse:
		res, err := game.ApplyManualPulse(&r.state, r.tuning, c.Player, r.now())
		if err == nil {
			r.afterPulse(res)
		}
		c.Reply <- PulseReply{Result: res, Err: err}
	case Start:
		err := game.Start(&r.state)
		if err != nil {
			log.Info().Err(err).Msg("start rejected")
		} else {
			log.Info().Msg("game started")
			r.broadcastState()
		}
		c.Reply <- err
	case Reset:
		game.Reset(&r.state)
		log.Info().Msg("game reset")
		r.relay.Reset()
		r.broadcast(protocol.MsgReset, protocol.Reset{PlayerID: 0})
		r.broadcastState()
		c.Reply <- struct{}{}
	case Snapshot:
		c.Reply <- r.buildSnapshot()
	case SetRates:
		r.tuning.GainPerPulse = c.Gain
		r.tuning.DecayPerSecond = c.Decay
		log.Info().Float64("gain", c.Gain).Float64("decay", c.Decay).Msg("rates updated")
	default:
		log.Error().Type("cmd", cmd).Msg("room: unknown command")
	}
}

func (r *Room) applySerial(ev sensor.Event) {
	now := r.now()
	switch ev.Kind {
	case sensor.Pulse:
		res, err := game.ApplyPulse(&r.state, r.tuning, ev.Player, ev.Seq, now)
		if err != nil {
			log.Warn().Err(err).Msg("serial pulse rejected")
			return
		}
		if res.Regressed {
			log.Debug().Int("player", ev.Player).Int("seq", ev.Seq).Msg("firmware counter went backwards")
		}
		r.afterPulse(res)
	case sensor.StateChange:
		if err := game.ApplyStateChange(&r.state, ev.Player, ev.Pedaling, now); err != nil {
			log.Warn().Err(err).Msg("serial state change rejected")
		}
	case sensor.Count:
		if err := game.SyncCount(&r.state, ev.Player, ev.Seq); err != nil {
			log.Warn().Err(err).Msg("serial count rejected")
		}
	}
}

func (r *Room) afterPulse(res game.PulseResult) {
	if res.FirstPulse {
		log.Info().Int("player", res.Player).Int("ready", r.state.ReadyCount()).Msg("player ready")
		if r.state.CanStart {
			log.Info().Msg("all players ready, game can start")
		}
	}
	if res.Winner == 0 {
		return
	}
	log.Info().Int("player", res.Winner).Msg("winner")
	r.relay.Winner(res.Winner)
	r.broadcast(protocol.MsgWinner, protocol.Winner{PlayerID: res.Winner})
	r.broadcastState()
}

func (r *Room) removeViewer(viewerID string) {
	if v, ok := r.clients[viewerID]; ok {
		v.stop()
	}
	delete(r.clients, viewerID)
}

func (r *Room) closeViewers() {
	for id := range r.clients {
		r.removeViewer(id)
	}
}

func (r *Room) broadcastState() {
	r.broadcast(protocol.MsgState, r.buildSnapshot())
}

func (r *Room) broadcast(t string, payload any) {
	if len(r.clients) == 0 {
		return
	}
	b, err := protocol.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("type", t).Msg("encode broadcast")
		return
	}

	var failed []string
	for id, v := range r.clients {
		if !v.push(b) {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		log.Info().Str("viewer", id).Msg("dropping slow or closed viewer")
		r.removeViewer(id)
	}
}

func (r *Room) sendStateTo(v *viewer) {
	b, err := protocol.Encode(protocol.MsgState, r.buildSnapshot())
	if err != nil {
		return
	}
	v.push(b)
}

func (r *Room) buildSnapshot() protocol.State {
	snapshot := protocol.State{
		Tick:            r.tick,
		Phase:           r.state.Phase().String(),
		Active:          r.state.Active,
		CanStart:        r.state.CanStart,
		ReadyCount:      r.state.ReadyCount(),
		SerialConnected: r.serialConnected,
		SerialPort:      r.serialPort,
		LastWinner:      r.state.LastWinner,
		Players:         make([]protocol.PlayerSnapshot, 0, game.NumPlayers),
	}
	for i, s := range r.state.Slots {
		snapshot.Players = append(snapshot.Players, protocol.PlayerSnapshot{
			ID:         i + 1,
			Energy:     s.Energy,
			Pedaling:   s.Pedaling,
			Pulses:     s.Pulses,
			Ready:      s.Ready,
			Inactivity: s.Inactivity,
			Wins:       r.state.Wins[i],
		})
	}
	return snapshot
}

type nopRelay struct{}

func (nopRelay) Winner(int) {}
func (nopRelay) Reset()     {}
