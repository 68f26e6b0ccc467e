package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/protocol"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

type fakeConn struct {
	sendCh chan []byte
	mu     sync.Mutex
	closed bool
}

func (f *fakeConn) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case f.sendCh <- cp:
	default:
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeRelay struct {
	mu      sync.Mutex
	winners []int
	resets  int
}

func (f *fakeRelay) Winner(p int) {
	f.mu.Lock()
	f.winners = append(f.winners, p)
	f.mu.Unlock()
}

func (f *fakeRelay) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeRelay) counts() ([]int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.winners...), f.resets
}

func testTuning() game.Tuning {
	tu := game.DefaultTuning()
	tu.Tick = 10 * time.Millisecond
	return tu
}

func startRoom(t *testing.T, tu game.Tuning) (*Room, *fakeRelay) {
	t.Helper()
	rl := &fakeRelay{}
	r := New(tu, 10, rl)
	go r.Run()
	t.Cleanup(r.Stop)
	return r, rl
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustState(t *testing.T, r *Room) protocol.State {
	t.Helper()
	st, err := r.State(ctxT(t))
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return st
}

func TestRoomJoinReceivesSnapshotWithFourPlayers(t *testing.T) {
	r, _ := startRoom(t, testTuning())

	fc := &fakeConn{sendCh: make(chan []byte, 8)}
	id, err := r.JoinViewer(ctxT(t), fc)
	if err != nil || id == "" {
		t.Fatalf("join: id=%q err=%v", id, err)
	}

	timeout := time.After(300 * time.Millisecond)
	for {
		select {
		case b := <-fc.sendCh:
			env, err := protocol.DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.T != protocol.MsgState {
				continue
			}
			state, err := protocol.DecodePayload[protocol.State](env)
			if err != nil {
				t.Fatalf("decode state: %v", err)
			}
			if len(state.Players) != game.NumPlayers {
				t.Fatalf("snapshot has %d players, want %d", len(state.Players), game.NumPlayers)
			}
			if state.Phase != "idle" {
				t.Fatalf("phase = %q, want idle", state.Phase)
			}
			return
		case <-timeout:
			t.Fatalf("timed out waiting for state snapshot")
		}
	}
}

func TestRoomSerialLinesMakePlayerReady(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	ctx := ctxT(t)

	r.HandleEvent(ctx, sensor.Parse("Jogador 1: Pedalada: True"))
	r.HandleEvent(ctx, sensor.Parse("🔍 Jogador 1: Pedalada #1 detectada"))

	st := mustState(t, r)
	p1 := st.Players[0]
	if !p1.Ready || !p1.Pedaling || p1.Pulses != 1 {
		t.Fatalf("player 1 = %+v, want ready, pedaling, 1 pulse", p1)
	}
	if p1.Energy != game.DefaultGainPerPulse {
		t.Fatalf("energy = %f, want %f", p1.Energy, game.DefaultGainPerPulse)
	}
	if st.ReadyCount != 1 || st.CanStart {
		t.Fatalf("ready=%d canStart=%v", st.ReadyCount, st.CanStart)
	}
}

func TestRoomStartRejectedWithTwoReady(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	ctx := ctxT(t)

	for _, p := range []int{1, 2} {
		if _, err := r.Pulse(ctx, p); err != nil {
			t.Fatalf("pulse %d: %v", p, err)
		}
	}

	err := r.StartGame(ctx)
	var rej *game.StartRejected
	if !errors.As(err, &rej) {
		t.Fatalf("start err = %v, want *game.StartRejected", err)
	}
	if rej.ReadyCount != 2 {
		t.Fatalf("ready count = %d, want 2", rej.ReadyCount)
	}
	if st := mustState(t, r); st.Active {
		t.Fatalf("game active after rejected start")
	}
}

func TestRoomStartAcceptedWhenAllReady(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	ctx := ctxT(t)

	for p := 1; p <= game.NumPlayers; p++ {
		r.HandleEvent(ctx, sensor.Event{Kind: sensor.Pulse, Player: p, Seq: 1})
	}
	if st := mustState(t, r); !st.CanStart || st.Phase != "ready" {
		t.Fatalf("canStart=%v phase=%q, want ready", st.CanStart, st.Phase)
	}
	if err := r.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := mustState(t, r); !st.Active || st.Phase != "active" {
		t.Fatalf("active=%v phase=%q after start", st.Active, st.Phase)
	}
}

func TestRoomWinRelaysAndResets(t *testing.T) {
	r, rl := startRoom(t, testTuning())
	ctx := ctxT(t)
	fc := &fakeConn{sendCh: make(chan []byte, 512)}
	if _, err := r.JoinViewer(ctx, fc); err != nil {
		t.Fatalf("join: %v", err)
	}

	var last game.PulseResult
	for i := 0; i < 200 && last.Winner == 0; i++ {
		res, err := r.Pulse(ctx, 3)
		if err != nil {
			t.Fatalf("pulse: %v", err)
		}
		last = res
	}
	if last.Winner != 3 {
		t.Fatalf("winner = %d, want 3", last.Winner)
	}

	winners, _ := rl.counts()
	if len(winners) != 1 || winners[0] != 3 {
		t.Fatalf("relay winners = %v, want [3]", winners)
	}

	st := mustState(t, r)
	if st.Active || st.LastWinner != 3 {
		t.Fatalf("active=%v lastWinner=%d", st.Active, st.LastWinner)
	}
	for _, p := range st.Players {
		if p.Energy != 0 || p.Ready || p.Pedaling {
			t.Fatalf("player %d not reset: %+v", p.ID, p)
		}
	}
	if st.Players[2].Wins != 1 {
		t.Fatalf("wins for player 3 = %d, want 1", st.Players[2].Wins)
	}

	timeout := time.After(time.Second)
	for {
		select {
		case b := <-fc.sendCh:
			env, err := protocol.DecodeEnvelope(b)
			if err != nil || env.T != protocol.MsgWinner {
				continue
			}
			w, err := protocol.DecodePayload[protocol.Winner](env)
			if err != nil || w.PlayerID != 3 {
				t.Fatalf("winner push = %+v, %v", w, err)
			}
			return
		case <-timeout:
			t.Fatalf("viewer never got the winner push")
		}
	}
}

func TestRoomResetTwiceIsStable(t *testing.T) {
	r, rl := startRoom(t, testTuning())
	ctx := ctxT(t)

	_, _ = r.Pulse(ctx, 2)
	if err := r.ResetGame(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	first := mustState(t, r)
	if err := r.ResetGame(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	second := mustState(t, r)

	for i := range first.Players {
		if first.Players[i] != second.Players[i] {
			t.Fatalf("player %d differs after second reset: %+v vs %+v", i+1, first.Players[i], second.Players[i])
		}
		if first.Players[i].Energy != 0 || first.Players[i].Ready {
			t.Fatalf("player %d not zeroed: %+v", i+1, first.Players[i])
		}
	}
	if _, resets := rl.counts(); resets != 2 {
		t.Fatalf("relay resets = %d, want 2", resets)
	}
}

func TestRoomDecaysWithoutSerialTraffic(t *testing.T) {
	tu := testTuning()
	tu.IdleTimeout = 30 * time.Millisecond
	tu.DecayPerSecond = 20
	r, _ := startRoom(t, tu)
	ctx := ctxT(t)

	for i := 0; i < 10; i++ {
		_, _ = r.Pulse(ctx, 4)
	}
	start := mustState(t, r).Players[3].Energy
	if start <= 0 {
		t.Fatalf("energy = %f after pulses", start)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p := mustState(t, r).Players[3]
		if !p.Pedaling && p.Energy < start {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("energy never decayed after idle timeout")
}

func TestRoomSetRatesChangesGain(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	ctx := ctxT(t)

	if err := r.SetRates(ctx, 5, 1); err != nil {
		t.Fatalf("set rates: %v", err)
	}
	res, err := r.Pulse(ctx, 1)
	if err != nil {
		t.Fatalf("pulse: %v", err)
	}
	if res.Energy != 5 {
		t.Fatalf("energy = %f, want 5", res.Energy)
	}
}

func TestRoomBadPlayer(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	if _, err := r.Pulse(ctxT(t), 7); !errors.Is(err, game.ErrBadPlayer) {
		t.Fatalf("err = %v, want ErrBadPlayer", err)
	}
}

func TestRoomSerialStatusInSnapshot(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	r.SerialStatus(true, "/dev/ttyACM0")
	st := mustState(t, r)
	if !st.SerialConnected || st.SerialPort != "/dev/ttyACM0" {
		t.Fatalf("serial status = %v %q", st.SerialConnected, st.SerialPort)
	}
}

func TestRoomLeaveClosesViewer(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	fc := &fakeConn{sendCh: make(chan []byte, 64)}
	id, err := r.JoinViewer(ctxT(t), fc)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	r.LeaveViewer(id)
	_ = mustState(t, r) // Leave is processed before this snapshot
	if !fc.isClosed() {
		t.Fatalf("viewer not closed on leave")
	}
}

func TestRoomRequestsFailAfterStop(t *testing.T) {
	r := New(testTuning(), 10, nil)
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()
	r.Stop()
	<-done

	if _, err := r.State(ctxT(t)); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestRoomConcurrentReadersSeeConsistentSlots(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	ctx := ctxT(t)

	var wg sync.WaitGroup
	for p := 1; p <= game.NumPlayers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = r.Pulse(ctx, p)
			}
		}(p)
	}
	errs := make(chan string, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			st, err := r.State(ctx)
			if err != nil {
				return
			}
			for _, pl := range st.Players {
				if pl.Energy < 0 || pl.Energy > game.MaxEnergy {
					select {
					case errs <- "energy out of range":
					default:
					}
				}
				if pl.Pulses > 0 && !pl.Ready {
					select {
					case errs <- "pulsed player not ready":
					default:
					}
				}
			}
			if st.CanStart != (st.ReadyCount == game.NumPlayers) {
				select {
				case errs <- "canStart disagrees with ready count":
				default:
				}
			}
		}
	}()
	wg.Wait()
	select {
	case msg := <-errs:
		t.Fatalf("%s", msg)
	default:
	}
}

// stuckConn never finishes a Send until it is closed.
type stuckConn struct {
	sends  chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newStuckConn() *stuckConn {
	return &stuckConn{sends: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (s *stuckConn) Send([]byte) error {
	select {
	case s.sends <- struct{}{}:
	default:
	}
	<-s.closed
	return errors.New("closed")
}

func (s *stuckConn) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestRoomStaysResponsiveWithStuckViewer(t *testing.T) {
	r, _ := startRoom(t, testTuning())
	stuck := newStuckConn()
	if _, err := r.JoinViewer(ctxT(t), stuck); err != nil {
		t.Fatalf("join: %v", err)
	}
	healthy := &fakeConn{sendCh: make(chan []byte, 64)}
	if _, err := r.JoinViewer(ctxT(t), healthy); err != nil {
		t.Fatalf("join: %v", err)
	}

	select {
	case <-stuck.sends:
	case <-time.After(time.Second):
		t.Fatalf("stuck viewer never got a send")
	}

	// several broadcast periods while the stuck viewer holds its Send
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if _, err := r.Pulse(ctx, 1); err != nil {
			cancel()
			t.Fatalf("pulse blocked behind stuck viewer: %v", err)
		}
		if _, err := r.State(ctx); err != nil {
			cancel()
			t.Fatalf("state blocked behind stuck viewer: %v", err)
		}
		cancel()
		time.Sleep(20 * time.Millisecond)
	}

	got := 0
	for len(healthy.sendCh) > 0 {
		<-healthy.sendCh
		got++
	}
	if got < 2 {
		t.Fatalf("healthy viewer got %d messages, want broadcasts to keep flowing", got)
	}
}

func TestViewerOverflowReportsFalse(t *testing.T) {
	stuck := newStuckConn()
	v := newViewer(stuck)
	defer v.stop()

	v.push([]byte("first"))
	<-stuck.sends
	for i := 0; i < viewerQueue; i++ {
		if !v.push([]byte("x")) {
			t.Fatalf("push %d failed before queue was full", i)
		}
	}
	if v.push([]byte("overflow")) {
		t.Fatalf("push succeeded on a full queue")
	}
	v.stop()
	if v.push([]byte("late")) {
		t.Fatalf("push succeeded after stop")
	}
}
