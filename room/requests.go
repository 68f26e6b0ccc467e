package room

import (
	"context"
	"errors"

	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/protocol"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

var ErrStopped = errors.New("room stopped")

// Request helpers for callers outside the Run goroutine. Each one gives up
// when ctx ends or the room stops.

func (r *Room) send(ctx context.Context, cmd any) error {
	select {
	case r.Inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return ErrStopped
	}
}

func await[T any](ctx context.Context, r *Room, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-r.quit:
		return zero, ErrStopped
	}
}

func (r *Room) State(ctx context.Context) (protocol.State, error) {
	reply := make(chan protocol.State, 1)
	if err := r.send(ctx, Snapshot{Reply: reply}); err != nil {
		return protocol.State{}, err
	}
	return await(ctx, r, reply)
}

// StartGame returns a *game.StartRejected when not every player is ready.
func (r *Room) StartGame(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, Start{Reply: reply}); err != nil {
		return err
	}
	startErr, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return startErr
}

func (r *Room) ResetGame(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := r.send(ctx, Reset{Reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, r, reply)
	return err
}

// Pulse feeds a manual pulse through the same ledger as the serial path.
func (r *Room) Pulse(ctx context.Context, player int) (game.PulseResult, error) {
	reply := make(chan PulseReply, 1)
	if err := r.send(ctx, ManualPulse{Player: player, Reply: reply}); err != nil {
		return game.PulseResult{}, err
	}
	rep, err := await(ctx, r, reply)
	if err != nil {
		return game.PulseResult{}, err
	}
	return rep.Result, rep.Err
}

func (r *Room) SetRates(ctx context.Context, gain, decay float64) error {
	return r.send(ctx, SetRates{Gain: gain, Decay: decay})
}

func (r *Room) JoinViewer(ctx context.Context, c Conn) (string, error) {
	reply := make(chan JoinResult, 1)
	if err := r.send(ctx, Join{Conn: c, Reply: reply}); err != nil {
		return "", err
	}
	res, err := await(ctx, r, reply)
	return res.ViewerID, err
}

func (r *Room) LeaveViewer(viewerID string) {
	_ = r.send(context.Background(), Leave{ViewerID: viewerID})
}

// HandleEvent and SerialStatus make the room a sensor.Sink.

func (r *Room) HandleEvent(ctx context.Context, ev sensor.Event) {
	_ = r.send(ctx, SerialEvent{Event: ev})
}

func (r *Room) SerialStatus(connected bool, port string) {
	_ = r.send(context.Background(), SerialChange{Connected: connected, Port: port})
}
