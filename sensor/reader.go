package sensor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	DefaultBaud = 115200

	readTimeout = 100 * time.Millisecond
	minBackoff  = 250 * time.Millisecond
	maxBackoff  = 5 * time.Second
	maxLineLen  = 4096
)

// Port is the part of a serial port the reader needs.
type Port interface {
	io.ReadCloser
}

// OpenFunc opens a named port. Reads on the returned port must return within
// a short timeout so the reader can notice cancellation.
type OpenFunc func(name string, baud int) (Port, error)

// OpenSerial opens a real device with a 100ms read timeout.
func OpenSerial(name string, baud int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return p, nil
}

// Sink receives everything the reader produces. Implementations must not
// block for long; the reader calls them from its own goroutine.
type Sink interface {
	HandleEvent(ctx context.Context, ev Event)
	SerialStatus(connected bool, port string)
}

type Reader struct {
	open OpenFunc
	baud int
	sink Sink

	mu        sync.Mutex
	port      string
	connected bool
	switchCh  chan struct{}
}

func NewReader(open OpenFunc, baud int, port string, sink Sink) *Reader {
	if open == nil {
		open = OpenSerial
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &Reader{
		open:     open,
		baud:     baud,
		sink:     sink,
		port:     port,
		switchCh: make(chan struct{}, 1),
	}
}

// SetPort switches to another device. An empty name disconnects and waits.
func (r *Reader) SetPort(name string) {
	r.mu.Lock()
	r.port = name
	r.mu.Unlock()
	select {
	case r.switchCh <- struct{}{}:
	default:
	}
}

func (r *Reader) Port() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port
}

func (r *Reader) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Reader) Baud() int { return r.baud }

// Run owns the connection until ctx is cancelled: open, read lines, and on
// any failure report disconnected and retry with exponential backoff.
func (r *Reader) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		name := r.Port()
		if name == "" {
			r.setConnected(false, "")
			select {
			case <-ctx.Done():
				return nil
			case <-r.switchCh:
				continue
			}
		}

		p, err := r.open(name, r.baud)
		if err != nil {
			r.setConnected(false, name)
			log.Warn().Err(err).Str("port", name).Dur("retry", backoff).Msg("serial open failed")
			select {
			case <-ctx.Done():
				return nil
			case <-r.switchCh:
				backoff = minBackoff
				continue
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = minBackoff
		r.setConnected(true, name)
		log.Info().Str("port", name).Int("baud", r.baud).Msg("serial connected")

		err = r.readLoop(ctx, p)
		_ = p.Close()
		r.setConnected(false, name)
		if ctx.Err() != nil {
			log.Info().Str("port", name).Msg("serial reader stopped")
			return nil
		}
		if err != nil {
			log.Warn().Err(err).Str("port", name).Msg("serial read failed, reconnecting")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(minBackoff):
			}
		}
	}
}

// readLoop returns nil when a port switch was requested.
func (r *Reader) readLoop(ctx context.Context, p Port) error {
	buf := make([]byte, 256)
	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.switchCh:
			return nil
		default:
		}

		n, err := p.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				r.handleLine(ctx, string(pending[:i]))
				pending = pending[i+1:]
			}
			if len(pending) > maxLineLen {
				log.Debug().Int("bytes", len(pending)).Msg("dropping unterminated serial data")
				pending = pending[:0]
			}
		}
		if err != nil {
			return err
		}
		if n == 0 {
			// go.bug.st/serial reports a read timeout as (0, nil); some
			// drivers return at once, so never spin faster than 1ms.
			time.Sleep(time.Millisecond)
		}
	}
}

func (r *Reader) handleLine(ctx context.Context, raw string) {
	line := Clean(raw)
	if line == "" {
		return
	}
	ev := Parse(line)
	if ev.Kind == Ignored {
		log.Debug().Str("line", line).Str("reason", ev.Reason).Msg("serial line ignored")
		return
	}
	log.Debug().Str("line", line).Stringer("kind", ev.Kind).Int("player", ev.Player).Msg("serial event")
	r.sink.HandleEvent(ctx, ev)
}

func (r *Reader) setConnected(connected bool, port string) {
	r.mu.Lock()
	changed := r.connected != connected
	r.connected = connected
	r.mu.Unlock()
	if changed && r.sink != nil {
		r.sink.SerialStatus(connected, port)
	}
}
