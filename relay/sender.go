package relay

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

const queueSize = 64

// Sender relays win/reset events over UDP. Winner and Reset never block;
// Run does the network I/O on its own goroutine.
type Sender struct {
	enc     Encoding
	targets []string
	queue   chan Message
	now     func() time.Time
}

func NewSender(enc Encoding, targets []string) *Sender {
	return &Sender{
		enc:     enc,
		targets: targets,
		queue:   make(chan Message, queueSize),
		now:     time.Now,
	}
}

func (s *Sender) Winner(player int) {
	s.enqueue(Message{Type: TypeWinner, PlayerID: player})
}

func (s *Sender) Reset() {
	s.enqueue(Message{Type: TypeReset, PlayerID: 0})
}

func (s *Sender) enqueue(m Message) {
	now := s.now()
	m.Timestamp = float64(now.Unix()) + float64(now.Nanosecond())/1e9
	select {
	case s.queue <- m:
	default:
		log.Warn().Str("type", m.Type).Int("player", m.PlayerID).Msg("udp relay queue full, dropping")
	}
}

// target is one sink; conn is nil until a dial succeeds.
type target struct {
	addr string
	conn net.Conn
}

func (t *target) dial() error {
	if t.conn != nil {
		return nil
	}
	c, err := net.Dial("udp", t.addr)
	if err != nil {
		return fmt.Errorf("dial udp %s: %w", t.addr, err)
	}
	t.conn = c
	return nil
}

func (t *target) send(b []byte) error {
	if err := t.dial(); err != nil {
		return err
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := t.conn.Write(b); err != nil {
		_ = t.conn.Close()
		t.conn = nil
		return fmt.Errorf("write udp %s: %w", t.addr, err)
	}
	return nil
}

// Run forwards queued messages until ctx ends. A target that cannot be
// dialed is logged and retried on the next message; it never stops Run.
func (s *Sender) Run(ctx context.Context) error {
	targets := make([]*target, 0, len(s.targets))
	for _, addr := range s.targets {
		t := &target{addr: addr}
		if err := t.dial(); err != nil {
			log.Warn().Err(err).Msg("udp relay target unavailable, will retry on send")
		}
		targets = append(targets, t)
	}
	defer func() {
		for _, t := range targets {
			if t.conn != nil {
				_ = t.conn.Close()
			}
		}
	}()
	log.Info().Strs("targets", s.targets).Str("encoding", string(s.enc)).Msg("udp relay ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.queue:
			b, err := Encode(s.enc, m)
			if err != nil {
				log.Error().Err(err).Msg("udp relay encode")
				continue
			}
			for _, t := range targets {
				if err := t.send(b); err != nil {
					log.Warn().Err(err).Msg("udp relay send failed")
					continue
				}
				log.Info().Str("type", m.Type).Int("player", m.PlayerID).Str("target", t.addr).Msg("udp relay sent")
			}
		}
	}
}
