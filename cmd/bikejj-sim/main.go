// bikejj-sim writes firmware lines for four bikes to a serial port (one end
// of a virtual pair) or to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/felipebrito/neoenergia-bike/game"
)

type formatter func(player, seq int, pedaling bool) []string

// verbose is what the production sketch prints.
func verbose(player, seq int, pedaling bool) []string {
	state := "False"
	if pedaling {
		state = "True"
	}
	out := []string{fmt.Sprintf("Jogador %d: Pedalada: %s", player, state)}
	if pedaling {
		out = append(out, fmt.Sprintf("🔍 Jogador %d: Pedalada #%d detectada", player, seq))
	}
	return out
}

// compact is the ESP32 bench sketch.
func compact(player, seq int, pedaling bool) []string {
	if !pedaling {
		return []string{fmt.Sprintf("P%d:0", player)}
	}
	return []string{fmt.Sprintf("P%d:1", player), fmt.Sprintf("J%d:%d", player, seq)}
}

func main() {
	var (
		port     = flag.String("port", "", "serial port to write (empty: stdout)")
		baud     = flag.Int("baud", 115200, "baud rate")
		format   = flag.String("format", "verbose", "line format: verbose|compact")
		interval = flag.Duration("interval", 100*time.Millisecond, "time between rounds")
		chance   = flag.Float64("chance", 0.3, "per-round chance that a bike pedals")
		favorite = flag.Int("favorite", 0, "player (1-4) who pedals twice as often")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	var f formatter
	switch *format {
	case "verbose":
		f = verbose
	case "compact":
		f = compact
	default:
		log.Fatal().Str("format", *format).Msg("unknown format")
	}

	var out io.Writer = os.Stdout
	if *port != "" {
		p, err := serial.Open(*port, &serial.Mode{BaudRate: *baud})
		if err != nil {
			log.Fatal().Err(err).Str("port", *port).Msg("open serial")
		}
		defer p.Close()
		out = p
		log.Info().Str("port", *port).Int("baud", *baud).Msg("simulating")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := simulate(ctx, out, f, *interval, *chance, *favorite); err != nil {
		log.Error().Err(err).Msg("simulator stopped")
	}
}

func simulate(ctx context.Context, out io.Writer, f formatter, interval time.Duration, chance float64, favorite int) error {
	var seq [game.NumPlayers]int
	var pedaling [game.NumPlayers]bool
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for i := 0; i < game.NumPlayers; i++ {
			p := i + 1
			c := chance
			if p == favorite {
				c = min(1, chance*2)
			}
			now := rand.Float64() < c
			if !now && !pedaling[i] {
				continue
			}
			if now {
				seq[i]++
			}
			pedaling[i] = now
			for _, line := range f(p, seq[i], now) {
				if _, err := fmt.Fprintf(out, "%s\r\n", line); err != nil {
					return err
				}
			}
		}
	}
}
