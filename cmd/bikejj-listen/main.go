// bikejj-listen prints the winner/reset datagrams the game server relays,
// for checking the visualization link without the visualization.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/felipebrito/neoenergia-bike/relay"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8888", "udp address to listen on")
	format := flag.String("format", "json", "datagram encoding: json|lines|osc")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	enc, err := relay.ParseEncoding(*format)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -format")
	}

	if enc == relay.OSC {
		d := osc.NewStandardDispatcher()
		for _, typ := range []string{relay.TypeWinner, relay.TypeReset} {
			if err := d.AddMsgHandler(relay.OSCPrefix+typ, func(msg *osc.Message) {
				log.Info().Str("address", msg.Address).Interface("args", msg.Arguments).Msg("osc")
			}); err != nil {
				log.Fatal().Err(err).Msg("osc handler")
			}
		}
		server := &osc.Server{Addr: *addr, Dispatcher: d}
		log.Info().Str("addr", *addr).Msg("listening for osc")
		if err := server.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("osc server")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, err := net.ListenPacket("udp", *addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("listen")
	}
	go func() {
		<-ctx.Done()
		_ = pc.Close()
	}()
	log.Info().Str("addr", *addr).Str("format", *format).Msg("listening")

	buf := make([]byte, 2048)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("read")
			}
			return
		}
		log.Info().Str("from", from.String()).Msg(describe(enc, buf[:n]))
	}
}

func describe(enc relay.Encoding, b []byte) string {
	if enc != relay.JSON {
		return string(b)
	}
	var m relay.Message
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Sprintf("undecodable %q: %v", b, err)
	}
	when := time.Unix(0, int64(m.Timestamp*1e9)).Format(time.TimeOnly)
	return fmt.Sprintf("%s player=%d at %s", m.Type, m.PlayerID, when)
}
