package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/felipebrito/neoenergia-bike/config"
	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/network"
	"github.com/felipebrito/neoenergia-bike/relay"
	"github.com/felipebrito/neoenergia-bike/room"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	config.InitConfig()
	settings := config.Load()
	setLevel(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings); err != nil {
		log.Fatal().Err(err).Msg("bikejj stopped")
	}
	log.Info().Msg("bye")
}

func setLevel(s string) {
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", s).Msg("unknown LOG_LEVEL, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, s config.Settings) error {
	games := config.LoadGameStore(s.GameConfigFile)
	serialStore, err := config.LoadSerialStore(s.SerialConfigFile)
	if err != nil {
		log.Warn().Err(err).Msg("serial config unreadable, starting without a saved port")
	}

	enc, err := relay.ParseEncoding(s.UDPEncoding)
	if err != nil {
		return err
	}
	sender := relay.NewSender(enc, s.UDPTargets)

	cfg := games.Get()
	tuning := game.Tuning{
		GainPerPulse:        cfg.EnergyGainRate,
		DecayPerSecond:      cfg.EnergyDecayRate,
		Tick:                s.Tick,
		IdleTimeout:         s.IdleTimeout,
		Debounce:            s.PulseDebounce,
		DecayRequiresActive: s.DecayRequiresActive,
	}
	rm := room.New(tuning, s.BroadcastHz, sender)
	go rm.Run()
	defer rm.Stop()

	reader := sensor.NewReader(sensor.OpenSerial, s.SerialBaud, pickPort(s.SerialPort, serialStore), rm)

	srv := &http.Server{
		Addr: s.HTTPAddr,
		Handler: network.NewServer(network.Options{
			Game:            rm,
			Games:           games,
			Serial:          serialStore,
			Reader:          reader,
			StaticDir:       s.StaticDir,
			PedalRatePerSec: s.PedalRatePerSec,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reader.Run(gctx) })
	g.Go(func() error { return sender.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", s.HTTPAddr).Str("static", s.StaticDir).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// pickPort prefers SERIAL_PORT, then the saved port, then the first usable
// device found.
func pickPort(env string, store *config.SerialStore) string {
	if env != "" {
		return env
	}
	if p := store.Port(); p != "" {
		return p
	}
	ports, err := sensor.ListPorts()
	if err != nil {
		log.Warn().Err(err).Msg("serial port scan failed")
		return ""
	}
	for _, p := range ports {
		if p.Valid {
			log.Info().Str("port", p.Name).Msg("serial port auto-detected")
			return p.Name
		}
	}
	log.Warn().Msg("no serial port found, pick one at /serial")
	return ""
}
