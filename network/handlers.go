package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/protocol"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

const roomTimeout = 2 * time.Second

func roomCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), roomTimeout)
}

func unavailable(w http.ResponseWriter, err error) {
	log.Warn().Err(err).Msg("room request failed")
	writeJSON(w, http.StatusServiceUnavailable, protocol.Result{Message: err.Error()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := roomCtx(r)
	defer cancel()
	st, err := s.game.State(ctx)
	if err != nil {
		unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := roomCtx(r)
	defer cancel()

	err := s.game.StartGame(ctx)
	var rej *game.StartRejected
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, protocol.StartResponse{
			Success:    true,
			Message:    "game started",
			ReadyCount: game.NumPlayers,
		})
	case errors.As(err, &rej):
		writeJSON(w, http.StatusBadRequest, protocol.StartResponse{
			Message:      rej.Error(),
			ReadyCount:   rej.ReadyCount,
			PlayersReady: rej.PlayersReady[:],
		})
	default:
		unavailable(w, err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := roomCtx(r)
	defer cancel()
	if err := s.game.ResetGame(ctx); err != nil {
		unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Result{Success: true, Message: "game reset"})
}

func (s *Server) handlePedal(w http.ResponseWriter, r *http.Request) {
	var req protocol.PedalRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.PedalResponse{Message: "invalid body"})
		return
	}
	if !game.ValidPlayer(req.Player) {
		writeJSON(w, http.StatusBadRequest, protocol.PedalResponse{Message: game.ErrBadPlayer.Error()})
		return
	}
	if !s.limits.allow(req.Player) {
		writeJSON(w, http.StatusTooManyRequests, protocol.PedalResponse{Message: "too many pulses"})
		return
	}

	ctx, cancel := roomCtx(r)
	defer cancel()
	res, err := s.game.Pulse(ctx, req.Player)
	switch {
	case errors.Is(err, game.ErrBadPlayer):
		writeJSON(w, http.StatusBadRequest, protocol.PedalResponse{Message: err.Error()})
	case err != nil:
		unavailable(w, err)
	default:
		writeJSON(w, http.StatusOK, protocol.PedalResponse{
			Success: true,
			Energy:  res.Energy,
			Winner:  res.Winner,
		})
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.ConfigResponse{Success: true, Config: s.games.Get()})
}

func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	var req protocol.ConfigRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ConfigResponse{Message: "invalid body", Config: s.games.Get()})
		return
	}

	cfg, saveErr := s.games.Update(req)

	ctx, cancel := roomCtx(r)
	defer cancel()
	if err := s.game.SetRates(ctx, cfg.EnergyGainRate, cfg.EnergyDecayRate); err != nil {
		unavailable(w, err)
		return
	}

	if saveErr != nil {
		writeJSON(w, http.StatusInternalServerError, protocol.ConfigResponse{
			Message: saveErr.Error(),
			Config:  cfg,
		})
		return
	}
	writeJSON(w, http.StatusOK, protocol.ConfigResponse{Success: true, Message: "config saved", Config: cfg})
}

func (s *Server) handleSerialPorts(w http.ResponseWriter, r *http.Request) {
	ports, err := s.listPorts()
	if err != nil {
		log.Warn().Err(err).Msg("list serial ports")
		writeJSON(w, http.StatusInternalServerError, protocol.Result{Message: err.Error()})
		return
	}
	if ports == nil {
		ports = []sensor.PortInfo{}
	}
	writeJSON(w, http.StatusOK, protocol.SerialPorts{
		Ports:     ports,
		Port:      s.reader.Port(),
		Connected: s.reader.Connected(),
	})
}

func (s *Server) handleSerialStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.SerialStatus{
		Connected: s.reader.Connected(),
		Port:      s.reader.Port(),
		Baud:      s.reader.Baud(),
	})
}

func (s *Server) handleChangePort(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChangePortRequest
	if err := readJSON(w, r, &req); err != nil || req.Port == "" {
		writeJSON(w, http.StatusBadRequest, protocol.Result{Message: "port is required"})
		return
	}
	if err := sensor.CheckPort(req.Port); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.Result{Message: err.Error()})
		return
	}
	if err := s.serial.SetPort(req.Port); err != nil {
		log.Error().Err(err).Str("port", req.Port).Msg("persist serial port")
		writeJSON(w, http.StatusInternalServerError, protocol.Result{Message: err.Error()})
		return
	}
	s.reader.SetPort(req.Port)
	log.Info().Str("port", req.Port).Msg("serial port changed")
	writeJSON(w, http.StatusOK, protocol.Result{Success: true, Message: fmt.Sprintf("switched to %s", req.Port)})
}
