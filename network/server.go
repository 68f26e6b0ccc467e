package network

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/felipebrito/neoenergia-bike/config"
	"github.com/felipebrito/neoenergia-bike/game"
	"github.com/felipebrito/neoenergia-bike/protocol"
	"github.com/felipebrito/neoenergia-bike/room"
	"github.com/felipebrito/neoenergia-bike/sensor"
)

// Game is the part of *room.Room the HTTP layer talks to.
type Game interface {
	State(ctx context.Context) (protocol.State, error)
	StartGame(ctx context.Context) error
	ResetGame(ctx context.Context) error
	Pulse(ctx context.Context, player int) (game.PulseResult, error)
	SetRates(ctx context.Context, gain, decay float64) error
	JoinViewer(ctx context.Context, c room.Conn) (string, error)
	LeaveViewer(viewerID string)
}

// SerialControl is implemented by *sensor.Reader.
type SerialControl interface {
	SetPort(name string)
	Port() string
	Connected() bool
	Baud() int
}

type Options struct {
	Game   Game
	Games  *config.GameStore
	Serial *config.SerialStore
	Reader SerialControl

	StaticDir       string
	PedalRatePerSec float64

	// ListPorts defaults to sensor.ListPorts.
	ListPorts func() ([]sensor.PortInfo, error)
}

type Server struct {
	game      Game
	games     *config.GameStore
	serial    *config.SerialStore
	reader    SerialControl
	staticDir string
	listPorts func() ([]sensor.PortInfo, error)
	limits    *pedalLimits
}

func NewServer(opts Options) *Server {
	s := &Server{
		game:      opts.Game,
		games:     opts.Games,
		serial:    opts.Serial,
		reader:    opts.Reader,
		staticDir: opts.StaticDir,
		listPorts: opts.ListPorts,
		limits:    newPedalLimits(opts.PedalRatePerSec),
	}
	if s.staticDir == "" {
		s.staticDir = "."
	}
	if s.listPorts == nil {
		s.listPorts = sensor.ListPorts
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(cors)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods("GET", "OPTIONS")
	api.HandleFunc("/start-game", s.handleStart).Methods("GET", "POST", "OPTIONS")
	api.HandleFunc("/reset-game", s.handleReset).Methods("GET", "POST", "OPTIONS")
	api.HandleFunc("/pedal", s.handlePedal).Methods("POST", "OPTIONS")
	api.HandleFunc("/config", s.handleConfig).Methods("GET", "OPTIONS")
	api.HandleFunc("/config/save", s.handleConfigSave).Methods("POST", "OPTIONS")
	api.HandleFunc("/serial/ports", s.handleSerialPorts).Methods("GET", "OPTIONS")
	api.HandleFunc("/serial/status", s.handleSerialStatus).Methods("GET", "OPTIONS")
	api.HandleFunc("/serial/change-port", s.handleChangePort).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", s.handleWS)

	static := http.FileServer(http.Dir(s.staticDir))
	r.HandleFunc("/serial", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(s.staticDir, "serial_config.html"))
	}).Methods("GET")
	r.PathPrefix("/").Handler(static)

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	return json.NewDecoder(r.Body).Decode(dst)
}
