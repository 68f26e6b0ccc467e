package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Settings are the process-level knobs. The tunable game rates live in
// GameConfig instead, because they are edited at runtime and persisted.
type Settings struct {
	HTTPAddr         string
	StaticDir        string
	GameConfigFile   string
	SerialConfigFile string
	SerialPort       string
	SerialBaud       int

	Tick                time.Duration
	BroadcastHz         int
	IdleTimeout         time.Duration
	DecayRequiresActive bool
	PulseDebounce       time.Duration

	UDPTargets  []string
	UDPEncoding string

	PedalRatePerSec float64
	LogLevel        string
}

func Defaults() Settings {
	return Settings{
		HTTPAddr:         ":9000",
		StaticDir:        ".",
		GameConfigFile:   "game_config.json",
		SerialConfigFile: "serial_config.json",
		SerialBaud:       115200,
		Tick:             100 * time.Millisecond,
		BroadcastHz:      10,
		IdleTimeout:      2 * time.Second,
		UDPTargets:       []string{"127.0.0.1:8888"},
		UDPEncoding:      "json",
		PedalRatePerSec:  20,
		LogLevel:         "info",
	}
}

// InitConfig loads a .env file into the environment. A missing file is not
// an error: every setting has a default.
func InitConfig(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Info().Err(err).Msg("no .env loaded, using environment and defaults")
		return
	}

	log.Info().Msg("Successfully loaded environment variables")
}

func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}

	return b, nil

}

// Load reads Settings from the environment. Unparseable values keep their
// default and are logged.
func Load() Settings {
	s := Defaults()
	str(&s.HTTPAddr, "HTTP_ADDR")
	str(&s.StaticDir, "STATIC_DIR")
	str(&s.GameConfigFile, "GAME_CONFIG_FILE")
	str(&s.SerialConfigFile, "SERIAL_CONFIG_FILE")
	str(&s.SerialPort, "SERIAL_PORT")
	integer(&s.SerialBaud, "SERIAL_BAUD")
	millis(&s.Tick, "TICK_MS")
	integer(&s.BroadcastHz, "BROADCAST_HZ")
	millis(&s.IdleTimeout, "IDLE_TIMEOUT_MS")
	boolean(&s.DecayRequiresActive, "DECAY_REQUIRES_ACTIVE")
	millis(&s.PulseDebounce, "PULSE_DEBOUNCE_MS")
	if v, err := GetEnvVariable("UDP_TARGETS"); err == nil {
		s.UDPTargets = splitList(v)
	}
	str(&s.UDPEncoding, "UDP_ENCODING")
	float(&s.PedalRatePerSec, "PEDAL_RATE_PER_SEC")
	str(&s.LogLevel, "LOG_LEVEL")

	if s.Tick <= 0 {
		log.Warn().Dur("tick", s.Tick).Msg("TICK_MS must be positive, using default")
		s.Tick = Defaults().Tick
	}
	if s.BroadcastHz <= 0 {
		s.BroadcastHz = Defaults().BroadcastHz
	}
	return s
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func str(dst *string, key string) {
	if v, err := GetEnvVariable(key); err == nil {
		*dst = strings.TrimSpace(v)
	}
}

func integer(dst *int, key string) {
	v, err := GetEnvVariable(key)
	if err != nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, keeping default")
		return
	}
	*dst = n
}

func float(dst *float64, key string) {
	v, err := GetEnvVariable(key)
	if err != nil {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid number, keeping default")
		return
	}
	*dst = f
}

func boolean(dst *bool, key string) {
	v, err := GetEnvVariable(key)
	if err != nil {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, keeping default")
		return
	}
	*dst = b
}

func millis(dst *time.Duration, key string) {
	n := -1
	integer(&n, key)
	if n >= 0 {
		*dst = time.Duration(n) * time.Millisecond
	}
}
