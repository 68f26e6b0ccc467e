package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// SerialConfig remembers the last port picked in the serial page.
type SerialConfig struct {
	SerialPort string `json:"serial_port"`
}

type SerialStore struct {
	path string
	mu   sync.Mutex
	cfg  SerialConfig
}

// LoadSerialStore reads the saved port. A missing file means no port yet.
func LoadSerialStore(path string) (*SerialStore, error) {
	s := &SerialStore{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &s.cfg); err != nil {
		return s, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, nil
}

func (s *SerialStore) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.SerialPort
}

func (s *SerialStore) SetPort(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SerialPort = name
	return writeJSON(s.path, s.cfg)
}
