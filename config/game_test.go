package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readBack(t *testing.T, path string) GameConfig {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var c GameConfig
	if err := json.Unmarshal(b, &c); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return c
}

func TestLoadGameStoreWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_config.json")
	s := LoadGameStore(path)
	if s.Get() != DefaultGameConfig() {
		t.Fatalf("config = %+v, want defaults", s.Get())
	}
	if got := readBack(t, path); got != DefaultGameConfig() {
		t.Fatalf("file = %+v, want defaults", got)
	}
}

func TestLoadGameStoreFallsBackOnGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := LoadGameStore(path)
	if s.Get() != DefaultGameConfig() {
		t.Fatalf("config = %+v, want defaults", s.Get())
	}
	if got := readBack(t, path); got != DefaultGameConfig() {
		t.Fatalf("garbage file was not replaced: %+v", got)
	}
}

func TestLoadGameStoreClampsAndKeepsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_config.json")
	if err := os.WriteFile(path, []byte(`{"energy_gain_rate": 50, "led_strobe_rate": 10}`), 0o644); err != nil {
		t.Fatal(err)
	}
	got := LoadGameStore(path).Get()
	want := GameConfig{EnergyGainRate: MaxEnergyGain, EnergyDecayRate: DefaultEnergyDecay, LEDStrobeRate: MinLEDStrobe}
	if got != want {
		t.Fatalf("config = %+v, want %+v", got, want)
	}
}

func TestUpdateClampsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_config.json")
	s := LoadGameStore(path)

	gain := 3.0
	decay := -4.0
	strobe := 9000
	got, err := s.Update(GameConfigUpdate{EnergyGainRate: &gain, EnergyDecayRate: &decay, LEDStrobeRate: &strobe})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := GameConfig{EnergyGainRate: 3, EnergyDecayRate: MinEnergyDecay, LEDStrobeRate: MaxLEDStrobe}
	if got != want {
		t.Fatalf("update = %+v, want %+v", got, want)
	}
	if disk := readBack(t, path); disk != want {
		t.Fatalf("file = %+v, want %+v", disk, want)
	}

	only := 7.5
	got, _ = s.Update(GameConfigUpdate{EnergyDecayRate: &only})
	if got.EnergyGainRate != 3 || got.EnergyDecayRate != 7.5 {
		t.Fatalf("partial update = %+v", got)
	}
}

func TestUpdateReportsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "game_config.json")
	s := LoadGameStore(path)

	gain := 4.0
	got, err := s.Update(GameConfigUpdate{EnergyGainRate: &gain})
	if err == nil {
		t.Fatalf("expected write error for %s", path)
	}
	if got.EnergyGainRate != 4 || s.Get().EnergyGainRate != 4 {
		t.Fatalf("in-memory config not updated: %+v", s.Get())
	}
}

func TestSerialStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serial_config.json")
	s, err := LoadSerialStore(path)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if s.Port() != "" {
		t.Fatalf("port = %q, want empty", s.Port())
	}
	if err := s.SetPort("COM6"); err != nil {
		t.Fatalf("set port: %v", err)
	}
	again, err := LoadSerialStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Port() != "COM6" {
		t.Fatalf("reloaded port = %q", again.Port())
	}
}
