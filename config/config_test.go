package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BoldThreshold() != 300*time.Millisecond || cfg.LongThreshold() != 2*time.Second {
		t.Errorf("defaults %+v", cfg.Gestures)
	}
	if cfg.Knob.Steps != 3 || cfg.Knob.ShiftSteps != 8 || cfg.Serial.Baud != 31250 {
		t.Errorf("defaults %+v %+v", cfg.Knob, cfg.Serial)
	}
}

func TestLoadFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `{"gestures": {"boldMs": 500, "longMs": 100}, "knob": {"steps": -1}, "serial": {"device": "/dev/ttyAMA0"}}`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gestures.BoldMs != 500 {
		t.Errorf("bold %d", cfg.Gestures.BoldMs)
	}
	if cfg.Gestures.LongMs <= cfg.Gestures.BoldMs {
		t.Errorf("long %d not above bold", cfg.Gestures.LongMs)
	}
	if cfg.Knob.Steps != 3 {
		t.Errorf("steps %d", cfg.Knob.Steps)
	}
	if cfg.Serial.Device != "/dev/ttyAMA0" || cfg.Serial.Baud != 31250 || cfg.Serial.Name != "DIN MIDI" {
		t.Errorf("serial %+v", cfg.Serial)
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Errorf("poll %v", cfg.PollInterval())
	}
}

func TestLoadFileBadJSON(t *testing.T) {
	path := writeConfig(t, `{"gestures": `)
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("err = %v", err)
	}
}

func TestEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddController(ControllerConfig{PortName: "nanoKONTROL2", Enabled: false})
	cfg.AddController(ControllerConfig{PortName: "APC Key 25 mk2", Driver: "apc_key25_mk2", Enabled: true})

	cases := []struct {
		driver, port string
		want         bool
	}{
		{"launchpad_mini_mk3", "Launchpad Mini MK3 LPMiniMK3 MIDI", true},
		{"nanokontrol2", "nanoKONTROL2", false},
		{"apc_key25_mk2", "APC Key 25 mk2", true},
		{"APC_KEY25_MK2", "APC Key 25 mk2", true},
		{"mpk_mini_mk3", "APC Key 25 mk2", false},
	}
	for _, c := range cases {
		if got := cfg.Enabled(c.driver, c.port); got != c.want {
			t.Errorf("Enabled(%q, %q) = %v", c.driver, c.port, got)
		}
	}

	cfg.AddController(ControllerConfig{PortName: "nanoKONTROL2", Enabled: true})
	if len(cfg.Controllers) != 2 || !cfg.Enabled("nanokontrol2", "nanoKONTROL2") {
		t.Errorf("update in place: %+v", cfg.Controllers)
	}
}

func TestStateFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatePath = "/tmp/x.yaml"
	if cfg.StateFile() != "/tmp/x.yaml" {
		t.Error("explicit state path ignored")
	}
	cfg.StatePath = ""
	if !strings.HasSuffix(cfg.StateFile(), "ctrldev-state.yaml") {
		t.Errorf("default state file %q", cfg.StateFile())
	}
}
