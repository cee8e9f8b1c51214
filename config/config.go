package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

// ControllerConfig enables or disables a driver for a given port
type ControllerConfig struct {
	PortName string `json:"portName"`
	Driver   string `json:"driver,omitempty"` // factory name, empty = any
	Enabled  bool   `json:"enabled"`
}

// GestureConfig holds press classifier thresholds in milliseconds
type GestureConfig struct {
	BoldMs int `json:"boldMs,omitempty"`
	LongMs int `json:"longMs,omitempty"`
	PollMs int `json:"pollMs,omitempty"`
}

// KnobConfig holds relative encoder sensitivity
type KnobConfig struct {
	Steps      int `json:"steps,omitempty"`
	ShiftSteps int `json:"shiftSteps,omitempty"`
}

// SerialConfig describes an optional DIN MIDI port on a UART
type SerialConfig struct {
	Device string `json:"device,omitempty"` // e.g. /dev/ttyAMA0, empty = disabled
	Baud   int    `json:"baud,omitempty"`
	Name   string `json:"name,omitempty"` // identity reported to the registry
}

// Config is the main configuration structure
type Config struct {
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	Gestures    GestureConfig      `json:"gestures"`
	Knob        KnobConfig         `json:"knob"`
	Serial      SerialConfig       `json:"serial,omitempty"`
	StatePath   string             `json:"statePath,omitempty"`
	Palette     string             `json:"palette,omitempty"` // GIMP .gpl file for the monitor
	Debug       bool               `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gestures: GestureConfig{
			BoldMs: 300,
			LongMs: 2000,
			PollMs: 100,
		},
		Knob: KnobConfig{
			Steps:      3,
			ShiftSteps: 8,
		},
		Serial: SerialConfig{
			Baud: 31250,
			Name: "DIN MIDI",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-ctrldev"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file, filling unset values from DefaultConfig
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err, fmsg.With("parse "+path))
	}
	cfg.fillDefaults()

	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Gestures.BoldMs <= 0 {
		c.Gestures.BoldMs = def.Gestures.BoldMs
	}
	if c.Gestures.LongMs <= c.Gestures.BoldMs {
		c.Gestures.LongMs = max(def.Gestures.LongMs, c.Gestures.BoldMs+1)
	}
	if c.Gestures.PollMs <= 0 {
		c.Gestures.PollMs = def.Gestures.PollMs
	}
	if c.Knob.Steps <= 0 {
		c.Knob.Steps = def.Knob.Steps
	}
	if c.Knob.ShiftSteps <= 0 {
		c.Knob.ShiftSteps = def.Knob.ShiftSteps
	}
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = def.Serial.Baud
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// Enabled reports whether driver may bind to portName. Ports without an
// entry are enabled.
func (c *Config) Enabled(driver, portName string) bool {
	ctrl := c.FindController(portName)
	if ctrl == nil {
		return true
	}
	if ctrl.Driver != "" && !strings.EqualFold(ctrl.Driver, driver) {
		return false
	}
	return ctrl.Enabled
}

// BoldThreshold returns the bold press threshold
func (c *Config) BoldThreshold() time.Duration {
	return time.Duration(c.Gestures.BoldMs) * time.Millisecond
}

// LongThreshold returns the long press threshold
func (c *Config) LongThreshold() time.Duration {
	return time.Duration(c.Gestures.LongMs) * time.Millisecond
}

// PollInterval returns the gesture scanner poll tick
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Gestures.PollMs) * time.Millisecond
}

// StateFile returns where driver state is persisted
func (c *Config) StateFile() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	dir, err := ConfigDir()
	if err != nil {
		return "ctrldev-state.yaml"
	}
	return filepath.Join(dir, "ctrldev-state.yaml")
}
