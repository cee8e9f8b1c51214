package ctrldev

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v3"
)

// StateStore persists driver state between sessions, keyed by driver name
type StateStore struct {
	path string

	mu     sync.Mutex
	states map[string]map[string]any
}

// NewStateStore creates a store backed by path. An empty path keeps state in
// memory only.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path, states: make(map[string]map[string]any)}
}

// Load reads the file. A missing file is not an error.
func (s *StateStore) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fault.Wrap(err, fmsg.With("read driver state"))
	}

	states := make(map[string]map[string]any)
	if err := yaml.Unmarshal(data, &states); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("parse driver state", "Driver state file "+s.path+" is not valid YAML"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = states
	return nil
}

// Save writes the file
func (s *StateStore) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	data, err := yaml.Marshal(s.states)
	s.mu.Unlock()
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode driver state"))
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create state dir"))
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write driver state"))
	}
	return nil
}

// Get returns the stored state of a driver, or nil
func (s *StateStore) Get(driver string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[driver]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}

// Set replaces the stored state of a driver
func (s *StateStore) Set(driver string, state map[string]any) {
	if state == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[driver] = state
}

// StateInt reads an integer from a state map, whatever numeric type the
// decoder produced
func StateInt(state map[string]any, key string, def int) int {
	switch v := state[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// StateString reads a string from a state map
func StateString(state map[string]any, key, def string) string {
	if v, ok := state[key].(string); ok {
		return v
	}
	return def
}
