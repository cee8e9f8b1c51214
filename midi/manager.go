package midi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-ctrldev/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Binder is where discovered input ports are bound and their messages routed
// (ctrldev.Registry).
type Binder interface {
	Bind(port int, name string) bool
	Unbind(port int)
	Dispatch(port int, msg Message) bool
}

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type DeviceEventType
	Port int
	ID   string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// ExcludedPatterns are virtual/system ports that are never bound
var ExcludedPatterns = []string{"Midi Through", "Through Port"}

type listener struct {
	port int
	stop func()
}

// DeviceManager handles hot-plug detection of MIDI controllers and feeds
// their input into a Binder
type DeviceManager struct {
	listeners map[string]*listener     // by input port name
	outputs   map[string]*QueuedOutput // by input port name
	ignored   map[string]bool          // ports no driver wanted
	ids       map[string]int           // binding index per port name
	nextID    int
	inPorts   func() []drivers.In
	mu        sync.RWMutex
	events    chan DeviceEvent
	pollRate  time.Duration
}

// NewDeviceManager creates a new device manager
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		listeners: make(map[string]*listener),
		outputs:   make(map[string]*QueuedOutput),
		ignored:   make(map[string]bool),
		ids:       make(map[string]int),
		nextID:    1,
		inPorts:   func() []drivers.In { return gomidi.GetInPorts() },
		events:    make(chan DeviceEvent, 16),
		pollRate:  time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Connected returns the names of bound input ports
func (dm *DeviceManager) Connected() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	names := make([]string, 0, len(dm.listeners))
	for name := range dm.listeners {
		names = append(names, name)
	}
	return names
}

// OpenOutput finds the output port paired with an input port name and opens
// it. The returned index is 1-based; 0 means no feedback path.
func (dm *DeviceManager) OpenOutput(inName string) (Output, int, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	outPorts := gomidi.GetOutPorts()
	port := matchOutPort(inName, outPorts)
	if port == nil {
		return Discard, 0, nil
	}
	if out, ok := dm.outputs[inName]; ok {
		return out, port.Number() + 1, nil
	}
	out, err := OpenPortOutput(port)
	if err != nil {
		return Discard, 0, fmt.Errorf("open output %s: %w", port.String(), err)
	}
	dm.outputs[inName] = out
	return out, port.Number() + 1, nil
}

func matchOutPort(inName string, outs []drivers.Out) drivers.Out {
	name := strings.ToLower(inName)
	for _, op := range outs {
		if strings.ToLower(op.String()) == name {
			return op
		}
	}
	// some backends name the pair "... IN n" / "... OUT n"
	alt := strings.Replace(name, " in ", " out ", 1)
	for _, op := range outs {
		if strings.ToLower(op.String()) == alt {
			return op
		}
	}
	return nil
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context, b Binder) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan(b)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll(b)
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(b)
		}
	}
}

func (dm *DeviceManager) scan(b Binder) {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- dm.inPorts()
	}()

	var inPorts []drivers.In
	select {
	case inPorts = <-ch:
	case <-time.After(3 * time.Second):
		debug.Warn("devices", "port enumeration timed out, skipping scan")
		return
	}

	seen := make(map[string]bool)

	for _, in := range inPorts {
		name := in.String()
		if isExcluded(name) {
			continue
		}
		seen[name] = true

		dm.mu.RLock()
		_, exists := dm.listeners[name]
		ignored := dm.ignored[name]
		dm.mu.RUnlock()
		if exists || ignored {
			continue
		}

		port := dm.portID(name)
		if !b.Bind(port, name) {
			dm.mu.Lock()
			dm.ignored[name] = true
			dm.mu.Unlock()
			continue
		}

		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
			if m, ok := FromBytes(msg); ok {
				b.Dispatch(port, m)
			}
		}, gomidi.UseSysEx(), gomidi.HandleError(func(err error) {
			debug.Error("devices", err, "listener %s", name)
		}))
		if err != nil {
			debug.Error("devices", err, "listen %s", name)
			b.Unbind(port)
			dm.closeOutput(name)
			continue
		}

		dm.mu.Lock()
		dm.listeners[name] = &listener{port: port, stop: stop}
		dm.mu.Unlock()

		debug.Log("devices", "connected %q on port %d", name, port)
		dm.emit(DeviceEvent{Type: DeviceConnected, Port: port, ID: name})
	}

	// Check for disconnects
	dm.mu.Lock()
	var gone []string
	for name := range dm.listeners {
		if !seen[name] {
			gone = append(gone, name)
		}
	}
	for name := range dm.ignored {
		if !seen[name] {
			delete(dm.ignored, name)
		}
	}
	dm.mu.Unlock()

	for _, name := range gone {
		dm.disconnect(b, name)
	}
}

// portID is the binding index of a port name. Backends renumber ports
// when a device leaves, so bindings use an index owned here: allocated on
// first sight and kept for the name.
func (dm *DeviceManager) portID(name string) int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if id, ok := dm.ids[name]; ok {
		return id
	}
	id := dm.nextID
	if id == SerialPortIndex {
		id++
	}
	dm.nextID = id + 1
	dm.ids[name] = id
	return id
}

func (dm *DeviceManager) disconnect(b Binder, name string) {
	dm.mu.Lock()
	l := dm.listeners[name]
	delete(dm.listeners, name)
	dm.mu.Unlock()
	if l == nil {
		return
	}

	l.stop()
	b.Unbind(l.port)
	dm.closeOutput(name)
	debug.Log("devices", "disconnected %q", name)
	dm.emit(DeviceEvent{Type: DeviceDisconnected, Port: l.port, ID: name})
}

func (dm *DeviceManager) closeOutput(name string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if out, ok := dm.outputs[name]; ok {
		out.Close()
		delete(dm.outputs, name)
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll(b Binder) {
	for _, name := range dm.Connected() {
		dm.disconnect(b, name)
	}
}

func isExcluded(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range ExcludedPatterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
