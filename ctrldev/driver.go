package ctrldev

import (
	"strconv"
	"strings"
	"sync"

	"go-ctrldev/bus"
	"go-ctrldev/config"
	"go-ctrldev/midi"
)

// Capability tags what a driver acts as
type Capability uint8

const (
	CapMixer Capability = 1 << iota
	CapPadGrid
	CapPattern
)

func (c Capability) String() string {
	var parts []string
	if c&CapMixer != 0 {
		parts = append(parts, "mixer")
	}
	if c&CapPadGrid != 0 {
		parts = append(parts, "padgrid")
	}
	if c&CapPattern != 0 {
		parts = append(parts, "pattern")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

// Op is an operation broadcast to every bound driver
type Op int

const (
	OpRefresh Op = iota
	OpSleepOn
	OpSleepOff
	OpLightOff
)

func (o Op) String() string {
	switch o {
	case OpRefresh:
		return "refresh"
	case OpSleepOn:
		return "sleep_on"
	case OpSleepOff:
		return "sleep_off"
	case OpLightOff:
		return "light_off"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Driver is one bound controller
type Driver interface {
	Info() *Base
	// Start brings the device into its initial state. Called once after
	// construction and state restore.
	Start()
	// MidiEvent handles one inbound message; false means not consumed
	MidiEvent(msg midi.Message) bool
	// Refresh recomputes all feedback from application state
	Refresh()
	SetSleep(on bool)
	LightOff()
	// End releases the device. No events are dispatched afterwards.
	End()
}

// Stateful drivers persist configuration across instances
type Stateful interface {
	State() map[string]any
	SetState(map[string]any)
}

// Deps are the handles a factory receives
type Deps struct {
	App      App
	Bus      *bus.Bus
	Out      midi.Output
	Config   *config.Config
	InPort   int
	OutPort  int
	PortName string
}

// Factory builds drivers for the identities it declares
type Factory struct {
	Name       string
	Identities []string
	Caps       Capability
	New        func(d Deps) (Driver, error)
}

// Base carries what every driver instance has: its ports, capabilities and
// collaborators. Drivers embed it.
type Base struct {
	Name     string
	PortName string
	InPort   int
	OutPort  int // 0 = no feedback path
	Caps     Capability
	Enabled  bool

	Out    midi.Output
	App    App
	Bus    *bus.Bus
	Config *config.Config

	mu       sync.Mutex
	ended    bool
	sleeping bool
}

// Init fills the base from the factory deps
func (b *Base) Init(name string, caps Capability, d Deps) {
	b.Name = name
	b.Caps = caps
	b.PortName = d.PortName
	b.InPort = d.InPort
	b.OutPort = d.OutPort
	b.Enabled = true
	b.Out = d.Out
	if b.Out == nil {
		b.Out = midi.Discard
	}
	b.App = d.App
	b.Bus = d.Bus
	b.Config = d.Config
	if b.Config == nil {
		b.Config = config.DefaultConfig()
	}
}

func (b *Base) Info() *Base { return b }

// HasFeedback reports whether the device has an output port
func (b *Base) HasFeedback() bool { return b.OutPort > 0 }

// Ended reports whether End was called
func (b *Base) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

// Sleeping reports whether the device LEDs are asleep
func (b *Base) Sleeping() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sleeping
}

func (b *Base) Start()   {}
func (b *Base) Refresh() {}

func (b *Base) SetSleep(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sleeping = on
}

func (b *Base) LightOff() {}

func (b *Base) End() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = true
}

// Publish sends a bus event when the driver has a bus
func (b *Base) Publish(sig bus.Signal, sub bus.Subsignal, args bus.Args) {
	if b.Bus != nil {
		b.Bus.Send(sig, sub, args)
	}
}
