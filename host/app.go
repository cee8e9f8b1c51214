// Package host is an in-memory implementation of the application side drivers
// talk to: mixer strips, chains, sequence pads and a command log. Changes are
// published on the bus.
package host

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go-ctrldev/bus"
	"go-ctrldev/ctrldev"
	"go-ctrldev/debug"
)

// Defaults for a new host
const (
	DefaultChains = 8
	DefaultBanks  = 4
	DefaultPads   = 64
	DefaultTempo  = 120.0
	commandLogLen = 64
)

// CommandRecord is one command received from a driver
type CommandRecord struct {
	At     time.Time
	Name   string
	Params []any
}

func (c CommandRecord) String() string {
	if len(c.Params) == 0 {
		return c.Name
	}
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		parts[i] = fmt.Sprint(p)
	}
	return c.Name + " " + strings.Join(parts, " ")
}

// Strip is one mixer channel
type Strip struct {
	Level   float64
	Balance float64
	Mute    bool
	Solo    bool
}

// Options size a new host
type Options struct {
	Chains int
	Banks  int
	Pads   int
	Tempo  float64
}

// App holds the application state
type App struct {
	bus *bus.Bus

	mu       sync.RWMutex
	strips   map[int]*Strip
	chains   []ctrldev.Chain
	active   int // index into chains
	bank     int
	pads     [][]ctrldev.PadState
	tempo    float64
	screen   string
	commands []CommandRecord
	toggles  int

	// Notify the monitor of updates
	UpdateChan chan struct{}
}

// New creates a host publishing on b (may be nil)
func New(b *bus.Bus, opts Options) *App {
	if opts.Chains <= 0 {
		opts.Chains = DefaultChains
	}
	if opts.Banks <= 0 {
		opts.Banks = DefaultBanks
	}
	if opts.Pads <= 0 {
		opts.Pads = DefaultPads
	}
	if opts.Tempo <= 0 {
		opts.Tempo = DefaultTempo
	}

	a := &App{
		bus:        b,
		strips:     make(map[int]*Strip),
		tempo:      opts.Tempo,
		screen:     "mixer",
		UpdateChan: make(chan struct{}, 1),
	}
	for i := 0; i < opts.Chains; i++ {
		a.chains = append(a.chains, ctrldev.Chain{
			ID:           i + 1,
			Index:        i,
			Name:         fmt.Sprintf("Chain %d", i+1),
			MixerChannel: i,
			MidiChannel:  i,
		})
		a.strips[i] = &Strip{Level: 0.8}
	}
	a.strips[ctrldev.MasterChannel] = &Strip{Level: 0.8}

	a.pads = make([][]ctrldev.PadState, opts.Banks)
	for bank := range a.pads {
		a.pads[bank] = make([]ctrldev.PadState, opts.Pads)
		for pad := range a.pads[bank] {
			a.pads[bank][pad] = ctrldev.PadStopped
		}
	}
	return a
}

// Handles returns the collaborator bundle given to drivers
func (a *App) Handles() ctrldev.App {
	return ctrldev.App{Commander: a, Mixer: a, Chains: a, Sequencer: a}
}

func (a *App) notifyUpdate() {
	select {
	case a.UpdateChan <- struct{}{}:
	default:
	}
}

func (a *App) publish(sig bus.Signal, sub bus.Subsignal, args bus.Args) {
	a.notifyUpdate()
	if a.bus != nil {
		a.bus.Send(sig, sub, args)
	}
}

// SendCommand records and applies a named command
func (a *App) SendCommand(name string, params ...any) {
	rec := CommandRecord{At: time.Now(), Name: name, Params: params}
	a.mu.Lock()
	a.commands = append(a.commands, rec)
	if len(a.commands) > commandLogLen {
		a.commands = a.commands[len(a.commands)-commandLogLen:]
	}
	a.mu.Unlock()
	debug.Log("host", "command %v", rec)

	a.apply(name, params)
	a.publish(bus.SignalCommand, bus.SubCommand, bus.Args{"name": name, "params": params})
}

func (a *App) apply(name string, params []any) {
	switch name {
	case ctrldev.CmdStopAll:
		a.StopAll()
	case ctrldev.CmdTempoUp:
		a.SetTempo(a.Tempo() + 1)
	case ctrldev.CmdTempoDown:
		a.SetTempo(a.Tempo() - 1)
	case ctrldev.CmdChainNext, ctrldev.CmdChainPrev:
		a.stepChain(name == ctrldev.CmdChainNext)
	case ctrldev.CmdShowScreen:
		if len(params) > 0 {
			a.ShowScreen(fmt.Sprint(params[0]))
		}
	}
}

// Commands returns the recent command log, oldest first
func (a *App) Commands() []CommandRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]CommandRecord(nil), a.commands...)
}

// CommandNames returns the names of the recent commands
func (a *App) CommandNames() []string {
	cmds := a.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name
	}
	return out
}

// ShowScreen changes the current screen
func (a *App) ShowScreen(screen string) {
	a.mu.Lock()
	a.screen = screen
	a.mu.Unlock()
	a.publish(bus.SignalGUI, bus.SubScreen, bus.Args{"screen": screen})
}

// Screen returns the current screen
func (a *App) Screen() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.screen
}
