package ctrldev

import (
	"sync"

	"go-ctrldev/bus"
	"go-ctrldev/debug"
	"go-ctrldev/midi"
)

// Mode is one mutually exclusive context of a device
type Mode interface {
	Name() string
	ModeState() *ModeBase

	// SetActive(true) is where a mode pushes its full feedback
	SetActive(active bool)
	Refresh()

	NoteOn(channel, note, velocity uint8) bool
	NoteOff(channel, note uint8) bool
	CCChange(channel, cc, value uint8) bool
	ProgramChange(channel, program uint8) bool
	SysEx(msg midi.SysEx) bool

	OnShiftChanged(shifted bool)
	OnScreenChange(screen string)
	OnMediaChange(kind string, state int)
}

// RequestHandler modes accept payloads sent by other modes of their driver
type RequestHandler interface {
	HandleRequest(from string, payload any)
}

// RequestKind selects what a mode asks of its driver
type RequestKind int

const (
	RequestSetMode RequestKind = iota
	RequestRefresh
	RequestDeliver
)

// Request is a cross-mode message, applied by the driver after dispatch
type Request struct {
	Kind    RequestKind
	Mode    int
	From    string
	Payload any
}

const requestQueueLen = 16

// ModeBase holds the state every mode has. Modes embed it and override the
// handlers they care about.
type ModeBase struct {
	name string

	mu      sync.Mutex
	active  bool
	shifted bool
	screen  string

	requests chan Request
}

// NewModeBase names a mode
func NewModeBase(name string) ModeBase {
	return ModeBase{name: name}
}

func (m *ModeBase) Name() string          { return m.name }
func (m *ModeBase) ModeState() *ModeBase { return m }

func (m *ModeBase) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *ModeBase) IsShifted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shifted
}

// Screen is the last application screen seen on the bus
func (m *ModeBase) Screen() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen
}

func (m *ModeBase) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

func (m *ModeBase) setShifted(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifted = on
}

func (m *ModeBase) setScreen(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screen = s
}

// Request queues a request for the owning driver. Returns false when the
// mode is not attached or the queue is full.
func (m *ModeBase) Request(r Request) bool {
	if m.requests == nil {
		return false
	}
	if r.From == "" {
		r.From = m.name
	}
	select {
	case m.requests <- r:
		return true
	default:
		debug.Warn("ctrldev", "mode %s: request queue full, dropped %v", m.name, r.Kind)
		return false
	}
}

func (m *ModeBase) Refresh()                                  {}
func (m *ModeBase) NoteOn(channel, note, velocity uint8) bool { return false }
func (m *ModeBase) NoteOff(channel, note uint8) bool          { return false }
func (m *ModeBase) CCChange(channel, cc, value uint8) bool    { return false }
func (m *ModeBase) ProgramChange(channel, program uint8) bool { return false }
func (m *ModeBase) SysEx(msg midi.SysEx) bool                 { return false }
func (m *ModeBase) OnShiftChanged(shifted bool)               {}
func (m *ModeBase) OnScreenChange(screen string)              {}
func (m *ModeBase) OnMediaChange(kind string, state int)      {}

// ShiftFunc recognises the shift button. ok is false for other messages.
type ShiftFunc func(msg midi.ShortMessage) (pressed, ok bool)

// ModeSelectFunc recognises a mode select input and returns the mode index
type ModeSelectFunc func(msg midi.Message, shifted bool) (mode int, ok bool)

// ModeDriver is a driver made of modes. Exactly one mode is active between
// Start and End.
type ModeDriver struct {
	Base

	IsShift    ShiftFunc
	ModeSelect ModeSelectFunc

	// switchMu serialises mode transitions: a deactivate/activate pair
	// never interleaves with another. Held without modeMu so modes can
	// read driver state from SetActive.
	switchMu sync.Mutex
	drainMu  sync.Mutex

	modeMu   sync.Mutex
	modes    []Mode
	active   int
	shifted  bool
	started  bool
	requests chan Request
}

// AddMode attaches a mode and returns its index. Call before Start.
func (d *ModeDriver) AddMode(m Mode) int {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	if d.requests == nil {
		d.requests = make(chan Request, requestQueueLen)
	}
	m.ModeState().requests = d.requests
	d.modes = append(d.modes, m)
	return len(d.modes) - 1
}

// Modes returns the attached modes
func (d *ModeDriver) Modes() []Mode {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	return append([]Mode(nil), d.modes...)
}

// Start activates the initial mode and subscribes to screen and media events
func (d *ModeDriver) Start() {
	d.StartIn(0)
}

// StartIn is Start with an explicit initial mode
func (d *ModeDriver) StartIn(initial int) {
	d.switchMu.Lock()
	d.modeMu.Lock()
	if d.started || d.Ended() || len(d.modes) == 0 {
		d.modeMu.Unlock()
		d.switchMu.Unlock()
		return
	}
	if initial < 0 || initial >= len(d.modes) {
		initial = 0
	}
	d.started = true
	d.active = initial
	m := d.modes[initial]
	d.modeMu.Unlock()

	if d.Bus != nil {
		d.Bus.RegisterQueued(d, bus.SignalGUI, bus.SubScreen, func(e bus.Event) {
			d.ScreenChanged(e.Args.String("screen"))
		})
		d.Bus.RegisterQueued(d, bus.SignalMedia, bus.SubMediaState, func(e bus.Event) {
			d.MediaChanged(e.Args.String("kind"), e.Args.Int("state", 0))
		})
	}
	m.SetActive(true)
	d.switchMu.Unlock()
	d.publishMode(m)
	d.drain()
}

// ActiveMode returns the current mode, nil before Start
func (d *ModeDriver) ActiveMode() Mode {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	if !d.started || len(d.modes) == 0 {
		return nil
	}
	return d.modes[d.active]
}

// ActiveIndex returns the index of the current mode
func (d *ModeDriver) ActiveIndex() int {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	return d.active
}

// ActiveModeName is used by the registry snapshot
func (d *ModeDriver) ActiveModeName() string {
	if m := d.ActiveMode(); m != nil {
		return m.Name()
	}
	return ""
}

// Shifted reports the shift state
func (d *ModeDriver) Shifted() bool {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	return d.shifted
}

// SetMode deactivates the current mode and activates mode i. Ignored after
// End, before Start, or when i is already active.
func (d *ModeDriver) SetMode(i int) {
	d.switchMu.Lock()
	d.modeMu.Lock()
	if !d.started || d.Ended() || i < 0 || i >= len(d.modes) || i == d.active {
		d.modeMu.Unlock()
		d.switchMu.Unlock()
		return
	}
	old, next := d.modes[d.active], d.modes[i]
	d.active = i
	d.modeMu.Unlock()

	old.SetActive(false)
	next.SetActive(true)
	d.switchMu.Unlock()
	debug.Log("ctrldev", "%s: mode %s -> %s", d.Name, old.Name(), next.Name())
	d.publishMode(next)
}

func (d *ModeDriver) publishMode(m Mode) {
	d.Publish(bus.SignalCtrlDev, bus.SubModeChanged, bus.Args{"port": d.InPort, "mode": m.Name()})
}

// MidiEvent routes a message to the shift handling, mode select or the
// active mode
func (d *ModeDriver) MidiEvent(msg midi.Message) bool {
	if d.Ended() {
		return false
	}
	consumed := d.dispatch(msg)
	d.drain()
	return consumed
}

func (d *ModeDriver) dispatch(msg midi.Message) bool {
	d.modeMu.Lock()
	if !d.started {
		d.modeMu.Unlock()
		return false
	}
	shifted := d.shifted

	if sm, ok := msg.(midi.ShortMessage); ok && d.IsShift != nil {
		if pressed, ok := d.IsShift(sm); ok {
			changed := pressed != d.shifted
			d.shifted = pressed
			modes := append([]Mode(nil), d.modes...)
			d.modeMu.Unlock()
			if changed {
				for _, m := range modes {
					m.ModeState().setShifted(pressed)
					m.OnShiftChanged(pressed)
				}
			}
			return true
		}
	}

	if d.ModeSelect != nil {
		if i, ok := d.ModeSelect(msg, shifted); ok {
			d.modeMu.Unlock()
			d.SetMode(i)
			return true
		}
	}
	m := d.modes[d.active]
	d.modeMu.Unlock()

	return DispatchToMode(m, msg)
}

// DispatchToMode calls the mode handler matching msg
func DispatchToMode(m Mode, msg midi.Message) bool {
	switch v := msg.(type) {
	case midi.SysEx:
		return m.SysEx(v)
	case midi.ShortMessage:
		switch v.Kind() {
		case midi.NoteOn:
			if v.Data2 == 0 {
				return m.NoteOff(v.Channel(), v.Data1)
			}
			return m.NoteOn(v.Channel(), v.Data1, v.Data2)
		case midi.NoteOff:
			return m.NoteOff(v.Channel(), v.Data1)
		case midi.CC:
			return m.CCChange(v.Channel(), v.Data1, v.Data2)
		case midi.ProgramChange:
			return m.ProgramChange(v.Channel(), v.Data1)
		}
	}
	return false
}

// drain applies queued mode requests, one drainer at a time
func (d *ModeDriver) drain() {
	if d.requests == nil {
		return
	}
	d.drainMu.Lock()
	defer d.drainMu.Unlock()
	for {
		select {
		case r := <-d.requests:
			d.apply(r)
		default:
			return
		}
	}
}

func (d *ModeDriver) apply(r Request) {
	switch r.Kind {
	case RequestSetMode:
		d.SetMode(r.Mode)
	case RequestRefresh:
		d.Refresh()
	case RequestDeliver:
		d.modeMu.Lock()
		var target Mode
		if r.Mode >= 0 && r.Mode < len(d.modes) {
			target = d.modes[r.Mode]
		}
		d.modeMu.Unlock()
		if h, ok := target.(RequestHandler); ok {
			h.HandleRequest(r.From, r.Payload)
		} else {
			debug.Warn("ctrldev", "%s: request from %s to mode %d not deliverable", d.Name, r.From, r.Mode)
		}
	default:
		debug.Warn("ctrldev", "%s: unknown request kind %d", d.Name, r.Kind)
	}
}

// Refresh refreshes the active mode
func (d *ModeDriver) Refresh() {
	if d.Ended() || d.Sleeping() {
		return
	}
	if m := d.ActiveMode(); m != nil {
		m.Refresh()
	}
}

// ScreenChanged records the application screen on every mode
func (d *ModeDriver) ScreenChanged(screen string) {
	if d.Ended() {
		return
	}
	for _, m := range d.Modes() {
		m.ModeState().setScreen(screen)
		m.OnScreenChange(screen)
	}
	d.drain()
}

// MediaChanged notifies every mode of a media state change
func (d *ModeDriver) MediaChanged(kind string, state int) {
	if d.Ended() {
		return
	}
	for _, m := range d.Modes() {
		m.OnMediaChange(kind, state)
	}
	d.drain()
}

// End deactivates the current mode and detaches from the bus
func (d *ModeDriver) End() {
	d.switchMu.Lock()
	if d.Ended() {
		d.switchMu.Unlock()
		return
	}
	if m := d.ActiveMode(); m != nil {
		m.SetActive(false)
	}
	d.Base.End()
	d.switchMu.Unlock()
	if d.Bus != nil {
		d.Bus.UnregisterAll(d)
	}
}
