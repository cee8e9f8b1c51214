package drivers

import (
	"sync"

	"go-ctrldev/codec"
	"go-ctrldev/ctrldev"
	"go-ctrldev/debug"
	"go-ctrldev/midi"
)

// MPK mini mk3 modes, selected by program change 0 and 1
const (
	mpkModeMixer = iota
	mpkModeDevice
)

const (
	mpkFirstPad  = 36
	mpkFirstKnob = 70
)

// MPKMini drives an Akai MPK mini mk3. In Mixer mode the pads toggle
// sequences of the current bank and the knobs set chain levels. In Device
// mode the device gets its native program and its input passes through.
type MPKMini struct {
	ctrldev.ModeDriver

	mixer  *mpkMixerMode
	device *mpkDeviceMode

	settings    *mpkSettings
	initialMode int
}

// mpkSettings is shared by the driver and its modes
type mpkSettings struct {
	mu      sync.Mutex
	program uint8
}

func (s *mpkSettings) Program() codec.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return codec.DefaultProgram(s.program)
}

func (s *mpkSettings) number() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program
}

func (s *mpkSettings) setNumber(n uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = n
}

// MPKMiniFactory builds MPK mini mk3 drivers
func MPKMiniFactory() ctrldev.Factory {
	return ctrldev.Factory{
		Name:       "mpk_mini_mk3",
		Identities: []string{"MPK mini 3", "MPK mini mk3", "MPK mini 3 MIDI 1"},
		Caps:       ctrldev.CapMixer | ctrldev.CapPadGrid,
		New:        NewMPKMini,
	}
}

func NewMPKMini(d ctrldev.Deps) (ctrldev.Driver, error) {
	m := &MPKMini{settings: &mpkSettings{program: 1}}
	m.Init("mpk_mini_mk3", ctrldev.CapMixer|ctrldev.CapPadGrid, d)

	m.mixer = &mpkMixerMode{ModeBase: ctrldev.NewModeBase("mixer"), app: m.App, settings: m.settings}
	m.device = &mpkDeviceMode{ModeBase: ctrldev.NewModeBase("device"), out: m.Out, settings: m.settings}
	m.AddMode(m.mixer)
	m.AddMode(m.device)

	m.ModeSelect = func(msg midi.Message, shifted bool) (int, bool) {
		sm, ok := msg.(midi.ShortMessage)
		if !ok || sm.Kind() != midi.ProgramChange {
			return 0, false
		}
		switch sm.Data1 {
		case 0:
			return mpkModeMixer, true
		case 1:
			return mpkModeDevice, true
		}
		return 0, false
	}
	return m, nil
}

func (m *MPKMini) Start() {
	m.StartIn(m.initialMode)
}

// Program is the descriptor uploaded in Device mode
func (m *MPKMini) Program() codec.Program {
	return m.settings.Program()
}

func (m *MPKMini) State() map[string]any {
	return map[string]any{
		"mode":    m.ActiveIndex(),
		"program": int(m.settings.number()),
	}
}

func (m *MPKMini) SetState(state map[string]any) {
	mode := ctrldev.StateInt(state, "mode", mpkModeMixer)
	if mode == mpkModeMixer || mode == mpkModeDevice {
		m.initialMode = mode
	}
	if p := ctrldev.StateInt(state, "program", 1); p >= 0 && p <= codec.MaxProgram {
		m.settings.setNumber(uint8(p))
	}
}

type mpkMixerMode struct {
	ctrldev.ModeBase
	app      ctrldev.App
	settings *mpkSettings
}

func (mm *mpkMixerMode) padChannel() uint8 {
	return mm.settings.Program().PadChannel
}

func (mm *mpkMixerMode) NoteOn(channel, note, velocity uint8) bool {
	if channel != mm.padChannel() || note < mpkFirstPad || note >= mpkFirstPad+codec.ProgramPads {
		return false
	}
	app := mm.app
	app.TogglePlayState(app.Bank(), int(note-mpkFirstPad))
	return true
}

func (mm *mpkMixerMode) NoteOff(channel, note uint8) bool {
	return channel == mm.padChannel() && note >= mpkFirstPad && note < mpkFirstPad+codec.ProgramPads
}

func (mm *mpkMixerMode) CCChange(channel, cc, value uint8) bool {
	if cc < mpkFirstKnob || cc >= mpkFirstKnob+codec.ProgramKnobs {
		return false
	}
	ch, ok := chainChannel(mm.app, int(cc-mpkFirstKnob))
	if !ok {
		return false
	}
	mm.app.SetLevel(ch, float64(value)/127)
	return true
}

type mpkDeviceMode struct {
	ctrldev.ModeBase
	out      midi.Output
	settings *mpkSettings
}

// SetActive uploads the program when the mode becomes active
func (dm *mpkDeviceMode) SetActive(active bool) {
	dm.ModeBase.SetActive(active)
	if !active {
		return
	}
	p := dm.settings.Program()
	msg, err := codec.BuildProgram(p)
	if err != nil {
		debug.Error("mpk", err, "build program %d", p.Number)
		return
	}
	dm.out.SendRaw(msg)
	debug.Log("mpk", "uploaded program %d (%d bytes)", p.Number, len(msg))
}

func (dm *mpkDeviceMode) SysEx(msg midi.SysEx) bool {
	if !codec.IsProgramMessage(msg) {
		return false
	}
	p, ok := codec.ParseProgram(msg)
	if !ok {
		return true
	}
	debug.Log("mpk", "device program %d %q pads ch %d keys ch %d", p.Number, p.Name, p.PadChannel+1, p.KeybedChannel+1)
	if p.Number <= codec.MaxProgram {
		dm.settings.setNumber(p.Number)
	}
	return true
}
