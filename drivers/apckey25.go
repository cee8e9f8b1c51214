package drivers

import (
	"context"
	"sync/atomic"
	"time"

	"go-ctrldev/bus"
	"go-ctrldev/ctrldev"
	"go-ctrldev/debug"
	"go-ctrldev/gesture"
	"go-ctrldev/knob"
	"go-ctrldev/midi"
)

// APC Key 25 mk2 controls. Pads and buttons send notes on channel 0, the
// keybed plays on channel 1.
const (
	apcPadRows  = 5
	apcPadCols  = 8
	apcPads     = apcPadRows * apcPadCols
	apcTrack0   = 64 // 64-71, shift + 64-67 are the arrows
	apcScene0   = 82 // 82-86
	apcScenes   = 5
	apcStopAll  = 81
	apcPlay     = 91
	apcRecord   = 93
	apcShift    = 98
	apcKnob0    = 48 // CC 48-55, relative
	apcKnobs    = 8
	apcChannel  = 0
	apcUp       = 64
	apcDown     = 65
	apcLeft     = 66
	apcRight    = 67
	apcSelVol   = 68
	apcSelSend  = 70
	apcSelDev   = 71
	apcTempoKey = "tempo"
)

// Pad LED behaviour is selected by the note-on channel
const (
	apcLEDSolid uint8 = 6
	apcLEDPulse uint8 = 8
	apcLEDBlink uint8 = 13
)

// Single colour button LEDs
const (
	apcButtonOff   uint8 = 0
	apcButtonOn    uint8 = 1
	apcButtonBlink uint8 = 2
)

const apcTempoRevert = 1500 * time.Millisecond

const (
	apcModeMixer = iota
	apcModeLauncher
	apcModeDevice
)

// APCKey25 drives an Akai APC Key 25 mk2 with three modes: Mixer (level bars
// and mutes), Launcher (sequence pads) and Device (pass-through). Shift plus
// a soft key selects the mode.
type APCKey25 struct {
	ctrldev.ModeDriver

	mixer    *apcMixerMode
	launcher *apcLauncherMode
	device   *apcDeviceMode

	leds       *ledWriter
	knobs      *knob.Filter
	stopPress  *gesture.PressTimer
	trackPress *gesture.PressTimer
	timers     *gesture.Scheduler

	initialMode int
}

// APCKey25Factory builds APC Key 25 mk2 drivers
func APCKey25Factory() ctrldev.Factory {
	return ctrldev.Factory{
		Name:       "apc_key25_mk2",
		Identities: []string{"APC Key 25 mk2", "APC Key 25 mk2 Control", "APC Key 25 mk2 MIDI 2"},
		Caps:       ctrldev.CapMixer | ctrldev.CapPadGrid | ctrldev.CapPattern,
		New:        NewAPCKey25,
	}
}

func NewAPCKey25(d ctrldev.Deps) (ctrldev.Driver, error) {
	a := &APCKey25{initialMode: apcModeLauncher}
	a.Init("apc_key25_mk2", ctrldev.CapMixer|ctrldev.CapPadGrid|ctrldev.CapPattern, d)

	cfg := a.Config
	a.leds = newLEDWriter("apc", a.Out)
	a.knobs = knob.NewFilter(cfg.Knob.Steps, cfg.Knob.ShiftSteps)
	a.timers = gesture.NewScheduler("apc", gesture.OneShot, cfg.PollInterval())
	a.stopPress = gesture.NewPressTimer(cfg.BoldThreshold(), cfg.LongThreshold(), cfg.PollInterval(), stopAllGesture(a.App))

	a.mixer = &apcMixerMode{ModeBase: ctrldev.NewModeBase("mixer"), app: a.App, leds: a.leds, knobs: a.knobs}
	a.trackPress = gesture.NewPressTimer(cfg.BoldThreshold(), cfg.LongThreshold(), cfg.PollInterval(), a.mixer.trackGesture)
	a.mixer.press = a.trackPress
	a.launcher = &apcLauncherMode{ModeBase: ctrldev.NewModeBase("launcher"), app: a.App, leds: a.leds, knobs: a.knobs, timers: a.timers}
	a.device = &apcDeviceMode{ModeBase: ctrldev.NewModeBase("device"), app: a.App, leds: a.leds}
	a.AddMode(a.mixer)
	a.AddMode(a.launcher)
	a.AddMode(a.device)

	a.IsShift = func(sm midi.ShortMessage) (bool, bool) {
		if sm.Channel() != apcChannel || sm.Data1 != apcShift {
			return false, false
		}
		switch {
		case sm.IsNoteOn():
			return true, true
		case sm.IsNoteOff():
			return false, true
		}
		return false, false
	}
	a.ModeSelect = func(msg midi.Message, shifted bool) (int, bool) {
		sm, ok := msg.(midi.ShortMessage)
		if !ok || !shifted || !sm.IsNoteOn() || sm.Channel() != apcChannel {
			return 0, false
		}
		switch sm.Data1 {
		case apcSelVol:
			return apcModeMixer, true
		case apcSelSend:
			return apcModeLauncher, true
		case apcSelDev:
			return apcModeDevice, true
		}
		return 0, false
	}
	return a, nil
}

func (a *APCKey25) Start() {
	ctx := context.Background()
	a.stopPress.Start(ctx)
	a.trackPress.Start(ctx)
	a.timers.Start(ctx)

	if a.Bus != nil {
		refresh := func(bus.Event) { a.Refresh() }
		a.Bus.RegisterQueued(a, bus.SignalSequencer, bus.SubPlayState, refresh)
		a.Bus.RegisterQueued(a, bus.SignalSequencer, bus.SubBank, refresh)
		a.Bus.RegisterQueued(a, bus.SignalChain, bus.SubActiveChain, refresh)
		a.Bus.RegisterQueued(a, bus.SignalMixer, bus.SubLevel, refresh)
		a.Bus.RegisterQueued(a, bus.SignalMixer, bus.SubMute, refresh)
		a.Bus.RegisterQueued(a, bus.SignalMixer, bus.SubSolo, refresh)
	}
	a.StartIn(a.initialMode)
}

// MidiEvent handles the transport buttons for every mode, then hands over to
// the modes. The keybed channel is never consumed.
func (a *APCKey25) MidiEvent(msg midi.Message) bool {
	if a.Ended() {
		return false
	}
	if sm, ok := msg.(midi.ShortMessage); ok {
		if sm.Channel() != apcChannel {
			return false
		}
		if sm.Kind() == midi.NoteOn || sm.Kind() == midi.NoteOff {
			switch sm.Data1 {
			case apcStopAll:
				if sm.IsNoteOn() {
					a.stopPress.Pressed(apcStopAll, time.Now())
				} else {
					a.stopPress.Released(apcStopAll)
				}
				return true
			case apcPlay:
				if sm.IsNoteOn() {
					sendCommand(a.App, ctrldev.CmdTogglePlay)
				}
				return true
			case apcRecord:
				if sm.IsNoteOn() {
					sendCommand(a.App, ctrldev.CmdRecord)
				}
				return true
			}
		}
	}
	return a.ModeDriver.MidiEvent(msg)
}

func (a *APCKey25) State() map[string]any {
	return map[string]any{"mode": a.ActiveIndex()}
}

func (a *APCKey25) SetState(state map[string]any) {
	mode := ctrldev.StateInt(state, "mode", apcModeLauncher)
	if mode >= apcModeMixer && mode <= apcModeDevice {
		a.initialMode = mode
	}
}

func (a *APCKey25) SetSleep(on bool) {
	a.ModeDriver.SetSleep(on)
	if on {
		a.LightOff()
	}
}

func (a *APCKey25) LightOff() {
	a.leds.flush(apcDark(), true)
}

func (a *APCKey25) End() {
	if a.Ended() {
		return
	}
	a.stopPress.Stop()
	a.trackPress.Stop()
	a.timers.Stop()
	a.ModeDriver.End()
	if a.Bus != nil {
		a.Bus.UnregisterAll(a)
	}
	a.LightOff()
}

// apcDark is every LED off
func apcDark() ledFrame {
	f := make(ledFrame)
	for n := uint8(0); n < apcPads; n++ {
		f[n] = ledState{}
	}
	for i := uint8(0); i < apcPadCols; i++ {
		f[apcTrack0+i] = ledState{}
	}
	for i := uint8(0); i < apcScenes; i++ {
		f[apcScene0+i] = ledState{}
	}
	return f
}

// apcPadNote maps a row (0 at the bottom) and column to a pad note
func apcPadNote(row, col int) uint8 {
	return uint8(row*apcPadCols + col)
}

func apcButton(on bool) ledState {
	if on {
		return ledState{value: apcButtonOn}
	}
	return ledState{value: apcButtonOff}
}

func isTrack(note uint8) bool { return note >= apcTrack0 && note < apcTrack0+apcPadCols }
func isScene(note uint8) bool { return note >= apcScene0 && note < apcScene0+apcScenes }

// Track button functions in Mixer mode, picked by the scene buttons
const (
	apcTrackMute int32 = iota
	apcTrackSolo
)

// apcMixerMode shows a level bar per chain on the pad columns. Knobs set the
// level (balance when shifted) and track buttons mute or solo the chain; a
// bold or long press selects it.
type apcMixerMode struct {
	ctrldev.ModeBase
	app   ctrldev.App
	leds  *ledWriter
	knobs *knob.Filter
	press *gesture.PressTimer

	trackFn atomic.Int32
}

func (mm *apcMixerMode) SetActive(active bool) {
	mm.ModeBase.SetActive(active)
	if active {
		mm.leds.flush(mm.frame(), true)
	}
}

func (mm *apcMixerMode) Refresh() {
	mm.leds.flush(mm.frame(), false)
}

func (mm *apcMixerMode) NoteOn(channel, note, velocity uint8) bool {
	switch {
	case note < apcPads:
		row, col := int(note)/apcPadCols, int(note)%apcPadCols
		if ch, ok := chainChannel(mm.app, col); ok {
			mm.app.SetLevel(ch, float64(row+1)/apcPadRows)
		}
	case isTrack(note) && mm.IsShifted():
		arrows(mm.app, note)
	case isTrack(note):
		mm.press.Pressed(int(note-apcTrack0), time.Now())
	case note == apcScene0:
		mm.setTrackFn(apcTrackMute)
	case note == apcScene0+1:
		mm.setTrackFn(apcTrackSolo)
	case isScene(note):
	default:
		return false
	}
	return true
}

func (mm *apcMixerMode) NoteOff(channel, note uint8) bool {
	if isTrack(note) {
		mm.press.Released(int(note - apcTrack0))
		return true
	}
	return note < apcPads || isScene(note)
}

func (mm *apcMixerMode) CCChange(channel, cc, value uint8) bool {
	if cc < apcKnob0 || cc >= apcKnob0+apcKnobs {
		return false
	}
	i := int(cc - apcKnob0)
	delta, ok := mm.knobs.Feed(i, value, mm.IsShifted())
	if !ok {
		return true
	}
	ch, ok := chainChannel(mm.app, i)
	if !ok {
		return true
	}
	if mm.IsShifted() {
		mm.app.SetBalance(ch, mm.app.Balance(ch)+float64(delta)*0.02)
	} else {
		mm.app.SetLevel(ch, clamp01(mm.app.Level(ch)+float64(delta)*0.01))
	}
	return true
}

func (mm *apcMixerMode) setTrackFn(fn int32) {
	mm.trackFn.Store(int32(fn))
	mm.leds.flush(mm.frame(), false)
}

// trackGesture resolves a track button press. Ignored once the mode is no
// longer active.
func (mm *apcMixerMode) trackGesture(col int, c gesture.Class) {
	if !mm.IsActive() {
		return
	}
	if c != gesture.Short {
		selectChainIndex(mm.app, col)
		return
	}
	ch, ok := chainChannel(mm.app, col)
	if !ok {
		return
	}
	if mm.trackFn.Load() == apcTrackSolo {
		mm.app.SetSolo(ch, !mm.app.Solo(ch))
	} else {
		mm.app.SetMute(ch, !mm.app.Mute(ch))
	}
	debug.Log("apc", "track %d %v", col, c)
}

var apcBarColors = [apcPadRows]uint8{midi.ColorGreen, midi.ColorGreen, midi.ColorGreen, midi.ColorYellow, midi.ColorRed}

func (mm *apcMixerMode) frame() ledFrame {
	f := apcDark()
	fn := mm.trackFn.Load()
	active := activeChainIndex(mm.app)
	for col := 0; col < apcPadCols; col++ {
		ch, ok := chainChannel(mm.app, col)
		if !ok {
			continue
		}
		lit := int(mm.app.Level(ch)*apcPadRows + 0.5)
		for row := 0; row < lit && row < apcPadRows; row++ {
			f[apcPadNote(row, col)] = ledState{value: apcBarColors[row], channel: apcLEDSolid}
		}
		on := !mm.app.Mute(ch)
		if fn == apcTrackSolo {
			on = mm.app.Solo(ch)
		}
		st := apcButton(on)
		if col == active {
			st.value = apcButtonBlink
		}
		f[apcTrack0+uint8(col)] = st
	}
	f[apcScene0] = apcButton(fn == apcTrackMute)
	f[apcScene0+1] = apcButton(fn == apcTrackSolo)
	return f
}

// arrows moves the chain selection with shift + up/down and the bank with
// shift + left/right
func arrows(app ctrldev.App, note uint8) {
	switch note {
	case apcUp:
		sendCommand(app, ctrldev.CmdChainPrev)
	case apcDown:
		sendCommand(app, ctrldev.CmdChainNext)
	case apcLeft:
		if b := app.Bank(); b > 0 {
			app.SetBank(b - 1)
		}
	case apcRight:
		if b := app.Bank(); b+1 < app.BankCount() {
			app.SetBank(b + 1)
		}
	}
}

// apcLauncherMode maps the pads to the sequences of the current bank, the
// scene buttons to banks and the track buttons to chains. The first knob
// sets the tempo.
type apcLauncherMode struct {
	ctrldev.ModeBase
	app    ctrldev.App
	leds   *ledWriter
	knobs  *knob.Filter
	timers *gesture.Scheduler

	// screen shown before the tempo screen took over
	prevScreen string
}

// apcPadIndex maps a pad note to a bank pad, top row first
func apcPadIndex(note uint8) int {
	row, col := int(note)/apcPadCols, int(note)%apcPadCols
	return (apcPadRows-1-row)*apcPadCols + col
}

func (lm *apcLauncherMode) SetActive(active bool) {
	lm.ModeBase.SetActive(active)
	if active {
		lm.leds.flush(lm.frame(), true)
	}
}

func (lm *apcLauncherMode) Refresh() {
	lm.leds.flush(lm.frame(), false)
}

func (lm *apcLauncherMode) NoteOn(channel, note, velocity uint8) bool {
	switch {
	case note < apcPads:
		lm.app.TogglePlayState(lm.app.Bank(), apcPadIndex(note))
	case isTrack(note) && lm.IsShifted():
		arrows(lm.app, note)
	case isTrack(note):
		selectChainIndex(lm.app, int(note-apcTrack0))
	case isScene(note):
		if b := int(note - apcScene0); b < lm.app.BankCount() {
			lm.app.SetBank(b)
		}
	default:
		return false
	}
	return true
}

func (lm *apcLauncherMode) NoteOff(channel, note uint8) bool {
	return note < apcPads || isTrack(note) || isScene(note)
}

func (lm *apcLauncherMode) CCChange(channel, cc, value uint8) bool {
	if cc < apcKnob0 || cc >= apcKnob0+apcKnobs {
		return false
	}
	if cc != apcKnob0 {
		return true
	}
	delta, ok := lm.knobs.Feed(0, value, lm.IsShifted())
	if !ok {
		return true
	}
	lm.app.SetTempo(lm.app.Tempo() + float64(delta))
	lm.showTempo()
	return true
}

// showTempo shows the tempo screen and goes back to the previous screen once
// the knob has been left alone
func (lm *apcLauncherMode) showTempo() {
	if s := lm.Screen(); s != apcTempoKey {
		lm.prevScreen = s
		sendCommand(lm.app, ctrldev.CmdShowScreen, apcTempoKey)
	}
	prev := lm.prevScreen
	lm.timers.Add(apcTempoKey, apcTempoRevert, func() {
		if prev != "" {
			sendCommand(lm.app, ctrldev.CmdShowScreen, prev)
		}
	})
}

func (lm *apcLauncherMode) frame() ledFrame {
	f := apcDark()
	bank := lm.app.Bank()
	for n := uint8(0); n < apcPads; n++ {
		switch lm.app.PadState(bank, apcPadIndex(n)) {
		case ctrldev.PadStopped:
			f[n] = ledState{value: midi.ColorDimOrange, channel: apcLEDSolid}
		case ctrldev.PadStarting:
			f[n] = ledState{value: midi.ColorGreen, channel: apcLEDBlink}
		case ctrldev.PadPlaying:
			f[n] = ledState{value: midi.ColorGreen, channel: apcLEDPulse}
		case ctrldev.PadStopping:
			f[n] = ledState{value: midi.ColorRed, channel: apcLEDBlink}
		}
	}
	for i := 0; i < apcScenes; i++ {
		f[apcScene0+uint8(i)] = apcButton(i == bank)
	}
	active := activeChainIndex(lm.app)
	for i := 0; i < apcPadCols; i++ {
		f[apcTrack0+uint8(i)] = apcButton(i == active)
	}
	return f
}

// apcDeviceMode leaves pads and knobs to the active chain. Track buttons
// still select the chain.
type apcDeviceMode struct {
	ctrldev.ModeBase
	app  ctrldev.App
	leds *ledWriter
}

func (dm *apcDeviceMode) SetActive(active bool) {
	dm.ModeBase.SetActive(active)
	if active {
		dm.leds.flush(dm.frame(), true)
	}
}

func (dm *apcDeviceMode) Refresh() {
	dm.leds.flush(dm.frame(), false)
}

func (dm *apcDeviceMode) NoteOn(channel, note, velocity uint8) bool {
	if !isTrack(note) {
		return false
	}
	selectChainIndex(dm.app, int(note-apcTrack0))
	return true
}

func (dm *apcDeviceMode) NoteOff(channel, note uint8) bool {
	return isTrack(note)
}

func (dm *apcDeviceMode) frame() ledFrame {
	f := apcDark()
	active := activeChainIndex(dm.app)
	for i := 0; i < apcPadCols; i++ {
		f[apcTrack0+uint8(i)] = apcButton(i == active)
	}
	return f
}
