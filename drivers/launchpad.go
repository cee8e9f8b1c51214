package drivers

import (
	"context"
	"sync"
	"time"

	"go-ctrldev/bus"
	"go-ctrldev/codec"
	"go-ctrldev/ctrldev"
	"go-ctrldev/gesture"
	"go-ctrldev/midi"
)

// Launchpad Mini MK3 top row (CC 91-98)
const (
	lpUp      = 91
	lpDown    = 92
	lpLeft    = 93
	lpRight   = 94
	lpSession = 95
	lpStopAll = 98

	lpGridSize = 8
	lpBlink    = 500 * time.Millisecond
)

// Pad colours per play state
var lpStateRGB = map[ctrldev.PadState][3]uint8{
	ctrldev.PadStopped:  {180, 80, 40},
	ctrldev.PadStarting: {0, 255, 0},
	ctrldev.PadPlaying:  {0, 255, 0},
	ctrldev.PadStopping: {255, 0, 0},
}

var lpStateChannel = map[ctrldev.PadState]uint8{
	ctrldev.PadStopped:  midi.ChannelStatic,
	ctrldev.PadStarting: midi.ChannelFlash,
	ctrldev.PadPlaying:  midi.ChannelPulse,
	ctrldev.PadStopping: midi.ChannelFlash,
}

// LaunchpadMiniMK3 is a pad grid: each pad is a sequence of the current
// bank, the right column selects the bank and the arrows the chain.
type LaunchpadMiniMK3 struct {
	ctrldev.Base

	press *gesture.PressTimer
	blink *gesture.Scheduler

	leds *ledWriter

	mu      sync.Mutex
	blinkOn bool
}

// LaunchpadMiniMK3Factory builds Launchpad Mini MK3 drivers
func LaunchpadMiniMK3Factory() ctrldev.Factory {
	return ctrldev.Factory{
		Name:       "launchpad_mini_mk3",
		Identities: []string{"Launchpad Mini MK3", "LPMiniMK3 MIDI", "Launchpad Mini MK3 LPMiniMK3 MIDI Out"},
		Caps:       ctrldev.CapPadGrid | ctrldev.CapPattern,
		New:        NewLaunchpadMiniMK3,
	}
}

func NewLaunchpadMiniMK3(d ctrldev.Deps) (ctrldev.Driver, error) {
	lp := &LaunchpadMiniMK3{}
	lp.Init("launchpad_mini_mk3", ctrldev.CapPadGrid|ctrldev.CapPattern, d)
	lp.leds = newLEDWriter("launchpad", lp.Out)
	lp.press = gesture.NewPressTimer(lp.Config.BoldThreshold(), lp.Config.LongThreshold(), lp.Config.PollInterval(),
		stopAllGesture(lp.App))
	lp.blink = gesture.NewScheduler("launchpad blink", gesture.Interval, lpBlink)
	return lp, nil
}

func (lp *LaunchpadMiniMK3) Start() {
	lp.Out.SendRaw(codec.LaunchpadProgrammerMode(true))
	lp.Out.SendRaw(codec.LaunchpadBrightness(127))

	ctx := context.Background()
	lp.press.Start(ctx)
	lp.blink.Start(ctx)
	lp.blink.Add("pending", lpBlink, lp.blinkPending)

	if lp.Bus != nil {
		refresh := func(bus.Event) { lp.Refresh() }
		lp.Bus.RegisterQueued(lp, bus.SignalSequencer, bus.SubPlayState, refresh)
		lp.Bus.RegisterQueued(lp, bus.SignalSequencer, bus.SubBank, refresh)
		lp.Bus.RegisterQueued(lp, bus.SignalChain, bus.SubActiveChain, refresh)
	}
	lp.forceRefresh()
}

// padIndex maps a grid position to a bank pad, top row first
func padIndex(row, col int) int {
	return (lpGridSize-1-row)*lpGridSize + col
}

func (lp *LaunchpadMiniMK3) MidiEvent(msg midi.Message) bool {
	if lp.Ended() {
		return false
	}
	sm, ok := msg.(midi.ShortMessage)
	if !ok {
		return false
	}

	var id uint8
	var pressed bool
	switch sm.Kind() {
	case midi.NoteOn, midi.NoteOff:
		id, pressed = sm.Data1, sm.IsNoteOn()
	case midi.CC:
		id, pressed = sm.Data1, sm.Data2 > 0
	default:
		return false
	}

	if id == lpStopAll {
		if pressed {
			lp.press.Pressed(int(id), time.Now())
		} else {
			lp.press.Released(int(id))
		}
		return true
	}
	row, col := codec.LaunchpadPosition(id)
	if row < 0 {
		return false
	}
	if !pressed {
		return true
	}

	switch {
	case row == 8:
		lp.topRow(id)
	case col == 8:
		// right column: banks from the top
		lp.App.SetBank(lpGridSize - 1 - row)
	default:
		bank := lp.App.Bank()
		lp.App.TogglePlayState(bank, padIndex(row, col))
	}
	return true
}

func (lp *LaunchpadMiniMK3) topRow(cc uint8) {
	switch cc {
	case lpUp:
		sendCommand(lp.App, ctrldev.CmdChainPrev)
	case lpDown:
		sendCommand(lp.App, ctrldev.CmdChainNext)
	case lpLeft:
		if b := lp.App.Bank(); b > 0 {
			lp.App.SetBank(b - 1)
		}
	case lpRight:
		if b := lp.App.Bank(); b+1 < lp.App.BankCount() {
			lp.App.SetBank(b + 1)
		}
	case lpSession:
		sendCommand(lp.App, ctrldev.CmdShowScreen, "sequencer")
	}
}

// hasPending reports whether a pad of the bank is starting or stopping
func (lp *LaunchpadMiniMK3) hasPending(bank int) bool {
	for i := 0; i < lp.App.PadCount(bank); i++ {
		switch lp.App.PadState(bank, i) {
		case ctrldev.PadStarting, ctrldev.PadStopping:
			return true
		}
	}
	return false
}

// blinkPending flashes the session button while changes are queued
func (lp *LaunchpadMiniMK3) blinkPending() {
	if lp.Ended() || lp.Sleeping() {
		return
	}
	lp.mu.Lock()
	lp.blinkOn = !lp.blinkOn
	on := lp.blinkOn
	lp.mu.Unlock()

	v := midi.ColorOff
	if on && lp.hasPending(lp.App.Bank()) {
		v = midi.ColorBrightGreen
	}
	lp.leds.flush(ledFrame{lpSession: {value: v, cc: true}}, false)
}

func (lp *LaunchpadMiniMK3) frame() ledFrame {
	f := make(ledFrame)
	bank := lp.App.Bank()
	for row := 0; row < lpGridSize; row++ {
		for col := 0; col < lpGridSize; col++ {
			state := lp.App.PadState(bank, padIndex(row, col))
			note := codec.LaunchpadPad(row, col)
			rgb, ok := lpStateRGB[state]
			if !ok {
				f[note] = ledState{}
				continue
			}
			f[note] = ledState{value: midi.NearestPaletteColor(rgb), channel: lpStateChannel[state]}
		}
		// right column: bank select
		side := codec.LaunchpadPad(row, 8)
		b := lpGridSize - 1 - row
		switch {
		case b == bank:
			f[side] = ledState{value: midi.ColorBrightWhite, cc: true}
		case b < lp.App.BankCount():
			f[side] = ledState{value: midi.ColorDimBlue, cc: true}
		default:
			f[side] = ledState{cc: true}
		}
	}
	f[lpUp] = ledState{value: midi.ColorDimBlue, cc: true}
	f[lpDown] = ledState{value: midi.ColorDimBlue, cc: true}
	f[lpLeft] = ledState{value: lpArrow(bank > 0), cc: true}
	f[lpRight] = ledState{value: lpArrow(bank+1 < lp.App.BankCount()), cc: true}
	f[lpStopAll] = ledState{value: midi.ColorDimRed, cc: true}
	return f
}

func lpArrow(enabled bool) uint8 {
	if enabled {
		return midi.ColorDimBlue
	}
	return midi.ColorOff
}

func (lp *LaunchpadMiniMK3) Refresh() {
	if lp.Ended() || lp.Sleeping() {
		return
	}
	lp.leds.flush(lp.frame(), false)
}

func (lp *LaunchpadMiniMK3) forceRefresh() {
	if lp.Ended() || lp.Sleeping() {
		return
	}
	lp.leds.flush(lp.frame(), true)
}

func (lp *LaunchpadMiniMK3) SetSleep(on bool) {
	lp.Base.SetSleep(on)
	lp.Out.SendRaw(codec.LaunchpadSleep(on))
	if !on {
		lp.forceRefresh()
	}
}

func (lp *LaunchpadMiniMK3) LightOff() {
	f := make(ledFrame)
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if row == 8 && col == 8 {
				continue // logo
			}
			id := codec.LaunchpadPad(row, col)
			f[id] = ledState{cc: row == 8 || col == 8}
		}
	}
	lp.leds.flush(f, true)
}

func (lp *LaunchpadMiniMK3) End() {
	if lp.Ended() {
		return
	}
	if lp.Bus != nil {
		lp.Bus.UnregisterAll(lp)
	}
	lp.press.Stop()
	lp.blink.Stop()
	lp.LightOff()
	lp.Out.SendRaw(codec.LaunchpadProgrammerMode(false))
	lp.Base.End()
}
