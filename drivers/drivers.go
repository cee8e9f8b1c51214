// Package drivers holds the concrete controller drivers
package drivers

import (
	"sync"

	"go-ctrldev/ctrldev"
	"go-ctrldev/debug"
	"go-ctrldev/gesture"
	"go-ctrldev/midi"
)

// All returns the factory of every driver
func All() []ctrldev.Factory {
	return []ctrldev.Factory{
		LaunchpadMiniMK3Factory(),
		APCKey25Factory(),
		MPKMiniFactory(),
		NanoKontrol2Factory(),
	}
}

// chainChannel returns the mixer channel of the chain at index i
func chainChannel(app ctrldev.App, i int) (int, bool) {
	if app.Chains == nil {
		return 0, false
	}
	c, ok := app.ChainByIndex(i)
	if !ok {
		return 0, false
	}
	return c.MixerChannel, true
}

// activeChainIndex returns the index of the active chain, or -1
func activeChainIndex(app ctrldev.App) int {
	if app.Chains == nil {
		return -1
	}
	c, ok := app.ActiveChain()
	if !ok {
		return -1
	}
	return c.Index
}

func selectChainIndex(app ctrldev.App, i int) {
	if app.Chains == nil {
		return
	}
	if c, ok := app.ChainByIndex(i); ok {
		app.SetActiveChainByID(c.ID)
	}
}

func sendCommand(app ctrldev.App, name string, params ...any) {
	if app.Commander != nil {
		app.SendCommand(name, params...)
	}
}

// stopAllGesture maps a STOP button gesture to its command
func stopAllGesture(app ctrldev.App) func(id int, c gesture.Class) {
	return func(id int, c gesture.Class) {
		switch c {
		case gesture.Short:
			sendCommand(app, ctrldev.CmdStopAll)
		case gesture.Bold:
			sendCommand(app, ctrldev.CmdAllNotesOff)
		case gesture.Long:
			sendCommand(app, ctrldev.CmdAllSoundsOff)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func onOff(on bool) uint8 {
	if on {
		return 127
	}
	return 0
}

// ledFrame is the LED state a driver wants; flush sends only what changed
type ledFrame map[uint8]ledState

type ledState struct {
	value   uint8
	channel uint8
	cc      bool
}

// ledWriter sends LED frames to an output, skipping LEDs already showing
// the wanted state
type ledWriter struct {
	name string
	out  midi.Output

	mu   sync.Mutex
	prev ledFrame
}

func newLEDWriter(name string, out midi.Output) *ledWriter {
	return &ledWriter{name: name, out: out, prev: make(ledFrame)}
}

// flush sends what changed since the last flush, or everything when force
// is set. Returns the number of messages sent.
func (w *ledWriter) flush(f ledFrame, force bool) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if force {
		w.prev = make(ledFrame)
	}
	sent := 0
	for id, st := range f {
		if prev, ok := w.prev[id]; ok && prev == st {
			continue
		}
		w.prev[id] = st
		if st.cc {
			w.out.ControlChange(st.channel, id, st.value)
		} else {
			w.out.NoteOn(st.channel, id, st.value)
		}
		sent++
	}
	if sent > 0 {
		debug.LogEvery(50, w.name, "flushed %d LEDs", sent)
	}
	return sent
}
