package host

import (
	"go-ctrldev/bus"
	"go-ctrldev/ctrldev"
)

const (
	MinTempo = 20.0
	MaxTempo = 420.0
)

func (a *App) Bank() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bank
}

func (a *App) SetBank(bank int) {
	a.mu.Lock()
	if bank < 0 || bank >= len(a.pads) || bank == a.bank {
		a.mu.Unlock()
		return
	}
	a.bank = bank
	a.mu.Unlock()
	a.publish(bus.SignalSequencer, bus.SubBank, bus.Args{"bank": bank})
}

func (a *App) BankCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pads)
}

func (a *App) PadCount(bank int) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if bank < 0 || bank >= len(a.pads) {
		return 0
	}
	return len(a.pads[bank])
}

func (a *App) PadState(bank, pad int) ctrldev.PadState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.validPad(bank, pad) {
		return ctrldev.PadEmpty
	}
	return a.pads[bank][pad]
}

func (a *App) validPad(bank, pad int) bool {
	return bank >= 0 && bank < len(a.pads) && pad >= 0 && pad < len(a.pads[bank])
}

// toggled is the state after a toggle: a pending change is cancelled,
// otherwise the pad is queued to start or stop
func toggled(s ctrldev.PadState) ctrldev.PadState {
	switch s {
	case ctrldev.PadStopped:
		return ctrldev.PadStarting
	case ctrldev.PadStarting:
		return ctrldev.PadStopped
	case ctrldev.PadPlaying:
		return ctrldev.PadStopping
	case ctrldev.PadStopping:
		return ctrldev.PadPlaying
	}
	return s
}

func (a *App) TogglePlayState(bank, pad int) {
	a.mu.Lock()
	if !a.validPad(bank, pad) {
		a.mu.Unlock()
		return
	}
	state := toggled(a.pads[bank][pad])
	a.pads[bank][pad] = state
	a.toggles++
	a.mu.Unlock()
	a.publish(bus.SignalSequencer, bus.SubPlayState, bus.Args{"bank": bank, "pad": pad, "state": int(state)})
}

// Toggles counts TogglePlayState calls on valid pads
func (a *App) Toggles() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.toggles
}

// Sync resolves pending starts and stops, as the sequencer does on a bar
// boundary
func (a *App) Sync() {
	type change struct{ bank, pad, state int }
	var changes []change

	a.mu.Lock()
	for b := range a.pads {
		for p, s := range a.pads[b] {
			switch s {
			case ctrldev.PadStarting:
				a.pads[b][p] = ctrldev.PadPlaying
			case ctrldev.PadStopping:
				a.pads[b][p] = ctrldev.PadStopped
			default:
				continue
			}
			changes = append(changes, change{b, p, int(a.pads[b][p])})
		}
	}
	a.mu.Unlock()

	for _, c := range changes {
		a.publish(bus.SignalSequencer, bus.SubPlayState, bus.Args{"bank": c.bank, "pad": c.pad, "state": c.state})
	}
}

// StopAll stops every pad in every bank
func (a *App) StopAll() {
	a.mu.Lock()
	for b := range a.pads {
		for p, s := range a.pads[b] {
			if s != ctrldev.PadEmpty {
				a.pads[b][p] = ctrldev.PadStopped
			}
		}
	}
	a.mu.Unlock()
	a.publish(bus.SignalSequencer, bus.SubPlayState, bus.Args{"bank": -1})
}

func (a *App) Tempo() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tempo
}

func (a *App) SetTempo(bpm float64) {
	a.mu.Lock()
	a.tempo = clamp(bpm, MinTempo, MaxTempo)
	bpm = a.tempo
	a.mu.Unlock()
	a.publish(bus.SignalSequencer, bus.SubTempo, bus.Args{"tempo": bpm})
}
